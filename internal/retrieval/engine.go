// Package retrieval selects the minimal relevant subset of the schema
// for a free-text query by fusing three signals: embedding similarity,
// keyword matching, and one-hop relational expansion. The result is
// always returned in Schema Snapshot order, so identical inputs
// produce identical output.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/vendz/NL2SQL/internal/embedding"
	"github.com/vendz/NL2SQL/internal/logging"
	"github.com/vendz/NL2SQL/internal/schema"
)

// ErrNotInitialized is returned when retrieval is invoked before the
// embedding index has been built.
var ErrNotInitialized = errors.New("retrieval engine not initialized; call Initialize first")

// Defaults for retrieval options.
const (
	DefaultTopK      = 5
	DefaultThreshold = 0.25
)

// Options controls one retrieval call.
type Options struct {
	TopK           int
	Threshold      float64
	IncludeRelated bool
}

// DefaultOptions returns the standard retrieval options.
func DefaultOptions() Options {
	return Options{
		TopK:           DefaultTopK,
		Threshold:      DefaultThreshold,
		IncludeRelated: true,
	}
}

// Match is one row of the diagnostic retrieval view.
type Match struct {
	Entity      string
	VectorScore float64
	Keyword     bool
	Related     bool
	Reason      string
}

// Engine owns the embedding index over the current entity set. The
// index is rebuilt wholesale on every Initialize call, never patched.
type Engine struct {
	embedder embedding.Engine

	mu       sync.RWMutex
	entities []schema.Entity
	vectors  [][]float32
	haystack []string
	ready    bool
}

// NewEngine creates an engine backed by the given embedding provider.
func NewEngine(embedder embedding.Engine) *Engine {
	return &Engine{embedder: embedder}
}

// Initialize builds the embedding index for the given entity set,
// embedding each entity's canonical text one at a time. Call it again
// after every snapshot reload; a provider failure leaves the previous
// index installed.
func (e *Engine) Initialize(ctx context.Context, entities []schema.Entity) error {
	timer := logging.StartTimer(logging.CategoryRetrieval, "Initialize")
	defer timer.Stop()

	vectors := make([][]float32, len(entities))
	haystack := make([]string, len(entities))
	for i := range entities {
		text := schema.EntityText(&entities[i])
		vec, err := e.embedder.Embed(ctx, text)
		if err != nil {
			return fmt.Errorf("embedding entity %s: %w", entities[i].Name, err)
		}
		vectors[i] = vec
		haystack[i] = schema.SearchText(&entities[i])
	}

	e.mu.Lock()
	e.entities = entities
	e.vectors = vectors
	e.haystack = haystack
	e.ready = true
	e.mu.Unlock()

	logging.Retrieval("index built: %d entities (%s)", len(entities), e.embedder.Name())
	return nil
}

// Retrieve returns the relevance-ordered subset of entities for the
// query. The order is the Schema Snapshot order, never score order.
func (e *Engine) Retrieve(ctx context.Context, query string, opts Options) ([]schema.Entity, error) {
	signals, entities, err := e.evaluate(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	var result []schema.Entity
	for i := range entities {
		if signals[i].selected() {
			result = append(result, entities[i])
		}
	}

	logging.Retrieval("query %q matched %d/%d entities", query, len(result), len(entities))
	return result, nil
}

// Explain returns the diagnostic view: one row per entity that matched
// any signal or has a nonzero vector score, in snapshot order.
func (e *Engine) Explain(ctx context.Context, query string, opts Options) ([]Match, error) {
	signals, entities, err := e.evaluate(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	var matches []Match
	for i := range entities {
		s := signals[i]
		if s.score == 0 && !s.selected() {
			continue
		}

		var reasons []string
		if s.vector {
			reasons = append(reasons, fmt.Sprintf("semantic match (score %.3f)", s.score))
		}
		if s.keyword {
			reasons = append(reasons, "keyword match ("+strings.Join(s.tokens, ", ")+")")
		}
		if s.related {
			reasons = append(reasons, "related to a selected table")
		}
		if len(reasons) == 0 {
			reasons = append(reasons, fmt.Sprintf("below threshold (score %.3f)", s.score))
		}

		matches = append(matches, Match{
			Entity:      entities[i].Name,
			VectorScore: s.score,
			Keyword:     s.keyword,
			Related:     s.related,
			Reason:      strings.Join(reasons, "; "),
		})
	}
	return matches, nil
}

// =============================================================================
// SIGNAL FUSION
// =============================================================================

// entitySignals records how one entity fared against each signal.
type entitySignals struct {
	score   float64  // raw similarity, kept for diagnostics
	vector  bool     // in the thresholded top-K vector set
	keyword bool     // some surviving token matched the haystack
	tokens  []string // the tokens that matched
	related bool     // pulled in by one-hop expansion
}

func (s entitySignals) selected() bool {
	return s.vector || s.keyword || s.related
}

// evaluate computes the three signals independently and unions them.
func (e *Engine) evaluate(ctx context.Context, query string, opts Options) ([]entitySignals, []schema.Entity, error) {
	e.mu.RLock()
	ready := e.ready
	entities := e.entities
	vectors := e.vectors
	haystack := e.haystack
	e.mu.RUnlock()

	if !ready {
		return nil, nil, ErrNotInitialized
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}

	signals := make([]entitySignals, len(entities))

	// Signal 1: embedding similarity. Vectors are normalized, so the
	// dot product is the cosine similarity.
	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("embedding query: %w", err)
	}
	var candidates []int
	for i := range entities {
		score, err := embedding.Dot(queryVec, vectors[i])
		if err != nil {
			return nil, nil, fmt.Errorf("scoring %s: %w", entities[i].Name, err)
		}
		signals[i].score = score
		if score >= opts.Threshold {
			candidates = append(candidates, i)
		}
	}
	// Stable sort keeps the index's original relative order on ties.
	sort.SliceStable(candidates, func(a, b int) bool {
		return signals[candidates[a]].score > signals[candidates[b]].score
	})
	if len(candidates) > opts.TopK {
		candidates = candidates[:opts.TopK]
	}
	for _, i := range candidates {
		signals[i].vector = true
	}

	// Signal 2: keyword match. Any surviving token appearing as a
	// substring of the entity haystack qualifies; there is no score.
	tokens := Tokenize(query)
	for i := range entities {
		for _, tok := range tokens {
			if strings.Contains(haystack[i], tok) {
				signals[i].keyword = true
				signals[i].tokens = append(signals[i].tokens, tok)
			}
		}
	}

	// Signal 3: relational expansion, exactly one hop from the seed
	// set. Additions never cascade.
	if opts.IncludeRelated {
		expandRelated(entities, signals)
	}

	return signals, entities, nil
}

// expandRelated marks every entity one association or foreign
// reference away from a seed entity: targets of its associations,
// entities that name it as a target, and targets of its fields'
// references matched by entity or storage name.
func expandRelated(entities []schema.Entity, signals []entitySignals) {
	seed := make([]int, 0, len(entities))
	for i := range entities {
		if signals[i].vector || signals[i].keyword {
			seed = append(seed, i)
		}
	}
	if len(seed) == 0 {
		return
	}

	byName := make(map[string]int, len(entities))
	byTable := make(map[string]int, len(entities))
	for i := range entities {
		byName[entities[i].Name] = i
		byTable[entities[i].TableName] = i
	}

	mark := func(i int) {
		if !signals[i].vector && !signals[i].keyword {
			signals[i].related = true
		}
	}

	for _, s := range seed {
		ent := &entities[s]

		// (a) entities this one associates to
		for _, a := range ent.Associations {
			if j, ok := byName[a.Target]; ok {
				mark(j)
			}
		}

		// (b) entities that associate to this one
		for j := range entities {
			for _, a := range entities[j].Associations {
				if a.Target == ent.Name {
					mark(j)
				}
			}
		}

		// (c) foreign references, matched by storage or entity name
		for _, f := range ent.Fields {
			if f.References == nil {
				continue
			}
			if j, ok := byTable[f.References.Target]; ok {
				mark(j)
			} else if j, ok := byName[f.References.Target]; ok {
				mark(j)
			}
		}
	}
}
