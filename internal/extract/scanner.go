package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vendz/NL2SQL/internal/logging"
	"github.com/vendz/NL2SQL/internal/schema"
)

var (
	// ErrNoModelsDir is returned when no models directory exists.
	ErrNoModelsDir = errors.New("models directory not found")

	// ErrNoModels is returned when a scan finds zero valid entities.
	ErrNoModels = errors.New("no model definitions found")
)

// sourceExtensions are the recognized model file extensions.
var sourceExtensions = map[string]bool{
	".js":  true,
	".cjs": true,
	".mjs": true,
	".ts":  true,
}

// Diagnostic records one per-file parse failure. Failures are
// collected, never fatal to the scan.
type Diagnostic struct {
	Path string
	Err  error
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %v", filepath.Base(d.Path), d.Err)
}

// Scanner walks a models directory and assembles a Schema Snapshot:
// per-file model parsing, centralized association consolidation, and
// final assembly with a generated description.
type Scanner struct {
	parser *ModelParser
}

// NewScanner creates a scanner with a fresh model parser.
func NewScanner() *Scanner {
	return &Scanner{parser: NewModelParser()}
}

// FindModelsDir resolves the models directory: workspace/<modelsDir>
// if it exists, or the workspace itself when it is already the models
// directory.
func FindModelsDir(workspace, modelsDir string) (string, error) {
	candidate := filepath.Join(workspace, modelsDir)
	if info, err := os.Stat(candidate); err == nil && info.IsDir() {
		return candidate, nil
	}
	if filepath.Base(workspace) == modelsDir {
		if info, err := os.Stat(workspace); err == nil && info.IsDir() {
			return workspace, nil
		}
	}
	return "", fmt.Errorf("%w: looked for %q under %s", ErrNoModelsDir, modelsDir, workspace)
}

// Build runs one full extraction pass over the directory and returns a
// brand-new Snapshot plus the diagnostics recorded along the way.
// Files are parsed one at a time in directory order, so two passes
// over the same tree produce identical snapshots.
func (s *Scanner) Build(ctx context.Context, dir string) (*schema.Snapshot, []Diagnostic, error) {
	timer := logging.StartTimer(logging.CategorySchema, "Build "+dir)
	defer timer.Stop()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoModelsDir, dir)
	}

	var entities []schema.Entity
	var diags []Diagnostic
	seen := make(map[string]bool)

	for _, entry := range entries {
		if entry.IsDir() || !isModelCandidate(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		content, err := os.ReadFile(path)
		if err != nil {
			diags = append(diags, Diagnostic{Path: path, Err: err})
			logging.Get(logging.CategorySchema).Warn("cannot read %s: %v", entry.Name(), err)
			continue
		}

		entity, err := s.parser.ParseModel(ctx, path, content)
		if err != nil {
			diags = append(diags, Diagnostic{Path: path, Err: err})
			logging.Get(logging.CategorySchema).Warn("skipping %s: %v", entry.Name(), err)
			continue
		}
		if entity == nil {
			continue // not a model
		}
		if seen[entity.Name] {
			logging.Get(logging.CategorySchema).Warn("duplicate model name %s from %s, keeping first", entity.Name, entry.Name())
			continue
		}
		seen[entity.Name] = true
		entities = append(entities, *entity)
	}

	if len(entities) == 0 {
		return nil, diags, fmt.Errorf("%w in %s", ErrNoModels, dir)
	}

	decls := s.consolidateAssociations(ctx, dir, entries)
	mergeAssociations(entities, decls)

	snapshot := schema.NewSnapshot(entities)
	logging.Schema("built snapshot: %d entities, %d diagnostics", len(entities), len(diags))
	return snapshot, diags, nil
}

// isModelCandidate applies the fixed exclusion list: aggregator/index
// files, dedicated association files, declaration-only files, and test
// files never contain model definitions.
func isModelCandidate(name string) bool {
	if !IsSourceFile(name) {
		return false
	}
	switch fileStem(name) {
	case indexStem, associationsStem:
		return false
	}
	lower := strings.ToLower(name)
	if strings.Contains(lower, ".test.") || strings.Contains(lower, ".spec.") {
		return false
	}
	if strings.HasSuffix(lower, ".d.ts") {
		return false
	}
	return true
}

// IsSourceFile reports whether the name has a recognized extension.
func IsSourceFile(name string) bool {
	return sourceExtensions[strings.ToLower(filepath.Ext(name))]
}

// fileStem returns the lower-cased name without extension.
func fileStem(name string) string {
	return strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
}
