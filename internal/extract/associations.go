package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/vendz/NL2SQL/internal/logging"
	"github.com/vendz/NL2SQL/internal/schema"
)

// Centralized association declarations live outside the model files,
// in two priority tiers. Tier 1 is a dedicated associations file;
// Tier 2 is the aggregator/index file. The presence of any Tier-1 file
// suppresses Tier 2 entirely, even for entities Tier 1 never mentions.
const (
	associationsStem = "associations"
	indexStem        = "index"
)

// ParseAssociations extracts every recognized relation call of the
// shape `<entityRef>.<relationKind>(<targetRef>, <options>?)` from a
// centralized declaration file, grouped by declaring entity name.
// Entity and target references may be bare identifiers or property
// chains (db.User, models['Order']).
func (p *ModelParser) ParseAssociations(ctx context.Context, path string, content []byte) (map[string][]schema.Association, error) {
	tree, err := p.parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	defer tree.Close()

	if tree.RootNode().HasError() {
		return nil, fmt.Errorf("parse %s: syntax error near line %d", filepath.Base(path), errorLine(tree.RootNode()))
	}

	decls := make(map[string][]schema.Association)
	visitCalls(tree.RootNode(), func(call *sitter.Node) {
		recv, method, ok := methodCall(call, content)
		if !ok || !schema.IsRelationKind(method) || recv == nil {
			return
		}
		owner, ok := tailIdentifier(recv, content)
		if !ok || owner == "" {
			return
		}
		if a, ok := parseRelationCall(call, content); ok {
			decls[owner] = append(decls[owner], a)
		}
	})

	return decls, nil
}

// consolidateAssociations scans the directory for centralized
// declaration files and returns the merged association map of the
// active tier. A file that fails to parse degrades to no declarations
// for that file; it never aborts the scan and never reactivates the
// lower tier.
func (s *Scanner) consolidateAssociations(ctx context.Context, dir string, entries []os.DirEntry) map[string][]schema.Association {
	var tier1, tier2 []string
	for _, entry := range entries {
		if entry.IsDir() || !IsSourceFile(entry.Name()) {
			continue
		}
		switch fileStem(entry.Name()) {
		case associationsStem:
			tier1 = append(tier1, entry.Name())
		case indexStem:
			tier2 = append(tier2, entry.Name())
		}
	}

	active := tier1
	if len(active) == 0 {
		active = tier2
	} else if len(tier2) > 0 {
		logging.Schema("dedicated association file present, ignoring %d aggregator file(s)", len(tier2))
	}
	if len(active) == 0 {
		return nil
	}

	merged := make(map[string][]schema.Association)
	for _, name := range active {
		path := filepath.Join(dir, name)
		content, err := os.ReadFile(path)
		if err != nil {
			logging.Get(logging.CategorySchema).Warn("cannot read association file %s: %v", name, err)
			continue
		}
		decls, err := s.parser.ParseAssociations(ctx, path, content)
		if err != nil {
			logging.Get(logging.CategorySchema).Warn("association file %s failed to parse, skipping: %v", name, err)
			continue
		}
		for owner, assocs := range decls {
			merged[owner] = append(merged[owner], assocs...)
		}
		logging.SchemaDebug("association file %s: %d declaring entities", name, len(decls))
	}

	return merged
}

// mergeAssociations appends centralized declarations onto the matching
// entities. A declaration whose (kind, target, alias) key already
// exists on the entity is dropped: in-file declarations always win and
// centralized ones are strictly additive.
func mergeAssociations(entities []schema.Entity, decls map[string][]schema.Association) {
	if len(decls) == 0 {
		return
	}
	for i := range entities {
		for _, a := range decls[entities[i].Name] {
			if entities[i].AddAssociation(a) {
				logging.SchemaDebug("merged %s %s -> %s", entities[i].Name, a.Kind, a.Target)
			}
		}
	}
}
