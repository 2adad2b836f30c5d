package dispatch

import (
	"context"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"fsls/internal/analyzer"
	"fsls/internal/cursor"
	"fsls/internal/notify"
	"fsls/internal/projects"
)

const maxWorkspaceSymbols = 50

type flatDeclaration struct {
	item      analyzer.NavigationItem
	container string
}

// flattenNavigation lists top-level declarations and their direct children,
// recording the parent name for nested entries.
func flattenNavigation(items []analyzer.NavigationItem) []flatDeclaration {
	var flat []flatDeclaration
	for _, top := range items {
		flat = append(flat, flatDeclaration{item: top})
		for _, nested := range top.Nested {
			flat = append(flat, flatDeclaration{item: nested, container: top.Name})
		}
	}
	return flat
}

func (d *Dispatcher) symbolInformation(file string, decl flatDeclaration) protocol.SymbolInformation {
	info := protocol.SymbolInformation{
		Name: decl.item.Name,
		Kind: symbolKind(decl.item.Kind),
		Location: protocol.Location{
			URI:   notify.FileURI(file),
			Range: notify.ProtoRange(decl.item.Range),
		},
	}
	if decl.container != "" {
		container := decl.container
		info.ContainerName = &container
	}
	return info
}

// parseOnly runs a syntax-only parse of the file's current content.
func (d *Dispatcher) parseOnly(ctx context.Context, file string, options *analyzer.ProjectOptions) (*analyzer.ParseResult, bool) {
	text, _, ok := d.checks.ContentOf(file)
	if !ok {
		return nil, false
	}
	var parsingOptions analyzer.ParsingOptions
	if options != nil {
		parsingOptions = d.gw.ParsingOptionsOf(options)
	} else {
		parsingOptions = analyzer.ParsingOptions{SourceFiles: []string{file}, IsScript: true}
	}
	parse, err := d.gw.Parse(ctx, file, text, parsingOptions)
	if err != nil || parse == nil {
		return nil, false
	}
	return parse, true
}

// DocumentSymbols flattens the file's navigation tree one level deep.
func (d *Dispatcher) DocumentSymbols(ctx context.Context, file string) []protocol.SymbolInformation {
	options, err := d.graph.Find(file)
	if err != nil {
		options = nil
	}
	parse, ok := d.parseOnly(ctx, file, options)
	if !ok {
		return nil
	}
	flat := flattenNavigation(parse.Navigation)
	symbols := make([]protocol.SymbolInformation, 0, len(flat))
	for _, decl := range flat {
		symbols = append(symbols, d.symbolInformation(file, decl))
	}
	return symbols
}

// WorkspaceSymbols scans open projects for declarations whose name matches
// the query, stopping once enough matches accumulate. Files that contain no
// matching identifier at all are skipped without parsing.
func (d *Dispatcher) WorkspaceSymbols(ctx context.Context, query string) []protocol.SymbolInformation {
	var results []protocol.SymbolInformation
	seen := make(map[string]bool)
	for _, p := range d.graph.OpenProjects() {
		for _, file := range p.SourceFiles {
			key := projects.Normalize(file)
			if seen[key] {
				continue
			}
			seen[key] = true
			text, _, ok := d.checks.ContentOf(file)
			if !ok || !cursor.AnyIdentifierMatches(query, text) {
				continue
			}
			parse, ok := d.parseOnly(ctx, file, p)
			if !ok {
				continue
			}
			for _, decl := range flattenNavigation(parse.Navigation) {
				if !cursor.MatchesTitleCase(query, decl.item.Name) {
					continue
				}
				results = append(results, d.symbolInformation(file, decl))
				if len(results) >= maxWorkspaceSymbols {
					return results
				}
			}
		}
	}
	return results
}
