package dispatch

import (
	"context"
	"sort"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"fsls/internal/analyzer"
	"fsls/internal/notify"
	"fsls/internal/projects"
)

// Definition returns the declaration location of the symbol under the
// cursor, or nothing.
func (d *Dispatcher) Definition(ctx context.Context, file string, line, character int) []protocol.Location {
	use, ok := d.symbolAt(ctx, file, line, character)
	if !ok || use.Symbol.Declaration == nil {
		return nil
	}
	return []protocol.Location{notify.ProtoLocation(*use.Symbol.Declaration)}
}

// References lists every use of the symbol under the cursor across the
// workspace.
func (d *Dispatcher) References(ctx context.Context, file string, line, character int) []protocol.Location {
	use, ok := d.symbolAt(ctx, file, line, character)
	if !ok {
		return nil
	}
	uses := d.findAllSymbolUses(ctx, use.Symbol)
	locations := make([]protocol.Location, 0, len(uses))
	for _, u := range uses {
		locations = append(locations, notify.ProtoLocation(analyzer.Location{File: u.File, Range: u.Range}))
	}
	return locations
}

// Rename rewrites every use of the symbol under the cursor to newName,
// grouped per file as versioned document edits.
func (d *Dispatcher) Rename(ctx context.Context, file string, line, character int, newName string) *protocol.WorkspaceEdit {
	use, ok := d.symbolAt(ctx, file, line, character)
	if !ok {
		return nil
	}
	uses := d.findAllSymbolUses(ctx, use.Symbol)
	byFile := make(map[string][]*analyzer.SymbolUse)
	for _, u := range uses {
		key := projects.Normalize(u.File)
		byFile[key] = append(byFile[key], u)
	}
	order := make([]string, 0, len(byFile))
	for key := range byFile {
		order = append(order, key)
	}
	sort.Strings(order)

	documentChanges := make([]any, 0, len(byFile))
	for _, key := range order {
		fileUses := byFile[key]
		target := fileUses[0].File
		var version protocol.Integer
		if v, ok := d.docs.Version(target); ok {
			version = v
		}
		edits := make([]any, 0, len(fileUses))
		for _, u := range fileUses {
			refined := d.refineRange(use.Symbol, target, u.Range)
			edits = append(edits, protocol.TextEdit{
				Range:   notify.ProtoRange(refined),
				NewText: newName,
			})
		}
		documentChanges = append(documentChanges, protocol.TextDocumentEdit{
			TextDocument: protocol.OptionalVersionedTextDocumentIdentifier{
				TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: notify.FileURI(target)},
				Version:                &version,
			},
			Edits: edits,
		})
	}
	return &protocol.WorkspaceEdit{DocumentChanges: documentChanges}
}
