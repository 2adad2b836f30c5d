package dispatch

import (
	"context"
	"strings"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"fsls/internal/analyzer"
	"fsls/internal/cursor"
)

// Hover renders the compiler tooltip for the identifier under the cursor.
func (d *Dispatcher) Hover(ctx context.Context, file string, line, character int) *protocol.Hover {
	result, err := d.checks.Check(ctx, file)
	if err != nil {
		return nil
	}
	lineText, ok := d.lineAt(file, line)
	if !ok {
		return nil
	}
	names := cursor.NamesUnderCursor(lineText, character)
	if len(names) == 0 {
		return nil
	}
	tip, ok := d.gw.ToolTip(result.Check, line+1, character+1, lineText, names)
	if !ok || tip == nil || len(tip.Elements) == 0 {
		return nil
	}
	var sb strings.Builder
	for i, el := range tip.Elements {
		if el.Signature == "" && el.Documentation == "" {
			continue
		}
		if i > 0 {
			sb.WriteString("\n\n---\n\n")
		}
		sb.WriteString("```fsharp\n")
		sb.WriteString(el.Signature)
		sb.WriteString("\n```")
		if el.Documentation != "" {
			sb.WriteString("\n\n")
			sb.WriteString(el.Documentation)
		}
	}
	if sb.Len() == 0 {
		return nil
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{Kind: protocol.MarkupKindMarkdown, Value: sb.String()},
	}
}

// Completion lists declarations reachable at the cursor. The result is
// retained so a later resolve request can attach documentation.
func (d *Dispatcher) Completion(ctx context.Context, file string, line, character int) *protocol.CompletionList {
	result, err := d.checks.Quick(ctx, file)
	if err != nil {
		return nil
	}
	lineText, ok := d.lineAt(file, line)
	if !ok {
		return nil
	}
	qualifiers, partial := cursor.PartialName(lineText, character)
	declarations, err := d.gw.Declarations(ctx, result.Parse, line+1, lineText, analyzer.PartialLongName{
		Qualifiers: qualifiers,
		Partial:    partial,
	})
	if err != nil || declarations == nil {
		return nil
	}
	d.lastCompletion.Store(declarations)

	items := make([]protocol.CompletionItem, 0, len(declarations.Items))
	for _, decl := range declarations.Items {
		item := protocol.CompletionItem{Label: decl.Name}
		if kind, ok := completionKind(decl.Glyph); ok {
			k := kind
			item.Kind = &k
		}
		if decl.FullName != "" {
			detail := decl.FullName
			item.Detail = &detail
			item.Data = decl.FullName
		}
		items = append(items, item)
	}
	return &protocol.CompletionList{IsIncomplete: false, Items: items}
}

// ResolveCompletion enriches an item with the description recorded for it in
// the most recent completion list. Best effort: a stale or missing list
// leaves the item unchanged.
func (d *Dispatcher) ResolveCompletion(item *protocol.CompletionItem) *protocol.CompletionItem {
	last := d.lastCompletion.Load()
	if last == nil {
		return item
	}
	fullName, ok := item.Data.(string)
	if !ok {
		return item
	}
	for _, decl := range last.Items {
		if decl.FullName == fullName && decl.Description != "" {
			item.Documentation = protocol.MarkupContent{
				Kind:  protocol.MarkupKindMarkdown,
				Value: decl.Description,
			}
			break
		}
	}
	return item
}

// SignatureHelp lists the overloads of the call enclosing the cursor.
func (d *Dispatcher) SignatureHelp(ctx context.Context, file string, line, character int) *protocol.SignatureHelp {
	result, err := d.checks.Quick(ctx, file)
	if err != nil {
		return nil
	}
	lineText, ok := d.lineAt(file, line)
	if !ok {
		return nil
	}
	endOfName, ok := cursor.MethodCallBeforeCursor(lineText, character)
	if !ok {
		return nil
	}
	names := cursor.NamesUnderCursor(lineText, endOfName-1)
	group, ok := d.gw.Methods(result.Check, line+1, endOfName, lineText, names)
	if !ok || group == nil {
		return nil
	}

	signatures := make([]protocol.SignatureInformation, 0, len(group.Overloads))
	for _, overload := range group.Overloads {
		displays := make([]string, len(overload.Parameters))
		parameters := make([]protocol.ParameterInformation, len(overload.Parameters))
		for i, p := range overload.Parameters {
			displays[i] = p.Display
			parameters[i] = protocol.ParameterInformation{Label: p.Display}
		}
		signature := protocol.SignatureInformation{
			Label:      group.Name + "(" + strings.Join(displays, ", ") + ")",
			Parameters: parameters,
		}
		if len(overload.ToolTip.Elements) == 1 && overload.ToolTip.Elements[0].Documentation != "" {
			signature.Documentation = overload.ToolTip.Elements[0].Documentation
		}
		signatures = append(signatures, signature)
	}

	help := &protocol.SignatureHelp{Signatures: signatures}
	activeParameter := protocol.UInteger(cursor.CountCommas(lineText, endOfName, character))
	help.ActiveParameter = &activeParameter
	if idx, ok := findCompatibleOverload(int(activeParameter), group.Overloads); ok {
		activeSignature := protocol.UInteger(idx)
		help.ActiveSignature = &activeSignature
	}
	return help
}

// findCompatibleOverload picks the first overload that still has room for
// the parameter being typed.
func findCompatibleOverload(activeParameter int, overloads []analyzer.MethodOverload) (int, bool) {
	for i, overload := range overloads {
		if activeParameter == 0 || activeParameter < len(overload.Parameters) {
			return i, true
		}
	}
	return 0, false
}
