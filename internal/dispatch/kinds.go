package dispatch

import (
	protocol "github.com/tliron/glsp/protocol_3_16"

	"fsls/internal/analyzer"
)

// completionKind maps a compiler glyph to an LSP completion kind. Events
// and uncategorized glyphs carry no kind at all.
func completionKind(glyph analyzer.GlyphKind) (protocol.CompletionItemKind, bool) {
	switch glyph {
	case analyzer.GlyphField:
		return protocol.CompletionItemKindField, true
	case analyzer.GlyphProperty:
		return protocol.CompletionItemKindProperty, true
	case analyzer.GlyphMethod, analyzer.GlyphExtensionMethod:
		return protocol.CompletionItemKindMethod, true
	case analyzer.GlyphArgument:
		return protocol.CompletionItemKindVariable, true
	default:
		return 0, false
	}
}

// symbolKind maps a navigation declaration to an LSP symbol kind.
func symbolKind(kind analyzer.DeclarationKind) protocol.SymbolKind {
	switch kind {
	case analyzer.NamespaceDecl:
		return protocol.SymbolKindNamespace
	case analyzer.ModuleDecl, analyzer.ModuleFileDecl:
		return protocol.SymbolKindModule
	case analyzer.TypeDecl:
		return protocol.SymbolKindInterface
	case analyzer.ExnDecl:
		return protocol.SymbolKindClass
	case analyzer.MethodDecl:
		return protocol.SymbolKindMethod
	case analyzer.PropertyDecl:
		return protocol.SymbolKindProperty
	case analyzer.FieldDecl:
		return protocol.SymbolKindField
	default:
		return protocol.SymbolKindVariable
	}
}
