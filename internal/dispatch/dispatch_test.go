package dispatch_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"fsls/internal/analyzer"
	"fsls/internal/analyzer/analyzertest"
	"fsls/internal/checker"
	"fsls/internal/dispatch"
	"fsls/internal/docstore"
	"fsls/internal/notify"
	"fsls/internal/projects"
)

type stubLoader struct {
	mu      sync.Mutex
	options map[string]*analyzer.ProjectOptions
}

func (l *stubLoader) Load(path string) (*analyzer.ProjectOptions, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if opts, ok := l.options[path]; ok {
		return opts, nil
	}
	return nil, &projects.LoadError{Path: path}
}

type fixture struct {
	docs     *docstore.Store
	graph    *projects.Graph
	fake     *analyzertest.Fake
	checks   *checker.Orchestrator
	features *dispatch.Dispatcher
}

func newFixture(t *testing.T, options ...*analyzer.ProjectOptions) *fixture {
	t.Helper()
	loader := &stubLoader{options: make(map[string]*analyzer.ProjectOptions)}
	for _, opts := range options {
		loader.options[opts.ProjectFile] = opts
	}
	f := &fixture{
		docs: docstore.NewStore(),
		fake: analyzertest.NewFake(),
	}
	f.graph = projects.NewGraph(loader, nil)
	for _, opts := range options {
		f.graph.PutProjectFile(opts.ProjectFile)
	}
	client := notify.NewClient()
	client.Capture(&glsp.Context{Notify: func(method string, params any) {}})
	f.checks = checker.NewOrchestrator(f.docs, f.graph, f.fake, client)
	f.features = dispatch.NewDispatcher(f.docs, f.graph, f.fake, f.checks, client)
	t.Cleanup(f.checks.CancelDebounce)
	return f
}

func project(file string, more ...string) *analyzer.ProjectOptions {
	return &analyzer.ProjectOptions{
		ProjectFile: "/ws/test.fsproj",
		SourceFiles: append([]string{file}, more...),
	}
}

func TestHoverRendersToolTip(t *testing.T) {
	file := "/ws/a.fs"
	f := newFixture(t, project(file))
	f.docs.Open(file, "let x = 1", 1)
	f.fake.Tips["x"] = analyzer.ToolTip{Elements: []analyzer.ToolTipElement{
		{Signature: "val x : int", Documentation: "A binding."},
	}}

	hover := f.features.Hover(context.Background(), file, 0, 4)
	require.NotNil(t, hover)
	content, ok := hover.Contents.(protocol.MarkupContent)
	require.True(t, ok)
	assert.Contains(t, content.Value, "val x")
	assert.Contains(t, content.Value, "A binding.")
}

func TestHoverWithoutIdentifierIsNil(t *testing.T) {
	file := "/ws/a.fs"
	f := newFixture(t, project(file))
	f.docs.Open(file, "let x = 1", 1)

	assert.Nil(t, f.features.Hover(context.Background(), file, 0, 6))
}

func TestCompletionMapsDeclarations(t *testing.T) {
	file := "/ws/a.fs"
	f := newFixture(t, project(file))
	f.docs.Open(file, "System.Cons", 1)
	f.fake.Decls = []analyzer.DeclarationItem{
		{Name: "Console", FullName: "System.Console", Glyph: analyzer.GlyphProperty, Description: "Standard streams."},
		{Name: "Convert", FullName: "System.Convert", Glyph: analyzer.GlyphEvent},
	}

	list := f.features.Completion(context.Background(), file, 0, 11)
	require.NotNil(t, list)
	assert.False(t, list.IsIncomplete)
	require.Len(t, list.Items, 2)

	assert.Equal(t, analyzer.PartialLongName{Qualifiers: []string{"System"}, Partial: "Cons"}, f.fake.LastPartial)

	console := list.Items[0]
	assert.Equal(t, "Console", console.Label)
	require.NotNil(t, console.Kind)
	assert.Equal(t, protocol.CompletionItemKindProperty, *console.Kind)
	require.NotNil(t, console.Detail)
	assert.Equal(t, "System.Console", *console.Detail)

	assert.Nil(t, list.Items[1].Kind, "events carry no completion kind")
}

func TestResolveCompletionAttachesDocumentation(t *testing.T) {
	file := "/ws/a.fs"
	f := newFixture(t, project(file))
	f.docs.Open(file, "System.Cons", 1)
	f.fake.Decls = []analyzer.DeclarationItem{
		{Name: "Console", FullName: "System.Console", Description: "Standard streams."},
	}
	require.NotNil(t, f.features.Completion(context.Background(), file, 0, 11))

	item := &protocol.CompletionItem{Label: "Console", Data: "System.Console"}
	resolved := f.features.ResolveCompletion(item)
	content, ok := resolved.Documentation.(protocol.MarkupContent)
	require.True(t, ok)
	assert.Equal(t, "Standard streams.", content.Value)

	unknown := &protocol.CompletionItem{Label: "Missing", Data: "System.Missing"}
	assert.Nil(t, f.features.ResolveCompletion(unknown).Documentation)
}

func TestSignatureHelp(t *testing.T) {
	file := "/ws/a.fs"
	f := newFixture(t, project(file))
	f.docs.Open(file, "f(x, y", 1)
	f.fake.MethodGroups["f"] = &analyzer.MethodGroup{
		Name: "f",
		Overloads: []analyzer.MethodOverload{
			{Parameters: []analyzer.MethodParameter{{Name: "a", Display: "a: int"}}},
			{
				Parameters: []analyzer.MethodParameter{
					{Name: "a", Display: "a: int"},
					{Name: "b", Display: "b: int"},
				},
				ToolTip: analyzer.ToolTip{Elements: []analyzer.ToolTipElement{{Documentation: "Adds."}}},
			},
		},
	}

	help := f.features.SignatureHelp(context.Background(), file, 0, 6)
	require.NotNil(t, help)
	require.Len(t, help.Signatures, 2)
	assert.Equal(t, "f(a: int)", help.Signatures[0].Label)
	assert.Equal(t, "f(a: int, b: int)", help.Signatures[1].Label)
	assert.Equal(t, "Adds.", help.Signatures[1].Documentation)

	require.NotNil(t, help.ActiveParameter)
	assert.Equal(t, protocol.UInteger(1), *help.ActiveParameter)
	require.NotNil(t, help.ActiveSignature)
	assert.Equal(t, protocol.UInteger(1), *help.ActiveSignature,
		"first overload with room for a second argument")
}

func TestSignatureHelpOutsideCallIsNil(t *testing.T) {
	file := "/ws/a.fs"
	f := newFixture(t, project(file))
	f.docs.Open(file, "let g(x", 1)

	assert.Nil(t, f.features.SignatureHelp(context.Background(), file, 0, 6))
}

func TestDefinition(t *testing.T) {
	file := "/ws/a.fs"
	f := newFixture(t, project(file))
	f.docs.Open(file, "let y = x + 1", 1)
	f.fake.Symbols["x"] = &analyzer.Symbol{
		Name:     "x",
		FullName: "Test.x",
		Declaration: &analyzer.Location{
			File:  file,
			Range: analyzer.Range{StartLine: 1, StartColumn: 4, EndLine: 1, EndColumn: 5},
		},
	}

	locations := f.features.Definition(context.Background(), file, 0, 8)
	require.Len(t, locations, 1)
	assert.Equal(t, notify.FileURI(file), locations[0].URI)
	assert.Equal(t, protocol.UInteger(0), locations[0].Range.Start.Line)
	assert.Equal(t, protocol.UInteger(4), locations[0].Range.Start.Character)
}

func TestReferencesAcrossFiles(t *testing.T) {
	decl := "/ws/shared.fs"
	use := "/ws/consumer.fs"
	f := newFixture(t, project(decl, use))
	f.docs.Open(decl, "let shared = 1", 1)
	f.docs.Open(use, "let a = shared", 1)

	symbol := &analyzer.Symbol{
		Name:     "shared",
		FullName: "Test.shared",
		Declaration: &analyzer.Location{
			File:  decl,
			Range: analyzer.Range{StartLine: 1, StartColumn: 4, EndLine: 1, EndColumn: 10},
		},
	}
	f.fake.Symbols["shared"] = symbol
	f.fake.Uses[decl] = []*analyzer.SymbolUse{
		{Symbol: symbol, File: decl, Range: analyzer.Range{StartLine: 1, StartColumn: 4, EndLine: 1, EndColumn: 10}, IsDefinition: true},
	}
	f.fake.Uses[use] = []*analyzer.SymbolUse{
		{Symbol: symbol, File: use, Range: analyzer.Range{StartLine: 1, StartColumn: 8, EndLine: 1, EndColumn: 14}},
	}

	locations := f.features.References(context.Background(), decl, 0, 5)
	assert.Len(t, locations, 2)
}

func TestPrivateSymbolConfinedToDeclaringFile(t *testing.T) {
	decl := "/ws/shared.fs"
	other := "/ws/consumer.fs"
	f := newFixture(t, project(decl, other))
	f.docs.Open(decl, "let private secret = 1\nlet a = secret", 1)
	f.docs.Open(other, "let b = secret", 1)

	symbol := &analyzer.Symbol{
		Name:      "secret",
		FullName:  "Test.secret",
		IsPrivate: true,
		Declaration: &analyzer.Location{
			File:  decl,
			Range: analyzer.Range{StartLine: 1, StartColumn: 12, EndLine: 1, EndColumn: 18},
		},
	}
	f.fake.Symbols["secret"] = symbol
	f.fake.Uses[decl] = []*analyzer.SymbolUse{
		{Symbol: symbol, File: decl, Range: analyzer.Range{StartLine: 1, StartColumn: 12, EndLine: 1, EndColumn: 18}},
	}
	f.fake.Uses[other] = []*analyzer.SymbolUse{
		{Symbol: symbol, File: other, Range: analyzer.Range{StartLine: 1, StartColumn: 8, EndLine: 1, EndColumn: 14}},
	}

	locations := f.features.References(context.Background(), decl, 0, 13)
	require.Len(t, locations, 1)
	assert.Equal(t, notify.FileURI(decl), locations[0].URI)
}

// applyEdits replays a workspace edit against in-memory file contents.
func applyEdits(t *testing.T, texts map[string]string, edit *protocol.WorkspaceEdit) map[string]string {
	t.Helper()
	out := make(map[string]string, len(texts))
	for k, v := range texts {
		out[k] = v
	}
	for _, raw := range edit.DocumentChanges {
		tde, ok := raw.(protocol.TextDocumentEdit)
		require.True(t, ok)
		var path string
		for p := range texts {
			if notify.FileURI(p) == tde.TextDocument.URI {
				path = p
			}
		}
		require.NotEmpty(t, path)
		text := out[path]
		lines := strings.Split(text, "\n")
		// Apply in reverse order per line so earlier offsets stay valid.
		for i := len(tde.Edits) - 1; i >= 0; i-- {
			te, ok := tde.Edits[i].(protocol.TextEdit)
			require.True(t, ok)
			line := lines[te.Range.Start.Line]
			lines[te.Range.Start.Line] = line[:te.Range.Start.Character] + te.NewText + line[te.Range.End.Character:]
		}
		out[path] = strings.Join(lines, "\n")
	}
	return out
}

func TestRenameRoundTrip(t *testing.T) {
	file := "/ws/a.fs"
	original := "let x = 1\nlet y = x + 1"
	f := newFixture(t, project(file))
	f.docs.Open(file, original, 7)

	symbol := &analyzer.Symbol{
		Name:     "x",
		FullName: "Test.x",
		Declaration: &analyzer.Location{
			File:  file,
			Range: analyzer.Range{StartLine: 1, StartColumn: 4, EndLine: 1, EndColumn: 5},
		},
	}
	f.fake.Symbols["x"] = symbol
	f.fake.Uses[file] = []*analyzer.SymbolUse{
		{Symbol: symbol, File: file, Range: analyzer.Range{StartLine: 1, StartColumn: 4, EndLine: 1, EndColumn: 5}, IsDefinition: true},
		{Symbol: symbol, File: file, Range: analyzer.Range{StartLine: 2, StartColumn: 8, EndLine: 2, EndColumn: 9}},
	}

	edit := f.features.Rename(context.Background(), file, 0, 4, "z")
	require.NotNil(t, edit)
	require.Len(t, edit.DocumentChanges, 1)

	tde, ok := edit.DocumentChanges[0].(protocol.TextDocumentEdit)
	require.True(t, ok)
	require.NotNil(t, tde.TextDocument.Version)
	assert.Equal(t, protocol.Integer(7), *tde.TextDocument.Version)

	renamed := applyEdits(t, map[string]string{file: original}, edit)
	assert.Equal(t, "let z = 1\nlet y = z + 1", renamed[file])
}

func TestDocumentSymbolsFlattenOneLevel(t *testing.T) {
	file := "/ws/a.fs"
	f := newFixture(t, project(file))
	f.docs.Open(file, "module M\nlet f () = ()", 1)
	f.fake.Navigation[file] = []analyzer.NavigationItem{
		{
			Name: "M",
			Kind: analyzer.ModuleDecl,
			Range: analyzer.Range{
				StartLine: 1, StartColumn: 7, EndLine: 1, EndColumn: 8,
			},
			Nested: []analyzer.NavigationItem{
				{
					Name: "f",
					Kind: analyzer.MethodDecl,
					Range: analyzer.Range{
						StartLine: 2, StartColumn: 4, EndLine: 2, EndColumn: 5,
					},
				},
			},
		},
	}

	symbols := f.features.DocumentSymbols(context.Background(), file)
	require.Len(t, symbols, 2)
	assert.Equal(t, "M", symbols[0].Name)
	assert.Equal(t, protocol.SymbolKindModule, symbols[0].Kind)
	assert.Nil(t, symbols[0].ContainerName)
	assert.Equal(t, "f", symbols[1].Name)
	assert.Equal(t, protocol.SymbolKindMethod, symbols[1].Kind)
	require.NotNil(t, symbols[1].ContainerName)
	assert.Equal(t, "M", *symbols[1].ContainerName)
}

func TestWorkspaceSymbolsFilterByTitleCase(t *testing.T) {
	fileA := "/ws/a.fs"
	fileB := "/ws/b.fs"
	f := newFixture(t, project(fileA, fileB))
	f.docs.Open(fileA, "module FooBar", 1)
	f.docs.Open(fileB, "module Quux", 1)
	f.fake.Navigation[fileA] = []analyzer.NavigationItem{
		{Name: "FooBar", Kind: analyzer.ModuleDecl, Range: analyzer.Range{StartLine: 1, EndLine: 1}},
	}
	f.fake.Navigation[fileB] = []analyzer.NavigationItem{
		{Name: "Quux", Kind: analyzer.ModuleDecl, Range: analyzer.Range{StartLine: 1, EndLine: 1}},
	}

	symbols := f.features.WorkspaceSymbols(context.Background(), "fb")
	require.Len(t, symbols, 1)
	assert.Equal(t, "FooBar", symbols[0].Name)
}

func TestWorkspaceSymbolsHonorsLimit(t *testing.T) {
	file := "/ws/a.fs"
	f := newFixture(t, project(file))
	f.docs.Open(file, "module Lots", 1)
	var items []analyzer.NavigationItem
	for i := 0; i < 60; i++ {
		items = append(items, analyzer.NavigationItem{
			Name: "Lots", Kind: analyzer.ModuleDecl,
			Range: analyzer.Range{StartLine: 1, EndLine: 1},
		})
	}
	f.fake.Navigation[file] = items

	symbols := f.features.WorkspaceSymbols(context.Background(), "Lots")
	assert.Len(t, symbols, 50)
}
