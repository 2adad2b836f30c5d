// Package analyzertest provides a scriptable Gateway for exercising the
// orchestrator and feature dispatcher without a real compiler.
package analyzertest

import (
	"context"
	"sync"
	"time"

	"fsls/internal/analyzer"
)

// CheckCall records one Check invocation.
type CheckCall struct {
	File    string
	Version int32
}

// CheckResult is the fake's concrete check result.
type CheckResult struct {
	File  string
	Diags []analyzer.Diagnostic
}

func (r *CheckResult) Diagnostics() []analyzer.Diagnostic { return r.Diags }

// Fake is an in-memory Gateway scripted through its public maps. Zero value
// maps mean "nothing to report". All access is serialized.
type Fake struct {
	analyzer.Events

	mu sync.Mutex

	// Scripted outcomes, keyed by file unless noted.
	ParseDiags map[string][]analyzer.Diagnostic
	CheckDiags map[string][]analyzer.Diagnostic
	Navigation map[string][]analyzer.NavigationItem
	Aborts     map[string]bool
	// Files the compiler revisits (in order) before checking the key;
	// each fires the before-background-check event.
	DepFiles map[string][]string

	// Symbol queries, keyed by identifier name.
	Symbols map[string]*analyzer.Symbol
	// Uses per file, consulted by UsesInFile and SymbolAt.
	Uses map[string][]*analyzer.SymbolUse

	Tips         map[string]analyzer.ToolTip
	MethodGroups map[string]*analyzer.MethodGroup
	Decls        []analyzer.DeclarationItem

	// Recorded completion context of the last Declarations call.
	LastPartial analyzer.PartialLongName

	cache map[string]*analyzer.CachedResult
	calls []CheckCall
}

func NewFake() *Fake {
	return &Fake{
		ParseDiags:   make(map[string][]analyzer.Diagnostic),
		CheckDiags:   make(map[string][]analyzer.Diagnostic),
		Navigation:   make(map[string][]analyzer.NavigationItem),
		Aborts:       make(map[string]bool),
		DepFiles:     make(map[string][]string),
		Symbols:      make(map[string]*analyzer.Symbol),
		Uses:         make(map[string][]*analyzer.SymbolUse),
		Tips:         make(map[string]analyzer.ToolTip),
		MethodGroups: make(map[string]*analyzer.MethodGroup),
		cache:        make(map[string]*analyzer.CachedResult),
	}
}

var _ analyzer.Gateway = (*Fake)(nil)

// Calls snapshots every Check invocation so far.
func (f *Fake) Calls() []CheckCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]CheckCall{}, f.calls...)
}

// CheckCount counts Check invocations for one file.
func (f *Fake) CheckCount(file string) int {
	n := 0
	for _, call := range f.Calls() {
		if call.File == file {
			n++
		}
	}
	return n
}

// Seed places a cached result for a file so cache-reusing tiers can hit.
func (f *Fake) Seed(file string, version int32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache[file] = &analyzer.CachedResult{
		Parse:   &analyzer.ParseResult{File: file, Diagnostics: f.ParseDiags[file], Navigation: f.Navigation[file]},
		Check:   &CheckResult{File: file, Diags: f.CheckDiags[file]},
		Version: version,
	}
}

func (f *Fake) Parse(ctx context.Context, file, text string, opts analyzer.ParsingOptions) (*analyzer.ParseResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &analyzer.ParseResult{
		File:        file,
		Diagnostics: f.ParseDiags[file],
		Navigation:  f.Navigation[file],
	}, nil
}

func (f *Fake) Check(ctx context.Context, file string, version int32, text string, options *analyzer.ProjectOptions) (*analyzer.ParseResult, analyzer.CheckOutcome, error) {
	f.mu.Lock()
	deps := append([]string{}, f.DepFiles[file]...)
	f.calls = append(f.calls, CheckCall{File: file, Version: version})
	parse := &analyzer.ParseResult{
		File:        file,
		Diagnostics: f.ParseDiags[file],
		Navigation:  f.Navigation[file],
	}
	aborted := f.Aborts[file]
	f.mu.Unlock()

	for _, dep := range deps {
		f.FireBeforeBackgroundCheck(dep)
	}
	f.FireBeforeBackgroundCheck(file)

	if aborted {
		return parse, analyzer.CheckOutcome{Aborted: true}, nil
	}

	f.mu.Lock()
	check := &CheckResult{File: file, Diags: f.CheckDiags[file]}
	f.cache[file] = &analyzer.CachedResult{Parse: parse, Check: check, Version: version}
	f.mu.Unlock()
	return parse, analyzer.CheckOutcome{Result: check}, nil
}

func (f *Fake) TryCached(file string, options *analyzer.ProjectOptions) (*analyzer.CachedResult, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cached, ok := f.cache[file]
	return cached, ok
}

func (f *Fake) ScriptOptions(ctx context.Context, file, text string, mtime time.Time) (*analyzer.ProjectOptions, []analyzer.Diagnostic, error) {
	return &analyzer.ProjectOptions{
		ProjectFile: file,
		SourceFiles: []string{file},
		IsScript:    true,
		LoadTime:    mtime,
	}, nil, nil
}

func (f *Fake) ParsingOptionsOf(options *analyzer.ProjectOptions) analyzer.ParsingOptions {
	return analyzer.ParsingOptions{SourceFiles: options.SourceFiles, IsScript: options.IsScript}
}

func (f *Fake) UsesInFile(check analyzer.CheckResult, symbol *analyzer.Symbol) []*analyzer.SymbolUse {
	result, ok := check.(*CheckResult)
	if !ok {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var found []*analyzer.SymbolUse
	for _, use := range f.Uses[result.File] {
		if use.Symbol.FullName == symbol.FullName {
			found = append(found, use)
		}
	}
	return found
}

func (f *Fake) SymbolAt(check analyzer.CheckResult, line, endCol int, lineText string, names []string) (*analyzer.SymbolUse, bool) {
	result, ok := check.(*CheckResult)
	if !ok || len(names) == 0 {
		return nil, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	name := names[len(names)-1]
	for _, use := range f.Uses[result.File] {
		if use.Symbol.Name == name && use.Range.StartLine == line {
			return use, true
		}
	}
	if symbol, ok := f.Symbols[name]; ok {
		return &analyzer.SymbolUse{Symbol: symbol, File: result.File}, true
	}
	return nil, false
}

func (f *Fake) Declarations(ctx context.Context, parse *analyzer.ParseResult, line int, lineText string, partial analyzer.PartialLongName) (*analyzer.DeclarationList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastPartial = partial
	return &analyzer.DeclarationList{Items: append([]analyzer.DeclarationItem{}, f.Decls...)}, nil
}

func (f *Fake) Methods(check analyzer.CheckResult, line, endCol int, lineText string, names []string) (*analyzer.MethodGroup, bool) {
	if len(names) == 0 {
		return nil, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	group, ok := f.MethodGroups[names[len(names)-1]]
	return group, ok
}

func (f *Fake) ToolTip(check analyzer.CheckResult, line, col int, lineText string, names []string) (*analyzer.ToolTip, bool) {
	if len(names) == 0 {
		return nil, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	tip, ok := f.Tips[names[len(names)-1]]
	if !ok {
		return nil, false
	}
	return &tip, true
}
