package analyzer

import (
	"context"
	"time"
)

// NullGateway stands in until an embedder binds a real compiler host.
// Checks abort with a single explanatory diagnostic; queries answer empty.
type NullGateway struct {
	Events
}

var _ Gateway = (*NullGateway)(nil)

func (*NullGateway) Parse(ctx context.Context, file, text string, opts ParsingOptions) (*ParseResult, error) {
	return &ParseResult{File: file}, nil
}

func (*NullGateway) Check(ctx context.Context, file string, version int32, text string, options *ProjectOptions) (*ParseResult, CheckOutcome, error) {
	parse := &ParseResult{
		File: file,
		Diagnostics: []Diagnostic{
			TopLevelDiagnostic(file, "no compiler front-end is configured"),
		},
	}
	return parse, CheckOutcome{Aborted: true}, nil
}

func (*NullGateway) TryCached(file string, options *ProjectOptions) (*CachedResult, bool) {
	return nil, false
}

func (*NullGateway) ScriptOptions(ctx context.Context, file, text string, mtime time.Time) (*ProjectOptions, []Diagnostic, error) {
	return &ProjectOptions{
		ProjectFile: file,
		SourceFiles: []string{file},
		IsScript:    true,
		LoadTime:    mtime,
	}, nil, nil
}

func (*NullGateway) ParsingOptionsOf(options *ProjectOptions) ParsingOptions {
	return ParsingOptions{SourceFiles: options.SourceFiles, IsScript: options.IsScript}
}

func (*NullGateway) UsesInFile(check CheckResult, symbol *Symbol) []*SymbolUse {
	return nil
}

func (*NullGateway) SymbolAt(check CheckResult, line, endCol int, lineText string, names []string) (*SymbolUse, bool) {
	return nil, false
}

func (*NullGateway) Declarations(ctx context.Context, parse *ParseResult, line int, lineText string, partial PartialLongName) (*DeclarationList, error) {
	return &DeclarationList{}, nil
}

func (*NullGateway) Methods(check CheckResult, line, endCol int, lineText string, names []string) (*MethodGroup, bool) {
	return nil, false
}

func (*NullGateway) ToolTip(check CheckResult, line, col int, lineText string, names []string) (*ToolTip, bool) {
	return nil, false
}
