package analyzer

import (
	"context"
	"sync"
	"time"
)

// Gateway is the compiler front-end as seen by the server core. All calls may
// be long-running and must be safe to issue from multiple goroutines; the
// underlying compiler is free to serialize calls for the same file.
type Gateway interface {
	// Parse runs a syntax-only parse of one file.
	Parse(ctx context.Context, file, text string, opts ParsingOptions) (*ParseResult, error)

	// Check parses and type-checks one file at the given version inside its
	// project. An aborted outcome still carries valid parse diagnostics.
	Check(ctx context.Context, file string, version int32, text string, options *ProjectOptions) (*ParseResult, CheckOutcome, error)

	// TryCached returns the most recent parse/check pair for the file under
	// these options, if the compiler still retains one.
	TryCached(file string, options *ProjectOptions) (*CachedResult, bool)

	// ScriptOptions derives single-file project options for a script.
	ScriptOptions(ctx context.Context, file, text string, mtime time.Time) (*ProjectOptions, []Diagnostic, error)

	// ParsingOptionsOf projects full compile options down to parse options.
	ParsingOptionsOf(options *ProjectOptions) ParsingOptions

	// UsesInFile lists every use of the symbol within the checked file.
	UsesInFile(check CheckResult, symbol *Symbol) []*SymbolUse

	// SymbolAt resolves the symbol whose identifier ends at endCol on the
	// given 1-based line, using the qualified names under the cursor.
	SymbolAt(check CheckResult, line, endCol int, lineText string, names []string) (*SymbolUse, bool)

	// Declarations lists completion candidates at a position.
	Declarations(ctx context.Context, parse *ParseResult, line int, lineText string, partial PartialLongName) (*DeclarationList, error)

	// Methods returns the overload group for a call site.
	Methods(check CheckResult, line, endCol int, lineText string, names []string) (*MethodGroup, bool)

	// ToolTip renders hover text for the identifier at a position. Line and
	// column are 1-based here, matching the compiler's tooltip entry point.
	ToolTip(check CheckResult, line, col int, lineText string, names []string) (*ToolTip, bool)

	// OnBeforeBackgroundCheck registers a callback fired when the compiler
	// begins checking a file in the background. Callbacks run on the
	// compiler's reporting goroutine and must not block.
	OnBeforeBackgroundCheck(fn func(file string))

	// OnMaxMemory registers a callback fired when the compiler crosses its
	// memory threshold.
	OnMaxMemory(fn func())
}

// Events is a subscription registry Gateway implementations can embed to
// satisfy the two callback registrations.
type Events struct {
	mu               sync.Mutex
	beforeBackground []func(file string)
	maxMemory        []func()
}

func (e *Events) OnBeforeBackgroundCheck(fn func(file string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.beforeBackground = append(e.beforeBackground, fn)
}

func (e *Events) OnMaxMemory(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.maxMemory = append(e.maxMemory, fn)
}

// FireBeforeBackgroundCheck invokes all registered callbacks in order.
func (e *Events) FireBeforeBackgroundCheck(file string) {
	e.mu.Lock()
	fns := append([]func(string){}, e.beforeBackground...)
	e.mu.Unlock()
	for _, fn := range fns {
		fn(file)
	}
}

// FireMaxMemory invokes all registered callbacks in order.
func (e *Events) FireMaxMemory() {
	e.mu.Lock()
	fns := append([]func(){}, e.maxMemory...)
	e.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
