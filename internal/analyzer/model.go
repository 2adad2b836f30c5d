// Package analyzer defines the contract between the server core and the
// compiler front-end. The compiler itself is an external collaborator; this
// package carries only the data model the core needs to route requests and
// interpret results.
package analyzer

import "time"

// Range is a compiler source range. Lines are 1-based, columns are 0-based
// UTF-16 code units, matching the compiler's own addressing.
type Range struct {
	StartLine   int
	StartColumn int
	EndLine     int
	EndColumn   int
}

// Location is a range inside a named source file.
type Location struct {
	File  string
	Range Range
}

// Severity of a compiler diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
	SeverityHint
)

// Diagnostic is one parse or check message for a file.
type Diagnostic struct {
	File     string
	Range    Range
	Severity Severity
	Message  string
	Source   string
}

// TopLevelDiagnostic places a message at the top of a file.
func TopLevelDiagnostic(file, message string) Diagnostic {
	return Diagnostic{
		File:     file,
		Range:    Range{StartLine: 1, StartColumn: 0, EndLine: 1, EndColumn: 0},
		Severity: SeverityError,
		Message:  message,
		Source:   "fsls",
	}
}

// ProjectOptions is the compilation context for a set of source files. It is
// produced by the project loader, or by the compiler itself for script files,
// and treated as opaque by everything except the project graph.
type ProjectOptions struct {
	ProjectFile        string
	SourceFiles        []string
	OtherOptions       []string
	ReferencedProjects []*ProjectOptions
	IsScript           bool
	LoadTime           time.Time
}

// ParsingOptions configures a syntax-only parse.
type ParsingOptions struct {
	SourceFiles        []string
	ConditionalDefines []string
	IsScript           bool
}

// DeclarationKind classifies an entry in the navigation tree.
type DeclarationKind int

const (
	NamespaceDecl DeclarationKind = iota
	ModuleDecl
	ModuleFileDecl
	TypeDecl
	ExnDecl
	MethodDecl
	PropertyDecl
	FieldDecl
	OtherDecl
)

// NavigationItem is one declaration in a file's navigation tree.
type NavigationItem struct {
	Name   string
	Kind   DeclarationKind
	Range  Range
	Nested []NavigationItem
}

// ParseResult is the syntactic analysis of one file.
type ParseResult struct {
	File        string
	Diagnostics []Diagnostic
	Navigation  []NavigationItem
}

// CheckResult is the semantic analysis of one file. Its representation is
// owned by the compiler; the core only passes it back into Gateway queries.
type CheckResult interface {
	Diagnostics() []Diagnostic
}

// CheckOutcome is the result of a check request: either a completed
// CheckResult or an aborted run whose parse diagnostics still stand.
type CheckOutcome struct {
	Result  CheckResult
	Aborted bool
}

// CachedResult is a previously computed parse/check pair for some version.
type CachedResult struct {
	Parse   *ParseResult
	Check   CheckResult
	Version int32
}

// Symbol is a resolved language entity. Treated as immutable once returned
// by the compiler, so it may be shared freely across tasks.
type Symbol struct {
	Name        string
	FullName    string
	IsPrivate   bool
	IsInternal  bool
	Declaration *Location
}

// SymbolUse is one occurrence of a symbol in a file.
type SymbolUse struct {
	Symbol       *Symbol
	File         string
	Range        Range
	IsDefinition bool
}

// GlyphKind classifies a completion entry the way the compiler does.
type GlyphKind int

const (
	GlyphField GlyphKind = iota
	GlyphProperty
	GlyphMethod
	GlyphExtensionMethod
	GlyphArgument
	GlyphEvent
	GlyphOther
)

// DeclarationItem is one completion candidate.
type DeclarationItem struct {
	Name        string
	FullName    string
	Glyph       GlyphKind
	Description string
}

// DeclarationList is the compiler's answer to a completion request.
type DeclarationList struct {
	Items []DeclarationItem
}

// PartialLongName is the qualified-name context at a completion point:
// the dotted qualifiers already typed plus the partial identifier under the
// cursor.
type PartialLongName struct {
	Qualifiers []string
	Partial    string
}

// MethodParameter describes one parameter of an overload.
type MethodParameter struct {
	Name    string
	Display string
}

// MethodOverload is one candidate signature at a call site.
type MethodOverload struct {
	Parameters []MethodParameter
	ToolTip    ToolTip
}

// MethodGroup is the overload set for a call site.
type MethodGroup struct {
	Name      string
	Overloads []MethodOverload
}

// ToolTipElement is one signature with its documentation.
type ToolTipElement struct {
	Signature     string
	Documentation string
}

// ToolTip is the hover payload for a position.
type ToolTip struct {
	Elements []ToolTipElement
}
