package notify

import (
	"net/url"
	"path/filepath"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"fsls/internal/analyzer"
)

// FileURI renders an absolute path as a file:// URI.
func FileURI(path string) protocol.DocumentUri {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Clean(path))}
	return protocol.DocumentUri(u.String())
}

// ProtoRange converts a compiler range (1-based lines, 0-based UTF-16
// columns) to an LSP range.
func ProtoRange(r analyzer.Range) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: line0(r.StartLine), Character: col0(r.StartColumn)},
		End:   protocol.Position{Line: line0(r.EndLine), Character: col0(r.EndColumn)},
	}
}

func line0(line int) protocol.UInteger {
	if line > 0 {
		return protocol.UInteger(line - 1)
	}
	return 0
}

func col0(col int) protocol.UInteger {
	if col > 0 {
		return protocol.UInteger(col)
	}
	return 0
}

// ProtoLocation converts a compiler location to an LSP location.
func ProtoLocation(loc analyzer.Location) protocol.Location {
	return protocol.Location{URI: FileURI(loc.File), Range: ProtoRange(loc.Range)}
}

// ProtoDiagnostics converts compiler diagnostics to LSP diagnostics.
func ProtoDiagnostics(diagnostics []analyzer.Diagnostic) []protocol.Diagnostic {
	converted := make([]protocol.Diagnostic, 0, len(diagnostics))
	for _, d := range diagnostics {
		severity := protoSeverity(d.Severity)
		diag := protocol.Diagnostic{
			Range:    ProtoRange(d.Range),
			Severity: &severity,
			Message:  d.Message,
		}
		if d.Source != "" {
			source := d.Source
			diag.Source = &source
		}
		converted = append(converted, diag)
	}
	return converted
}

func protoSeverity(s analyzer.Severity) protocol.DiagnosticSeverity {
	switch s {
	case analyzer.SeverityWarning:
		return protocol.DiagnosticSeverityWarning
	case analyzer.SeverityInfo:
		return protocol.DiagnosticSeverityInformation
	case analyzer.SeverityHint:
		return protocol.DiagnosticSeverityHint
	default:
		return protocol.DiagnosticSeverityError
	}
}
