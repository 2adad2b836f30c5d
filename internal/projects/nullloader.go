package projects

import "fsls/internal/analyzer"

// NullLoader stands in until an embedder binds a project cracking service.
// Every load fails with an explanatory diagnostic.
type NullLoader struct{}

var _ Loader = NullLoader{}

func (NullLoader) Load(path string) (*analyzer.ProjectOptions, error) {
	return nil, &LoadError{
		Path: path,
		Diagnostics: []analyzer.Diagnostic{
			analyzer.TopLevelDiagnostic(path, "no project loader is configured"),
		},
	}
}
