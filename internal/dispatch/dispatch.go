// Package dispatch turns cursor positions and recent parse/check results
// into LSP feature responses. Features fail soft: a missing result is an
// empty response, never a protocol error.
package dispatch

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"fsls/internal/analyzer"
	"fsls/internal/checker"
	"fsls/internal/cursor"
	"fsls/internal/docstore"
	"fsls/internal/notify"
	"fsls/internal/projects"
)

// How many files a reference scan checks concurrently.
const referenceScanParallelism = 4

type Dispatcher struct {
	docs   *docstore.Store
	graph  *projects.Graph
	gw     analyzer.Gateway
	checks *checker.Orchestrator
	client *notify.Client
	logger commonlog.Logger

	// The most recent completion list, kept for resolve requests.
	// Single slot, last writer wins.
	lastCompletion atomic.Pointer[analyzer.DeclarationList]
}

func NewDispatcher(docs *docstore.Store, graph *projects.Graph, gw analyzer.Gateway, checks *checker.Orchestrator, client *notify.Client) *Dispatcher {
	return &Dispatcher{
		docs:   docs,
		graph:  graph,
		gw:     gw,
		checks: checks,
		client: client,
		logger: commonlog.GetLogger("fsls.dispatch"),
	}
}

// lineAt reads one line of the file's current content.
func (d *Dispatcher) lineAt(file string, line int) (string, bool) {
	text, _, ok := d.checks.ContentOf(file)
	if !ok {
		return "", false
	}
	return docstore.LineOf(text, line), true
}

// symbolAt resolves the symbol whose identifier lies under the position.
func (d *Dispatcher) symbolAt(ctx context.Context, file string, line, character int) (*analyzer.SymbolUse, bool) {
	result, err := d.checks.Check(ctx, file)
	if err != nil {
		return nil, false
	}
	lineText, ok := d.lineAt(file, line)
	if !ok {
		return nil, false
	}
	endCol, ok := cursor.EndOfIdentifierUnderCursor(lineText, character)
	if !ok {
		return nil, false
	}
	names := cursor.NamesUnderCursor(lineText, endCol-1)
	return d.gw.SymbolAt(result.Check, line+1, endCol, lineText, names)
}

// findAllSymbolUses scans every source file the symbol could be visible in
// and collects its uses, under a progress bar sized to the scan.
func (d *Dispatcher) findAllSymbolUses(ctx context.Context, symbol *analyzer.Symbol) []*analyzer.SymbolUse {
	var declFile string
	var declProject *analyzer.ProjectOptions
	if symbol.Declaration != nil {
		declFile = symbol.Declaration.File
		if options, err := d.graph.Find(declFile); err == nil {
			declProject = options
		}
	}

	seen := make(map[string]bool)
	var survivors []string
	for _, p := range d.graph.OpenProjects() {
		for _, f := range p.SourceFiles {
			key := projects.Normalize(f)
			if seen[key] {
				continue
			}
			seen[key] = true
			if !d.mayContain(symbol, declFile, declProject, f) {
				continue
			}
			survivors = append(survivors, f)
		}
	}
	sort.Strings(survivors)

	bar := d.client.StartProgress("Finding uses of "+symbol.Name, len(survivors))
	defer bar.End()

	var mu sync.Mutex
	var uses []*analyzer.SymbolUse
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(referenceScanParallelism)
	for _, survivor := range survivors {
		file := survivor
		group.Go(func() error {
			bar.Increment(filepath.Base(file))
			result, err := d.checks.Check(ctx, file)
			if err != nil {
				return nil
			}
			found := d.gw.UsesInFile(result.Check, symbol)
			mu.Lock()
			uses = append(uses, found...)
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()
	return uses
}

// mayContain filters candidate files by the symbol's accessibility and a
// cheap textual pre-scan. The accessibility flags are the compiler's; files
// hidden by implicit privacy are accepted and filtered by the check itself.
func (d *Dispatcher) mayContain(symbol *analyzer.Symbol, declFile string, declProject *analyzer.ProjectOptions, file string) bool {
	switch {
	case symbol.IsPrivate:
		if declFile == "" || !projects.SamePath(file, declFile) {
			return false
		}
	case symbol.IsInternal:
		if declProject == nil {
			return false
		}
		options, err := d.graph.Find(file)
		if err != nil || !projects.SamePath(options.ProjectFile, declProject.ProjectFile) {
			return false
		}
		if !d.graph.Visible(declFile, file) {
			return false
		}
	default:
		if declFile != "" && !d.graph.Visible(declFile, file) {
			return false
		}
	}
	text, _, ok := d.checks.ContentOf(file)
	return ok && strings.Contains(text, symbol.Name)
}

// refineRange narrows a compiler-reported range to the last occurrence of
// the display name on its final line, so a rename replaces the identifier
// and not the whole declaration.
func (d *Dispatcher) refineRange(symbol *analyzer.Symbol, file string, rng analyzer.Range) analyzer.Range {
	lineText, ok := d.lineAt(file, rng.EndLine-1)
	if !ok {
		return rng
	}
	startCol := 0
	if rng.StartLine == rng.EndLine {
		startCol = rng.StartColumn
	}
	idx := strings.LastIndex(lineText, symbol.Name)
	if idx < 0 {
		return rng
	}
	col := cursor.UTF16Len(lineText[:idx])
	if col < startCol {
		return rng
	}
	return analyzer.Range{
		StartLine:   rng.EndLine,
		StartColumn: col,
		EndLine:     rng.EndLine,
		EndColumn:   col + cursor.UTF16Len(symbol.Name),
	}
}
