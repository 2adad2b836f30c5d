package checker_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"fsls/internal/analyzer"
	"fsls/internal/analyzer/analyzertest"
	"fsls/internal/checker"
	"fsls/internal/docstore"
	"fsls/internal/notify"
	"fsls/internal/projects"
)

type notification struct {
	method string
	params any
}

type notifyLog struct {
	mu      sync.Mutex
	entries []notification
}

func (l *notifyLog) context() *glsp.Context {
	return &glsp.Context{Notify: func(method string, params any) {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.entries = append(l.entries, notification{method: method, params: params})
	}}
}

func (l *notifyLog) methods() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	methods := make([]string, len(l.entries))
	for i, e := range l.entries {
		methods[i] = e.method
	}
	return methods
}

func (l *notifyLog) published(uri protocol.DocumentUri) []protocol.PublishDiagnosticsParams {
	l.mu.Lock()
	defer l.mu.Unlock()
	var params []protocol.PublishDiagnosticsParams
	for _, e := range l.entries {
		if e.method != protocol.ServerTextDocumentPublishDiagnostics {
			continue
		}
		p, ok := e.params.(protocol.PublishDiagnosticsParams)
		if ok && p.URI == uri {
			params = append(params, p)
		}
	}
	return params
}

func (l *notifyLog) countMethod(method string) int {
	n := 0
	for _, m := range l.methods() {
		if m == method {
			n++
		}
	}
	return n
}

type stubLoader struct {
	mu      sync.Mutex
	options map[string]*analyzer.ProjectOptions
	loads   map[string]int
}

func (l *stubLoader) Load(path string) (*analyzer.ProjectOptions, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loads[path]++
	if opts, ok := l.options[path]; ok {
		return opts, nil
	}
	return nil, &projects.LoadError{Path: path}
}

type fixture struct {
	docs   *docstore.Store
	graph  *projects.Graph
	fake   *analyzertest.Fake
	loader *stubLoader
	orch   *checker.Orchestrator
	log    *notifyLog
}

func newFixture(t *testing.T, options ...*analyzer.ProjectOptions) *fixture {
	t.Helper()
	loader := &stubLoader{
		options: make(map[string]*analyzer.ProjectOptions),
		loads:   make(map[string]int),
	}
	for _, opts := range options {
		loader.options[opts.ProjectFile] = opts
	}
	f := &fixture{
		docs:   docstore.NewStore(),
		fake:   analyzertest.NewFake(),
		loader: loader,
		log:    &notifyLog{},
	}
	f.graph = projects.NewGraph(loader, nil)
	for _, opts := range options {
		f.graph.PutProjectFile(opts.ProjectFile)
	}
	client := notify.NewClient()
	client.Capture(f.log.context())
	f.orch = checker.NewOrchestrator(f.docs, f.graph, f.fake, client)
	t.Cleanup(f.orch.CancelDebounce)
	return f
}

func singleFileProject(file string) *analyzer.ProjectOptions {
	return &analyzer.ProjectOptions{
		ProjectFile: filepath.Join(filepath.Dir(file), "test.fsproj"),
		SourceFiles: []string{file},
	}
}

func TestCheckPublishesCombinedDiagnostics(t *testing.T) {
	file := "/ws/a.fs"
	f := newFixture(t, singleFileProject(file))
	f.docs.Open(file, "let x = 1 +", 3)
	f.fake.ParseDiags[file] = []analyzer.Diagnostic{analyzer.TopLevelDiagnostic(file, "unexpected end of input")}
	f.fake.CheckDiags[file] = []analyzer.Diagnostic{analyzer.TopLevelDiagnostic(file, "type mismatch")}

	result, err := f.orch.Check(context.Background(), file)
	require.NoError(t, err)
	require.NotNil(t, result.Check)

	published := f.log.published(notify.FileURI(file))
	require.Len(t, published, 1)
	assert.Len(t, published[0].Diagnostics, 2)

	calls := f.fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, int32(3), calls[0].Version, "checked at the document's current version")
}

func TestCheckReusesCacheAtMatchingVersion(t *testing.T) {
	file := "/ws/a.fs"
	f := newFixture(t, singleFileProject(file))
	f.docs.Open(file, "let x = 1", 1)

	_, err := f.orch.Check(context.Background(), file)
	require.NoError(t, err)
	_, err = f.orch.Check(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, 1, f.fake.CheckCount(file), "second check served from cache")

	require.NoError(t, f.docs.Change(file, 2, []docstore.Edit{{Text: "let x = 2"}}))
	_, err = f.orch.Check(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, 2, f.fake.CheckCount(file), "stale cache forces a fresh check")
}

func TestQuickAcceptsStaleCache(t *testing.T) {
	file := "/ws/a.fs"
	f := newFixture(t, singleFileProject(file))
	f.docs.Open(file, "let x = 1", 1)

	_, err := f.orch.Check(context.Background(), file)
	require.NoError(t, err)
	require.NoError(t, f.docs.Change(file, 2, []docstore.Edit{{Text: "let x = 2"}}))

	_, err = f.orch.Quick(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, 1, f.fake.CheckCount(file))
}

func TestForceAlwaysRechecks(t *testing.T) {
	file := "/ws/a.fs"
	f := newFixture(t, singleFileProject(file))
	f.docs.Open(file, "let x = 1", 1)

	_, err := f.orch.Force(context.Background(), file)
	require.NoError(t, err)
	_, err = f.orch.Force(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, 2, f.fake.CheckCount(file))
}

func TestQuickMissingFileDiagnostic(t *testing.T) {
	file := "/ws/ghost.fs"
	f := newFixture(t, singleFileProject(file))

	_, err := f.orch.Quick(context.Background(), file)
	var diagErr *checker.DiagnosticsError
	require.True(t, errors.As(err, &diagErr))
	require.Len(t, diagErr.Diagnostics, 1)
	assert.Contains(t, diagErr.Diagnostics[0].Message, "no source file")
}

func TestCheckMissingFileStaysQuiet(t *testing.T) {
	file := "/ws/ghost.fs"
	f := newFixture(t, singleFileProject(file))

	_, err := f.orch.Check(context.Background(), file)
	var diagErr *checker.DiagnosticsError
	require.True(t, errors.As(err, &diagErr))
	assert.Empty(t, diagErr.Diagnostics)
}

func TestNoProjectOptionsFailsWithoutChecking(t *testing.T) {
	f := newFixture(t)
	f.docs.Open("/elsewhere/a.fs", "let x = 1", 1)

	_, err := f.orch.Check(context.Background(), "/elsewhere/a.fs")
	var diagErr *checker.DiagnosticsError
	require.True(t, errors.As(err, &diagErr))
	assert.Equal(t, 0, f.fake.CheckCount("/elsewhere/a.fs"))
}

func TestAbortedCheckPublishesParseDiagnostics(t *testing.T) {
	file := "/ws/a.fs"
	f := newFixture(t, singleFileProject(file))
	f.docs.Open(file, "let x =", 1)
	f.fake.ParseDiags[file] = []analyzer.Diagnostic{analyzer.TopLevelDiagnostic(file, "incomplete binding")}
	f.fake.Aborts[file] = true

	_, err := f.orch.Check(context.Background(), file)
	var diagErr *checker.DiagnosticsError
	require.True(t, errors.As(err, &diagErr))

	published := f.log.published(notify.FileURI(file))
	require.Len(t, published, 1)
	require.Len(t, published[0].Diagnostics, 1)
	assert.Contains(t, published[0].Diagnostics[0].Message, "incomplete binding")
}

func TestCloseFilePublishesOneEmptyList(t *testing.T) {
	file := "/ws/a.fs"
	f := newFixture(t, singleFileProject(file))
	f.docs.Open(file, "let x = 1", 1)
	f.orch.Invalidate(file)

	f.docs.Close(file)
	f.orch.CloseFile(file)

	published := f.log.published(notify.FileURI(file))
	require.Len(t, published, 1)
	assert.Empty(t, published[0].Diagnostics)

	// The pending entry is gone, so quiescence triggers nothing.
	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, 0, f.fake.CheckCount(file))
}

func TestDebouncedInvalidationsCheckOnceEach(t *testing.T) {
	fileA, fileB := "/ws/a.fs", "/ws/b.fs"
	options := &analyzer.ProjectOptions{
		ProjectFile: "/ws/test.fsproj",
		SourceFiles: []string{fileA, fileB},
	}
	f := newFixture(t, options)
	f.docs.Open(fileA, "let a = 1", 1)
	f.docs.Open(fileB, "let b = 2", 1)

	f.orch.Invalidate(fileA)
	f.orch.Invalidate(fileB)
	f.orch.Invalidate(fileA)

	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, 0, f.fake.CheckCount(fileA), "nothing runs inside the quiescence window")

	require.Eventually(t, func() bool {
		return f.fake.CheckCount(fileA) == 1 && f.fake.CheckCount(fileB) == 1
	}, 3*time.Second, 50*time.Millisecond)

	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, 1, f.fake.CheckCount(fileA), "each burst member is checked exactly once")
	assert.Equal(t, 1, f.fake.CheckCount(fileB))
}

func TestPauseBackgroundPostponesDebounce(t *testing.T) {
	file := "/ws/a.fs"
	f := newFixture(t, singleFileProject(file))
	f.docs.Open(file, "let x = 1", 1)

	f.orch.Invalidate(file)
	resume := f.orch.PauseBackground()

	time.Sleep(1300 * time.Millisecond)
	assert.Equal(t, 0, f.fake.CheckCount(file), "paused debounce must not fire")

	resume()
	require.Eventually(t, func() bool {
		return f.fake.CheckCount(file) == 1
	}, 3*time.Second, 50*time.Millisecond)
}

func TestCheckOnOpenBatchProgress(t *testing.T) {
	dir := t.TempDir()
	dep := filepath.Join(dir, "dep.fs")
	open := filepath.Join(dir, "open.fs")
	require.NoError(t, os.WriteFile(dep, []byte("module Dep"), 0o644))
	require.NoError(t, os.WriteFile(open, []byte("module Open"), 0o644))

	options := &analyzer.ProjectOptions{
		ProjectFile: filepath.Join(dir, "test.fsproj"),
		SourceFiles: []string{dep, open},
	}
	f := newFixture(t, options)
	f.docs.Open(open, "module Open", 1)
	f.fake.DepFiles[open] = []string{dep}

	f.orch.CheckOnOpen(context.Background(), open)

	assert.Equal(t, 1, f.log.countMethod("fsharp/startProgress"))
	assert.Equal(t, 2, f.log.countMethod("fsharp/incrementProgress"))
	assert.Equal(t, 1, f.log.countMethod("fsharp/endProgress"))

	// Everything is recorded as checked now, so a re-open needs no bar.
	f.orch.CheckOnOpen(context.Background(), open)
	assert.Equal(t, 1, f.log.countMethod("fsharp/startProgress"))
}

func TestCheckOnOpenSingleFileSuppressesProgress(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.fs")
	require.NoError(t, os.WriteFile(file, []byte("let x = 1"), 0o644))

	f := newFixture(t, singleFileProject(file))
	f.docs.Open(file, "let x = 1", 1)

	f.orch.CheckOnOpen(context.Background(), file)

	assert.Equal(t, 0, f.log.countMethod("fsharp/startProgress"))
	published := f.log.published(notify.FileURI(file))
	require.Len(t, published, 1)
	assert.Empty(t, published[0].Diagnostics)
}

func TestCheckOnSaveRechecksVisibleOpenFiles(t *testing.T) {
	shared := "/ws/lib/shared.fs"
	consumer := "/ws/app/consumer.fs"
	unrelated := "/ws/other/unrelated.fs"
	lib := &analyzer.ProjectOptions{
		ProjectFile: "/ws/lib/lib.fsproj",
		SourceFiles: []string{shared},
	}
	app := &analyzer.ProjectOptions{
		ProjectFile:        "/ws/app/app.fsproj",
		SourceFiles:        []string{consumer},
		ReferencedProjects: []*analyzer.ProjectOptions{lib},
	}
	other := &analyzer.ProjectOptions{
		ProjectFile: "/ws/other/other.fsproj",
		SourceFiles: []string{unrelated},
	}
	f := newFixture(t, lib, app, other)
	f.docs.Open(consumer, "let c = Shared.value", 1)
	f.docs.Open(unrelated, "let u = 1", 1)

	f.orch.CheckOnSave(context.Background(), shared)

	assert.Equal(t, 1, f.fake.CheckCount(consumer))
	assert.Equal(t, 0, f.fake.CheckCount(unrelated))
	assert.Equal(t, 0, f.log.countMethod("fsharp/startProgress"), "bar of size one stays hidden")
	assert.Len(t, f.log.published(notify.FileURI(consumer)), 1)
}

func TestMaxMemorySendsWarning(t *testing.T) {
	f := newFixture(t)
	f.fake.FireMaxMemory()

	require.Equal(t, 1, f.log.countMethod(protocol.ServerWindowShowMessage))
	f.log.mu.Lock()
	defer f.log.mu.Unlock()
	for _, e := range f.log.entries {
		if e.method == protocol.ServerWindowShowMessage {
			params := e.params.(protocol.ShowMessageParams)
			assert.Equal(t, protocol.MessageTypeWarning, params.Type)
		}
	}
}

func TestWatchedProjectChangeReloadsAndInvalidates(t *testing.T) {
	file := "/ws/a.fs"
	options := singleFileProject(file)
	f := newFixture(t, options)
	f.docs.Open(file, "let x = 1", 1)

	before := func() int {
		f.loader.mu.Lock()
		defer f.loader.mu.Unlock()
		return f.loader.loads[options.ProjectFile]
	}()
	f.orch.HandleWatchedFile(options.ProjectFile, projects.FileChanged)

	f.loader.mu.Lock()
	after := f.loader.loads[options.ProjectFile]
	f.loader.mu.Unlock()
	assert.Equal(t, before+1, after)

	require.Eventually(t, func() bool {
		return f.fake.CheckCount(file) == 1
	}, 3*time.Second, 50*time.Millisecond, "open files are re-checked after the debounce")
}
