// Package checker decides when the compiler runs: on demand for foreground
// requests, debounced for background re-checks after edits, and batched when
// a file opens. It also owns diagnostic publication and progress reporting.
package checker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tliron/commonlog"

	"fsls/internal/analyzer"
	"fsls/internal/docstore"
	"fsls/internal/notify"
	"fsls/internal/projects"
)

// The quiescence window between the last edit and a background re-check.
const debounceDelay = time.Second

// DiagnosticsError is the failure arm of a check: the diagnostics that stand
// in for a result. An empty list means there is nothing to say.
type DiagnosticsError struct {
	Diagnostics []analyzer.Diagnostic
}

func (e *DiagnosticsError) Error() string {
	return fmt.Sprintf("check failed with %d diagnostics", len(e.Diagnostics))
}

// Result is a completed parse/check pair for one file.
type Result struct {
	Parse *analyzer.ParseResult
	Check analyzer.CheckResult
}

type tier int

const (
	tierForce tier = iota
	tierCheck
	tierQuick
)

// Orchestrator schedules compiler work over the document store and project
// graph and reports outcomes to the client.
type Orchestrator struct {
	docs   *docstore.Store
	graph  *projects.Graph
	gw     analyzer.Gateway
	client *notify.Client
	logger commonlog.Logger

	mu             sync.Mutex
	pending        map[string]struct{}
	cancelDebounce context.CancelFunc

	// Serializes background batches so checks never overlap themselves.
	runMu sync.Mutex

	// path → mtime recorded when the compiler last visited the file.
	// Advisory only: sizes the on-open progress bar.
	checkedOnDisk sync.Map

	progressMu sync.Mutex
	progress   *notify.Bar
}

func NewOrchestrator(docs *docstore.Store, graph *projects.Graph, gw analyzer.Gateway, client *notify.Client) *Orchestrator {
	o := &Orchestrator{
		docs:    docs,
		graph:   graph,
		gw:      gw,
		client:  client,
		logger:  commonlog.GetLogger("fsls.checker"),
		pending: make(map[string]struct{}),
	}
	gw.OnBeforeBackgroundCheck(o.beforeBackgroundCheck)
	gw.OnMaxMemory(func() {
		client.ShowWarning("The compiler is approaching its memory limit; consider closing unused projects.")
	})
	return o
}

// beforeBackgroundCheck runs on the compiler's reporting goroutine: record
// the on-disk state of the file and tick the active progress bar.
func (o *Orchestrator) beforeBackgroundCheck(file string) {
	mtime := time.Time{}
	if info, err := os.Stat(file); err == nil {
		mtime = info.ModTime()
	}
	o.checkedOnDisk.Store(projects.Normalize(file), mtime)

	o.progressMu.Lock()
	bar := o.progress
	o.progressMu.Unlock()
	if bar != nil {
		bar.Increment(filepath.Base(file))
	}
}

func (o *Orchestrator) setProgress(bar *notify.Bar) {
	o.progressMu.Lock()
	o.progress = bar
	o.progressMu.Unlock()
}

// Force re-checks file at its current version, ignoring cached results.
func (o *Orchestrator) Force(ctx context.Context, file string) (*Result, error) {
	return o.run(ctx, file, tierForce)
}

// Check reuses the cached result when it matches the current version and
// falls back to a fresh check otherwise.
func (o *Orchestrator) Check(ctx context.Context, file string) (*Result, error) {
	return o.run(ctx, file, tierCheck)
}

// Quick accepts any cached result, stale or not. Responsiveness beats
// freshness for completion-style features.
func (o *Orchestrator) Quick(ctx context.Context, file string) (*Result, error) {
	return o.run(ctx, file, tierQuick)
}

func (o *Orchestrator) run(ctx context.Context, file string, t tier) (*Result, error) {
	options, err := o.graph.Find(file)
	if err != nil {
		var loadErr *projects.LoadError
		if errors.As(err, &loadErr) {
			return nil, &DiagnosticsError{Diagnostics: loadErr.Diagnostics}
		}
		return nil, &DiagnosticsError{}
	}

	text, version, found := o.ContentOf(file)
	if !found {
		if t == tierQuick {
			return nil, &DiagnosticsError{Diagnostics: []analyzer.Diagnostic{
				analyzer.TopLevelDiagnostic(file, "no source file "+file),
			}}
		}
		return nil, &DiagnosticsError{}
	}

	if t != tierForce {
		if cached, ok := o.gw.TryCached(file, options); ok {
			if t == tierQuick {
				return &Result{Parse: cached.Parse, Check: cached.Check}, nil
			}
			if cached.Version == version {
				o.publish(file, cached.Parse, cached.Check)
				return &Result{Parse: cached.Parse, Check: cached.Check}, nil
			}
		}
	}

	parse, outcome, err := o.gw.Check(ctx, file, version, text, options)
	if err != nil {
		o.logger.Errorf("check %s: %v", file, err)
		return nil, &DiagnosticsError{}
	}
	if outcome.Aborted {
		o.publish(file, parse, nil)
		return nil, &DiagnosticsError{Diagnostics: parse.Diagnostics}
	}
	o.publish(file, parse, outcome.Result)
	return &Result{Parse: parse, Check: outcome.Result}, nil
}

// publish sends the combined parse and check diagnostics for an open file.
// Files closed since the check started keep their cleared state.
func (o *Orchestrator) publish(file string, parse *analyzer.ParseResult, check analyzer.CheckResult) {
	if !o.docs.IsOpen(file) {
		return
	}
	var combined []analyzer.Diagnostic
	if parse != nil {
		combined = append(combined, parse.Diagnostics...)
	}
	if check != nil {
		combined = append(combined, check.Diagnostics()...)
	}
	o.client.PublishDiagnostics(notify.FileURI(file), notify.ProtoDiagnostics(combined))
}

// ContentOf returns the text and version to check: the open buffer, or the
// on-disk content at version 0.
func (o *Orchestrator) ContentOf(file string) (string, int32, bool) {
	if text, ok := o.docs.Text(file); ok {
		version, _ := o.docs.Version(file)
		return text, int32(version), true
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", 0, false
	}
	return string(data), 0, true
}

// Invalidate queues file for a background re-check once edits go quiet.
func (o *Orchestrator) Invalidate(file string) {
	o.mu.Lock()
	o.pending[file] = struct{}{}
	o.mu.Unlock()
	o.Rearm()
}

// Forget drops a file from the pending set, keyed by full path.
func (o *Orchestrator) Forget(file string) {
	o.mu.Lock()
	delete(o.pending, file)
	o.mu.Unlock()
}

// CancelDebounce drops the pending wait. An in-flight compiler call is
// never aborted.
func (o *Orchestrator) CancelDebounce() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cancelDebounceLocked()
}

func (o *Orchestrator) cancelDebounceLocked() {
	if o.cancelDebounce != nil {
		o.cancelDebounce()
		o.cancelDebounce = nil
	}
}

// Rearm replaces the debounce wait with a fresh one if work is pending.
func (o *Orchestrator) Rearm() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cancelDebounceLocked()
	if len(o.pending) == 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	o.cancelDebounce = cancel
	go o.waitAndRun(ctx)
}

// PauseBackground cancels the debounce wait around a foreground operation.
// The returned func re-arms it.
func (o *Orchestrator) PauseBackground() (resume func()) {
	o.CancelDebounce()
	return o.Rearm
}

func (o *Orchestrator) waitAndRun(ctx context.Context) {
	timer := time.NewTimer(debounceDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	o.runMu.Lock()
	defer o.runMu.Unlock()

	o.mu.Lock()
	snapshot := make([]string, 0, len(o.pending))
	for f := range o.pending {
		snapshot = append(snapshot, f)
	}
	o.mu.Unlock()

	for _, file := range snapshot {
		o.mu.Lock()
		_, still := o.pending[file]
		o.mu.Unlock()
		if !still {
			continue
		}
		// The wait is over; the checks themselves are not cancellable.
		if _, err := o.Check(context.Background(), file); err != nil {
			o.logger.Debugf("background check %s: %v", file, err)
		}
		o.Forget(file)
	}
}

// CheckOnOpen checks a newly opened file, sizing a progress bar by the
// dependency-ordered files the compiler will have to revisit first.
func (o *Orchestrator) CheckOnOpen(ctx context.Context, file string) {
	batch := o.staleBatch(file)
	title := "Checking " + filepath.Base(file)
	if options, err := o.graph.Find(file); err == nil && options.ProjectFile != "" {
		title = "Checking " + filepath.Base(options.ProjectFile)
	}
	bar := o.client.StartProgress(title, len(batch))
	o.setProgress(bar)
	defer func() {
		o.setProgress(nil)
		bar.End()
	}()
	if _, err := o.Check(ctx, file); err != nil {
		o.logger.Debugf("open check %s: %v", file, err)
	}
}

// staleBatch walks the combined dependency-ordered source list up to the
// opened file and collects everything from the first stale file onward.
func (o *Orchestrator) staleBatch(file string) []string {
	options, err := o.graph.Find(file)
	if err != nil {
		return nil
	}
	var batch []string
	stale := false
	for _, src := range o.graph.SourceOrder(options) {
		if !stale && o.needsCheck(src) {
			stale = true
		}
		if stale {
			batch = append(batch, src)
		}
		if projects.SamePath(src, file) {
			break
		}
	}
	return batch
}

func (o *Orchestrator) needsCheck(file string) bool {
	recorded, ok := o.checkedOnDisk.Load(projects.Normalize(file))
	if !ok {
		return true
	}
	info, err := os.Stat(file)
	if err != nil {
		return false
	}
	return info.ModTime().After(recorded.(time.Time))
}

// CheckOnSave force-re-checks every open file the saved file is visible
// from, under one progress bar.
func (o *Orchestrator) CheckOnSave(ctx context.Context, file string) {
	var targets []string
	for _, open := range o.docs.OpenFiles() {
		if o.graph.Visible(file, open) {
			targets = append(targets, open)
		}
	}
	bar := o.client.StartProgress("Checking dependents of "+filepath.Base(file), len(targets))
	o.setProgress(bar)
	defer func() {
		o.setProgress(nil)
		bar.End()
	}()
	for _, target := range targets {
		if _, err := o.Force(ctx, target); err != nil {
			o.logger.Debugf("save check %s: %v", target, err)
		}
	}
}

// CloseFile clears diagnostics and pending work for a closed document.
func (o *Orchestrator) CloseFile(file string) {
	o.Forget(file)
	o.client.PublishDiagnostics(notify.FileURI(file), nil)
}

// HandleWatchedFile reacts to an on-disk change of a project file, script or
// asset manifest, then invalidates every open file.
func (o *Orchestrator) HandleWatchedFile(path string, kind projects.ChangeKind) {
	switch {
	case strings.EqualFold(filepath.Base(path), "project.assets.json"):
		if kind == projects.FileDeleted {
			return
		}
		o.graph.UpdateAssetsJson(path)
	case strings.EqualFold(filepath.Ext(path), ".fsx"):
		if kind == projects.FileDeleted {
			o.graph.DeleteProjectFile(path)
		} else {
			o.graph.PutScriptFile(path)
		}
	case strings.EqualFold(filepath.Ext(path), ".fsproj"):
		if kind == projects.FileDeleted {
			o.graph.DeleteProjectFile(path)
		} else {
			o.graph.PutProjectFile(path)
		}
	default:
		return
	}
	for _, open := range o.docs.OpenFiles() {
		o.Invalidate(open)
	}
}
