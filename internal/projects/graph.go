// Package projects maintains the map from source files to the project that
// compiles them, and the dependency order between projects.
package projects

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/tliron/commonlog"

	"fsls/internal/analyzer"
)

// ErrNotInWorkspace is returned for files no loaded project contributes.
var ErrNotInWorkspace = errors.New("file not part of any loaded project")

// LoadError is a project-cracking failure with its diagnostics.
type LoadError struct {
	Path        string
	Diagnostics []analyzer.Diagnostic
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load project %s", e.Path)
}

// Loader cracks a project file into compiler options. Implemented by the
// MSBuild-style resolver outside the core.
type Loader interface {
	Load(path string) (*analyzer.ProjectOptions, error)
}

// ScriptResolver derives single-file options for a script, normally by
// asking the compiler front-end.
type ScriptResolver func(path string) (*analyzer.ProjectOptions, []analyzer.Diagnostic, error)

var caseInsensitivePaths = runtime.GOOS == "windows" || runtime.GOOS == "darwin"

// Normalize canonicalizes a path for map keys and comparisons, folding case
// on hosts with case-insensitive filesystems.
func Normalize(path string) string {
	path = filepath.Clean(path)
	if caseInsensitivePaths {
		return strings.ToLower(path)
	}
	return path
}

// SamePath compares two paths under the host's case rules.
func SamePath(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// Graph is the workspace project graph. Mutators take the exclusive lock;
// queries work on snapshots.
type Graph struct {
	mu       sync.RWMutex
	loader   Loader
	scripts  ScriptResolver
	projects map[string]*analyzer.ProjectOptions
	owners   map[string]string
	loadErrs map[string]*LoadError
	depsMemo map[string][]*analyzer.ProjectOptions
	logger   commonlog.Logger
}

func NewGraph(loader Loader, scripts ScriptResolver) *Graph {
	return &Graph{
		loader:   loader,
		scripts:  scripts,
		projects: make(map[string]*analyzer.ProjectOptions),
		owners:   make(map[string]string),
		loadErrs: make(map[string]*LoadError),
		depsMemo: make(map[string][]*analyzer.ProjectOptions),
		logger:   commonlog.GetLogger("fsls.projects"),
	}
}

// Find returns the options of the project that owns file. Scripts are
// resolved on demand as single-file projects.
func (g *Graph) Find(file string) (*analyzer.ProjectOptions, error) {
	key := Normalize(file)
	g.mu.RLock()
	if owner, ok := g.owners[key]; ok {
		opts := g.projects[owner]
		g.mu.RUnlock()
		if opts != nil {
			return opts, nil
		}
		return nil, ErrNotInWorkspace
	}
	g.mu.RUnlock()

	if strings.EqualFold(filepath.Ext(file), ".fsx") {
		return g.loadScript(file)
	}
	if loadErr := g.nearestFailedProject(file); loadErr != nil {
		return nil, loadErr
	}
	return nil, ErrNotInWorkspace
}

func (g *Graph) loadScript(file string) (*analyzer.ProjectOptions, error) {
	if g.scripts == nil {
		return nil, ErrNotInWorkspace
	}
	opts, diags, err := g.scripts(file)
	if err != nil {
		return nil, &LoadError{Path: file, Diagnostics: diags}
	}
	g.mu.Lock()
	key := Normalize(file)
	g.projects[key] = opts
	g.owners[key] = key
	g.mu.Unlock()
	return opts, nil
}

// nearestFailedProject finds a broken project whose directory contains file,
// so its cracking diagnostics can stand in for the missing options.
func (g *Graph) nearestFailedProject(file string) *LoadError {
	g.mu.RLock()
	defer g.mu.RUnlock()
	dir := Normalize(filepath.Dir(file))
	var best *LoadError
	for key, loadErr := range g.loadErrs {
		projDir := Normalize(filepath.Dir(key))
		if strings.HasPrefix(dir+string(filepath.Separator), projDir+string(filepath.Separator)) || dir == projDir {
			if best == nil || len(projDir) > len(Normalize(filepath.Dir(best.Path))) {
				best = loadErr
			}
		}
	}
	return best
}

// TransitiveDeps returns the dependency closure of a project in topological
// order, dependencies first, the project itself last.
func (g *Graph) TransitiveDeps(options *analyzer.ProjectOptions) []*analyzer.ProjectOptions {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := Normalize(options.ProjectFile)
	if memo, ok := g.depsMemo[key]; ok {
		return memo
	}
	var ordered []*analyzer.ProjectOptions
	seen := make(map[string]bool)
	var walk func(p *analyzer.ProjectOptions)
	walk = func(p *analyzer.ProjectOptions) {
		pk := Normalize(p.ProjectFile)
		if seen[pk] {
			return
		}
		seen[pk] = true
		for _, dep := range p.ReferencedProjects {
			walk(dep)
		}
		ordered = append(ordered, p)
	}
	walk(options)
	g.depsMemo[key] = ordered
	return ordered
}

// SourceOrder is the combined dependency-ordered source list seen when
// compiling a file of this project.
func (g *Graph) SourceOrder(options *analyzer.ProjectOptions) []string {
	var files []string
	for _, p := range g.TransitiveDeps(options) {
		files = append(files, p.SourceFiles...)
	}
	return files
}

// Visible reports whether declFile is visible from fromFile: they are the
// same file, or declFile precedes fromFile in fromFile's combined
// dependency-ordered source list.
func (g *Graph) Visible(declFile, fromFile string) bool {
	if SamePath(declFile, fromFile) {
		return true
	}
	options, err := g.Find(fromFile)
	if err != nil {
		return false
	}
	for _, f := range g.SourceOrder(options) {
		if SamePath(f, declFile) {
			return true
		}
		if SamePath(f, fromFile) {
			return false
		}
	}
	return false
}

// OpenProjects snapshots every loaded project, scripts included.
func (g *Graph) OpenProjects() []*analyzer.ProjectOptions {
	g.mu.RLock()
	defer g.mu.RUnlock()
	opts := make([]*analyzer.ProjectOptions, 0, len(g.projects))
	for _, p := range g.projects {
		if p != nil {
			opts = append(opts, p)
		}
	}
	return opts
}

// AddWorkspaceRoot scans dir for project and script files and loads each.
// Directories whose name starts with a dot are skipped. Idempotent.
func (g *Graph) AddWorkspaceRoot(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			g.logger.Errorf("workspace scan: %v", err)
			return nil
		}
		if d.IsDir() {
			if name := d.Name(); name != "." && strings.HasPrefix(name, ".") {
				return fs.SkipDir
			}
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".fsproj":
			g.PutProjectFile(path)
		case ".fsx":
			if _, err := g.loadScript(path); err != nil {
				g.logger.Infof("script %s: %v", path, err)
			}
		}
		return nil
	})
}

// PutProjectFile (re)loads one project and rebinds its source files.
func (g *Graph) PutProjectFile(path string) {
	opts, err := g.loader.Load(path)

	g.mu.Lock()
	defer g.mu.Unlock()
	key := Normalize(path)
	g.removeOwnersLocked(key)
	g.depsMemo = make(map[string][]*analyzer.ProjectOptions)
	if err != nil {
		g.projects[key] = nil
		loadErr := &LoadError{Path: path}
		if le := (*LoadError)(nil); errors.As(err, &le) {
			loadErr = le
		} else {
			loadErr.Diagnostics = []analyzer.Diagnostic{analyzer.TopLevelDiagnostic(path, err.Error())}
		}
		g.loadErrs[key] = loadErr
		g.logger.Errorf("load project %s: %v", path, err)
		return
	}
	delete(g.loadErrs, key)
	g.projects[key] = opts
	for _, src := range opts.SourceFiles {
		g.owners[Normalize(src)] = key
	}
}

// DeleteProjectFile drops a project; files it uniquely contributed fall out
// of the workspace.
func (g *Graph) DeleteProjectFile(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := Normalize(path)
	g.removeOwnersLocked(key)
	delete(g.projects, key)
	delete(g.loadErrs, key)
	g.depsMemo = make(map[string][]*analyzer.ProjectOptions)
}

// UpdateAssetsJson re-cracks the project whose restored assets changed.
// The assets file lives at <project>/obj/project.assets.json.
func (g *Graph) UpdateAssetsJson(path string) {
	projectDir := Normalize(filepath.Dir(filepath.Dir(path)))
	g.mu.RLock()
	var reload []string
	for key, opts := range g.projects {
		if opts != nil && opts.IsScript {
			continue
		}
		if Normalize(filepath.Dir(key)) == projectDir {
			reload = append(reload, projectPath(opts, key))
		}
	}
	g.mu.RUnlock()
	for _, p := range reload {
		g.PutProjectFile(p)
	}
}

func projectPath(opts *analyzer.ProjectOptions, fallback string) string {
	if opts != nil {
		return opts.ProjectFile
	}
	return fallback
}

// PutScriptFile drops a script's cached options and re-derives them from the
// compiler right away.
func (g *Graph) PutScriptFile(path string) {
	g.mu.Lock()
	key := Normalize(path)
	delete(g.projects, key)
	delete(g.owners, key)
	g.depsMemo = make(map[string][]*analyzer.ProjectOptions)
	g.mu.Unlock()
	if _, err := g.loadScript(path); err != nil {
		g.logger.Infof("script %s: %v", path, err)
	}
}

func (g *Graph) removeOwnersLocked(projectKey string) {
	for src, owner := range g.owners {
		if owner == projectKey {
			delete(g.owners, src)
		}
	}
}
