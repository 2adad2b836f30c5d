// Package server holds the LSP server loop: it routes incoming requests and
// notifications to the document store, check orchestrator and feature
// dispatcher, and serializes responses back through glsp.
package server

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	"fsls/internal/analyzer"
	"fsls/internal/checker"
	"fsls/internal/dispatch"
	"fsls/internal/docstore"
	"fsls/internal/notify"
	"fsls/internal/projects"
)

const lsName = "fsls"

var version = "0.1.0"

// Config is decoded from the client's initializationOptions.
type Config struct {
	// DisableProjectWatch turns off the server-side fsnotify watcher for
	// clients that deliver workspace/didChangeWatchedFiles themselves.
	DisableProjectWatch bool `json:"disableProjectWatch"`
}

type Server struct {
	handler  *protocol.Handler
	docs     *docstore.Store
	graph    *projects.Graph
	gw       analyzer.Gateway
	checks   *checker.Orchestrator
	features *dispatch.Dispatcher
	client   *notify.Client
	watchers []*projects.Watcher
	config   Config
	logger   commonlog.Logger
}

// NewServer assembles the language server around a compiler gateway and a
// project loader.
func NewServer(gw analyzer.Gateway, loader projects.Loader) (*server.Server, error) {
	ls := &Server{
		gw:     gw,
		logger: commonlog.GetLogger("fsls.server"),
	}
	ls.docs = docstore.NewStore()
	ls.client = notify.NewClient()
	ls.graph = projects.NewGraph(loader, ls.scriptOptions)
	ls.checks = checker.NewOrchestrator(ls.docs, ls.graph, gw, ls.client)
	ls.features = dispatch.NewDispatcher(ls.docs, ls.graph, gw, ls.checks, ls.client)

	// Methods the protocol supports but this server does not (formatting,
	// code actions, code lenses, highlights, links, willSave) stay
	// unregistered: glsp answers them with a method-not-found error.
	ls.handler = &protocol.Handler{
		Initialize:  ls.initialize,
		Initialized: ls.initialized,
		Shutdown:    ls.shutdown,
		SetTrace:    ls.setTrace,

		TextDocumentDidOpen:   ls.textDocumentDidOpen,
		TextDocumentDidChange: ls.textDocumentDidChange,
		TextDocumentDidSave:   ls.textDocumentDidSave,
		TextDocumentDidClose:  ls.textDocumentDidClose,

		TextDocumentHover:          ls.textDocumentHover,
		TextDocumentCompletion:     ls.textDocumentCompletion,
		CompletionItemResolve:      ls.completionItemResolve,
		TextDocumentSignatureHelp:  ls.textDocumentSignatureHelp,
		TextDocumentDefinition:     ls.textDocumentDefinition,
		TextDocumentReferences:     ls.textDocumentReferences,
		TextDocumentDocumentSymbol: ls.textDocumentDocumentSymbol,
		WorkspaceSymbol:            ls.workspaceSymbol,
		TextDocumentRename:         ls.textDocumentRename,

		WorkspaceDidChangeWatchedFiles: ls.workspaceDidChangeWatchedFiles,
	}

	return server.NewServer(ls.handler, lsName, false), nil
}

// scriptOptions asks the compiler for single-file options for a script,
// using the open buffer or the on-disk text.
func (s *Server) scriptOptions(path string) (*analyzer.ProjectOptions, []analyzer.Diagnostic, error) {
	text, _, ok := s.checks.ContentOf(path)
	if !ok {
		return nil, nil, fmt.Errorf("script %s: no content", path)
	}
	mtime := time.Time{}
	if info, err := os.Stat(path); err == nil {
		mtime = info.ModTime()
	}
	return s.gw.ScriptOptions(context.Background(), path, text, mtime)
}
