package server

import (
	"encoding/json"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"fsls/internal/projects"
)

func (s *Server) initialize(
	context *glsp.Context,
	params *protocol.InitializeParams,
) (any, error) {
	s.client.Capture(context)

	var config Config
	if params.InitializationOptions != nil {
		raw, err := json.Marshal(params.InitializationOptions)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &config); err != nil {
			return nil, err
		}
	}
	s.config = config

	var roots []string
	if params.RootURI != nil {
		if root, err := uriToPath(*params.RootURI); err == nil {
			roots = append(roots, root)
		}
	}
	for _, folder := range params.WorkspaceFolders {
		if root, err := uriToPath(protocol.DocumentUri(folder.URI)); err == nil {
			roots = append(roots, root)
		}
	}
	for _, root := range roots {
		if err := s.graph.AddWorkspaceRoot(root); err != nil {
			s.logger.Errorf("workspace root %s: %v", root, err)
		}
		if !config.DisableProjectWatch {
			watcher, err := projects.WatchWorkspace(root, s.checks.HandleWatchedFile)
			if err != nil {
				s.logger.Errorf("watch %s: %v", root, err)
				continue
			}
			s.watchers = append(s.watchers, watcher)
		}
	}

	syncKind := protocol.TextDocumentSyncKindIncremental
	capabilities := s.handler.CreateServerCapabilities()
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: &protocol.True,
		Change:    &syncKind,
		Save:      &protocol.SaveOptions{IncludeText: &protocol.False},
	}
	capabilities.CompletionProvider = &protocol.CompletionOptions{
		ResolveProvider:   &protocol.True,
		TriggerCharacters: []string{"."},
	}
	capabilities.SignatureHelpProvider = &protocol.SignatureHelpOptions{
		TriggerCharacters: []string{"(", ","},
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lsName,
			Version: &version,
		},
	}, nil
}

func (s *Server) initialized(
	context *glsp.Context,
	params *protocol.InitializedParams,
) error {
	s.client.Capture(context)
	s.logger.Info("client initialized")
	return nil
}

func (s *Server) shutdown(context *glsp.Context) error {
	s.checks.CancelDebounce()
	for _, watcher := range s.watchers {
		if err := watcher.Close(); err != nil {
			s.logger.Errorf("close watcher: %v", err)
		}
	}
	s.watchers = nil
	return nil
}

func (s *Server) setTrace(context *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}
