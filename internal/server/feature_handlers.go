package server

import (
	con "context"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Feature handlers fail soft: a URI outside the workspace or a missing
// result yields an empty response, not a protocol error.

func (s *Server) textDocumentHover(
	context *glsp.Context,
	params *protocol.HoverParams,
) (*protocol.Hover, error) {
	s.client.Capture(context)
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return nil, nil
	}
	resume := s.checks.PauseBackground()
	defer resume()
	return s.features.Hover(con.Background(), path, int(params.Position.Line), int(params.Position.Character)), nil
}

func (s *Server) textDocumentCompletion(
	context *glsp.Context,
	params *protocol.CompletionParams,
) (any, error) {
	s.client.Capture(context)
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return nil, nil
	}
	resume := s.checks.PauseBackground()
	defer resume()
	list := s.features.Completion(con.Background(), path, int(params.Position.Line), int(params.Position.Character))
	if list == nil {
		return nil, nil
	}
	return list, nil
}

func (s *Server) completionItemResolve(
	context *glsp.Context,
	params *protocol.CompletionItem,
) (*protocol.CompletionItem, error) {
	s.client.Capture(context)
	return s.features.ResolveCompletion(params), nil
}

func (s *Server) textDocumentSignatureHelp(
	context *glsp.Context,
	params *protocol.SignatureHelpParams,
) (*protocol.SignatureHelp, error) {
	s.client.Capture(context)
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return nil, nil
	}
	resume := s.checks.PauseBackground()
	defer resume()
	return s.features.SignatureHelp(con.Background(), path, int(params.Position.Line), int(params.Position.Character)), nil
}

func (s *Server) textDocumentDefinition(
	context *glsp.Context,
	params *protocol.DefinitionParams,
) (any, error) {
	s.client.Capture(context)
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return nil, nil
	}
	resume := s.checks.PauseBackground()
	defer resume()
	locations := s.features.Definition(con.Background(), path, int(params.Position.Line), int(params.Position.Character))
	if len(locations) == 0 {
		return nil, nil
	}
	return locations, nil
}

func (s *Server) textDocumentReferences(
	context *glsp.Context,
	params *protocol.ReferenceParams,
) ([]protocol.Location, error) {
	s.client.Capture(context)
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return nil, nil
	}
	resume := s.checks.PauseBackground()
	defer resume()
	return s.features.References(con.Background(), path, int(params.Position.Line), int(params.Position.Character)), nil
}

func (s *Server) textDocumentDocumentSymbol(
	context *glsp.Context,
	params *protocol.DocumentSymbolParams,
) (any, error) {
	s.client.Capture(context)
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return nil, nil
	}
	resume := s.checks.PauseBackground()
	defer resume()
	symbols := s.features.DocumentSymbols(con.Background(), path)
	if symbols == nil {
		return nil, nil
	}
	return symbols, nil
}

func (s *Server) workspaceSymbol(
	context *glsp.Context,
	params *protocol.WorkspaceSymbolParams,
) ([]protocol.SymbolInformation, error) {
	s.client.Capture(context)
	resume := s.checks.PauseBackground()
	defer resume()
	return s.features.WorkspaceSymbols(con.Background(), params.Query), nil
}

func (s *Server) textDocumentRename(
	context *glsp.Context,
	params *protocol.RenameParams,
) (*protocol.WorkspaceEdit, error) {
	s.client.Capture(context)
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return nil, nil
	}
	resume := s.checks.PauseBackground()
	defer resume()
	return s.features.Rename(con.Background(), path, int(params.Position.Line), int(params.Position.Character), params.NewName), nil
}
