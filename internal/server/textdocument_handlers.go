package server

import (
	con "context"
	"fmt"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"fsls/internal/docstore"
)

func (s *Server) textDocumentDidOpen(
	context *glsp.Context,
	params *protocol.DidOpenTextDocumentParams,
) error {
	s.client.Capture(context)
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return err
	}
	s.docs.Open(path, params.TextDocument.Text, params.TextDocument.Version)

	resume := s.checks.PauseBackground()
	defer resume()
	s.checks.CheckOnOpen(con.Background(), path)
	return nil
}

func (s *Server) textDocumentDidChange(
	context *glsp.Context,
	params *protocol.DidChangeTextDocumentParams,
) error {
	s.client.Capture(context)
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return err
	}
	edits := make([]docstore.Edit, 0, len(params.ContentChanges))
	for _, raw := range params.ContentChanges {
		switch change := raw.(type) {
		case protocol.TextDocumentContentChangeEvent:
			edits = append(edits, docstore.Edit{Range: change.Range, Text: change.Text})
		case protocol.TextDocumentContentChangeEventWhole:
			edits = append(edits, docstore.Edit{Text: change.Text})
		default:
			return fmt.Errorf("unexpected change event type %T", raw)
		}
	}
	if err := s.docs.Change(path, params.TextDocument.Version, edits); err != nil {
		return err
	}
	s.checks.Invalidate(path)
	return nil
}

func (s *Server) textDocumentDidSave(
	context *glsp.Context,
	params *protocol.DidSaveTextDocumentParams,
) error {
	s.client.Capture(context)
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return err
	}
	resume := s.checks.PauseBackground()
	defer resume()
	s.checks.CheckOnSave(con.Background(), path)
	return nil
}

func (s *Server) textDocumentDidClose(
	context *glsp.Context,
	params *protocol.DidCloseTextDocumentParams,
) error {
	s.client.Capture(context)
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return err
	}
	s.docs.Close(path)
	s.checks.CloseFile(path)
	return nil
}
