package server

import (
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"fsls/internal/projects"
)

func (s *Server) workspaceDidChangeWatchedFiles(
	context *glsp.Context,
	params *protocol.DidChangeWatchedFilesParams,
) error {
	s.client.Capture(context)
	for _, event := range params.Changes {
		path, err := uriToPath(event.URI)
		if err != nil {
			s.logger.Infof("watched file %s: %v", event.URI, err)
			continue
		}
		var kind projects.ChangeKind
		switch event.Type {
		case protocol.FileChangeTypeCreated:
			kind = projects.FileCreated
		case protocol.FileChangeTypeChanged:
			kind = projects.FileChanged
		case protocol.FileChangeTypeDeleted:
			kind = projects.FileDeleted
		default:
			continue
		}
		s.checks.HandleWatchedFile(path, kind)
	}
	return nil
}
