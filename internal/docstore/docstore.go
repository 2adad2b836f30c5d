// Package docstore keeps the versioned text of every open document.
// Addressing follows LSP: lines are 0-based and columns count UTF-16 code
// units.
package docstore

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// ErrUnknownDocument is returned for operations on a path that is not open.
var ErrUnknownDocument = errors.New("unknown document")

// Edit is one incremental content change. A nil Range replaces the whole
// document.
type Edit struct {
	Range *protocol.Range
	Text  string
}

type document struct {
	text    string
	version protocol.Integer
}

// Store is the in-memory buffer set for open documents. Writes for one path
// arrive in protocol order; readers get a consistent snapshot.
type Store struct {
	mu   sync.RWMutex
	docs map[string]*document
}

func NewStore() *Store {
	return &Store{docs: make(map[string]*document)}
}

// Open registers a document at its initial version.
func (s *Store) Open(path, text string, version protocol.Integer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[path] = &document{text: text, version: version}
}

// Change applies incremental edits in order and moves the document to the
// given version.
func (s *Store) Change(path string, version protocol.Integer, edits []Edit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[path]
	if !ok {
		return fmt.Errorf("change %s: %w", path, ErrUnknownDocument)
	}
	for _, edit := range edits {
		if edit.Range == nil {
			doc.text = edit.Text
			continue
		}
		start := positionToOffset(doc.text, edit.Range.Start)
		end := positionToOffset(doc.text, edit.Range.End)
		doc.text = doc.text[:start] + edit.Text + doc.text[end:]
	}
	doc.version = version
	return nil
}

// Close drops the buffer for a path.
func (s *Store) Close(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, path)
}

// Text returns the current text of an open document.
func (s *Store) Text(path string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[path]
	if !ok {
		return "", false
	}
	return doc.text, true
}

// Version returns the current version of an open document.
func (s *Store) Version(path string) (protocol.Integer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[path]
	if !ok {
		return 0, false
	}
	return doc.version, true
}

// IsOpen reports whether a path currently has a buffer.
func (s *Store) IsOpen(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.docs[path]
	return ok
}

// OpenFiles lists the paths of all open documents.
func (s *Store) OpenFiles() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	files := make([]string, 0, len(s.docs))
	for path := range s.docs {
		files = append(files, path)
	}
	return files
}

// LineOf extracts the 0-based line from text, trailing newline stripped.
// Lines past the end of the text are empty.
func LineOf(text string, line int) string {
	if line < 0 {
		return ""
	}
	lines := strings.Split(text, "\n")
	if line >= len(lines) {
		return ""
	}
	return strings.TrimSuffix(lines[line], "\r")
}

// positionToOffset converts an LSP position to a byte offset, counting
// UTF-16 code units within the target line.
func positionToOffset(text string, pos protocol.Position) int {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		pos.Line = protocol.UInteger(len(lines) - 1)
	}
	offset := 0
	for i := protocol.UInteger(0); i < pos.Line; i++ {
		offset += len(lines[i]) + 1
	}
	var unitCount, byteCount int
	for _, r := range lines[pos.Line] {
		units := 1
		if r > 0xFFFF {
			units = 2
		}
		if protocol.UInteger(unitCount+units) > pos.Character {
			break
		}
		unitCount += units
		byteCount += utf8.RuneLen(r)
	}
	return offset + byteCount
}
