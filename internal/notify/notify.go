// Package notify is the server-to-client notification surface: diagnostics,
// the fsharp progress notifications, and warning messages.
package notify

import (
	"sync"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Custom notifications understood by F# editor clients.
const (
	methodStartProgress     = "fsharp/startProgress"
	methodIncrementProgress = "fsharp/incrementProgress"
	methodEndProgress       = "fsharp/endProgress"
)

type startProgressParams struct {
	Title  string `json:"title"`
	NFiles int    `json:"nFiles"`
}

// Client sends notifications to the editor. glsp hands out a context per
// request, so the latest notify func is captured here for work that runs
// outside any request, like the debounce timer.
type Client struct {
	mu     sync.Mutex
	notify glsp.NotifyFunc
}

func NewClient() *Client {
	return &Client{}
}

// Capture records the request context's notify func for later use.
func (c *Client) Capture(ctx *glsp.Context) {
	if ctx == nil || ctx.Notify == nil {
		return
	}
	c.mu.Lock()
	c.notify = ctx.Notify
	c.mu.Unlock()
}

func (c *Client) send(method string, params any) {
	c.mu.Lock()
	fn := c.notify
	c.mu.Unlock()
	if fn != nil {
		fn(method, params)
	}
}

// PublishDiagnostics replaces the diagnostics shown for a document. A nil
// list clears them.
func (c *Client) PublishDiagnostics(uri protocol.DocumentUri, diagnostics []protocol.Diagnostic) {
	if diagnostics == nil {
		diagnostics = []protocol.Diagnostic{}
	}
	c.send(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// ShowWarning raises a window/showMessage warning in the editor.
func (c *Client) ShowWarning(message string) {
	c.send(protocol.ServerWindowShowMessage, protocol.ShowMessageParams{
		Type:    protocol.MessageTypeWarning,
		Message: message,
	})
}

// Bar is one progress bar. A start is always paired with an end; bars sized
// one or less stay invisible.
type Bar struct {
	client *Client
	shown  bool
	once   sync.Once
}

// StartProgress opens a progress bar over nFiles files.
func (c *Client) StartProgress(title string, nFiles int) *Bar {
	b := &Bar{client: c, shown: nFiles > 1}
	if b.shown {
		c.send(methodStartProgress, startProgressParams{Title: title, NFiles: nFiles})
	}
	return b
}

// Increment reports one file as underway.
func (b *Bar) Increment(fileName string) {
	if b.shown {
		b.client.send(methodIncrementProgress, fileName)
	}
}

// End closes the bar. Safe to call more than once.
func (b *Bar) End() {
	b.once.Do(func() {
		if b.shown {
			b.client.send(methodEndProgress, nil)
		}
	})
}
