// Package feedback is the boundary to the audible-cue collaborator.
// The engine only calls the hooks; what they do (sound, vibration,
// nothing) is the implementation's business.
package feedback

import (
	"io"
	"os"
)

// Notifier receives send/receive cues from the engine.
type Notifier interface {
	// OnMessageSent fires once per successfully persisted send.
	OnMessageSent()
	// OnMessageReceived fires once per appended remote message.
	OnMessageReceived()
}

// Bell rings the terminal bell. The closest a terminal client gets to
// the web app's send/receive sounds.
type Bell struct {
	out io.Writer
}

// NewBell creates a Bell writing to stdout.
func NewBell() *Bell {
	return &Bell{out: os.Stdout}
}

func (b *Bell) OnMessageSent()     { _, _ = b.out.Write([]byte("\a")) }
func (b *Bell) OnMessageReceived() { _, _ = b.out.Write([]byte("\a")) }

// Muted is a no-op Notifier, used when sound is disabled and in tests.
type Muted struct{}

func (Muted) OnMessageSent()     {}
func (Muted) OnMessageReceived() {}
