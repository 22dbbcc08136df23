// Package send is the outgoing half of the engine: validation,
// debounce, optimistic append, durable write and the push emit.
package send

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quickchat/qc/internal/bus"
	"github.com/quickchat/qc/internal/chat"
	"github.com/quickchat/qc/internal/rest"
	"github.com/quickchat/qc/internal/transport"
	"go.uber.org/zap"
)

// Persister is the durable message write on the backend.
type Persister interface {
	PersistMessage(ctx context.Context, senderID, receiverID, text string) (rest.WireMessage, error)
}

// Emitter is the push path to the peer.
type Emitter interface {
	Emit(event string, payload any) error
}

// CacheWriter persists confirmed messages locally. Optional.
type CacheWriter interface {
	UpsertMessage(conversationKey string, m chat.Message) error
}

// Notifier receives the send cue.
type Notifier interface {
	OnMessageSent()
}

// Pipeline turns user input into exactly one outgoing message per
// debounce window. Rapid repeats within the window collapse to the
// latest text; nothing is queued.
type Pipeline struct {
	store    *chat.Store
	rest     Persister
	channel  Emitter
	cache    CacheWriter
	bus      *bus.Bus
	notifier Notifier
	logger   *zap.Logger
	window   time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending *pendingSend
}

type pendingSend struct {
	conv chat.Conversation
	text string
}

// NewPipeline creates a send pipeline. window <= 0 disables debouncing
// (every call fires immediately), which tests use.
func NewPipeline(store *chat.Store, p Persister, e Emitter, c CacheWriter, b *bus.Bus, n Notifier, logger *zap.Logger, window time.Duration) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		store:    store,
		rest:     p,
		channel:  e,
		cache:    c,
		bus:      b,
		notifier: n,
		logger:   logger,
		window:   window,
	}
}

// Send validates text and schedules it. Empty input (after trimming)
// is a no-op, not an error. A call landing inside an open debounce
// window replaces the window's text; the window's deadline stands, so a
// burst of double-activations yields one message with the last text.
func (p *Pipeline) Send(conv chat.Conversation, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	p.mu.Lock()
	if p.pending != nil {
		p.pending.conv = conv
		p.pending.text = text
		p.mu.Unlock()
		return
	}

	p.pending = &pendingSend{conv: conv, text: text}
	if p.window <= 0 {
		fired, msg, ok := p.fireLocked()
		p.mu.Unlock()
		if ok {
			p.dispatch(fired, msg)
		}
		return
	}
	p.timer = time.AfterFunc(p.window, func() {
		p.mu.Lock()
		fired, msg, ok := p.fireLocked()
		p.mu.Unlock()
		if ok {
			p.dispatch(fired, msg)
		}
	})
	p.mu.Unlock()
}

// Cancel drops any pending debounced send. Called when the
// conversation closes mid-window.
func (p *Pipeline) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.pending = nil
}

// fireLocked reads the pending text at fire time and appends the
// optimistic entry. Caller holds p.mu and dispatches after releasing
// it, so a stalled socket write never blocks the next Send.
func (p *Pipeline) fireLocked() (chat.Conversation, chat.Message, bool) {
	if p.pending == nil {
		return chat.Conversation{}, chat.Message{}, false
	}
	conv, text := p.pending.conv, p.pending.text
	p.pending = nil
	p.timer = nil

	msg := chat.Message{
		ClientTempID: uuid.NewString(),
		Text:         text,
		SenderID:     conv.Local.ID,
		ReceiverID:   conv.Remote.ID,
		Timestamp:    time.Now(),
		State:        chat.StatePending,
		Origin:       chat.OriginSelf,
	}

	p.store.Append(msg)
	p.bus.Publish(bus.New(bus.KindMessageAppended, msg.ClientTempID))

	return conv, msg, true
}

// dispatch runs the two outgoing paths. Push first: the peer should
// not wait for persistence.
func (p *Pipeline) dispatch(conv chat.Conversation, msg chat.Message) {
	p.emitPush(msg)
	go p.persist(conv, msg)
}

func (p *Pipeline) emitPush(msg chat.Message) {
	wire, err := json.Marshal(rest.FromMessage(msg))
	if err != nil {
		p.logger.Error("marshal push payload", zap.Error(err))
		return
	}
	err = p.channel.Emit(transport.EventSendMessage, transport.SendPayload{
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Message:    wire,
	})
	if err != nil {
		// Channel down: no queuing. The durable write still proceeds
		// and the peer picks the message up from history.
		p.logger.Warn("push emit failed", zap.Error(err))
	}
}

func (p *Pipeline) persist(conv chat.Conversation, msg chat.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	persisted, err := p.rest.PersistMessage(ctx, msg.SenderID, msg.ReceiverID, msg.Text)
	if err != nil {
		// The message stays Pending, visibly unsent. No retry.
		p.logger.Error("durable write failed",
			zap.String("client_temp_id", msg.ClientTempID),
			zap.Error(err))
		p.bus.Publish(bus.New(bus.KindMessageSendFailed, msg.ClientTempID))
		return
	}

	// ResolveTemp no-ops when the conversation was switched before the
	// write came back; the confirmed message still goes to the cache,
	// it belongs to its conversation either way.
	if p.store.ResolveTemp(msg.ClientTempID, persisted.ID) {
		p.bus.Publish(bus.New(bus.KindMessageUpdated, persisted.ID))
	}
	if p.cache != nil {
		confirmed := persisted.ToMessage(msg.SenderID)
		if err := p.cache.UpsertMessage(conv.Key(), confirmed); err != nil {
			p.logger.Warn("cache write failed", zap.Error(err))
		}
	}
	if p.notifier != nil {
		p.notifier.OnMessageSent()
	}
}
