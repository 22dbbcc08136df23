// Package sync reconciles the three sources of a conversation's truth:
// fetched history, live push events, and locally originated sends.
package sync

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/quickchat/qc/internal/ack"
	"github.com/quickchat/qc/internal/bus"
	"github.com/quickchat/qc/internal/cache"
	"github.com/quickchat/qc/internal/chat"
	"github.com/quickchat/qc/internal/rest"
	"github.com/quickchat/qc/internal/send"
	"go.uber.org/zap"
)

// HistoryFetcher is the point-in-time history request.
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, localID, remoteID string) ([]rest.WireMessage, error)
}

// RoomJoiner registers the local identity's room on the push channel.
type RoomJoiner interface {
	JoinRoom(identityID string)
}

// Notifier receives the receive cue.
type Notifier interface {
	OnMessageReceived()
}

// HistoryResult is the payload of conversation.history_loaded events.
type HistoryResult struct {
	Source string // "cache" or "fetch"
	Count  int
	Err    error
}

// Engine owns the active conversation: it joins the room, loads
// history into the store, applies push events under the merge rules,
// and forwards sends to the pipeline. One conversation is open at a
// time; opening another closes the previous one.
type Engine struct {
	store    *chat.Store
	history  HistoryFetcher
	channel  RoomJoiner
	cache    *cache.DB // optional
	tracker  *ack.Tracker
	pipeline *send.Pipeline
	bus      *bus.Bus
	notifier Notifier
	logger   *zap.Logger

	mu          sync.Mutex
	conv        chat.Conversation
	open        bool
	epoch       uint64
	historyDone bool
	buffered    []bus.Event
	unsub       func()
	cancel      context.CancelFunc
}

// NewEngine creates an engine over the shared store and channel.
// cache may be nil (no local seed, no write-through).
func NewEngine(store *chat.Store, history HistoryFetcher, channel RoomJoiner, db *cache.DB, tracker *ack.Tracker, pipeline *send.Pipeline, b *bus.Bus, notifier Notifier, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:    store,
		history:  history,
		channel:  channel,
		cache:    db,
		tracker:  tracker,
		pipeline: pipeline,
		bus:      b,
		notifier: notifier,
		logger:   logger,
	}
}

// Open starts syncing the given conversation. Join is fire-and-forget;
// the history fetch runs in the background and its failure is
// non-fatal (the user can still send). Push events that race the fetch
// are buffered and replayed once history is in place, so the snapshot
// never erases a message that already arrived over push.
func (e *Engine) Open(ctx context.Context, conv chat.Conversation) {
	e.Close()

	e.mu.Lock()
	e.conv = conv
	e.open = true
	e.epoch++
	e.historyDone = false
	e.buffered = nil
	epoch := e.epoch

	ctx, e.cancel = context.WithCancel(ctx)
	ch, unsub := e.bus.Subscribe("transport.", 256)
	e.unsub = unsub
	e.mu.Unlock()

	e.channel.JoinRoom(conv.Local.ID)
	e.seedFromCache(conv)

	go func() {
		for {
			select {
			case evt := <-ch:
				e.handleEvent(epoch, evt)
			case <-ctx.Done():
				return
			}
		}
	}()

	go e.fetchHistory(ctx, epoch, conv)

	e.bus.Publish(bus.New(bus.KindConversationOpened, conv.Key()))
}

// Close stops syncing and clears the store. Idempotent.
func (e *Engine) Close() {
	e.mu.Lock()
	if !e.open {
		e.mu.Unlock()
		return
	}
	e.open = false
	e.epoch++
	e.historyDone = false
	e.buffered = nil
	key := e.conv.Key()
	cancel, unsub := e.cancel, e.unsub
	e.cancel, e.unsub = nil, nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if unsub != nil {
		unsub()
	}
	e.pipeline.Cancel()
	e.store.Clear()
	e.bus.Publish(bus.New(bus.KindConversationClosed, key))
}

// Send forwards user input to the pipeline for the open conversation.
// A no-op while no conversation is open.
func (e *Engine) Send(text string) {
	e.mu.Lock()
	open, conv := e.open, e.conv
	e.mu.Unlock()
	if !open {
		return
	}
	e.pipeline.Send(conv, text)
}

// seedFromCache pre-fills the store so a reopened conversation renders
// before the fetch lands. The fetch replaces the seed wholesale.
func (e *Engine) seedFromCache(conv chat.Conversation) {
	if e.cache == nil {
		return
	}
	cached, err := e.cache.ListConversation(conv.Key(), conv.Local.ID)
	if err != nil {
		e.logger.Warn("cache read failed", zap.Error(err))
		return
	}
	if len(cached) == 0 {
		return
	}
	e.store.Replace(cached)
	e.bus.Publish(bus.New(bus.KindHistoryLoaded, HistoryResult{Source: "cache", Count: len(cached)}))
}

func (e *Engine) fetchHistory(ctx context.Context, epoch uint64, conv chat.Conversation) {
	wire, err := e.history.FetchHistory(ctx, conv.Local.ID, conv.Remote.ID)

	e.mu.Lock()
	if !e.open || e.epoch != epoch {
		// Conversation closed or switched while the fetch was in
		// flight; the result belongs to a dead store.
		e.mu.Unlock()
		return
	}

	if err != nil {
		// Non-fatal: whatever is in the store (cache seed, optimistic
		// sends) stays, and buffered pushes replay on top of it.
		e.logger.Warn("history fetch failed", zap.Error(err))
	} else {
		msgs := make([]chat.Message, 0, len(wire))
		for _, w := range wire {
			msgs = append(msgs, w.ToMessage(conv.Local.ID))
		}
		// Unconfirmed optimistic sends are not in the snapshot yet;
		// carry them over so the swap can't silently lose them.
		var inflight []chat.Message
		for _, m := range e.store.Snapshot() {
			if m.ID == "" && m.ClientTempID != "" {
				inflight = append(inflight, m)
			}
		}
		e.store.Replace(msgs)
		for _, m := range inflight {
			e.store.Append(m)
		}
		e.writeThrough(conv, msgs)
	}

	// Drain the buffer before opening the live gate. Pushes landing
	// mid-replay are buffered again and drained on the next pass, so
	// everything applies in arrival order.
	for {
		if !e.open || e.epoch != epoch {
			e.mu.Unlock()
			return
		}
		buffered := e.buffered
		e.buffered = nil
		if len(buffered) == 0 {
			e.historyDone = true
			break
		}
		e.mu.Unlock()
		for _, evt := range buffered {
			e.apply(evt)
		}
		e.mu.Lock()
	}
	e.mu.Unlock()

	e.bus.Publish(bus.New(bus.KindHistoryLoaded, HistoryResult{Source: "fetch", Count: e.store.Len(), Err: err}))
}

func (e *Engine) handleEvent(epoch uint64, evt bus.Event) {
	e.mu.Lock()
	if !e.open || e.epoch != epoch {
		e.mu.Unlock()
		return
	}
	if !e.historyDone && evt.Kind != bus.KindTransportStatus {
		// History must land first; replaying later keeps the fetch
		// from erasing an already-applied push.
		e.buffered = append(e.buffered, evt)
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	e.apply(evt)
}

func (e *Engine) apply(evt bus.Event) {
	switch evt.Kind {
	case bus.KindTransportReceive:
		raw, ok := evt.Payload.(json.RawMessage)
		if !ok {
			return
		}
		var w rest.WireMessage
		if err := json.Unmarshal(raw, &w); err != nil {
			e.logger.Warn("malformed push message", zap.Error(err))
			return
		}
		e.applyRemote(w)

	case bus.KindTransportRead:
		raw, ok := evt.Payload.(json.RawMessage)
		if !ok {
			return
		}
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			e.logger.Warn("malformed read receipt", zap.Error(err))
			return
		}
		e.tracker.HandleReadReceipt(id)

	case bus.KindTransportStatus:
		// Reconnects are transport-owned; the channel replays the room
		// join itself. Nothing to do here.
	}
}

// applyRemote applies one inbound pushed message under the merge
// rules: self-echoes are dropped, foreign-conversation traffic is
// stale, duplicates are rejected by server id, and everything that
// lands is Delivered by definition.
func (e *Engine) applyRemote(w rest.WireMessage) {
	e.mu.Lock()
	conv := e.conv
	open := e.open
	e.mu.Unlock()
	if !open {
		return
	}

	if w.SenderID == conv.Local.ID {
		// Echo of our own send; the optimistic entry is already there.
		return
	}
	if w.SenderID != conv.Remote.ID {
		// A different conversation's push while this one is open.
		// Expected under close/switch timing, silently dropped.
		return
	}

	msg := w.ToMessage(conv.Local.ID)
	msg.State.Advance(chat.StateDelivered)
	if !e.store.Append(msg) {
		return
	}
	e.bus.Publish(bus.New(bus.KindMessageAppended, msg.ID))

	if e.cache != nil {
		if err := e.cache.UpsertMessage(conv.Key(), msg); err != nil {
			e.logger.Warn("cache write failed", zap.Error(err))
		}
	}
	if e.notifier != nil {
		e.notifier.OnMessageReceived()
	}

	go e.tracker.AckRemote(context.Background(), msg)
}

func (e *Engine) writeThrough(conv chat.Conversation, msgs []chat.Message) {
	if e.cache == nil {
		return
	}
	for _, m := range msgs {
		if err := e.cache.UpsertMessage(conv.Key(), m); err != nil {
			e.logger.Warn("cache write failed", zap.Error(err))
			return
		}
	}
}
