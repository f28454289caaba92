package chat

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"unichat/internal/domain"
	"unichat/internal/protocol/msgcrypt"
	"unichat/internal/session"
)

// Placeholders rendered instead of content the client cannot show.
const (
	// DecryptFailedText replaces a message whose authentication tag check
	// failed. Rendered inline; never aborts the rest of the conversation.
	DecryptFailedText = "[Decryption Failed]"
	// EncryptedText replaces ciphertext the client holds no key for:
	// room-list previews and encrypted history in a degraded room.
	EncryptedText = "[Encrypted]"
)

// ErrRoomNotOpen is returned by Send when no room is in the Ready state.
var ErrRoomNotOpen = errors.New("no open room")

// State is the controller's position in the per-room lifecycle.
type State int

const (
	Idle State = iota
	ResolvingKey
	LoadingHistory
	Ready
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ResolvingKey:
		return "resolving-key"
	case LoadingHistory:
		return "loading-history"
	case Ready:
		return "ready"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Sink receives the controller's output. Calls are made outside the
// controller's lock, one at a time.
type Sink interface {
	// HistoryLoaded delivers the full ordered history once a room is Ready.
	HistoryLoaded(room domain.RoomID, msgs []domain.PlainMessage)
	// MessageArrived delivers one live message appended to the open room.
	MessageArrived(room domain.RoomID, msg domain.PlainMessage)
	// PreviewUpdated reports new activity in a room that is not open. The
	// preview is never decrypted content.
	PreviewUpdated(room domain.RoomID, preview string, at time.Time)
}

// Controller ties the resolver, cipher and record store together for one
// client session. Methods are safe for concurrent use.
type Controller struct {
	store    domain.RecordStore
	resolver *session.Resolver
	keys     *session.KeyCache
	self     domain.Identity
	sink     Sink
	log      zerolog.Logger

	mu      sync.Mutex
	epoch   uint64
	room    domain.RoomID
	state   State
	key     domain.SessionKey
	hasKey  bool
	msgs    []domain.PlainMessage
	seen    map[string]struct{}
	pending []domain.MessageRecord
}

// New returns a controller for self. The key cache is passed in, not owned
// globally, so callers control its lifetime.
func New(store domain.RecordStore, resolver *session.Resolver, keys *session.KeyCache, self domain.Identity, sink Sink, log zerolog.Logger) *Controller {
	return &Controller{
		store:    store,
		resolver: resolver,
		keys:     keys,
		self:     self,
		sink:     sink,
		log:      log,
	}
}

// State reports the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Room reports the room the controller is on, if any.
func (c *Controller) Room() (domain.RoomID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room, c.state != Idle
}

// Encrypted reports whether the open room has a resolved session key.
func (c *Controller) Encrypted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == Ready && c.hasKey
}

// Messages returns a copy of the open room's rendered messages.
func (c *Controller) Messages() []domain.PlainMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.PlainMessage(nil), c.msgs...)
}

// OpenRoom resolves the room's session key, loads and decrypts history in
// creation order, and marks the room Ready. Opening a different room while a
// prior open is in flight supersedes it: the stale open's results are
// discarded. Resolver failures degrade to plaintext mode; a history fetch
// failure leaves the room Ready but empty and is returned to the caller.
func (c *Controller) OpenRoom(ctx context.Context, room domain.RoomID) error {
	c.mu.Lock()
	if c.state != Idle && c.room != room {
		c.keys.Drop(c.room)
	}
	c.epoch++
	epoch := c.epoch
	c.room = room
	c.state = ResolvingKey
	c.hasKey = false
	c.msgs = nil
	c.seen = make(map[string]struct{})
	c.pending = nil
	c.mu.Unlock()

	key, ok := c.keys.Get(room)
	if !ok {
		var err error
		key, ok, err = c.resolver.Resolve(ctx, room, c.self)
		if err != nil {
			// Degrade like any other resolution failure, but keep the trace.
			c.log.Warn().Str("room", room.String()).Err(err).Msg("key resolution errored, room degrades to plaintext")
			ok = false
		}
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return nil // superseded by a later OpenRoom
	}
	if ok {
		c.key = key
		c.hasKey = true
		c.keys.Put(room, key)
	}
	c.state = LoadingHistory
	c.mu.Unlock()

	rows, histErr := c.store.Messages(ctx, room)
	if histErr != nil {
		c.log.Error().Str("room", room.String()).Err(histErr).Msg("history fetch failed")
		rows = nil
	}
	// Display order is creation-time ascending regardless of response order.
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })

	profiles := c.senderProfiles(ctx, rows)

	rendered := make([]domain.PlainMessage, 0, len(rows))
	for _, rec := range rows {
		rendered = append(rendered, c.render(rec, key, ok, profiles))
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return nil
	}
	c.msgs = rendered
	for _, msg := range rendered {
		c.seen[msg.ID] = struct{}{}
	}
	// Flush relay events buffered during the load, skipping rows already in
	// the history fetch.
	var flush []domain.PlainMessage
	for _, rec := range c.pending {
		if _, dup := c.seen[rec.ID]; dup {
			continue
		}
		msg := c.render(rec, c.key, c.hasKey, profiles)
		c.msgs = append(c.msgs, msg)
		c.seen[rec.ID] = struct{}{}
		flush = append(flush, msg)
	}
	c.pending = nil
	c.state = Ready
	history := append([]domain.PlainMessage(nil), c.msgs...)
	c.mu.Unlock()

	if c.sink != nil {
		c.sink.HistoryLoaded(room, history)
		for _, msg := range flush {
			c.sink.MessageArrived(room, msg)
		}
	}
	if histErr != nil {
		return fmt.Errorf("load history for room %s: %w", room, histErr)
	}
	return nil
}

// CloseRoom returns to Idle and discards the room's session key.
func (c *Controller) CloseRoom() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Idle {
		return
	}
	c.keys.Drop(c.room)
	c.epoch++
	c.room = ""
	c.state = Idle
	c.hasKey = false
	c.key = domain.SessionKey{}
	c.msgs = nil
	c.seen = nil
	c.pending = nil
}

// Send encrypts text under the open room's session key and persists the
// row. In a degraded (no-key) room the row is persisted as plaintext with no
// iv. An encryption failure fails the send; plaintext is never a fallback
// when a key was expected.
func (c *Controller) Send(ctx context.Context, text string) error {
	c.mu.Lock()
	if c.state != Ready {
		c.mu.Unlock()
		return ErrRoomNotOpen
	}
	room := c.room
	key := c.key
	hasKey := c.hasKey
	c.mu.Unlock()

	rec := domain.MessageRecord{
		ID:       uuid.NewString(),
		RoomID:   room,
		SenderID: c.self.UserID,
	}
	if hasKey {
		cipherText, nonce, err := msgcrypt.Encrypt(text, key)
		if err != nil {
			return fmt.Errorf("send to room %s: %w", room, err)
		}
		rec.Content = base64.StdEncoding.EncodeToString(cipherText)
		rec.IV = base64.StdEncoding.EncodeToString(nonce)
	} else {
		rec.Content = text
	}

	if _, err := c.store.AppendMessage(ctx, rec); err != nil {
		return fmt.Errorf("send to room %s: %w", room, err)
	}
	// The relay echo is the canonical append path; nothing is added to the
	// local sequence here.
	return nil
}

// OnRelayEvent handles one message-insert event from the relay. Events for
// the open Ready room are decrypted and appended in arrival order; events
// for a room still loading are buffered until Ready; events for any other
// room update its preview only.
func (c *Controller) OnRelayEvent(rec domain.MessageRecord) {
	c.mu.Lock()
	switch {
	case rec.RoomID == c.room && c.state == Ready:
		if _, dup := c.seen[rec.ID]; dup {
			c.mu.Unlock()
			return
		}
		msg := c.render(rec, c.key, c.hasKey, nil)
		c.msgs = append(c.msgs, msg)
		c.seen[rec.ID] = struct{}{}
		room := c.room
		c.mu.Unlock()
		if c.sink != nil {
			c.sink.MessageArrived(room, msg)
		}
	case rec.RoomID == c.room && (c.state == ResolvingKey || c.state == LoadingHistory):
		c.pending = append(c.pending, rec)
		c.mu.Unlock()
	default:
		c.mu.Unlock()
		if c.sink != nil {
			c.sink.PreviewUpdated(rec.RoomID, PreviewText(rec.Content, rec.IV), rec.CreatedAt)
		}
	}
}

// PreviewText returns the room-list preview for a stored row. Encrypted
// content is redacted, never decrypted: the resolver only runs for the open
// room.
func PreviewText(content, iv string) string {
	if iv == "" {
		return content
	}
	return EncryptedText
}

// render produces the view model for one raw row, applying the placeholder
// policy for rows that cannot be shown.
func (c *Controller) render(rec domain.MessageRecord, key domain.SessionKey, hasKey bool, profiles map[domain.UserID]*domain.Profile) domain.PlainMessage {
	out := domain.PlainMessage{
		ID:        rec.ID,
		RoomID:    rec.RoomID,
		SenderID:  rec.SenderID,
		CreatedAt: rec.CreatedAt,
	}
	if profiles != nil {
		out.Sender = profiles[rec.SenderID]
	}

	msg, err := domain.DecodeMessage(rec)
	if err != nil {
		c.log.Warn().Str("room", rec.RoomID.String()).Str("msg", rec.ID).Err(err).Msg("undecodable message row")
		out.Text = DecryptFailedText
		out.Encrypted = true
		return out
	}
	switch body := msg.Body.(type) {
	case domain.Plain:
		out.Text = body.Text
	case domain.Encrypted:
		out.Encrypted = true
		if !hasKey {
			out.Text = EncryptedText
			return out
		}
		text, err := msgcrypt.Decrypt(body.Cipher, body.Nonce, key)
		if err != nil {
			c.log.Warn().Str("room", rec.RoomID.String()).Str("msg", rec.ID).Err(err).Msg("message decryption failed")
			out.Text = DecryptFailedText
			return out
		}
		out.Text = text
	}
	return out
}

// senderProfiles best-effort resolves the profile of every distinct sender
// in rows. Lookup failures leave the profile nil.
func (c *Controller) senderProfiles(ctx context.Context, rows []domain.MessageRecord) map[domain.UserID]*domain.Profile {
	out := make(map[domain.UserID]*domain.Profile)
	for _, rec := range rows {
		if _, done := out[rec.SenderID]; done {
			continue
		}
		out[rec.SenderID] = nil
		p, ok, err := c.store.Profile(ctx, rec.SenderID)
		if err != nil || !ok {
			continue
		}
		cp := p
		out[rec.SenderID] = &cp
	}
	return out
}
