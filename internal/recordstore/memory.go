package recordstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"unichat/internal/domain"
)

// Memory is an in-memory RecordStore. It backs package tests and the
// development relay server, and doubles as a loopback Relay: watchers are
// notified of every appended message.
type Memory struct {
	mu          sync.RWMutex
	wrapped     map[domain.RoomID]map[domain.UserID]domain.WrappedSessionKey
	pubKeys     map[domain.UserID]domain.PublicKeyRecord
	profiles    map[domain.UserID]domain.Profile
	rooms       map[domain.RoomID]*memRoom
	msgs        map[domain.RoomID][]domain.MessageRecord
	watchers    map[int64]func(domain.MessageRecord)
	nextWatcher int64
}

type memRoom struct {
	room    domain.Room
	members []domain.UserID
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		wrapped:  make(map[domain.RoomID]map[domain.UserID]domain.WrappedSessionKey),
		pubKeys:  make(map[domain.UserID]domain.PublicKeyRecord),
		profiles: make(map[domain.UserID]domain.Profile),
		rooms:    make(map[domain.RoomID]*memRoom),
		msgs:     make(map[domain.RoomID][]domain.MessageRecord),
		watchers: make(map[int64]func(domain.MessageRecord)),
	}
}

func (m *Memory) WrappedSessionKey(ctx context.Context, room domain.RoomID, user domain.UserID) (domain.WrappedSessionKey, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k, ok := m.wrapped[room][user]
	return k, ok, nil
}

func (m *Memory) SaveWrappedSessionKey(ctx context.Context, key domain.WrappedSessionKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byUser, ok := m.wrapped[key.RoomID]
	if !ok {
		byUser = make(map[domain.UserID]domain.WrappedSessionKey)
		m.wrapped[key.RoomID] = byUser
	}
	if _, exists := byUser[key.UserID]; exists {
		return fmt.Errorf("wrapped key for (%s,%s) already exists", key.RoomID, key.UserID)
	}
	byUser[key.UserID] = key
	return nil
}

func (m *Memory) PublicKey(ctx context.Context, user domain.UserID) (domain.PublicKeyRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.pubKeys[user]
	return rec, ok, nil
}

func (m *Memory) PublishPublicKey(ctx context.Context, rec domain.PublicKeyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pubKeys[rec.UserID] = rec
	if _, ok := m.profiles[rec.UserID]; !ok {
		m.profiles[rec.UserID] = domain.Profile{UserID: rec.UserID, Handle: rec.UserID.String()}
	}
	return nil
}

func (m *Memory) Profile(ctx context.Context, user domain.UserID) (domain.Profile, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[user]
	return p, ok, nil
}

// PutProfile seeds or replaces a profile. Not part of the RecordStore
// contract; used by tests and relayd setup.
func (m *Memory) PutProfile(p domain.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.UserID] = p
}

func (m *Memory) Participants(ctx context.Context, room domain.RoomID) ([]domain.UserID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[room]
	if !ok {
		return nil, fmt.Errorf("room %s not found", room)
	}
	return append([]domain.UserID(nil), r.members...), nil
}

func (m *Memory) Rooms(ctx context.Context, user domain.UserID) ([]domain.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Room
	for _, r := range m.rooms {
		for _, member := range r.members {
			if member == user {
				out = append(out, r.room)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		at, bt := a.LastMessageAt, b.LastMessageAt
		if at.IsZero() {
			at = a.CreatedAt
		}
		if bt.IsZero() {
			bt = b.CreatedAt
		}
		return at.After(bt)
	})
	return out, nil
}

func (m *Memory) CreateRoom(ctx context.Context, name string, members []domain.UserID) (domain.RoomID, error) {
	if len(members) == 0 {
		return "", fmt.Errorf("room needs at least one member")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := domain.RoomID(uuid.NewString())
	m.rooms[id] = &memRoom{
		room:    domain.Room{ID: id, Name: name, CreatedAt: time.Now().UTC()},
		members: append([]domain.UserID(nil), members...),
	}
	return id, nil
}

func (m *Memory) Messages(ctx context.Context, room domain.RoomID) ([]domain.MessageRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := append([]domain.MessageRecord(nil), m.msgs[room]...)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })
	return rows, nil
}

func (m *Memory) AppendMessage(ctx context.Context, rec domain.MessageRecord) (domain.MessageRecord, error) {
	m.mu.Lock()
	if _, ok := m.rooms[rec.RoomID]; !ok {
		m.mu.Unlock()
		return domain.MessageRecord{}, fmt.Errorf("room %s not found", rec.RoomID)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
		// Server-assigned timestamps must be monotonically increasing
		// within a room.
		if rows := m.msgs[rec.RoomID]; len(rows) > 0 {
			if last := rows[len(rows)-1].CreatedAt; !rec.CreatedAt.After(last) {
				rec.CreatedAt = last.Add(time.Microsecond)
			}
		}
	}
	m.msgs[rec.RoomID] = append(m.msgs[rec.RoomID], rec)

	r := m.rooms[rec.RoomID]
	r.room.LastMessage = rec.Content
	r.room.LastMessageIV = rec.IV
	r.room.LastMessageAt = rec.CreatedAt

	var fns []func(domain.MessageRecord)
	for _, fn := range m.watchers {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(rec)
	}
	return rec, nil
}

type memorySub struct {
	cancel func()
}

func (s *memorySub) Close() error {
	s.cancel()
	return nil
}

// Subscribe registers fn for every appended message, making Memory a
// loopback Relay for tests and single-process setups.
func (m *Memory) Subscribe(ctx context.Context, fn func(domain.MessageRecord)) (domain.Subscription, error) {
	m.mu.Lock()
	id := m.nextWatcher
	m.nextWatcher++
	m.watchers[id] = fn
	m.mu.Unlock()

	remove := func() {
		m.mu.Lock()
		delete(m.watchers, id)
		m.mu.Unlock()
	}
	stop := context.AfterFunc(ctx, remove)
	return &memorySub{cancel: func() {
		stop()
		remove()
	}}, nil
}

var (
	_ domain.RecordStore = (*Memory)(nil)
	_ domain.Relay       = (*Memory)(nil)
)
