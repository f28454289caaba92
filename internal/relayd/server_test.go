package relayd_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"unichat/internal/crypto"
	"unichat/internal/domain"
	"unichat/internal/realtime"
	"unichat/internal/recordstore"
	"unichat/internal/relayd"
)

func newTestServer(t *testing.T) (*httptest.Server, *recordstore.Memory) {
	t.Helper()
	store := recordstore.NewMemory()
	cfg := relayd.DefaultConfig()
	srv := relayd.New(cfg, store, zerolog.Nop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return ts, store
}

// The HTTPAPI client and the server share the wire format; drive the whole
// record surface through both ends.
func TestServer_RecordRoundTrip(t *testing.T) {
	ts, _ := newTestServer(t)
	client := recordstore.NewHTTPAPI(ts.URL)
	ctx := context.Background()

	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	if err := client.PublishPublicKey(ctx, domain.PublicKeyRecord{UserID: "alice", Key: kp.Pub}); err != nil {
		t.Fatalf("PublishPublicKey: %v", err)
	}
	got, ok, err := client.PublicKey(ctx, "alice")
	if err != nil || !ok {
		t.Fatalf("PublicKey: ok=%v err=%v", ok, err)
	}
	if got.Key != kp.Pub {
		t.Fatalf("round-tripped key differs")
	}
	if _, ok, err := client.PublicKey(ctx, "nobody"); err != nil || ok {
		t.Fatalf("missing key: ok=%v err=%v, want absent with no error", ok, err)
	}

	room, err := client.CreateRoom(ctx, "alice & bob", []domain.UserID{"alice", "bob"})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	members, err := client.Participants(ctx, room)
	if err != nil || len(members) != 2 {
		t.Fatalf("Participants: %v %v", members, err)
	}

	wrapped := domain.WrappedSessionKey{RoomID: room, UserID: "alice", Blob: []byte("sealed")}
	if err := client.SaveWrappedSessionKey(ctx, wrapped); err != nil {
		t.Fatalf("SaveWrappedSessionKey: %v", err)
	}
	if err := client.SaveWrappedSessionKey(ctx, wrapped); err == nil {
		t.Fatalf("duplicate wrapped key accepted over the wire")
	}
	back, ok, err := client.WrappedSessionKey(ctx, room, "alice")
	if err != nil || !ok {
		t.Fatalf("WrappedSessionKey: ok=%v err=%v", ok, err)
	}
	if string(back.Blob) != "sealed" {
		t.Fatalf("blob round-trip: %q", back.Blob)
	}

	stored, err := client.AppendMessage(ctx, domain.MessageRecord{
		RoomID: room, SenderID: "alice", Content: "Qg==", IV: "AAAA",
	})
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if stored.ID == "" || stored.CreatedAt.IsZero() {
		t.Fatalf("server did not assign id/timestamp: %+v", stored)
	}
	rows, err := client.Messages(ctx, room)
	if err != nil || len(rows) != 1 {
		t.Fatalf("Messages: %v %v", rows, err)
	}
	if rows[0].Content != "Qg==" || rows[0].IV != "AAAA" {
		t.Fatalf("stored row mutated: %+v", rows[0])
	}

	rooms, err := client.Rooms(ctx, "alice")
	if err != nil || len(rooms) != 1 {
		t.Fatalf("Rooms: %v %v", rooms, err)
	}
	if rooms[0].LastMessage != "Qg==" {
		t.Fatalf("room preview not updated: %+v", rooms[0])
	}
}

func TestServer_WebsocketStream(t *testing.T) {
	ts, _ := newTestServer(t)
	client := recordstore.NewHTTPAPI(ts.URL)
	ctx := context.Background()

	room, err := client.CreateRoom(ctx, "r", []domain.UserID{"alice", "bob"})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	wsURL := strings.Replace(ts.URL, "http://", "ws://", 1) + "/ws"
	relay := realtime.New(wsURL, zerolog.Nop())
	events := make(chan domain.MessageRecord, 8)
	sub, err := relay.Subscribe(ctx, func(rec domain.MessageRecord) { events <- rec })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	// Give the subscriber a moment to finish the upgrade; frames broadcast
	// before registration are not replayed.
	deadline := time.After(5 * time.Second)
	var got domain.MessageRecord
	for {
		if _, err := client.AppendMessage(ctx, domain.MessageRecord{RoomID: room, SenderID: "alice", Content: "ping"}); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
		select {
		case got = <-events:
		case <-time.After(200 * time.Millisecond):
			continue
		case <-deadline:
			t.Fatalf("no websocket event received")
		}
		break
	}
	if got.RoomID != room || got.Content != "ping" || got.ID == "" {
		t.Fatalf("event = %+v", got)
	}
}

// Serving Handler without Run must still deliver events: the hub loop
// belongs to the server, not to Run.
func TestServer_HubRunsWithoutRun(t *testing.T) {
	store := recordstore.NewMemory()
	srv := relayd.New(relayd.DefaultConfig(), store, zerolog.Nop())
	defer srv.Close()
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx := context.Background()
	room, err := store.CreateRoom(ctx, "r", []domain.UserID{"alice"})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(strings.Replace(ts.URL, "http://", "ws://", 1)+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	client := recordstore.NewHTTPAPI(ts.URL)
	if _, err := client.AppendMessage(ctx, domain.MessageRecord{RoomID: room, SenderID: "alice", Content: "hello"}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("no event without Run: %v", err)
	}
	var rec domain.MessageRecord
	if err := json.Unmarshal(frame, &rec); err != nil {
		t.Fatalf("bad frame %q: %v", frame, err)
	}
	if rec.RoomID != room || rec.Content != "hello" {
		t.Fatalf("event = %+v", rec)
	}
}

// A /ws upgrade after Close must be turned away, not left hanging on a hub
// that no longer consumes registrations.
func TestServer_WebsocketAfterClose(t *testing.T) {
	store := recordstore.NewMemory()
	srv := relayd.New(relayd.DefaultConfig(), store, zerolog.Nop())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(strings.Replace(ts.URL, "http://", "ws://", 1)+"/ws", nil)
	if err != nil {
		return // upgrade refused outright is fine too
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("connection stayed live after Close")
	}
}

func TestServer_RateLimitsSender(t *testing.T) {
	store := recordstore.NewMemory()
	cfg := relayd.DefaultConfig()
	cfg.RateLimit = relayd.RateLimitConfig{RPS: 1, Burst: 2}
	srv := relayd.New(cfg, store, zerolog.Nop())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	client := recordstore.NewHTTPAPI(ts.URL)
	ctx := context.Background()
	room, err := client.CreateRoom(ctx, "r", []domain.UserID{"alice"})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	var limited bool
	for i := 0; i < 5; i++ {
		if _, err := client.AppendMessage(ctx, domain.MessageRecord{RoomID: room, SenderID: "alice", Content: "x"}); err != nil {
			limited = true
			break
		}
	}
	if !limited {
		t.Fatalf("burst of sends was never limited")
	}
	// Another sender has their own bucket.
	if _, err := client.AppendMessage(ctx, domain.MessageRecord{RoomID: room, SenderID: "bob", Content: "x"}); err != nil {
		t.Fatalf("unrelated sender limited: %v", err)
	}
}

func TestServer_RejectsBadMessage(t *testing.T) {
	ts, _ := newTestServer(t)
	client := recordstore.NewHTTPAPI(ts.URL)
	ctx := context.Background()

	room, err := client.CreateRoom(ctx, "r", []domain.UserID{"alice"})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if _, err := client.AppendMessage(ctx, domain.MessageRecord{RoomID: room, Content: "no sender"}); err == nil {
		t.Fatalf("senderless message accepted")
	}
	if _, err := client.AppendMessage(ctx, domain.MessageRecord{RoomID: "not-a-room", SenderID: "alice", Content: "x"}); err == nil {
		t.Fatalf("message to unknown room accepted")
	}
}

func TestLoadConfig_Validation(t *testing.T) {
	if _, err := relayd.LoadConfig(""); err != nil {
		t.Fatalf("defaults rejected: %v", err)
	}
	path := filepath.Join(t.TempDir(), "relayd.yaml")
	if err := os.WriteFile(path, []byte("store: postgres\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := relayd.LoadConfig(path); err == nil {
		t.Fatalf("postgres store without dsn accepted")
	}
	if err := os.WriteFile(path, []byte("addr: \":9999\"\nstore: memory\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := relayd.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.RateLimit.RPS != relayd.DefaultConfig().RateLimit.RPS {
		t.Fatalf("overrides not merged over defaults: %+v", cfg)
	}
}
