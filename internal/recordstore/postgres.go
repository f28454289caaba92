package recordstore

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"unichat/internal/crypto"
	"unichat/internal/domain"
)

// Postgres is the production RecordStore, backed by the relay server's
// database. It does not implement Relay; live events come over the websocket.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres connects and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{db: db}, nil
}

// NewPostgres wraps an existing handle. The caller keeps ownership.
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// Close releases the underlying pool.
func (p *Postgres) Close() error { return p.db.Close() }

// EnsureSchema creates the tables used by the store if they do not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS profiles (
	id          TEXT PRIMARY KEY,
	full_name   TEXT NOT NULL DEFAULT '',
	handle      TEXT NOT NULL DEFAULT '',
	avatar_url  TEXT NOT NULL DEFAULT '',
	public_key  TEXT
);

CREATE TABLE IF NOT EXISTS chat_rooms (
	id         UUID PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS chat_participants (
	room_id UUID NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
	user_id TEXT NOT NULL,
	PRIMARY KEY (room_id, user_id)
);

CREATE TABLE IF NOT EXISTS chat_messages (
	id         UUID PRIMARY KEY,
	room_id    UUID NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
	user_id    TEXT NOT NULL,
	content    TEXT NOT NULL,
	iv         TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS chat_messages_room_created
	ON chat_messages (room_id, created_at);

CREATE TABLE IF NOT EXISTS chat_room_keys (
	room_id               UUID NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
	user_id               TEXT NOT NULL,
	encrypted_session_key TEXT NOT NULL,
	PRIMARY KEY (room_id, user_id)
);
`

func (p *Postgres) WrappedSessionKey(ctx context.Context, room domain.RoomID, user domain.UserID) (domain.WrappedSessionKey, bool, error) {
	var blob string
	err := p.db.QueryRowContext(ctx,
		`SELECT encrypted_session_key FROM chat_room_keys WHERE room_id = $1 AND user_id = $2`,
		room.String(), user.String(),
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.WrappedSessionKey{}, false, nil
	}
	if err != nil {
		return domain.WrappedSessionKey{}, false, fmt.Errorf("wrapped key (%s,%s): %w", room, user, err)
	}
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return domain.WrappedSessionKey{}, false, fmt.Errorf("wrapped key (%s,%s): %w", room, user, err)
	}
	return domain.WrappedSessionKey{RoomID: room, UserID: user, Blob: raw}, true, nil
}

func (p *Postgres) SaveWrappedSessionKey(ctx context.Context, key domain.WrappedSessionKey) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO chat_room_keys (room_id, user_id, encrypted_session_key) VALUES ($1, $2, $3)`,
		key.RoomID.String(), key.UserID.String(), base64.StdEncoding.EncodeToString(key.Blob),
	)
	if err != nil {
		return fmt.Errorf("save wrapped key (%s,%s): %w", key.RoomID, key.UserID, err)
	}
	return nil
}

func (p *Postgres) PublicKey(ctx context.Context, user domain.UserID) (domain.PublicKeyRecord, bool, error) {
	var encoded sql.NullString
	err := p.db.QueryRowContext(ctx,
		`SELECT public_key FROM profiles WHERE id = $1`, user.String(),
	).Scan(&encoded)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PublicKeyRecord{}, false, nil
	}
	if err != nil {
		return domain.PublicKeyRecord{}, false, fmt.Errorf("public key %s: %w", user, err)
	}
	if !encoded.Valid || encoded.String == "" {
		return domain.PublicKeyRecord{}, false, nil
	}
	pub, err := crypto.DecodePublicKey(encoded.String)
	if err != nil {
		return domain.PublicKeyRecord{}, false, fmt.Errorf("public key %s: %w", user, err)
	}
	return domain.PublicKeyRecord{UserID: user, Key: pub}, true, nil
}

func (p *Postgres) PublishPublicKey(ctx context.Context, rec domain.PublicKeyRecord) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO profiles (id, handle, public_key) VALUES ($1, $1, $2)
		 ON CONFLICT (id) DO UPDATE SET public_key = EXCLUDED.public_key`,
		rec.UserID.String(), crypto.EncodePublicKey(rec.Key),
	)
	if err != nil {
		return fmt.Errorf("publish public key %s: %w", rec.UserID, err)
	}
	return nil
}

func (p *Postgres) Profile(ctx context.Context, user domain.UserID) (domain.Profile, bool, error) {
	var out domain.Profile
	var id string
	err := p.db.QueryRowContext(ctx,
		`SELECT id, full_name, handle, avatar_url FROM profiles WHERE id = $1`, user.String(),
	).Scan(&id, &out.DisplayName, &out.Handle, &out.AvatarURL)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Profile{}, false, nil
	}
	if err != nil {
		return domain.Profile{}, false, fmt.Errorf("profile %s: %w", user, err)
	}
	out.UserID = domain.UserID(id)
	return out, true, nil
}

func (p *Postgres) Participants(ctx context.Context, room domain.RoomID) ([]domain.UserID, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT user_id FROM chat_participants WHERE room_id = $1 ORDER BY user_id`, room.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("participants %s: %w", room, err)
	}
	defer rows.Close()

	var out []domain.UserID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("participants %s: %w", room, err)
		}
		out = append(out, domain.UserID(id))
	}
	return out, rows.Err()
}

func (p *Postgres) Rooms(ctx context.Context, user domain.UserID) ([]domain.Room, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT r.id, r.name, r.created_at,
		       COALESCE(m.content, ''), COALESCE(m.iv, ''), m.created_at
		FROM chat_rooms r
		JOIN chat_participants p ON p.room_id = r.id AND p.user_id = $1
		LEFT JOIN LATERAL (
			SELECT content, iv, created_at FROM chat_messages
			WHERE room_id = r.id ORDER BY created_at DESC LIMIT 1
		) m ON true
		ORDER BY COALESCE(m.created_at, r.created_at) DESC`,
		user.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("rooms for %s: %w", user, err)
	}
	defer rows.Close()

	var out []domain.Room
	for rows.Next() {
		var r domain.Room
		var id string
		var lastAt sql.NullTime
		if err := rows.Scan(&id, &r.Name, &r.CreatedAt, &r.LastMessage, &r.LastMessageIV, &lastAt); err != nil {
			return nil, fmt.Errorf("rooms for %s: %w", user, err)
		}
		r.ID = domain.RoomID(id)
		if lastAt.Valid {
			r.LastMessageAt = lastAt.Time
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateRoom(ctx context.Context, name string, members []domain.UserID) (domain.RoomID, error) {
	if len(members) == 0 {
		return "", fmt.Errorf("room needs at least one member")
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("create room: %w", err)
	}
	defer tx.Rollback()

	id := domain.RoomID(uuid.NewString())
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO chat_rooms (id, name) VALUES ($1, $2)`, id.String(), name,
	); err != nil {
		return "", fmt.Errorf("create room: %w", err)
	}
	for _, member := range members {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chat_participants (room_id, user_id) VALUES ($1, $2)`,
			id.String(), member.String(),
		); err != nil {
			return "", fmt.Errorf("create room: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("create room: %w", err)
	}
	return id, nil
}

func (p *Postgres) Messages(ctx context.Context, room domain.RoomID) ([]domain.MessageRecord, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, user_id, content, COALESCE(iv, ''), created_at
		 FROM chat_messages WHERE room_id = $1 ORDER BY created_at ASC`,
		room.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("messages %s: %w", room, err)
	}
	defer rows.Close()

	var out []domain.MessageRecord
	for rows.Next() {
		rec := domain.MessageRecord{RoomID: room}
		var id, sender string
		if err := rows.Scan(&id, &sender, &rec.Content, &rec.IV, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("messages %s: %w", room, err)
		}
		rec.ID = id
		rec.SenderID = domain.UserID(sender)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (p *Postgres) AppendMessage(ctx context.Context, rec domain.MessageRecord) (domain.MessageRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	var iv any
	if rec.IV != "" {
		iv = rec.IV
	}
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO chat_messages (id, room_id, user_id, content, iv)
		 VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		rec.ID, rec.RoomID.String(), rec.SenderID.String(), rec.Content, iv,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return domain.MessageRecord{}, fmt.Errorf("append message to %s: %w", rec.RoomID, err)
	}
	return rec, nil
}

var _ domain.RecordStore = (*Postgres)(nil)
