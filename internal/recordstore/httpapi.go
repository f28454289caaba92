package recordstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"unichat/internal/crypto"
	"unichat/internal/domain"
	"unichat/internal/relayapi"
)

// HTTPAPI is a RecordStore speaking to the relay server's REST surface. Live
// message events come over the companion websocket, not through this client.
type HTTPAPI struct {
	base string
	http *http.Client
}

// NewHTTPAPI returns a client for the relay server at base.
func NewHTTPAPI(base string) *HTTPAPI {
	return &HTTPAPI{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *HTTPAPI) WrappedSessionKey(ctx context.Context, room domain.RoomID, user domain.UserID) (domain.WrappedSessionKey, bool, error) {
	var out domain.WrappedSessionKey
	found, err := c.getJSON(ctx, "/rooms/"+url.PathEscape(room.String())+"/keys/"+url.PathEscape(user.String()), &out)
	return out, found, err
}

func (c *HTTPAPI) SaveWrappedSessionKey(ctx context.Context, key domain.WrappedSessionKey) error {
	return c.post(ctx, "/keys", key, nil)
}

func (c *HTTPAPI) PublicKey(ctx context.Context, user domain.UserID) (domain.PublicKeyRecord, bool, error) {
	var wire relayapi.PublicKey
	found, err := c.getJSON(ctx, "/pubkeys/"+url.PathEscape(user.String()), &wire)
	if err != nil || !found {
		return domain.PublicKeyRecord{}, false, err
	}
	pub, err := crypto.DecodePublicKey(wire.Key)
	if err != nil {
		return domain.PublicKeyRecord{}, false, fmt.Errorf("public key %s: %w", user, err)
	}
	return domain.PublicKeyRecord{UserID: domain.UserID(wire.UserID), Key: pub}, true, nil
}

func (c *HTTPAPI) PublishPublicKey(ctx context.Context, rec domain.PublicKeyRecord) error {
	wire := relayapi.PublicKey{
		UserID: rec.UserID.String(),
		Key:    crypto.EncodePublicKey(rec.Key),
	}
	return c.post(ctx, "/pubkeys", wire, nil)
}

func (c *HTTPAPI) Profile(ctx context.Context, user domain.UserID) (domain.Profile, bool, error) {
	var out domain.Profile
	found, err := c.getJSON(ctx, "/profiles/"+url.PathEscape(user.String()), &out)
	return out, found, err
}

func (c *HTTPAPI) Participants(ctx context.Context, room domain.RoomID) ([]domain.UserID, error) {
	var ids []string
	found, err := c.getJSON(ctx, "/rooms/"+url.PathEscape(room.String())+"/participants", &ids)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("room %s not found", room)
	}
	out := make([]domain.UserID, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.UserID(id))
	}
	return out, nil
}

func (c *HTTPAPI) Rooms(ctx context.Context, user domain.UserID) ([]domain.Room, error) {
	var out []domain.Room
	if _, err := c.getJSON(ctx, "/users/"+url.PathEscape(user.String())+"/rooms", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPAPI) CreateRoom(ctx context.Context, name string, members []domain.UserID) (domain.RoomID, error) {
	req := relayapi.CreateRoom{Name: name}
	for _, m := range members {
		req.Members = append(req.Members, m.String())
	}
	var resp relayapi.RoomCreated
	if err := c.post(ctx, "/rooms", req, &resp); err != nil {
		return "", err
	}
	return domain.RoomID(resp.ID), nil
}

func (c *HTTPAPI) Messages(ctx context.Context, room domain.RoomID) ([]domain.MessageRecord, error) {
	var out []domain.MessageRecord
	found, err := c.getJSON(ctx, "/rooms/"+url.PathEscape(room.String())+"/messages", &out)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("room %s not found", room)
	}
	return out, nil
}

func (c *HTTPAPI) AppendMessage(ctx context.Context, rec domain.MessageRecord) (domain.MessageRecord, error) {
	var out domain.MessageRecord
	err := c.post(ctx, "/rooms/"+url.PathEscape(rec.RoomID.String())+"/messages", rec, &out)
	if err != nil {
		return domain.MessageRecord{}, err
	}
	return out, nil
}

func (c *HTTPAPI) post(ctx context.Context, path string, in, out any) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return fmt.Errorf("relay post %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, buf)
	if err != nil {
		return fmt.Errorf("relay post %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("relay post %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("relay post %s: %s", path, apiError(resp))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("relay post %s: %w", path, err)
		}
	}
	return nil
}

// getJSON fetches path into out. A 404 reports found=false with no error.
func (c *HTTPAPI) getJSON(ctx context.Context, path string, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return false, fmt.Errorf("relay get %s: %w", path, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("relay get %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode/100 != 2 {
		return false, fmt.Errorf("relay get %s: %s", path, apiError(resp))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("relay get %s: %w", path, err)
	}
	return true, nil
}

func apiError(resp *http.Response) string {
	var e relayapi.Error
	if err := json.NewDecoder(resp.Body).Decode(&e); err == nil && e.Error != "" {
		return fmt.Sprintf("%s (%s)", resp.Status, e.Error)
	}
	return resp.Status
}

var _ domain.RecordStore = (*HTTPAPI)(nil)
