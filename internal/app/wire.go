package app

import (
	"fmt"
	"strings"

	"unichat/internal/chat"
	"unichat/internal/domain"
	"unichat/internal/realtime"
	"unichat/internal/recordstore"
	"unichat/internal/services/account"
	"unichat/internal/services/roomkey"
	"unichat/internal/session"
	"unichat/internal/store"
)

// Wire bundles all stores, services and clients for the CLI.
type Wire struct {
	Identity domain.IdentityStore
	Records  domain.RecordStore
	Relay    domain.Relay
	Accounts *account.Service
	Rooms    *roomkey.Service
	Resolver *session.Resolver
	Keys     *session.KeyCache
}

// NewWire constructs the dependency graph from cfg.
func NewWire(cfg Config) (*Wire, error) {
	if cfg.RelayURL == "" {
		return nil, fmt.Errorf("relay URL is required")
	}
	wsURL := cfg.WSURL
	if wsURL == "" {
		var err error
		wsURL, err = deriveWSURL(cfg.RelayURL)
		if err != nil {
			return nil, err
		}
	}

	identity := store.NewIdentityFileStore(cfg.Home)
	records := recordstore.NewHTTPAPI(cfg.RelayURL)
	relay := realtime.New(wsURL, cfg.Log)

	return &Wire{
		Identity: identity,
		Records:  records,
		Relay:    relay,
		Accounts: account.New(identity, records),
		Rooms:    roomkey.New(records, cfg.Log),
		Resolver: session.NewResolver(records, cfg.Log),
		Keys:     session.NewKeyCache(),
	}, nil
}

// Controller builds a chat controller for the loaded identity.
func (w *Wire) Controller(cfg Config, self domain.Identity, sink chat.Sink) *chat.Controller {
	return chat.New(w.Records, w.Resolver, w.Keys, self, sink, cfg.Log)
}

// deriveWSURL maps the REST base to the server's websocket endpoint.
func deriveWSURL(relayURL string) (string, error) {
	relayURL = strings.TrimRight(relayURL, "/")
	switch {
	case strings.HasPrefix(relayURL, "http://"):
		return "ws://" + strings.TrimPrefix(relayURL, "http://") + "/ws", nil
	case strings.HasPrefix(relayURL, "https://"):
		return "wss://" + strings.TrimPrefix(relayURL, "https://") + "/ws", nil
	}
	return "", fmt.Errorf("cannot derive websocket URL from %q", relayURL)
}
