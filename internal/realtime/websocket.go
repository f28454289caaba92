package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"unichat/internal/domain"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
	maxBackoff = 30 * time.Second
)

// Client is a Relay over a websocket to the relay server. Each subscription
// holds its own connection and reconnects with backoff until closed; events
// broadcast while disconnected are missed, which the chat layer tolerates
// (history is refetched on every room open).
type Client struct {
	url string
	log zerolog.Logger
}

// New returns a relay client for the given ws:// or wss:// endpoint.
func New(url string, log zerolog.Logger) *Client {
	return &Client{url: url, log: log}
}

type wsSub struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *wsSub) Close() error {
	s.cancel()
	<-s.done
	return nil
}

// Subscribe starts delivering message events to fn until the subscription or
// ctx is closed. fn is called from a single goroutine.
func (c *Client) Subscribe(ctx context.Context, fn func(domain.MessageRecord)) (domain.Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	sub := &wsSub{cancel: cancel, done: make(chan struct{})}
	go c.run(ctx, fn, sub.done)
	return sub, nil
}

func (c *Client) run(ctx context.Context, fn func(domain.MessageRecord), done chan<- struct{}) {
	defer close(done)
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		if err != nil {
			c.log.Warn().Str("url", c.url).Err(err).Dur("retry_in", backoff).Msg("relay dial failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff *= 2; backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second
		c.log.Debug().Str("url", c.url).Msg("relay connected")
		c.readLoop(ctx, conn, fn)
		conn.Close()
	}
}

// readLoop decodes frames into records until the connection breaks or ctx
// ends. Frames that do not decode are dropped with a log line; one bad event
// must not kill the stream.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, fn func(domain.MessageRecord)) {
	stop := context.AfterFunc(ctx, func() {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	})
	defer stop()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	pings := time.NewTicker(pingPeriod)
	defer pings.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-pings.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn().Err(err).Msg("relay connection lost")
			}
			return
		}
		var rec domain.MessageRecord
		if err := json.Unmarshal(frame, &rec); err != nil {
			c.log.Warn().Err(err).Msg("undecodable relay frame")
			continue
		}
		fn(rec)
	}
}

var _ domain.Relay = (*Client)(nil)
