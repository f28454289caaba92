package relayd

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 50 * time.Second
	sendBuffer     = 64
	maxFrameLength = 512
)

// hub fans stored-message frames out to every connected websocket
// subscriber. Clients are read-mostly; a client that cannot keep up with its
// send buffer is dropped rather than allowed to stall the broadcast.
//
// The hub owns its event loop: it starts when the hub is built and runs
// until stop, so the handler works no matter how the routes are served.
type hub struct {
	log        zerolog.Logger
	gauge      prometheus.Gauge
	clients    map[*wsClient]struct{}
	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan []byte
	done       chan struct{}
	stopOnce   sync.Once
}

func newHub(log zerolog.Logger, gauge prometheus.Gauge) *hub {
	h := &hub{
		log:        log,
		gauge:      gauge,
		clients:    make(map[*wsClient]struct{}),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
	go h.run()
	return h
}

// stop shuts the event loop down and disconnects every subscriber.
func (h *hub) stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *hub) run() {
	for {
		select {
		case <-h.done:
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.gauge.Set(0)
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.gauge.Set(float64(len(h.clients)))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.gauge.Set(float64(len(h.clients)))
			}
		case frame := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- frame:
				default:
					delete(h.clients, c)
					close(c.send)
					h.gauge.Set(float64(len(h.clients)))
				}
			}
		}
	}
}

// publish queues one frame for all subscribers, dropping it if the hub has
// fallen behind or stopped.
func (h *hub) publish(frame []byte) {
	select {
	case <-h.done:
	case h.broadcast <- frame:
	default:
		h.log.Warn().Msg("broadcast queue full, frame dropped")
	}
}

type wsClient struct {
	hub  *hub
	conn *websocket.Conn
	send chan []byte
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The relay is a development server; browser-origin policy is handled by
	// whatever fronts it in real deployments.
	CheckOrigin: func(*http.Request) bool { return true },
}

// serveWS upgrades the request and attaches the connection to the hub.
func (h *hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := &wsClient{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// readPump discards inbound frames; the stream is server to client only.
// Reading is still required to notice closes and answer pings.
func (c *wsClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxFrameLength)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.hub.log.Debug().Err(err).Msg("websocket closed")
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	pings := time.NewTicker(pingPeriod)
	defer func() {
		pings.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-pings.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
