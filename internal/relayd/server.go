package relayd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"unichat/internal/crypto"
	"unichat/internal/domain"
	"unichat/internal/relayapi"
)

// Server is the relay: the REST record API plus the websocket event stream
// clients subscribe to. It owns no client-side key material and only ever
// sees ciphertext for encrypted rooms.
type Server struct {
	cfg     Config
	store   domain.RecordStore
	log     zerolog.Logger
	hub     *hub
	broker  *broker
	limiter *senderLimiter
	metrics *metrics
	router  *mux.Router
}

// New builds a server over store and starts its websocket hub, so Handler
// works with or without Run. Redis, when configured, is dialed in Run.
func New(cfg Config, store domain.RecordStore, log zerolog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		store:   store,
		log:     log,
		limiter: newSenderLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		metrics: newMetrics(),
	}
	s.hub = newHub(log, s.metrics.wsClients)
	s.router = s.routes()
	return s
}

// Handler exposes the full route table, for tests and embedding. Callers
// serving it without Run own the shutdown and call Close when done.
func (s *Server) Handler() http.Handler { return s.router }

// Close stops the websocket hub and disconnects its subscribers. Run does
// this on exit; it only needs calling directly when Handler is served by
// other means.
func (s *Server) Close() { s.hub.stop() }

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.Close()

	if s.cfg.RedisAddr != "" {
		b, err := newBroker(ctx, s.cfg.RedisAddr, s.cfg.RedisChannel, s.log)
		if err != nil {
			return err
		}
		defer b.close()
		s.broker = b
		go b.run(ctx, s.hub)
	}

	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // websocket connections are long-lived
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info().Str("addr", s.cfg.Addr).Str("store", s.cfg.Store).Msg("relay listening")

	select {
	case err := <-errc:
		return fmt.Errorf("relay serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("relay shutdown: %w", err)
	}
	return nil
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.instrument)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.hub.serveWS).Methods(http.MethodGet)

	r.HandleFunc("/pubkeys", s.handlePublishKey).Methods(http.MethodPost)
	r.HandleFunc("/pubkeys/{user}", s.handlePublicKey).Methods(http.MethodGet)
	r.HandleFunc("/profiles/{user}", s.handleProfile).Methods(http.MethodGet)
	r.HandleFunc("/keys", s.handleSaveWrappedKey).Methods(http.MethodPost)
	r.HandleFunc("/rooms", s.handleCreateRoom).Methods(http.MethodPost)
	r.HandleFunc("/rooms/{room}/keys/{user}", s.handleWrappedKey).Methods(http.MethodGet)
	r.HandleFunc("/rooms/{room}/participants", s.handleParticipants).Methods(http.MethodGet)
	r.HandleFunc("/rooms/{room}/messages", s.handleMessages).Methods(http.MethodGet)
	r.HandleFunc("/rooms/{room}/messages", s.handlePostMessage).Methods(http.MethodPost)
	r.HandleFunc("/users/{user}/rooms", s.handleRooms).Methods(http.MethodGet)
	return r
}

// instrument records request latency per route template.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unknown"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		if route == "/ws" || route == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		next.ServeHTTP(w, r)
		s.metrics.requestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePublishKey(w http.ResponseWriter, r *http.Request) {
	var wire relayapi.PublicKey
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	pub, err := crypto.DecodePublicKey(wire.Key)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	rec := domain.PublicKeyRecord{UserID: domain.UserID(wire.UserID), Key: pub}
	if err := s.store.PublishPublicKey(r.Context(), rec); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePublicKey(w http.ResponseWriter, r *http.Request) {
	user := domain.UserID(mux.Vars(r)["user"])
	rec, ok, err := s.store.PublicKey(r.Context(), user)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("no key for %s", user))
		return
	}
	writeJSON(w, http.StatusOK, relayapi.PublicKey{
		UserID: rec.UserID.String(),
		Key:    crypto.EncodePublicKey(rec.Key),
	})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	user := domain.UserID(mux.Vars(r)["user"])
	p, ok, err := s.store.Profile(r.Context(), user)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("no profile for %s", user))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleSaveWrappedKey(w http.ResponseWriter, r *http.Request) {
	var rec domain.WrappedSessionKey
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if rec.RoomID == "" || rec.UserID == "" || len(rec.Blob) == 0 {
		s.writeError(w, http.StatusBadRequest, errors.New("room_id, user_id and blob are required"))
		return
	}
	if err := s.store.SaveWrappedSessionKey(r.Context(), rec); err != nil {
		s.writeError(w, http.StatusConflict, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWrappedKey(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	room, user := domain.RoomID(vars["room"]), domain.UserID(vars["user"])
	rec, ok, err := s.store.WrappedSessionKey(r.Context(), room, user)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("no wrapped key for (%s,%s)", room, user))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req relayapi.CreateRoom
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	members := make([]domain.UserID, 0, len(req.Members))
	for _, m := range req.Members {
		members = append(members, domain.UserID(m))
	}
	id, err := s.store.CreateRoom(r.Context(), req.Name, members)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, relayapi.RoomCreated{ID: id.String()})
}

func (s *Server) handleParticipants(w http.ResponseWriter, r *http.Request) {
	room := domain.RoomID(mux.Vars(r)["room"])
	members, err := s.store.Participants(r.Context(), room)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	out := make([]string, 0, len(members))
	for _, m := range members {
		out = append(out, m.String())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	user := domain.UserID(mux.Vars(r)["user"])
	rooms, err := s.store.Rooms(r.Context(), user)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if rooms == nil {
		rooms = []domain.Room{}
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	room := domain.RoomID(mux.Vars(r)["room"])
	rows, err := s.store.Messages(r.Context(), room)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	if rows == nil {
		rows = []domain.MessageRecord{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// handlePostMessage stores a row and echoes it to every subscriber. The
// server never inspects content; ciphertext and plaintext rows take the same
// path.
func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	room := domain.RoomID(mux.Vars(r)["room"])
	var rec domain.MessageRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	rec.RoomID = room
	if rec.SenderID == "" || rec.Content == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("user_id and content are required"))
		return
	}
	if !s.limiter.allow(rec.SenderID.String(), time.Now()) {
		s.metrics.messagesDropped.Inc()
		s.writeError(w, http.StatusTooManyRequests, fmt.Errorf("rate limit exceeded for %s", rec.SenderID))
		return
	}

	stored, err := s.store.AppendMessage(r.Context(), rec)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.metrics.messagesStored.Inc()

	frame, err := json.Marshal(stored)
	if err == nil {
		// With a broker, the local hub gets the frame back off the shared
		// channel like every other instance; publishing to both would double
		// up for local subscribers.
		if s.broker != nil {
			s.broker.publish(r.Context(), frame)
		} else {
			s.hub.publish(frame)
		}
	}
	writeJSON(w, http.StatusCreated, stored)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= 500 {
		s.log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, relayapi.Error{Error: err.Error()})
}
