package network

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/luca-patrignani/mental-arena/errs"
	"github.com/luca-patrignani/mental-arena/note"
)

const (
	headerClock     = "Clock"
	headerSender    = "Sender"
	headerRecipient = "Recipient"

	maxPayload   = 64 << 10
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

// FeedEvent is pushed on the websocket feed for every new note.
type FeedEvent struct {
	ID     note.ID `json:"id"`
	Sender string  `json:"sender"`
}

type clockResponse struct {
	Clock uint64 `json:"clock"`
}

// Server exposes a Board over HTTP.
type Server struct {
	board     *Board
	server    *http.Server
	tlsConfig *tls.Config
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

type ServerOption func(*Server)

func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = l
	}
}

// WithCertificate serves over TLS with cert.
func WithCertificate(cert tls.Certificate) ServerOption {
	return func(s *Server) {
		if s.tlsConfig == nil {
			s.tlsConfig = &tls.Config{}
		}
		s.tlsConfig.Certificates = append(s.tlsConfig.Certificates, cert)
	}
}

func NewServer(board *Board, opts ...ServerOption) *Server {
	s := &Server{
		board:  board,
		logger: slog.Default(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.server = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	return s
}

// Handler returns the HTTP routes of the board.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /notes", s.postNote)
	mux.HandleFunc("GET /notes", s.listNotes)
	mux.HandleFunc("GET /clock", s.clock)
	mux.HandleFunc("GET /feed", s.feed)
	return mux
}

// Serve accepts connections on l until Close is called.
func (s *Server) Serve(l net.Listener) error {
	if s.tlsConfig != nil {
		l = tls.NewListener(l, s.tlsConfig)
	}
	s.logger.Info("board listening", "addr", l.Addr().String(), "tls", s.tlsConfig != nil)
	err := s.server.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) postNote(rw http.ResponseWriter, req *http.Request) {
	clockS := req.Header.Get(headerClock)
	if clockS == "" {
		http.Error(rw, "Clock field is not present in request", http.StatusNotAcceptable)
		return
	}
	clock, err := strconv.ParseUint(clockS, 10, 64)
	if err != nil {
		http.Error(rw, "Clock field is not a number", http.StatusNotAcceptable)
		return
	}
	payload, err := io.ReadAll(http.MaxBytesReader(rw, req.Body, maxPayload))
	if err != nil {
		http.Error(rw, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	sender := req.Header.Get(headerSender)
	m, err := s.board.Post(sender, req.Header.Get(headerRecipient), clock, payload)
	switch {
	case errors.Is(err, errs.ErrStateMismatch):
		rw.Header().Set(headerClock, strconv.FormatUint(s.board.Clock(sender), 10))
		http.Error(rw, err.Error(), http.StatusConflict)
		return
	case err != nil:
		http.Error(rw, err.Error(), http.StatusBadRequest)
		return
	}
	s.logger.Debug("note posted", "id", m.ID, "sender", sender, "clock", clock)
	rw.Header().Set(headerClock, strconv.FormatUint(clock+1, 10))
	writeJSON(rw, http.StatusCreated, m)
}

func (s *Server) listNotes(rw http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	notes := s.board.List(note.Filter{Sender: q.Get("sender"), Recipient: q.Get("recipient")})
	if notes == nil {
		notes = []note.Message{}
	}
	writeJSON(rw, http.StatusOK, notes)
}

func (s *Server) clock(rw http.ResponseWriter, req *http.Request) {
	sender := req.URL.Query().Get("sender")
	if sender == "" {
		http.Error(rw, "missing sender", http.StatusBadRequest)
		return
	}
	writeJSON(rw, http.StatusOK, clockResponse{Clock: s.board.Clock(sender)})
}

func (s *Server) feed(rw http.ResponseWriter, req *http.Request) {
	recipient := req.URL.Query().Get("recipient")
	conn, err := s.upgrader.Upgrade(rw, req, nil)
	if err != nil {
		s.logger.Warn("feed upgrade failed", "err", err)
		return
	}
	notes, cancel := s.board.Subscribe(recipient)
	defer cancel()
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-closed:
			return
		case <-req.Context().Done():
			return
		case m := <-notes:
			b, err := json.Marshal(FeedEvent{ID: m.ID, Sender: m.Sender})
			if err != nil {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}
