// Package relay fans coordinate batches from training runners out to map
// viewers.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/leanke/puffer-red/internal/protocol"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

type Config struct {
	// ViewerQueue bounds each viewer's outbound backlog; the oldest message is
	// dropped when it is full.
	ViewerQueue int
	// MaxMessageBytes caps one inbound batch.
	MaxMessageBytes int64
	// LoopbackWatchOnly restricts /watch to local viewers.
	LoopbackWatchOnly bool
}

func (c *Config) normalize() {
	if c.ViewerQueue <= 0 {
		c.ViewerQueue = 256
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = 4 << 20
	}
}

type Server struct {
	cfg       Config
	log       *log.Logger
	validator *protocol.Validator

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu      sync.Mutex
	viewers map[string]*viewer

	publishers atomic.Int64
	received   atomic.Uint64
	forwarded  atomic.Uint64
	dropped    map[string]*atomic.Uint64
}

type viewer struct {
	id  string
	out chan []byte
}

func NewServer(cfg Config, logger *log.Logger) (*Server, error) {
	cfg.normalize()
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	v, err := protocol.NewValidator()
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:       cfg,
		log:       logger,
		validator: v,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		viewers: map[string]*viewer{},
		dropped: map[string]*atomic.Uint64{},
	}
	for _, r := range protocol.KnownReasons() {
		s.dropped[r] = new(atomic.Uint64)
	}
	return s, nil
}

// Handler serves /broadcast, /watch, /healthz and /metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/broadcast", s.BroadcastHandler())
	mux.HandleFunc("/watch", s.WatchHandler())
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", s.MetricsHandler())
	return mux
}

// BroadcastHandler accepts one publisher per connection. Every text message
// is validated and fanned out; invalid messages are dropped and counted.
func (s *Server) BroadcastHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		s.publishers.Add(1)
		defer s.publishers.Add(-1)

		conn.SetReadLimit(s.cfg.MaxMessageBytes)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go pingLoop(ctx, conn)

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if errors.Is(err, websocket.ErrReadLimit) {
					s.drop(protocol.ReasonTooLarge)
					_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseMessageTooBig, "batch too large"), time.Now().Add(time.Second))
				} else if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.log.Printf("broadcast %s: %v", r.RemoteAddr, err)
				}
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))
			s.received.Add(1)
			if _, err := s.validator.Decode(msg); err != nil {
				s.drop(protocol.ReasonOf(err))
				continue
			}
			s.fanout(msg)
		}
	}
}

// WatchHandler streams every valid batch to a viewer. Viewers only read;
// anything they send is discarded.
func (s *Server) WatchHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if s.cfg.LoopbackWatchOnly && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		v := &viewer{
			id:  fmt.Sprintf("V%d", s.nextID.Add(1)),
			out: make(chan []byte, s.cfg.ViewerQueue),
		}
		s.mu.Lock()
		s.viewers[v.id] = v
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.viewers, v.id)
			s.mu.Unlock()
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			ticker := time.NewTicker(pingPeriod)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-v.out:
					_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						cancel()
						return
					}
				case <-ticker.C:
					if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
						writeErr <- err
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop keeps pong and close frames flowing.
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.NextReader(); err != nil {
				break
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (s *Server) fanout(msg []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.viewers {
		if offer(v.out, msg) {
			s.drop(protocol.ReasonQueueFull)
		}
		s.forwarded.Add(1)
	}
}

// offer enqueues msg, evicting the oldest entry when ch is full. It reports
// whether an entry was evicted.
func offer(ch chan []byte, msg []byte) (evicted bool) {
	for {
		select {
		case ch <- msg:
			return evicted
		default:
		}
		select {
		case <-ch:
			evicted = true
		default:
		}
	}
}

func (s *Server) drop(reason string) {
	c, ok := s.dropped[reason]
	if !ok {
		c = s.dropped[protocol.ReasonBadJSON]
	}
	c.Add(1)
}

func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
