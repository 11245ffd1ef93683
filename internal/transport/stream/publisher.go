package stream

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/leanke/puffer-red/internal/protocol"
)

const (
	writeTimeout = 5 * time.Second
	dialTimeout  = 5 * time.Second
	closeTimeout = 2 * time.Second
)

// Publisher owns one websocket connection to a relay and sends flushes from
// its own goroutine. Publish never blocks: when the queue is full the oldest
// flush is dropped.
type Publisher struct {
	url    string
	log    *log.Logger
	dialer *websocket.Dialer

	ch     chan []protocol.CoordsBatch
	ctx    context.Context
	cancel context.CancelFunc
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
	closed atomic.Bool

	conn *websocket.Conn // owned by run

	sent       atomic.Uint64
	dropped    atomic.Uint64
	reconnects atomic.Uint64
}

type PublisherStats struct {
	Sent       uint64 `json:"sent"`
	Dropped    uint64 `json:"dropped"`
	Reconnects uint64 `json:"reconnects"`
	QueueDepth int    `json:"queue_depth"`
}

// NewPublisher starts the sender goroutine. The first connection is dialed
// lazily when the first flush arrives.
func NewPublisher(url string, queue int, logger *log.Logger) *Publisher {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if queue < 1 {
		queue = 16
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Publisher{
		url:    url,
		log:    logger,
		dialer: &websocket.Dialer{HandshakeTimeout: dialTimeout},
		ch:     make(chan []protocol.CoordsBatch, queue),
		ctx:    ctx,
		cancel: cancel,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *Publisher) Publish(batches []protocol.CoordsBatch) {
	if p == nil || len(batches) == 0 || p.closed.Load() {
		return
	}
	for {
		select {
		case p.ch <- batches:
			return
		default:
		}
		select {
		case <-p.ch:
			p.dropped.Add(1)
		default:
		}
	}
}

func (p *Publisher) Stats() PublisherStats {
	if p == nil {
		return PublisherStats{}
	}
	return PublisherStats{
		Sent:       p.sent.Load(),
		Dropped:    p.dropped.Load(),
		Reconnects: p.reconnects.Load(),
		QueueDepth: len(p.ch),
	}
}

// Close stops accepting flushes, delivers what is already queued and sends a
// close frame. Anything still pending after closeTimeout is abandoned.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	p.once.Do(func() {
		p.closed.Store(true)
		close(p.stop)
		select {
		case <-p.done:
		case <-time.After(closeTimeout):
			p.log.Printf("stream: sender did not drain within %s", closeTimeout)
			p.cancel()
			<-p.done
		}
		p.cancel()
	})
	return nil
}

func (p *Publisher) run() {
	defer close(p.done)
	defer p.disconnect()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-p.stop:
			p.drain()
			return
		case batches := <-p.ch:
			p.deliver(batches)
		}
	}
}

func (p *Publisher) drain() {
	for p.ctx.Err() == nil {
		select {
		case batches := <-p.ch:
			p.deliver(batches)
		default:
			return
		}
	}
}

// deliver sends one flush. A failed send reconnects once and retries the whole
// flush; a second failure drops it.
func (p *Publisher) deliver(batches []protocol.CoordsBatch) {
	if p.conn == nil && !p.connect() {
		p.dropped.Add(1)
		return
	}
	if err := p.send(batches); err == nil {
		return
	}
	p.reconnects.Add(1)
	if !p.connect() {
		p.dropped.Add(1)
		return
	}
	if err := p.send(batches); err != nil {
		p.log.Printf("stream: retry failed: %v", err)
		p.disconnect()
		p.dropped.Add(1)
	}
}

func (p *Publisher) send(batches []protocol.CoordsBatch) error {
	for _, b := range batches {
		raw, err := json.Marshal(b)
		if err != nil {
			return err
		}
		_ = p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := p.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
			return err
		}
		p.sent.Add(1)
	}
	return nil
}

func (p *Publisher) connect() bool {
	p.disconnect()
	ctx, cancel := context.WithTimeout(p.ctx, dialTimeout)
	defer cancel()
	conn, _, err := p.dialer.DialContext(ctx, p.url, nil)
	if err != nil {
		p.log.Printf("stream: connect %s: %v", p.url, err)
		return false
	}
	p.conn = conn
	go discardReads(conn)
	return true
}

func (p *Publisher) disconnect() {
	if p.conn == nil {
		return
	}
	_ = p.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
	_ = p.conn.Close()
	p.conn = nil
}

// discardReads keeps control frames (ping, close) flowing; the relay sends
// nothing else on a publisher connection.
func discardReads(conn *websocket.Conn) {
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}
