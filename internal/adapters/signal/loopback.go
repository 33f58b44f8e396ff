// Package signal carries opaque signaling payloads between call peers:
// an in-process loopback pair for tests and demos, and a websocket
// client for a real signaling server.
package signal

import (
	"sync"

	"github.com/rs/zerolog/log"
)

const loopbackQueueSize = 64

// Loopback is one half of an in-process signaling pair. Payloads sent
// on one half are delivered to the other half's receive callback, in
// order, on a dedicated goroutine.
type Loopback struct {
	peer *Loopback

	mu        sync.Mutex
	onReceive func([]byte) bool

	inbox     chan []byte
	quit      chan struct{}
	closeOnce sync.Once
}

// NewLoopbackPair wires two halves together and starts their delivery
// goroutines.
func NewLoopbackPair() (*Loopback, *Loopback) {
	a := newLoopback()
	b := newLoopback()
	a.peer, b.peer = b, a
	go a.deliver()
	go b.deliver()
	return a, b
}

func newLoopback() *Loopback {
	return &Loopback{
		inbox: make(chan []byte, loopbackQueueSize),
		quit:  make(chan struct{}),
	}
}

// OnReceive installs the handler for inbound payloads. The handler
// reports whether it recognized the payload; unhandled ones are logged
// and dropped.
func (l *Loopback) OnReceive(fn func([]byte) bool) {
	l.mu.Lock()
	l.onReceive = fn
	l.mu.Unlock()
}

// Send queues data for the peer. Drops silently once either side is
// closed or the peer's queue is full.
func (l *Loopback) Send(data []byte) {
	select {
	case l.peer.inbox <- data:
	case <-l.peer.quit:
	default:
		log.Warn().Str("module", "signal").Msg("loopback queue full, dropping")
	}
}

func (l *Loopback) Close() {
	l.closeOnce.Do(func() { close(l.quit) })
}

func (l *Loopback) deliver() {
	for {
		select {
		case <-l.quit:
			return
		case data := <-l.inbox:
			l.mu.Lock()
			fn := l.onReceive
			l.mu.Unlock()
			if fn == nil {
				continue
			}
			if !fn(data) {
				log.Debug().Str("module", "signal").Int("len", len(data)).Msg("payload not handled")
			}
		}
	}
}
