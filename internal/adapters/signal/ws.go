package signal

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	wsSendQueueSize = 64
	wsWriteTimeout  = 5 * time.Second
	wsDialTimeout   = 10 * time.Second
)

// WSClient relays signaling payloads over a websocket connection. Like
// Loopback it is a dumb pipe: it never inspects payloads, it only moves
// bytes and reports unhandled ones.
type WSClient struct {
	id   string
	conn *websocket.Conn

	mu        sync.Mutex
	onReceive func([]byte) bool

	send      chan []byte
	quit      chan struct{}
	closeOnce sync.Once
}

// DialWS connects to a signaling server and starts the read and write
// pumps.
func DialWS(ctx context.Context, url string) (*WSClient, error) {
	dialCtx, cancel := context.WithTimeout(ctx, wsDialTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, url, nil)
	if err != nil {
		return nil, err
	}

	c := &WSClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, wsSendQueueSize),
		quit: make(chan struct{}),
	}
	log.Info().Str("module", "signal").Str("client_id", c.id).Str("url", url).Msg("connected")

	go c.writePump()
	go c.readPump()
	return c, nil
}

func (c *WSClient) ID() string { return c.id }

func (c *WSClient) OnReceive(fn func([]byte) bool) {
	c.mu.Lock()
	c.onReceive = fn
	c.mu.Unlock()
}

// Send queues data for the server. Drops when the queue is full rather
// than blocking the caller.
func (c *WSClient) Send(data []byte) {
	select {
	case c.send <- data:
	case <-c.quit:
	default:
		log.Warn().Str("module", "signal").Str("client_id", c.id).Msg("send queue full, dropping")
	}
}

func (c *WSClient) Close() {
	c.closeOnce.Do(func() {
		close(c.quit)
		if err := c.conn.Close(); err != nil {
			log.Debug().Err(err).Str("module", "signal").Str("client_id", c.id).Msg("close")
		}
	})
}

func (c *WSClient) writePump() {
	defer c.Close()
	for {
		select {
		case <-c.quit:
			return
		case data := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("client_id", c.id).Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("client_id", c.id).Msg("writePump write error")
				return
			}
		}
	}
}

func (c *WSClient) readPump() {
	defer func() {
		log.Info().Str("module", "signal").Str("client_id", c.id).Msg("readPump closing")
		c.Close()
	}()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.quit:
			default:
				log.Error().Err(err).Str("module", "signal").Str("client_id", c.id).Msg("readPump read error")
			}
			return
		}
		c.mu.Lock()
		fn := c.onReceive
		c.mu.Unlock()
		if fn == nil {
			continue
		}
		if !fn(data) {
			log.Debug().Str("module", "signal").Str("client_id", c.id).Int("len", len(data)).Msg("payload not handled")
		}
	}
}
