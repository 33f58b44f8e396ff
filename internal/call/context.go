// Package call coordinates one MediaConnection against a role and an
// externally supplied signaling channel, producing a coarse CallState.
package call

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/dkeye/Duplex/internal/core"
	"github.com/dkeye/Duplex/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

const (
	maxLayer             = 80
	version              = "2.8.8"
	defaultRetryInterval = time.Second
)

// MaxLayer is a protocol constant exposed for negotiation/diagnostics.
func MaxLayer() int { return maxLayer }

// Version is the protocol version string exposed for diagnostics.
func Version() string { return version }

// Config carries everything a session needs at construction. Proxy and
// connection descriptions are opaque here; the transport layer consumes
// them.
type Config struct {
	Proxy             domain.ProxyServer
	DataSaving        bool
	Key               []byte
	Outgoing          bool
	Primary           domain.CallConnectionDescription
	Alternatives      []domain.CallConnectionDescription
	MaxLayer          int
	AllowP2P          bool
	SendSignalingData func([]byte)
	Connection        core.MediaConnection
	RetryInterval     time.Duration
}

// Context drives the connection based on role: the caller advertises its
// local description every retry interval until a remote description
// arrives; the callee answers once. The first received remote
// description wins; later ones are dropped.
type Context struct {
	conn          core.MediaConnection
	outgoing      bool
	send          func([]byte)
	retryInterval time.Duration

	state *core.Variable[domain.CallState]

	mu                        sync.Mutex
	receivedRemoteDescription bool
	stopped                   bool
	retryTimer                *time.Timer

	cancels []func()
}

func NewContext(cfg Config) *Context {
	c := &Context{
		conn:          cfg.Connection,
		outgoing:      cfg.Outgoing,
		send:          cfg.SendSignalingData,
		retryInterval: cfg.RetryInterval,
		state:         core.NewVariable(domain.CallStateInitializing),
	}
	if c.retryInterval <= 0 {
		c.retryInterval = defaultRetryInterval
	}
	c.init()
	return c
}

func (c *Context) init() {
	candidates, cancelCandidates := c.conn.ICECandidates()
	states, cancelStates := c.conn.ConnectionStates()
	iceStates, cancelICE := c.conn.ICEConnectionStates()
	c.cancels = append(c.cancels, cancelCandidates, cancelStates, cancelICE)

	go func() {
		for data := range candidates {
			if c.isStopped() {
				return
			}
			c.sendCandidate(data)
		}
	}()
	go func() {
		for connected := range states {
			if c.isStopped() {
				return
			}
			if connected {
				c.state.Set(domain.CallStateConnected)
			} else {
				c.state.Set(domain.CallStateInitializing)
			}
		}
	}()
	go func() {
		for s := range iceStates {
			if c.isStopped() {
				return
			}
			switch s {
			case webrtc.ICEConnectionStateDisconnected:
				c.state.Set(domain.CallStateReconnecting)
			case webrtc.ICEConnectionStateFailed:
				c.state.Set(domain.CallStateFailed)
			case webrtc.ICEConnectionStateConnected, webrtc.ICEConnectionStateCompleted:
				c.state.Set(domain.CallStateConnected)
			}
		}
	}()

	if c.outgoing {
		c.conn.GetOffer(func(data domain.SessionDescription, err error) {
			if err != nil {
				log.Error().Err(err).Str("module", "call").Msg("get offer")
				return
			}
			if c.isStopped() {
				return
			}
			c.conn.SetLocalDescription(data, func(err error) {
				if err != nil {
					log.Error().Err(err).Str("module", "call").Msg("set local offer")
					return
				}
				c.tryAdvertising(data)
			})
		})
	}
}

// State is the single authoritative call state for the session.
func (c *Context) State() *core.Variable[domain.CallState] { return c.state }

func (c *Context) SetMuted(muted bool) { c.conn.SetMuted(muted) }

// Stop tears the connection down. Pending asynchronous callbacks become
// harmless: every continuation re-checks the stopped latch before acting.
func (c *Context) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	cancels := c.cancels
	c.cancels = nil
	c.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	c.conn.Close()
}

// DebugInfo returns a compact diagnostic blob for debug surfaces.
func (c *Context) DebugInfo() string {
	blob, _ := json.Marshal(map[string]any{
		"version":  version,
		"maxLayer": maxLayer,
		"outgoing": c.outgoing,
		"state":    c.state.Get().String(),
	})
	return string(blob)
}

// ReceiveSignalingData feeds one opaque signaling message in. Returns
// false ("not handled") for malformed JSON, missing or unknown
// messageType; such messages cause zero state changes.
func (c *Context) ReceiveSignalingData(data []byte) bool {
	env, ok := parseEnvelope(data)
	if !ok {
		return false
	}
	switch *env.MessageType {
	case messageTypeSessionDescription:
		c.receiveSessionDescription(env)
		return true
	case messageTypeIceCandidate:
		c.receiveIceCandidate(env)
		return true
	}
	return false
}

func (c *Context) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// tryAdvertising re-sends the local description until the one-shot
// remote-description latch is set; an in-flight retry re-checks the
// latch before sending.
func (c *Context) tryAdvertising(data domain.SessionDescription) {
	c.mu.Lock()
	if c.receivedRemoteDescription || c.stopped {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.sendSDP(data)

	c.mu.Lock()
	if !c.receivedRemoteDescription && !c.stopped {
		c.retryTimer = time.AfterFunc(c.retryInterval, func() {
			c.tryAdvertising(data)
		})
	}
	c.mu.Unlock()
}

func (c *Context) sendSDP(data domain.SessionDescription) {
	blob, err := json.Marshal(sessionDescriptionMessage{
		MessageType: messageTypeSessionDescription,
		SDP:         data.SDP,
		Type:        data.Type,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "call").Msg("marshal sdp")
		return
	}
	c.send(blob)
}

func (c *Context) sendCandidate(data domain.IceCandidate) {
	blob, err := json.Marshal(iceCandidateMessage{
		MessageType: messageTypeIceCandidate,
		SDP:         data.SDP,
		MLineIndex:  data.MLineIndex,
		SDPMid:      data.SDPMid,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "call").Msg("marshal candidate")
		return
	}
	c.send(blob)
}

func (c *Context) receiveSessionDescription(env inboundEnvelope) {
	if env.SDP == nil || env.Type == nil {
		return
	}
	c.mu.Lock()
	if c.receivedRemoteDescription || c.stopped {
		c.mu.Unlock()
		return
	}
	c.receivedRemoteDescription = true
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	c.mu.Unlock()

	data := domain.SessionDescription{SDP: *env.SDP, Type: *env.Type}
	c.conn.SetRemoteDescription(data, func(err error) {
		if err != nil {
			log.Error().Err(err).Str("module", "call").Msg("set remote description")
			return
		}
		if c.outgoing || c.isStopped() {
			return
		}
		c.conn.GetAnswer(func(data domain.SessionDescription, err error) {
			if err != nil {
				log.Error().Err(err).Str("module", "call").Msg("get answer")
				return
			}
			if c.isStopped() {
				return
			}
			c.conn.SetLocalDescription(data, func(err error) {
				if err != nil {
					log.Error().Err(err).Str("module", "call").Msg("set local answer")
					return
				}
				if c.isStopped() {
					return
				}
				// The answer is sent once; only the offer is retried.
				c.sendSDP(data)
			})
		})
	})
}

func (c *Context) receiveIceCandidate(env inboundEnvelope) {
	if env.SDP == nil || env.MLineIndex == nil || *env.MLineIndex < 0 {
		return
	}
	data := domain.IceCandidate{
		SDP:        *env.SDP,
		MLineIndex: int(*env.MLineIndex),
	}
	if env.SDPMid != nil {
		data.SDPMid = *env.SDPMid
	}
	c.conn.AddICECandidate(data)
}
