// Package rtc implements core.MediaConnection over pion/webrtc.
package rtc

import (
	"errors"
	"sync"
	"time"

	"github.com/dkeye/Duplex/internal/core"
	"github.com/dkeye/Duplex/internal/domain"
	"github.com/google/uuid"
	"github.com/pion/interceptor"
	"github.com/pion/mediadevices"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

const (
	defaultSTUNServer = "stun:stun.l.google.com:19302"
	keyframeInterval  = 3 * time.Second
)

var errBadDescriptionType = errors.New("rtc: unknown description type")

type Config struct {
	// STUNServers defaults to the public Google STUN server.
	STUNServers []string
	// Capture enables local camera/microphone capture via mediadevices.
	// When off (or when capture fails), silent sendrecv tracks keep the
	// audio and video m-lines in the offer.
	Capture bool
	// Sink receives remote media. Optional.
	Sink core.FrameSink
}

// Connection owns one peer connection. It is actor-shaped: a single
// goroutine consumes the command queue, and every pion call plus every
// done callback runs there, so callers never block and never race. The
// queue is unbounded: done callbacks run on the actor and may enqueue
// follow-up commands, so a bounded mailbox could wedge the actor on
// itself.
type Connection struct {
	pc       *webrtc.PeerConnection
	selector *mediadevices.CodecSelector
	sink     core.FrameSink

	cmdMu     sync.Mutex
	cmdQueue  []func()
	wake      chan struct{}
	quit      chan struct{}
	closeOnce sync.Once

	iceCandidates *core.Stream[domain.IceCandidate]
	connStates    *core.Stream[bool]
	iceStates     *core.Stream[webrtc.ICEConnectionState]

	// actor-owned
	muted        bool
	audioSender  *webrtc.RTPSender
	audioTrack   webrtc.TrackLocal
	captureClose func()
}

func DefaultWebRTCConfig(servers []string) webrtc.Configuration {
	if len(servers) == 0 {
		servers = []string{defaultSTUNServer}
	}
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: servers}},
	}
}

func NewConnection(cfg Config) (*Connection, error) {
	c := &Connection{
		sink:          cfg.Sink,
		wake:          make(chan struct{}, 1),
		quit:          make(chan struct{}),
		iceCandidates: core.NewStream[domain.IceCandidate](),
		connStates:    core.NewStream[bool](),
		iceStates:     core.NewStream[webrtc.ICEConnectionState](),
	}

	if cfg.Capture {
		selector, err := newCodecSelector()
		if err != nil {
			log.Warn().Err(err).Str("module", "rtc").Msg("codec selector, capture disabled")
		} else {
			c.selector = selector
		}
	}

	mediaEngine := &webrtc.MediaEngine{}
	if c.selector != nil {
		c.selector.Populate(mediaEngine)
	} else if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}
	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, registry); err != nil {
		return nil, err
	}
	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(registry),
	)

	pc, err := api.NewPeerConnection(DefaultWebRTCConfig(cfg.STUNServers))
	if err != nil {
		return nil, err
	}
	c.pc = pc

	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		init := cand.ToJSON()
		if init.Candidate == "" {
			return
		}
		out := domain.IceCandidate{SDP: init.Candidate}
		if init.SDPMid != nil {
			out.SDPMid = *init.SDPMid
		}
		if init.SDPMLineIndex != nil {
			out.MLineIndex = int(*init.SDPMLineIndex)
		}
		c.iceCandidates.Emit(out)
	})
	pc.OnSignalingStateChange(func(s webrtc.SignalingState) {
		log.Debug().Str("module", "rtc").Str("signaling_state", s.String()).Msg("signaling state")
		c.connStates.Emit(s == webrtc.SignalingStateStable)
	})
	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "rtc").Str("ice_state", s.String()).Msg("ICE state")
		c.iceStates.Emit(s)
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "rtc").
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Msg("remote track")
		if track.Kind() == webrtc.RTPCodecTypeVideo {
			go c.keyframeLoop(track.SSRC())
		}
		go c.readRemote(track)
	})

	if err := c.attachLocalTracks(); err != nil {
		_ = pc.Close()
		return nil, err
	}

	go c.run()
	return c, nil
}

// attachLocalTracks tries real capture first, then falls back to silent
// tracks so negotiation still requests sendrecv audio+video.
func (c *Connection) attachLocalTracks() error {
	if c.selector != nil {
		stream, err := getUserMedia(c.selector)
		if err == nil {
			tracks := stream.GetTracks()
			for _, track := range tracks {
				sender, err := c.pc.AddTrack(track)
				if err != nil {
					log.Error().Err(err).Str("module", "rtc").Msg("add capture track")
					continue
				}
				if track.Kind() == webrtc.RTPCodecTypeAudio {
					c.audioSender = sender
					c.audioTrack = track
				}
			}
			c.captureClose = func() {
				for _, track := range tracks {
					_ = track.Close()
				}
			}
			log.Info().Str("module", "rtc").Int("tracks", len(tracks)).Msg("local media captured")
			return nil
		}
		log.Warn().Err(err).Str("module", "rtc").Msg("capture failed, sending silence")
	}

	streamID := uuid.NewString()
	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		uuid.NewString(),
		streamID,
	)
	if err != nil {
		return err
	}
	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
		uuid.NewString(),
		streamID,
	)
	if err != nil {
		return err
	}
	sender, err := c.pc.AddTrack(audio)
	if err != nil {
		return err
	}
	c.audioSender = sender
	c.audioTrack = audio
	if _, err := c.pc.AddTrack(video); err != nil {
		return err
	}
	return nil
}

func (c *Connection) run() {
	for {
		select {
		case <-c.wake:
			c.drain()
		case <-c.quit:
			c.teardown()
			return
		}
	}
}

// drain runs queued commands until none remain, picking up commands a
// running command enqueued along the way.
func (c *Connection) drain() {
	for {
		c.cmdMu.Lock()
		if len(c.cmdQueue) == 0 {
			c.cmdMu.Unlock()
			return
		}
		fn := c.cmdQueue[0]
		c.cmdQueue = c.cmdQueue[1:]
		c.cmdMu.Unlock()
		fn()
	}
}

// teardown releases tracks and capture sources before the peer
// connection itself; the capture source is referenced by the tracks.
func (c *Connection) teardown() {
	if c.captureClose != nil {
		c.captureClose()
	}
	if err := c.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("close peer connection")
	} else {
		log.Info().Str("module", "rtc").Msg("closed")
	}
}

// do enqueues fn for the actor. Never blocks, even when called from a
// command already running on the actor goroutine; after Close the
// command is dropped.
func (c *Connection) do(fn func()) {
	select {
	case <-c.quit:
		return
	default:
	}
	c.cmdMu.Lock()
	c.cmdQueue = append(c.cmdQueue, fn)
	c.cmdMu.Unlock()
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Connection) ICECandidates() (<-chan domain.IceCandidate, func()) {
	return c.iceCandidates.Subscribe()
}

func (c *Connection) ConnectionStates() (<-chan bool, func()) {
	return c.connStates.Subscribe()
}

func (c *Connection) ICEConnectionStates() (<-chan webrtc.ICEConnectionState, func()) {
	return c.iceStates.Subscribe()
}

func (c *Connection) Close() {
	c.closeOnce.Do(func() { close(c.quit) })
}

func (c *Connection) GetOffer(done func(domain.SessionDescription, error)) {
	c.do(func() {
		offer, err := c.pc.CreateOffer(nil)
		if err != nil {
			done(domain.SessionDescription{}, err)
			return
		}
		done(domain.SessionDescription{SDP: offer.SDP, Type: offer.Type.String()}, nil)
	})
}

func (c *Connection) GetAnswer(done func(domain.SessionDescription, error)) {
	c.do(func() {
		answer, err := c.pc.CreateAnswer(nil)
		if err != nil {
			done(domain.SessionDescription{}, err)
			return
		}
		done(domain.SessionDescription{SDP: answer.SDP, Type: answer.Type.String()}, nil)
	})
}

func (c *Connection) SetLocalDescription(d domain.SessionDescription, done func(error)) {
	c.do(func() {
		desc, err := parseDescription(d)
		if err != nil {
			log.Debug().Str("module", "rtc").Str("type", d.Type).Msg("bad local description")
			done(err)
			return
		}
		done(c.pc.SetLocalDescription(desc))
	})
}

func (c *Connection) SetRemoteDescription(d domain.SessionDescription, done func(error)) {
	c.do(func() {
		desc, err := parseDescription(d)
		if err != nil {
			log.Debug().Str("module", "rtc").Str("type", d.Type).Msg("bad remote description")
			done(err)
			return
		}
		done(c.pc.SetRemoteDescription(desc))
	})
}

func (c *Connection) AddICECandidate(cand domain.IceCandidate) {
	c.do(func() {
		init := webrtc.ICECandidateInit{Candidate: cand.SDP}
		if cand.SDPMid != "" {
			mid := cand.SDPMid
			init.SDPMid = &mid
		}
		index := uint16(cand.MLineIndex)
		init.SDPMLineIndex = &index
		if err := c.pc.AddICECandidate(init); err != nil {
			log.Debug().Err(err).Str("module", "rtc").Msg("add ice candidate")
		}
	})
}

func (c *Connection) SetMuted(muted bool) {
	c.do(func() {
		if c.muted == muted {
			return
		}
		c.muted = muted
		if c.audioSender == nil {
			return
		}
		var err error
		if muted {
			err = c.audioSender.ReplaceTrack(nil)
		} else {
			err = c.audioSender.ReplaceTrack(c.audioTrack)
		}
		if err != nil {
			log.Error().Err(err).Str("module", "rtc").Bool("muted", muted).Msg("toggle audio")
		}
	})
}

func (c *Connection) readRemote(track *webrtc.TrackRemote) {
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}
		if c.sink == nil {
			continue
		}
		switch track.Kind() {
		case webrtc.RTPCodecTypeVideo:
			c.sink.VideoRTP(pkt)
		case webrtc.RTPCodecTypeAudio:
			c.sink.AudioRTP(pkt)
		}
	}
}

func (c *Connection) keyframeLoop(ssrc webrtc.SSRC) {
	ticker := time.NewTicker(keyframeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.quit:
			return
		case <-ticker.C:
			err := c.pc.WriteRTCP([]rtcp.Packet{
				&rtcp.PictureLossIndication{MediaSSRC: uint32(ssrc)},
			})
			if err != nil {
				return
			}
		}
	}
}

func parseDescription(d domain.SessionDescription) (webrtc.SessionDescription, error) {
	var sdpType webrtc.SDPType
	switch d.Type {
	case "offer":
		sdpType = webrtc.SDPTypeOffer
	case "answer":
		sdpType = webrtc.SDPTypeAnswer
	case "pranswer":
		sdpType = webrtc.SDPTypePranswer
	case "rollback":
		sdpType = webrtc.SDPTypeRollback
	default:
		return webrtc.SessionDescription{}, errBadDescriptionType
	}
	return webrtc.SessionDescription{Type: sdpType, SDP: d.SDP}, nil
}
