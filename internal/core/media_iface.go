package core

import (
	"github.com/dkeye/Duplex/internal/domain"
	"github.com/pion/webrtc/v4"
)

// MediaConnection is one peer connection's lifecycle: track setup happens
// at construction, then offer/answer generation, description application
// and candidate application, plus the event streams the orchestrator
// consumes. All operations are asynchronous relative to the caller; done
// callbacks run on the connection's own goroutine, exactly once.
//
// Transport failures are delivered to done as a non-nil error instead of
// the callback silently never firing.
type MediaConnection interface {
	GetOffer(done func(domain.SessionDescription, error))
	GetAnswer(done func(domain.SessionDescription, error))
	SetLocalDescription(d domain.SessionDescription, done func(error))
	SetRemoteDescription(d domain.SessionDescription, done func(error))

	// AddICECandidate applies a remote ICE candidate. Malformed input is
	// dropped; transport rejections are logged and discarded.
	AddICECandidate(c domain.IceCandidate)

	// SetMuted toggles the local audio track. Synchronous, immediate.
	SetMuted(muted bool)

	// ICECandidates fires once per newly discovered local candidate with
	// a non-empty SDP string.
	ICECandidates() (<-chan domain.IceCandidate, func())

	// ConnectionStates maps the transport's signaling state to a coarse
	// connected flag ("stable" == true) and fires on every observed
	// transition, without dedup.
	ConnectionStates() (<-chan bool, func())

	// ICEConnectionStates exposes ICE-level connectivity so the
	// orchestrator can drive reconnect/failure states.
	ICEConnectionStates() (<-chan webrtc.ICEConnectionState, func())

	// Close tears the transport down. Tracks and their sources are
	// released before the underlying peer connection.
	Close()
}
