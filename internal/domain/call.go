package domain

import "fmt"

type CallState uint8

const (
	CallStateInitializing CallState = iota
	CallStateConnected
	CallStateFailed
	CallStateReconnecting
)

func (s CallState) String() string {
	switch s {
	case CallStateInitializing:
		return "initializing"
	case CallStateConnected:
		return "connected"
	case CallStateFailed:
		return "failed"
	case CallStateReconnecting:
		return "reconnecting"
	}
	panic(fmt.Sprintf("unexpected call state %d", uint8(s)))
}

// SessionDescription is the wire-level {sdp, type} pair. Type stays a raw
// string here; parsing it into a transport type is the session's job.
type SessionDescription struct {
	SDP  string
	Type string
}

// IceCandidate is the wire-level candidate triple.
type IceCandidate struct {
	SDP        string
	SDPMid     string
	MLineIndex int
}

// CallConnectionDescription carries relay endpoint parameters. The core
// never interprets these; they are handed to the transport as-is.
type CallConnectionDescription struct {
	IP           string
	IPv6         string
	PeerTag      []byte
	ConnectionID int64
	Port         int32
}

type ProxyServer struct {
	Host     string
	Username string
	Password string
	Port     int32
}
