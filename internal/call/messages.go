package call

import "encoding/json"

const (
	messageTypeSessionDescription = "sessionDescription"
	messageTypeIceCandidate       = "iceCandidate"
)

type sessionDescriptionMessage struct {
	MessageType string `json:"messageType"`
	SDP         string `json:"sdp"`
	Type        string `json:"type"`
}

type iceCandidateMessage struct {
	MessageType string `json:"messageType"`
	SDP         string `json:"sdp"`
	MLineIndex  int    `json:"mLineIndex"`
	SDPMid      string `json:"sdpMid,omitempty"`
}

// Inbound envelopes use pointers so a missing field is distinguishable
// from an empty one; messages with missing required fields are dropped.
type inboundEnvelope struct {
	MessageType *string  `json:"messageType"`
	SDP         *string  `json:"sdp"`
	Type        *string  `json:"type"`
	MLineIndex  *float64 `json:"mLineIndex"`
	SDPMid      *string  `json:"sdpMid"`
}

func parseEnvelope(data []byte) (inboundEnvelope, bool) {
	var env inboundEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return inboundEnvelope{}, false
	}
	if env.MessageType == nil || *env.MessageType == "" {
		return inboundEnvelope{}, false
	}
	return env, true
}
