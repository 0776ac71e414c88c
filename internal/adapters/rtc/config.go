// Package rtc holds the WebRTC knowledge the hub needs without touching
// media: ICE configuration handed to browsers and sanity checks for
// relayed negotiation payloads.
package rtc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/Huddle/internal/config"
	"github.com/pion/webrtc/v4"
)

var ErrBadSDP = errors.New("malformed session description")

func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

// Configuration builds what browsers should pass to RTCPeerConnection.
// An empty list falls back to the public STUN server.
func Configuration(servers []config.ICEServer) webrtc.Configuration {
	if len(servers) == 0 {
		return DefaultWebRTCConfig()
	}
	cfg := webrtc.Configuration{ICEServers: make([]webrtc.ICEServer, 0, len(servers))}
	for _, s := range servers {
		srv := webrtc.ICEServer{URLs: s.URLs, Username: s.Username}
		if s.Credential != "" {
			srv.Credential = s.Credential
			srv.CredentialType = webrtc.ICECredentialTypePassword
		}
		cfg.ICEServers = append(cfg.ICEServers, srv)
	}
	return cfg
}

// CheckSignal validates the payload of a relayed signal. Offers and answers
// must carry an SDP that parses; candidates must decode as ICECandidateInit.
// Every other type is opaque and passes.
func CheckSignal(payloadType string, data json.RawMessage) error {
	switch payloadType {
	case "offer", "answer":
		var desc webrtc.SessionDescription
		if err := json.Unmarshal(data, &desc); err != nil {
			return fmt.Errorf("%w: %v", ErrBadSDP, err)
		}
		if desc.SDP == "" {
			return fmt.Errorf("%w: empty sdp", ErrBadSDP)
		}
		if _, err := desc.Unmarshal(); err != nil {
			return fmt.Errorf("%w: %v", ErrBadSDP, err)
		}
	case "candidate", "ice-candidate":
		var cand webrtc.ICECandidateInit
		if err := json.Unmarshal(data, &cand); err != nil {
			return fmt.Errorf("bad candidate: %w", err)
		}
	}
	return nil
}
