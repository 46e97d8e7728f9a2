package rtc

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/DafChat/internal/config"
)

// ICEServers builds the STUN/TURN list handed to clients. TURN credentials
// are either the static pair from config or, with a shared secret,
// short-lived REST-style credentials minted per request.
type ICEServers struct {
	stun   []string
	turn   string
	user   string
	secret string

	sharedSecret []byte
	ttl          time.Duration
	now          func() time.Time
}

func NewICEServers(cfg config.ICE) *ICEServers {
	s := &ICEServers{
		stun:   cfg.STUNURLs,
		turn:   cfg.TURNServer,
		user:   cfg.TURNUser,
		secret: cfg.TURNSecret,
		ttl:    cfg.CredentialTTL,
		now:    time.Now,
	}
	if cfg.SharedSecret != "" {
		s.sharedSecret = []byte(cfg.SharedSecret)
	}
	return s
}

// Servers returns the ICE servers for the participant identified by token.
func (s *ICEServers) Servers(token string) []webrtc.ICEServer {
	var out []webrtc.ICEServer
	if len(s.stun) > 0 {
		out = append(out, webrtc.ICEServer{URLs: s.stun})
	}
	if s.turn == "" {
		return out
	}
	server := webrtc.ICEServer{
		URLs:           []string{turnURL(s.turn)},
		Username:       s.user,
		Credential:     s.secret,
		CredentialType: webrtc.ICECredentialTypePassword,
	}
	if s.sharedSecret != nil {
		server.Username, server.Credential = s.ephemeral(token)
	}
	return append(out, server)
}

// Configuration wraps Servers for code that builds peer connections.
func (s *ICEServers) Configuration(token string) webrtc.Configuration {
	return webrtc.Configuration{ICEServers: s.Servers(token)}
}

func (s *ICEServers) ephemeral(token string) (string, string) {
	expiry := s.now().Add(s.ttl).Unix()
	username := fmt.Sprintf("%d", expiry)
	if token != "" {
		username += ":" + token
	}
	mac := hmac.New(sha1.New, s.sharedSecret)
	mac.Write([]byte(username))
	return username, base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func turnURL(server string) string {
	if strings.HasPrefix(server, "turn:") || strings.HasPrefix(server, "turns:") {
		return server
	}
	return "turn:" + server + "?transport=udp"
}
