package rtc

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/DafChat/internal/config"
)

func TestServers_STUNOnly(t *testing.T) {
	s := NewICEServers(config.ICE{STUNURLs: []string{"stun:stun.l.google.com:19302"}})
	got := s.Servers("u1")
	require.Len(t, got, 1)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, got[0].URLs)
}

func TestServers_StaticTURN(t *testing.T) {
	s := NewICEServers(config.ICE{
		TURNServer: "turn.example.org:3478",
		TURNUser:   "daf",
		TURNSecret: "chat",
	})
	got := s.Servers("u1")
	require.Len(t, got, 1)
	assert.Equal(t, []string{"turn:turn.example.org:3478?transport=udp"}, got[0].URLs)
	assert.Equal(t, "daf", got[0].Username)
	assert.Equal(t, "chat", got[0].Credential)
	assert.Equal(t, webrtc.ICECredentialTypePassword, got[0].CredentialType)
}

func TestServers_KeepsExplicitScheme(t *testing.T) {
	s := NewICEServers(config.ICE{TURNServer: "turns:turn.example.org:5349"})
	got := s.Servers("")
	require.Len(t, got, 1)
	assert.Equal(t, []string{"turns:turn.example.org:5349"}, got[0].URLs)
}

func TestServers_EphemeralCredentials(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s := NewICEServers(config.ICE{
		STUNURLs:      []string{"stun:stun.example.org"},
		TURNServer:    "turn.example.org",
		SharedSecret:  "hunter2",
		CredentialTTL: time.Hour,
	})
	s.now = func() time.Time { return now }

	got := s.Servers("u1")
	require.Len(t, got, 2)
	turn := got[1]

	parts := strings.SplitN(turn.Username, ":", 2)
	require.Len(t, parts, 2)
	assert.Equal(t, strconv.FormatInt(now.Add(time.Hour).Unix(), 10), parts[0])
	assert.Equal(t, "u1", parts[1])

	mac := hmac.New(sha1.New, []byte("hunter2"))
	mac.Write([]byte(turn.Username))
	assert.Equal(t, base64.StdEncoding.EncodeToString(mac.Sum(nil)), turn.Credential)
}

func TestConfiguration(t *testing.T) {
	s := NewICEServers(config.ICE{STUNURLs: []string{"stun:a"}, TURNServer: "b"})
	cfg := s.Configuration("u1")
	assert.Len(t, cfg.ICEServers, 2)
}
