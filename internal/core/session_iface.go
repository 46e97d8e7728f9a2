package core

type SessionID string

// Session binds a connection identity to its transport endpoint.
// This is what registries store and fan out to.
type Session interface {
	ID() SessionID
	// ClientToken is the browser-level token from the session cookie.
	// Several sessions (tabs) may share one.
	ClientToken() string
	Signal() SignalConnection
}
