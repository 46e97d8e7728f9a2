package core

type session struct {
	id     SessionID
	token  string
	signal SignalConnection
}

func NewSession(id SessionID, clientToken string, conn SignalConnection) Session {
	return &session{id: id, token: clientToken, signal: conn}
}

func (s *session) ID() SessionID            { return s.id }
func (s *session) ClientToken() string      { return s.token }
func (s *session) Signal() SignalConnection { return s.signal }
