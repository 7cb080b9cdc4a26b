package core

import (
	"time"

	"github.com/avencel/studyhub/internal/domain"
)

// ClientSession binds an authenticated user to its transport endpoint.
// This is what the hub stores and fans out to.
type ClientSession interface {
	User() *domain.User
	ConnID() domain.ConnectionID
	EstablishedAt() time.Time
	Signal() SignalConnection
}

// clientSession implements ClientSession by pairing meta + transport.
type clientSession struct {
	user   *domain.User
	connID domain.ConnectionID
	at     time.Time
	conn   SignalConnection
}

func NewClientSession(user *domain.User, connID domain.ConnectionID, conn SignalConnection) ClientSession {
	return &clientSession{user: user, connID: connID, at: time.Now(), conn: conn}
}

func (s *clientSession) User() *domain.User             { return s.user }
func (s *clientSession) ConnID() domain.ConnectionID    { return s.connID }
func (s *clientSession) EstablishedAt() time.Time       { return s.at }
func (s *clientSession) Signal() SignalConnection       { return s.conn }
