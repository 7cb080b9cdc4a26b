package hub

import (
	"sync"

	"github.com/avencel/studyhub/internal/core"
	"github.com/avencel/studyhub/internal/domain"
)

// SubscriptionTable tracks which connections listen on which broadcast
// channel. This is socket-level state, a possibly different set from the
// logical room roster.
type SubscriptionTable struct {
	mu        sync.RWMutex
	byChannel map[domain.ChannelID]map[domain.ConnectionID]core.ClientSession
	byConn    map[domain.ConnectionID]map[domain.ChannelID]struct{}
}

func NewSubscriptionTable() *SubscriptionTable {
	return &SubscriptionTable{
		byChannel: make(map[domain.ChannelID]map[domain.ConnectionID]core.ClientSession),
		byConn:    make(map[domain.ConnectionID]map[domain.ChannelID]struct{}),
	}
}

func (s *SubscriptionTable) Subscribe(ch domain.ChannelID, sess core.ClientSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conns, ok := s.byChannel[ch]
	if !ok {
		conns = make(map[domain.ConnectionID]core.ClientSession)
		s.byChannel[ch] = conns
	}
	conns[sess.ConnID()] = sess

	chans, ok := s.byConn[sess.ConnID()]
	if !ok {
		chans = make(map[domain.ChannelID]struct{})
		s.byConn[sess.ConnID()] = chans
	}
	chans[ch] = struct{}{}
}

func (s *SubscriptionTable) Unsubscribe(ch domain.ChannelID, connID domain.ConnectionID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLocked(ch, connID)
}

// DropConn removes every subscription a connection holds; part of the
// disconnect cleanup fan-out.
func (s *SubscriptionTable) DropConn(connID domain.ConnectionID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.byConn[connID] {
		s.dropLocked(ch, connID)
	}
}

func (s *SubscriptionTable) dropLocked(ch domain.ChannelID, connID domain.ConnectionID) {
	if conns, ok := s.byChannel[ch]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(s.byChannel, ch)
		}
	}
	if chans, ok := s.byConn[connID]; ok {
		delete(chans, ch)
		if len(chans) == 0 {
			delete(s.byConn, connID)
		}
	}
}

func (s *SubscriptionTable) Subscribers(ch domain.ChannelID) []core.ClientSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.ClientSession, 0, len(s.byChannel[ch]))
	for _, sess := range s.byChannel[ch] {
		out = append(out, sess)
	}
	return out
}

// UserSubscribed reports whether any connection of the user listens on ch.
func (s *SubscriptionTable) UserSubscribed(ch domain.ChannelID, uid domain.UserID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sess := range s.byChannel[ch] {
		if sess.User().ID == uid {
			return true
		}
	}
	return false
}
