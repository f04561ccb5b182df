package service

import (
	"docchat/internal/domain"
	"docchat/internal/repository"
)

// SessionService handles the session metadata operations
type SessionService struct {
	sessions *repository.SessionRepository
}

// NewSessionService creates a new session service
func NewSessionService(sessions *repository.SessionRepository) *SessionService {
	return &SessionService{sessions: sessions}
}

// GetState returns a session's metadata, or ErrNotFound.
func (s *SessionService) GetState(id string) (*domain.SessionState, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, domain.ErrNotFound
	}
	state := sess.State()
	return &state, nil
}

// EnsureState creates the session if absent and returns its metadata.
// Idempotent for an existing id: the existing state comes back unchanged
// instead of a duplicate being created.
func (s *SessionService) EnsureState(id string) (*domain.SessionState, bool, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, false, err
	}
	if sess != nil {
		state := sess.State()
		return &state, false, nil
	}

	saved, err := s.sessions.Save(&domain.Session{ID: id})
	if err != nil {
		return nil, false, err
	}
	state := saved.State()
	return &state, true, nil
}

// Turns exposes a session thread's persisted turn log.
func (s *SessionService) Turns(sessionID, threadID string) ([]domain.ConversationTurn, error) {
	return s.sessions.Turns(sessionID, threadID)
}

// UpdateState overwrites a session's mutable metadata. The identifier and
// creation time are immutable; LastActivity advances through Save.
func (s *SessionService) UpdateState(id string, documentCount int) (*domain.SessionState, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, domain.ErrNotFound
	}

	sess.DocumentCount = documentCount
	saved, err := s.sessions.Save(sess)
	if err != nil {
		return nil, err
	}
	state := saved.State()
	return &state, nil
}
