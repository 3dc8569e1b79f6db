package session

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"ordertrack/internal/domain"
	apperrors "ordertrack/internal/errors"
)

// Persister keeps the session credential across process restarts.
type Persister interface {
	Load() (domain.Session, bool, error)
	Save(sess domain.Session) error
	Clear() error
}

// Store holds the identity of the current process. Transport and stream read
// the token from it; logout clears it and notifies the registered listeners so
// derived state is torn down with it.
type Store struct {
	mu        sync.RWMutex
	current   domain.Session
	persister Persister
	onSet     []func(domain.Session)
	onClear   []func()
	logger    *zap.Logger
}

func NewStore(persister Persister, logger *zap.Logger) *Store {
	return &Store{
		persister: persister,
		logger:    logger,
	}
}

// Restore loads a persisted session, if any.
func (s *Store) Restore() (bool, error) {
	sess, ok, err := s.persister.Load()
	if err != nil {
		return false, apperrors.NewInternalError("loading persisted session", err)
	}
	if !ok || !sess.IsAuthenticated() {
		return false, nil
	}

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()

	s.logger.Info("session restored", zap.String("subject", sess.Subject), zap.String("role", string(sess.Role)))
	return true, nil
}

func (s *Store) Current() (domain.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.current.IsAuthenticated()
}

// Token returns the bearer token, empty when logged out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Token
}

func (s *Store) Set(sess domain.Session) error {
	if !sess.IsAuthenticated() {
		return apperrors.NewValidationError("session requires a subject and a token")
	}
	if err := s.persister.Save(sess); err != nil {
		return apperrors.NewInternalError("persisting session", err)
	}

	s.mu.Lock()
	s.current = sess
	listeners := make([]func(domain.Session), len(s.onSet))
	copy(listeners, s.onSet)
	s.mu.Unlock()

	s.logger.Info("session started", zap.String("subject", sess.Subject), zap.String("role", string(sess.Role)))
	for _, fn := range listeners {
		fn(sess)
	}
	return nil
}

// OnSet registers fn to run after a new session is stored.
func (s *Store) OnSet(fn func(domain.Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSet = append(s.onSet, fn)
}

// OnClear registers fn to run after the session is cleared.
func (s *Store) OnClear(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClear = append(s.onClear, fn)
}

// Clear drops the in-memory and persisted session and runs the OnClear
// listeners. Listeners run even if the persisted copy could not be removed.
func (s *Store) Clear() error {
	s.mu.Lock()
	return s.clearLocked()
}

// ClearIfToken clears the session only while token is still the current one,
// so a failure reported for an old token cannot end a newer session.
func (s *Store) ClearIfToken(token string) (bool, error) {
	s.mu.Lock()
	if token == "" || s.current.Token != token {
		s.mu.Unlock()
		return false, nil
	}
	return true, s.clearLocked()
}

// clearLocked is called with s.mu held and releases it.
func (s *Store) clearLocked() error {
	subject := s.current.Subject
	s.current = domain.Session{}
	listeners := make([]func(), len(s.onClear))
	copy(listeners, s.onClear)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}

	if err := s.persister.Clear(); err != nil {
		return fmt.Errorf("clearing persisted session: %w", err)
	}

	s.logger.Info("session cleared", zap.String("subject", subject))
	return nil
}

// MemoryPersister keeps the session for the lifetime of the process only.
type MemoryPersister struct {
	mu   sync.Mutex
	sess domain.Session
	set  bool
}

func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{}
}

func (p *MemoryPersister) Load() (domain.Session, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sess, p.set, nil
}

func (p *MemoryPersister) Save(sess domain.Session) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sess, p.set = sess, true
	return nil
}

func (p *MemoryPersister) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sess, p.set = domain.Session{}, false
	return nil
}
