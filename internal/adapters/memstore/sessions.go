// Package memstore holds the in-process session table and rate limiter.
// Session state deliberately lives in memory rather than a distributed
// store; the service assumes single-instance or sticky-routed deployment,
// and sessions do not survive a restart.
package memstore

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bioapp/auth-service/internal/domain"
	"github.com/bioapp/auth-service/internal/ports"
	"github.com/google/uuid"
)

const sessionShardCount = 32

type sessionShard struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]domain.Session
}

// SessionStore is a sharded in-memory table of live sessions.
// Sharding keeps lock contention per key rather than global, and lets the
// cleanup sweep hold at most one shard lock at a time.
type SessionStore struct {
	shards      [sessionShardCount]*sessionShard
	ttl         time.Duration
	idleTimeout time.Duration
	nowFn       func() time.Time

	started  bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewSessionStore creates a store with the given absolute TTL and idle
// timeout. An idleTimeout <= 0 disables idle expiry.
func NewSessionStore(ttl, idleTimeout time.Duration) *SessionStore {
	s := &SessionStore{
		ttl:         ttl,
		idleTimeout: idleTimeout,
		nowFn:       func() time.Time { return time.Now().UTC() },
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	for i := range s.shards {
		s.shards[i] = &sessionShard{sessions: make(map[uuid.UUID]domain.Session)}
	}
	return s
}

func (s *SessionStore) shardFor(id uuid.UUID) *sessionShard {
	// First byte of a session id is uniformly random, good enough for spreading.
	return s.shards[int(id[0])%sessionShardCount]
}

// newSessionID fills all 16 bytes from crypto/rand, giving the full 128 bits
// of unpredictability. A v4 uuid would fix six bits for version and variant,
// and session ids only ever need to be opaque and unguessable.
func newSessionID() (uuid.UUID, error) {
	var id uuid.UUID
	if _, err := rand.Read(id[:]); err != nil {
		return uuid.Nil, fmt.Errorf("generate session id: %w", err)
	}
	return id, nil
}

func (s *SessionStore) Create(userID uuid.UUID, ip, userAgent string) (domain.Session, error) {
	sessionID, err := newSessionID()
	if err != nil {
		return domain.Session{}, err
	}
	now := s.nowFn()
	session := domain.Session{
		SessionID:  sessionID,
		UserID:     userID,
		IPAddress:  ip,
		UserAgent:  userAgent,
		CreatedAt:  now,
		LastSeenAt: now,
		ExpiresAt:  now.Add(s.ttl),
	}

	shard := s.shardFor(session.SessionID)
	shard.mu.Lock()
	shard.sessions[session.SessionID] = session
	shard.mu.Unlock()
	return session, nil
}

// Get applies lazy expiry: an entry past its absolute TTL or idle timeout is
// removed on sight and reported absent, so expired sessions are never
// returned as valid even between sweeps.
func (s *SessionStore) Get(sessionID uuid.UUID) (domain.Session, error) {
	shard := s.shardFor(sessionID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	session, ok := shard.sessions[sessionID]
	if !ok {
		return domain.Session{}, domain.ErrNotFound
	}
	if s.expired(session, s.nowFn()) {
		delete(shard.sessions, sessionID)
		return domain.Session{}, domain.ErrNotFound
	}
	return session, nil
}

func (s *SessionStore) Touch(sessionID uuid.UUID) error {
	shard := s.shardFor(sessionID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	session, ok := shard.sessions[sessionID]
	now := s.nowFn()
	if !ok || s.expired(session, now) {
		delete(shard.sessions, sessionID)
		return domain.ErrNotFound
	}
	session.LastSeenAt = now
	shard.sessions[sessionID] = session
	return nil
}

func (s *SessionStore) Revoke(sessionID uuid.UUID) error {
	shard := s.shardFor(sessionID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	if _, ok := shard.sessions[sessionID]; !ok {
		return domain.ErrNotFound
	}
	delete(shard.sessions, sessionID)
	return nil
}

func (s *SessionStore) RevokeAllByUser(userID uuid.UUID) int {
	removed := 0
	for _, shard := range s.shards {
		shard.mu.Lock()
		for id, session := range shard.sessions {
			if session.UserID == userID {
				delete(shard.sessions, id)
				removed++
			}
		}
		shard.mu.Unlock()
	}
	return removed
}

func (s *SessionStore) Len() int {
	total := 0
	for _, shard := range s.shards {
		shard.mu.Lock()
		total += len(shard.sessions)
		shard.mu.Unlock()
	}
	return total
}

// Start launches the periodic cleanup sweep. The sweep bounds memory even
// when expired sessions are never read again.
func (s *SessionStore) Start(interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	s.started = true
	go func() {
		defer close(s.doneCh)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if removed := s.sweep(); removed > 0 {
					slog.Default().Info("expired sessions swept",
						"module", "memstore",
						"operation", "session_sweep",
						"outcome", "success",
						"removed", removed,
					)
				}
			case <-s.stopCh:
				return
			}
		}
	}()
}

// Stop cancels the sweep goroutine and waits for it to exit.
// Safe to call when Start was never invoked.
func (s *SessionStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	if s.started {
		<-s.doneCh
	}
}

// sweep walks shard by shard so concurrent reads/writes block for at most
// one shard's removal, never the whole table.
func (s *SessionStore) sweep() int {
	removed := 0
	for _, shard := range s.shards {
		now := s.nowFn()
		shard.mu.Lock()
		for id, session := range shard.sessions {
			if s.expired(session, now) {
				delete(shard.sessions, id)
				removed++
			}
		}
		shard.mu.Unlock()
	}
	return removed
}

func (s *SessionStore) expired(session domain.Session, now time.Time) bool {
	if now.After(session.ExpiresAt) {
		return true
	}
	if s.idleTimeout > 0 && now.Sub(session.LastSeenAt) > s.idleTimeout {
		return true
	}
	return false
}

var _ ports.SessionStore = (*SessionStore)(nil)
