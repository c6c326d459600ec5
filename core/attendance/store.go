package attendance

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

var (
	nowFunc = time.Now // mockable

	// errors
	ErrSessionNotFound  = errors.New("attendance session not found or expired")
	ErrDuplicateSession = errors.New("attendance session already exists")
)

type (
	// SessionStore is the authoritative, process-wide registry of live
	// attendance sessions. It is purely in-memory: sessions only become
	// durable once a scan converts them into attendance records.
	//
	// A session is gone once its expiry time has passed, whether or not
	// the scheduled cleanup has run; the lazy check on every lookup is
	// the source of truth and the timer is only a memory reclaimer.
	SessionStore struct {
		mu       sync.Mutex
		sessions map[string]*sessionEntry
	}

	sessionEntry struct {
		sess    Session
		present map[string]struct{} // user IDs checked in so far
		timer   *time.Timer
	}
)

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*sessionEntry)}
}

// get returns the live entry for id, deleting it first if it has lapsed.
// Callers must hold s.mu.
func (s *SessionStore) get(id string) (*sessionEntry, bool) {
	entry, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	if nowFunc().After(entry.sess.ExpiresAt) {
		s.remove(id)
		return nil, false
	}
	return entry, true
}

// remove deletes id and disarms its timer; no-op on an absent id.
// Callers must hold s.mu.
func (s *SessionStore) remove(id string) {
	if entry, ok := s.sessions[id]; ok {
		if entry.timer != nil {
			entry.timer.Stop()
		}
		delete(s.sessions, id)
	}
}

func (s *SessionStore) Create(sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.get(sess.ID); ok {
		return ErrDuplicateSession
	}
	s.sessions[sess.ID] = &sessionEntry{
		sess:    sess,
		present: make(map[string]struct{}),
	}
	return nil
}

func (s *SessionStore) Get(id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.get(id)
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return entry.sess, nil
}

// Delete removes id; idempotent, so the expiry timer and lazy expiry can
// race without fault.
func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(id)
}

// AddPresent records studentID as present in session id. It reports whether
// the student was newly added; false means they had already checked in.
// The check-and-set is atomic: of N concurrent calls for the same
// (session, student) pair exactly one observes true.
func (s *SessionStore) AddPresent(id, studentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.get(id)
	if !ok {
		return false, ErrSessionNotFound
	}
	if _, present := entry.present[studentID]; present {
		return false, nil
	}
	entry.present[studentID] = struct{}{}
	return true, nil
}

// RemovePresent undoes an AddPresent; used to compensate when the durable
// write behind a successful check-and-set fails. No-op on absent sessions
// or students.
func (s *SessionStore) RemovePresent(id, studentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.get(id); ok {
		delete(entry.present, studentID)
	}
}

// Present returns the user IDs checked in to session id so far.
func (s *SessionStore) Present(id string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	ids := make([]string, 0, len(entry.present))
	for studentID := range entry.present {
		ids = append(ids, studentID)
	}
	return ids, nil
}

// Schedule arms a one-shot deletion of id after d. The timer is a
// belt-and-suspenders companion to lazy expiry; either may fire first and
// both are safe no-ops on an already-absent session.
func (s *SessionStore) Schedule(id string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[id]
	if !ok {
		return
	}
	if entry.timer != nil {
		entry.timer.Stop()
	}
	entry.timer = time.AfterFunc(d, func() { s.Delete(id) })
}

// Len reports the number of live (unexpired) sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id := range s.sessions {
		if _, ok := s.get(id); ok {
			n++
		}
	}
	return n
}

// Stop disarms all timers and drops all sessions; for shutdown.
func (s *SessionStore) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.sessions {
		s.remove(id)
	}
}
