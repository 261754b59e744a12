// Package conversation holds the bounded per-user turn history used as LLM
// context. Sessions live for the process lifetime; there is no TTL.
package conversation

import "sync"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is a single message in a session. Immutable once created.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Seq     int    `json:"seq"`
}

type session struct {
	turns   []Turn
	nextSeq int
}

// Store keeps one bounded FIFO window of turns per user id. All operations are
// atomic with respect to the window invariant: a session never holds more than
// `window` turns, and concurrent appends for the same key cannot lose updates.
type Store struct {
	mu       sync.Mutex
	window   int
	sessions map[string]*session
}

func NewStore(window int) *Store {
	if window <= 0 {
		window = 20
	}
	return &Store{
		window:   window,
		sessions: make(map[string]*session),
	}
}

// GetOrCreate ensures a session exists for userID. Creation is exactly-once
// even when called concurrently for a never-seen id.
func (s *Store) GetOrCreate(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreateLocked(userID)
}

func (s *Store) getOrCreateLocked(userID string) *session {
	sess, ok := s.sessions[userID]
	if !ok {
		sess = &session{}
		s.sessions[userID] = sess
	}
	return sess
}

// ReplaceFromClient clears the session and repopulates it from caller-supplied
// history. Used when a stateless client replays its own log as the source of
// truth. Sequence indexes are reassigned and the window bound applies.
func (s *Store) ReplaceFromClient(userID string, turns []Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.getOrCreateLocked(userID)
	sess.turns = sess.turns[:0]
	for _, t := range turns {
		appendLocked(sess, t.Role, t.Content, s.window)
	}
}

// AppendUser adds a user turn, evicting the oldest turns beyond the window.
func (s *Store) AppendUser(userID, content string) {
	s.append(userID, RoleUser, content)
}

// AppendAssistant adds an assistant turn, evicting beyond the window.
func (s *Store) AppendAssistant(userID, content string) {
	s.append(userID, RoleAssistant, content)
}

func (s *Store) append(userID, role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.getOrCreateLocked(userID)
	appendLocked(sess, role, content, s.window)
}

// AppendExchange adds the question/answer pair under one lock so a concurrent
// reader never observes the question without its answer.
func (s *Store) AppendExchange(userID, question, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.getOrCreateLocked(userID)
	appendLocked(sess, RoleUser, question, s.window)
	appendLocked(sess, RoleAssistant, answer, s.window)
}

func appendLocked(sess *session, role, content string, window int) {
	sess.turns = append(sess.turns, Turn{Role: role, Content: content, Seq: sess.nextSeq})
	sess.nextSeq++
	if excess := len(sess.turns) - window; excess > 0 {
		sess.turns = append(sess.turns[:0], sess.turns[excess:]...)
	}
}

// Snapshot returns a copy of the most recent limit turns (or fewer) in
// original order. An unknown userID yields an empty snapshot.
func (s *Store) Snapshot(userID string, limit int) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok || limit <= 0 {
		return nil
	}
	turns := sess.turns
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// Clear empties the session without destroying the key. Idempotent.
func (s *Store) Clear(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[userID]; ok {
		sess.turns = sess.turns[:0]
	}
}

// Sessions reports how many user sessions exist.
func (s *Store) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
