package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/threadline-rugs/roomview/internal/models"
	"github.com/threadline-rugs/roomview/internal/orchestrator"
	"github.com/threadline-rugs/roomview/internal/visualize"
)

// Session is one view-in-room session. It owns the orchestrator that runs
// its attempts and fans state changes out to subscribers.
type Session struct {
	ID        string
	RugID     string
	RoomImage models.ImageItem
	// RoomDataURI is the normalized room photo, kept so the attempt can be rerun
	RoomDataURI string
	CreatedAt   time.Time

	orch *orchestrator.Orchestrator

	mu   sync.Mutex
	subs map[chan orchestrator.State]struct{}
}

// NewSession creates a session with a fresh uuid whose orchestrator calls v
func NewSession(rugID, roomDataURI string, room models.ImageItem, v visualize.Visualizer, opts ...orchestrator.Option) *Session {
	s := &Session{
		ID:          uuid.New().String(),
		RugID:       rugID,
		RoomImage:   room,
		RoomDataURI: roomDataURI,
		CreatedAt:   time.Now(),
		subs:        make(map[chan orchestrator.State]struct{}),
	}
	opts = append(opts, orchestrator.WithOnChange(s.publish))
	s.orch = orchestrator.New(v, opts...)
	return s
}

// Orchestrator returns the session's orchestrator
func (s *Session) Orchestrator() *orchestrator.Orchestrator {
	return s.orch
}

// Snapshot returns the session as served over the API
func (s *Session) Snapshot() models.ViewInRoomSession {
	state := s.orch.State()
	return models.ViewInRoomSession{
		ID:        s.ID,
		RugID:     s.RugID,
		RoomImage: s.RoomImage,
		Stage:     state.Stage,
		Progress:  state.Progress,
		Result:    state.Result,
		CreatedAt: s.CreatedAt,
	}
}

// Subscribe returns a channel of state changes and a function that ends the
// subscription. Slow subscribers miss intermediate states.
func (s *Session) Subscribe() (<-chan orchestrator.State, func()) {
	ch := make(chan orchestrator.State, 16)
	s.mu.Lock()
	if s.subs == nil {
		close(ch)
		s.mu.Unlock()
		return ch, func() {}
	}
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subs[ch]; ok {
				delete(s.subs, ch)
				close(ch)
			}
		})
	}
}

func (s *Session) publish(state orchestrator.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- state:
		default:
		}
	}
}

// Close ends every subscription
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		close(ch)
	}
	s.subs = nil
}

type SessionStore struct {
	sessions map[string]*Session
	mu       sync.RWMutex
}

func New() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
	}
}

func (s *SessionStore) Get(sessionID string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, exists := s.sessions[sessionID]
	return session, exists
}

func (s *SessionStore) Set(sessionID string, session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = session
}

// GetAll returns every session, oldest first
func (s *SessionStore) GetAll() []*Session {
	s.mu.RLock()
	result := make([]*Session, 0, len(s.sessions))
	for _, v := range s.sessions {
		result = append(result, v)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// Delete removes a session and reports whether it existed. The session's
// subscribers are closed and any running attempt is invalidated.
func (s *SessionStore) Delete(sessionID string) bool {
	s.mu.Lock()
	session, exists := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if exists {
		session.Orchestrator().Reset()
		session.Close()
	}
	return exists
}
