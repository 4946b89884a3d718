// Package session holds the form configuration of one editing session and
// notifies subscribers whenever it is replaced.
package session

import (
	"sync"

	"inductionlog/internal/domain"
	"inductionlog/internal/policy"
)

// Listener receives a snapshot after every change. It must not change the
// session it listens to.
type Listener func(domain.FormConfig)

// Session is safe for concurrent use. The configuration is only ever
// replaced as a whole; listeners get copies, in the order the changes were
// made.
type Session struct {
	// notifyMu is held from a change until its listeners return.
	notifyMu  sync.Mutex
	mu        sync.Mutex
	cfg       domain.FormConfig
	listeners map[int]Listener
	nextID    int
}

// New returns a session seeded with cfg. No notification is sent.
func New(cfg domain.FormConfig) *Session {
	return &Session{cfg: cfg.Clone(), listeners: map[int]Listener{}}
}

// Config returns a copy of the current configuration.
func (s *Session) Config() domain.FormConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Clone()
}

// Data returns a copy of the current document.
func (s *Session) Data() domain.FormData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Data.Clone()
}

// Role returns the role of the session user.
func (s *Session) Role() domain.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.UserRole
}

// Subscribe registers fn and returns a func that removes it. fn is not
// called with the current value.
func (s *Session) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Replace stores cfg as is. Used when restoring a saved snapshot.
func (s *Session) Replace(cfg domain.FormConfig) {
	s.swap(func(domain.FormConfig) domain.FormConfig { return cfg.Clone() })
}

// SetConfig loads a freshly ingested configuration and derives the
// editability flags from its role.
func (s *Session) SetConfig(cfg domain.FormConfig) {
	cfg = cfg.Clone()
	cfg.Editable = policy.ComputeEditabilityState(cfg.Editable, cfg.UserRole)
	s.swap(func(domain.FormConfig) domain.FormConfig { return cfg })
}

// Update replaces the document with fn applied to it.
func (s *Session) Update(fn func(domain.FormData) domain.FormData) {
	s.swap(func(c domain.FormConfig) domain.FormConfig {
		c.Data = fn(c.Data.Clone())
		return c
	})
}

func (s *Session) AddMentorMeeting()  { s.Update(domain.AddMentorMeeting) }
func (s *Session) AddTeamMeeting()    { s.Update(domain.AddTeamMeeting) }
func (s *Session) AddClassroomVisit() { s.Update(domain.AddClassroomVisit) }
func (s *Session) AddOtherActivity()  { s.Update(domain.AddOtherActivity) }

// RemoveMentorMeeting drops row i; an out-of-range i changes nothing but
// still notifies listeners.
func (s *Session) RemoveMentorMeeting(i int) {
	s.Update(func(d domain.FormData) domain.FormData { return domain.RemoveMentorMeeting(d, i) })
}

func (s *Session) RemoveTeamMeeting(i int) {
	s.Update(func(d domain.FormData) domain.FormData { return domain.RemoveTeamMeeting(d, i) })
}

func (s *Session) RemoveClassroomVisit(i int) {
	s.Update(func(d domain.FormData) domain.FormData { return domain.RemoveClassroomVisit(d, i) })
}

func (s *Session) RemoveOtherActivity(i int) {
	s.Update(func(d domain.FormData) domain.FormData { return domain.RemoveOtherActivity(d, i) })
}

// AddEntry and RemoveEntry dispatch on the section kind.
func (s *Session) AddEntry(k domain.SectionKind) error {
	if !k.Extensible() {
		_, err := domain.AddEntry(domain.FormData{}, k)
		return err
	}
	s.Update(func(d domain.FormData) domain.FormData {
		out, _ := domain.AddEntry(d, k)
		return out
	})
	return nil
}

func (s *Session) RemoveEntry(k domain.SectionKind, i int) error {
	if !k.Extensible() {
		_, err := domain.RemoveEntry(domain.FormData{}, k, i)
		return err
	}
	s.Update(func(d domain.FormData) domain.FormData {
		out, _ := domain.RemoveEntry(d, k, i)
		return out
	})
	return nil
}

// SetField updates one field after checking the session role may edit it.
func (s *Session) SetField(ref domain.FieldRef, value string) error {
	var err error
	s.swapIf(func(c domain.FormConfig) (domain.FormConfig, bool) {
		if err = policy.Check(c.UserRole, ref.Section, ref.Field); err != nil {
			return c, false
		}
		var d domain.FormData
		if d, err = domain.SetField(c.Data, ref, value); err != nil {
			return c, false
		}
		c.Data = d
		return c, true
	})
	return err
}

func (s *Session) swap(fn func(domain.FormConfig) domain.FormConfig) {
	s.swapIf(func(c domain.FormConfig) (domain.FormConfig, bool) { return fn(c), true })
}

func (s *Session) swapIf(fn func(domain.FormConfig) (domain.FormConfig, bool)) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.mu.Lock()
	next, changed := fn(s.cfg)
	if !changed {
		s.mu.Unlock()
		return
	}
	s.cfg = next
	snapshot := next.Clone()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(snapshot.Clone())
	}
}
