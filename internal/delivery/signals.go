package delivery

import "sync"

// ActionStopAlert halts any in-progress alert. It carries no payload.
const ActionStopAlert = "remora.STOP_ALERT"

// Signals is an in-process broadcast scoped to this application.
type Signals struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[string]map[int]func()
}

func NewSignals() *Signals {
	return &Signals{handlers: make(map[string]map[int]func())}
}

// Listen registers fn for action and returns a func that unregisters it.
func (s *Signals) Listen(action string, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	if s.handlers[action] == nil {
		s.handlers[action] = make(map[int]func())
	}
	s.handlers[action][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.handlers[action], id)
		})
	}
}

// Send runs every listener of action synchronously. Unknown actions are
// ignored.
func (s *Signals) Send(action string) {
	s.mu.RLock()
	fns := make([]func(), 0, len(s.handlers[action]))
	for _, fn := range s.handlers[action] {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}

// StopAlert sends ActionStopAlert.
func (s *Signals) StopAlert() {
	s.Send(ActionStopAlert)
}
