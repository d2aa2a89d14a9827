package app

import (
	"sync"
	"time"
)

// MonitorEventType names what happened in an attempt.
type MonitorEventType string

const (
	EventStarted   MonitorEventType = "started"
	EventIntegrity MonitorEventType = "integrity"
	EventSubmitted MonitorEventType = "submitted"
)

// MonitorEvent is what proctors watching a quiz receive.
type MonitorEvent struct {
	Type             MonitorEventType `json:"type"`
	QuizID           string           `json:"quizId"`
	AttemptID        string           `json:"attemptId"`
	LearnerID        string           `json:"learnerId"`
	Kind             string           `json:"kind,omitempty"`
	IntegritySignals int              `json:"integritySignals"`
	Score            string           `json:"score,omitempty"`
	Percentage       float64          `json:"percentage,omitempty"`
	At               time.Time        `json:"at"`
}

const monitorBuffer = 8

// Monitor fans attempt events out to subscribers of each quiz.
type Monitor struct {
	mu          sync.Mutex
	subscribers map[string]map[chan MonitorEvent]struct{}
}

func NewMonitor() *Monitor {
	return &Monitor{subscribers: make(map[string]map[chan MonitorEvent]struct{})}
}

// Subscribe returns a channel of events for quizID.
// The caller must invoke the returned cancel function to avoid leaks.
func (m *Monitor) Subscribe(quizID string) (<-chan MonitorEvent, func()) {
	ch := make(chan MonitorEvent, monitorBuffer)

	m.mu.Lock()
	subs, ok := m.subscribers[quizID]
	if !ok {
		subs = make(map[chan MonitorEvent]struct{})
		m.subscribers[quizID] = subs
	}
	subs[ch] = struct{}{}
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		subs, ok := m.subscribers[quizID]
		if !ok {
			return
		}
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(m.subscribers, quizID)
		}
	}
	return ch, cancel
}

// Publish delivers event to every subscriber of its quiz. A subscriber whose
// buffer is full loses its oldest pending event.
func (m *Monitor) Publish(event MonitorEvent) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for ch := range m.subscribers[event.QuizID] {
		select {
		case ch <- event:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
}

// Subscribers reports how many subscribers a quiz has.
func (m *Monitor) Subscribers(quizID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscribers[quizID])
}
