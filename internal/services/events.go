package services

import (
	"sync"
	"time"
)

// Event types published to an account's open event streams.
const (
	EventPackCreated   = "pack.created"
	EventPackUpdated   = "pack.updated"
	EventPackDeleted   = "pack.deleted"
	EventDeviceUpdated = "device.updated"
	EventDeviceDeleted = "device.deleted"
)

// Event tells other sessions of the same account that a resource changed so
// they can re-fetch it.
type Event struct {
	At         time.Time   `json:"at"`
	Data       interface{} `json:"data,omitempty"`
	Type       string      `json:"type"`
	ResourceID string      `json:"resource_id"`
}

// EventService fans change events out to subscribers, per account.
type EventService struct {
	streams   map[string][]chan Event
	streamsMu sync.RWMutex
}

// NewEventService creates a new EventService instance.
func NewEventService() *EventService {
	return &EventService{
		streams: make(map[string][]chan Event),
	}
}

// Subscribe registers a buffered channel for userID's events.
func (s *EventService) Subscribe(userID string) chan Event {
	ch := make(chan Event, 32)

	s.streamsMu.Lock()
	s.streams[userID] = append(s.streams[userID], ch)
	s.streamsMu.Unlock()

	return ch
}

// Unsubscribe removes and closes ch.
func (s *EventService) Unsubscribe(userID string, ch chan Event) {
	s.streamsMu.Lock()
	defer s.streamsMu.Unlock()

	channels := s.streams[userID]
	for i, c := range channels {
		if c == ch {
			s.streams[userID] = append(channels[:i], channels[i+1:]...)
			close(ch)
			break
		}
	}

	if len(s.streams[userID]) == 0 {
		delete(s.streams, userID)
	}
}

// Publish delivers ev to every subscriber of userID. Slow subscribers miss
// events rather than block the publisher.
func (s *EventService) Publish(userID string, ev Event) {
	if s == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	s.streamsMu.RLock()
	defer s.streamsMu.RUnlock()

	for _, ch := range s.streams[userID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers returns the number of open streams for userID.
func (s *EventService) Subscribers(userID string) int {
	s.streamsMu.RLock()
	defer s.streamsMu.RUnlock()
	return len(s.streams[userID])
}
