package liveevents

import (
	"errors"
	"strings"
	"sync"
)

const (
	TypeBooked       = "booked"
	TypeWaitlisted   = "waitlisted"
	TypeCancelled    = "cancelled"
	TypeOffered      = "offered"
	TypeOfferExpired = "offer_expired"
	TypePayment      = "payment"
)

const (
	DefaultBufferSize       = 50
	DefaultSubscriberBuffer = 16
)

var (
	ErrHubUnavailable    = errors.New("hub_unavailable")
	ErrInvalidSessionKey = errors.New("invalid_session_key")
)

// Event is a change to one session, pushed to everyone watching it.
type Event struct {
	Type        string `json:"type"`
	SessionKey  string `json:"session_key"`
	BookingID   string `json:"booking_id,omitempty"`
	Status      string `json:"status,omitempty"`
	AttendCount int64  `json:"attend_count"`
	WaitCount   int64  `json:"wait_count"`
	Capacity    int    `json:"capacity"`
	OccurredAt  string `json:"occurred_at"`
}

// Hub fans session events out to in-process subscribers. Each session keeps
// a short replay buffer while anyone is subscribed.
type Hub struct {
	mu               sync.RWMutex
	streams          map[string]*stream
	bufferSize       int
	subscriberBuffer int
}

type stream struct {
	mu     sync.Mutex
	buffer []Event
	subs   map[uint64]chan Event
	nextID uint64
}

type Subscription struct {
	hub        *Hub
	sessionKey string
	id         uint64
	ch         chan Event
	once       sync.Once
}

func NewHub() *Hub {
	return &Hub{
		streams:          make(map[string]*stream),
		bufferSize:       DefaultBufferSize,
		subscriberBuffer: DefaultSubscriberBuffer,
	}
}

// Publish never blocks; slow subscribers miss events.
func (h *Hub) Publish(sessionKey string, event Event) {
	if h == nil {
		return
	}
	key := strings.TrimSpace(sessionKey)
	if key == "" {
		return
	}
	h.mu.RLock()
	stream := h.streams[key]
	h.mu.RUnlock()
	if stream == nil {
		return
	}

	stream.mu.Lock()
	stream.buffer = append(stream.buffer, event)
	if len(stream.buffer) > h.bufferSize {
		stream.buffer = stream.buffer[len(stream.buffer)-h.bufferSize:]
	}
	subs := make([]chan Event, 0, len(stream.subs))
	for _, ch := range stream.subs {
		subs = append(subs, ch)
	}
	stream.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *Hub) Subscribe(sessionKey string) (*Subscription, []Event, error) {
	if h == nil {
		return nil, nil, ErrHubUnavailable
	}
	key := strings.TrimSpace(sessionKey)
	if key == "" {
		return nil, nil, ErrInvalidSessionKey
	}

	stream := h.ensureStream(key)
	stream.mu.Lock()
	id := stream.nextID
	stream.nextID++
	ch := make(chan Event, h.subscriberBuffer)
	stream.subs[id] = ch
	buffer := append([]Event(nil), stream.buffer...)
	stream.mu.Unlock()

	return &Subscription{
		hub:        h,
		sessionKey: key,
		id:         id,
		ch:         ch,
	}, buffer, nil
}

func (h *Hub) Subscribers(sessionKey string) int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	stream := h.streams[strings.TrimSpace(sessionKey)]
	h.mu.RUnlock()
	if stream == nil {
		return 0
	}
	stream.mu.Lock()
	defer stream.mu.Unlock()
	return len(stream.subs)
}

func (h *Hub) ensureStream(sessionKey string) *stream {
	h.mu.RLock()
	current := h.streams[sessionKey]
	h.mu.RUnlock()
	if current != nil {
		return current
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	current = h.streams[sessionKey]
	if current == nil {
		current = &stream{subs: make(map[uint64]chan Event)}
		h.streams[sessionKey] = current
	}
	return current
}

func (h *Hub) unsubscribe(sessionKey string, id uint64) {
	h.mu.RLock()
	stream := h.streams[sessionKey]
	h.mu.RUnlock()
	if stream == nil {
		return
	}

	stream.mu.Lock()
	delete(stream.subs, id)
	remaining := len(stream.subs)
	stream.mu.Unlock()
	if remaining != 0 {
		return
	}

	h.mu.Lock()
	current := h.streams[sessionKey]
	if current != stream {
		h.mu.Unlock()
		return
	}
	stream.mu.Lock()
	empty := len(stream.subs) == 0
	stream.mu.Unlock()
	if empty {
		delete(h.streams, sessionKey)
	}
	h.mu.Unlock()
}

func (s *Subscription) Events() <-chan Event {
	if s == nil {
		return nil
	}
	return s.ch
}

func (s *Subscription) Close() {
	if s == nil || s.hub == nil {
		return
	}
	s.once.Do(func() {
		s.hub.unsubscribe(s.sessionKey, s.id)
	})
}
