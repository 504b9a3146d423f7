package utils

import (
	"container/list"
	"errors"
	"sync"
	"time"
)

// ErrGetTimeout is returned by Deque.Get when no item arrived in time.
var ErrGetTimeout = errors.New("utils: timed out waiting for item")

// Deque is a blocking FIFO used as the completion handle for correlated
// request/response exchanges: the waiter blocks in Get, the notification
// handler fulfills it with Put.
type Deque struct {
	sync.Mutex
	notEmptyNotify chan struct{}
	container      *list.List
}

func NewDeque() *Deque {
	// Capacity 1 so a Put landing between the waiter's empty-check and its
	// channel receive still leaves the signal buffered.
	return &Deque{container: list.New(), notEmptyNotify: make(chan struct{}, 1)}
}

func (s *Deque) Put(item interface{}) {
	s.Lock()
	s.container.PushFront(item)
	s.Unlock()
	select {
	case s.notEmptyNotify <- struct{}{}:
	default:
	}
}

// Get removes the oldest item, waiting up to timeout for one to arrive.
// A timeout of zero or less waits indefinitely.
func (s *Deque) Get(timeout time.Duration) (interface{}, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	s.Lock()
	for {
		if e := s.container.Back(); e != nil {
			item := s.container.Remove(e)
			s.Unlock()
			return item, nil
		}
		s.Unlock()

		if timeout > 0 {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return nil, ErrGetTimeout
			}
			select {
			case <-s.notEmptyNotify:
			case <-time.After(remaining):
				// An item delivered right at the deadline beats the timeout.
				s.Lock()
				if e := s.container.Back(); e != nil {
					item := s.container.Remove(e)
					s.Unlock()
					return item, nil
				}
				s.Unlock()
				return nil, ErrGetTimeout
			}
		} else {
			<-s.notEmptyNotify
		}
		s.Lock()
	}
}

// Len reports the number of buffered items.
func (s *Deque) Len() int {
	s.Lock()
	defer s.Unlock()
	return s.container.Len()
}
