package common

import "sync"

// Event holds the callbacks registered for one driver event, for example an
// authentication result or a decoded lock log entry.
type Event struct {
	mutex     sync.Mutex
	callbacks []func(data map[string]interface{})
}

// AddCallback registers a new callback on the event.
func (e *Event) AddCallback(callback func(data map[string]interface{})) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.callbacks = append(e.callbacks, callback)
}

// Fire invokes every registered callback with the given data.
func (e *Event) Fire(data map[string]interface{}) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	for _, callback := range e.callbacks {
		callback(data)
	}
}

// Len returns the number of registered callbacks.
func (e *Event) Len() int {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	return len(e.callbacks)
}
