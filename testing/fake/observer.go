package fake

import "sync"

// Recorder is an observer that keeps every notification it receives.
//
// - implements core.Observer
type Recorder struct {
	sync.Mutex

	events []interface{}
}

// NotifyCallback implements core.Observer.
func (r *Recorder) NotifyCallback(event interface{}) {
	r.Lock()
	r.events = append(r.events, event)
	r.Unlock()
}

// Events returns a copy of the notifications received so far.
func (r *Recorder) Events() []interface{} {
	r.Lock()
	defer r.Unlock()

	return append([]interface{}{}, r.events...)
}

// Len returns the number of notifications received so far.
func (r *Recorder) Len() int {
	r.Lock()
	defer r.Unlock()

	return len(r.events)
}
