package core

import "sync"

// Cell is a continuously-updated value. The latest value is always available
// synchronously and the subscribers are notified every time a new value is
// set, even when it is equal to the previous one.
//
// A cell is owned by its producer. Consumers only hold subscriptions that they
// release when they are no longer interested.
type Cell struct {
	sync.RWMutex

	value   float64
	watcher *Watcher
}

// NewCell creates a new cell initialized with the value.
func NewCell(value float64) *Cell {
	return &Cell{
		value:   value,
		watcher: NewWatcher(),
	}
}

// Get returns the latest value of the cell.
func (c *Cell) Get() float64 {
	c.RLock()
	defer c.RUnlock()

	return c.value
}

// Set updates the value of the cell and notifies the subscribers.
func (c *Cell) Set(value float64) {
	c.Lock()
	c.value = value
	c.Unlock()

	c.watcher.Notify(value)
}

// Subscribe registers the callback that will be called with every new value.
// The returned subscription must be released when the callback is not needed
// anymore.
func (c *Cell) Subscribe(fn func(value float64)) *Subscription {
	sub := &Subscription{
		cell: c,
		fn:   fn,
	}

	c.watcher.Add(sub)

	return sub
}

// Subscribers returns the number of active subscriptions.
func (c *Cell) Subscribers() int {
	return c.watcher.Len()
}

// Subscription is the handle of a subscriber over a cell.
//
// - implements core.Observer
type Subscription struct {
	once sync.Once
	cell *Cell
	fn   func(float64)
}

// NotifyCallback implements core.Observer. It forwards the new value to the
// callback.
func (s *Subscription) NotifyCallback(event interface{}) {
	value, ok := event.(float64)
	if ok {
		s.fn(value)
	}
}

// Unsubscribe removes the subscription from the cell. It is safe to call it
// multiple times.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.cell.watcher.Remove(s)
	})
}
