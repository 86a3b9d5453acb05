// Package worker provides a goroutine group with a shared halt signal.
package worker

import "sync"

// Worker tracks a set of goroutines that stop when Halt is called.
// The zero value is ready to use.
type Worker struct {
	sync.WaitGroup
	initOnce sync.Once

	haltCh chan struct{}
}

// Go runs fn in a new goroutine tracked by w.
func (w *Worker) Go(fn func()) {
	w.initOnce.Do(w.init)
	w.Add(1)
	go func() {
		defer w.Done()
		fn()
	}()
}

// Halt signals every goroutine to stop and waits for them to return.
func (w *Worker) Halt() {
	w.initOnce.Do(w.init)
	close(w.haltCh)
	w.Wait()
}

// HaltCh is closed when Halt is called.
func (w *Worker) HaltCh() <-chan struct{} {
	w.initOnce.Do(w.init)
	return w.haltCh
}

func (w *Worker) init() {
	w.haltCh = make(chan struct{})
}
