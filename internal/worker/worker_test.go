package worker

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWorker_Halt(t *testing.T) {
	var w Worker
	var stopped atomic.Int32

	for i := 0; i < 3; i++ {
		w.Go(func() {
			<-w.HaltCh()
			stopped.Add(1)
		})
	}

	done := make(chan struct{})
	go func() {
		w.Halt()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Halt did not return")
	}
	require.Equal(t, int32(3), stopped.Load())
}

func TestWorker_HaltWithoutGoroutines(t *testing.T) {
	var w Worker
	w.Halt()

	select {
	case <-w.HaltCh():
	default:
		t.Fatal("HaltCh not closed after Halt")
	}
}
