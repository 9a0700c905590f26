package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThemeWatcherOutlivesClosedErrors(t *testing.T) {
	events := make(chan bool)
	errs := make(chan error)
	close(errs)

	stopped := make(chan struct{})
	tw := &ThemeWatcher{
		changeCh: make(chan bool, 1),
		closeCh:  make(chan struct{}),
	}
	go tw.watchLoop(func() { close(stopped) }, events, errs)

	events <- false
	select {
	case isDark := <-tw.Changes():
		assert.False(t, isDark)
	case <-time.After(time.Second):
		t.Fatal("no change delivered after the error channel closed")
	}

	close(events)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("watch loop did not stop when events closed")
	}
}

func TestThemeWatcherKeepsLatestValue(t *testing.T) {
	events := make(chan bool)
	tw := &ThemeWatcher{
		changeCh: make(chan bool, 1),
		closeCh:  make(chan struct{}),
	}
	stopped := make(chan struct{})
	go tw.watchLoop(func() { close(stopped) }, events, nil)

	events <- true
	events <- false
	tw.Close()
	<-stopped

	require.Len(t, tw.changeCh, 1)
	assert.False(t, <-tw.Changes())
}
