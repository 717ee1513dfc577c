package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManager_StartStop(t *testing.T) {
	repo := &memRepo{}
	repo.add(EventOrderCreated, `{"order_number":"1"}`)
	m := NewManager(NewProcessor(repo, LogDispatcher{}), 10*time.Millisecond, 10)

	assert.False(t, m.IsRunning())
	m.Start()
	m.Start()
	assert.True(t, m.IsRunning())

	assert.Eventually(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return repo.events[0].Status == "processed"
	}, time.Second, 10*time.Millisecond)

	m.Stop()
	assert.False(t, m.IsRunning())

	// Restart after stop is supported.
	m.Start()
	assert.True(t, m.IsRunning())
	m.Stop()
}

func TestManager_StopWithoutStart(t *testing.T) {
	m := NewManager(NewProcessor(&memRepo{}, nil), 0, 0)
	m.Stop()
	assert.False(t, m.IsRunning())
	assert.Equal(t, time.Minute, m.interval)
}
