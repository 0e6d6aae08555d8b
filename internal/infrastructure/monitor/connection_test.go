package monitor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestMonitor_ReconnectFiresOnce(t *testing.T) {
	var down atomic.Bool
	down.Store(true)
	pg := func(context.Context) error {
		if down.Load() {
			return errors.New("dial tcp: refused")
		}
		return nil
	}

	var reconnects atomic.Int32
	m := newMonitor(pg, nil, nil, time.Hour, nil)
	m.OnReconnect(func() { reconnects.Add(1) })

	m.refresh()
	assert.False(t, m.IsOnline())

	down.Store(false)
	m.refresh()
	assert.True(t, m.IsOnline())
	m.refresh()
	assert.Equal(t, int32(1), reconnects.Load())

	status := m.GetStatus()
	assert.True(t, status.PostgreSQL)
	assert.False(t, status.Redis)
	assert.False(t, status.Buffer)
}

func TestMonitor_RedisDoesNotGateOnline(t *testing.T) {
	ok := func(context.Context) error { return nil }
	fail := func(context.Context) error { return errors.New("down") }

	m := newMonitor(ok, fail, nil, time.Hour, nil)
	m.refresh()
	assert.True(t, m.IsOnline())
	assert.False(t, m.GetStatus().Redis)
}

func TestMonitor_StartStop(t *testing.T) {
	m := newMonitor(nil, nil, nil, 5*time.Millisecond, nil)
	m.Start()
	time.Sleep(20 * time.Millisecond)
	m.Stop()
	m.Stop()
	assert.False(t, m.IsOnline())
}
