package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fastygo/taskpulse/internal/infrastructure/buffer"
)

type pingFunc func(ctx context.Context) error

// Monitor polls the task store, the feedback cache and the write buffer.
// Only the task store decides IsOnline; a Redis outage just loses the feedback cache.
type Monitor struct {
	pingPostgres pingFunc
	pingRedis    pingFunc
	buffer       *buffer.Store

	status      Status
	mu          sync.RWMutex
	interval    time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
	onReconnect func()
	logger      *zap.Logger
}

func New(pg *pgxpool.Pool, redis *redislib.Client, buf *buffer.Store, interval time.Duration, logger *zap.Logger) *Monitor {
	m := newMonitor(nil, nil, buf, interval, logger)
	if pg != nil {
		m.pingPostgres = pg.Ping
	}
	if redis != nil {
		m.pingRedis = func(ctx context.Context) error { return redis.Ping(ctx).Err() }
	}
	return m
}

func newMonitor(pg, redis pingFunc, buf *buffer.Store, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		pingPostgres: pg,
		pingRedis:    redis,
		buffer:       buf,
		interval:     interval,
		stopCh:       make(chan struct{}),
		logger:       logger,
	}
}

// OnReconnect registers fn to run whenever the task store comes back online.
// Must be called before Start.
func (m *Monitor) OnReconnect(fn func()) {
	m.onReconnect = fn
}

func (m *Monitor) Start() {
	m.refresh()
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.PostgreSQL
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.refresh()
		case <-m.stopCh:
			return
		}
	}
}

func (m *Monitor) refresh() {
	bufferOK, bufferSize := m.checkBuffer()
	status := Status{
		PostgreSQL: ping(m.pingPostgres, 3*time.Second),
		Redis:      ping(m.pingRedis, 2*time.Second),
		Buffer:     bufferOK,
		BufferSize: bufferSize,
		LastCheck:  time.Now(),
	}

	m.mu.Lock()
	prev := m.status
	m.status = status
	m.mu.Unlock()

	if prev.PostgreSQL && !status.PostgreSQL {
		m.logger.Warn("task store unreachable, writes will be buffered")
	}
	if !prev.LastCheck.IsZero() && !prev.PostgreSQL && status.PostgreSQL {
		m.logger.Info("task store reachable again", zap.Int("buffered", status.BufferSize))
		if m.onReconnect != nil {
			m.onReconnect()
		}
	}
	if prev.Redis != status.Redis && !prev.LastCheck.IsZero() {
		m.logger.Info("feedback cache availability changed", zap.Bool("online", status.Redis))
	}
}

func ping(fn pingFunc, timeout time.Duration) bool {
	if fn == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return fn(ctx) == nil
}

func (m *Monitor) checkBuffer() (bool, int) {
	if m.buffer == nil {
		return false, 0
	}
	size, err := m.buffer.Size()
	if err != nil {
		m.logger.Warn("buffer size check failed", zap.Error(err))
		return false, size
	}
	return true, size
}
