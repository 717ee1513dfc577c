package notify

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/StoreFox/internal/pkg/env"
)

// Manager runs ProcessBatch on a ticker inside the server process.
type Manager struct {
	processor *Processor
	interval  time.Duration
	batchSize int

	ticker  *time.Ticker
	stopCh  chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

func NewManager(processor *Processor, interval time.Duration, batchSize int) *Manager {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Manager{
		processor: processor,
		interval:  interval,
		batchSize: batchSize,
	}
}

// NewManagerFromEnv reads NOTIFY_POLL_INTERVAL_SECONDS and NOTIFY_BATCH_SIZE.
func NewManagerFromEnv(processor *Processor) *Manager {
	interval := time.Duration(env.GetEnvInt("NOTIFY_POLL_INTERVAL_SECONDS", 60)) * time.Second
	return NewManager(processor, interval, env.GetEnvInt("NOTIFY_BATCH_SIZE", DefaultBatchSize))
}

// Start starts the polling worker. Calling Start on a running manager is a
// no-op.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Fresh channel per start so the manager can be restarted.
	m.stopCh = make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.running = true
	m.ticker = time.NewTicker(m.interval)

	m.wg.Add(1)
	go m.pollWorker(ctx, m.ticker, m.stopCh)

	log.Infof("[NotifyQueue Manager] Started (interval: %s, batch: %d)", m.interval, m.batchSize)
}

// Stop signals the worker and waits for an in-flight batch to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[NotifyQueue Manager] Stopping...")
	if m.ticker != nil {
		m.ticker.Stop()
	}
	close(m.stopCh)
	m.stopCh = nil
	m.running = false

	m.wg.Wait()
	m.cancel()
	log.Info("[NotifyQueue Manager] Stopped successfully")
}

func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) pollWorker(ctx context.Context, ticker *time.Ticker, stopCh <-chan struct{}) {
	defer m.wg.Done()
	for {
		select {
		case <-stopCh:
			log.Info("[NotifyQueue Manager] Poll worker stopping")
			return
		case <-ticker.C:
			if _, err := m.processor.ProcessBatch(ctx, m.batchSize); err != nil {
				log.Errorf("[NotifyQueue Manager] Batch failed: %v", err)
			}
		}
	}
}
