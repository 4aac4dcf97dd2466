// Package monitor implements the Failure Monitor: one
// watcher goroutine per node, polling liveness at a fixed cadence and
// reporting the first observed failure. Grounded on
// original_source/monitoring.py's monitor_node_failure/start_monitoring:
// same one-thread-per-node shape, same terminal state machine (a watcher
// that observes "down" stops watching — this monitor does not detect a
// node coming back up within a cycle, matching the original).
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"edgeorch/internal/agent"
	"edgeorch/internal/model"
)

// DefaultInterval is the original's poll cadence.
const DefaultInterval = time.Second

// FailureEvent is emitted the moment a node is first observed down.
type FailureEvent struct {
	NodeID model.NodeID
	URL    string
}

// Monitor runs one watcher per tracked node and reports failures on a
// channel. Once a node is reported down its watcher exits; the node is
// not watched again, and the Adaptation Controller does not re-probe or
// re-admit it within the same run.
type Monitor struct {
	client   *agent.Client
	interval time.Duration
	log      *slog.Logger

	status *model.MonitorStatus

	mu       sync.Mutex
	cancels  map[model.NodeID]context.CancelFunc
	failures chan FailureEvent
}

// New builds a Monitor. log may be nil.
func New(client *agent.Client, interval time.Duration, log *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		client:   client,
		interval: interval,
		log:      log,
		status:   model.NewMonitorStatus(),
		cancels:  make(map[model.NodeID]context.CancelFunc),
		failures: make(chan FailureEvent, 16),
	}
}

// Failures returns the channel failure events are published on. Callers
// (the Adaptation Controller) must drain it promptly; it buffers at most
// 16 undelivered events.
func (m *Monitor) Failures() <-chan FailureEvent {
	return m.failures
}

// Status exposes the live per-node up/down snapshot.
func (m *Monitor) Status() *model.MonitorStatus {
	return m.status
}

// Watch starts a watcher for node if one is not already running.
func (m *Monitor) Watch(ctx context.Context, node model.Node) {
	m.mu.Lock()
	if _, exists := m.cancels[node.ID]; exists {
		m.mu.Unlock()
		return
	}
	watchCtx, cancel := context.WithCancel(ctx)
	m.cancels[node.ID] = cancel
	m.mu.Unlock()

	m.status.Set(node.URL, model.StatusUp)
	go m.run(watchCtx, node)
}

// Unwatch stops a node's watcher, if any, and drops the node's entry from
// the status snapshot; the Adaptation Controller calls it for each node
// it removes after a failure.
func (m *Monitor) Unwatch(node model.Node) {
	m.mu.Lock()
	cancel, exists := m.cancels[node.ID]
	delete(m.cancels, node.ID)
	m.mu.Unlock()

	if exists {
		cancel()
	}
	m.status.Untrack(node.URL)
}

func (m *Monitor) run(ctx context.Context, node model.Node) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.client.CheckAlive(ctx, node) {
				continue
			}
			m.status.Set(node.URL, model.StatusDown)
			if m.log != nil {
				m.log.Warn("node failure detected", "node_id", node.ID, "url", node.URL)
			}
			select {
			case m.failures <- FailureEvent{NodeID: node.ID, URL: node.URL}:
			case <-ctx.Done():
			}

			m.mu.Lock()
			delete(m.cancels, node.ID)
			m.mu.Unlock()
			return
		}
	}
}

// Close stops every running watcher.
func (m *Monitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, cancel := range m.cancels {
		cancel()
		delete(m.cancels, id)
	}
}
