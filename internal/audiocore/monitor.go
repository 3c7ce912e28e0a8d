package audiocore

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/avhost/av/internal/logger"
)

// DefaultMonitorInterval is the period of the stream summary log line
const DefaultMonitorInterval = 10 * time.Second

// pollInterval is how often the monitor looks for new faults
const pollInterval = 250 * time.Millisecond

// Monitor collects callback statistics. The real-time side only touches
// atomics; a separate goroutine turns them into log lines.
type Monitor struct {
	callbacks    atomic.Uint64
	commands     atomic.Uint64
	hookOverruns atomic.Uint64
	hookLast     atomic.Int64
	hookMax      atomic.Int64
	panics       atomic.Uint64
	lastPanic    atomic.Pointer[string]
}

// Stats is a snapshot of one stream's counters
type Stats struct {
	Callbacks       uint64        `json:"callbacks"`
	Underruns       uint64        `json:"underruns"`
	Commands        uint64        `json:"commands"`
	PendingBytes    int           `json:"pendingCommandBytes"`
	HookOverruns    uint64        `json:"hookOverruns"`
	HookLast        time.Duration `json:"hookLastNs"`
	HookMax         time.Duration `json:"hookMaxNs"`
	Panics          uint64        `json:"panics"`
	LastPanic       string        `json:"lastPanic,omitempty"`
	VoicesActive    int           `json:"voicesActive"`
	VoicesDropped   uint64        `json:"voicesDropped"`
	TapDroppedBytes uint64        `json:"tapDroppedBytes"`
	Ahead           int           `json:"aheadBlocks"`
}

func (m *Monitor) recordHook(d, budget time.Duration) {
	ns := int64(d)
	m.hookLast.Store(ns)
	if ns > m.hookMax.Load() {
		m.hookMax.Store(ns)
	}
	if d > budget {
		m.hookOverruns.Add(1)
	}
}

// recordPanic runs on the real-time thread after a recovered panic. The
// formatting allocates, which is accepted on this path only.
func (m *Monitor) recordPanic(v any) {
	msg := fmt.Sprint(v)
	m.lastPanic.Store(&msg)
	m.panics.Add(1)
}

func (st *streamState) stats() Stats {
	m := st.monitor
	s := Stats{
		Callbacks:     m.callbacks.Load(),
		Underruns:     st.ring.Underruns(),
		Commands:      m.commands.Load(),
		PendingBytes:  st.commands.Pending(),
		HookOverruns:  m.hookOverruns.Load(),
		HookLast:      time.Duration(m.hookLast.Load()),
		HookMax:       time.Duration(m.hookMax.Load()),
		Panics:        m.panics.Load(),
		VoicesActive:  st.voices.Active(),
		VoicesDropped: st.voices.Dropped(),
		Ahead:         st.ring.Ahead(),
	}
	if p := m.lastPanic.Load(); p != nil {
		s.LastPanic = *p
	}
	if st.tap != nil {
		s.TapDroppedBytes = st.tap.Dropped()
	}
	return s
}

// watch logs faults as they appear and a summary every interval until ctx
// is cancelled. Fault warnings are rate limited so a stream that underruns
// on every callback does not flood the log.
func (st *streamState) watch(ctx context.Context, interval time.Duration) {
	log := GetLogger().With(logger.String("session_id", st.id))
	warn := rate.NewLimiter(rate.Every(5*time.Second), 3)

	poll := time.NewTicker(min(pollInterval, interval))
	defer poll.Stop()

	var prev Stats
	lastSummary := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
		}

		cur := st.stats()

		if cur.Panics > prev.Panics && warn.Allow() {
			log.Error("recovered panic in audio callback",
				logger.String("panic", cur.LastPanic),
				logger.Uint64("total", cur.Panics))
		}
		if cur.Underruns > prev.Underruns && cur.Callbacks > 1 && warn.Allow() {
			log.Warn("audio ring underrun",
				logger.Uint64("new", cur.Underruns-prev.Underruns),
				logger.Uint64("total", cur.Underruns))
		}
		if cur.HookOverruns > prev.HookOverruns && warn.Allow() {
			log.Warn("frame hook exceeded block period",
				logger.Duration("last", cur.HookLast),
				logger.Duration("budget", st.budget))
		}
		if cur.TapDroppedBytes > prev.TapDroppedBytes && warn.Allow() {
			log.Warn("input tap full, dropping input",
				logger.Uint64("dropped_bytes", cur.TapDroppedBytes-prev.TapDroppedBytes))
		}
		prev = cur

		if time.Since(lastSummary) >= interval {
			lastSummary = time.Now()
			log.Info("audio stream status",
				logger.Uint64("callbacks", cur.Callbacks),
				logger.Uint64("underruns", cur.Underruns),
				logger.Uint64("commands", cur.Commands),
				logger.Int("voices", cur.VoicesActive),
				logger.Int("ahead_blocks", cur.Ahead),
				logger.Duration("hook_max", cur.HookMax),
				logger.Float64("stream_time", st.clock.Seconds()))
		}
	}
}
