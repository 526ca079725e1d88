package observability

import (
	"context"
	"log/slog"
	"os"
	"quiz-lab/contract"
	"quiz-lab/domain"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/process"
)

// MonitoringStats is what the debug dashboard shows.
type MonitoringStats struct {
	LiveRooms      int              `json:"live_rooms"`
	EventsSent     uint64           `json:"events_sent"`
	EventsByName   map[string]int64 `json:"events_by_name"`
	HostActions    uint64           `json:"host_actions"`
	SweepWarnings  uint64           `json:"sweep_warnings"`
	SweepDeletions uint64           `json:"sweep_deletions"`
	SweepFailures  uint64           `json:"sweep_failures"`
	AllocMemMb     uint64           `json:"alloc_mem_mb"`
	NumGC          uint32           `json:"num_gc"`
	NumGoroutine   int              `json:"num_goroutine"`
	RssMb          uint64           `json:"rss_mb"`
	CPUPercent     float64          `json:"cpu_percent"`
	UpdatedAt      string           `json:"updated_at"`
}

// MonitoringManager aggregates counters from the session core and process
// statistics refreshed by Run.
type MonitoringManager struct {
	log      *slog.Logger
	interval time.Duration
	rooms    func() int

	eventsSent     atomic.Uint64
	hostActions    atomic.Uint64
	sweepWarnings  atomic.Uint64
	sweepDeletions atomic.Uint64
	sweepFailures  atomic.Uint64

	mu     sync.RWMutex
	byName map[string]int64
	latest MonitoringStats
}

// NewMonitoringManager counts live rooms through rooms, which may be nil.
func NewMonitoringManager(log *slog.Logger, interval time.Duration, rooms func() int) *MonitoringManager {
	return &MonitoringManager{
		log:      log,
		interval: interval,
		rooms:    rooms,
		byName:   make(map[string]int64),
	}
}

func (mm *MonitoringManager) IncrHostActions() { mm.hostActions.Add(1) }

func (mm *MonitoringManager) RecordSweep(warned, deleted, failed int) {
	mm.sweepWarnings.Add(uint64(warned))
	mm.sweepDeletions.Add(uint64(deleted))
	mm.sweepFailures.Add(uint64(failed))
}

func (mm *MonitoringManager) recordEvent(name string) {
	mm.eventsSent.Add(1)
	mm.mu.Lock()
	mm.byName[name]++
	mm.mu.Unlock()
}

// Run refreshes the process statistics until ctx is done.
func (mm *MonitoringManager) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}
	ticker := time.NewTicker(mm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			mm.update(p)
		}
	}
}

func (mm *MonitoringManager) update(p *process.Process) {
	stats := mm.counters()
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	stats.AllocMemMb = m.Alloc / 1024 / 1024
	stats.NumGC = m.NumGC
	stats.NumGoroutine = runtime.NumGoroutine()
	if p != nil {
		if mem, err := p.MemoryInfo(); err == nil {
			stats.RssMb = mem.RSS / 1024 / 1024
		}
		if cpu, err := p.CPUPercent(); err == nil {
			stats.CPUPercent = cpu
		}
	}
	stats.UpdatedAt = time.Now().Format("15:04:05")

	mm.mu.Lock()
	mm.latest = stats
	mm.mu.Unlock()
	mm.log.Debug("Stats updated", "rooms", stats.LiveRooms, "events", stats.EventsSent, "mem_mb", stats.AllocMemMb)
}

func (mm *MonitoringManager) counters() MonitoringStats {
	stats := MonitoringStats{
		EventsSent:     mm.eventsSent.Load(),
		HostActions:    mm.hostActions.Load(),
		SweepWarnings:  mm.sweepWarnings.Load(),
		SweepDeletions: mm.sweepDeletions.Load(),
		SweepFailures:  mm.sweepFailures.Load(),
	}
	if mm.rooms != nil {
		stats.LiveRooms = mm.rooms()
	}
	mm.mu.RLock()
	stats.EventsByName = make(map[string]int64, len(mm.byName))
	for k, v := range mm.byName {
		stats.EventsByName[k] = v
	}
	mm.mu.RUnlock()
	return stats
}

// GetLatest returns fresh counters along with the last process statistics.
func (mm *MonitoringManager) GetLatest() MonitoringStats {
	stats := mm.counters()
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	stats.AllocMemMb = mm.latest.AllocMemMb
	stats.NumGC = mm.latest.NumGC
	stats.NumGoroutine = mm.latest.NumGoroutine
	stats.RssMb = mm.latest.RssMb
	stats.CPUPercent = mm.latest.CPUPercent
	stats.UpdatedAt = mm.latest.UpdatedAt
	return stats
}

// AsMap renders the latest statistics for the debug inspector.
func (mm *MonitoringManager) AsMap() map[string]any {
	s := mm.GetLatest()
	return map[string]any{
		"Live rooms":      s.LiveRooms,
		"Events sent":     s.EventsSent,
		"Host actions":    s.HostActions,
		"Sweep warnings":  s.SweepWarnings,
		"Sweep deletions": s.SweepDeletions,
		"Sweep failures":  s.SweepFailures,
		"Alloc (MB)":      s.AllocMemMb,
		"RSS (MB)":        s.RssMb,
		"CPU (%)":         s.CPUPercent,
		"Goroutines":      s.NumGoroutine,
	}
}

// CountingNotifier counts every event on its way to next.
type CountingNotifier struct {
	next    contract.Notifier
	monitor *MonitoringManager
}

func NewCountingNotifier(next contract.Notifier, monitor *MonitoringManager) *CountingNotifier {
	return &CountingNotifier{next: next, monitor: monitor}
}

func (n *CountingNotifier) Notify(roomCode domain.RoomCode, eventName string, payload any) {
	n.monitor.recordEvent(eventName)
	n.next.Notify(roomCode, eventName, payload)
}
