package scheduler

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/yungbote/clipindex/internal/config"
	"github.com/yungbote/clipindex/internal/platform/logger"
)

type ThermalState string

const (
	ThermalNominal  ThermalState = "nominal"
	ThermalFair     ThermalState = "fair"
	ThermalSerious  ThermalState = "serious"
	ThermalCritical ThermalState = "critical"
)

// Sample is one reading of ResourceMonitor's inputs (§4.12).
type Sample struct {
	Thermal              ThermalState
	AvailableMemoryBytes uint64
	LowPowerMode         bool
}

// Sampler produces one Sample. Thermal state and low-power mode have no
// portable Go API (on the platforms this kind of signal matters for,
// they live behind IOKit or a power-management D-Bus service); the
// default sampler reports the conservative "unaffected" values for
// both and reads real numbers only for available memory, via gopsutil.
// A host embedding this on a specific OS can supply a richer Sampler.
type Sampler func() (Sample, error)

func DefaultSampler() Sampler {
	return func() (Sample, error) {
		vm, err := mem.VirtualMemory()
		if err != nil {
			return Sample{}, err
		}
		return Sample{
			Thermal:              ThermalNominal,
			AvailableMemoryBytes: vm.Available,
			LowPowerMode:         false,
		}, nil
	}
}

// initialForMode is the starting concurrency ceiling for a
// PerformanceMode (§4.12).
func initialForMode(mode string) int64 {
	switch mode {
	case "fullSpeed":
		return 8
	case "background":
		return 1
	default: // "balanced"
		return 4
	}
}

const lowMemoryThresholdBytes uint64 = 1 << 30 // 1 GiB

// Recommend computes the concurrency cap for one sample (§4.12): thermal
// serious/critical monotonically reduces the cap, available memory below
// the threshold pauses admission to 1, and low-power mode does the same.
func Recommend(mode string, s Sample) int64 {
	cap := initialForMode(mode)
	switch s.Thermal {
	case ThermalSerious:
		cap = cap / 2
		if cap < 1 {
			cap = 1
		}
	case ThermalCritical:
		cap = 1
	}
	if s.LowPowerMode {
		cap = 1
	}
	if s.AvailableMemoryBytes > 0 && s.AvailableMemoryBytes < lowMemoryThresholdBytes {
		cap = 1
	}
	return cap
}

// ResourceMonitor periodically samples system resources and reports a
// recommended concurrency. It never enforces anything itself: "the
// monitor only recommends; the scheduler applies" (§4.12).
type ResourceMonitor struct {
	sample   Sampler
	mode     string
	interval time.Duration
	log      *logger.Logger
}

func NewResourceMonitor(cfg *config.Config, sample Sampler, log *logger.Logger) *ResourceMonitor {
	if sample == nil {
		sample = DefaultSampler()
	}
	interval := time.Duration(cfg.ResourceSampleInterval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &ResourceMonitor{
		sample:   sample,
		mode:     cfg.PerformanceMode,
		interval: interval,
		log:      log.With("component", "ResourceMonitor"),
	}
}

// Start runs the sampling loop until ctx is done, calling apply with
// every new recommendation. It samples once immediately so the first
// recommendation is available without waiting a full interval.
func (m *ResourceMonitor) Start(ctx context.Context, apply func(int64)) {
	m.tick(apply)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(apply)
		}
	}
}

func (m *ResourceMonitor) tick(apply func(int64)) {
	s, err := m.sample()
	if err != nil {
		m.log.Warn("resource sample failed, skipping recommendation", "err", err)
		return
	}
	rec := Recommend(m.mode, s)
	m.log.Debug("resource sample", "thermal", s.Thermal, "availableMemory", s.AvailableMemoryBytes, "lowPowerMode", s.LowPowerMode, "recommended", rec)
	apply(rec)
}
