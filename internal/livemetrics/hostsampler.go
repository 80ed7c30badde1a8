package livemetrics

import (
	"log/slog"
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// HostSampler reads best-effort host resource usage for FinalCounters
// (spec §4.2). A sampler failure is never an ingestion error: it is
// logged at Warn and the field is normalized to 0.
type HostSampler interface {
	MemoryCommittedBytes() int64
	CPUUsagePercent() float64
}

// gopsutilHostSampler samples committed memory and CPU percent via
// github.com/shirou/gopsutil/v4, the same process-stats library the
// teacher pulls in transitively for its platform-specific metrics.
//
// NonNormalizedCPU reproduces the historical "back-compat" behavior
// called out as an Open Question in spec §9: cpu.Percent reports the
// percentage of all cores combined (0..100 already normalized); when
// NonNormalizedCPU is true the value is scaled back up by NumCPU so
// operators who depend on the legacy, non-normalized metric definition
// can opt in without the knob silently changing dashboards.
type gopsutilHostSampler struct {
	logger           *slog.Logger
	nonNormalizedCPU bool
	numCPU           int
}

// NewHostSampler constructs the default gopsutil-backed sampler.
func NewHostSampler(logger *slog.Logger, nonNormalizedCPU bool) HostSampler {
	if logger == nil {
		logger = slog.Default()
	}
	return &gopsutilHostSampler{
		logger:           logger,
		nonNormalizedCPU: nonNormalizedCPU,
		numCPU:           runtime.NumCPU(),
	}
}

func (s *gopsutilHostSampler) MemoryCommittedBytes() int64 {
	vm, err := mem.VirtualMemory()
	if err != nil {
		s.logger.Warn("host memory sample failed", "error", err)
		return 0
	}
	return int64(vm.Used)
}

func (s *gopsutilHostSampler) CPUUsagePercent() float64 {
	percents, err := cpu.Percent(0, false)
	if err != nil || len(percents) == 0 {
		s.logger.Warn("host cpu sample failed", "error", err)
		return 0
	}

	value := percents[0]
	if s.nonNormalizedCPU && s.numCPU > 0 {
		value *= float64(s.numCPU)
	}

	if value > 100 && !s.nonNormalizedCPU {
		value = 100
	}
	return value
}
