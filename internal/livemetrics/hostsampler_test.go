package livemetrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewHostSampler_ReturnsUsableSampler(t *testing.T) {
	s := NewHostSampler(nil, false)
	require := assert.New(t)

	mem := s.MemoryCommittedBytes()
	require.GreaterOrEqual(mem, int64(0))

	cpuPct := s.CPUUsagePercent()
	require.GreaterOrEqual(cpuPct, 0.0)
	require.LessOrEqual(cpuPct, 100.0)
}

func TestNewHostSampler_NonNormalizedCPUReturnsNonNegative(t *testing.T) {
	s := NewHostSampler(nil, true)

	// With NonNormalizedCPU the value is scaled by NumCPU and the
	// clamp-to-100 branch is skipped; on multi-core hosts a busy loop
	// could exceed 100, so we only assert the sampler still returns a
	// non-negative value without panicking on the unclamped path.
	cpuPct := s.CPUUsagePercent()
	assert.GreaterOrEqual(t, cpuPct, 0.0)
}
