// Package memtelemetry samples process heap and system memory usage. The
// admission controller only sees the Sample struct, so tests can feed it
// arbitrary pressure via the mock.
package memtelemetry

import (
	"runtime"

	"github.com/shirou/gopsutil/v4/mem"
	"github.com/the127/stevedore/internal/logging"
)

type Sample struct {
	HeapAllocBytes uint64
	HeapSysBytes   uint64
	HeapPct        float64
	SystemPct      float64
}

type Service interface {
	Sample() Sample
}

type service struct{}

func NewService() Service {
	return &service{}
}

func (s *service) Sample() Sample {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	sample := Sample{
		HeapAllocBytes: stats.HeapAlloc,
		HeapSysBytes:   stats.HeapSys,
	}

	if stats.HeapSys > 0 {
		sample.HeapPct = float64(stats.HeapAlloc) / float64(stats.HeapSys) * 100
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		// Keep going on heap stats alone, system usage reads as zero.
		logging.Logger.Warnf("failed to read system memory: %s", err)
		return sample
	}

	sample.SystemPct = vm.UsedPercent
	return sample
}
