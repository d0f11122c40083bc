// Package metrics collects host statistics for the health endpoint.
package metrics

import (
	"context"
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostStats is a snapshot of the machine the server runs on.
type HostStats struct {
	Memory  MemoryStats `json:"memory"`
	Storage *DiskStats  `json:"storage,omitempty"`
	LoadAvg []float64   `json:"load_avg,omitempty"` // 1, 5, 15 min
	Uptime  uint64      `json:"uptime"`             // seconds
	Cores   int         `json:"cores"`
}

// MemoryStats represents memory usage information.
type MemoryStats struct {
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	Available   uint64  `json:"available"`
	UsedPercent float64 `json:"used_percent"`
}

// DiskStats is the usage of the filesystem holding the database.
type DiskStats struct {
	Path        string  `json:"path"`
	Total       uint64  `json:"total"`
	Free        uint64  `json:"free"`
	UsedPercent float64 `json:"used_percent"`
}

// Collect gathers host statistics in parallel. Collectors that fail leave
// their fields zero. storagePath selects the filesystem to report; empty
// skips it.
func Collect(ctx context.Context, storagePath string) (*HostStats, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	stats := &HostStats{}
	var wg sync.WaitGroup
	var mu sync.Mutex

	wg.Add(1)
	go func() {
		defer wg.Done()
		vmem, err := mem.VirtualMemoryWithContext(ctx)
		if err != nil {
			return
		}
		mu.Lock()
		stats.Memory = MemoryStats{
			Total:       vmem.Total,
			Used:        vmem.Used,
			Available:   vmem.Available,
			UsedPercent: vmem.UsedPercent,
		}
		mu.Unlock()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		cores, err := cpu.CountsWithContext(ctx, true)
		if err == nil {
			mu.Lock()
			stats.Cores = cores
			mu.Unlock()
		}

		uptime, err := host.UptimeWithContext(ctx)
		if err == nil {
			mu.Lock()
			stats.Uptime = uptime
			mu.Unlock()
		}

		// not available on every platform
		avg, err := load.AvgWithContext(ctx)
		if err == nil {
			mu.Lock()
			stats.LoadAvg = []float64{avg.Load1, avg.Load5, avg.Load15}
			mu.Unlock()
		}
	}()

	if storagePath != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			usage, err := disk.UsageWithContext(ctx, storagePath)
			if err != nil {
				return
			}
			mu.Lock()
			stats.Storage = &DiskStats{
				Path:        usage.Path,
				Total:       usage.Total,
				Free:        usage.Free,
				UsedPercent: usage.UsedPercent,
			}
			mu.Unlock()
		}()
	}

	wg.Wait()

	return stats, nil
}
