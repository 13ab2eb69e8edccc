package obs

import (
	"math"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// Host gauges sample gopsutil at scrape time. A failed sample reports
// NaN so the gap stays visible instead of freezing the last value.
func (m *Manager) registerHostMetrics(factory promauto.Factory) {
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "host",
		Name:      "cpu_percent",
		Help:      "Total CPU utilization since the previous scrape.",
	}, func() float64 {
		percents, err := cpu.Percent(0, false)
		if err != nil || len(percents) == 0 {
			m.log.Debug("cpu sample failed", "error", err)
			return math.NaN()
		}
		return percents[0]
	})
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "host",
		Name:      "memory_used_percent",
		Help:      "Physical memory in use.",
	}, func() float64 {
		vm, err := mem.VirtualMemory()
		if err != nil {
			m.log.Debug("memory sample failed", "error", err)
			return math.NaN()
		}
		return vm.UsedPercent
	})
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "host",
		Name:      "load1",
		Help:      "One minute load average.",
	}, func() float64 {
		avg, err := load.Avg()
		if err != nil {
			m.log.Debug("load sample failed", "error", err)
			return math.NaN()
		}
		return avg.Load1
	})
}

func (m *Manager) registerRecordingDiskMetric(factory promauto.Factory, path string) {
	dir := filepath.Dir(path)
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   "recording",
		Name:        "disk_used_percent",
		Help:        "Space used on the filesystem holding the recording.",
		ConstLabels: prometheus.Labels{"path": path},
	}, func() float64 {
		usage, err := disk.Usage(dir)
		if err != nil {
			m.log.Debug("disk sample failed", "dir", dir, "error", err)
			return math.NaN()
		}
		return usage.UsedPercent
	})
}
