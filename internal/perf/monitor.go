package perf

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/juju/errors"
)

// Sample is one reading of system load.
type Sample struct {
	Load1      float64
	TempC      float64
	HasTemp    bool
	MemPercent float64
}

// Sampler produces load samples.
type Sampler interface {
	Sample() (Sample, error)
}

// Monitor reads load average, CPU temperature and memory use from procfs
// and sysfs below Root.
type Monitor struct {
	// Root is prepended to every path; empty means "/".
	Root string
}

// NewMonitor returns a Monitor reading the live system.
func NewMonitor() *Monitor {
	return &Monitor{}
}

var thermalZones = []string{
	"sys/class/thermal/thermal_zone0/temp",
	"sys/class/thermal/thermal_zone1/temp",
	"sys/class/thermal/thermal_zone2/temp",
}

var (
	ErrInvalidLoadAverage  = errors.New("invalid load average format")
	ErrTemperatureNotFound = errors.New("temperature sensors not found")
)

func (m *Monitor) path(rel string) string {
	root := m.Root
	if root == "" {
		root = "/"
	}
	return filepath.Join(root, rel)
}

// Sample returns a fresh reading. Only the load average is mandatory;
// missing thermal zones leave HasTemp false.
func (m *Monitor) Sample() (Sample, error) {
	var s Sample

	load, err := m.loadAverage()
	if err != nil {
		return s, err
	}
	s.Load1 = load

	if temp, err := m.temperature(); err == nil {
		s.TempC = temp
		s.HasTemp = true
	}
	if mem, err := m.memoryUsage(); err == nil {
		s.MemPercent = mem
	}
	return s, nil
}

func (m *Monitor) loadAverage() (float64, error) {
	data, err := os.ReadFile(m.path("proc/loadavg"))
	if err != nil {
		return 0, errors.Trace(err)
	}
	fields := strings.Fields(string(data))
	if len(fields) < 1 {
		return 0, ErrInvalidLoadAverage
	}
	load, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, ErrInvalidLoadAverage
	}
	return load, nil
}

// temperature averages the readable thermal zones, in Celsius.
func (m *Monitor) temperature() (float64, error) {
	var total float64
	var count int
	for _, zone := range thermalZones {
		data, err := os.ReadFile(m.path(zone))
		if err != nil {
			continue
		}
		milli, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
		if err != nil {
			continue
		}
		total += milli / 1000.0
		count++
	}
	if count == 0 {
		return 0, ErrTemperatureNotFound
	}
	return total / float64(count), nil
}

func (m *Monitor) memoryUsage() (float64, error) {
	data, err := os.ReadFile(m.path("proc/meminfo"))
	if err != nil {
		return 0, errors.Trace(err)
	}
	var total, available int64
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			total, _ = strconv.ParseInt(fields[1], 10, 64)
		case "MemAvailable:":
			available, _ = strconv.ParseInt(fields[1], 10, 64)
		}
	}
	if total <= 0 {
		return 0, errors.NotFoundf("MemTotal")
	}
	return 100.0 * float64(total-available) / float64(total), nil
}
