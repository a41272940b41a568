package system

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/GriffinCanCode/WidgetHost/internal/domain/permission"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/errs"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/types"
)

// CPUUsage is the result of system.getCPU
type CPUUsage struct {
	Percent float64   `json:"percent"`
	PerCore []float64 `json:"perCore"`
	Cores   int       `json:"cores"`
}

// MemoryUsage is the result of system.getMemory
type MemoryUsage struct {
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	Available   uint64  `json:"available"`
	UsedPercent float64 `json:"usedPercent"`
}

// Reader samples host telemetry
type Reader interface {
	CPU(ctx context.Context) (CPUUsage, error)
	Memory(ctx context.Context) (MemoryUsage, error)
}

// Provider serves host CPU and memory readings
type Provider struct {
	reader Reader
}

// NewProvider creates a system provider reading from the host.
// A nil reader samples the host with gopsutil.
func NewProvider(reader Reader) *Provider {
	if reader == nil {
		reader = HostReader{Sample: 200 * time.Millisecond}
	}
	return &Provider{reader: reader}
}

// Definition returns service metadata
func (p *Provider) Definition() types.Service {
	return types.Service{
		ID:          "system",
		Name:        "System Info",
		Description: "Host CPU and memory usage",
		Category:    types.CategorySystem,
		Capabilities: []types.Capability{
			{
				ID:          "system.getCPU",
				Name:        "CPU Usage",
				Description: "show current CPU usage",
				Permission:  permission.CPU,
			},
			{
				ID:          "system.getMemory",
				Name:        "Memory Usage",
				Description: "show current memory usage",
				Permission:  permission.Memory,
			},
		},
	}
}

// Execute runs a system capability
func (p *Provider) Execute(ctx context.Context, capability string, _ types.Caller, _ map[string]interface{}) (interface{}, error) {
	switch capability {
	case "system.getCPU":
		usage, err := p.reader.CPU(ctx)
		if err != nil {
			return nil, errs.Wrap(errs.KindInternal, err, "read cpu usage")
		}
		return usage, nil
	case "system.getMemory":
		usage, err := p.reader.Memory(ctx)
		if err != nil {
			return nil, errs.Wrap(errs.KindInternal, err, "read memory usage")
		}
		return usage, nil
	default:
		return nil, errs.New(errs.KindInvalidConfig, "unknown capability %q", capability)
	}
}

// HostReader reads the local machine through gopsutil
type HostReader struct {
	// Sample is the CPU measurement window
	Sample time.Duration
}

// CPU measures utilization over the sample window
func (h HostReader) CPU(ctx context.Context) (CPUUsage, error) {
	perCore, err := cpu.PercentWithContext(ctx, h.Sample, true)
	if err != nil {
		return CPUUsage{}, err
	}

	usage := CPUUsage{PerCore: perCore, Cores: len(perCore)}
	for _, v := range perCore {
		usage.Percent += v
	}
	if len(perCore) > 0 {
		usage.Percent /= float64(len(perCore))
	}
	return usage, nil
}

// Memory reads virtual memory statistics
func (h HostReader) Memory(ctx context.Context) (MemoryUsage, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return MemoryUsage{}, err
	}
	return MemoryUsage{
		Total:       vm.Total,
		Used:        vm.Used,
		Available:   vm.Available,
		UsedPercent: vm.UsedPercent,
	}, nil
}
