package stages

import (
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"

	"inlook-corpus/internal/attrval"
	"inlook-corpus/internal/email"
	"inlook-corpus/internal/stage"
	"inlook-corpus/internal/store"
)

// SystemInfoTaggerPluginName is the plugin name this adapter registers under.
const SystemInfoTaggerPluginName = "SystemInfoTagger"

// HostCPUPercentAttr and HostMemoryUsedPercentAttr are the attributes
// this stage stamps onto every record.
const (
	HostCPUPercentAttr        = "Host CPU percent"
	HostMemoryUsedPercentAttr = "Host memory used percent"
)

var systemInfoTaggerSchema = map[string]interface{}{
	"type":       "object",
	"properties": map[string]interface{}{},
}

// SystemInfoTagger stamps the current host's CPU and memory utilization
// onto every record in its view, sampled once per Execute. Useful for
// correlating corpus-run throughput with host load after the fact.
type SystemInfoTagger struct {
	*stage.Base
}

// NewSystemInfoTagger constructs a SystemInfoTagger instance.
func NewSystemInfoTagger(instanceID string, log *logrus.Entry) *SystemInfoTagger {
	return &SystemInfoTagger{
		Base: stage.NewBase(SystemInfoTaggerPluginName, instanceID, systemInfoTaggerSchema, []string{"stage"}, log),
	}
}

func (s *SystemInfoTagger) InstantiateRecursive() error {
	if err := s.Validate(); err != nil {
		return err
	}
	s.DeclareAttributes(nil, []string{HostCPUPercentAttr, HostMemoryUsedPercentAttr})
	return s.Transition(stage.StateReady, "SystemInfoTagger.InstantiateRecursive", 0)
}

func (s *SystemInfoTagger) Execute(v *store.View) error {
	if err := s.Transition(stage.StateRunning, "SystemInfoTagger.Execute", 0); err != nil {
		return err
	}

	cpuPercent := 0.0
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		cpuPercent = percents[0]
	} else if err != nil {
		s.Log.WithError(err).Warn("failed to sample host CPU usage")
	}

	memPercent := 0.0
	if vm, err := mem.VirtualMemory(); err == nil {
		memPercent = vm.UsedPercent
	} else {
		s.Log.WithError(err).Warn("failed to sample host memory usage")
	}

	v.Each(func(r *email.Record) bool {
		r.SetAttribute(HostCPUPercentAttr, attrval.NewDouble(cpuPercent))
		r.SetAttribute(HostMemoryUsedPercentAttr, attrval.NewDouble(memPercent))
		return true
	})

	return s.Transition(stage.StateComplete, "SystemInfoTagger.Execute", 0)
}
