package telemetry

import (
	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"github.com/pkg/errors"
)

type nvmlSource struct {
	dev nvml.Device
}

// OpenNVML opens the first NVIDIA device. Hosts without a GPU or without the
// driver get an error, which the monitor degrades to "unavailable".
func OpenNVML() (AccelSource, error) {
	if ret := nvml.Init(); ret != nvml.SUCCESS {
		return nil, errors.Errorf("nvml init: %s", nvml.ErrorString(ret))
	}
	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS || count == 0 {
		_ = nvml.Shutdown()
		return nil, errors.New("no nvidia devices")
	}
	dev, ret := nvml.DeviceGetHandleByIndex(0)
	if ret != nvml.SUCCESS {
		_ = nvml.Shutdown()
		return nil, errors.Errorf("nvml device handle: %s", nvml.ErrorString(ret))
	}
	return &nvmlSource{dev: dev}, nil
}

func (s *nvmlSource) MemoryUsed() (uint64, error) {
	info, ret := s.dev.GetMemoryInfo()
	if ret != nvml.SUCCESS {
		return 0, errors.Errorf("nvml memory info: %s", nvml.ErrorString(ret))
	}
	return info.Used, nil
}

func (s *nvmlSource) Close() {
	_ = nvml.Shutdown()
}
