// Package portaudio exposes each PortAudio host API as a driver.
package portaudio

import (
	"fmt"
	"log/slog"

	pa "github.com/gordonklaus/portaudio"
	"github.com/lisuiheng/audiodev/audio"
)

// NamePrefix keeps PortAudio host APIs apart from miniaudio drivers of the same name.
const NamePrefix = "PortAudio "

var _ audio.Backend = (*Backend)(nil)

type Backend struct {
	drivers []*driver
	logger  *slog.Logger
}

// Factory 返回初始化 PortAudio 的 BackendFactory
func Factory() audio.BackendFactory {
	return func(logger *slog.Logger) (audio.Backend, error) {
		return Open(logger)
	}
}

// Open 初始化 PortAudio 并为每个主机 API 创建驱动
func Open(logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	apis, err := pa.HostApis()
	if err != nil {
		pa.Terminate()
		return nil, fmt.Errorf("failed to list PortAudio host APIs: %w", err)
	}

	b := &Backend{logger: logger}
	for _, api := range apis {
		b.drivers = append(b.drivers, &driver{
			name:    NamePrefix + api.Name,
			apiType: api.Type,
			logger:  logger,
		})
	}
	logger.Debug("PortAudio initialized", "version", pa.VersionText(), "host_apis", len(apis))
	return b, nil
}

func (b *Backend) Drivers() []audio.Driver {
	out := make([]audio.Driver, len(b.drivers))
	for i, d := range b.drivers {
		out[i] = d
	}
	return out
}

// Close 终止 PortAudio；所有流必须已经关闭
func (b *Backend) Close() error {
	b.drivers = nil
	return pa.Terminate()
}
