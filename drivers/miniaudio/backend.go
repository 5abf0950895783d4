// Package miniaudio exposes every miniaudio backend that initialises on
// this machine (ALSA, PulseAudio, JACK, CoreAudio, WASAPI, ...) as a driver.
package miniaudio

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"github.com/gen2brain/malgo"
	"github.com/lisuiheng/audiodev/audio"
)

var ErrUnknownBackend = errors.New("unknown miniaudio backend")

// Config 选择要尝试的 miniaudio 后端，为空时使用平台默认列表
type Config struct {
	Backends []string `mapstructure:"backends"`
}

type backendInfo struct {
	id   malgo.Backend
	name string
}

var knownBackends = map[string]backendInfo{
	"wasapi":     {malgo.BackendWasapi, "WASAPI"},
	"dsound":     {malgo.BackendDsound, "DirectSound"},
	"winmm":      {malgo.BackendWinmm, "WinMM"},
	"coreaudio":  {malgo.BackendCoreaudio, "CoreAudio"},
	"sndio":      {malgo.BackendSndio, "sndio"},
	"audio4":     {malgo.BackendAudio4, "audio(4)"},
	"oss":        {malgo.BackendOss, "OSS"},
	"pulseaudio": {malgo.BackendPulseaudio, "PulseAudio"},
	"alsa":       {malgo.BackendAlsa, "ALSA"},
	"jack":       {malgo.BackendJack, "JACK"},
	"aaudio":     {malgo.BackendAaudio, "AAudio"},
	"opensl":     {malgo.BackendOpensl, "OpenSL|ES"},
	"null":       {malgo.BackendNull, "Null"},
}

func platformBackends() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{"wasapi", "dsound", "winmm"}
	case "darwin", "ios":
		return []string{"coreaudio"}
	case "android":
		return []string{"aaudio", "opensl"}
	case "linux":
		return []string{"pulseaudio", "alsa", "jack"}
	case "openbsd":
		return []string{"sndio", "audio4"}
	case "netbsd":
		return []string{"audio4", "oss"}
	default:
		return []string{"oss"}
	}
}

func resolveBackends(names []string) ([]backendInfo, error) {
	if len(names) == 0 {
		names = platformBackends()
	}
	infos := make([]backendInfo, 0, len(names))
	for _, n := range names {
		info, ok := knownBackends[strings.ToLower(n)]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, n)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

var _ audio.Backend = (*Backend)(nil)

type Backend struct {
	drivers []*driver
}

// Factory 返回按 cfg 初始化 miniaudio 上下文的 BackendFactory
func Factory(cfg Config) audio.BackendFactory {
	return func(logger *slog.Logger) (audio.Backend, error) {
		return Open(cfg, logger)
	}
}

// Open initialises one miniaudio context per backend. Backends that are
// not available on this machine are skipped.
func Open(cfg Config, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	infos, err := resolveBackends(cfg.Backends)
	if err != nil {
		return nil, err
	}

	b := &Backend{}
	for _, info := range infos {
		name := info.name
		ctx, err := malgo.InitContext([]malgo.Backend{info.id}, malgo.ContextConfig{}, func(message string) {
			logger.Debug("miniaudio", "driver", name, "message", strings.TrimSpace(message))
		})
		if err != nil {
			logger.Debug("miniaudio backend unavailable", "driver", name, "error", err)
			continue
		}
		b.drivers = append(b.drivers, &driver{name: name, ctx: ctx, logger: logger})
	}

	if len(b.drivers) == 0 {
		return nil, errors.New("failed to initialize any miniaudio backend")
	}
	return b, nil
}

func (b *Backend) Drivers() []audio.Driver {
	out := make([]audio.Driver, len(b.drivers))
	for i, d := range b.drivers {
		out[i] = d
	}
	return out
}

// Close 释放所有 miniaudio 上下文
func (b *Backend) Close() error {
	var errs []error
	for _, d := range b.drivers {
		if err := d.ctx.Uninit(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.name, err))
		}
		d.ctx.Free()
	}
	b.drivers = nil
	return errors.Join(errs...)
}
