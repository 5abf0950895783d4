package core

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lisuiheng/audiodev/audio"
	"github.com/lisuiheng/audiodev/drivers/loopback"
	"github.com/lisuiheng/audiodev/monitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loopbackConfig() Config {
	cfg := DefaultConfig()
	cfg.Backends = []string{BackendLoopback}
	cfg.Loopback = loopback.Config{Drivers: []loopback.DriverConfig{{Name: "Desk", Devices: []string{"Mic"}}}}
	cfg.Device = DeviceConfig{
		InputChannels:  1,
		OutputChannels: 1,
		SampleRate:     16000,
		BufferSize:     160,
		Context:        5,
	}
	cfg.Callback = CallbackConfig{Mode: ModeTone, ToneHz: 1000, Gain: 0.5}
	return cfg
}

func TestStartSession_FirstDriverAndMonitor(t *testing.T) {
	cfg := loopbackConfig()
	cfg.Monitor = monitor.Config{WAVPath: filepath.Join(t.TempDir(), "tap.wav"), FrameDuration: 10}

	e, err := NewEngineFromConfig(cfg, io.Discard, quietLogger())
	require.NoError(t, err)
	defer e.StopAll()

	s, err := StartSession(e, cfg, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, "Desk", s.Request().Driver)
	assert.Equal(t, []int{5}, e.Active())
	require.NotNil(t, s.Monitor())

	// 输出回环到输入，tone 写入 WAV
	require.Eventually(t, func() bool { return s.Monitor().Frames() >= 3 }, 2*time.Second, time.Millisecond)
	require.NoError(t, s.Close())
	assert.Empty(t, e.Active())

	info, err := os.Stat(cfg.Monitor.WAVPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(44))

	// 重复关闭
	assert.NoError(t, s.Close())
}

func TestStartSession_ActivateFailure(t *testing.T) {
	cfg := loopbackConfig()
	cfg.Device.Driver = "Nope"

	e, err := NewEngineFromConfig(cfg, io.Discard, quietLogger())
	require.NoError(t, err)
	defer e.StopAll()

	_, err = StartSession(e, cfg, quietLogger())
	assert.ErrorIs(t, err, ErrActivateFailed)
	assert.Empty(t, e.Active())
}

func TestStartSession_BadCallback(t *testing.T) {
	cfg := loopbackConfig()
	cfg.Callback.Mode = "noise"
	e := NewEngine(nil, io.Discard, quietLogger())

	_, err := StartSession(e, cfg, quietLogger())
	assert.ErrorIs(t, err, audio.ErrManagerConstruction, "driver lookup runs first")

	cfg.Device.Driver = "Desk"
	_, err = StartSession(e, cfg, quietLogger())
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestStartSession_BadMonitor(t *testing.T) {
	cfg := loopbackConfig()
	cfg.Monitor = monitor.Config{Channel: 3, WAVPath: filepath.Join(t.TempDir(), "x.wav")}

	e, err := NewEngineFromConfig(cfg, io.Discard, quietLogger())
	require.NoError(t, err)
	defer e.StopAll()

	_, err = StartSession(e, cfg, quietLogger())
	assert.ErrorIs(t, err, monitor.ErrInvalidChannel)
	assert.Empty(t, e.Active())
}
