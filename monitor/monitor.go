// Package monitor 在不影响实时回调的前提下抽取一个输入通道，
// 录制成 WAV 文件或以 opus 帧推送到 websocket 服务。
package monitor

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/lisuiheng/audiodev/protocols/websocket"
	"github.com/lisuiheng/audiodev/utils"
)

var (
	ErrNoSinks         = errors.New("monitor has no sinks configured")
	ErrInvalidChannel  = errors.New("invalid monitor channel")
	ErrInvalidDuration = errors.New("invalid frame duration")
)

const DefaultFrameDuration = 20

type Config struct {
	Channel       int              `mapstructure:"channel"`
	FrameDuration int              `mapstructure:"frame_duration"` // 毫秒
	WAVPath       string           `mapstructure:"wav_path"`
	WebSocket     websocket.Config `mapstructure:"websocket"`
	Opus          OpusConfig       `mapstructure:"opus"`
}

type OpusConfig struct {
	Bitrate int `mapstructure:"bitrate"`
}

// Enabled 至少配置了一个输出时为 true
func (c Config) Enabled() bool {
	return c.WAVPath != "" || c.WebSocket.URL != ""
}

// New 按配置创建 Tap 及其 Sink；inputChannels 为设备实际打开的输入通道数
func New(cfg Config, sampleRate, inputChannels int, logger *slog.Logger) (*Tap, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Enabled() {
		return nil, ErrNoSinks
	}
	if cfg.Channel < 0 || cfg.Channel >= inputChannels {
		return nil, fmt.Errorf("%w: %d of %d inputs", ErrInvalidChannel, cfg.Channel, inputChannels)
	}
	if cfg.FrameDuration == 0 {
		cfg.FrameDuration = DefaultFrameDuration
	}
	if cfg.FrameDuration < 0 || (cfg.WebSocket.URL != "" && !validFrameDuration(cfg.FrameDuration)) {
		return nil, fmt.Errorf("%w: %dms", ErrInvalidDuration, cfg.FrameDuration)
	}
	frameSize := sampleRate * cfg.FrameDuration / 1000
	if frameSize <= 0 {
		return nil, fmt.Errorf("%w: %dms at %dHz", ErrInvalidDuration, cfg.FrameDuration, sampleRate)
	}

	var sinks []Sink
	closeAll := func() {
		for _, s := range sinks {
			_ = s.Close()
		}
	}

	if cfg.WAVPath != "" {
		w, err := NewWAVSink(cfg.WAVPath, sampleRate)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, w)
		logger.Info("Monitor recording", "path", cfg.WAVPath, "channel", cfg.Channel)
	}

	if cfg.WebSocket.URL != "" {
		enc, err := NewOpusEncoder(sampleRate, 1, cfg.Opus.Bitrate)
		if err != nil {
			closeAll()
			return nil, err
		}
		transport := websocket.NewWebSocketProtocol(cfg.WebSocket)
		stream, err := NewStreamSink(transport, enc, cfg.FrameDuration, utils.NewExponentialBackoff(), logger)
		if err != nil {
			closeAll()
			return nil, err
		}
		sinks = append(sinks, stream)
		logger.Info("Monitor streaming", "url", cfg.WebSocket.URL, "channel", cfg.Channel)
	}

	return NewTap(cfg.Channel, frameSize, logger, sinks...), nil
}
