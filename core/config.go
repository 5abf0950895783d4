package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lisuiheng/audiodev/audio"
	"github.com/lisuiheng/audiodev/drivers/loopback"
	"github.com/lisuiheng/audiodev/drivers/miniaudio"
	"github.com/lisuiheng/audiodev/drivers/portaudio"
	"github.com/lisuiheng/audiodev/logger"
	"github.com/lisuiheng/audiodev/monitor"
	"github.com/spf13/viper"
)

const (
	BackendMiniaudio = "miniaudio"
	BackendPortAudio = "portaudio"
	BackendLoopback  = "loopback"
)

// Config 对应 YAML 配置文件的结构
type Config struct {
	Logging   logger.Config    `mapstructure:"logging"`
	Backends  []string         `mapstructure:"backends"` // 按顺序尝试
	Loopback  loopback.Config  `mapstructure:"loopback"`
	Miniaudio miniaudio.Config `mapstructure:"miniaudio"`
	Device    DeviceConfig     `mapstructure:"device"`
	Callback  CallbackConfig   `mapstructure:"callback"`
	Monitor   monitor.Config   `mapstructure:"monitor"`
}

// DeviceConfig 是一次激活请求
type DeviceConfig struct {
	Driver         string  `mapstructure:"driver"` // 为空时使用第一个驱动
	Output         string  `mapstructure:"output"`
	Input          string  `mapstructure:"input"`
	InputChannels  int     `mapstructure:"input_channels"`
	OutputChannels int     `mapstructure:"output_channels"`
	SampleRate     float64 `mapstructure:"sample_rate"`
	BufferSize     int     `mapstructure:"buffer_size"`
	Context        int     `mapstructure:"context"`
}

// CallbackConfig 选择命令行使用的回调
type CallbackConfig struct {
	Mode   string  `mapstructure:"mode"` // thru/tone/silence
	ToneHz float64 `mapstructure:"tone_hz"`
	Gain   float64 `mapstructure:"gain"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.outputs", []string{"stdout"})
	v.SetDefault("logging.format", "text")
	v.SetDefault("loopback.max_channels", loopback.DefaultMaxChannels)
	v.SetDefault("device.input_channels", 2)
	v.SetDefault("device.output_channels", 2)
	v.SetDefault("device.sample_rate", 48000)
	v.SetDefault("device.buffer_size", 512)
	v.SetDefault("callback.mode", ModeTone)
	v.SetDefault("callback.tone_hz", 440)
	v.SetDefault("callback.gain", 0.2)
	v.SetDefault("monitor.frame_duration", monitor.DefaultFrameDuration)
	v.SetDefault("monitor.opus.bitrate", 32000)
}

// DefaultConfig 返回不读取任何文件时的配置
func DefaultConfig() Config {
	cfg, _ := decode(newViper())
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("AUDIODEV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// LoadConfig 加载配置文件。configPath 为空时按默认路径搜索，找不到文件则使用默认值。
func LoadConfig(configPath string) (Config, error) {
	v := newViper()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/audiodev")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return decode(v)
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if len(cfg.Backends) == 0 {
		cfg.Backends = []string{BackendMiniaudio, BackendLoopback}
	}
	if len(cfg.Loopback.Drivers) == 0 {
		cfg.Loopback.Drivers = loopback.DefaultConfig().Drivers
	}
	return cfg, nil
}

// Factories 按 Backends 的顺序创建后端工厂
func (c Config) Factories() ([]audio.BackendFactory, error) {
	var factories []audio.BackendFactory
	for _, name := range c.Backends {
		switch strings.ToLower(name) {
		case BackendMiniaudio:
			factories = append(factories, miniaudio.Factory(c.Miniaudio))
		case BackendPortAudio:
			factories = append(factories, portaudio.Factory())
		case BackendLoopback:
			factories = append(factories, loopback.New(c.Loopback).Open)
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
		}
	}
	return factories, nil
}

// Request 把设备配置转换成激活请求
func (d DeviceConfig) Request() audio.Request {
	return audio.Request{
		Driver:         d.Driver,
		OutputDevice:   d.Output,
		InputDevice:    d.Input,
		InputChannels:  d.InputChannels,
		OutputChannels: d.OutputChannels,
		SampleRate:     d.SampleRate,
		BufferSize:     d.BufferSize,
		Context:        d.Context,
	}
}
