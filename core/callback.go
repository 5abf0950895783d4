package core

import (
	"fmt"
	"math"

	"github.com/lisuiheng/audiodev/audio"
)

const (
	ModeThru    = "thru"
	ModeTone    = "tone"
	ModeSilence = "silence"
)

// NewCallback 按配置创建回调。返回的回调只能绑定到一个设备，tone 的相位保存在闭包中。
func NewCallback(cfg CallbackConfig, sampleRate float64) (audio.Callback, error) {
	gain := float32(cfg.Gain)
	switch cfg.Mode {
	case ModeThru:
		return thru(gain), nil
	case ModeTone:
		if cfg.ToneHz <= 0 || sampleRate <= 0 || cfg.ToneHz >= sampleRate/2 {
			return nil, fmt.Errorf("%w: %.1fHz at %.0fHz", ErrInvalidTone, cfg.ToneHz, sampleRate)
		}
		return tone(cfg.ToneHz, sampleRate, gain), nil
	case ModeSilence, "":
		return silence, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, cfg.Mode)
	}
}

// thru 把输入 i 复制到输出 i，输入不足时循环使用
func thru(gain float32) audio.Callback {
	return func(ctx int, inputs [][]float32, numInputs int, outputs [][]float32, numOutputs int, numFrames int) {
		for o := 0; o < numOutputs; o++ {
			out := outputs[o]
			if out == nil {
				continue
			}
			var in []float32
			if numInputs > 0 {
				in = inputs[o%numInputs]
			}
			if in == nil {
				clear(out[:numFrames])
				continue
			}
			for i := 0; i < numFrames; i++ {
				out[i] = in[i] * gain
			}
		}
	}
}

func tone(hz, sampleRate float64, gain float32) audio.Callback {
	var phase float64
	step := 2 * math.Pi * hz / sampleRate
	return func(ctx int, inputs [][]float32, numInputs int, outputs [][]float32, numOutputs int, numFrames int) {
		start := phase
		for o := 0; o < numOutputs; o++ {
			out := outputs[o]
			if out == nil {
				continue
			}
			p := start
			for i := 0; i < numFrames; i++ {
				out[i] = float32(math.Sin(p)) * gain
				p += step
			}
		}
		phase = math.Mod(start+step*float64(numFrames), 2*math.Pi)
	}
}

func silence(ctx int, inputs [][]float32, numInputs int, outputs [][]float32, numOutputs int, numFrames int) {
	for o := 0; o < numOutputs; o++ {
		if outputs[o] != nil {
			clear(outputs[o][:numFrames])
		}
	}
}
