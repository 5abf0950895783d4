package monitor

import (
	"errors"
	"fmt"

	"github.com/hraban/opus"
)

// OPUS最大包大小
const maxPacketSize = 4000

var ErrUnsupportedFormat = errors.New("unsupported opus format")

var opusRates = map[int]bool{8000: true, 12000: true, 16000: true, 24000: true, 48000: true}

// OpusEncoder OPUS音频编码器，输出缓冲区复用
type OpusEncoder struct {
	encoder    *opus.Encoder
	sampleRate int
	channels   int
	packet     []byte
}

// NewOpusEncoder 创建新的OPUS编码器
func NewOpusEncoder(sampleRate, channels, bitrate int) (*OpusEncoder, error) {
	if !opusRates[sampleRate] {
		return nil, fmt.Errorf("%w: sample rate %d", ErrUnsupportedFormat, sampleRate)
	}
	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}
	if bitrate > 0 {
		if err := enc.SetBitrate(bitrate); err != nil {
			return nil, fmt.Errorf("failed to set bitrate: %w", err)
		}
	}
	return &OpusEncoder{
		encoder:    enc,
		sampleRate: sampleRate,
		channels:   channels,
		packet:     make([]byte, maxPacketSize),
	}, nil
}

// Encode 编码一帧，返回的切片在下次调用前有效
func (e *OpusEncoder) Encode(pcm []float32) ([]byte, error) {
	if e.encoder == nil {
		return nil, errors.New("encoder not initialized")
	}
	n, err := e.encoder.EncodeFloat32(pcm, e.packet)
	if err != nil {
		return nil, fmt.Errorf("opus encode failed: %w", err)
	}
	return e.packet[:n], nil
}

func (e *OpusEncoder) Close() {
	e.encoder = nil
}

// validFrameDuration 报告 ms 是否为 opus 支持的帧长
func validFrameDuration(ms int) bool {
	switch ms {
	case 10, 20, 40, 60:
		return true
	}
	return false
}
