package monitor

import (
	"errors"
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavBitDepth = 16

// WAVSink 把帧写成 16 位单声道 PCM WAV 文件
type WAVSink struct {
	file    *os.File
	encoder *wav.Encoder
	buf     *goaudio.IntBuffer
	frames  int
}

func NewWAVSink(path string, sampleRate int) (*WAVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create wav file: %w", err)
	}
	return &WAVSink{
		file:    f,
		encoder: wav.NewEncoder(f, sampleRate, wavBitDepth, 1, 1),
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
			SourceBitDepth: wavBitDepth,
		},
	}, nil
}

func (s *WAVSink) WriteFrame(frame []float32) error {
	if cap(s.buf.Data) < len(frame) {
		s.buf.Data = make([]int, len(frame))
	}
	s.buf.Data = s.buf.Data[:len(frame)]
	for i, v := range frame {
		s.buf.Data[i] = int(toInt16(v))
	}
	if err := s.encoder.Write(s.buf); err != nil {
		return fmt.Errorf("write wav frame: %w", err)
	}
	s.frames++
	return nil
}

// Frames 已写入的帧数
func (s *WAVSink) Frames() int { return s.frames }

// Close 写入 WAV 头部长度并关闭文件
func (s *WAVSink) Close() error {
	return errors.Join(s.encoder.Close(), s.file.Close())
}

func toInt16(v float32) int16 {
	switch {
	case v >= 1:
		return 32767
	case v <= -1:
		return -32768
	default:
		return int16(v * 32767)
	}
}
