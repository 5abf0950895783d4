package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lisuiheng/audiodev/pkg/interfaces"
	"github.com/lisuiheng/audiodev/utils"
)

const connectTimeout = 5 * time.Second

// StreamSink 把帧编码成 opus 并通过传输层发送；断线后按指数退避重连，
// 未连接期间的帧直接丢弃
type StreamSink struct {
	transport interfaces.TransportProtocol
	encoder   *OpusEncoder
	hello     []byte
	backoff   utils.ReconnectStrategy
	logger    *slog.Logger

	connected atomic.Bool
	skipped   atomic.Uint64
	lost      chan struct{}

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewStreamSink 创建并立即开始连接
func NewStreamSink(transport interfaces.TransportProtocol, encoder *OpusEncoder, frameDuration int,
	backoff utils.ReconnectStrategy, logger *slog.Logger) (*StreamSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if backoff == nil {
		backoff = utils.NewExponentialBackoff()
	}
	hello, err := json.Marshal(interfaces.Hello{
		Type:      "hello",
		Version:   1,
		Transport: transport.ProtocolType(),
		AudioParams: interfaces.AudioParams{
			Format:        "opus",
			SampleRate:    encoder.sampleRate,
			Channels:      encoder.channels,
			FrameDuration: frameDuration,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal hello: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &StreamSink{
		transport: transport,
		encoder:   encoder,
		hello:     hello,
		backoff:   backoff,
		logger:    logger,
		lost:      make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go s.connectLoop()
	return s, nil
}

func (s *StreamSink) connectLoop() {
	defer close(s.done)
	for {
		if err := s.connect(); err == nil {
			s.backoff.Reset()
			s.connected.Store(true)
			s.logger.Info("Monitor stream connected", "transport", s.transport.ProtocolType())
			select {
			case <-s.lost:
				s.logger.Warn("Monitor stream lost")
				continue
			case <-s.ctx.Done():
				return
			}
		} else {
			delay := s.backoff.NextDelay()
			s.logger.Warn("Monitor stream connect failed", "error", err, "retry_in", delay)
			select {
			case <-time.After(delay):
			case <-s.ctx.Done():
				return
			}
		}
	}
}

func (s *StreamSink) connect() error {
	ctx, cancel := context.WithTimeout(s.ctx, connectTimeout)
	defer cancel()
	if err := s.transport.Connect(ctx); err != nil {
		return err
	}
	return s.transport.Send(s.hello, interfaces.MsgText)
}

// Connected 报告当前是否已连接
func (s *StreamSink) Connected() bool { return s.connected.Load() }

// Skipped 未连接期间丢弃的帧数
func (s *StreamSink) Skipped() uint64 { return s.skipped.Load() }

func (s *StreamSink) WriteFrame(frame []float32) error {
	if !s.connected.Load() {
		s.skipped.Add(1)
		return nil
	}
	packet, err := s.encoder.Encode(frame)
	if err != nil {
		return err
	}
	if err := s.transport.Send(packet, interfaces.MsgBinary); err != nil {
		s.connected.Store(false)
		select {
		case s.lost <- struct{}{}:
		default:
		}
		return err
	}
	return nil
}

func (s *StreamSink) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
		s.connected.Store(false)
		err = s.transport.Close()
		s.encoder.Close()
		s.logger.Info("Monitor stream closed", "skipped_frames", s.Skipped())
	})
	return err
}
