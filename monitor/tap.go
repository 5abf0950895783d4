package monitor

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/lisuiheng/audiodev/audio"
)

// 环形缓冲区可容纳的帧数
const ringFrames = 32

// Sink 接收定长的单声道帧。WriteFrame 在排空协程中调用，可以阻塞。
type Sink interface {
	WriteFrame(frame []float32) error
	Close() error
}

// Tap 从音频回调中抽取一个输入通道，交给排空协程分发给各个 Sink
type Tap struct {
	channel int
	frame   []float32
	ring    *Ring
	sinks   []Sink
	logger  *slog.Logger

	dropped atomic.Uint64
	frames  atomic.Uint64

	stop      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
	started   atomic.Bool
	closeErr  error
}

func NewTap(channel, frameSize int, logger *slog.Logger, sinks ...Sink) *Tap {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tap{
		channel: channel,
		frame:   make([]float32, frameSize),
		ring:    NewRing(frameSize * ringFrames),
		sinks:   sinks,
		logger:  logger,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Feed 在音频回调中调用，不加锁也不分配内存
func (t *Tap) Feed(inputs [][]float32, numInputs, numFrames int) {
	if t.channel >= numInputs || t.channel >= len(inputs) {
		return
	}
	ch := inputs[t.channel]
	if ch == nil {
		return
	}
	if n := t.ring.Write(ch[:numFrames]); n < numFrames {
		t.dropped.Add(uint64(numFrames - n))
	}
}

// Wrap 返回先喂给 Tap 再调用 cb 的回调
func (t *Tap) Wrap(cb audio.Callback) audio.Callback {
	return func(ctx int, inputs [][]float32, numInputs int, outputs [][]float32, numOutputs int, numFrames int) {
		t.Feed(inputs, numInputs, numFrames)
		if cb != nil {
			cb(ctx, inputs, numInputs, outputs, numOutputs, numFrames)
		}
	}
}

// Start 启动排空协程
func (t *Tap) Start() {
	t.startOnce.Do(func() {
		t.started.Store(true)
		go t.run()
	})
}

func (t *Tap) run() {
	defer close(t.done)
	for {
		select {
		case <-t.ring.Wake():
			t.drain()
		case <-t.stop:
			t.drain()
			return
		}
	}
}

func (t *Tap) drain() {
	for t.ring.Len() >= len(t.frame) {
		t.ring.Read(t.frame)
		t.frames.Add(1)
		for _, s := range t.sinks {
			if err := s.WriteFrame(t.frame); err != nil {
				t.logger.Warn("Monitor sink write failed", "error", err)
			}
		}
	}
}

// Dropped 因缓冲区满而丢弃的样本数
func (t *Tap) Dropped() uint64 { return t.dropped.Load() }

// Frames 已分发的帧数
func (t *Tap) Frames() uint64 { return t.frames.Load() }

// Close 排空剩余的完整帧并关闭所有 Sink，可重复调用
func (t *Tap) Close() error {
	t.closeOnce.Do(func() {
		close(t.stop)
		if t.started.Load() {
			<-t.done
		}
		var errs []error
		for _, s := range t.sinks {
			if err := s.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		t.closeErr = errors.Join(errs...)
		if d := t.dropped.Load(); d > 0 {
			t.logger.Warn("Monitor dropped samples", "count", d)
		}
	})
	return t.closeErr
}
