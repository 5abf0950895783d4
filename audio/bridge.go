package audio

import "log/slog"

var _ Sink = (*bridge)(nil)

// bridge 将驱动的缓冲区回调转发给调用方的 Callback
type bridge struct {
	ctx      int
	callback Callback
	logger   *slog.Logger
}

func newBridge(ctx int, cb Callback, logger *slog.Logger) *bridge {
	return &bridge{ctx: ctx, callback: cb, logger: logger}
}

// Process must not allocate, lock or log.
func (b *bridge) Process(inputs, outputs [][]float32, numFrames int) {
	b.callback(b.ctx, inputs, len(inputs), outputs, len(outputs), numFrames)
}

func (b *bridge) AboutToStart(Device) {}

func (b *bridge) Stopped() {}

func (b *bridge) Error(msg string) {
	b.logger.Error("audio device error", "context", b.ctx, "message", msg)
}
