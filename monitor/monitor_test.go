package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/lisuiheng/audiodev/pkg/interfaces"
	"github.com/lisuiheng/audiodev/protocols/websocket"
	"github.com/lisuiheng/audiodev/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRing(t *testing.T) {
	r := NewRing(5)
	assert.Equal(t, 8, r.Cap())

	assert.Equal(t, 6, r.Write([]float32{1, 2, 3, 4, 5, 6}))
	assert.Equal(t, 2, r.Write([]float32{7, 8, 9}), "full ring drops the rest")
	assert.Equal(t, 8, r.Len())

	out := make([]float32, 5)
	assert.Equal(t, 5, r.Read(out))
	assert.Equal(t, []float32{1, 2, 3, 4, 5}, out)

	// 跨越末尾
	assert.Equal(t, 4, r.Write([]float32{10, 11, 12, 13}))
	all := make([]float32, 16)
	n := r.Read(all)
	assert.Equal(t, []float32{6, 7, 8, 10, 11, 12, 13}, all[:n])
	assert.Zero(t, r.Len())
}

func TestRing_WriteDoesNotAllocate(t *testing.T) {
	r := NewRing(1024)
	in := make([]float32, 64)
	out := make([]float32, 64)
	allocs := testing.AllocsPerRun(100, func() {
		r.Write(in)
		r.Read(out)
	})
	assert.Zero(t, allocs)
}

type recordSink struct {
	mu     sync.Mutex
	frames [][]float32
	err    error
	closed bool
}

func (s *recordSink) WriteFrame(frame []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, append([]float32(nil), frame...))
	return s.err
}

func (s *recordSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func TestTap_WrapFeedsSelectedChannel(t *testing.T) {
	sink := &recordSink{}
	tap := NewTap(1, 4, nil, sink)
	tap.Start()

	var calls int
	cb := tap.Wrap(func(ctx int, inputs [][]float32, numInputs int, outputs [][]float32, numOutputs int, numFrames int) {
		calls++
		assert.Equal(t, 9, ctx)
	})

	inputs := [][]float32{
		{0, 0, 0, 0, 0, 0},
		{1, 2, 3, 4, 5, 6},
	}
	cb(9, inputs, 2, nil, 0, 6)
	cb(9, inputs, 2, nil, 0, 2)
	assert.Equal(t, 2, calls)

	require.Eventually(t, func() bool { return sink.count() == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, tap.Close())
	assert.True(t, sink.closed)
	assert.Equal(t, []float32{1, 2, 3, 4}, sink.frames[0])
	assert.Equal(t, []float32{5, 6, 1, 2}, sink.frames[1])
	assert.Equal(t, uint64(2), tap.Frames())
	assert.NoError(t, tap.Close())
}

func TestTap_IgnoresMissingChannel(t *testing.T) {
	tap := NewTap(3, 2, nil)
	tap.Feed([][]float32{{1, 2}}, 1, 2)
	tap.Feed([][]float32{nil, nil, nil, nil}, 4, 2)
	assert.Zero(t, tap.ring.Len())
	assert.NoError(t, tap.Close())
}

func TestTap_CountsDropped(t *testing.T) {
	tap := NewTap(0, 1, nil)
	big := make([]float32, tap.ring.Cap()+10)
	tap.Feed([][]float32{big}, 1, len(big))
	assert.Equal(t, uint64(10), tap.Dropped())
	assert.NoError(t, tap.Close())
}

func TestTap_SinkErrorDoesNotStopDrain(t *testing.T) {
	failing := &recordSink{err: errors.New("disk full")}
	ok := &recordSink{}
	tap := NewTap(0, 2, nil, failing, ok)
	tap.Start()
	tap.Feed([][]float32{{1, 2, 3, 4}}, 1, 4)
	require.NoError(t, tap.Close())
	assert.Equal(t, 2, failing.count())
	assert.Equal(t, 2, ok.count())
}

func TestWAVSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tap.wav")
	s, err := NewWAVSink(path, 16000)
	require.NoError(t, err)

	require.NoError(t, s.WriteFrame([]float32{0, 0.5, -0.5, 1.5}))
	require.NoError(t, s.WriteFrame([]float32{-2, 0}))
	assert.Equal(t, 2, s.Frames())
	require.NoError(t, s.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	d := wav.NewDecoder(f)
	require.True(t, d.IsValidFile())
	buf, err := d.FullPCMBuffer()
	require.NoError(t, err)
	assert.Equal(t, uint32(16000), d.SampleRate)
	assert.Equal(t, uint16(1), d.NumChans)
	assert.Equal(t, []int{0, 16383, -16383, 32767, -32768, 0}, buf.Data)
}

func TestWAVSink_BadPath(t *testing.T) {
	_, err := NewWAVSink(filepath.Join(t.TempDir(), "missing", "x.wav"), 16000)
	assert.Error(t, err)
}

func TestOpusEncoder(t *testing.T) {
	_, err := NewOpusEncoder(44100, 1, 0)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	enc, err := NewOpusEncoder(16000, 1, 24000)
	require.NoError(t, err)
	defer enc.Close()

	frame := make([]float32, 320) // 20ms
	for i := range frame {
		frame[i] = float32(i%40) / 80
	}
	packet, err := enc.Encode(frame)
	require.NoError(t, err)
	assert.NotEmpty(t, packet)

	_, err = enc.Encode(frame[:7])
	assert.Error(t, err)
}

// fakeTransport 前 failures 次连接失败
type fakeTransport struct {
	mu        sync.Mutex
	failures  int
	connects  int
	connected bool
	sent      []interfaces.Message
	sendErr   error
	closed    bool
}

func (f *fakeTransport) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connects <= f.failures {
		return interfaces.ErrConnectionFailed
	}
	f.connected = true
	return nil
}

func (f *fakeTransport) Send(data []byte, msgType interfaces.MessageType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return interfaces.ErrNotConnected
	}
	if f.sendErr != nil && msgType == interfaces.MsgBinary {
		err := f.sendErr
		f.sendErr = nil
		f.connected = false
		return err
	}
	f.sent = append(f.sent, interfaces.Message{Payload: append([]byte(nil), data...), Type: msgType})
	return nil
}

func (f *fakeTransport) Receive() <-chan interfaces.Message { return nil }
func (f *fakeTransport) ProtocolType() string               { return "fake" }

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) messages() []interfaces.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]interfaces.Message(nil), f.sent...)
}

func TestStreamSink_ReconnectsAndSendsHello(t *testing.T) {
	enc, err := NewOpusEncoder(16000, 1, 0)
	require.NoError(t, err)
	tr := &fakeTransport{failures: 2}

	s, err := NewStreamSink(tr, enc, 20, utils.NewBackoff(time.Millisecond, 4*time.Millisecond), nil)
	require.NoError(t, err)

	frame := make([]float32, 320)
	// 未连接时丢弃
	if !s.Connected() {
		require.NoError(t, s.WriteFrame(frame))
	}

	require.Eventually(t, s.Connected, time.Second, time.Millisecond)
	require.NoError(t, s.WriteFrame(frame))

	msgs := tr.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, interfaces.MsgText, msgs[0].Type)
	var hello interfaces.Hello
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &hello))
	assert.Equal(t, "hello", hello.Type)
	assert.Equal(t, "fake", hello.Transport)
	assert.Equal(t, interfaces.AudioParams{Format: "opus", SampleRate: 16000, Channels: 1, FrameDuration: 20}, hello.AudioParams)
	assert.Equal(t, interfaces.MsgBinary, msgs[1].Type)
	assert.Equal(t, 3, tr.connects)

	require.NoError(t, s.Close())
	assert.True(t, tr.closed)
	assert.NoError(t, s.Close())
}

func TestStreamSink_SendFailureTriggersReconnect(t *testing.T) {
	enc, err := NewOpusEncoder(16000, 1, 0)
	require.NoError(t, err)
	tr := &fakeTransport{sendErr: errors.New("broken pipe")}

	s, err := NewStreamSink(tr, enc, 20, utils.NewBackoff(time.Millisecond, time.Millisecond), nil)
	require.NoError(t, err)
	defer s.Close()

	require.Eventually(t, s.Connected, time.Second, time.Millisecond)
	frame := make([]float32, 320)
	assert.Error(t, s.WriteFrame(frame))

	require.Eventually(t, func() bool {
		tr.mu.Lock()
		defer tr.mu.Unlock()
		return tr.connects == 2
	}, time.Second, time.Millisecond)
	require.Eventually(t, s.Connected, time.Second, time.Millisecond)
	assert.NoError(t, s.WriteFrame(frame))
}

func TestStreamSink_SkipsWhileDisconnected(t *testing.T) {
	enc, err := NewOpusEncoder(16000, 1, 0)
	require.NoError(t, err)
	tr := &fakeTransport{failures: 1 << 30}

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	s, err := NewStreamSink(tr, enc, 20, utils.NewBackoff(time.Hour, time.Hour), logger)
	require.NoError(t, err)

	frame := make([]float32, 320)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.WriteFrame(frame))
	}
	assert.False(t, s.Connected())
	assert.Equal(t, uint64(3), s.Skipped())
	assert.Empty(t, tr.messages())

	require.NoError(t, s.Close())
	assert.Contains(t, logs.String(), "skipped_frames=3")
}

func TestNew_Validation(t *testing.T) {
	wavPath := filepath.Join(t.TempDir(), "a.wav")
	tests := []struct {
		name   string
		cfg    Config
		inputs int
		want   error
	}{
		{"no sinks", Config{}, 2, ErrNoSinks},
		{"channel out of range", Config{Channel: 2, WAVPath: wavPath}, 2, ErrInvalidChannel},
		{"negative channel", Config{Channel: -1, WAVPath: wavPath}, 2, ErrInvalidChannel},
		{"odd stream duration", Config{FrameDuration: 25, WebSocket: websocket.Config{URL: "ws://127.0.0.1:1"}}, 1, ErrInvalidDuration},
		{"negative duration", Config{FrameDuration: -5, WAVPath: wavPath}, 1, ErrInvalidDuration},
		{"stream needs opus rate", Config{WebSocket: websocket.Config{URL: "ws://127.0.0.1:1"}}, 1, ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, 44100, tt.inputs, nil)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNew_WAVOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.wav")
	tap, err := New(Config{Channel: 1, WAVPath: path}, 8000, 2, nil)
	require.NoError(t, err)
	tap.Start()

	// 默认 20ms 即 160 帧
	in := make([]float32, 400)
	tap.Feed([][]float32{nil, in}, 2, len(in))
	require.NoError(t, tap.Close())
	assert.Equal(t, uint64(2), tap.Frames())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(44+2*160*2), info.Size())
}
