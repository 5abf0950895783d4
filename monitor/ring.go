package monitor

import (
	"sync/atomic"
)

// Ring 单生产者单消费者的 float32 环形缓冲区。
// Write 只能由音频回调调用，Read 只能由排空协程调用；两端都不加锁也不分配内存。
type Ring struct {
	buf  []float32
	mask uint64
	head atomic.Uint64 // 写位置
	tail atomic.Uint64 // 读位置
	wake chan struct{}
}

// NewRing 创建容量向上取整到 2 的幂的环形缓冲区
func NewRing(capacity int) *Ring {
	size := 1
	for size < capacity {
		size <<= 1
	}
	return &Ring{
		buf:  make([]float32, size),
		mask: uint64(size - 1),
		wake: make(chan struct{}, 1),
	}
}

func (r *Ring) Cap() int { return len(r.buf) }

// Len 当前可读的样本数
func (r *Ring) Len() int {
	return int(r.head.Load() - r.tail.Load())
}

// Write 写入尽可能多的样本，返回写入数量；空间不足时剩余样本被丢弃
func (r *Ring) Write(p []float32) int {
	head := r.head.Load()
	free := uint64(len(r.buf)) - (head - r.tail.Load())
	n := uint64(len(p))
	if n > free {
		n = free
	}
	for i := uint64(0); i < n; i++ {
		r.buf[(head+i)&r.mask] = p[i]
	}
	r.head.Store(head + n)

	if n > 0 {
		select {
		case r.wake <- struct{}{}:
		default:
		}
	}
	return int(n)
}

// Read 读取最多 len(p) 个样本
func (r *Ring) Read(p []float32) int {
	tail := r.tail.Load()
	n := r.head.Load() - tail
	if n > uint64(len(p)) {
		n = uint64(len(p))
	}
	for i := uint64(0); i < n; i++ {
		p[i] = r.buf[(tail+i)&r.mask]
	}
	r.tail.Store(tail + n)
	return int(n)
}

// Wake 在有新数据写入时收到通知
func (r *Ring) Wake() <-chan struct{} { return r.wake }
