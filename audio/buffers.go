package audio

// Buffers 为驱动预分配每个通道的缓冲区，实时路径上不再分配内存
type Buffers struct {
	physical [][]float32
	index    []int
	view     [][]float32
	frames   int
}

// NewBuffers allocates mask.Len() physical channels of frames samples each.
func NewBuffers(mask ChannelMask, frames int) *Buffers {
	if frames < 0 {
		frames = 0
	}
	b := &Buffers{
		physical: make([][]float32, mask.Len()),
		index:    mask.Indices(),
		frames:   frames,
	}
	for i := range b.physical {
		b.physical[i] = make([]float32, frames)
	}
	b.view = make([][]float32, len(b.index))
	return b
}

// Physical returns every opened channel, active or not.
func (b *Buffers) Physical() [][]float32 { return b.physical }

// Frames is the per-channel capacity.
func (b *Buffers) Frames() int { return b.frames }

// Active returns the active channels resliced to n frames. The returned
// slice is reused on the next call.
func (b *Buffers) Active(n int) [][]float32 {
	if n > b.frames {
		n = b.frames
	}
	for i, ch := range b.index {
		b.view[i] = b.physical[ch][:n]
	}
	return b.view
}

// Map returns the active channels of externally owned buffers, such as
// those handed over by a driver binding. Missing channels map to nil.
func (b *Buffers) Map(physical [][]float32) [][]float32 {
	for i, ch := range b.index {
		if ch < len(physical) {
			b.view[i] = physical[ch]
		} else {
			b.view[i] = nil
		}
	}
	return b.view
}

// Clear zeroes the first n frames of every physical channel.
func (b *Buffers) Clear(n int) {
	if n > b.frames {
		n = b.frames
	}
	for _, ch := range b.physical {
		clear(ch[:n])
	}
}
