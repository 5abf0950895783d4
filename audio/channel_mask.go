package audio

import "math/bits"

// ChannelMask 是激活的物理通道集合
type ChannelMask struct {
	words []uint64
}

// NewChannelMask 返回覆盖 [0, count) 的通道掩码
func NewChannelMask(count int) ChannelMask {
	var m ChannelMask
	m.SetRange(0, count, true)
	return m
}

// SetRange 设置或清除 [start, start+count)，按整字填充
func (m *ChannelMask) SetRange(start, count int, on bool) {
	if start < 0 || count <= 0 || start+count < start {
		return
	}
	end := start + count
	if on {
		if need := (end + 63) / 64; len(m.words) < need {
			m.words = append(m.words, make([]uint64, need-len(m.words))...)
		}
	} else {
		end = min(end, len(m.words)*64)
	}
	for i := start; i < end; {
		w, b := i/64, i%64
		n := min(64-b, end-i)
		word := ^uint64(0)
		if n < 64 {
			word = (uint64(1)<<uint(n) - 1) << uint(b)
		}
		if on {
			m.words[w] |= word
		} else {
			m.words[w] &^= word
		}
		i += n
	}
}

func (m *ChannelMask) Set(ch int, on bool) {
	if ch < 0 {
		return
	}
	w := ch / 64
	if on {
		for len(m.words) <= w {
			m.words = append(m.words, 0)
		}
		m.words[w] |= 1 << uint(ch%64)
		return
	}
	if w < len(m.words) {
		m.words[w] &^= 1 << uint(ch%64)
	}
}

func (m ChannelMask) Has(ch int) bool {
	if ch < 0 || ch/64 >= len(m.words) {
		return false
	}
	return m.words[ch/64]&(1<<uint(ch%64)) != 0
}

// Count returns the number of active channels.
func (m ChannelMask) Count() int {
	n := 0
	for _, w := range m.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// Len returns highest active index + 1, i.e. the number of physical
// channels a driver must open to honour the mask.
func (m ChannelMask) Len() int {
	for i := len(m.words) - 1; i >= 0; i-- {
		if m.words[i] != 0 {
			return i*64 + 64 - bits.LeadingZeros64(m.words[i])
		}
	}
	return 0
}

func (m ChannelMask) IsEmpty() bool {
	return m.Len() == 0
}

// Indices returns the active channel indices in ascending order.
func (m ChannelMask) Indices() []int {
	out := make([]int, 0, m.Count())
	for i := 0; i < m.Len(); i++ {
		if m.Has(i) {
			out = append(out, i)
		}
	}
	return out
}
