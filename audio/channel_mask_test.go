package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannelMask(t *testing.T) {
	tests := []struct {
		name    string
		count   int
		indices []int
		length  int
	}{
		{"zero", 0, []int{}, 0},
		{"negative", -3, []int{}, 0},
		{"stereo", 2, []int{0, 1}, 2},
		{"word boundary", 65, nil, 65},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewChannelMask(tt.count)
			assert.Equal(t, tt.length, m.Len())
			if tt.indices != nil {
				assert.Equal(t, tt.indices, m.Indices())
			}
			if tt.count > 0 {
				assert.Equal(t, tt.count, m.Count())
				assert.True(t, m.Has(tt.count-1))
			}
			assert.False(t, m.Has(tt.length))
			assert.Equal(t, tt.length == 0, m.IsEmpty())
		})
	}
}

func TestChannelMask_Sparse(t *testing.T) {
	var m ChannelMask
	m.SetRange(2, 3, true)
	m.Set(3, false)

	assert.Equal(t, []int{2, 4}, m.Indices())
	assert.Equal(t, 2, m.Count())
	assert.Equal(t, 5, m.Len())
}

func TestBuffers(t *testing.T) {
	var m ChannelMask
	m.Set(0, true)
	m.Set(2, true)
	b := NewBuffers(m, 8)

	assert.Len(t, b.Physical(), 3)
	assert.Equal(t, 8, b.Frames())

	active := b.Active(4)
	assert.Len(t, active, 2)
	assert.Len(t, active[0], 4)

	active[1][0] = 1
	assert.Equal(t, float32(1), b.Physical()[2][0])
	b.Clear(8)
	assert.Equal(t, float32(0), b.Physical()[2][0])

	// capacity caps the view
	assert.Len(t, b.Active(100)[0], 8)

	ext := [][]float32{{10}, {11}, {12}}
	mapped := b.Map(ext)
	assert.Equal(t, float32(10), mapped[0][0])
	assert.Equal(t, float32(12), mapped[1][0])
	assert.Nil(t, b.Map(ext[:1])[1])
}

func TestBuffers_NoAllocations(t *testing.T) {
	b := NewBuffers(NewChannelMask(4), 256)
	allocs := testing.AllocsPerRun(100, func() {
		_ = b.Active(128)
		b.Clear(128)
	})
	assert.Zero(t, allocs)
}

func TestChannelMask_SetRangeAcrossWords(t *testing.T) {
	var m ChannelMask
	m.SetRange(60, 70, true)
	assert.Equal(t, 70, m.Count())
	assert.Equal(t, 130, m.Len())
	assert.False(t, m.Has(59))
	assert.True(t, m.Has(60))
	assert.True(t, m.Has(64))
	assert.True(t, m.Has(129))
	assert.Len(t, m.words, 3)

	m.SetRange(62, 4, false)
	assert.Equal(t, 66, m.Count())
	assert.True(t, m.Has(61))
	assert.False(t, m.Has(62))
	assert.False(t, m.Has(65))
	assert.True(t, m.Has(66))

	// 清除超出范围的部分不会扩容
	m.SetRange(100, 1000, false)
	assert.Len(t, m.words, 3)
	assert.Equal(t, 100, m.Len())
}

func TestChannelMask_FullWords(t *testing.T) {
	m := NewChannelMask(MaxChannels)
	assert.Equal(t, MaxChannels, m.Count())
	assert.Equal(t, MaxChannels, m.Len())
	assert.Len(t, m.words, MaxChannels/64)
}
