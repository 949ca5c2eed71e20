package core

// EnsureLen returns a slice with the requested length, reusing buf capacity if possible.
func EnsureLen(buf []float64, n int) []float64 {
	if n <= 0 {
		return buf[:0]
	}
	if cap(buf) >= n {
		return buf[:n]
	}
	return make([]float64, n)
}

// Zero sets all values in buf to 0.
func Zero(buf []float64) {
	for i := range buf {
		buf[i] = 0
	}
}

// NewBlock allocates a channels x samples block of zeroed sample buffers.
func NewBlock(channels, samples int) [][]float64 {
	if channels <= 0 {
		return nil
	}
	if samples < 0 {
		samples = 0
	}

	backing := make([]float64, channels*samples)
	block := make([][]float64, channels)
	for ch := range block {
		block[ch] = backing[ch*samples : (ch+1)*samples : (ch+1)*samples]
	}
	return block
}

// BlockLen returns the shortest channel length of block, 0 for an empty block.
func BlockLen(block [][]float64) int {
	if len(block) == 0 {
		return 0
	}
	n := len(block[0])
	for _, ch := range block[1:] {
		if len(ch) < n {
			n = len(ch)
		}
	}
	return n
}
