package core

import "testing"

func TestEnsureLenReuse(t *testing.T) {
	buf := make([]float64, 4, 8)

	out := EnsureLen(buf, 6)
	if len(out) != 6 {
		t.Fatalf("len = %d, want 6", len(out))
	}

	if cap(out) != cap(buf) {
		t.Fatalf("cap = %d, want %d", cap(out), cap(buf))
	}

	if got := EnsureLen(buf, 16); len(got) != 16 {
		t.Fatalf("grown len = %d, want 16", len(got))
	}
}

func TestNewBlockChannelsAreIndependent(t *testing.T) {
	block := NewBlock(2, 4)
	if len(block) != 2 || len(block[0]) != 4 || len(block[1]) != 4 {
		t.Fatalf("unexpected shape: %d x %d", len(block), len(block[0]))
	}

	block[0] = append(block[0], 9)
	if block[1][0] != 0 {
		t.Fatalf("append on channel 0 leaked into channel 1: %v", block[1])
	}

	if NewBlock(0, 4) != nil {
		t.Fatal("expected nil block for zero channels")
	}
}

func TestBlockLen(t *testing.T) {
	block := [][]float64{{1, 2, 3}, {4, 5}}
	if got := BlockLen(block); got != 2 {
		t.Fatalf("BlockLen = %d, want 2", got)
	}

	if BlockLen(nil) != 0 {
		t.Fatal("BlockLen(nil) != 0")
	}
}

func TestZero(t *testing.T) {
	buf := []float64{1, 2, 3}
	Zero(buf)

	for i, v := range buf {
		if v != 0 {
			t.Fatalf("buf[%d] = %v, want 0", i, v)
		}
	}
}
