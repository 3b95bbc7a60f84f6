package xxhash32

import "testing"

// TestSum32EmptyVector checks the well-known canonical XXH32 test vector
// for the empty input with seed 0.
func TestSum32EmptyVector(t *testing.T) {
	got := Sum32(nil, 0)
	want := uint32(0x02CC5D05)
	if got != want {
		t.Fatalf("Sum32(nil, 0) = %#x, want %#x", got, want)
	}
}

func TestSum32Deterministic(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	a := Sum32(data, 0)
	b := Sum32(data, 0)
	if a != b {
		t.Fatalf("Sum32 not deterministic: %#x != %#x", a, b)
	}
}

func TestSum32SeedChangesDigest(t *testing.T) {
	data := []byte("lekko.root.yaml")
	a := Sum32(data, 0)
	b := Sum32(data, 1)
	if a == b {
		t.Fatalf("Sum32 produced same digest for different seeds: %#x", a)
	}
}

func TestSum32VariesWithLength(t *testing.T) {
	seen := map[uint32]bool{}
	for n := 0; n < 40; n++ {
		buf := make([]byte, n)
		for i := range buf {
			buf[i] = byte(i)
		}
		h := Sum32(buf, 0)
		if seen[h] {
			t.Fatalf("collision at length %d: %#x", n, h)
		}
		seen[h] = true
	}
}
