// Package xxhash32 implements the 32-bit xxHash algorithm (XXH32).
//
// No third-party Go module in this project's dependency graph implements
// the 32-bit variant (only the unrelated 64-bit XXH64, via
// github.com/cespare/xxhash/v2, is available transitively), so this is a
// direct, from-scratch port of the public, fully specified algorithm —
// the same category of component as the standard library's own hash/crc32
// or hash/fnv.
package xxhash32

const (
	prime1 uint32 = 2654435761
	prime2 uint32 = 2246822519
	prime3 uint32 = 3266489917
	prime4 uint32 = 668265263
	prime5 uint32 = 374761393
)

// Sum32 computes the XXH32 digest of b using the given seed.
func Sum32(b []byte, seed uint32) uint32 {
	n := len(b)
	var h uint32

	if n >= 16 {
		v1 := seed + prime1 + prime2
		v2 := seed + prime2
		v3 := seed
		v4 := seed - prime1

		for len(b) >= 16 {
			v1 = round(v1, u32(b[0:4]))
			v2 = round(v2, u32(b[4:8]))
			v3 = round(v3, u32(b[8:12]))
			v4 = round(v4, u32(b[12:16]))
			b = b[16:]
		}

		h = rotl32(v1, 1) + rotl32(v2, 7) + rotl32(v3, 12) + rotl32(v4, 18)
	} else {
		h = seed + prime5
	}

	h += uint32(n)

	for len(b) >= 4 {
		h += u32(b[0:4]) * prime3
		h = rotl32(h, 17) * prime4
		b = b[4:]
	}

	for len(b) > 0 {
		h += uint32(b[0]) * prime5
		h = rotl32(h, 11) * prime1
		b = b[1:]
	}

	h ^= h >> 15
	h *= prime2
	h ^= h >> 13
	h *= prime3
	h ^= h >> 16

	return h
}

func round(acc, input uint32) uint32 {
	acc += input * prime2
	acc = rotl32(acc, 13)
	acc *= prime1
	return acc
}

func rotl32(x uint32, r uint) uint32 {
	return (x << r) | (x >> (32 - r))
}

func u32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
