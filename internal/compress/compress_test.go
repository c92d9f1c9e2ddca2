package compress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compressible(n int) []byte {
	return bytes.Repeat([]byte("archived machine code "), n)
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		typ  Type
		data []byte
	}{
		{"none", None, compressible(64)},
		{"lz4", LZ4, compressible(64)},
		{"zstd", ZSTD, compressible(64)},
		{"empty zstd", ZSTD, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Encode(tt.data, tt.typ)
			require.NoError(t, err)

			out, err := Decode(env)
			require.NoError(t, err)
			assert.Equal(t, len(tt.data), len(out))
			assert.Equal(t, tt.data, out[:len(tt.data)])
		})
	}
}

func TestCompressionShrinks(t *testing.T) {
	data := compressible(512)
	env, err := Encode(data, ZSTD)
	require.NoError(t, err)
	assert.Less(t, len(env), len(data))
}

func TestIncompressibleStoredRaw(t *testing.T) {
	// High-entropy payload: PRNG bytes do not compress.
	data := make([]byte, 4096)
	seed := uint64(0x9E3779B97F4A7C15)
	for i := range data {
		seed ^= seed << 13
		seed ^= seed >> 7
		seed ^= seed << 17
		data[i] = byte(seed)
	}

	env, err := Encode(data, LZ4)
	require.NoError(t, err)
	assert.Equal(t, None, Type(env[0]))

	out, err := Decode(env)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestDecodeRejectsCorruption(t *testing.T) {
	env, err := Encode(compressible(32), ZSTD)
	require.NoError(t, err)

	env[len(env)-1] ^= 0xFF
	_, err = Decode(env)
	assert.Error(t, err)

	_, err = Decode(env[:4])
	assert.Error(t, err)
}
