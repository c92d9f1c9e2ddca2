// Package compress implements the self-describing envelope used when
// archive files move through a blob store.
//
// Envelope layout, little-endian:
//
//	[type u8][reserved 3 bytes][uncompressedSize u64][crc32c u32][payload]
//
// The checksum covers the uncompressed bytes. Incompressible payloads are
// stored raw with the None type so decoding never depends on the encoder's
// choice.
package compress

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/codearc/internal/hash"
)

// Type selects the compression algorithm.
type Type uint8

const (
	// None stores the payload uncompressed.
	None Type = 0
	// LZ4 block compression (fast, light on CPU during fleet rollout).
	LZ4 Type = 1
	// ZSTD block compression (better ratio for cold storage).
	ZSTD Type = 2
)

// String implements fmt.Stringer.
func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case ZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

const headerSize = 1 + 3 + 8 + 4

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Encode wraps data in an envelope, compressing with t. If compression does
// not reduce the payload it is stored raw.
func Encode(data []byte, t Type) ([]byte, error) {
	var compressed []byte
	var err error

	switch t {
	case None:
	case LZ4:
		compressed, err = encodeLZ4(data)
	case ZSTD:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("compress: unknown type %d", uint8(t))
	}
	if err != nil {
		return nil, err
	}

	if compressed == nil || len(compressed) >= len(data) {
		t = None
		compressed = data
	}

	out := make([]byte, headerSize+len(compressed))
	out[0] = byte(t)
	binary.LittleEndian.PutUint64(out[4:], uint64(len(data)))
	binary.LittleEndian.PutUint32(out[12:], hash.CRC32C(data))
	copy(out[headerSize:], compressed)
	return out, nil
}

func encodeLZ4(data []byte) ([]byte, error) {
	bound := lz4.CompressBlockBound(len(data))
	dst := make([]byte, bound)
	n, err := lz4.CompressBlock(data, dst, nil)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil // incompressible
	}
	return dst[:n], nil
}

// Decode unwraps an envelope produced by Encode and verifies its checksum.
func Decode(envelope []byte) ([]byte, error) {
	if len(envelope) < headerSize {
		return nil, errors.New("compress: envelope too small")
	}
	t := Type(envelope[0])
	size := binary.LittleEndian.Uint64(envelope[4:])
	sum := binary.LittleEndian.Uint32(envelope[12:])
	payload := envelope[headerSize:]

	var data []byte
	switch t {
	case None:
		if uint64(len(payload)) != size {
			return nil, errors.New("compress: stored size mismatch")
		}
		data = payload
	case LZ4:
		data = make([]byte, size)
		n, err := lz4.UncompressBlock(payload, data)
		if err != nil {
			return nil, err
		}
		if uint64(n) != size {
			return nil, errors.New("compress: decompressed size mismatch")
		}
	case ZSTD:
		dec := getZstdDecoder()
		out, err := dec.DecodeAll(payload, make([]byte, 0, size))
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, err
		}
		if uint64(len(out)) != size {
			return nil, errors.New("compress: decompressed size mismatch")
		}
		data = out
	default:
		return nil, fmt.Errorf("compress: unknown type %d", uint8(t))
	}

	if hash.CRC32C(data) != sum {
		return nil, errors.New("compress: checksum mismatch")
	}
	return data, nil
}
