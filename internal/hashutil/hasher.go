// Package hashutil implements a single-pass CRC32+SHA-1 hasher with
// chunked cancellation.
package hashutil

import (
	"encoding/hex"
	"hash"
	"hash/crc32"
	"io"
	"strings"

	"crypto/sha1" //nolint:gosec // SHA-1 is the DAT ecosystem's hash, not used for security.

	"github.com/pkg/errors"

	"github.com/retronian/romsorter/internal/cancelctl"
	"github.com/retronian/romsorter/internal/model"
)

const (
	// DefaultChunkSize is the default chunk size of 1 MiB.
	DefaultChunkSize = 1 << 20
	MinChunkSize     = 64 << 10
	MaxChunkSize     = 32 << 20
)

// Result is the (crc32_hex_8, sha1_hex_40, size_bytes) triple produced for
// one file or archive entry.
type Result struct {
	CRC32Hex string
	SHA1Hex  string
	Size     int64
}

// ClampChunkSize bounds a configured chunk size to [MinChunkSize,
// MaxChunkSize], defaulting to DefaultChunkSize when size is zero.
func ClampChunkSize(size int) int {
	if size <= 0 {
		return DefaultChunkSize
	}
	if size < MinChunkSize {
		return MinChunkSize
	}
	if size > MaxChunkSize {
		return MaxChunkSize
	}
	return size
}

// Hash reads r to EOF in chunkSize pieces, computing CRC32 (IEEE) and
// SHA-1 in a single pass. After each chunk it consults token; on
// cancellation it aborts immediately and returns a KindCancelled error,
// leaving no partial Result.
func Hash(r io.Reader, chunkSize int, token *cancelctl.Token) (Result, error) {
	chunkSize = ClampChunkSize(chunkSize)

	crcH := crc32.NewIEEE()
	shaH := sha1.New() //nolint:gosec

	buf := make([]byte, chunkSize)
	var total int64

	for {
		if token.Cancelled() {
			return Result{}, model.NewError(model.KindCancelled, "", errors.New("hash cancelled"))
		}
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			total += int64(n)
			crcH.Write(buf[:n]) //nolint:errcheck // hash.Hash.Write never errors
			shaH.Write(buf[:n]) //nolint:errcheck
		}
		if err == io.EOF {
			break
		}
		if err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return Result{}, model.NewError(model.KindIo, "", errors.Wrap(err, "read"))
		}
	}

	return Result{
		CRC32Hex: crc32Hex(crcH),
		SHA1Hex:  strings.ToLower(hex.EncodeToString(shaH.Sum(nil))),
		Size:     total,
	}, nil
}

func crc32Hex(h hash.Hash32) string {
	return padHex(h.Sum32())
}

func padHex(v uint32) string {
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		buf[i] = hexDigits[v&0xF]
		v >>= 4
	}
	return string(buf)
}
