package sfx

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
)

const (
	// Sentinel separates the stub from the payload. It occupies a whole line.
	Sentinel = "# APP_DIR"

	// ChunkPrefix starts every payload line.
	ChunkPrefix = "# "

	// DefaultChunkSize is the number of raw zip bytes encoded per payload line.
	DefaultChunkSize = 4_000_000
)

var (
	// ErrModeMarkerRequired is returned when no mode marker is configured.
	ErrModeMarkerRequired = errors.New("mode marker must be provided")
	// ErrModeMarkerNotFound is returned when the stub does not contain the mode marker.
	ErrModeMarkerNotFound = errors.New("mode marker not found in stub")
	// ErrModeMarkerAmbiguous is returned when the stub contains the mode marker more than once.
	ErrModeMarkerAmbiguous = errors.New("mode marker occurs more than once in stub")
	// ErrSentinelInStub is returned when the stub already holds a sentinel line.
	ErrSentinelInStub = errors.New("stub already contains the sentinel line")
	// ErrSentinelNotFound is returned when a packed file has no sentinel line.
	ErrSentinelNotFound = errors.New("payload sentinel not found")
	// ErrEmptyPayload is returned when the sentinel is not followed by any chunk.
	ErrEmptyPayload = errors.New("payload is empty")
	// ErrCorruptPayload is returned when a chunk line cannot be decoded.
	ErrCorruptPayload = errors.New("payload is corrupt")
	// ErrStagedTreeMissing is returned when the staged directory does not exist.
	ErrStagedTreeMissing = errors.New("staged tree not found")
	// ErrStagedTreeEmpty is returned when the staged directory holds no regular files.
	ErrStagedTreeEmpty = errors.New("staged tree is empty")
	// ErrUnsafePath is returned when an archive entry would escape the destination.
	ErrUnsafePath = errors.New("archive entry escapes destination")

	errMissingChunkPrefix = errors.New("missing chunk prefix")
)

// PatchMode rewrites the single occurrence of marker in stub with replacement.
// The stub is searched by exact text; no offsets are assumed.
func PatchMode(stub []byte, marker, replacement string) ([]byte, error) {
	if marker == "" {
		return nil, ErrModeMarkerRequired
	}

	switch n := bytes.Count(stub, []byte(marker)); {
	case n == 0:
		return nil, fmt.Errorf("%q: %w", marker, ErrModeMarkerNotFound)
	case n > 1:
		return nil, fmt.Errorf("%q found %d times: %w", marker, n, ErrModeMarkerAmbiguous)
	}

	return bytes.Replace(stub, []byte(marker), []byte(replacement), 1), nil
}

// containsSentinelLine reports whether data holds Sentinel as a complete line.
func containsSentinelLine(data []byte) bool {
	needle := []byte(Sentinel)

	for offset := 0; ; {
		i := bytes.Index(data[offset:], needle)
		if i < 0 {
			return false
		}

		start := offset + i
		end := start + len(needle)
		offset = start + 1

		if start > 0 && data[start-1] != '\n' {
			continue
		}

		if isLineEnd(data[end:]) {
			return true
		}
	}
}

func isLineEnd(rest []byte) bool {
	return len(rest) == 0 ||
		rest[0] == '\n' ||
		(len(rest) > 1 && rest[0] == '\r' && rest[1] == '\n')
}

// trimLineEnd strips a trailing "\n" or "\r\n".
func trimLineEnd(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte("\n"))

	return bytes.TrimSuffix(line, []byte("\r"))
}

// isSentinel reports whether a raw line (terminator included) is the sentinel.
func isSentinel(line []byte) bool {
	return string(trimLineEnd(line)) == Sentinel
}

// decodeChunk strips the chunk prefix from a payload line and hex-decodes it into dst.
// It returns the decoded bytes, reusing dst when it is large enough.
func decodeChunk(dst, line []byte) ([]byte, error) {
	encoded, ok := bytes.CutPrefix(line, []byte(ChunkPrefix))
	if !ok {
		return nil, errMissingChunkPrefix
	}

	size := hex.DecodedLen(len(encoded))
	if cap(dst) < size {
		dst = make([]byte, size)
	}

	dst = dst[:size]

	n, err := hex.Decode(dst, encoded)
	if err != nil {
		return nil, err
	}

	return dst[:n], nil
}
