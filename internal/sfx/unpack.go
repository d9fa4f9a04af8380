package sfx

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// UnpackOptions contains inputs for Unpack.
type UnpackOptions struct {
	// Source is the packed installer.
	Source io.Reader
	// DestDir receives the extracted tree.
	DestDir string
	// WorkDir holds the transient zip file; the OS temp dir when empty.
	WorkDir string
	// Progress is called after every decoded chunk when set. The total is unknown and reported as -1.
	Progress ProgressFunc
}

// UnpackResult describes an extracted payload.
type UnpackResult struct {
	// Files lists extracted paths relative to DestDir, slash-separated.
	Files []string
	// PayloadBytes is the size of the decoded zip.
	PayloadBytes int64
}

const readerBufferSize = 64 << 10

var errNilSource = errors.New("source stream must be provided")

// Unpack locates the sentinel in Source, decodes the payload lines after it and
// extracts the resulting zip into DestDir. Nothing is extracted unless every
// payload line decodes.
func Unpack(ctx context.Context, opts *UnpackOptions) (*UnpackResult, error) {
	if opts.Source == nil {
		return nil, errNilSource
	}

	reader := bufio.NewReaderSize(opts.Source, readerBufferSize)

	found, err := skipToSentinel(reader)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, ErrSentinelNotFound
	}

	archive, err := os.CreateTemp(opts.WorkDir, "app-installer-*.zip")
	if err != nil {
		return nil, fmt.Errorf("create payload archive: %w", err)
	}

	defer func() {
		_ = archive.Close()
		_ = os.Remove(archive.Name())
	}()

	size, err := decodePayload(ctx, reader, archive, opts.Progress)
	if err != nil {
		return nil, err
	}

	if size == 0 {
		return nil, ErrEmptyPayload
	}

	if err = archive.Close(); err != nil {
		return nil, fmt.Errorf("close payload archive: %w", err)
	}

	if err = os.MkdirAll(opts.DestDir, defaultDirMode); err != nil {
		return nil, fmt.Errorf("create destination: %w", err)
	}

	files, err := extractZip(ctx, archive.Name(), opts.DestDir)
	if err != nil {
		return nil, err
	}

	return &UnpackResult{
		Files:        files,
		PayloadBytes: size,
	}, nil
}

// skipToSentinel consumes stub lines up to and including the first sentinel line.
// Stub lines may be arbitrarily long, so they are read in buffer-sized pieces.
func skipToSentinel(reader *bufio.Reader) (bool, error) {
	partial := false

	for {
		line, err := reader.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			partial = true
			continue
		}

		if !partial && len(line) > 0 && isSentinel(line) {
			return true, nil
		}

		partial = false

		switch {
		case errors.Is(err, io.EOF):
			return false, nil
		case err != nil:
			return false, fmt.Errorf("read installer: %w", err)
		}
	}
}

// decodePayload hex-decodes every line left in reader into dst and returns the decoded size.
func decodePayload(ctx context.Context, reader *bufio.Reader, dst io.Writer, progress ProgressFunc) (int64, error) {
	var (
		buffer []byte
		size   int64
	)

	for lineNumber := 1; ; lineNumber++ {
		if err := ctx.Err(); err != nil {
			return size, err
		}

		line, readErr := reader.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return size, fmt.Errorf("read payload: %w", readErr)
		}

		if line = trimLineEnd(line); len(line) > 0 {
			chunk, err := decodeChunk(buffer, line)
			if err != nil {
				return size, fmt.Errorf("payload line %d: %w: %w", lineNumber, ErrCorruptPayload, err)
			}

			if _, err = dst.Write(chunk); err != nil {
				return size, fmt.Errorf("write payload archive: %w", err)
			}

			buffer = chunk
			size += int64(len(chunk))

			if progress != nil {
				progress(size, -1)
			}
		}

		if errors.Is(readErr, io.EOF) {
			return size, nil
		}
	}
}
