package sfx

import (
	"bufio"
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
)

// ProgressFunc receives the number of payload bytes processed so far and the total.
type ProgressFunc func(done, total int64)

// PackOptions contains inputs for Pack.
type PackOptions struct {
	// StagedDir is the directory tree to embed.
	StagedDir string
	// Stub provides the installer program the payload is appended to.
	Stub io.Reader
	// Output receives the packed installer.
	Output io.Writer
	// ModeMarker is the text in Stub that selects the build mode.
	ModeMarker string
	// ExtractMarker replaces ModeMarker so the packed copy self-extracts.
	ExtractMarker string
	// ChunkSize is the number of raw payload bytes per line; DefaultChunkSize when zero.
	ChunkSize int
	// WorkDir holds the transient zip file; the OS temp dir when empty.
	WorkDir string
	// Progress is called after every chunk when set.
	Progress ProgressFunc
}

// PackResult describes a packed installer.
type PackResult struct {
	// Files lists the archived entry names in archive order.
	Files []string
	// PayloadBytes is the size of the embedded zip.
	PayloadBytes int64
	// Chunks is the number of payload lines written.
	Chunks int
}

var errNilStream = errors.New("stub and output streams must be provided")

// Pack archives the staged tree and writes stub, sentinel and payload lines to Output.
// The stub is validated and patched before anything is written.
func Pack(ctx context.Context, opts *PackOptions) (*PackResult, error) {
	if opts.Stub == nil || opts.Output == nil {
		return nil, errNilStream
	}

	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	stub, err := io.ReadAll(opts.Stub)
	if err != nil {
		return nil, fmt.Errorf("read stub: %w", err)
	}

	stub, err = PatchMode(stub, opts.ModeMarker, opts.ExtractMarker)
	if err != nil {
		return nil, err
	}

	if containsSentinelLine(stub) {
		return nil, ErrSentinelInStub
	}

	files, err := collectFiles(opts.StagedDir)
	if err != nil {
		return nil, err
	}

	archive, err := os.CreateTemp(opts.WorkDir, "app-installer-*.zip")
	if err != nil {
		return nil, fmt.Errorf("create payload archive: %w", err)
	}

	defer func() {
		_ = archive.Close()
		_ = os.Remove(archive.Name())
	}()

	if err = writeZip(ctx, archive, files); err != nil {
		return nil, fmt.Errorf("compress staged tree: %w", err)
	}

	size, err := archive.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}

	if _, err = archive.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	out := bufio.NewWriter(opts.Output)

	if _, err = out.Write(stub); err != nil {
		return nil, fmt.Errorf("write stub: %w", err)
	}

	if len(stub) > 0 && !bytes.HasSuffix(stub, []byte("\n")) {
		if err = out.WriteByte('\n'); err != nil {
			return nil, err
		}
	}

	// The terminator is written apart so the full sentinel line never lands in a stub's data.
	if _, err = out.WriteString(Sentinel); err != nil {
		return nil, fmt.Errorf("write sentinel: %w", err)
	}

	if err = out.WriteByte('\n'); err != nil {
		return nil, fmt.Errorf("write sentinel: %w", err)
	}

	chunks, err := writeChunks(ctx, out, archive, chunkSize, size, opts.Progress)
	if err != nil {
		return nil, err
	}

	if err = out.Flush(); err != nil {
		return nil, fmt.Errorf("flush installer: %w", err)
	}

	result := &PackResult{
		Files:        make([]string, 0, len(files)),
		PayloadBytes: size,
		Chunks:       chunks,
	}

	for _, f := range files {
		result.Files = append(result.Files, f.name)
	}

	return result, nil
}

// writeChunks copies src to out as hex lines of at most chunkSize raw bytes each.
// A short read marks the last chunk.
func writeChunks(
	ctx context.Context,
	out *bufio.Writer,
	src io.Reader,
	chunkSize int,
	total int64,
	progress ProgressFunc,
) (int, error) {
	var (
		buffer = make([]byte, chunkSize)
		done   int64
		chunks int
	)

	for {
		if err := ctx.Err(); err != nil {
			return chunks, err
		}

		n, err := io.ReadFull(src, buffer)
		if n > 0 {
			if werr := writeChunkLine(out, buffer[:n]); werr != nil {
				return chunks, fmt.Errorf("write chunk %d: %w", chunks+1, werr)
			}

			chunks++
			done += int64(n)

			if progress != nil {
				progress(done, total)
			}
		}

		switch {
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return chunks, nil
		case err != nil:
			return chunks, fmt.Errorf("read payload archive: %w", err)
		}
	}
}

func writeChunkLine(out *bufio.Writer, chunk []byte) error {
	if _, err := out.WriteString(ChunkPrefix); err != nil {
		return err
	}

	if _, err := hex.NewEncoder(out).Write(chunk); err != nil {
		return err
	}

	return out.WriteByte('\n')
}
