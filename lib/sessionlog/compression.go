// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package sessionlog

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the on-disk compression of a session log.
type Compression uint8

const (
	// CompressionNone writes plain JSONL. The default.
	CompressionNone Compression = 0

	// CompressionZstd writes a zstd stream. Best ratio for the
	// JSON-heavy content of session logs.
	CompressionZstd Compression = 1

	// CompressionLZ4 writes an lz4 frame stream. Cheaper to encode
	// than zstd at a lower ratio.
	CompressionLZ4 Compression = 2
)

// String returns the human-readable name of the compression.
func (compression Compression) String() string {
	switch compression {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", compression)
	}
}

// ParseCompression parses a compression name as it appears in
// configuration files.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("sessionlog: unknown compression %q", name)
	}
}

// flushWriter is the subset of the compression writers the Writer
// needs: Flush makes written events durable mid-stream, Close ends
// the stream.
type flushWriter interface {
	io.WriteCloser
	Flush() error
}

// newCompressor wraps sink in the given compression's stream writer.
// CompressionNone returns nil; the caller writes to sink directly.
func newCompressor(sink io.Writer, compression Compression) (flushWriter, error) {
	switch compression {
	case CompressionNone:
		return nil, nil
	case CompressionZstd:
		encoder, err := zstd.NewWriter(sink)
		if err != nil {
			return nil, fmt.Errorf("sessionlog: creating zstd writer: %w", err)
		}
		return encoder, nil
	case CompressionLZ4:
		return lz4.NewWriter(sink), nil
	default:
		return nil, fmt.Errorf("sessionlog: unknown compression %d", compression)
	}
}

// newDecompressor wraps source in the given compression's stream
// reader. CompressionNone returns source unchanged.
func newDecompressor(source io.Reader, compression Compression) (io.Reader, error) {
	switch compression {
	case CompressionNone:
		return source, nil
	case CompressionZstd:
		decoder, err := zstd.NewReader(source)
		if err != nil {
			return nil, fmt.Errorf("sessionlog: creating zstd reader: %w", err)
		}
		return decoder.IOReadCloser(), nil
	case CompressionLZ4:
		return lz4.NewReader(source), nil
	default:
		return nil, fmt.Errorf("sessionlog: unknown compression %d", compression)
	}
}
