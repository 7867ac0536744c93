package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// openInput opens a recording, decompressing .zst and .gz files. "-" reads stdin.
func openInput(path string, stdin io.Reader) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(stdin), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}

	switch filepath.Ext(path) {
	case ".zst":
		dec, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create ZSTD decoder: %w", err)
		}
		return &compressedInput{Reader: dec, close: func() error { dec.Close(); return f.Close() }}, nil

	case ".gz":
		dec, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return &compressedInput{Reader: dec, close: func() error { dec.Close(); return f.Close() }}, nil
	}

	return f, nil
}

type compressedInput struct {
	io.Reader
	close func() error
}

func (c *compressedInput) Close() error {
	return c.close()
}
