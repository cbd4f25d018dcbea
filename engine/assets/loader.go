package assets

import (
	"io"
	"os"
)

// Loader reads one kind of asset from disk.
type Loader interface {
	Load(path string) ([]byte, error)
}

// BinaryLoader returns a file's bytes as they are, e.g. SPIR-V modules.
type BinaryLoader struct{}

func (BinaryLoader) Load(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}
