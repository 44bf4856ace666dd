package cache

import (
	"io"
	"os"
	"path/filepath"

	"github.com/temoto/extremofile"
)

// storage writes the full serialized sequence on every mutation and reads
// it back whole. Read returns nil,nil when nothing was persisted yet.
type storage interface {
	Read() ([]byte, error)
	io.Writer
}

// fileStorage keeps a single JSON file, overwritten in full. Torn writes
// lose at most the current generation; the guarded backend exists for
// deployments that care.
type fileStorage struct {
	path string
}

func newFileStorage(path string) *fileStorage { return &fileStorage{path: path} }

func (fs *fileStorage) Read() ([]byte, error) {
	b, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return b, nil
}

func (fs *fileStorage) Write(b []byte) (int, error) {
	if err := os.WriteFile(fs.path, b, 0644); err != nil {
		return 0, err
	}
	return len(b), nil
}

func newGuardedStorage(dir string) storage {
	return extremofile.New(extremofile.Config{
		Dir:      filepath.Join(dir, "cache"),
		DirPerm:  0755,
		FilePerm: 0644,
	})
}
