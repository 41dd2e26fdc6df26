// Package artifact writes generated report documents to blob storage. Paths
// follow the {projectId}/{yyyy}/{mm}/{dd}/{reportId}/{filename} convention
// from model.Report.ArtifactPath.
package artifact

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/blueline-build/fieldreport-cli/internal/config"
)

// Store is a write-only blob sink for generated artifacts.
type Store interface {
	Put(ctx context.Context, path string, r io.Reader) error
}

// NewStore builds the configured artifact backend.
func NewStore(cfg config.ArtifactConfig) (Store, error) {
	switch cfg.Backend {
	case "", "local":
		dir := cfg.Dir
		if dir == "" {
			dir = "artifacts"
		}
		return NewLocalStore(dir), nil
	case "ftp":
		if cfg.FTPAddr == "" {
			return nil, eris.New("artifact: ftp backend requires an address")
		}
		return NewFTPStore(FTPOptions{
			Addr:     cfg.FTPAddr,
			User:     cfg.FTPUser,
			Password: cfg.FTPPassword,
		}), nil
	default:
		return nil, eris.Errorf("artifact: unknown backend %q", cfg.Backend)
	}
}

// LocalStore writes artifacts under a local directory.
type LocalStore struct {
	dir string
}

// NewLocalStore creates a LocalStore rooted at dir.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

func (s *LocalStore) Put(_ context.Context, path string, r io.Reader) error {
	full := filepath.Join(s.dir, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return eris.Wrapf(err, "artifact: mkdir for %s", path)
	}

	f, err := os.Create(full)
	if err != nil {
		return eris.Wrapf(err, "artifact: create %s", path)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return eris.Wrapf(err, "artifact: write %s", path)
	}
	return nil
}
