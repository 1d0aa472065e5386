package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/dcm-services/job-processor/internal/pkg/logger"
)

// ArtifactStore resolves the artifact paths the orchestrator persists as
// opaque strings (spec §3/§4.5) against a real backend. The core never
// calls these on the hot path of a stage call; they exist for the reaper
// and any operator tooling that needs to inspect or clean up artifacts.
type ArtifactStore interface {
	Put(ctx context.Context, path string, r io.Reader) error
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
}

// NewArtifactStore dispatches on cfg.Mode the same way the donor's
// resolveBucketService does, wrapping bootstrap failures in a typed error
// so callers can distinguish configuration mistakes from connectivity
// failures.
func NewArtifactStore(ctx context.Context, log *logger.Logger, cfg Config) (ArtifactStore, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	storeLog := log.With("service", "ArtifactStore", "mode", string(cfg.Mode))

	switch cfg.Mode {
	case ModeLocal:
		if err := os.MkdirAll(cfg.LocalDir, 0o755); err != nil {
			return nil, &ConfigError{Code: ConfigErrorMissingLocalDir, Mode: cfg.Mode, Cause: err}
		}
		storeLog.Info("artifact store using local filesystem", "dir", cfg.LocalDir)
		return &localStore{dir: cfg.LocalDir, log: storeLog}, nil

	case ModeGCS, ModeGCSEmulator:
		var opts []option.ClientOption
		if cfg.Mode == ModeGCSEmulator {
			endpoint := strings.TrimRight(cfg.EmulatorHost, "/")
			if err := os.Setenv("STORAGE_EMULATOR_HOST", endpoint); err != nil {
				return nil, &ConfigError{Code: ConfigErrorInvalidEmulatorHost, Mode: cfg.Mode, Cause: err}
			}
			opts = append(opts, option.WithoutAuthentication())
		} else {
			opts = append(opts, option.WithScopes(gcs.ScopeReadWrite))
		}
		client, err := gcs.NewClient(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		storeLog.Info("artifact store using gcs bucket", "bucket", cfg.Bucket)
		return &bucketStore{client: client, bucket: cfg.Bucket, log: storeLog}, nil

	default:
		return nil, &ConfigError{Code: ConfigErrorInvalidMode, Mode: cfg.Mode}
	}
}

// bucketStore is the GCS-backed ArtifactStore, grounded on the donor's
// bucketService but collapsed to one bucket and one key namespace since
// artifacts have no avatar/material category distinction.
type bucketStore struct {
	client *gcs.Client
	bucket string
	log    *logger.Logger
}

func (s *bucketStore) Put(ctx context.Context, path string, r io.Reader) error {
	w := s.client.Bucket(s.bucket).Object(path).NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("write gcs object %q: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close gcs writer for %q: %w", path, err)
	}
	return nil
}

func (s *bucketStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	rc, err := s.client.Bucket(s.bucket).Object(path).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open gcs object %q: %w", path, err)
	}
	return rc, nil
}

func (s *bucketStore) Delete(ctx context.Context, path string) error {
	if err := s.client.Bucket(s.bucket).Object(path).Delete(ctx); err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil
		}
		return fmt.Errorf("delete gcs object %q: %w", path, err)
	}
	return nil
}

func (s *bucketStore) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.client.Bucket(s.bucket).Object(path).Attrs(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat gcs object %q: %w", path, err)
	}
	return true, nil
}

// DeletePrefix removes every object under prefix. It is not part of the
// ArtifactStore interface and the reaper does not call it; the reaper's
// sweep uses Delete, which removes a single object.
func (s *bucketStore) DeletePrefix(ctx context.Context, prefix string) error {
	it := s.client.Bucket(s.bucket).Objects(ctx, &gcs.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return fmt.Errorf("list gcs objects under %q: %w", prefix, err)
		}
		if err := s.client.Bucket(s.bucket).Object(attrs.Name).Delete(ctx); err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
			return fmt.Errorf("delete gcs object %q: %w", attrs.Name, err)
		}
	}
}

// localStore is the development-mode ArtifactStore: artifact paths are
// resolved relative to a root directory on the local filesystem.
type localStore struct {
	dir string
	log *logger.Logger
}

func (s *localStore) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + path)
	full := filepath.Join(s.dir, clean)
	if !strings.HasPrefix(full, filepath.Clean(s.dir)+string(os.PathSeparator)) && full != filepath.Clean(s.dir) {
		return "", fmt.Errorf("artifact path %q escapes storage root", path)
	}
	return full, nil
}

func (s *localStore) Put(_ context.Context, path string, r io.Reader) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create directories for %q: %w", path, err)
	}
	f, err := os.Create(full)
	if err != nil {
		return fmt.Errorf("create local artifact %q: %w", path, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("write local artifact %q: %w", path, err)
	}
	return nil
}

func (s *localStore) Open(_ context.Context, path string) (io.ReadCloser, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("open local artifact %q: %w", path, err)
	}
	return f, nil
}

func (s *localStore) Delete(_ context.Context, path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete local artifact %q: %w", path, err)
	}
	return nil
}

func (s *localStore) Exists(_ context.Context, path string) (bool, error) {
	full, err := s.resolve(path)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat local artifact %q: %w", path, err)
	}
	return true, nil
}
