package snapshot

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// FileStore keeps the snapshot in a single JSON file.
type FileStore struct {
	fs   afero.Fs
	path string
}

// NewFileStore returns a store writing to path on fs.
func NewFileStore(fs afero.Fs, path string) *FileStore {
	return &FileStore{fs: fs, path: path}
}

// Path returns the snapshot file location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(ctx context.Context) (*Envelope, error) {
	tracer := otel.Tracer("domains")
	_, span := tracer.Start(ctx, "snapshot.FileStore.Load")
	defer span.End()

	span.SetAttributes(attribute.String("snapshot.path", s.path))

	exists, err := afero.Exists(s.fs, s.path)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to stat snapshot %s: %w", s.path, err)
	}
	if !exists {
		span.SetAttributes(attribute.Bool("snapshot.found", false))
		return nil, nil
	}

	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read snapshot %s: %w", s.path, err)
	}
	env, err := Unmarshal(data)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("snapshot %s: %w", s.path, err)
	}

	span.SetAttributes(
		attribute.Bool("snapshot.found", true),
		attribute.String("snapshot.run_id", env.RunID.String()),
	)
	return env, nil
}

func (s *FileStore) Save(ctx context.Context, env *Envelope) error {
	tracer := otel.Tracer("domains")
	_, span := tracer.Start(ctx, "snapshot.FileStore.Save")
	defer span.End()

	span.SetAttributes(
		attribute.String("snapshot.path", s.path),
		attribute.String("snapshot.run_id", env.RunID.String()),
	)

	data, err := env.Marshal()
	if err != nil {
		span.RecordError(err)
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := s.fs.MkdirAll(dir, 0755); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to create snapshot directory %s: %w", dir, err)
		}
	}
	if err := afero.WriteFile(s.fs, s.path, data, 0644); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to write snapshot %s: %w", s.path, err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
