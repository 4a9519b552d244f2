// Package snapshot persists the last synthesized assembly so that the next
// run can be diffed against it.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/afero"

	"github.com/jblukach/domains/pkg/stack"
)

// Envelope wraps an assembly with the run that produced it.
type Envelope struct {
	RunID     ulid.ULID
	CreatedAt time.Time
	Assembly  *stack.Assembly
}

// Store loads and saves the current snapshot. Load returns nil, nil when no
// snapshot has been saved yet.
type Store interface {
	Load(ctx context.Context) (*Envelope, error)
	Save(ctx context.Context, env *Envelope) error
}

// NewEnvelope stamps a with a fresh run id.
func NewEnvelope(a *stack.Assembly) *Envelope {
	now := time.Now().UTC()
	return &Envelope{
		RunID:     ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()),
		CreatedAt: now,
		Assembly:  a,
	}
}

type wireEnvelope struct {
	RunID     string          `json:"run_id"`
	CreatedAt time.Time       `json:"created_at"`
	Assembly  json.RawMessage `json:"assembly"`
}

// Marshal encodes the envelope as JSON. The assembly is embedded in its
// canonical encoding.
func (e *Envelope) Marshal() ([]byte, error) {
	if e.Assembly == nil {
		return nil, fmt.Errorf("snapshot has no assembly")
	}
	assembly, err := e.Assembly.Encode(stack.FormatJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to encode assembly: %w", err)
	}
	data, err := json.MarshalIndent(wireEnvelope{
		RunID:     e.RunID.String(),
		CreatedAt: e.CreatedAt,
		Assembly:  assembly,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return append(data, '\n'), nil
}

// Unmarshal decodes an envelope written by Marshal.
func Unmarshal(data []byte) (*Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	id, err := ulid.ParseStrict(w.RunID)
	if err != nil {
		return nil, fmt.Errorf("invalid snapshot run id %q: %w", w.RunID, err)
	}
	a, err := stack.DecodeAssembly(w.Assembly, stack.FormatJSON)
	if err != nil {
		return nil, err
	}
	return &Envelope{RunID: id, CreatedAt: w.CreatedAt, Assembly: a}, nil
}

// Open returns the store addressed by uri: "s3://bucket/key" or a local path,
// optionally prefixed with "file://".
func Open(ctx context.Context, uri, region string) (Store, error) {
	if uri == "" {
		return nil, fmt.Errorf("snapshot location is required")
	}

	if !strings.Contains(uri, "://") {
		return NewFileStore(afero.NewOsFs(), uri), nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid snapshot location %q: %w", uri, err)
	}
	switch u.Scheme {
	case "file":
		return NewFileStore(afero.NewOsFs(), u.Host+u.Path), nil
	case "s3":
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return nil, fmt.Errorf("s3 snapshot location must be s3://bucket/key, got %q", uri)
		}
		client, err := NewS3Client(ctx, region)
		if err != nil {
			return nil, err
		}
		return NewS3Store(client, u.Host, key), nil
	default:
		return nil, fmt.Errorf("unsupported snapshot scheme %q", u.Scheme)
	}
}
