package snapshot

import (
	"context"
	"errors"
	"strings"
	"testing"

	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/spf13/afero"

	"github.com/jblukach/domains/pkg/graph"
	"github.com/jblukach/domains/pkg/plan"
	"github.com/jblukach/domains/pkg/stack"
)

func testAssembly() *stack.Assembly {
	return &stack.Assembly{
		Version: stack.FormatVersion,
		Account: "123456789012",
		Region:  "us-east-1",
		Service: "route53",
		Stacks: []stack.Stack{
			{
				Name: "example",
				Resources: []stack.Resource{
					{
						ID:         "hostzone",
						Kind:       graph.KindHostedZone,
						Properties: map[string]any{"zone_name": "example.com", "comment": "example.com"},
						Tags:       map[string]string{"domains:stack": "example"},
					},
					{
						ID:         "spf",
						Kind:       graph.KindRecord,
						Properties: map[string]any{"record_name": "example.com", "record_type": "TXT", "ttl": int64(1800), "values": []string{"v=spf1 -all"}},
						DependsOn:  []string{"example/hostzone"},
					},
				},
			},
			{Name: "other", Resources: []stack.Resource{{ID: "hostzone", Kind: graph.KindHostedZone, Properties: map[string]any{"zone_name": "other.com"}}}},
		},
	}
}

func TestEnvelope_Marshal(t *testing.T) {
	env := NewEnvelope(testAssembly())
	data, err := env.Marshal()
	if err != nil {
		t.Fatalf("Marshal() unexpected error: %v", err)
	}
	if !strings.Contains(string(data), `"run_id": "`+env.RunID.String()+`"`) {
		t.Errorf("Marshal() output missing run id:\n%s", data)
	}

	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal() unexpected error: %v", err)
	}
	if got.RunID != env.RunID {
		t.Errorf("RunID = %s, want %s", got.RunID, env.RunID)
	}
	if !got.CreatedAt.Equal(env.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, env.CreatedAt)
	}

	p, err := plan.Diff(context.Background(), got.Assembly, env.Assembly)
	if err != nil {
		t.Fatalf("Diff() unexpected error: %v", err)
	}
	if !p.Empty() {
		t.Errorf("restored assembly differs: %v", p.Operations)
	}
}

func TestEnvelope_RunIDsIncrease(t *testing.T) {
	a := NewEnvelope(testAssembly())
	b := NewEnvelope(testAssembly())
	if a.RunID == b.RunID {
		t.Error("NewEnvelope() reused a run id")
	}
	if b.RunID.Time() < a.RunID.Time() {
		t.Error("later run id carries an earlier timestamp")
	}
}

func TestUnmarshal_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not json", data: "{"},
		{name: "bad run id", data: `{"run_id":"nope","created_at":"2025-01-01T00:00:00Z","assembly":{"version":"1"}}`},
		{name: "wrong version", data: `{"run_id":"01ARZ3NDEKTSV4RRFFQ69G5FAV","created_at":"2025-01-01T00:00:00Z","assembly":{"version":"0"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Unmarshal([]byte(tt.data)); err == nil {
				t.Error("Unmarshal() should fail")
			}
		})
	}
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	store := NewFileStore(fs, "state/snapshot.json")

	env, err := store.Load(ctx)
	if err != nil || env != nil {
		t.Fatalf("Load() on empty store = %v, %v, want nil, nil", env, err)
	}

	saved := NewEnvelope(testAssembly())
	if err := store.Save(ctx, saved); err != nil {
		t.Fatalf("Save() unexpected error: %v", err)
	}
	if exists, _ := afero.DirExists(fs, "state"); !exists {
		t.Error("Save() did not create the parent directory")
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if loaded.RunID != saved.RunID || len(loaded.Assembly.Stacks) != 2 {
		t.Errorf("Load() = %+v", loaded)
	}
}

func TestFileStore_Corrupt(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "snapshot.json", []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileStore(fs, "snapshot.json").Load(context.Background()); err == nil {
		t.Error("Load() should fail on a corrupt snapshot")
	}
}

func TestS3Store(t *testing.T) {
	ctx := context.Background()
	bucket := newMemoryBucket()
	store := NewS3Store(bucket.client(&s3types.NoSuchKey{}), "state-bucket", "domains/snapshot.json")

	env, err := store.Load(ctx)
	if err != nil || env != nil {
		t.Fatalf("Load() on empty bucket = %v, %v, want nil, nil", env, err)
	}

	saved := NewEnvelope(testAssembly())
	if err := store.Save(ctx, saved); err != nil {
		t.Fatalf("Save() unexpected error: %v", err)
	}

	for _, key := range []string{"domains/stacks/example.json", "domains/stacks/other.json", "domains/snapshot.json"} {
		if _, ok := bucket.objects[key]; !ok {
			t.Errorf("object %s was not uploaded", key)
		}
	}
	if last := bucket.order[len(bucket.order)-1]; last != "domains/snapshot.json" {
		t.Errorf("last upload = %s, want the envelope", last)
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if loaded.RunID != saved.RunID {
		t.Errorf("RunID = %s, want %s", loaded.RunID, saved.RunID)
	}
}

func TestS3Store_Errors(t *testing.T) {
	ctx := context.Background()
	denied := errors.New("access denied")

	store := NewS3Store(newMemoryBucket().client(denied), "b", "snapshot.json")
	if _, err := store.Load(ctx); !errors.Is(err, denied) {
		t.Errorf("Load() error = %v, want wrapped access denied", err)
	}

	failing := &MockS3Client{}
	if err := NewS3Store(failing, "b", "snapshot.json").Save(ctx, NewEnvelope(testAssembly())); err == nil {
		t.Error("Save() should fail when uploads fail")
	}

	if got := store.StackKey("example"); got != "stacks/example.json" {
		t.Errorf("StackKey() = %q", got)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		uri      string
		wantPath string
		wantErr  bool
	}{
		{uri: "snapshot.json", wantPath: "snapshot.json"},
		{uri: "file:///tmp/snap.json", wantPath: "/tmp/snap.json"},
		{uri: "s3://bucket", wantErr: true},
		{uri: "gs://bucket/key", wantErr: true},
		{uri: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			store, err := Open(ctx, tt.uri, "us-east-1")
			if tt.wantErr {
				if err == nil {
					t.Errorf("Open(%q) should fail", tt.uri)
				}
				return
			}
			if err != nil {
				t.Fatalf("Open(%q) unexpected error: %v", tt.uri, err)
			}
			fs, ok := store.(*FileStore)
			if !ok || fs.Path() != tt.wantPath {
				t.Errorf("Open(%q) = %#v, want file store at %s", tt.uri, store, tt.wantPath)
			}
		})
	}
}
