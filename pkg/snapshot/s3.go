package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/jblukach/domains/pkg/stack"
)

// S3ClientAPI is the subset of the S3 client used by S3Store.
type S3ClientAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var _ S3ClientAPI = (*s3.Client)(nil)

// maxConcurrentUploads bounds the per-stack document uploads.
const maxConcurrentUploads = 4

// S3Store keeps the snapshot envelope at s3://bucket/key and, next to it, one
// document per stack under stacks/<name>.json for humans and external tools.
type S3Store struct {
	client S3ClientAPI
	bucket string
	key    string
}

// NewS3Client builds an S3 client from the default credential chain.
func NewS3Client(ctx context.Context, region string) (*s3.Client, error) {
	tracer := otel.Tracer("domains")
	ctx, span := tracer.Start(ctx, "snapshot.NewS3Client")
	defer span.End()

	span.SetAttributes(attribute.String("aws.region", region))

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

// NewS3Store returns a store backed by client.
func NewS3Store(client S3ClientAPI, bucket, key string) *S3Store {
	return &S3Store{client: client, bucket: bucket, key: key}
}

// StackKey returns the object key of a stack document.
func (s *S3Store) StackKey(name string) string {
	return path.Join(path.Dir(s.key), "stacks", name+".json")
}

func (s *S3Store) Load(ctx context.Context) (*Envelope, error) {
	tracer := otel.Tracer("domains")
	ctx, span := tracer.Start(ctx, "snapshot.S3Store.Load")
	defer span.End()

	span.SetAttributes(
		attribute.String("s3.bucket", s.bucket),
		attribute.String("s3.key", s.key),
	)

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			span.SetAttributes(attribute.Bool("snapshot.found", false))
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", s.bucket, s.key, err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read s3://%s/%s: %w", s.bucket, s.key, err)
	}
	env, err := Unmarshal(data)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("s3://%s/%s: %w", s.bucket, s.key, err)
	}

	span.SetAttributes(
		attribute.Bool("snapshot.found", true),
		attribute.String("snapshot.run_id", env.RunID.String()),
	)
	return env, nil
}

// Save uploads the stack documents first and the envelope last, so a reader
// never sees an envelope whose stacks are missing.
func (s *S3Store) Save(ctx context.Context, env *Envelope) error {
	tracer := otel.Tracer("domains")
	ctx, span := tracer.Start(ctx, "snapshot.S3Store.Save")
	defer span.End()

	span.SetAttributes(
		attribute.String("s3.bucket", s.bucket),
		attribute.String("s3.key", s.key),
		attribute.String("snapshot.run_id", env.RunID.String()),
	)

	data, err := env.Marshal()
	if err != nil {
		span.RecordError(err)
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentUploads)
	for i := range env.Assembly.Stacks {
		st := &env.Assembly.Stacks[i]
		g.Go(func() error {
			doc, err := st.Encode(stack.FormatJSON)
			if err != nil {
				return fmt.Errorf("failed to encode stack %s: %w", st.Name, err)
			}
			return s.put(gctx, s.StackKey(st.Name), doc)
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return err
	}

	if err := s.put(ctx, s.key, data); err != nil {
		span.RecordError(err)
		return err
	}

	span.SetAttributes(attribute.Int("snapshot.stacks", len(env.Assembly.Stacks)))
	return nil
}

func (s *S3Store) put(ctx context.Context, key string, body []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to put s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

var _ Store = (*S3Store)(nil)
