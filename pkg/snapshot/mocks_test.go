package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// MockS3Client is a mock implementation of S3ClientAPI for testing
type MockS3Client struct {
	GetObjectFunc func(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObjectFunc func(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

func (m *MockS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.GetObjectFunc != nil {
		return m.GetObjectFunc(ctx, params, optFns...)
	}
	return nil, fmt.Errorf("GetObjectFunc not implemented")
}

func (m *MockS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.PutObjectFunc != nil {
		return m.PutObjectFunc(ctx, params, optFns...)
	}
	return nil, fmt.Errorf("PutObjectFunc not implemented")
}

// memoryBucket backs a MockS3Client with an in-memory object map.
type memoryBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	order   []string
}

func newMemoryBucket() *memoryBucket {
	return &memoryBucket{objects: make(map[string][]byte)}
}

func (b *memoryBucket) client(missing error) *MockS3Client {
	return &MockS3Client{
		GetObjectFunc: func(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
			b.mu.Lock()
			defer b.mu.Unlock()
			data, ok := b.objects[aws.ToString(params.Key)]
			if !ok {
				return nil, missing
			}
			return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
		},
		PutObjectFunc: func(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
			data, err := io.ReadAll(params.Body)
			if err != nil {
				return nil, err
			}
			b.mu.Lock()
			defer b.mu.Unlock()
			key := aws.ToString(params.Key)
			b.objects[key] = data
			b.order = append(b.order, key)
			return &s3.PutObjectOutput{}, nil
		},
	}
}
