package awsaccount

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// MockSTSClient is a mock implementation of STSClientAPI for testing
type MockSTSClient struct {
	GetCallerIdentityFunc func(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

func (m *MockSTSClient) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if m.GetCallerIdentityFunc != nil {
		return m.GetCallerIdentityFunc(ctx, params, optFns...)
	}
	return nil, fmt.Errorf("GetCallerIdentityFunc not implemented")
}

func TestResolve(t *testing.T) {
	expired := errors.New("ExpiredToken")

	tests := []struct {
		name    string
		output  *sts.GetCallerIdentityOutput
		err     error
		want    string
		wantErr bool
	}{
		{
			name:   "account returned",
			output: &sts.GetCallerIdentityOutput{Account: aws.String("123456789012"), Arn: aws.String("arn:aws:iam::123456789012:user/ci")},
			want:   "123456789012",
		},
		{
			name:    "api error",
			err:     expired,
			wantErr: true,
		},
		{
			name:    "malformed account",
			output:  &sts.GetCallerIdentityOutput{Account: aws.String("12345")},
			wantErr: true,
		},
		{
			name:    "missing account",
			output:  &sts.GetCallerIdentityOutput{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &MockSTSClient{
				GetCallerIdentityFunc: func(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
					return tt.output, tt.err
				},
			}

			got, err := Resolve(context.Background(), client)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Resolve() = %q, want error", got)
				}
				if tt.err != nil && !errors.Is(err, tt.err) {
					t.Errorf("Resolve() error = %v, want wrapped %v", err, tt.err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewClient_RequiresRegion(t *testing.T) {
	if _, err := NewClient(context.Background(), ""); err == nil {
		t.Error("NewClient() should fail without a region")
	}
}
