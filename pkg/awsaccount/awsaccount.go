// Package awsaccount resolves the AWS account the caller's credentials belong
// to, for use as the deployment account of an assembly.
package awsaccount

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// STSClientAPI is the subset of the STS client used here.
type STSClientAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

var _ STSClientAPI = (*sts.Client)(nil)

// NewClient builds an STS client from the default credential chain:
// environment variables, shared config files, then instance or task roles.
func NewClient(ctx context.Context, region string) (*sts.Client, error) {
	tracer := otel.Tracer("domains")
	ctx, span := tracer.Start(ctx, "awsaccount.NewClient")
	defer span.End()

	span.SetAttributes(attribute.String("aws.region", region))

	if region == "" {
		err := fmt.Errorf("AWS region is required")
		span.RecordError(err)
		return nil, err
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return sts.NewFromConfig(cfg), nil
}

// Resolve returns the 12-digit account id of the caller.
func Resolve(ctx context.Context, client STSClientAPI) (string, error) {
	tracer := otel.Tracer("domains")
	ctx, span := tracer.Start(ctx, "awsaccount.Resolve")
	defer span.End()

	identity, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to get caller identity: %w", err)
	}

	account := aws.ToString(identity.Account)
	if len(account) != 12 {
		err := fmt.Errorf("caller identity returned unexpected account %q", account)
		span.RecordError(err)
		return "", err
	}

	span.SetAttributes(
		attribute.String("aws.account_id", account),
		attribute.String("aws.arn", aws.ToString(identity.Arn)),
	)
	return account, nil
}
