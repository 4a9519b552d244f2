package stack

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jblukach/domains/pkg/graph"
)

const (
	// TagManagedBy marks every taggable resource as owned by this tool
	TagManagedBy = "domains:managed-by"
	// TagStack names the stack a resource belongs to
	TagStack = "domains:stack"
	// TagResourceType carries the resource kind
	TagResourceType = "domains:resource-type"
	// TagRepository carries the source repository of the configuration
	TagRepository = "domains:repository"

	// ManagedByValue is the value used for the managed-by tag
	ManagedByValue = "domains"
)

// GenerateBaseTags returns the tags every taggable resource of a stack carries:
// the organization-level tags from the shared context plus the managed-by,
// stack and resource-type tags.
func GenerateBaseTags(ctx context.Context, shared SharedContext, stackName string, kind graph.Kind) map[string]string {
	tracer := otel.Tracer("domains")
	_, span := tracer.Start(ctx, "stack.GenerateBaseTags")
	defer span.End()

	span.SetAttributes(
		attribute.String("stack", stackName),
		attribute.String("resource_type", string(kind)),
	)

	tags := make(map[string]string, len(shared.Tags)+3)
	for k, v := range shared.Tags {
		tags[k] = v
	}
	tags[TagManagedBy] = ManagedByValue
	tags[TagStack] = stackName
	tags[TagResourceType] = strings.ToLower(string(kind))
	return tags
}

// MergeTags merges per-resource tags with base tags.
// Resource tags cannot override base tags.
func MergeTags(ctx context.Context, baseTags map[string]string, resourceTags map[string]string) map[string]string {
	tracer := otel.Tracer("domains")
	_, span := tracer.Start(ctx, "stack.MergeTags")
	defer span.End()

	merged := make(map[string]string, len(baseTags)+len(resourceTags))
	for k, v := range resourceTags {
		merged[k] = v
	}
	for k, v := range baseTags {
		merged[k] = v
	}

	span.SetAttributes(
		attribute.Int("base_tags_count", len(baseTags)),
		attribute.Int("resource_tags_count", len(resourceTags)),
		attribute.Int("merged_tags_count", len(merged)),
	)

	return merged
}
