package config

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// ParseConfig reads and parses a domains.yaml file, then validates it and
// applies defaults. Unknown fields are rejected.
func ParseConfig(ctx context.Context, filePath string) (*DomainsConfig, error) {
	tracer := otel.Tracer("domains")
	ctx, span := tracer.Start(ctx, "config.ParseConfig")
	defer span.End()

	span.SetAttributes(attribute.String("config.file", filePath))

	data, err := os.ReadFile(filePath)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}

	cfg, err := Parse(ctx, data)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("config file %s: %w", filePath, err)
	}

	return cfg, nil
}

// Parse parses and validates configuration from raw YAML.
func Parse(ctx context.Context, data []byte) (*DomainsConfig, error) {
	tracer := otel.Tracer("domains")
	ctx, span := tracer.Start(ctx, "config.Parse")
	defer span.End()

	var cfg DomainsConfig
	if err := yaml.UnmarshalWithOptions(data, &cfg, yaml.DisallowUnknownField()); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(ctx); err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("config.domains", len(cfg.Domains)),
		attribute.String("config.region", cfg.Region),
	)

	return &cfg, nil
}
