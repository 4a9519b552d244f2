// Package gitmeta reads metadata about the git repository the configuration
// lives in.
package gitmeta

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const remoteName = "origin"

// Info describes the enclosing repository. Fields are empty when unknown.
type Info struct {
	Origin string
	Commit string
}

// Describe opens the repository containing path, searching parent
// directories, and returns its normalised origin URL and HEAD commit.
func Describe(ctx context.Context, path string) (*Info, error) {
	tracer := otel.Tracer("domains")
	_, span := tracer.Start(ctx, "gitmeta.Describe")
	defer span.End()

	span.SetAttributes(attribute.String("git.path", path))

	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to open git repository at %s: %w", path, err)
	}

	info := &Info{}
	remote, err := repo.Remote(remoteName)
	switch {
	case errors.Is(err, git.ErrRemoteNotFound):
	case err != nil:
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read remote %s: %w", remoteName, err)
	case len(remote.Config().URLs) > 0:
		info.Origin = NormalizeURL(remote.Config().URLs[0])
	}

	head, err := repo.Head()
	switch {
	case errors.Is(err, plumbing.ErrReferenceNotFound):
	case err != nil:
		span.RecordError(err)
		return nil, fmt.Errorf("failed to resolve HEAD: %w", err)
	default:
		info.Commit = head.Hash().String()
	}

	span.SetAttributes(
		attribute.String("git.origin", info.Origin),
		attribute.String("git.commit", info.Commit),
	)
	return info, nil
}

// OriginURL returns the normalised origin URL of the repository containing
// path, or "" when the repository has no origin.
func OriginURL(ctx context.Context, path string) (string, error) {
	info, err := Describe(ctx, path)
	if err != nil {
		return "", err
	}
	return info.Origin, nil
}

// NormalizeURL rewrites scp-style and ssh remotes as https, drops credentials
// and the trailing ".git".
//
//	git@github.com:jblukach/domains.git -> https://github.com/jblukach/domains
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if !strings.Contains(raw, "://") {
		if at := strings.Index(raw, "@"); at >= 0 {
			raw = raw[at+1:]
		}
		host, path, ok := strings.Cut(raw, ":")
		if !ok {
			return strings.TrimSuffix(raw, ".git")
		}
		return "https://" + host + "/" + strings.TrimSuffix(strings.TrimPrefix(path, "/"), ".git")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return strings.TrimSuffix(raw, ".git")
	}
	switch u.Scheme {
	case "ssh", "git", "git+ssh":
		u.Scheme = "https"
		u.Host = u.Hostname()
	}
	u.User = nil
	u.Path = strings.TrimSuffix(u.Path, ".git")
	return u.String()
}
