// Package cache caches computed case timelines keyed by log and case ID.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/logflow/caseline/internal/model"
)

// ErrMiss is returned by Get when no entry exists.
var ErrMiss = errors.New("cache: miss")

// ResultCache stores case results grouped by namespace.
// A namespace identifies one version of one log.
type ResultCache interface {
	Get(ctx context.Context, namespace, caseID string) (*model.CaseResult, error)
	Put(ctx context.Context, namespace string, result *model.CaseResult) error

	// Invalidate drops every entry of a namespace.
	Invalidate(ctx context.Context, namespace string) error

	Close() error
}

// Namespace derives a short stable namespace from a log location and the
// version of its content, so an edited log never hits entries of the old one.
func Namespace(location, version string) string {
	hash := sha256.Sum256([]byte(location + "\x00" + version))
	return hex.EncodeToString(hash[:8])
}
