// Package storage publishes finished outputs. The local sink leaves files
// where the encoder wrote them; the S3 sink uploads them.
package storage

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when an upload sink lacks a bucket.
var ErrNotConfigured = errors.New("storage sink not configured")

// Sink publishes a finished output file under key and returns its location.
type Sink interface {
	Publish(ctx context.Context, localPath, key string) (location string, err error)
}

// LocalSink keeps outputs on disk.
type LocalSink struct{}

// Publish returns localPath unchanged.
func (LocalSink) Publish(_ context.Context, localPath, _ string) (string, error) {
	return localPath, nil
}
