// Package storage is the collaborator that consumes assembled uploads. The
// transfer core never talks to it directly, the HTTP layer builds the chunk
// transport function on top of it.
package storage

import (
	"context"

	"github.com/google/uuid"
)

type ObjectMeta struct {
	OriginalName string
	Mimetype     string
}

type Backend interface {
	// StageChunk receives one chunk of an in-flight upload.
	StageChunk(ctx context.Context, sessionId uuid.UUID, chunkIndex int, data []byte) error

	// StoreObject persists the assembled buffer and returns its digest.
	StoreObject(ctx context.Context, sessionId uuid.UUID, data []byte, meta ObjectMeta) (string, error)

	// DiscardStaged drops any staged chunks for the session.
	DiscardStaged(ctx context.Context, sessionId uuid.UUID) error

	GetObject(ctx context.Context, digest string) ([]byte, ObjectMeta, bool)
}
