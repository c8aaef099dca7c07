package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/The127/ioc"
	"github.com/google/uuid"
	"github.com/the127/stevedore/internal/middlewares"
	"github.com/the127/stevedore/internal/services/transfer"
	"github.com/the127/stevedore/internal/storage"
	"github.com/the127/stevedore/internal/utils/apiError"
)

type UploadChunk struct {
	SessionId  uuid.UUID
	ChunkIndex int
	Data       []byte
}

type UploadChunkResponse struct {
	Progress transfer.Progress
}

func HandleUploadChunk(ctx context.Context, command UploadChunk) (*UploadChunkResponse, error) {
	scope := middlewares.GetScope(ctx)

	transferService := ioc.GetDependency[*transfer.Service](scope)
	backend := ioc.GetDependency[storage.Backend](scope)

	err := transferService.UploadChunk(ctx, command.SessionId, command.ChunkIndex, command.Data, stagingTransport(backend))
	if err != nil {
		return nil, mapTransferError(err)
	}

	progress, err := transferService.Progress(command.SessionId)
	if err != nil {
		return nil, mapTransferError(err)
	}

	return &UploadChunkResponse{
		Progress: *progress,
	}, nil
}

// stagingTransport delivers chunks to the storage collaborator's staging
// area. This is the transport function the core races against its timeout.
func stagingTransport(backend storage.Backend) transfer.TransportFunc {
	return func(ctx context.Context, data []byte, chunkIndex int, session transfer.SessionInfo) error {
		return backend.StageChunk(ctx, session.Id, chunkIndex, data)
	}
}

func mapTransferError(err error) error {
	switch {
	case errors.Is(err, transfer.ErrSessionNotFound):
		return fmt.Errorf("%s: %w", err, apiError.ErrApiSessionNotFound)

	case errors.Is(err, transfer.ErrSessionCancelled):
		return fmt.Errorf("%s: %w", err, apiError.ErrApiConflict)

	case errors.Is(err, transfer.ErrChunkIndexOutOfRange):
		return fmt.Errorf("%s: %w", err, apiError.ErrApiBadRequest)

	case errors.Is(err, transfer.ErrChunkDataMissing):
		return fmt.Errorf("%s: %w", err, apiError.ErrApiConflict)

	case errors.Is(err, transfer.ErrIntegrity), errors.Is(err, transfer.ErrSizeMismatch):
		return fmt.Errorf("%s: %w", err, apiError.ErrApiUploadCorrupted)

	default:
		return err
	}
}
