package commands

import (
	"context"
	"fmt"

	"github.com/The127/ioc"
	"github.com/google/uuid"
	"github.com/the127/stevedore/internal/middlewares"
	"github.com/the127/stevedore/internal/services/admission"
	"github.com/the127/stevedore/internal/services/transfer"
	"github.com/the127/stevedore/internal/storage"
	"github.com/the127/stevedore/internal/utils/apiError"
)

type CompleteUpload struct {
	SessionId uuid.UUID
	Mimetype  string
}

type CompleteUploadResponse struct {
	Digest string
	Size   int64
}

func HandleCompleteUpload(ctx context.Context, command CompleteUpload) (*CompleteUploadResponse, error) {
	scope := middlewares.GetScope(ctx)

	transferService := ioc.GetDependency[*transfer.Service](scope)

	ok, err := transferService.VerifyIntegrity(command.SessionId)
	if err != nil {
		return nil, mapTransferError(err)
	}
	if !ok {
		return nil, fmt.Errorf("session %s failed verification: %w", command.SessionId, apiError.ErrApiUploadCorrupted)
	}

	buffer, err := transferService.Assemble(command.SessionId)
	if err != nil {
		return nil, mapTransferError(err)
	}

	progress, err := transferService.Progress(command.SessionId)
	if err != nil {
		return nil, mapTransferError(err)
	}

	mimetype := command.Mimetype
	if mimetype == "" {
		mimetype = "application/octet-stream"
	}

	backend := ioc.GetDependency[storage.Backend](scope)
	digest, err := backend.StoreObject(ctx, command.SessionId, buffer, storage.ObjectMeta{
		OriginalName: progress.FileName,
		Mimetype:     mimetype,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store object: %w", err)
	}

	controller := ioc.GetDependency[*admission.Controller](scope)
	controller.UnregisterUpload(command.SessionId)

	transferService.Cleanup(ctx, command.SessionId)

	return &CompleteUploadResponse{
		Digest: digest,
		Size:   int64(len(buffer)),
	}, nil
}
