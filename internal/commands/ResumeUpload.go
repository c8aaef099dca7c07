package commands

import (
	"context"

	"github.com/The127/ioc"
	"github.com/google/uuid"
	"github.com/the127/stevedore/internal/middlewares"
	"github.com/the127/stevedore/internal/services/transfer"
	"github.com/the127/stevedore/internal/storage"
)

type ResumeUpload struct {
	SessionId uuid.UUID
}

type ResumeUploadResponse struct {
	Progress transfer.Progress
}

func HandleResumeUpload(ctx context.Context, command ResumeUpload) (*ResumeUploadResponse, error) {
	scope := middlewares.GetScope(ctx)

	transferService := ioc.GetDependency[*transfer.Service](scope)
	backend := ioc.GetDependency[storage.Backend](scope)

	err := transferService.Resume(ctx, command.SessionId, stagingTransport(backend))
	if err != nil {
		return nil, mapTransferError(err)
	}

	progress, err := transferService.Progress(command.SessionId)
	if err != nil {
		return nil, mapTransferError(err)
	}

	return &ResumeUploadResponse{
		Progress: *progress,
	}, nil
}
