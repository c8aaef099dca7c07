package commands

import (
	"context"

	"github.com/The127/ioc"
	"github.com/google/uuid"
	"github.com/the127/stevedore/internal/middlewares"
	"github.com/the127/stevedore/internal/services/transfer"
	"github.com/the127/stevedore/internal/storage"
	"github.com/the127/stevedore/internal/utils"
)

type CancelUpload struct {
	SessionId uuid.UUID
}

type CancelUploadResponse struct{}

func HandleCancelUpload(ctx context.Context, command CancelUpload) (*CancelUploadResponse, error) {
	scope := middlewares.GetScope(ctx)

	transferService := ioc.GetDependency[*transfer.Service](scope)

	err := transferService.Cancel(ctx, command.SessionId)
	if err != nil {
		return nil, mapTransferError(err)
	}

	backend := ioc.GetDependency[storage.Backend](scope)
	utils.IgnoreError(func() error {
		return backend.DiscardStaged(ctx, command.SessionId)
	})

	return &CancelUploadResponse{}, nil
}
