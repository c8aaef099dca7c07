package queries

import (
	"context"

	"github.com/The127/ioc"
	"github.com/the127/stevedore/internal/middlewares"
	"github.com/the127/stevedore/internal/services/transfer"
)

type GetTransferSettings struct{}

type GetTransferSettingsResponse struct {
	Settings transfer.Settings
}

func HandleGetTransferSettings(ctx context.Context, query GetTransferSettings) (*GetTransferSettingsResponse, error) {
	scope := middlewares.GetScope(ctx)

	transferService := ioc.GetDependency[*transfer.Service](scope)

	return &GetTransferSettingsResponse{
		Settings: transferService.Settings(),
	}, nil
}
