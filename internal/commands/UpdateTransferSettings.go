package commands

import (
	"context"

	"github.com/The127/ioc"
	"github.com/the127/stevedore/internal/middlewares"
	"github.com/the127/stevedore/internal/services/transfer"
)

type UpdateTransferSettings struct {
	Settings transfer.Settings
}

type UpdateTransferSettingsResponse struct {
	Settings transfer.Settings
}

func HandleUpdateTransferSettings(ctx context.Context, command UpdateTransferSettings) (*UpdateTransferSettingsResponse, error) {
	scope := middlewares.GetScope(ctx)

	transferService := ioc.GetDependency[*transfer.Service](scope)
	transferService.UpdateSettings(command.Settings)

	return &UpdateTransferSettingsResponse{
		Settings: transferService.Settings(),
	}, nil
}
