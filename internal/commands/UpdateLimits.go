package commands

import (
	"context"

	"github.com/The127/ioc"
	"github.com/the127/stevedore/internal/middlewares"
	"github.com/the127/stevedore/internal/services/admission"
)

type UpdateLimits struct {
	Limits admission.Limits
}

type UpdateLimitsResponse struct {
	Limits admission.Limits
}

func HandleUpdateLimits(ctx context.Context, command UpdateLimits) (*UpdateLimitsResponse, error) {
	scope := middlewares.GetScope(ctx)

	controller := ioc.GetDependency[*admission.Controller](scope)
	controller.UpdateLimits(command.Limits)

	return &UpdateLimitsResponse{
		Limits: controller.Limits(),
	}, nil
}
