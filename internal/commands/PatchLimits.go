package commands

import (
	"context"

	"github.com/The127/ioc"
	"github.com/the127/stevedore/internal/middlewares"
	"github.com/the127/stevedore/internal/services/admission"
)

type PatchLimits struct {
	MaxFileSize          *int64
	MaxConcurrentUploads *int
	MaxTotalMemory       *int64
	StreamingThreshold   *int64
	WarningPct           *float64
	CriticalPct          *float64
	EmergencyPct         *float64
}

type PatchLimitsResponse struct {
	Limits admission.Limits
}

func HandlePatchLimits(ctx context.Context, command PatchLimits) (*PatchLimitsResponse, error) {
	scope := middlewares.GetScope(ctx)

	controller := ioc.GetDependency[*admission.Controller](scope)
	limits := controller.Limits()

	if command.MaxFileSize != nil {
		limits.MaxFileSize = *command.MaxFileSize
	}

	if command.MaxConcurrentUploads != nil {
		limits.MaxConcurrentUploads = *command.MaxConcurrentUploads
	}

	if command.MaxTotalMemory != nil {
		limits.MaxTotalMemory = *command.MaxTotalMemory
	}

	if command.StreamingThreshold != nil {
		limits.StreamingThreshold = *command.StreamingThreshold
	}

	if command.WarningPct != nil {
		limits.WarningPct = *command.WarningPct
	}

	if command.CriticalPct != nil {
		limits.CriticalPct = *command.CriticalPct
	}

	if command.EmergencyPct != nil {
		limits.EmergencyPct = *command.EmergencyPct
	}

	controller.UpdateLimits(limits)

	return &PatchLimitsResponse{
		Limits: controller.Limits(),
	}, nil
}
