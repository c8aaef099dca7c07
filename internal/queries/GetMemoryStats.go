package queries

import (
	"context"
	"time"

	"github.com/The127/ioc"
	"github.com/the127/stevedore/internal/middlewares"
	"github.com/the127/stevedore/internal/services/admission"
	"github.com/the127/stevedore/internal/utils/pointer"
)

type GetMemoryStats struct{}

type GetMemoryStatsResponse struct {
	Snapshot admission.Snapshot
	Limits   admission.Limits

	// LimitsResetAt is set while emergency-halved limits are in effect.
	LimitsResetAt *time.Time
}

func HandleGetMemoryStats(ctx context.Context, query GetMemoryStats) (*GetMemoryStatsResponse, error) {
	scope := middlewares.GetScope(ctx)

	controller := ioc.GetDependency[*admission.Controller](scope)

	response := &GetMemoryStatsResponse{
		Snapshot: controller.CheckMemoryUsage(),
		Limits:   controller.Limits(),
	}

	if resetAt, ok := controller.PendingReset(); ok {
		response.LimitsResetAt = pointer.To(resetAt)
	}

	return response, nil
}
