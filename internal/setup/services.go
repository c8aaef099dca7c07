package setup

import (
	"context"

	"github.com/The127/ioc"
	"github.com/google/uuid"
	"github.com/the127/stevedore/internal/config"
	"github.com/the127/stevedore/internal/events"
	"github.com/the127/stevedore/internal/logging"
	"github.com/the127/stevedore/internal/metrics"
	"github.com/the127/stevedore/internal/services/admission"
	"github.com/the127/stevedore/internal/services/clock"
	"github.com/the127/stevedore/internal/services/kv"
	"github.com/the127/stevedore/internal/services/memtelemetry"
	"github.com/the127/stevedore/internal/services/transfer"
)

type CoreServices struct {
	Clock      clock.Service
	Controller *admission.Controller
	Transfer   *transfer.Service
}

// Services builds the admission controller and the transfer service and
// wires them together. The controller sheds load by cancelling sessions,
// the transfer service reports finished sessions back to the controller,
// and the kv store is flushed under critical memory pressure.
func Services(dc *ioc.DependencyCollection, c config.Config, kvStore kv.Store) CoreServices {
	clockService := clock.NewClockService()
	telemetry := memtelemetry.NewService()
	sink := events.NewFanout(events.NewLogSink(), metrics.NewSink())

	controller := admission.NewController(c.Limits, telemetry, clockService, sink)

	transferService, err := transfer.NewService(c.Transfer, c.Janitor, clockService, sink, kvStore)
	if err != nil {
		logging.Logger.Panicf("failed to create transfer service: %v", err)
	}

	controller.SetCanceller(func(uploadId uuid.UUID) {
		err := transferService.Cancel(context.Background(), uploadId)
		if err != nil {
			logging.Logger.Warnf("failed to cancel upload %s during load shedding: %v", uploadId, err)
		}
	})

	if flusher, ok := kvStore.(kv.Flusher); ok {
		controller.RegisterPressureHook(flusher.Flush)
	}

	transferService.SetCleanupHook(controller.UnregisterUpload)

	ioc.RegisterSingleton(dc, func(_ *ioc.DependencyProvider) clock.Service {
		return clockService
	})
	ioc.RegisterSingleton(dc, func(_ *ioc.DependencyProvider) memtelemetry.Service {
		return telemetry
	})
	ioc.RegisterSingleton(dc, func(_ *ioc.DependencyProvider) events.Sink {
		return sink
	})
	ioc.RegisterSingleton(dc, func(_ *ioc.DependencyProvider) *admission.Controller {
		return controller
	})
	ioc.RegisterSingleton(dc, func(_ *ioc.DependencyProvider) *transfer.Service {
		return transferService
	})

	return CoreServices{
		Clock:      clockService,
		Controller: controller,
		Transfer:   transferService,
	}
}
