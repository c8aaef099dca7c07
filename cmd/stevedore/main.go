package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/The127/ioc"
	"github.com/avast/retry-go"
	"github.com/the127/stevedore/internal/args"
	"github.com/the127/stevedore/internal/config"
	"github.com/the127/stevedore/internal/logging"
	"github.com/the127/stevedore/internal/server"
	"github.com/the127/stevedore/internal/services/kv"
	"github.com/the127/stevedore/internal/services/scheduler"
	"github.com/the127/stevedore/internal/setup"
)

func main() {
	args.Init()
	logging.Init()
	config.Init()

	dc := ioc.NewDependencyCollection()

	kvStore := setup.Kv(dc, config.C.Kv)

	err := retry.Do(
		func() error {
			return kvStore.Set(context.Background(), "stevedore:startup", time.Now().UTC().Format(time.RFC3339), kv.WithExpiration(time.Minute))
		},
		retry.Attempts(5),
		retry.Delay(time.Second*5),
		retry.DelayType(retry.FixedDelay),
		retry.OnRetry(func(n uint, err error) {
			logging.Logger.Warnf("failed to reach kv store: %s, retrying in 5 seconds", err)
		}),
	)
	if err != nil {
		logging.Logger.Panicf("failed to reach kv store: %s", err)
	}

	setup.Blob(dc, config.C.Blob)
	core := setup.Services(dc, config.C, kvStore)
	setup.Mediator(dc)

	dp := dc.BuildProvider()

	sched := scheduler.New(core.Clock)
	sched.Add(scheduler.Task{
		Name:     "memory-monitor",
		Interval: time.Duration(config.C.Telemetry.SampleIntervalSecs) * time.Second,
		Run: func(ctx context.Context) {
			core.Controller.CheckMemoryUsage()
		},
	})
	sched.Add(scheduler.Task{
		Name:     "session-janitor",
		Interval: time.Duration(config.C.Janitor.SweepIntervalSecs) * time.Second,
		Run: func(ctx context.Context) {
			swept := core.Transfer.SweepStale(ctx)
			if swept > 0 {
				logging.Logger.Infof("janitor: swept %d stale sessions", swept)
			}
		},
	})
	sched.Start()

	server.Serve(dp, config.C.Server)
	waitForExit()

	sched.Stop()
	core.Transfer.Stop()
}

func waitForExit() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}
