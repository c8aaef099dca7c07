package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/the127/stevedore/internal/services/clock"
)

type SchedulerTestSuite struct {
	suite.Suite

	scheduler *Scheduler
	setTime   clock.TimeSetterFn
	now       time.Time
}

func TestSchedulerTestSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(SchedulerTestSuite))
}

func (s *SchedulerTestSuite) SetupTest() {
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clockService, setTime := clock.NewMockService(s.now)
	s.setTime = setTime
	s.scheduler = New(clockService)
}

func (s *SchedulerTestSuite) TestRunsTaskOnTick() {
	// arrange
	var runs atomic.Int32
	s.scheduler.Add(Task{
		Name:     "test-task",
		Interval: time.Minute,
		Run: func(_ context.Context) {
			runs.Add(1)
		},
	})

	// act
	s.scheduler.Start()

	// assert
	s.Require().Eventually(func() bool {
		s.setTime(s.now.Add(time.Minute))
		return runs.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	s.scheduler.Stop()
}

func (s *SchedulerTestSuite) TestStopIsIdempotent() {
	// arrange
	s.scheduler.Add(Task{
		Name:     "test-task",
		Interval: time.Minute,
		Run:      func(_ context.Context) {},
	})
	s.scheduler.Start()

	// act
	s.scheduler.Stop()
	s.scheduler.Stop()
}

func (s *SchedulerTestSuite) TestStartTwiceSpawnsTasksOnce() {
	// arrange
	var runs atomic.Int32
	s.scheduler.Add(Task{
		Name:     "test-task",
		Interval: time.Minute,
		Run: func(_ context.Context) {
			runs.Add(1)
		},
	})

	// act
	s.scheduler.Start()
	s.scheduler.Start()

	// assert
	s.Require().Eventually(func() bool {
		s.setTime(s.now.Add(time.Minute))
		return runs.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	s.scheduler.Stop()
}
