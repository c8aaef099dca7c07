// Package scheduler runs named periodic tasks with an explicit start/stop
// lifecycle, so the memory monitor and the session janitor never leak timers
// past process shutdown or test teardown.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/the127/stevedore/internal/logging"
	"github.com/the127/stevedore/internal/services/clock"
)

type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context)
}

type Scheduler struct {
	clock clock.Service

	mu      sync.Mutex
	tasks   []Task
	stopCh  chan struct{}
	wg      sync.WaitGroup
	started bool
	stopped bool
}

func New(clockService clock.Service) *Scheduler {
	return &Scheduler{
		clock:  clockService,
		stopCh: make(chan struct{}),
	}
}

func (s *Scheduler) Add(task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, task)
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}
	s.started = true

	for _, task := range s.tasks {
		s.wg.Add(1)
		go s.run(task)
	}
}

func (s *Scheduler) run(task Task) {
	defer s.wg.Done()

	ticker := s.clock.NewTicker(task.Interval)
	defer ticker.Stop()

	logging.Logger.Infof("scheduler: task %q every %s", task.Name, task.Interval)

	for {
		select {
		case <-ticker.C():
			task.Run(context.Background())

		case <-s.stopCh:
			logging.Logger.Infof("scheduler: task %q stopped", task.Name)
			return
		}
	}
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
}
