// Package scheduler provides an in-process registry of named one-shot
// jobs with replace-existing and cancel-by-name semantics.
package scheduler

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

type Scheduler struct {
	mu      sync.Mutex
	jobs    map[string]*time.Timer
	stopped bool
}

func New() *Scheduler {
	return &Scheduler{jobs: map[string]*time.Timer{}}
}

// Once schedules fn to run after delay under the given id. An existing
// job with the same id is replaced, its timer stopped.
func (s *Scheduler) Once(id string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		log.WithField("job_id", id).Warn("scheduler is stopped, job dropped")
		return
	}
	if timer, ok := s.jobs[id]; ok {
		timer.Stop()
		log.WithField("job_id", id).Debug("replacing existing job")
	}
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		current, live := s.jobs[id]
		// a replaced job must not run nor unregister its successor
		if live && current == timer {
			delete(s.jobs, id)
		} else {
			live = false
		}
		s.mu.Unlock()
		if !live {
			return
		}
		defer func() {
			if r := recover(); r != nil {
				log.WithField("job_id", id).Errorf("job panicked: %v", r)
			}
		}()
		fn()
	})
	s.jobs[id] = timer
}

// Cancel removes the named job if it is still pending. Cancelling a fired
// or unknown job is a no-op.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	timer, ok := s.jobs[id]
	if !ok {
		return false
	}
	timer.Stop()
	delete(s.jobs, id)
	return true
}

func (s *Scheduler) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[id]
	return ok
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = false
	return nil
}

// Stop drops all pending jobs. Their state is recoverable: the expiry
// backstop re-applies timeouts from persisted records after restart.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for id, timer := range s.jobs {
		timer.Stop()
		delete(s.jobs, id)
	}
	return nil
}
