// Package workerpool is a small tomb-supervised pool of goroutines pulling
// tasks off a shared channel, factored out so any caller (the gateway, a
// future bench harness) can reuse it.
package workerpool

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

// DefaultTaskChanSize is used when no explicit buffer size is supplied via
// NewSized.
const DefaultTaskChanSize = 100

// Function is the work performed per task. Returning a non-nil error kills
// the owning tomb, taking down the rest of the pool with it.
type Function = func(t *tomb.Tomb, task any) error

// Pool is a fixed number of workers draining a shared task channel.
type Pool struct {
	n     int
	tasks chan any
}

// New returns a pool of size workers with a default-sized task buffer.
func New(size int) Pool {
	return NewSized(size, DefaultTaskChanSize)
}

// NewSized returns a pool of size workers with an explicit task buffer.
func NewSized(size, bufferSize int) Pool {
	return Pool{
		tasks: make(chan any, bufferSize),
		n:     size,
	}
}

// AddTask enqueues a task for the next free worker.
func (p *Pool) AddTask(task any) {
	p.tasks <- task
}

// Setup spawns the pool's n workers under t. Each runs until t is dying.
func (p *Pool) Setup(t *tomb.Tomb, work Function) {
	log.Info().Int("workers", p.n).Msg("workerpool: starting")
	for i := 0; i < p.n; i++ {
		t.Go(func() error {
			return p.worker(t, work)
		})
	}
}

// worker drains tasks until t is dying or work returns an error, which
// kills the owning tomb and the rest of the pool with it.
func (p *Pool) worker(t *tomb.Tomb, work Function) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case task := <-p.tasks:
			if err := work(t, task); err != nil {
				log.Error().Err(err).Msg("workerpool: worker exiting")
				return err
			}
		}
	}
}
