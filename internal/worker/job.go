package worker

import (
	"context"
	"fmt"
	"log"
)

type jobType int

const (
	runJob jobType = iota
	stopJob
)

// Job is one unit of work tied to a user identity.
type Job struct {
	Type jobType
	key  string
	ctx  context.Context
	fn   func(ctx context.Context) error
	err  *error // receives the outcome before done closes, may be nil
	done chan struct{}
}

// execute runs the job unless its caller already gave up, then signals done.
// A panic in fn is reported as the job's error.
func (j Job) execute() {
	defer close(j.done)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[worker] job for %s panicked: %v", j.key, r)
			j.setErr(fmt.Errorf("%w: job for %s: %v", ErrJobPanicked, j.key, r))
		}
	}()
	if j.ctx != nil && j.ctx.Err() != nil {
		debugLog("[worker] skip cancelled job for %s", j.key)
		j.setErr(j.ctx.Err())
		return
	}
	j.setErr(j.fn(j.ctx))
}

func (j Job) setErr(err error) {
	if j.err != nil {
		*j.err = err
	}
}
