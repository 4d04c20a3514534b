package worker

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ErrDispatcherBusy is returned when the inbound queue is full.
var ErrDispatcherBusy = errors.New("dispatcher queue is full")

// ErrDispatcherStopped is returned for submissions after Stop.
var ErrDispatcherStopped = errors.New("dispatcher stopped")

// ErrJobPanicked wraps the value recovered from a panicking job.
var ErrJobPanicked = errors.New("job panicked")

type DispatcherConfig struct {
	MinWorkers  int
	MaxWorkers  int
	QueueSize   int
	IdleTimeout time.Duration
}

type userQueue struct {
	jobs     []Job
	enqueued bool // is in the ready list
	busy     bool // has a job on a worker
}

// Dispatcher runs jobs on a worker pool. Jobs sharing a key run one at a time
// in submission order; keys are served round robin.
type Dispatcher struct {
	pool     *jobChannelPool
	jobQueue chan Job
	wake     chan struct{}
	quit     chan struct{}
	stopOnce sync.Once
	anonSeq  atomic.Int64

	mu        sync.Mutex
	queues    map[string]*userQueue // job queue for each user
	ready     *list.List            // LRU queue storing user keys
	positions map[string]*list.Element
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	d := &Dispatcher{
		jobQueue:  make(chan Job, cfg.QueueSize),
		wake:      make(chan struct{}, 1),
		quit:      make(chan struct{}),
		queues:    make(map[string]*userQueue),
		ready:     list.New(),
		positions: make(map[string]*list.Element),
	}
	d.pool = newJobChannelPool(cfg.MinWorkers, cfg.MaxWorkers, cfg.IdleTimeout, d.finish)

	// warm up workers
	for i := 0; i < d.pool.min; i++ {
		d.pool.spawnWorker()
	}

	go d.run()
	return d
}

// Submit queues fn for key and returns a channel closed once fn has run. An
// empty key is never serialized with other jobs.
func (d *Dispatcher) Submit(ctx context.Context, key string, fn func(ctx context.Context)) (<-chan struct{}, error) {
	return d.submit(ctx, key, func(ctx context.Context) error {
		fn(ctx)
		return nil
	}, nil)
}

// Do submits fn and waits for it, or for ctx to end. A panic inside fn is
// returned as an error.
func (d *Dispatcher) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var runErr error
	done, err := d.submit(ctx, key, fn, &runErr)
	if err != nil {
		return err
	}
	select {
	case <-done:
		return runErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) submit(ctx context.Context, key string, fn func(ctx context.Context) error, errp *error) (<-chan struct{}, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if key == "" {
		key = fmt.Sprintf("anonymous-%d", d.anonSeq.Add(1))
	}
	select {
	case <-d.quit:
		return nil, ErrDispatcherStopped
	default:
	}
	job := Job{Type: runJob, key: key, ctx: ctx, fn: fn, err: errp, done: make(chan struct{})}
	select {
	case d.jobQueue <- job:
		return job.done, nil
	default:
		return nil, ErrDispatcherBusy
	}
}

// Stop ends the dispatch loop. Jobs already on a worker finish.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.quit)
		d.pool.stop()
	})
}

func (d *Dispatcher) run() {
	for {
		// dispatch one job of the first free user in the LRU queue
		if d.dispatchOne() {
			select {
			case job := <-d.jobQueue: // non-congestion
				d.enqueueJob(job)
			case <-d.quit:
				return
			default:
			}
			continue
		}
		select {
		case job := <-d.jobQueue:
			d.enqueueJob(job)
		case <-d.wake:
		case <-d.quit:
			return
		}
	}
}

func (d *Dispatcher) enqueueJob(job Job) {
	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[job.key]
	if q == nil {
		q = &userQueue{}
		d.queues[job.key] = q
	}
	q.jobs = append(q.jobs, job)
	if q.enqueued || q.busy {
		// already waiting, or it rejoins when the running job ends
		return
	}
	d.joinReadyLocked(job.key, q)
}

// dispatchOne hands the next job of the front user to a worker.
func (d *Dispatcher) dispatchOne() bool {
	d.mu.Lock()
	elem := d.ready.Front()
	if elem == nil {
		d.mu.Unlock()
		return false
	}
	key := elem.Value.(string)
	q := d.queues[key]
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	q.busy = true
	// the user waits outside the ready list until its job finishes
	d.leaveReadyLocked(key, q)
	d.mu.Unlock()

	workerChan := d.pool.acquire()
	debugLog("[dispatcher] assign job for %s to worker %p", key, workerChan)
	workerChan <- job
	return true
}

// finish is called by a worker after a job of key ran.
func (d *Dispatcher) finish(key string) {
	d.mu.Lock()
	q := d.queues[key]
	if q != nil {
		q.busy = false
		if len(q.jobs) > 0 {
			d.joinReadyLocked(key, q)
		} else {
			delete(d.queues, key)
		}
	}
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) joinReadyLocked(key string, q *userQueue) {
	q.enqueued = true
	d.positions[key] = d.ready.PushBack(key)
}

func (d *Dispatcher) leaveReadyLocked(key string, q *userQueue) {
	if elem, ok := d.positions[key]; ok {
		d.ready.Remove(elem)
		delete(d.positions, key)
	}
	q.enqueued = false
}
