package worker

type Worker struct {
	pool       *jobChannelPool
	jobChannel chan Job
}

func NewWorker(pool *jobChannelPool) *Worker {
	return &Worker{
		pool:       pool,
		jobChannel: make(chan Job),
	}
}

// Start loops until a stop job arrives. After each job the worker reports the
// user as free and returns itself to the idle list.
func (w *Worker) Start() {
	go func() {
		w.pool.Release(w.jobChannel)
		for job := range w.jobChannel {
			if job.Type == stopJob {
				w.pool.retire(w.jobChannel)
				return
			}
			job.execute()
			if w.pool.onDone != nil {
				w.pool.onDone(job.key)
			}
			w.pool.Release(w.jobChannel)
		}
	}()
}
