package workers

type Workers struct {
	workers []Worker
}

// NewWorkers bundles background workers so the application can start them
// with a single Run call.
func NewWorkers(ws ...Worker) *Workers {
	return &Workers{workers: ws}
}

func (w *Workers) Run() {
	for _, worker := range w.workers {
		worker.Run()
	}
}
