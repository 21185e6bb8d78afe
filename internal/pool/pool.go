package pool

import (
	"context"
	"sync"
	"time"

	"github.com/joshu-sajeev/jobq/internal/queue"
	"github.com/joshu-sajeev/jobq/internal/worker"
	"github.com/sirupsen/logrus"
)

// WorkerPool owns every processor registration of a process and the janitor
// that hands expired leases back to their queues.
type WorkerPool struct {
	registry     *queue.Registry
	settings     worker.Settings
	deps         worker.Deps
	reapInterval time.Duration
	log          logrus.FieldLogger

	mu      sync.Mutex
	workers []*worker.Worker
	started bool
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewWorkerPool(registry *queue.Registry, settings worker.Settings, deps worker.Deps, reapInterval time.Duration) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	if deps.Log == nil {
		deps.Log = logrus.StandardLogger()
	}
	if reapInterval <= 0 {
		reapInterval = 30 * time.Second
	}
	return &WorkerPool{
		registry:     registry,
		settings:     settings,
		deps:         deps,
		reapInterval: reapInterval,
		log:          deps.Log,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Process registers processor for the named queue. Registering after Start
// begins consuming immediately.
func (p *WorkerPool) Process(name string, processor worker.Processor, opts ...worker.Option) error {
	q, err := p.registry.Get(name)
	if err != nil {
		return err
	}

	w, err := worker.New(q, processor, p.settings, p.deps, opts...)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.workers = append(p.workers, w)
	if p.started {
		w.Start(p.ctx)
	}
	return nil
}

func (p *WorkerPool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return
	}
	p.started = true

	for _, w := range p.workers {
		w.Start(p.ctx)
	}

	p.wg.Add(1)
	go p.janitor()
}

func (p *WorkerPool) janitor() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.reap()
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *WorkerPool) reap() {
	for _, name := range p.queues() {
		q, err := p.registry.Get(name)
		if err != nil {
			continue
		}
		n, err := q.Reap(p.ctx)
		if err != nil {
			if p.ctx.Err() == nil {
				p.log.WithError(queue.NormalizeError(err)).Errorf("error with job queue %s: reap failed", name)
			}
			continue
		}
		if n > 0 {
			p.log.Warnf("Recovered %d stuck job(s) on %s", n, name)
		}
	}
}

func (p *WorkerPool) queues() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	seen := make(map[string]bool, len(p.workers))
	var names []string
	for _, w := range p.workers {
		if name := w.Queue().Name(); !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// Stop stops fetching new jobs and waits for running processors to return.
func (p *WorkerPool) Stop() {
	p.cancel()

	p.mu.Lock()
	workers := append([]*worker.Worker(nil), p.workers...)
	p.mu.Unlock()

	for _, w := range workers {
		w.Wait()
	}
	p.wg.Wait()

	if p.deps.Reporter != nil {
		p.deps.Reporter.Flush(5 * time.Second)
	}
}
