package queue

import (
	"context"
	"regexp"
	"sort"
	"sync"

	"github.com/joshu-sajeev/jobq/common"
)

var queueNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,128}$`)

// Registry maps queue names to shared handles over one broker. It is built
// once at startup and passed to producers and consumers.
type Registry struct {
	broker Broker
	opts   Options

	mu     sync.Mutex
	queues map[string]*Queue
}

func NewRegistry(broker Broker, opts Options) *Registry {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Registry{broker: broker, opts: opts, queues: make(map[string]*Queue)}
}

// Get returns the handle for name, creating it on first use. Repeated calls
// with the same name return the same handle.
func (r *Registry) Get(name string) (*Queue, error) {
	if !queueNamePattern.MatchString(name) {
		return nil, &common.InvalidArgumentError{Arg: "queueName", Reason: "must match " + queueNamePattern.String()}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if q, ok := r.queues[name]; ok {
		return q, nil
	}
	q := &Queue{name: name, broker: r.broker, opts: r.opts}
	r.queues[name] = q
	return q, nil
}

// Names lists the queues resolved so far, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.queues))
	for name := range r.queues {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Queues lists every queue the broker knows about, falling back to the
// queues resolved in this process when the broker cannot enumerate them.
func (r *Registry) Queues(ctx context.Context) ([]string, error) {
	if l, ok := r.broker.(QueueLister); ok {
		return l.Queues(ctx)
	}
	return r.Names(), nil
}

func (r *Registry) Options() Options { return r.opts }

func (r *Registry) Ping(ctx context.Context) error {
	return r.broker.Ping(ctx)
}

func (r *Registry) Close() error {
	return r.broker.Close()
}
