package worker

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/joshu-sajeev/jobq/common"
	"github.com/joshu-sajeev/jobq/internal/escalation"
	"github.com/joshu-sajeev/jobq/internal/models"
	"github.com/joshu-sajeev/jobq/internal/queue"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// FailureArchive keeps a record of terminally failed jobs.
type FailureArchive interface {
	Archive(ctx context.Context, job *models.Job, cause error) error
}

// Settings are the defaults every registration starts with.
type Settings struct {
	Lease       time.Duration
	ClaimWait   time.Duration
	ErrorPause  time.Duration
	Concurrency int
	JobTimeout  time.Duration
}

type Deps struct {
	Reporter *escalation.Reporter
	Archive  FailureArchive
	Log      logrus.FieldLogger
}

// Worker runs one processor registration: a single fetcher blocks on the
// broker and hands jobs to idle handlers.
type Worker struct {
	queue    *queue.Queue
	process  Processor
	onFailed FailureHandler

	concurrency int
	jobTimeout  time.Duration
	lease       time.Duration
	claimWait   time.Duration
	errorPause  time.Duration

	reporter *escalation.Reporter
	archive  FailureArchive
	log      logrus.FieldLogger

	ready chan struct{}
	jobs  chan *models.Job
	wg    sync.WaitGroup
}

func New(q *queue.Queue, process Processor, settings Settings, deps Deps, opts ...Option) (*Worker, error) {
	if process == nil {
		return nil, &common.InvalidArgumentError{Arg: "processor", Reason: "must not be nil"}
	}

	w := &Worker{
		queue:       q,
		process:     process,
		onFailed:    noopFailureHandler,
		concurrency: max(settings.Concurrency, 1),
		jobTimeout:  settings.JobTimeout,
		lease:       settings.Lease,
		claimWait:   settings.ClaimWait,
		errorPause:  settings.ErrorPause,
		reporter:    deps.Reporter,
		archive:     deps.Archive,
		log:         deps.Log,
	}
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}

	if w.lease <= 0 {
		w.lease = time.Minute
	}
	if w.claimWait <= 0 {
		w.claimWait = time.Second
	}
	if w.errorPause <= 0 {
		w.errorPause = time.Second
	}
	if w.log == nil {
		w.log = logrus.StandardLogger()
	}
	if w.reporter == nil {
		w.reporter = escalation.NewReporter(nil, w.log)
	}
	w.log = w.log.WithField("queue", q.Name())

	return w, nil
}

func (w *Worker) Queue() *queue.Queue { return w.queue }

// Start launches the fetcher and handlers. They run until ctx is cancelled;
// jobs already handed to a processor are finished first.
func (w *Worker) Start(ctx context.Context) {
	w.ready = make(chan struct{})
	w.jobs = make(chan *models.Job)

	w.wg.Add(1 + w.concurrency)
	go func() {
		defer w.wg.Done()
		w.fetch(ctx)
	}()
	for i := 0; i < w.concurrency; i++ {
		go func() {
			defer w.wg.Done()
			w.handle(ctx)
		}()
	}
}

// Wait blocks until the fetcher and every handler have returned.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) fetch(ctx context.Context) {
	defer close(w.jobs)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.ready:
		}

		job, ok := w.next(ctx)
		if !ok {
			return
		}
		w.jobs <- job
	}
}

// next blocks until a job is claimed. It returns false once ctx is done.
func (w *Worker) next(ctx context.Context) (*models.Job, bool) {
	for {
		job, err := w.queue.Claim(ctx, w.claimWait, w.lease)
		if job != nil {
			// a handler is already waiting, so a job claimed during shutdown still runs
			return job, true
		}
		if ctx.Err() != nil {
			return nil, false
		}
		if err != nil {
			w.transportError(ctx, err)
			select {
			case <-ctx.Done():
				return nil, false
			case <-time.After(w.errorPause):
			}
		}
	}
}

func (w *Worker) handle(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case w.ready <- struct{}{}:
		}

		job, ok := <-w.jobs
		if !ok {
			return
		}
		// broker bookkeeping must finish even while the pool is stopping
		w.run(context.WithoutCancel(ctx), job)
	}
}

func (w *Worker) run(ctx context.Context, job *models.Job) {
	ctx = escalation.WithTags(ctx, map[string]string{
		"queue":   job.Queue,
		"job_id":  job.ID,
		"attempt": strconv.Itoa(job.AttemptsMade),
	})

	// the previous holder of the final attempt died; do not run it again
	if job.AttemptsMade > job.MaxAttempts {
		w.fail(ctx, job, Outcome{Kind: TerminalFailure, Err: errors.WithStack(common.ErrLeaseExpired)})
		return
	}

	outcome := classify(job, w.invoke(ctx, job))
	if outcome.Kind == Success {
		w.log.Infof("%s job %s (attempt=%d) succeeded", w.queue.Name(), job.ID, job.AttemptsMade)
		if err := w.queue.Complete(ctx, job); err != nil {
			w.settleError(ctx, job, err)
		}
		return
	}
	w.fail(ctx, job, outcome)
}

func (w *Worker) invoke(ctx context.Context, job *models.Job) (err error) {
	if w.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.jobTimeout)
		defer cancel()
	}

	stop := w.heartbeat(ctx, job)
	defer stop()

	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Errorf("processor panic: %v", rec)
		}
	}()

	if err := w.process(ctx, job.Payload); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// heartbeat extends the job's lease every lease/2 until the returned func is
// called.
func (w *Worker) heartbeat(ctx context.Context, job *models.Job) func() {
	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		ticker := time.NewTicker(w.lease / 2)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				err := w.queue.Extend(ctx, job, w.lease)
				if errors.Is(err, queue.ErrNotInFlight) {
					w.log.Warnf("%s job %s lost its lease while running", w.queue.Name(), job.ID)
					return
				}
				if err != nil {
					w.log.WithError(err).Warnf("could not extend lease of job %s", job.ID)
				}
			}
		}
	}()

	return func() {
		close(done)
		<-stopped
	}
}

func (w *Worker) fail(ctx context.Context, job *models.Job, outcome Outcome) {
	cause := queue.NormalizeError(outcome.Err)
	w.log.Errorf("%s job %s (attempt=%d) failed: %+v", w.queue.Name(), job.ID, job.AttemptsMade, cause)

	if outcome.Kind == RetryableFailure {
		w.reporter.Report(ctx, &common.RetryableJobError{
			Queue:       job.Queue,
			JobID:       job.ID,
			Attempt:     job.AttemptsMade,
			MaxAttempts: job.MaxAttempts,
			Err:         cause,
		})
		if err := w.queue.Retry(ctx, job, w.queue.RetryDelay(job.AttemptsMade)); err != nil {
			w.settleError(ctx, job, err)
		}
		return
	}

	w.reporter.Report(ctx, &common.TerminalJobError{
		Queue:       job.Queue,
		JobID:       job.ID,
		Attempt:     job.AttemptsMade,
		MaxAttempts: job.MaxAttempts,
		Err:         cause,
	})
	w.escalate(ctx, job, cause)
}

// escalate parks the job in the dead list, records it and runs the failure
// handler. The job is terminal whatever the handler does.
func (w *Worker) escalate(ctx context.Context, job *models.Job, cause error) {
	if err := w.queue.Bury(ctx, job); err != nil {
		w.settleError(ctx, job, err)
		if errors.Is(err, queue.ErrNotInFlight) {
			return
		}
	}

	if w.archive != nil {
		if err := w.archive.Archive(ctx, job, cause); err != nil {
			w.log.WithError(err).Warnf("could not archive failed job %s", job.ID)
			w.reporter.Report(ctx, err)
		}
	}

	if err := w.recoverJob(ctx, job, cause); err != nil {
		w.log.Errorf("job recovery unsuccessful: %+v", err)
		w.reporter.Report(ctx, err)
	}

	if err := w.queue.Purge(ctx, job); err != nil {
		w.transportError(ctx, err)
	}
}

func (w *Worker) recoverJob(ctx context.Context, job *models.Job, cause error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Errorf("failure handler panic: %v", rec)
		}
	}()

	if err := w.onFailed(ctx, job.Payload, cause); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// settleError handles a failed Complete, Retry or Bury. A job whose lease was
// lost belongs to whoever claimed it next, so it is only logged.
func (w *Worker) settleError(ctx context.Context, job *models.Job, err error) {
	if errors.Is(err, queue.ErrNotInFlight) {
		w.log.Warnf("%s job %s lost its lease, leaving it to the current holder", w.queue.Name(), job.ID)
		return
	}
	w.transportError(ctx, err)
}

func (w *Worker) transportError(ctx context.Context, err error) {
	err = errors.WithStack(queue.NormalizeError(err))
	w.log.Errorf("error with job queue %s: %+v", w.queue.Name(), err)
	w.reporter.Report(ctx, err)
}
