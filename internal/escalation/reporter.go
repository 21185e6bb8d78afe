package escalation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joshu-sajeev/jobq/common"
	"github.com/sirupsen/logrus"
)

type tagsKey struct{}

// WithTags attaches report tags to ctx. Tags from nested calls are merged.
func WithTags(ctx context.Context, tags map[string]string) context.Context {
	merged := make(map[string]string, len(tags))
	for k, v := range TagsFrom(ctx) {
		merged[k] = v
	}
	for k, v := range tags {
		merged[k] = v
	}
	return context.WithValue(ctx, tagsKey{}, merged)
}

func TagsFrom(ctx context.Context) map[string]string {
	tags, _ := ctx.Value(tagsKey{}).(map[string]string)
	return tags
}

// Reporter is the only way the processing loop talks to a sink. Report never
// panics and never returns an error.
type Reporter struct {
	sink Sink
	log  logrus.FieldLogger
}

func NewReporter(sink Sink, log logrus.FieldLogger) *Reporter {
	if sink == nil {
		sink = NopSink{}
	}
	return &Reporter{sink: sink, log: log}
}

func (r *Reporter) Report(ctx context.Context, err error) {
	if err == nil {
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.swallow(&common.SinkTransportError{
				Sink: sinkName(r.sink),
				Err:  fmt.Errorf("panic: %v", rec),
			})
		}
	}()

	var serr error
	if ts, ok := r.sink.(TaggedSink); ok && len(TagsFrom(ctx)) > 0 {
		serr = ts.CaptureExceptionWithTags(err, TagsFrom(ctx))
	} else {
		serr = r.sink.CaptureException(err)
	}
	if serr != nil {
		r.swallow(serr)
	}
}

func (r *Reporter) swallow(err error) {
	var transport *common.SinkTransportError
	if !errors.As(err, &transport) {
		transport = &common.SinkTransportError{Sink: sinkName(r.sink), Err: err}
	}
	r.log.WithError(transport).Warn("error report could not be delivered")
}

// Flush waits up to timeout for buffered reports to be sent.
func (r *Reporter) Flush(timeout time.Duration) bool {
	if f, ok := r.sink.(flusher); ok {
		return f.Flush(timeout)
	}
	return true
}
