package escalation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joshu-sajeev/jobq/common"
	"github.com/joshu-sajeev/jobq/internal/mocks"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type panickingSink struct{}

func (panickingSink) CaptureException(error) error { panic("sink exploded") }

func TestReporter_Report(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name      string
		setupMock func(*mocks.SinkMock)
		wantWarn  bool
	}{
		{
			name: "delivered",
			setupMock: func(m *mocks.SinkMock) {
				m.On("CaptureException", boom).Return(nil).Once()
			},
		},
		{
			name: "plain transport error is wrapped and swallowed",
			setupMock: func(m *mocks.SinkMock) {
				m.On("CaptureException", boom).Return(errors.New("connection refused")).Once()
			},
			wantWarn: true,
		},
		{
			name: "typed transport error is kept",
			setupMock: func(m *mocks.SinkMock) {
				m.On("CaptureException", boom).
					Return(&common.SinkTransportError{Sink: "custom", Err: errors.New("429")}).Once()
			},
			wantWarn: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, hook := test.NewNullLogger()
			sink := new(mocks.SinkMock)
			tt.setupMock(sink)

			r := NewReporter(sink, log)
			assert.NotPanics(t, func() { r.Report(context.Background(), boom) })

			sink.AssertExpectations(t)
			if !tt.wantWarn {
				assert.Empty(t, hook.AllEntries())
				return
			}

			require.Len(t, hook.AllEntries(), 1)
			entry := hook.LastEntry()
			assert.Equal(t, logrus.WarnLevel, entry.Level)

			var transport *common.SinkTransportError
			assert.ErrorAs(t, entry.Data[logrus.ErrorKey].(error), &transport)
		})
	}
}

func TestReporter_NilErrorIsIgnored(t *testing.T) {
	log, _ := test.NewNullLogger()
	sink := new(mocks.SinkMock)

	NewReporter(sink, log).Report(context.Background(), nil)
	sink.AssertNotCalled(t, "CaptureException", mock.Anything)
}

func TestReporter_SinkPanicIsSwallowed(t *testing.T) {
	log, hook := test.NewNullLogger()
	r := NewReporter(panickingSink{}, log)

	assert.NotPanics(t, func() { r.Report(context.Background(), errors.New("x")) })

	require.NotNil(t, hook.LastEntry())
	err := hook.LastEntry().Data[logrus.ErrorKey].(error)
	assert.Contains(t, err.Error(), "sink exploded")
}

func TestReporter_UsesTagsFromContext(t *testing.T) {
	log, _ := test.NewNullLogger()
	boom := errors.New("boom")

	sink := new(mocks.TaggedSinkMock)
	sink.On("CaptureExceptionWithTags", boom, map[string]string{"queue": "emails", "job_id": "42"}).Return(nil).Once()

	ctx := WithTags(context.Background(), map[string]string{"queue": "emails"})
	ctx = WithTags(ctx, map[string]string{"job_id": "42"})
	NewReporter(sink, log).Report(ctx, boom)

	sink.AssertExpectations(t)
	sink.AssertNotCalled(t, "CaptureException", mock.Anything)
}

func TestReporter_NilSinkDefaultsToNop(t *testing.T) {
	log, hook := test.NewNullLogger()
	r := NewReporter(nil, log)

	r.Report(context.Background(), errors.New("x"))
	assert.Empty(t, hook.AllEntries())
	assert.True(t, r.Flush(time.Millisecond))
}

func TestMultiSink(t *testing.T) {
	boom := errors.New("boom")

	ok := new(mocks.SinkMock)
	ok.On("CaptureException", boom).Return(nil)
	failing := new(mocks.SinkMock)
	failing.On("CaptureException", boom).Return(errors.New("down"))

	err := MultiSink{ok, failing, NopSink{}}.CaptureException(boom)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")

	ok.AssertNumberOfCalls(t, "CaptureException", 1)
	failing.AssertNumberOfCalls(t, "CaptureException", 1)

	assert.NoError(t, MultiSink{ok, NopSink{}}.CaptureException(boom))
}

func TestSentrySink(t *testing.T) {
	var sent []*sentry.Event

	sink, err := NewSentrySink(sentry.ClientOptions{
		Environment: "test",
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			sent = append(sent, event)
			return event
		},
	})
	require.NoError(t, err)

	require.NoError(t, sink.CaptureException(errors.New("payment failed")))
	require.NoError(t, sink.CaptureExceptionWithTags(errors.New("email failed"), map[string]string{"queue": "emails"}))
	assert.True(t, sink.Flush(time.Second))

	require.Len(t, sent, 2)
	assert.Equal(t, "test", sent[0].Environment)
	require.NotEmpty(t, sent[0].Exception)
	assert.Equal(t, "payment failed", sent[0].Exception[0].Value)
	assert.Equal(t, "emails", sent[1].Tags["queue"])
}

func TestSentrySink_DroppedEventIsTransportError(t *testing.T) {
	sink, err := NewSentrySink(sentry.ClientOptions{
		BeforeSend: func(*sentry.Event, *sentry.EventHint) *sentry.Event { return nil },
	})
	require.NoError(t, err)

	err = sink.CaptureException(errors.New("x"))

	var transport *common.SinkTransportError
	require.ErrorAs(t, err, &transport)
	assert.Equal(t, "sentry", transport.Sink)
}

func TestNewSentrySink_BadDSN(t *testing.T) {
	_, err := NewSentrySink(sentry.ClientOptions{Dsn: "not a dsn"})

	var cfgErr *common.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "SENTRY_DSN", cfgErr.Setting)
}
