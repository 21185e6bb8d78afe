package mocks

import (
	"github.com/stretchr/testify/mock"
)

type SinkMock struct {
	mock.Mock
}

func (m *SinkMock) CaptureException(err error) error {
	args := m.Called(err)
	return args.Error(0)
}

// Reported returns every error passed to CaptureException, in call order.
func (m *SinkMock) Reported() []error {
	var errs []error
	for _, call := range m.Calls {
		if call.Method == "CaptureException" {
			errs = append(errs, call.Arguments.Error(0))
		}
	}
	return errs
}

type TaggedSinkMock struct {
	SinkMock
}

func (m *TaggedSinkMock) CaptureExceptionWithTags(err error, tags map[string]string) error {
	args := m.Called(err, tags)
	return args.Error(0)
}
