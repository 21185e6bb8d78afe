package queue

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// QueryError is the canonical shape low-level storage errors are turned into
// before they are logged, reported or handed to a failure handler.
type QueryError struct {
	Code    string
	Message string
	Detail  string
	Err     error
}

func (e *QueryError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (%s): %s", e.Message, e.Code, e.Detail)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Format prints the wrapped error's stack trace with %+v.
func (e *QueryError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') && e.Err != nil {
			_, _ = io.WriteString(s, e.Error()+"\n")
			_, _ = fmt.Fprintf(s, "%+v", e.Err)
			return
		}
		_, _ = io.WriteString(s, e.Error())
	case 's':
		_, _ = io.WriteString(s, e.Error())
	case 'q':
		_, _ = fmt.Fprintf(s, "%q", e.Error())
	}
}

// NormalizeError converts known driver errors (postgres, gorm, redis, context)
// into a *QueryError. Anything else is returned unchanged.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	var qe *QueryError
	if errors.As(err, &qe) {
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &QueryError{Code: string(pqErr.Code), Message: pqErr.Message, Detail: pqErr.Detail, Err: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &QueryError{Code: pgErr.Code, Message: pgErr.Message, Detail: pgErr.Detail, Err: err}
	}

	var redisErr redis.Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &QueryError{Code: "not_found", Message: "record not found", Err: err}
	case errors.Is(err, redis.Nil):
		return &QueryError{Code: "redis_nil", Message: "redis key not found", Err: err}
	case errors.As(err, &redisErr):
		return &QueryError{Code: "redis", Message: redisErr.Error(), Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &QueryError{Code: "timeout", Message: "operation timed out", Err: err}
	case errors.Is(err, context.Canceled):
		return &QueryError{Code: "canceled", Message: "operation canceled", Err: err}
	}

	return err
}
