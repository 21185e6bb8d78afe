package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	pkgerrors "github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeRedisError string

func (e fakeRedisError) Error() string { return string(e) }
func (fakeRedisError) RedisError()     {}

func TestNormalizeError(t *testing.T) {
	plain := errors.New("boom")

	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantDetail string
		passthru   bool
	}{
		{
			name:       "lib/pq error",
			err:        fmt.Errorf("insert: %w", &pq.Error{Code: "23505", Message: "duplicate key", Detail: "Key (job_id)=(x) already exists."}),
			wantCode:   "23505",
			wantDetail: "Key (job_id)=(x) already exists.",
		},
		{
			name:     "pgx error",
			err:      &pgconn.PgError{Code: "42P01", Message: "relation does not exist"},
			wantCode: "42P01",
		},
		{
			name:     "gorm record not found",
			err:      fmt.Errorf("get failure: %w", gorm.ErrRecordNotFound),
			wantCode: "not_found",
		},
		{
			name:     "redis nil",
			err:      redis.Nil,
			wantCode: "redis_nil",
		},
		{
			name:     "redis server error",
			err:      fakeRedisError("WRONGTYPE Operation against a key holding the wrong kind of value"),
			wantCode: "redis",
		},
		{
			name:     "deadline",
			err:      fmt.Errorf("claim: %w", context.DeadlineExceeded),
			wantCode: "timeout",
		},
		{
			name:     "canceled",
			err:      context.Canceled,
			wantCode: "canceled",
		},
		{
			name:     "unknown error passes through",
			err:      plain,
			passthru: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeError(tt.err)
			if tt.passthru {
				assert.Same(t, tt.err, got)
				return
			}

			var qe *QueryError
			require.ErrorAs(t, got, &qe)
			assert.Equal(t, tt.wantCode, qe.Code)
			assert.Equal(t, tt.wantDetail, qe.Detail)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestNormalizeError_Nil(t *testing.T) {
	assert.NoError(t, NormalizeError(nil))
}

func TestNormalizeError_Idempotent(t *testing.T) {
	first := NormalizeError(context.Canceled)
	assert.Same(t, first, NormalizeError(first))
}

func TestQueryError_FormatIncludesStack(t *testing.T) {
	err := NormalizeError(pkgerrors.WithStack(context.DeadlineExceeded))

	short := fmt.Sprintf("%v", err)
	assert.Equal(t, "operation timed out (timeout)", short)

	long := fmt.Sprintf("%+v", err)
	assert.Contains(t, long, "operation timed out (timeout)")
	assert.Contains(t, long, "TestQueryError_FormatIncludesStack")
}
