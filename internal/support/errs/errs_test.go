package errs_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"gridpulse/internal/support/errs"
)

func TestErrorFormatting(t *testing.T) {
	cause := errors.New("connection refused")
	err := errs.FetchError("gridstatus", "dataset query failed", cause)
	assert.Equal(t, "[fetch] gridstatus: dataset query failed: connection refused", err.Error())

	bare := errs.Newf(errs.KindAvailability, "syncer", "no load data available for %s", "analysis")
	assert.Equal(t, "[availability] syncer: no load data available for analysis", bare.Error())
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := errs.StorageError("store", "failed to upsert load samples", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestKindClassification(t *testing.T) {
	assert.True(t, errs.IsFetch(errs.FetchError("m", "msg", nil)))
	assert.True(t, errs.IsStorage(errs.StorageError("m", "msg", nil)))
	assert.True(t, errs.IsAvailability(errs.AvailabilityError("m", "msg", nil)))
	assert.True(t, errs.IsConfig(errs.ConfigError("m", "msg", nil)))
	assert.True(t, errs.IsKind(errs.InternalError("m", "msg", nil), errs.KindInternal))

	assert.False(t, errs.IsFetch(errs.StorageError("m", "msg", nil)))
	assert.False(t, errs.IsFetch(errors.New("plain")))
	assert.False(t, errs.IsFetch(nil))
}

func TestKindSurvivesWrapping(t *testing.T) {
	inner := errs.AvailabilityError("estimate", "cannot align empty series", nil)
	wrapped := fmt.Errorf("nuclear analysis: %w", inner)

	assert.True(t, errs.IsAvailability(wrapped))
	assert.False(t, errs.IsFetch(wrapped))
}
