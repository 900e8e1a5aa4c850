package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(EvaluationFailed, "task run blew up")
	require.Error(t, err)
	assert.Equal(t, "task run blew up", err.Error())

	var e *Error
	require.True(t, stderrors.As(err, &e))
	assert.Equal(t, EvaluationFailed, e.Code())
}

func TestWrap(t *testing.T) {
	inner := fmt.Errorf("connection refused")
	err := Wrap(inner, PersistenceUnavailable, "hive mind store unreachable")
	require.Error(t, err)
	assert.Equal(t, "hive mind store unreachable: connection refused", err.Error())
	assert.Equal(t, inner, stderrors.Unwrap(err))

	assert.Nil(t, Wrap(nil, PersistenceUnavailable, "ignored"))
}

func TestWithFields(t *testing.T) {
	err := WithFields(
		New(OperatorFailed, "semantic crossover unavailable"),
		Fields{"operator": "semantic", "generation": 3},
	)

	var e *Error
	require.True(t, stderrors.As(err, &e))
	assert.Equal(t, OperatorFailed, e.Code())
	assert.Equal(t, "semantic", e.Fields()["operator"])
	assert.Equal(t, 3, e.Fields()["generation"])
	assert.Contains(t, err.Error(), "operator=semantic")
}

func TestWithFieldsMerges(t *testing.T) {
	err := WithFields(New(DispatchFailed, "no response"), Fields{"work_item": "a"})
	err = WithFields(err, Fields{"attempt": 2})

	var e *Error
	require.True(t, stderrors.As(err, &e))
	assert.Equal(t, DispatchFailed, e.Code())
	assert.Len(t, e.Fields(), 2)
}

func TestWithFieldsForeignError(t *testing.T) {
	err := WithFields(fmt.Errorf("plain"), Fields{"k": "v"})

	var e *Error
	require.True(t, stderrors.As(err, &e))
	assert.Equal(t, Unknown, e.Code())
}

func TestIsMatchesByCode(t *testing.T) {
	err := Wrap(fmt.Errorf("deadline"), Timeout, "task timed out")
	assert.True(t, stderrors.Is(err, New(Timeout, "anything")))
	assert.False(t, stderrors.Is(err, New(Canceled, "anything")))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, InvalidInput, CodeOf(New(InvalidInput, "bad population size")))
	assert.Equal(t, Unknown, CodeOf(fmt.Errorf("foreign")))
}

func TestCheckContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, CheckContext(ctx, "evolve"))

	cancel()
	err := CheckContext(ctx, "evolve")
	require.Error(t, err)
	assert.Equal(t, Canceled, CodeOf(err))
	assert.Contains(t, err.Error(), "evolve canceled")
}
