package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCodeMapsTypedErrors(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 2, ExitCode(&InputError{Msg: "bad bed"}))
	assert.Equal(t, 3, ExitCode(&PartitionError{Stage: "filtered", Partition: "0"}))
	assert.Equal(t, 4, ExitCode(&SolverError{Track: "sv1"}))
	assert.Equal(t, 1, ExitCode(errors.New("something else")))
}

func TestInputErrorWrapsUnderlyingError(t *testing.T) {
	inner := errors.New("no such file")
	e := &InputError{Msg: "load reference", Err: inner}
	assert.ErrorIs(t, e, inner)
	assert.Contains(t, e.Error(), "load reference")
	assert.Contains(t, e.Error(), "no such file")
}

func TestPartitionErrorMessage(t *testing.T) {
	e := &PartitionError{Stage: "filtered", Partition: "3", Err: errors.New("missing shard")}
	assert.Contains(t, e.Error(), "filtered")
	assert.Contains(t, e.Error(), "3")
}
