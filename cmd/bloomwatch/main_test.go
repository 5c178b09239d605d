package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunOnceErr(t *testing.T) {
	runErr := errors.New("no model produced any scored years")

	// A one-shot run must surface its failure as a non-zero exit.
	assert.Equal(t, runErr, runOnceErr("", runErr))
	assert.NoError(t, runOnceErr("", nil))

	// A scheduled service logs failed runs and keeps its exit clean.
	assert.NoError(t, runOnceErr("0 3 * * *", runErr))
}
