package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFatalLevels(t *testing.T) {
	assert.True(t, Deploy("no capital").Fatal())
	assert.False(t, DriverFatal("node-1", errors.New("bad address")).Fatal())
	assert.False(t, Reserve(errors.New("vault down")).Fatal())
}

func TestRetryableLevels(t *testing.T) {
	assert.True(t, DriverTransient("node-1", errors.New("timeout")).Retryable())
	assert.True(t, RateLimit(30, errors.New("too many requests")).Retryable())
	assert.False(t, DriverFatal("node-1", errors.New("bad address")).Retryable())
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("rpc timeout")
	err := DriverTransient("perp-1", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "perp-1")
}
