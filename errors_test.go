package winloop

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCodeFromError(t *testing.T) {
	assert.Equal(t, 1, exitCodeFromError(errors.New("boom")))
	assert.Equal(t, int(syscall.EPIPE), exitCodeFromError(fmt.Errorf("write: %w", syscall.EPIPE)))
	assert.Equal(t, int(syscall.ECONNRESET), exitCodeFromError(&RequestError{Op: "read", Err: syscall.ECONNRESET}))
	assert.Equal(t, 1, exitCodeFromError(syscall.Errno(0)))
}

func TestErrorMessages(t *testing.T) {
	err := &RequestError{Op: "flush", Err: syscall.EPIPE}
	assert.Equal(t, "winloop: flush: "+syscall.EPIPE.Error(), err.Error())
	assert.ErrorIs(t, err, syscall.EPIPE)

	assert.Equal(t, "winloop: exit failure: 2", (&ExitFailureError{Code: 2}).Error())
	assert.Equal(t, "winloop: not supported", (&NotSupportedError{}).Error())
	assert.Equal(t, "winloop: not supported: cursor", (&NotSupportedError{Reason: "cursor"}).Error())
}
