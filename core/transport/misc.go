package transport

import (
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

func isClosedErr(err error) bool {
	if err == nil {
		return false
	}
	cause := errors.Cause(err)
	if cause == http.ErrServerClosed || cause == net.ErrClosed || cause == io.ErrClosedPipe {
		return true
	}
	if errors.Is(err, net.ErrClosed) {
		return true
	}
	return strings.Contains(err.Error(), "use of closed network connection")
}

// IsClosedErr returns true if err means the connection has been closed by local side or peer.
func IsClosedErr(err error) bool {
	return err == io.EOF || isClosedErr(err)
}
