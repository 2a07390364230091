package base

import (
	"errors"
	"net"
	"time"
)

// deadline returns the absolute deadline for a timeout, the zero time disables it
func deadline(timeout time.Duration) time.Time {
	if timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}

// isTimeout reports whether err is a network timeout
func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// writeAll writes the whole buffer, net.Conn.Write already loops on short writes
// but we want one place that maps a partial write to an error
func writeAll(conn net.Conn, data []byte) error {
	n, err := conn.Write(data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return errors.New("short write")
	}
	return nil
}
