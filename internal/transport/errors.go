// internal/transport/errors.go
package transport

import "fmt"

// Error codes surfaced through status blocks.
const (
	CodeConnection uint16 = 10
	CodeIO         uint16 = 11
	CodeTimeout    uint16 = 12
)

// ConnectionError: session could not be established (refused, unreachable, dial timeout).
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("transport: connect %s: %v", e.Addr, e.Err)
}
func (e *ConnectionError) Unwrap() error { return e.Err }
func (e *ConnectionError) Code() uint16  { return CodeConnection }

// IOError: the session broke while writing or reading.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}
func (e *IOError) Unwrap() error { return e.Err }
func (e *IOError) Code() uint16  { return CodeIO }

// TimeoutError: nothing arrived within the wait window.
type TimeoutError struct {
	Wait string
}

func (e *TimeoutError) Error() string {
	return "transport: receive timed out after " + e.Wait
}
func (e *TimeoutError) Code() uint16  { return CodeTimeout }
func (e *TimeoutError) Timeout() bool { return true }
