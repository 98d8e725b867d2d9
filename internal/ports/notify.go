package ports

import "errors"

// ErrDisconnected is returned by Notify once the foreground has gone away.
// Callers treat it as benign.
var ErrDisconnected = errors.New("notify target disconnected")

type Notify interface {
	Wakeup() error
}
