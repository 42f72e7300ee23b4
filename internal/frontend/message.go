package frontend

import "github.com/dvbcore/tsengine/internal/tserr"

// MessageKind enumerates the typed messages the worker goroutine sends
// to the reactor over the channel.
type MessageKind int

const (
	Lock MessageKind = iota
	Error
	Retune
)

func (k MessageKind) String() string {
	switch k {
	case Lock:
		return "lock"
	case Error:
		return "error"
	case Retune:
		return "retune"
	default:
		return "unknown"
	}
}

// Message is one entry on the worker→reactor stream. Step names the
// failing DVB operation for Error messages ("SET_PROPERTY", "SET_TONE",
// ...); Status is the snapshot as of the moment the message was sent.
type Message struct {
	Kind    MessageKind
	Step    string
	Err     error
	ErrKind tserr.Kind
	Status  Status
}
