// Package tserr defines the error kinds so callers can
// distinguish "reset and keep going" conditions from fatal ones without
// string-matching error text.
package tserr

import "fmt"

// Kind classifies an error by how the caller must react to it.
type Kind int

const (
	// Config marks a malformed or unknown configuration value. Fatal at
	// open: the process should abort with a diagnostic rather than run
	// a half-configured pipeline.
	Config Kind = iota
	// DeviceOpen marks a failure to open the frontend/dvr/demux device.
	// Fatal for the affected input instance.
	DeviceOpen
	// Ioctl marks a failed DVB ioctl, named by the failing step. Reported
	// and triggers a retune cycle; not fatal to the process.
	Ioctl
	// IO marks a read failure on the DVR or a file input. Auto-recovering:
	// close and reopen.
	IO
	// Protocol marks a continuity-counter discontinuity or malformed
	// length field in PSI/PES reassembly. Recovered locally: reset the
	// context, drop the in-flight unit, resume.
	Protocol
	// Bounds marks a section/packet that exceeds the maximum size this
	// core accepts (4096 for PSI, 65541 for PES). The unit is rejected.
	Bounds
)

func (k Kind) String() string {
	switch k {
	case Config:
		return "config"
	case DeviceOpen:
		return "device_open"
	case Ioctl:
		return "ioctl"
	case IO:
		return "io"
	case Protocol:
		return "protocol"
	case Bounds:
		return "bounds"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with a Kind and, for Ioctl errors, the
// name of the failing DVB step (e.g. "SET_PROPERTY", "DISEQC_SEND_BURST").
type Error struct {
	Kind Kind
	Step string
	Err  error
}

func (e *Error) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("%s[%s]: %v", e.Kind, e.Step, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with kind and no step.
func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// NewStep wraps err with kind and a named step, used for Ioctl errors.
func NewStep(kind Kind, step string, err error) *Error {
	return &Error{Kind: kind, Step: step, Err: err}
}
