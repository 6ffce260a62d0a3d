// Package errcode defines the closed error taxonomy reported by the hardware
// layer and the instrument drivers. Every fallible driver call returns one of
// these kinds; the protocol layer maps them to SCPI queue codes.
package errcode

// ErrorKind is a domain error. The zero value is None (no error).
type ErrorKind int

const (
	None ErrorKind = iota
	InvalidArgument
	OutOfMemory
	Timeout
	ResourceBusy
	ResourceUnavailable
	HardwareFault
	CalibrationFailed
	DeviceNotReady
	Unknown
)

var names = map[ErrorKind]string{
	None:                "no error",
	InvalidArgument:     "invalid argument",
	OutOfMemory:         "out of memory",
	Timeout:             "timeout",
	ResourceBusy:        "resource busy",
	ResourceUnavailable: "resource unavailable",
	HardwareFault:       "hardware fault",
	CalibrationFailed:   "calibration failed",
	DeviceNotReady:      "device not ready",
	Unknown:             "unknown error",
}

func (k ErrorKind) Error() string {
	if s, ok := names[k]; ok {
		return s
	}
	return names[Unknown]
}

// Kind extracts the ErrorKind from an error chain. A nil error is None and an
// error that carries no kind is Unknown, so the result is always mapped.
func Kind(err error) ErrorKind {
	if err == nil {
		return None
	}
	for {
		if k, ok := err.(ErrorKind); ok {
			return k
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return Unknown
		}
		err = u.Unwrap()
		if err == nil {
			return Unknown
		}
	}
}
