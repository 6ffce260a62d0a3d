package protocol

import "time"

// Measurement is the record published for every completed reading or
// acquisition.
type Measurement struct {
	Instrument string    `json:"instrument"` // "dmm" or "dso"
	DeviceID   string    `json:"device_id"`
	Timestamp  time.Time `json:"timestamp"`
	Channel    int       `json:"channel"`
	MilliVolts int64     `json:"millivolts,omitempty"`
	SampleRate uint32    `json:"sample_rate,omitempty"`
	Samples    []uint16  `json:"samples,omitempty"`
}

// SCPI error codes pushed to the error queue. Negative codes follow the
// SCPI-1999 numbering; 0 means the queue is empty.
const (
	ErrNone              = 0
	ErrCommand           = -100 // generic command error
	ErrUndefinedHeader   = -113 // unknown mnemonic
	ErrMissingParameter  = -109
	ErrExecution         = -200 // wrong state or sequence
	ErrIllegalParamValue = -224
	ErrSystemError       = -310 // hardware or resource failure
	ErrQueueOverflow     = -350
)

// ErrorMessage returns the canonical message text for a queue code.
func ErrorMessage(code int) string {
	switch code {
	case ErrNone:
		return "No error"
	case ErrCommand:
		return "Command error"
	case ErrUndefinedHeader:
		return "Undefined header"
	case ErrMissingParameter:
		return "Missing parameter"
	case ErrExecution:
		return "Execution error"
	case ErrIllegalParamValue:
		return "Illegal parameter value"
	case ErrSystemError:
		return "System error"
	case ErrQueueOverflow:
		return "Queue overflow"
	}
	return "Unknown error"
}

// Acquisition status values returned by OSCilloscope:STATus:ACQuisition?.
const (
	AcqIdle     = 0 // never started, no buffer yet
	AcqRunning  = 1
	AcqComplete = 2
)

// Standard event status register bits (IEEE 488.2).
const (
	EsrOperationComplete = 1 << 0
	EsrQueryError        = 1 << 2
	EsrDeviceError       = 1 << 3
	EsrExecutionError    = 1 << 4
	EsrCommandError      = 1 << 5
)

// Status byte bits.
const (
	StbErrorQueue = 1 << 2
	StbESB        = 1 << 5
	StbMSS        = 1 << 6
)
