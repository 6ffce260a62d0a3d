// Package hal defines the hardware collaborator interfaces the instrument
// drivers are built on, plus in-process simulations used by the default build
// and the tests. Real hardware backends implement the same interfaces.
package hal

// SampleMode selects how the ADC front-end is clocked.
type SampleMode int

const (
	// SingleChannel samples one input through both ADC paths alternately,
	// doubling the effective rate.
	SingleChannel SampleMode = iota
	// DualChannel samples both inputs at the same instant at the base rate.
	DualChannel
)

func (m SampleMode) String() string {
	if m == DualChannel {
		return "dual"
	}
	return "single"
}

// ADCConfig configures one ADC binding. The hardware timer is paired with the
// ADC, so the sample rate is part of this config rather than a separate
// collaborator call.
type ADCConfig struct {
	Mode         SampleMode
	Channel      int
	Oversampling int    // raw samples accumulated per reported sample
	SampleRate   uint32 // Hz; 0 means one-shot conversion
	Buffer       []uint16
	OnComplete   func() // invoked from the hardware context
}

// ADC is the converter collaborator. All calls may fail with an
// errcode kind; the core never assumes success.
type ADC interface {
	Init(cfg ADCConfig) error
	Deinit() error
	Start() error
	Stop() error

	// SampleRate reports the rate actually programmed, in Hz.
	SampleRate() uint32
	// ReferenceMilliVolts reports the ADC reference in mV.
	ReferenceMilliVolts() int
	// MaxSampleRate reports the hardware ceiling for a mode, in Hz.
	MaxSampleRate(mode SampleMode) uint32

	// Read returns the latest completed conversion. DeviceNotReady is
	// returned, without logging or queueing, while no conversion has
	// finished; callers poll.
	Read() (uint16, error)
}

// Clock is the monotonic tick collaborator. Units are milliseconds.
type Clock interface {
	Now() int64
}
