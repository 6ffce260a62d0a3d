// Package instrument implements the protocol layer: the engine that owns all
// instrument state, the DMM and DSO state machines and the IEEE 488.2 system
// commands, exposed to the dispatcher as a command table.
package instrument

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"instrument-firmware/internal/driver"
	"instrument-firmware/internal/errcode"
	"instrument-firmware/internal/fixed"
	"instrument-firmware/internal/hal"
	"instrument-firmware/internal/monitor"
	"instrument-firmware/internal/scpi"
	"instrument-firmware/pkg/protocol"
)

// completionTimeoutMs bounds every wait for a hardware completion signal.
const completionTimeoutMs = 1000

// Identity is the *IDN? response content.
type Identity struct {
	Manufacturer string
	Model        string
	SerialNumber string
	Firmware     string
}

// Defaults are the power-on and *RST settings.
type Defaults struct {
	DmmChannel      int
	DmmOversampling int
	DsoTimebaseUs   uint32
	DsoPoints       int
}

// Publisher receives completed measurements. A nil Publisher disables
// publishing.
type Publisher interface {
	Publish(ctx context.Context, m *protocol.Measurement) error
}

type dmmState struct {
	stored driver.DmmConfig
	active *driver.DMM
	cached fixed.Q1616
	hasCached bool
}

type dsoState struct {
	drv        *driver.DSO
	buffer     []uint16 // owned here, lent to the driver
	points     int
	timebaseUs uint32
	mode       hal.SampleMode
	channel    int
	rate       uint32
	complete   bool
	startedAt  int64
}

// Engine holds all protocol-visible state. It is driven by exactly one
// logical thread of control: the session layer serializes command execution,
// so the engine itself takes no locks. The only asynchronous inputs are the
// hardware completion flags, which the drivers expose as atomically read
// single-writer flags.
type Engine struct {
	log   *logrus.Logger
	adc   hal.ADC
	clock hal.Clock
	pub   Publisher
	queue *scpi.ErrorQueue

	identity Identity
	defaults Defaults

	ese uint8
	esr uint8
	sre uint8

	dmm dmmState
	dso dsoState
}

// Options configures a new engine.
type Options struct {
	Log             *logrus.Logger
	ADC             hal.ADC
	Clock           hal.Clock
	Publisher       Publisher
	Identity        Identity
	Defaults        Defaults
	ErrorQueueDepth int
}

// NewEngine builds an engine in its power-on state.
func NewEngine(opts Options) *Engine {
	d := opts.Defaults
	if d.DmmOversampling == 0 {
		def := driver.DefaultDmmConfig()
		d.DmmChannel = def.Channel
		d.DmmOversampling = def.Oversampling
	}
	if d.DsoTimebaseUs == 0 {
		d.DsoTimebaseUs = 100
	}
	if d.DsoPoints == 0 {
		d.DsoPoints = 512
	}
	e := &Engine{
		log:      opts.Log,
		adc:      opts.ADC,
		clock:    opts.Clock,
		pub:      opts.Publisher,
		identity: opts.Identity,
		defaults: d,
		queue:    scpi.NewErrorQueue(opts.ErrorQueueDepth),
	}
	e.queue.OnPush = e.noteError
	e.reset()
	return e
}

// Queue exposes the error queue for the dispatcher.
func (e *Engine) Queue() *scpi.ErrorQueue {
	return e.queue
}

// reset restores the documented defaults. The error queue survives (*CLS
// clears it, *RST does not).
func (e *Engine) reset() {
	if e.dmm.active != nil {
		if err := e.dmm.active.Close(); err != nil && e.log != nil {
			e.log.Warnf("reset: dmm close: %v", err)
		}
	}
	if e.dso.drv != nil {
		if err := e.dso.drv.Close(); err != nil && e.log != nil {
			e.log.Warnf("reset: dso close: %v", err)
		}
	}
	e.dmm = dmmState{
		stored: driver.DmmConfig{
			Channel:      e.defaults.DmmChannel,
			Oversampling: e.defaults.DmmOversampling,
		},
	}
	e.dso = dsoState{
		points:     e.defaults.DsoPoints,
		timebaseUs: e.defaults.DsoTimebaseUs,
		mode:       hal.SingleChannel,
	}
}

// noteError raises the event-status bit matching a queued error code.
func (e *Engine) noteError(code int) {
	switch {
	case code <= -400 && code > -500:
		e.esr |= protocol.EsrQueryError
	case code <= -300 && code > -400:
		e.esr |= protocol.EsrDeviceError
	case code <= -200 && code > -300:
		e.esr |= protocol.EsrExecutionError
	case code <= -100 && code > -200:
		e.esr |= protocol.EsrCommandError
	}
}

// errorCode maps a driver failure to the protocol error category. The
// mapping is total: bad input is an illegal parameter value, everything else
// is a system error. Sequence errors never reach here; the handlers return
// ErrExecution directly.
func errorCode(err error) int {
	switch errcode.Kind(err) {
	case errcode.None:
		return protocol.ErrNone
	case errcode.InvalidArgument:
		return protocol.ErrIllegalParamValue
	default:
		return protocol.ErrSystemError
	}
}

// publish hands a completed measurement to the publisher, if any. Failures
// are logged, never surfaced to the protocol: the reading already succeeded.
func (e *Engine) publish(m *protocol.Measurement) {
	monitor.MeasurementsCompleted.WithLabelValues(m.Instrument).Inc()
	if e.pub == nil {
		return
	}
	m.DeviceID = e.identity.SerialNumber
	m.Timestamp = time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.pub.Publish(ctx, m); err != nil && e.log != nil {
		e.log.Warnf("publish %s measurement: %v", m.Instrument, err)
	}
}
