package hal

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"instrument-firmware/internal/errcode"
)

// SimADC is a software stand-in for the converter hardware. It produces a
// configurable waveform and drives the completion callback the way the real
// peripheral would: asynchronously, from outside the service loop.
type SimADC struct {
	log *logrus.Logger

	maxRateSingle uint32
	maxRateDual   uint32
	referenceMv   int

	mu      sync.Mutex
	open    bool
	running bool
	cfg     ADCConfig
	sample  uint16
	ready   bool
	phase   int

	// test hooks; zero values mean "behave normally"
	FailInit  error
	FailStart error
	Latency   time.Duration // delay before a started conversion completes
}

// NewSimADC builds a simulated converter with the given limits.
func NewSimADC(log *logrus.Logger, maxSingle, maxDual uint32, referenceMv int) *SimADC {
	return &SimADC{
		log:           log,
		maxRateSingle: maxSingle,
		maxRateDual:   maxDual,
		referenceMv:   referenceMv,
	}
}

func (a *SimADC) Init(cfg ADCConfig) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.FailInit != nil {
		return a.FailInit
	}
	if a.open {
		return errcode.ResourceBusy
	}
	if cfg.SampleRate > a.MaxSampleRate(cfg.Mode) {
		return errcode.InvalidArgument
	}
	a.open = true
	a.cfg = cfg
	a.ready = false
	if a.log != nil {
		a.log.Debugf("sim adc: init mode=%s ch=%d rate=%d", cfg.Mode, cfg.Channel, cfg.SampleRate)
	}
	return nil
}

func (a *SimADC) Deinit() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.open {
		return errcode.ResourceUnavailable
	}
	a.open = false
	a.running = false
	a.ready = false
	return nil
}

func (a *SimADC) Start() error {
	a.mu.Lock()
	if a.FailStart != nil {
		a.mu.Unlock()
		return a.FailStart
	}
	if !a.open {
		a.mu.Unlock()
		return errcode.DeviceNotReady
	}
	a.running = true
	cfg := a.cfg
	latency := a.Latency
	a.mu.Unlock()

	complete := func() {
		a.mu.Lock()
		if !a.running {
			a.mu.Unlock()
			return
		}
		a.fill(cfg)
		a.ready = true
		cb := cfg.OnComplete
		a.mu.Unlock()
		if cb != nil {
			cb()
		}
	}
	if latency > 0 {
		time.AfterFunc(latency, complete)
	} else {
		complete()
	}
	return nil
}

// fill synthesizes one conversion (or one full buffer). Caller holds the lock.
func (a *SimADC) fill(cfg ADCConfig) {
	if len(cfg.Buffer) > 0 {
		for i := range cfg.Buffer {
			cfg.Buffer[i] = a.next()
		}
		return
	}
	a.sample = a.next()
}

// next is a 12-bit triangle wave; deterministic, full-scale.
func (a *SimADC) next() uint16 {
	a.phase = (a.phase + 1) % 8190
	v := a.phase
	if v > 4095 {
		v = 8190 - v
	}
	return uint16(v)
}

func (a *SimADC) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.open {
		return errcode.ResourceUnavailable
	}
	a.running = false
	return nil
}

func (a *SimADC) SampleRate() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg.SampleRate
}

func (a *SimADC) ReferenceMilliVolts() int {
	return a.referenceMv
}

func (a *SimADC) MaxSampleRate(mode SampleMode) uint32 {
	if mode == DualChannel {
		return a.maxRateDual
	}
	return a.maxRateSingle
}

func (a *SimADC) Read() (uint16, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.open {
		return 0, errcode.ResourceUnavailable
	}
	if !a.ready {
		return 0, errcode.DeviceNotReady
	}
	return a.sample, nil
}

// Inject overrides the next reported sample; test hook.
func (a *SimADC) Inject(v uint16, ready bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sample = v
	a.ready = ready
}

// SysClock is the production Clock: wall-clock milliseconds.
type SysClock struct{}

func (SysClock) Now() int64 {
	return time.Now().UnixMilli()
}

// ManualClock is a Clock advanced by hand from tests.
type ManualClock struct {
	mu sync.Mutex
	ms int64
	// Step is added on every Now call, so polling loops make progress
	// without a real timer.
	Step int64
}

func (c *ManualClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ms += c.Step
	return c.ms
}

// Advance moves the clock forward.
func (c *ManualClock) Advance(ms int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ms += ms
}
