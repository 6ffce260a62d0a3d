package driver

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"instrument-firmware/internal/errcode"
	"instrument-firmware/internal/hal"
)

// DsoConfig describes one buffered acquisition. The buffer is lent to the
// driver by the caller, which keeps ownership across reconfigurations.
type DsoConfig struct {
	Mode       hal.SampleMode
	Channel    int // 0 or 1, primary input in single-channel mode
	SampleRate uint32
	Buffer     []uint16
}

// Validate checks mutual consistency against the hardware limits.
func (c DsoConfig) Validate(adc hal.ADC) error {
	if c.SampleRate == 0 || c.SampleRate > adc.MaxSampleRate(c.Mode) {
		return errcode.InvalidArgument
	}
	if c.Mode == hal.SingleChannel && (c.Channel < 0 || c.Channel > 1) {
		return errcode.InvalidArgument
	}
	if len(c.Buffer) == 0 {
		return errcode.InvalidArgument
	}
	return nil
}

// DSO is a live buffered-acquisition binding.
type DSO struct {
	adc      hal.ADC
	log      *logrus.Logger
	cfg      DsoConfig
	running  atomic.Bool
	complete atomic.Bool
}

// OpenDSO validates cfg and claims the converter. The acquisition does not
// start until Start.
func OpenDSO(adc hal.ADC, log *logrus.Logger, cfg DsoConfig) (*DSO, error) {
	if err := cfg.Validate(adc); err != nil {
		return nil, err
	}
	d := &DSO{adc: adc, log: log, cfg: cfg}
	if err := adc.Init(d.halConfig(cfg)); err != nil {
		return nil, err
	}
	if log != nil {
		log.Debugf("dso: open mode=%s ch=%d rate=%d points=%d",
			cfg.Mode, cfg.Channel, cfg.SampleRate, len(cfg.Buffer))
	}
	return d, nil
}

func (d *DSO) halConfig(cfg DsoConfig) hal.ADCConfig {
	return hal.ADCConfig{
		Mode:       cfg.Mode,
		Channel:    cfg.Channel,
		SampleRate: cfg.SampleRate,
		Buffer:     cfg.Buffer,
		OnComplete: func() {
			d.running.Store(false)
			d.complete.Store(true)
		},
	}
}

// SetConfig replaces the configuration of an idle driver. Forbidden while an
// acquisition is running.
func (d *DSO) SetConfig(cfg DsoConfig) error {
	if d.running.Load() {
		return errcode.ResourceBusy
	}
	if err := cfg.Validate(d.adc); err != nil {
		return err
	}
	if err := d.adc.Deinit(); err != nil {
		return err
	}
	if err := d.adc.Init(d.halConfig(cfg)); err != nil {
		return err
	}
	d.cfg = cfg
	d.complete.Store(false)
	return nil
}

// Config returns the committed configuration.
func (d *DSO) Config() DsoConfig {
	return d.cfg
}

// Start begins filling the buffer. The completion flag is cleared first so a
// stale completion from a previous run cannot satisfy the next poll.
func (d *DSO) Start() error {
	if d.running.Load() {
		return errcode.ResourceBusy
	}
	d.complete.Store(false)
	d.running.Store(true)
	if err := d.adc.Start(); err != nil {
		d.running.Store(false)
		return err
	}
	return nil
}

// Stop halts sampling. The completion flag is left as-is: a buffer that
// filled before the stop is still retrievable.
func (d *DSO) Stop() error {
	d.running.Store(false)
	return d.adc.Stop()
}

// Running reports whether an acquisition is in progress.
func (d *DSO) Running() bool {
	return d.running.Load()
}

// Complete reports whether the buffer has been filled since the last Start.
func (d *DSO) Complete() bool {
	return d.complete.Load()
}

// SampleRate reports the rate programmed into the hardware.
func (d *DSO) SampleRate() uint32 {
	return d.adc.SampleRate()
}

// Close stops and releases the converter.
func (d *DSO) Close() error {
	d.running.Store(false)
	if err := d.adc.Stop(); err != nil && d.log != nil {
		d.log.Debugf("dso: stop on close: %v", err)
	}
	return d.adc.Deinit()
}
