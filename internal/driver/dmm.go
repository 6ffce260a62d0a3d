// Package driver implements the DMM and DSO instrument drivers on top of the
// hal collaborators. At most one driver of each kind can hold the converter
// at a time; a second open fails with ResourceBusy from the hardware layer.
package driver

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"instrument-firmware/internal/errcode"
	"instrument-firmware/internal/fixed"
	"instrument-firmware/internal/hal"
)

const adcFullScale = 4095 // 12-bit converter

// DmmConfig selects the input for a single-sample voltage measurement.
type DmmConfig struct {
	Channel      int // 0..15
	Oversampling int // power of two in [1,256]
}

// DefaultDmmConfig matches the power-on state.
func DefaultDmmConfig() DmmConfig {
	return DmmConfig{Channel: 0, Oversampling: 16}
}

// Validate range-checks the config without touching hardware.
func (c DmmConfig) Validate() error {
	if c.Channel < 0 || c.Channel > 15 {
		return errcode.InvalidArgument
	}
	r := c.Oversampling
	if r < 1 || r > 256 || r&(r-1) != 0 {
		return errcode.InvalidArgument
	}
	return nil
}

// DMM is a live single-sample voltmeter binding. It owns the converter from
// OpenDMM until Close.
type DMM struct {
	adc      hal.ADC
	log      *logrus.Logger
	cfg      DmmConfig
	complete atomic.Bool
}

// OpenDMM validates cfg, claims the converter and starts one conversion.
// The completion flag is set from the hardware context; Conversion polls it.
func OpenDMM(adc hal.ADC, log *logrus.Logger, cfg DmmConfig) (*DMM, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &DMM{adc: adc, log: log, cfg: cfg}
	err := adc.Init(hal.ADCConfig{
		Mode:         hal.SingleChannel,
		Channel:      cfg.Channel,
		Oversampling: cfg.Oversampling,
		OnComplete:   func() { d.complete.Store(true) },
	})
	if err != nil {
		return nil, err
	}
	if err := adc.Start(); err != nil {
		// release the claim so a retry can succeed
		if derr := adc.Deinit(); derr != nil && log != nil {
			log.Warnf("dmm: deinit after failed start: %v", derr)
		}
		return nil, err
	}
	if log != nil {
		log.Debugf("dmm: open ch=%d oversampling=%d", cfg.Channel, cfg.Oversampling)
	}
	return d, nil
}

// Config returns the config the driver was opened with.
func (d *DMM) Config() DmmConfig {
	return d.cfg
}

// Ready reports whether the conversion has completed. Never an error; the
// caller's poll loop turns persistent not-ready into a timeout.
func (d *DMM) Ready() bool {
	return d.complete.Load()
}

// Conversion returns the completed sample as a Q16.16 voltage. While the
// hardware has not signalled completion it fails with DeviceNotReady.
func (d *DMM) Conversion() (fixed.Q1616, error) {
	if !d.complete.Load() {
		return 0, errcode.DeviceNotReady
	}
	raw, err := d.adc.Read()
	if err != nil {
		return 0, err
	}
	mv := d.adc.ReferenceMilliVolts()
	return fixed.FromFraction(int64(raw)*int64(mv), adcFullScale*1000), nil
}

// Close stops and releases the converter. Safe to call once per open; the
// protocol layer treats a nil driver as already closed.
func (d *DMM) Close() error {
	if err := d.adc.Stop(); err != nil && d.log != nil {
		d.log.Debugf("dmm: stop on close: %v", err)
	}
	return d.adc.Deinit()
}
