package driver

import (
	"errors"
	"testing"
	"time"

	"instrument-firmware/internal/errcode"
	"instrument-firmware/internal/hal"
)

func TestDsoConfigValidate(t *testing.T) {
	adc := newTestADC()
	buf := make([]uint16, 64)
	cases := []struct {
		name string
		cfg  DsoConfig
		ok   bool
	}{
		{"single ok", DsoConfig{Mode: hal.SingleChannel, Channel: 0, SampleRate: 512000, Buffer: buf}, true},
		{"single ch1", DsoConfig{Mode: hal.SingleChannel, Channel: 1, SampleRate: 512000, Buffer: buf}, true},
		{"dual ok", DsoConfig{Mode: hal.DualChannel, SampleRate: 1000000, Buffer: buf}, true},
		{"rate zero", DsoConfig{Mode: hal.SingleChannel, SampleRate: 0, Buffer: buf}, false},
		{"rate above single max", DsoConfig{Mode: hal.SingleChannel, SampleRate: 2000001, Buffer: buf}, false},
		{"rate above dual max", DsoConfig{Mode: hal.DualChannel, SampleRate: 1000001, Buffer: buf}, false},
		{"bad channel", DsoConfig{Mode: hal.SingleChannel, Channel: 2, SampleRate: 512000, Buffer: buf}, false},
		{"nil buffer", DsoConfig{Mode: hal.SingleChannel, SampleRate: 512000}, false},
	}
	for _, c := range cases {
		err := c.cfg.Validate(adc)
		if c.ok && err != nil {
			t.Errorf("%s: unexpected error %v", c.name, err)
		}
		if !c.ok && !errors.Is(err, errcode.InvalidArgument) {
			t.Errorf("%s: got %v, want InvalidArgument", c.name, err)
		}
	}
}

func TestDsoAcquisition(t *testing.T) {
	adc := newTestADC()
	buf := make([]uint16, 32)
	d, err := OpenDSO(adc, nil, DsoConfig{Mode: hal.SingleChannel, SampleRate: 512000, Buffer: buf})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer d.Close()

	if d.Complete() {
		t.Fatal("complete before start")
	}
	if err := d.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	// sim completes synchronously with zero latency
	if d.Running() {
		t.Fatal("still running after completion")
	}
	if !d.Complete() {
		t.Fatal("completion flag not set")
	}
	for i, v := range buf {
		if v > 4095 {
			t.Fatalf("sample %d out of 12-bit range: %d", i, v)
		}
	}
}

func TestDsoReconfigureWhileRunning(t *testing.T) {
	adc := newTestADC()
	adc.Latency = time.Hour
	buf := make([]uint16, 32)
	cfg := DsoConfig{Mode: hal.SingleChannel, SampleRate: 512000, Buffer: buf}
	d, err := OpenDSO(adc, nil, cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer d.Close()

	if err := d.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !d.Running() {
		t.Fatal("not running")
	}
	cfg.SampleRate = 256000
	if err := d.SetConfig(cfg); !errors.Is(err, errcode.ResourceBusy) {
		t.Fatalf("reconfigure while running: got %v, want ResourceBusy", err)
	}
	if d.Config().SampleRate != 512000 {
		t.Fatal("committed config changed on rejected reconfigure")
	}
	if err := d.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if d.Running() {
		t.Fatal("running after stop")
	}
}

func TestDsoSetConfigIdle(t *testing.T) {
	adc := newTestADC()
	buf := make([]uint16, 32)
	d, err := OpenDSO(adc, nil, DsoConfig{Mode: hal.SingleChannel, SampleRate: 512000, Buffer: buf})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer d.Close()

	next := DsoConfig{Mode: hal.DualChannel, SampleRate: 250000, Buffer: make([]uint16, 64)}
	if err := d.SetConfig(next); err != nil {
		t.Fatalf("set config: %v", err)
	}
	if d.Config().Mode != hal.DualChannel || d.Config().SampleRate != 250000 {
		t.Fatal("config not committed")
	}

	bad := next
	bad.SampleRate = 0
	if err := d.SetConfig(bad); !errors.Is(err, errcode.InvalidArgument) {
		t.Fatalf("invalid config: got %v, want InvalidArgument", err)
	}
	if d.Config().SampleRate != 250000 {
		t.Fatal("committed config changed on invalid reconfigure")
	}
}
