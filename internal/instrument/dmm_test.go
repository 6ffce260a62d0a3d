package instrument

import (
	"strconv"
	"testing"
	"time"

	"instrument-firmware/internal/errcode"
	"instrument-firmware/internal/hal"
	"instrument-firmware/pkg/protocol"
)

func TestDmmFetchBeforeInitiate(t *testing.T) {
	r := newRig(t)
	if got := r.send(t, "FETC?"); got != "" {
		t.Errorf("reply %q, want none", got)
	}
	if code := r.lastError(t); code != protocol.ErrExecution {
		t.Errorf("queued %d, want execution error", code)
	}
}

func TestDmmReadMillivolts(t *testing.T) {
	cases := []struct {
		raw  uint16
		want string
	}{
		{0, "0"},
		{2047, "1650"}, // 2047/4095 * 3300 mV, rounded
		{4095, "3300"},
	}
	for _, c := range cases {
		r := newRig(t)
		r.send(t, "INITiate")
		if code := r.lastError(t); code != protocol.ErrNone {
			t.Fatalf("initiate queued %d", code)
		}
		r.adc.Inject(c.raw, true)
		if got := r.send(t, "FETCh?"); got != c.want {
			t.Errorf("raw=%d: FETCh? = %q, want %q", c.raw, got, c.want)
		}
	}
}

func TestDmmFetchReplaysCachedValue(t *testing.T) {
	r := newRig(t)
	r.send(t, "INIT")
	r.adc.Inject(1000, true)
	first := r.send(t, "FETC?")
	if first == "" {
		t.Fatalf("no reply, queued %d", r.lastError(t))
	}
	// the driver is released after a completed fetch; the cache answers now
	if err := r.adc.Init(hal.ADCConfig{}); err != nil {
		t.Fatalf("converter still claimed after fetch: %v", err)
	}
	r.adc.Deinit()
	if again := r.send(t, "FETC?"); again != first {
		t.Errorf("cached fetch %q != first fetch %q", again, first)
	}
}

func TestDmmReadRunsFreshCycle(t *testing.T) {
	r := newRig(t)
	first := r.send(t, "READ?")
	// a new READ re-creates the driver and converts again; the simulated
	// waveform advances, so a fresh cycle yields a different sample
	second := r.send(t, "READ?")
	if first == "" || second == "" {
		t.Fatalf("read failed: %q %q (queued %d)", first, second, r.lastError(t))
	}
	if first == second {
		t.Errorf("two reads gave the same reply %q; stale driver reused?", first)
	}
}

func TestDmmConfigureBadChannel(t *testing.T) {
	r := newRig(t)
	for _, cmd := range []string{"CONF 16", "CONF -1", "CONF notanumber"} {
		if got := r.send(t, cmd); got != "" {
			t.Errorf("%s: unexpected reply %q", cmd, got)
		}
		if code := r.lastError(t); code != protocol.ErrIllegalParamValue {
			t.Errorf("%s: queued %d, want illegal parameter value", cmd, code)
		}
	}
	// stored config is untouched: a measurement still uses channel 0
	r.adc.Inject(100, true)
	if got := r.send(t, "READ?"); got == "" {
		t.Fatalf("read after rejected configure failed, queued %d", r.lastError(t))
	}
	recs := r.pub.records()
	if len(recs) == 0 || recs[len(recs)-1].Channel != 0 {
		t.Errorf("measurement did not use the preserved channel: %+v", recs)
	}
}

func TestDmmConfigureProbesHardware(t *testing.T) {
	r := newRig(t)
	r.adc.FailInit = errcode.HardwareFault
	r.send(t, "CONF 3")
	if code := r.lastError(t); code != protocol.ErrSystemError {
		t.Errorf("queued %d, want system error", code)
	}
	r.adc.FailInit = nil
	// the rejected candidate was not persisted
	r.adc.Inject(100, true)
	r.send(t, "READ?")
	recs := r.pub.records()
	if len(recs) == 0 || recs[len(recs)-1].Channel != 0 {
		t.Errorf("rejected configure leaked into stored config: %+v", recs)
	}
}

func TestDmmMeasureWithChannel(t *testing.T) {
	r := newRig(t)
	got := r.send(t, "MEASure? 5")
	if got == "" {
		t.Fatalf("MEASure? failed, queued %d", r.lastError(t))
	}
	mv, err := strconv.ParseInt(got, 10, 64)
	if err != nil {
		t.Fatalf("MEASure? reply %q not an integer", got)
	}
	recs := r.pub.records()
	if len(recs) != 1 || recs[0].Channel != 5 {
		t.Fatalf("records = %+v, want one on channel 5", recs)
	}
	if recs[0].Instrument != "dmm" || recs[0].MilliVolts != mv {
		t.Errorf("record = %+v, reply %d mV", recs[0], mv)
	}
}

func TestDmmFetchTimeout(t *testing.T) {
	r := newRig(t)
	r.adc.Latency = time.Hour // completion never arrives in test time
	r.send(t, "INIT")
	if got := r.send(t, "FETC?"); got != "" {
		t.Fatalf("reply %q on timeout", got)
	}
	if code := r.lastError(t); code != protocol.ErrSystemError {
		t.Errorf("queued %d, want system error", code)
	}
	// timed-out fetch leaves no driver and no cached value
	if got := r.send(t, "FETC?"); got != "" {
		t.Errorf("reply %q after timed-out fetch", got)
	}
	if code := r.lastError(t); code != protocol.ErrExecution {
		t.Errorf("queued %d, want execution error", code)
	}
}
