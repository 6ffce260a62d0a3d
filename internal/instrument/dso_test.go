package instrument

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"instrument-firmware/internal/scpi"
	"instrument-firmware/pkg/protocol"
)

func TestDsoSampleRateDerivation(t *testing.T) {
	r := newRig(t)
	r.send(t, "OSC:CONF:ACQ:POIN 512")
	r.send(t, "OSC:CONF:TIME 100")
	if code := r.lastError(t); code != protocol.ErrNone {
		t.Fatalf("configure queued %d", code)
	}
	if got := r.send(t, "OSC:CONF:ACQ:SRAT?"); got != "512000" {
		t.Errorf("SRATe? = %q, want 512000", got)
	}
	// changing only the timebase re-derives against the same buffer
	r.send(t, "OSC:CONF:TIME 50")
	if got := r.send(t, "OSC:CONF:ACQ:SRAT?"); got != "1024000" {
		t.Errorf("SRATe? after timebase change = %q, want 1024000", got)
	}
	if got := r.send(t, "OSC:CONF:ACQ:POIN?"); got != "512" {
		t.Errorf("POINts? = %q, want 512", got)
	}
}

func TestDsoRejectsInconsistentRates(t *testing.T) {
	r := newRig(t)
	// rate would exceed the single-channel maximum
	r.send(t, "OSC:CONF:TIME 2")
	if code := r.lastError(t); code != protocol.ErrIllegalParamValue {
		t.Errorf("fast timebase queued %d, want illegal parameter value", code)
	}
	if got := r.send(t, "OSC:CONF:TIME?"); got != "100" {
		t.Errorf("rejected timebase committed: %q", got)
	}

	// rate would round down to zero
	r.send(t, "OSC:CONF:ACQ:POIN 1")
	if code := r.lastError(t); code != protocol.ErrNone {
		t.Fatalf("points queued %d", code)
	}
	r.send(t, "OSC:CONF:TIME 1000000")
	if code := r.lastError(t); code != protocol.ErrIllegalParamValue {
		t.Errorf("zero rate queued %d, want illegal parameter value", code)
	}

	// dual-channel maximum is half the interleaved one
	r.send(t, "OSC:CONF:ACQ:POIN 512")
	r.send(t, "OSC:CONF:TIME 100")
	r.send(t, "OSC:CONF:CHAN CH1CH2") // 512000 <= 1 MHz, fine
	if code := r.lastError(t); code != protocol.ErrNone {
		t.Fatalf("dual channel queued %d", code)
	}
	r.send(t, "OSC:CONF:TIME 40") // 1.28 MHz > dual max
	if code := r.lastError(t); code != protocol.ErrIllegalParamValue {
		t.Errorf("dual overrate queued %d, want illegal parameter value", code)
	}
}

func TestDsoChannelChoices(t *testing.T) {
	r := newRig(t)
	if got := r.send(t, "OSC:CONF:CHAN?"); got != "CH1" {
		t.Errorf("default channel %q", got)
	}
	for _, choice := range []string{"CH2", "CH1CH2", "CH1"} {
		r.send(t, "OSC:CONF:CHAN "+choice)
		if code := r.lastError(t); code != protocol.ErrNone {
			t.Fatalf("%s queued %d", choice, code)
		}
		if got := r.send(t, "OSC:CONF:CHAN?"); got != choice {
			t.Errorf("CHANnel? = %q, want %s", got, choice)
		}
	}
	r.send(t, "OSC:CONF:CHAN CH3")
	if code := r.lastError(t); code != protocol.ErrIllegalParamValue {
		t.Errorf("CH3 queued %d, want illegal parameter value", code)
	}
	r.send(t, "OSC:CONF:CHAN")
	if code := r.lastError(t); code != protocol.ErrMissingParameter {
		t.Errorf("missing choice queued %d, want missing parameter", code)
	}
}

func TestDsoBusyWhileAcquiring(t *testing.T) {
	r := newRig(t)
	r.adc.Latency = time.Hour
	r.send(t, "OSC:INIT")
	if code := r.lastError(t); code != protocol.ErrNone {
		t.Fatalf("initiate queued %d", code)
	}
	if got := r.send(t, "OSC:STAT:ACQ?"); got != "1" {
		t.Fatalf("status while running = %q, want 1", got)
	}
	for _, cmd := range []string{"OSC:CONF:TIME 50", "OSC:CONF:ACQ:POIN 64", "OSC:CONF:CHAN CH2"} {
		r.send(t, cmd)
		if code := r.lastError(t); code != protocol.ErrExecution {
			t.Errorf("%s while acquiring queued %d, want execution error", cmd, code)
		}
	}
	// prior configuration still active and retrievable
	if got := r.send(t, "OSC:CONF:TIME?"); got != "100" {
		t.Errorf("timebase changed during rejected reconfigure: %q", got)
	}
	r.send(t, "OSC:ABOR")
	if code := r.lastError(t); code != protocol.ErrNone {
		t.Errorf("abort queued %d", code)
	}
}

func TestDsoAcquisitionStatusLifecycle(t *testing.T) {
	r := newRig(t)
	if got := r.send(t, "OSC:STAT:ACQ?"); got != "0" {
		t.Errorf("status before any buffer = %q, want 0", got)
	}
	r.send(t, "OSC:INIT") // completes immediately in the sim
	if got := r.send(t, "OSC:STAT:ACQ?"); got != "2" {
		t.Errorf("status after completion = %q, want 2", got)
	}
	r.send(t, "OSC:FETC?")
	if code := r.lastError(t); code != protocol.ErrNone {
		t.Fatalf("fetch queued %d", code)
	}
	if got := r.send(t, "OSC:STAT:ACQ?"); got != "2" {
		t.Errorf("status after fetch = %q, want 2", got)
	}
}

func TestDsoFetchBinaryBlock(t *testing.T) {
	r := newRig(t)
	r.send(t, "OSC:CONF:ACQ:POIN 16")
	if code := r.lastError(t); code != protocol.ErrNone {
		t.Fatalf("points queued %d", code)
	}
	r.send(t, "OSC:INIT")
	raw := r.send(t, "OSC:FETC:DAT?")
	if raw == "" {
		t.Fatalf("no block, queued %d", r.lastError(t))
	}
	payload, _, err := scpi.ParseBlock([]byte(raw))
	if err != nil {
		t.Fatalf("parse block: %v", err)
	}
	if len(payload) != 16*2 {
		t.Fatalf("payload %d bytes, want %d", len(payload), 16*2)
	}
	// the sim fills a known ramp; check the round trip sample by sample
	for i := 0; i < 16; i++ {
		got := binary.LittleEndian.Uint16(payload[2*i:])
		if got != uint16(i+1) {
			t.Errorf("sample %d = %d, want %d", i, got, i+1)
		}
	}
}

func TestDsoFetchAfterAbort(t *testing.T) {
	r := newRig(t)
	r.adc.Latency = time.Hour
	r.send(t, "OSC:INIT")
	r.send(t, "OSC:ABOR")
	r.send(t, "OSC:FETC?")
	if code := r.lastError(t); code != protocol.ErrExecution {
		t.Errorf("fetch after abort queued %d, want execution error", code)
	}
}

func TestDsoFetchTimeout(t *testing.T) {
	r := newRig(t)
	r.adc.Latency = time.Hour
	r.send(t, "OSC:INIT")
	r.send(t, "OSC:FETC?")
	if code := r.lastError(t); code != protocol.ErrSystemError {
		t.Errorf("fetch timeout queued %d, want system error", code)
	}
	// the driver was released; a further fetch is a sequence error
	r.send(t, "OSC:FETC?")
	if code := r.lastError(t); code != protocol.ErrExecution {
		t.Errorf("fetch after timeout queued %d, want execution error", code)
	}
}

func TestDsoReadAndMeasure(t *testing.T) {
	r := newRig(t)
	r.send(t, "OSC:CONF:ACQ:POIN 8")
	raw := r.send(t, "OSC:READ?")
	payload, _, err := scpi.ParseBlock([]byte(raw))
	if err != nil {
		t.Fatalf("READ? block: %v (queued %d)", err, r.lastError(t))
	}
	if len(payload) != 16 {
		t.Errorf("READ? payload %d bytes, want 16", len(payload))
	}

	raw = r.send(t, "OSC:MEAS? CH2")
	if _, _, err := scpi.ParseBlock([]byte(raw)); err != nil {
		t.Fatalf("MEASure? block: %v (queued %d)", err, r.lastError(t))
	}
	if got := r.send(t, "OSC:CONF:CHAN?"); got != "CH2" {
		t.Errorf("MEASure? did not select CH2: %q", got)
	}

	recs := r.pub.records()
	var dso int
	for _, m := range recs {
		if m.Instrument == "dso" {
			dso++
			if len(m.Samples) != 8 {
				t.Errorf("published %d samples, want 8", len(m.Samples))
			}
		}
	}
	if dso != 2 {
		t.Errorf("published %d dso records, want 2", dso)
	}
}

func TestDsoBufferPreservedOnRejectedConfig(t *testing.T) {
	r := newRig(t)
	r.send(t, "OSC:CONF:ACQ:POIN 16")
	r.send(t, "OSC:INIT")
	first := r.send(t, "OSC:FETC?")
	// rejected reconfigure: new size would blow the rate limit
	r.send(t, "OSC:CONF:ACQ:POIN 1000000")
	if code := r.lastError(t); code != protocol.ErrIllegalParamValue {
		t.Fatalf("oversize points queued %d", code)
	}
	// committed buffer still intact and retrievable
	again := r.send(t, "OSC:FETC?")
	if !bytes.Equal([]byte(first), []byte(again)) {
		t.Errorf("buffer changed after rejected reconfigure")
	}
}
