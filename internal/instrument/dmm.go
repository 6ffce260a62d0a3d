package instrument

import (
	"errors"
	"runtime"
	"strconv"

	"instrument-firmware/internal/driver"
	"instrument-firmware/internal/errcode"
	"instrument-firmware/internal/fixed"
	"instrument-firmware/internal/scpi"
	"instrument-firmware/pkg/protocol"
)

// dmmConfigure validates a candidate config by actually opening and releasing
// a driver, so hardware-level rejections are caught, then persists it. The
// stored config is untouched on failure.
func (e *Engine) dmmConfigure(ctx *scpi.Context) int {
	candidate := e.dmm.stored
	if s, ok := ctx.Arg(0); ok {
		ch, err := strconv.Atoi(s)
		if err != nil {
			return protocol.ErrIllegalParamValue
		}
		candidate.Channel = ch
	}
	probe, err := driver.OpenDMM(e.adc, e.log, candidate)
	if err != nil {
		return errorCode(err)
	}
	if err := probe.Close(); err != nil {
		return errorCode(err)
	}
	e.dmm.stored = candidate
	if e.log != nil {
		e.log.Debugf("dmm: configured ch=%d", candidate.Channel)
	}
	return protocol.ErrNone
}

// dmmInitiate starts a fresh conversion from the stored config. Any previous
// driver is released and the cached reading invalidated first, so a failure
// leaves the state machine with no active driver and no stale value.
func (e *Engine) dmmInitiate(ctx *scpi.Context) int {
	e.dmmRelease()
	e.dmm.hasCached = false
	d, err := driver.OpenDMM(e.adc, e.log, e.dmm.stored)
	if err != nil {
		return errorCode(err)
	}
	e.dmm.active = d
	return protocol.ErrNone
}

// dmmFetch returns the measured voltage in millivolts. With an active driver
// it polls for completion (bounded by the 1 s tick deadline), caches the value
// and releases the driver; with no driver it replays the cached value. Fetch
// before any initiate is a sequence error.
func (e *Engine) dmmFetch(ctx *scpi.Context) int {
	if e.dmm.active != nil {
		v, err := e.waitConversion(e.dmm.active)
		e.dmmRelease()
		if err != nil {
			e.dmm.hasCached = false
			return errorCode(err)
		}
		e.dmm.cached = v
		e.dmm.hasCached = true
		e.publish(&protocol.Measurement{
			Instrument: "dmm",
			Channel:    e.dmm.stored.Channel,
			MilliVolts: fixed.MulInt(v, 1000),
		})
	}
	if !e.dmm.hasCached {
		return protocol.ErrExecution
	}
	mv := fixed.MulInt(e.dmm.cached, 1000)
	if mv < 0 {
		mv = 0
	}
	ctx.Printf("%d", mv)
	return protocol.ErrNone
}

// dmmRead is initiate followed by fetch, short-circuiting on failure.
func (e *Engine) dmmRead(ctx *scpi.Context) int {
	if code := e.dmmInitiate(ctx); code != protocol.ErrNone {
		return code
	}
	return e.dmmFetch(ctx)
}

// dmmMeasure is configure followed by read.
func (e *Engine) dmmMeasure(ctx *scpi.Context) int {
	if code := e.dmmConfigure(ctx); code != protocol.ErrNone {
		return code
	}
	return e.dmmRead(ctx)
}

func (e *Engine) dmmRelease() {
	if e.dmm.active == nil {
		return
	}
	if err := e.dmm.active.Close(); err != nil && e.log != nil {
		e.log.Warnf("dmm: release: %v", err)
	}
	e.dmm.active = nil
}

// waitConversion polls the completion flag, re-entering the tick source every
// iteration. Repeated not-ready becomes Timeout after the 1 s deadline; any
// other driver failure is surfaced as-is.
func (e *Engine) waitConversion(d *driver.DMM) (fixed.Q1616, error) {
	start := e.clock.Now()
	for {
		v, err := d.Conversion()
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, errcode.DeviceNotReady) {
			return 0, err
		}
		if e.clock.Now()-start >= completionTimeoutMs {
			return 0, errcode.Timeout
		}
		runtime.Gosched()
	}
}
