package instrument

import (
	"runtime"
	"strings"

	"instrument-firmware/internal/driver"
	"instrument-firmware/internal/hal"
	"instrument-firmware/internal/monitor"
	"instrument-firmware/internal/scpi"
	"instrument-firmware/pkg/protocol"
)

// horizontalDivisions is the fixed display division count the timebase is
// spread over.
const horizontalDivisions = 10

// deriveSampleRate computes the rate implied by a buffer size and a per-
// division timebase. Any of the three knobs changing re-derives the rate
// from the other two.
func deriveSampleRate(points int, timebaseUs uint32) uint32 {
	if timebaseUs == 0 {
		return 0
	}
	r := uint64(points) * 1_000_000 / (uint64(timebaseUs) * horizontalDivisions)
	if r > 0xFFFFFFFF {
		return 0xFFFFFFFF
	}
	return uint32(r)
}

// applyDsoConfig recomputes the sample rate, (re)allocates the acquisition
// buffer if the size changed and applies the result to the driver, creating
// one if none exists. On failure the candidate buffer is discarded and the
// committed configuration stays exactly as it was; the old buffer is only
// replaced after the driver has accepted the new one.
func (e *Engine) applyDsoConfig(mode hal.SampleMode, channel int, timebaseUs uint32, points int) int {
	if e.dso.drv != nil && e.dso.drv.Running() {
		return protocol.ErrExecution
	}
	rate := deriveSampleRate(points, timebaseUs)
	if rate == 0 || rate > e.adc.MaxSampleRate(mode) {
		return protocol.ErrIllegalParamValue
	}

	buf := e.dso.buffer
	allocated := points != len(buf)
	if allocated {
		buf = make([]uint16, points)
	}
	cfg := driver.DsoConfig{
		Mode:       mode,
		Channel:    channel,
		SampleRate: rate,
		Buffer:     buf,
	}

	if e.dso.drv == nil {
		d, err := driver.OpenDSO(e.adc, e.log, cfg)
		if err != nil {
			return errorCode(err)
		}
		e.dso.drv = d
	} else {
		if err := e.dso.drv.SetConfig(cfg); err != nil {
			return errorCode(err)
		}
	}

	if allocated {
		e.dso.complete = false
	}
	e.dso.buffer = buf
	e.dso.mode = mode
	e.dso.channel = channel
	e.dso.timebaseUs = timebaseUs
	e.dso.points = points
	e.dso.rate = rate
	if e.log != nil {
		e.log.Debugf("dso: configured mode=%s ch=%d timebase=%dus points=%d rate=%d",
			mode, channel, timebaseUs, points, rate)
	}
	return protocol.ErrNone
}

func parseChannelChoice(s string) (hal.SampleMode, int, bool) {
	switch strings.ToUpper(s) {
	case "CH1":
		return hal.SingleChannel, 0, true
	case "CH2":
		return hal.SingleChannel, 1, true
	case "CH1CH2":
		return hal.DualChannel, 0, true
	}
	return 0, 0, false
}

func channelChoice(mode hal.SampleMode, channel int) string {
	if mode == hal.DualChannel {
		return "CH1CH2"
	}
	if channel == 1 {
		return "CH2"
	}
	return "CH1"
}

func (e *Engine) dsoConfChannel(ctx *scpi.Context) int {
	s, ok := ctx.Arg(0)
	if !ok {
		return protocol.ErrMissingParameter
	}
	mode, channel, ok := parseChannelChoice(s)
	if !ok {
		return protocol.ErrIllegalParamValue
	}
	return e.applyDsoConfig(mode, channel, e.dso.timebaseUs, e.dso.points)
}

func (e *Engine) dsoConfChannelQ(ctx *scpi.Context) int {
	ctx.Printf("%s", channelChoice(e.dso.mode, e.dso.channel))
	return protocol.ErrNone
}

func (e *Engine) dsoConfTimebase(ctx *scpi.Context) int {
	us, err := ctx.UintArg(0)
	if err != nil {
		if _, ok := ctx.Arg(0); !ok {
			return protocol.ErrMissingParameter
		}
		return protocol.ErrIllegalParamValue
	}
	if us == 0 || us > 0xFFFFFFFF {
		return protocol.ErrIllegalParamValue
	}
	return e.applyDsoConfig(e.dso.mode, e.dso.channel, uint32(us), e.dso.points)
}

func (e *Engine) dsoConfTimebaseQ(ctx *scpi.Context) int {
	ctx.Printf("%d", e.dso.timebaseUs)
	return protocol.ErrNone
}

func (e *Engine) dsoConfPoints(ctx *scpi.Context) int {
	n, err := ctx.UintArg(0)
	if err != nil {
		if _, ok := ctx.Arg(0); !ok {
			return protocol.ErrMissingParameter
		}
		return protocol.ErrIllegalParamValue
	}
	if n == 0 || n > 1<<20 {
		return protocol.ErrIllegalParamValue
	}
	return e.applyDsoConfig(e.dso.mode, e.dso.channel, e.dso.timebaseUs, int(n))
}

func (e *Engine) dsoConfPointsQ(ctx *scpi.Context) int {
	ctx.Printf("%d", e.dso.points)
	return protocol.ErrNone
}

func (e *Engine) dsoSampleRateQ(ctx *scpi.Context) int {
	rate := e.dso.rate
	if e.dso.drv != nil {
		rate = e.dso.drv.SampleRate()
	}
	if rate == 0 {
		rate = deriveSampleRate(e.dso.points, e.dso.timebaseUs)
	}
	ctx.Printf("%d", rate)
	return protocol.ErrNone
}

// dsoInitiate starts an acquisition, applying the default configuration
// first if none has been committed yet.
func (e *Engine) dsoInitiate(ctx *scpi.Context) int {
	if e.dso.drv == nil {
		code := e.applyDsoConfig(e.dso.mode, e.dso.channel, e.dso.timebaseUs, e.dso.points)
		if code != protocol.ErrNone {
			return code
		}
	}
	if e.dso.drv.Running() {
		return protocol.ErrExecution
	}
	e.dso.complete = false
	if err := e.dso.drv.Start(); err != nil {
		return errorCode(err)
	}
	e.dso.startedAt = e.clock.Now()
	return protocol.ErrNone
}

// dsoAbort stops and fully releases the driver. The owned buffer survives,
// but its contents are no longer retrievable (the completion flag clears).
func (e *Engine) dsoAbort(ctx *scpi.Context) int {
	if e.dso.drv == nil {
		return protocol.ErrNone
	}
	if err := e.dso.drv.Close(); err != nil {
		e.dso.drv = nil
		e.dso.complete = false
		return errorCode(err)
	}
	e.dso.drv = nil
	e.dso.complete = false
	return protocol.ErrNone
}

// dsoFetch emits the acquisition buffer as a binary block. An acquisition
// still in flight is polled with the 1 s deadline; a driver that stopped
// without ever completing (aborted or failed) is a sequence error.
func (e *Engine) dsoFetch(ctx *scpi.Context) int {
	if e.dso.buffer == nil || e.dso.drv == nil {
		return protocol.ErrExecution
	}
	if e.dso.drv.Running() {
		start := e.clock.Now()
		for !e.dso.drv.Complete() {
			if e.clock.Now()-start >= completionTimeoutMs {
				if err := e.dso.drv.Close(); err != nil && e.log != nil {
					e.log.Warnf("dso: abort after fetch timeout: %v", err)
				}
				e.dso.drv = nil
				e.dso.complete = false
				return protocol.ErrSystemError
			}
			runtime.Gosched()
		}
	}
	if !e.dso.drv.Complete() && !e.dso.complete {
		return protocol.ErrExecution
	}
	if err := e.dso.drv.Stop(); err != nil {
		return errorCode(err)
	}
	e.dso.complete = true
	if e.dso.startedAt != 0 {
		monitor.AcquisitionDuration.Observe(float64(e.clock.Now()-e.dso.startedAt) / 1000)
		e.dso.startedAt = 0
		e.publish(&protocol.Measurement{
			Instrument: "dso",
			Channel:    e.dso.channel,
			SampleRate: e.dso.rate,
			Samples:    append([]uint16(nil), e.dso.buffer...),
		})
	}
	ctx.WriteBlock(scpi.SamplesToBytes(e.dso.buffer))
	return protocol.ErrNone
}

// dsoRead is abort-if-running, initiate, fetch.
func (e *Engine) dsoRead(ctx *scpi.Context) int {
	if e.dso.drv != nil && e.dso.drv.Running() {
		if code := e.dsoAbort(ctx); code != protocol.ErrNone {
			return code
		}
	}
	if code := e.dsoInitiate(ctx); code != protocol.ErrNone {
		return code
	}
	return e.dsoFetch(ctx)
}

// dsoMeasure optionally reconfigures the channel, then runs a full read.
func (e *Engine) dsoMeasure(ctx *scpi.Context) int {
	if _, ok := ctx.Arg(0); ok {
		if code := e.dsoConfChannel(ctx); code != protocol.ErrNone {
			return code
		}
	}
	return e.dsoRead(ctx)
}

func (e *Engine) dsoStatusQ(ctx *scpi.Context) int {
	complete := e.dso.complete || (e.dso.drv != nil && e.dso.drv.Complete())
	status := protocol.AcqIdle
	switch {
	case e.dso.drv != nil && e.dso.drv.Running():
		status = protocol.AcqRunning
	case e.dso.buffer != nil && complete:
		status = protocol.AcqComplete
	}
	ctx.Printf("%d", status)
	return protocol.ErrNone
}
