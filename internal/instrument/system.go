package instrument

import (
	"strconv"

	"instrument-firmware/internal/driver"
	"instrument-firmware/internal/scpi"
	"instrument-firmware/pkg/protocol"
)

// scpiVersion is the SYSTem:VERSion? reply.
const scpiVersion = "1999.0"

func (e *Engine) cmdRst(ctx *scpi.Context) int {
	e.reset()
	if e.log != nil {
		e.log.Info("instrument reset")
	}
	return protocol.ErrNone
}

func (e *Engine) cmdIdnQ(ctx *scpi.Context) int {
	ctx.Printf("\"%s\",\"%s\",\"%s\",\"%s\"",
		e.identity.Manufacturer, e.identity.Model,
		e.identity.SerialNumber, e.identity.Firmware)
	return protocol.ErrNone
}

// cmdTstQ self-tests by opening and releasing a DMM binding with the stored
// config. 0 is pass; failures report 1 on the reply, not the error queue.
func (e *Engine) cmdTstQ(ctx *scpi.Context) int {
	if e.dmm.active != nil || (e.dso.drv != nil && e.dso.drv.Running()) {
		ctx.Printf("1")
		return protocol.ErrNone
	}
	probe, err := driver.OpenDMM(e.adc, e.log, e.dmm.stored)
	if err != nil {
		ctx.Printf("1")
		return protocol.ErrNone
	}
	if err := probe.Close(); err != nil {
		ctx.Printf("1")
		return protocol.ErrNone
	}
	ctx.Printf("0")
	return protocol.ErrNone
}

func (e *Engine) cmdCls(ctx *scpi.Context) int {
	e.queue.Clear()
	e.esr = 0
	return protocol.ErrNone
}

func (e *Engine) parseByteArg(ctx *scpi.Context) (uint8, int) {
	s, ok := ctx.Arg(0)
	if !ok {
		return 0, protocol.ErrMissingParameter
	}
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, protocol.ErrIllegalParamValue
	}
	return uint8(v), protocol.ErrNone
}

func (e *Engine) cmdEse(ctx *scpi.Context) int {
	v, code := e.parseByteArg(ctx)
	if code != protocol.ErrNone {
		return code
	}
	e.ese = v
	return protocol.ErrNone
}

func (e *Engine) cmdEseQ(ctx *scpi.Context) int {
	ctx.Printf("%d", e.ese)
	return protocol.ErrNone
}

// cmdEsrQ reports and clears the standard event status register.
func (e *Engine) cmdEsrQ(ctx *scpi.Context) int {
	ctx.Printf("%d", e.esr)
	e.esr = 0
	return protocol.ErrNone
}

// cmdOpc sets the operation-complete bit immediately: every command here is
// sequential, so there is never a pending overlapped operation.
func (e *Engine) cmdOpc(ctx *scpi.Context) int {
	e.esr |= protocol.EsrOperationComplete
	return protocol.ErrNone
}

func (e *Engine) cmdOpcQ(ctx *scpi.Context) int {
	ctx.Printf("1")
	return protocol.ErrNone
}

func (e *Engine) cmdSre(ctx *scpi.Context) int {
	v, code := e.parseByteArg(ctx)
	if code != protocol.ErrNone {
		return code
	}
	e.sre = v
	return protocol.ErrNone
}

func (e *Engine) cmdSreQ(ctx *scpi.Context) int {
	ctx.Printf("%d", e.sre)
	return protocol.ErrNone
}

func (e *Engine) statusByte() uint8 {
	var stb uint8
	if e.queue.Count() > 0 {
		stb |= protocol.StbErrorQueue
	}
	if e.esr&e.ese != 0 {
		stb |= protocol.StbESB
	}
	if stb&e.sre != 0 {
		stb |= protocol.StbMSS
	}
	return stb
}

func (e *Engine) cmdStbQ(ctx *scpi.Context) int {
	ctx.Printf("%d", e.statusByte())
	return protocol.ErrNone
}

// cmdWai is a no-op: all operations complete before the next command runs.
func (e *Engine) cmdWai(ctx *scpi.Context) int {
	return protocol.ErrNone
}

func (e *Engine) cmdSystErrQ(ctx *scpi.Context) int {
	code := e.queue.Pop()
	ctx.Printf("%d,\"%s\"", code, protocol.ErrorMessage(code))
	return protocol.ErrNone
}

func (e *Engine) cmdSystErrCountQ(ctx *scpi.Context) int {
	ctx.Printf("%d", e.queue.Count())
	return protocol.ErrNone
}

func (e *Engine) cmdSystVersQ(ctx *scpi.Context) int {
	ctx.Printf("%s", scpiVersion)
	return protocol.ErrNone
}
