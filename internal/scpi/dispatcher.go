package scpi

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"instrument-firmware/internal/monitor"
	"instrument-firmware/pkg/protocol"
)

// maxPendingInput bounds the partial-line buffer so a client that never sends
// a terminator cannot grow it without limit.
const maxPendingInput = 64 * 1024

// Context carries one parsed command into its handler.
type Context struct {
	Mnemonic string   // header as received, without the query suffix
	Args     []string // comma-separated parameters, trimmed
	Query    bool

	out bytes.Buffer
}

// Printf appends formatted text to the reply.
func (c *Context) Printf(format string, a ...interface{}) {
	fmt.Fprintf(&c.out, format, a...)
}

// WriteBlock appends a definite-length binary block to the reply.
func (c *Context) WriteBlock(payload []byte) {
	b := c.out.Bytes()
	c.out.Reset()
	c.out.Write(AppendBlock(b, payload))
}

// Arg returns the i-th parameter.
func (c *Context) Arg(i int) (string, bool) {
	if i < 0 || i >= len(c.Args) {
		return "", false
	}
	return c.Args[i], true
}

// UintArg parses the i-th parameter as an unsigned decimal.
func (c *Context) UintArg(i int) (uint64, error) {
	s, ok := c.Arg(i)
	if !ok {
		return 0, fmt.Errorf("missing parameter %d", i)
	}
	return strconv.ParseUint(s, 10, 64)
}

// Dispatcher accumulates transport chunks into command lines and routes each
// command to its handler. One dispatcher serves one engine; concurrent feeds
// are serialized by the session layer.
type Dispatcher struct {
	log     *logrus.Logger
	cmds    []compiledCommand
	queue   *ErrorQueue
	pending []byte
}

// NewDispatcher compiles the command table. Invalid patterns are programmer
// errors and panic at startup.
func NewDispatcher(log *logrus.Logger, queue *ErrorQueue, commands []Command) *Dispatcher {
	d := &Dispatcher{log: log, queue: queue}
	for _, c := range commands {
		segs, query, err := compilePattern(c.Pattern)
		if err != nil {
			panic(err)
		}
		d.cmds = append(d.cmds, compiledCommand{
			pattern:  c.Pattern,
			segments: segs,
			query:    query,
			handler:  c.Handler,
		})
	}
	return d
}

// Queue exposes the pending-error queue.
func (d *Dispatcher) Queue() *ErrorQueue {
	return d.queue
}

// Feed consumes one transport chunk. Complete lines are executed; a trailing
// partial command stays buffered for the next chunk. Replies are written to w.
func (d *Dispatcher) Feed(chunk []byte, w io.Writer) error {
	d.pending = append(d.pending, chunk...)
	if len(d.pending) > maxPendingInput {
		d.pending = nil
		d.queue.Push(protocol.ErrCommand)
		return nil
	}
	for {
		i := bytes.IndexByte(d.pending, '\n')
		if i < 0 {
			return nil
		}
		line := strings.TrimRight(string(d.pending[:i]), "\r")
		d.pending = d.pending[i+1:]
		if err := d.execLine(line, w); err != nil {
			return err
		}
	}
}

// execLine runs the `;`-separated commands of one line in arrival order. A
// failing command pushes one error and the rest of the line still runs.
func (d *Dispatcher) execLine(line string, w io.Writer) error {
	var replies [][]byte
	for _, part := range strings.Split(line, ";") {
		out, code := d.exec(part)
		if code != protocol.ErrNone {
			d.queue.Push(code)
			monitor.CommandErrors.WithLabelValues(strconv.Itoa(code)).Inc()
			if d.log != nil {
				d.log.Debugf("scpi: %q -> error %d", strings.TrimSpace(part), code)
			}
			continue
		}
		monitor.CommandsProcessed.Inc()
		if len(out) > 0 {
			replies = append(replies, out)
		}
	}
	if len(replies) == 0 {
		return nil
	}
	resp := bytes.Join(replies, []byte(";"))
	resp = append(resp, '\n')
	if _, err := w.Write(resp); err != nil {
		return fmt.Errorf("write reply: %w", err)
	}
	return nil
}

// exec parses and runs a single command, returning its reply bytes and an
// error code (0 on success). On failure any partial reply is discarded.
func (d *Dispatcher) exec(text string) ([]byte, int) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, protocol.ErrNone
	}

	header := text
	params := ""
	if i := strings.IndexAny(text, " \t"); i >= 0 {
		header = text[:i]
		params = strings.TrimSpace(text[i+1:])
	}

	query := strings.HasSuffix(header, "?")
	header = strings.TrimSuffix(header, "?")
	header = strings.TrimPrefix(header, ":")
	parts := strings.Split(header, ":")

	for _, c := range d.cmds {
		if c.query != query || !matchParts(c.segments, parts) {
			continue
		}
		ctx := &Context{Mnemonic: header, Query: query}
		if params != "" {
			for _, a := range strings.Split(params, ",") {
				ctx.Args = append(ctx.Args, strings.TrimSpace(a))
			}
		}
		code := c.handler(ctx)
		if code != protocol.ErrNone {
			return nil, code
		}
		return ctx.out.Bytes(), protocol.ErrNone
	}
	return nil, protocol.ErrUndefinedHeader
}
