package server

import (
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"instrument-firmware/internal/hal"
	"instrument-firmware/internal/instrument"
	"instrument-firmware/internal/transport"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestEngine() *instrument.Engine {
	adc := hal.NewSimADC(nil, 2000000, 1000000, 3300)
	return instrument.NewEngine(instrument.Options{
		ADC:   adc,
		Clock: hal.SysClock{},
		Identity: instrument.Identity{
			Manufacturer: "ACME Instruments",
			Model:        "VM-100",
			SerialNumber: "0001",
			Firmware:     "1.0.0",
		},
	})
}

func TestSessionServicesTransport(t *testing.T) {
	engine := newTestEngine()
	var mu sync.Mutex
	tr := transport.NewLoopback()
	sess := NewSession(tr, "loopback", engine, &mu, testLogger(), 4096)

	done := make(chan struct{})
	go func() {
		sess.Run()
		close(done)
	}()

	tr.Inject([]byte("*IDN?\nSYST:VERS?\n"))

	deadline := time.Now().Add(2 * time.Second)
	var out string
	for time.Now().Before(deadline) {
		out = string(tr.Output())
		if strings.Count(out, "\n") >= 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if want := "\"ACME Instruments\",\"VM-100\",\"0001\",\"1.0.0\"\n1999.0\n"; out != want {
		t.Errorf("output %q, want %q", out, want)
	}

	tr.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("session did not stop after transport close")
	}
}

func TestSessionSharedEngineSerialized(t *testing.T) {
	engine := newTestEngine()
	var mu sync.Mutex
	a := transport.NewLoopback()
	b := transport.NewLoopback()
	sa := NewSession(a, "a", engine, &mu, testLogger(), 4096)
	sb := NewSession(b, "b", engine, &mu, testLogger(), 4096)
	go sa.Run()
	go sb.Run()
	defer a.Close()
	defer b.Close()

	// both sessions talk to the same instrument state: set through a,
	// confirm a processed it, then read it back through b
	a.Inject([]byte("OSC:CONF:TIME 50\nOSC:CONF:TIME?\n"))
	waitForOutput(t, a.Output, "50\n")

	b.Inject([]byte("OSC:CONF:TIME?\n"))
	waitForOutput(t, b.Output, "50\n")
}

func waitForOutput(t *testing.T, output func() []byte, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if string(output()) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("output %q, want %q", string(output()), want)
}
