package server

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"instrument-firmware/internal/instrument"
	"instrument-firmware/internal/monitor"
	"instrument-firmware/internal/scpi"
	"instrument-firmware/internal/transport"
)

// idleDelay paces the service loop while the transport has nothing buffered.
const idleDelay = time.Millisecond

// Session runs the service loop for one attached transport: poll, feed the
// dispatcher, write replies. Every session has its own dispatcher (and thus
// its own partial-line buffer) but shares the engine; engineMu serializes
// command execution so the engine sees a single logical thread of control.
type Session struct {
	tr         transport.Transport
	name       string
	disp       *scpi.Dispatcher
	log        *logrus.Logger
	engineMu   *sync.Mutex
	bufferSize int
}

func NewSession(
	tr transport.Transport,
	name string,
	engine *instrument.Engine,
	engineMu *sync.Mutex,
	log *logrus.Logger,
	bufferSize int,
) *Session {
	if bufferSize <= 0 {
		bufferSize = 4096
	}
	return &Session{
		tr:         tr,
		name:       name,
		disp:       scpi.NewDispatcher(log, engine.Queue(), engine.Commands()),
		log:        log,
		engineMu:   engineMu,
		bufferSize: bufferSize,
	}
}

// Run services the transport until it fails or closes.
func (s *Session) Run() {
	defer func() {
		s.tr.Close()
		s.log.Infof("session closed: %s", s.name)
	}()

	s.log.Infof("session opened: %s", s.name)

	buf := make([]byte, s.bufferSize)
	for {
		if err := s.tr.Poll(); err != nil {
			s.log.Debugf("session %s: transport: %v", s.name, err)
			return
		}
		if !s.tr.HasData() {
			time.Sleep(idleDelay)
			continue
		}
		n, err := s.tr.Read(buf)
		if err != nil {
			s.log.Debugf("session %s: read: %v", s.name, err)
			return
		}
		if n == 0 {
			continue
		}
		monitor.BytesReceived.Add(float64(n))

		s.engineMu.Lock()
		err = s.disp.Feed(buf[:n], s.tr)
		s.engineMu.Unlock()
		if err != nil {
			s.log.Warnf("session %s: %v", s.name, err)
			return
		}
	}
}
