package server

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"instrument-firmware/internal/config"
	"instrument-firmware/internal/hal"
	"instrument-firmware/internal/instrument"
	"instrument-firmware/internal/monitor"
	"instrument-firmware/internal/storage"
	"instrument-firmware/internal/transport"
)

// Server accepts SCPI clients over TCP and, optionally, one serial port. All
// sessions drive a single shared engine.
type Server struct {
	config   *config.Config
	listener net.Listener
	engine   *instrument.Engine
	engineMu sync.Mutex
	storage  *storage.MessageQueue
	monitor  *monitor.Monitor
	log      *logrus.Logger
	limiter  chan struct{}
	wg       sync.WaitGroup
	shutdown chan struct{}
}

func NewServer(cfg *config.Config, log *logrus.Logger) (*Server, error) {
	var mq *storage.MessageQueue
	if cfg.Redis.Enabled {
		var err error
		mq, err = storage.NewMessageQueue(
			cfg.Redis.Addr,
			cfg.Redis.Password,
			cfg.Redis.Channel,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			log,
		)
		if err != nil {
			return nil, err
		}
	}

	mon := monitor.NewMonitor(log)

	inst := cfg.Instrument
	adc := hal.NewSimADC(log, inst.MaxSampleRate, inst.MaxSampleRateDual, inst.ReferenceMv)

	opts := instrument.Options{
		Log:   log,
		ADC:   adc,
		Clock: hal.SysClock{},
		Identity: instrument.Identity{
			Manufacturer: inst.Manufacturer,
			Model:        inst.Model,
			SerialNumber: inst.SerialNumber,
			Firmware:     inst.FirmwareVersion,
		},
		Defaults: instrument.Defaults{
			DmmChannel:      inst.DmmChannel,
			DmmOversampling: inst.DmmOversampling,
			DsoTimebaseUs:   inst.DsoTimebaseUs,
			DsoPoints:       inst.DsoPoints,
		},
	}
	if mq != nil {
		opts.Publisher = mq
	}

	return &Server{
		config:   cfg,
		engine:   instrument.NewEngine(opts),
		storage:  mq,
		monitor:  mon,
		log:      log,
		limiter:  make(chan struct{}, cfg.Server.MaxConnections),
		shutdown: make(chan struct{}),
	}, nil
}

func (s *Server) Start() error {
	if s.config.Monitor.Enabled {
		s.monitor.StartMetricsServer(s.config.Monitor.MetricsPort)
		s.monitor.StartRuntimeMonitor()
	}

	if s.config.Serial.Enabled {
		if err := s.startSerial(); err != nil {
			return err
		}
	}

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	lc := net.ListenConfig{
		KeepAlive: s.config.Server.KeepAlive.Std(),
	}

	listener, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.listener = listener
	s.log.Infof("instrument server listening on %s (max connections: %d)", addr, s.config.Server.MaxConnections)

	go s.handleShutdown()

	for {
		select {
		case <-s.shutdown:
			s.log.Info("no longer accepting connections")
			return nil
		default:
		}

		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return nil
			default:
				s.log.Errorf("accept: %v", err)
				continue
			}
		}

		select {
		case s.limiter <- struct{}{}:
			s.wg.Add(1)
			go s.handleConnection(conn)
		default:
			s.log.Warn("connection limit reached, rejecting client")
			conn.Close()
		}
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer func() {
		<-s.limiter
		s.wg.Done()
		monitor.ActiveConnections.Dec()
	}()

	monitor.ActiveConnections.Inc()
	monitor.TotalConnections.Inc()

	tr := transport.NewConn(conn, s.config.Server.ReadTimeout.Std(), s.config.Server.BufferSize)
	sess := NewSession(tr, tr.RemoteAddr(), s.engine, &s.engineMu, s.log, s.config.Server.BufferSize)
	sess.Run()
}

func (s *Server) startSerial() error {
	tr, err := transport.OpenSerial(s.config.Serial.Device, s.config.Serial.Baud, s.config.Server.BufferSize)
	if err != nil {
		return err
	}
	s.log.Infof("serial transport attached: %s @ %d", s.config.Serial.Device, s.config.Serial.Baud)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		sess := NewSession(tr, s.config.Serial.Device, s.engine, &s.engineMu, s.log, s.config.Server.BufferSize)
		sess.Run()
	}()
	return nil
}

func (s *Server) handleShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	s.log.Infof("received signal %v, shutting down", sig)

	close(s.shutdown)

	if s.listener != nil {
		s.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("all sessions closed")
	case <-time.After(30 * time.Second):
		s.log.Warn("shutdown timed out, exiting anyway")
	}

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			s.log.Errorf("close storage: %v", err)
		}
	}

	s.log.Info("server stopped")
	os.Exit(0)
}
