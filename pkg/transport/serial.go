package transport

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"sync"
	"time"

	"go.bug.st/serial"
)

const DefaultBaud = 115200

type SerialConfig struct {
	Port        string
	Baud        int
	ReadTimeout time.Duration
	// Settle is waited after opening; boards like the ESP32 reset when
	// the port opens.
	Settle time.Duration
	// Reconn is the delay between reopen attempts.
	Reconn time.Duration
}

type Serial struct {
	cfg SerialConfig

	mu   sync.Mutex
	port serial.Port

	lines lineBuffer
	chunk []byte
}

func OpenSerial(cfg SerialConfig) (*Serial, error) {
	if cfg.Baud <= 0 {
		cfg.Baud = DefaultBaud
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 500 * time.Millisecond
	}
	if cfg.Reconn <= 0 {
		cfg.Reconn = 2 * time.Second
	}

	s := &Serial{
		cfg:   cfg,
		chunk: make([]byte, 256),
	}

	port, err := s.open()
	if err != nil {
		return nil, err
	}
	s.port = port

	if cfg.Settle > 0 {
		time.Sleep(cfg.Settle)
	}

	return s, nil
}

func (s *Serial) open() (serial.Port, error) {
	log.Debug("Opening serial port", "port", s.cfg.Port, "baud", s.cfg.Baud)

	port, err := serial.Open(s.cfg.Port, &serial.Mode{BaudRate: s.cfg.Baud})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.cfg.Port, err)
	}
	if err := port.SetReadTimeout(s.cfg.ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	return port, nil
}

func (s *Serial) current() serial.Port {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

func (s *Serial) Read() Income {
	port := s.current()
	if port == nil {
		return Income{Kind: ConnClosed, Err: ErrClosed}
	}

	n, err := port.Read(s.chunk)
	if err != nil {
		if isPortGone(err) {
			return Income{Kind: ConnClosed, Err: err}
		}
		return Income{Kind: ReadFailure, Err: err}
	}
	if n == 0 {
		return Income{Kind: ReadIdle}
	}

	lines := s.lines.Feed(s.chunk[:n])
	if len(lines) == 0 {
		return Income{Kind: ReadIdle}
	}
	return Income{Kind: ReadOK, Lines: lines}
}

func (s *Serial) WriteLine(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		return ErrClosed
	}

	log.Debug("Write serial", "line", line)
	if _, err := s.port.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("write %s: %w", s.cfg.Port, err)
	}
	return nil
}

// Reconnect reopens the port until it succeeds or ctx is done. Partial
// input from the old handle is discarded.
func (s *Serial) Reconnect(ctx context.Context) error {
	s.mu.Lock()
	if s.port != nil {
		s.port.Close()
		s.port = nil
	}
	s.mu.Unlock()
	s.lines.Reset()

	for {
		port, err := s.open()
		if err == nil {
			s.mu.Lock()
			s.port = port
			s.mu.Unlock()
			return nil
		}
		log.Debug("Reopen failed", "port", s.cfg.Port, "err", err)

		if err := sleepCtx(ctx, s.cfg.Reconn); err != nil {
			return err
		}
	}
}

func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}

func (s *Serial) String() string {
	return s.cfg.Port
}

func isPortGone(err error) bool {
	var perr *serial.PortError
	if errors.As(err, &perr) {
		switch perr.Code() {
		case serial.PortClosed, serial.PortNotFound:
			return true
		}
	}
	return false
}
