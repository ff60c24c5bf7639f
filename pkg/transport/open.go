package transport

import (
	"strings"
	"time"
)

type Options struct {
	Baud        int
	ReadTimeout time.Duration
	Settle      time.Duration
	Reconn      time.Duration
}

// Open dials ws:// and wss:// addresses as websocket bridges and opens
// anything else as a local serial device. An empty address autodetects a
// USB-serial port.
func Open(addr string, opt Options) (Link, error) {
	if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		return DialWebSocket(addr, opt.Reconn, opt.ReadTimeout)
	}

	if addr == "" {
		port, err := DetectPort()
		if err != nil {
			return nil, err
		}
		addr = port
	}

	return OpenSerial(SerialConfig{
		Port:        addr,
		Baud:        opt.Baud,
		ReadTimeout: opt.ReadTimeout,
		Settle:      opt.Settle,
		Reconn:      opt.Reconn,
	})
}
