// Package ipc is the local control channel between roastbot-ctl and a
// running robot process.
package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	log "log/slog"
)

const DefaultSocketPath = "/tmp/roastbot.sock"

type ControlMessage struct {
	Cmd string `json:"cmd"`
}

type Reply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Handler runs one control command; it is called once per connection.
type Handler func(cmd string) error

type Server struct {
	path string
	ln   net.Listener
	wg   sync.WaitGroup
}

// Listen replaces any stale socket at path and serves commands until Close.
func Listen(path string, handler Handler) (*Server, error) {
	if path == "" {
		path = DefaultSocketPath
	}
	os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}

	s := &Server{path: path, ln: ln}
	s.wg.Add(1)
	go s.serve(handler)
	log.Info("Control socket ready", "path", path)
	return s, nil
}

func (s *Server) serve(handler Handler) {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Warn("Control accept failed", "err", err)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			handleConn(conn, handler)
		}()
	}
}

func handleConn(conn net.Conn, handler Handler) {
	defer conn.Close()

	var msg ControlMessage
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		log.Debug("Bad control message", "err", err)
		return
	}

	reply := Reply{OK: true}
	if err := handler(msg.Cmd); err != nil {
		reply = Reply{Error: err.Error()}
	}
	json.NewEncoder(conn).Encode(reply)
}

// Close stops accepting, waits for in-flight commands and removes the socket.
func (s *Server) Close() error {
	err := s.ln.Close()
	s.wg.Wait()
	os.Remove(s.path)
	return err
}

// SendCommand delivers cmd and waits for the robot to finish handling it.
func SendCommand(path, cmd string, timeout time.Duration) error {
	if path == "" {
		path = DefaultSocketPath
	}
	conn, err := net.DialTimeout("unix", path, time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()

	if timeout > 0 {
		conn.SetDeadline(time.Now().Add(timeout))
	}

	if err := json.NewEncoder(conn).Encode(ControlMessage{Cmd: cmd}); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	var reply Reply
	if err := json.NewDecoder(conn).Decode(&reply); err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	if !reply.OK {
		return errors.New(reply.Error)
	}
	return nil
}
