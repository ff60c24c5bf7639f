package transport

import (
	"context"
	"fmt"
	log "log/slog"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
)

// WebSocket carries serial lines over a websocket bridge (ser2net, an
// ESP32 running a ws<->uart bridge). Each text frame may hold one or more
// newline-terminated lines; a frame without a terminator is one line.
type WebSocket struct {
	url     string
	reconn  time.Duration
	timeout time.Duration

	mu   sync.Mutex
	conn *ws.Conn

	frames chan frame
	stop   chan struct{}
}

type frame struct {
	msg []byte
	err error
}

func DialWebSocket(url string, reconn, timeout time.Duration) (*WebSocket, error) {
	log.Debug("init websocket link", "url", url)

	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	if reconn <= 0 {
		reconn = 2 * time.Second
	}

	web := &WebSocket{
		url:     url,
		reconn:  reconn,
		timeout: timeout,
	}

	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	web.attach(conn)

	return web, nil
}

// attach starts the pump for conn. Reads on a gorilla connection cannot
// be retried after a deadline, so frames are pumped from a goroutine and
// Read waits on the channel instead.
func (web *WebSocket) attach(conn *ws.Conn) {
	frames := make(chan frame, 16)
	stop := make(chan struct{})

	web.mu.Lock()
	web.conn = conn
	web.frames = frames
	web.stop = stop
	web.mu.Unlock()

	go func() {
		defer close(frames)
		for {
			_, msg, err := conn.ReadMessage()
			select {
			case frames <- frame{msg: msg, err: err}:
			case <-stop:
				return
			}
			if err != nil {
				return
			}
		}
	}()
}

func (web *WebSocket) Read() Income {
	web.mu.Lock()
	frames := web.frames
	web.mu.Unlock()

	if frames == nil {
		return Income{Kind: ConnClosed, Err: ErrClosed}
	}

	t := time.NewTimer(web.timeout)
	defer t.Stop()

	select {
	case <-t.C:
		return Income{Kind: ReadIdle}
	case f, ok := <-frames:
		if !ok {
			return Income{Kind: ConnClosed, Err: ErrClosed}
		}
		if f.err != nil {
			if WsIsClosed(f.err) {
				return Income{Kind: ConnClosed, Err: f.err}
			}
			return Income{Kind: ReadFailure, Err: f.err}
		}

		log.Debug("Read ws", "msg", string(f.msg))

		var lb lineBuffer
		lines := lb.Feed(f.msg)
		if lb.Pending() > 0 {
			lines = append(lines, lb.Feed([]byte{'\n'})...)
		}
		if len(lines) == 0 {
			return Income{Kind: ReadIdle}
		}
		return Income{Kind: ReadOK, Lines: lines}
	}
}

func (web *WebSocket) WriteLine(line string) error {
	web.mu.Lock()
	defer web.mu.Unlock()

	if web.conn == nil {
		return ErrClosed
	}

	log.Debug("Write ws", "msg", line)
	return web.conn.WriteMessage(ws.TextMessage, []byte(line+"\n"))
}

func (web *WebSocket) Reconnect(ctx context.Context) error {
	web.mu.Lock()
	web.detach()
	web.mu.Unlock()

	for {
		conn, _, err := ws.DefaultDialer.DialContext(ctx, web.url, nil)
		if err == nil {
			web.attach(conn)
			return nil
		}

		if err := sleepCtx(ctx, web.reconn); err != nil {
			return err
		}
	}
}

func (web *WebSocket) Close() error {
	web.mu.Lock()
	defer web.mu.Unlock()
	return web.detach()
}

// detach closes the current connection and stops its pump. Callers hold mu.
func (web *WebSocket) detach() error {
	if web.conn == nil {
		return nil
	}
	close(web.stop)
	err := web.conn.Close()
	web.conn = nil
	web.frames = nil
	web.stop = nil
	return err
}

func (web *WebSocket) String() string {
	return web.url
}

func WsIsClosed(err error) bool {
	return ws.IsCloseError(err,
		ws.CloseNormalClosure,
		ws.CloseGoingAway,
		ws.CloseAbnormalClosure)
}
