package transport

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"
)

type IncomeKind uint

const (
	ConnClosed IncomeKind = iota
	ReadFailure
	ReadIdle
	ReadOK
)

func (k IncomeKind) String() string {
	switch k {
	case ConnClosed:
		return "closed"
	case ReadFailure:
		return "failure"
	case ReadIdle:
		return "idle"
	default:
		return "ok"
	}
}

// Income is the outcome of one poll of a Link.
type Income struct {
	Kind  IncomeKind
	Lines []string
	Err   error
}

// Link is a line-oriented, unacknowledged byte stream. Read polls once and
// returns within the link's read timeout; it is called from a single
// goroutine. WriteLine may be called concurrently with Read.
type Link interface {
	Read() Income
	WriteLine(line string) error
	Reconnect(ctx context.Context) error
	Close() error
	String() string
}

var ErrClosed = errors.New("link closed")

// maxLine bounds a line that never sees its terminator so a noisy port
// cannot grow the buffer forever.
const maxLine = 4096

// lineBuffer slices a byte stream into terminator-delimited lines.
type lineBuffer struct {
	buf []byte
}

// Feed appends p and returns every complete line, decoded permissively
// and with trailing whitespace removed. Blank lines are dropped.
func (lb *lineBuffer) Feed(p []byte) []string {
	lb.buf = append(lb.buf, p...)

	var lines []string
	for {
		i := bytes.IndexByte(lb.buf, '\n')
		if i < 0 {
			break
		}
		if s := decodeLine(lb.buf[:i]); s != "" {
			lines = append(lines, s)
		}
		lb.buf = lb.buf[i+1:]
	}

	if len(lb.buf) > maxLine {
		if s := decodeLine(lb.buf); s != "" {
			lines = append(lines, s)
		}
		lb.buf = nil
	}

	if len(lb.buf) == 0 {
		lb.buf = nil
	}

	return lines
}

// Pending reports bytes received after the last terminator.
func (lb *lineBuffer) Pending() int {
	return len(lb.buf)
}

func (lb *lineBuffer) Reset() {
	lb.buf = nil
}

func decodeLine(b []byte) string {
	return strings.TrimRightFunc(strings.ToValidUTF8(string(b), "�"), isSpace)
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\r', '\n', '\v', '\f', 0:
		return true
	}
	return false
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
