package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"time"
)

// errReplyTimeout marks a confirmation prompt that expired. The caller
// treats it exactly like an explicit decline.
var errReplyTimeout = errors.New("reply timed out")

// console serializes reads from one input stream through a single
// goroutine, so a prompt with a deadline never leaves a stale reader
// racing the next prompt for the same stream.
type console struct {
	lines <-chan string
	err   error
}

func newConsole(r io.Reader) *console {
	lines := make(chan string)
	c := &console{lines: lines}
	go func() {
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			lines <- sc.Text()
		}
		c.err = sc.Err()
		close(lines)
	}()
	return c
}

// ReadLine returns the next input line. A zero timeout waits
// indefinitely. Closed input returns io.EOF; a cancelled context
// returns its error.
func (c *console) ReadLine(ctx context.Context, timeout time.Duration) (string, error) {
	var expire <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expire = t.C
	}
	select {
	case line, ok := <-c.lines:
		if !ok {
			if c.err != nil {
				return "", c.err
			}
			return "", io.EOF
		}
		return line, nil
	case <-expire:
		return "", errReplyTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
