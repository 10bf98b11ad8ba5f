// Package fake provides the test doubles shared by the packages of the
// executor.
package fake

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// WaitLog returns a logger and a function that blocks until the message is
// printed by the logger, or fails the test after the timeout.
func WaitLog(msg string, timeout time.Duration) (zerolog.Logger, func(t *testing.T)) {
	reader, writer := io.Pipe()
	done := make(chan struct{})
	found := false

	buffer := new(bytes.Buffer)
	tee := io.TeeReader(reader, buffer)

	go func() {
		select {
		case <-done:
		case <-time.After(timeout):
			writer.Close()
		}
	}()

	go func() {
		defer close(done)

		var line bytes.Buffer
		data := make([]byte, 1024)

		for {
			n, err := tee.Read(data)
			if err != nil {
				return
			}

			line.Write(data[:n])

			if strings.Contains(line.String(), fmt.Sprintf(`"%s"`, msg)) {
				found = true
				// Keep draining so that the writers never block.
				go io.Copy(io.Discard, reader)
				return
			}
		}
	}()

	wait := func(t *testing.T) {
		<-done
		if !found {
			t.Fatalf("log not found in %s", buffer.String())
		}
	}

	return zerolog.New(writer), wait
}

// CheckLog returns a logger and a check function. When called, the function
// will verify if the logger has seen the message printed.
func CheckLog(msg string) (zerolog.Logger, func(t *testing.T)) {
	buffer := new(syncBuffer)

	check := func(t *testing.T) {
		require.Contains(t, buffer.String(), fmt.Sprintf(`"%s"`, msg))
	}

	return zerolog.New(buffer), check
}

// syncBuffer is a buffer safe for concurrent use by loggers of several
// goroutines.
type syncBuffer struct {
	sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.Lock()
	defer b.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.Lock()
	defer b.Unlock()

	return b.buf.String()
}

// NewLogger returns a logger that discards everything.
func NewLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}
