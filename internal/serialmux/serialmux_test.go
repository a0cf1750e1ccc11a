package serialmux

import (
	"bufio"
	"context"
	"errors"
	"testing"
	"time"
)

// recv waits for one token or fails the test.
func recv(t *testing.T, ch chan string) string {
	t.Helper()
	select {
	case tok, ok := <-ch:
		if !ok {
			t.Fatal("channel closed while waiting for token")
		}
		return tok
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for token")
	}
	return ""
}

func startMonitor(t *testing.T, mux *SerialMux[*TestableSerialPort]) (context.CancelFunc, chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- mux.Monitor(ctx) }()
	return cancel, errCh
}

func TestSerialMux_SubscribeUnique(t *testing.T) {
	mux := NewSerialMux(NewTestableSerialPort())

	id1, ch1 := mux.Subscribe()
	id2, ch2 := mux.Subscribe()

	if id1 == "" || id2 == "" {
		t.Fatal("Subscribe returned empty ID")
	}
	if id1 == id2 {
		t.Error("Subscription IDs should be unique")
	}
	if cap(ch1) != 16 || cap(ch2) != 16 {
		t.Errorf("expected buffered channels of 16, got %d and %d", cap(ch1), cap(ch2))
	}
}

func TestSerialMux_UnsubscribeClosesChannel(t *testing.T) {
	mux := NewSerialMux(NewTestableSerialPort())

	id, ch := mux.Subscribe()
	mux.Unsubscribe(id)

	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed")
	}
	// unknown IDs are ignored
	mux.Unsubscribe("non-existent-id")
}

func TestSerialMux_SendCommand(t *testing.T) {
	tests := []struct {
		name    string
		options []Option
		command string
		want    string
	}{
		{"default newline", nil, "PING", "PING\n"},
		{"already terminated", nil, "ODOM\n", "ODOM\n"},
		{"crlf ending", []Option{WithLineEnding("\r\n")}, "Toggled auto", "Toggled auto\r\n"},
		{"crlf bare newline", []Option{WithLineEnding("\r\n")}, "\n", "\n"},
		{"crlf keeps END", []Option{WithLineEnding("\r\n")}, "END\n", "END\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := NewTestableSerialPort()
			mux := NewSerialMux(port, tt.options...)
			if err := mux.SendCommand(tt.command); err != nil {
				t.Fatalf("SendCommand returned error: %v", err)
			}
			if got := string(port.GetWrittenData()); got != tt.want {
				t.Errorf("wrote %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSerialMux_SendCommandWriteError(t *testing.T) {
	port := NewTestableSerialPort()
	port.WriteError = errors.New("boom")
	mux := NewSerialMux(port)

	if err := mux.SendCommand("IR"); err == nil {
		t.Fatal("expected write error")
	}
}

type shortWriter struct{ *TestableSerialPort }

func (s shortWriter) Write(p []byte) (int, error) { return len(p) - 1, nil }

func TestSerialMux_SendCommandShortWrite(t *testing.T) {
	mux := NewSerialMux(shortWriter{NewTestableSerialPort()})
	if err := mux.SendCommand("IR"); !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("expected ErrWriteFailed, got %v", err)
	}
}

func TestSerialMux_MonitorLines(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	_, ch := mux.Subscribe()
	cancel, errCh := startMonitor(t, mux)
	defer cancel()

	port.AddReadData([]byte("EDGE 100\r\nEDGE 50\n"))

	if got := recv(t, ch); got != "EDGE 100" {
		t.Errorf("first line = %q", got)
	}
	if got := recv(t, ch); got != "EDGE 50" {
		t.Errorf("second line = %q", got)
	}

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Monitor returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Monitor did not return after cancel")
	}
}

func TestSerialMux_MonitorRunes(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port, WithSplit(bufio.ScanRunes))
	_, ch := mux.Subscribe()
	cancel, _ := startMonitor(t, mux)
	defer cancel()

	port.AddReadData([]byte("th "))

	for _, want := range []string{"t", "h", " "} {
		if got := recv(t, ch); got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}
}

func TestSerialMux_MonitorFansOut(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	_, a := mux.Subscribe()
	_, b := mux.Subscribe()
	cancel, _ := startMonitor(t, mux)
	defer cancel()

	port.AddReadData([]byte("OK\n"))

	if got := recv(t, a); got != "OK" {
		t.Errorf("subscriber a got %q", got)
	}
	if got := recv(t, b); got != "OK" {
		t.Errorf("subscriber b got %q", got)
	}
}

func TestSerialMux_MonitorDropsWhenFull(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port, WithSubscriberBuffer(1))
	_, slow := mux.Subscribe()
	_, fast := mux.Subscribe()
	cancel, _ := startMonitor(t, mux)
	defer cancel()

	port.AddReadData([]byte("1\n"))
	if got := recv(t, fast); got != "1" {
		t.Fatalf("fast got %q", got)
	}
	port.AddReadData([]byte("2\n"))
	if got := recv(t, fast); got != "2" {
		t.Fatalf("fast got %q", got)
	}

	// slow never drained: it holds the first token only
	if got := recv(t, slow); got != "1" {
		t.Errorf("slow got %q, want 1", got)
	}
	select {
	case tok := <-slow:
		t.Errorf("expected dropped token, got %q", tok)
	default:
	}
}

func TestSerialMux_MonitorReadError(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	cancel, errCh := startMonitor(t, mux)
	defer cancel()

	readErr := errors.New("device unplugged")
	port.InjectReadError(readErr)

	select {
	case err := <-errCh:
		if !errors.Is(err, readErr) {
			t.Errorf("Monitor returned %v, want %v", err, readErr)
		}
	case <-time.After(time.Second):
		t.Fatal("Monitor did not return after read error")
	}
}

func TestSerialMux_Close(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	_, ch := mux.Subscribe()

	if err := mux.Close(); err != nil {
		t.Fatalf("Close returned %v", err)
	}
	if _, ok := <-ch; ok {
		t.Error("expected subscriber channel closed")
	}
	if !port.Closed {
		t.Error("expected port closed")
	}

	// subscribing after close yields a closed channel
	_, late := mux.Subscribe()
	if _, ok := <-late; ok {
		t.Error("expected closed channel after Close")
	}
}

func TestStdioPort(t *testing.T) {
	p := NewStdioPort()
	if p.Reader == nil || p.Writer == nil {
		t.Fatal("expected stdin/stdout wired")
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close returned %v", err)
	}
}
