// Serialmux provides an abstraction over a serial port with the ability for
// multiple clients to subscribe to tokens read from the serial port and send
// commands to a single serial port device.
package serialmux

import (
	"bufio"
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"sync"

	"tailscale.com/tsweb"
)

var ErrWriteFailed = fmt.Errorf("failed to write to serial port")

var sendCommandTemplate = template.Must(template.New("send-command").Parse(`<!DOCTYPE html>
<html><head><title>{{.Name}} serial</title></head>
<body>
<h1>{{.Name}}</h1>
<form method="POST" action="/debug/{{.Name}}/send-command-api">
<input name="command" autofocus> <button type="submit">Send</button>
</form>
<p>Live tail: <a href="/debug/{{.Name}}/tail">/debug/{{.Name}}/tail</a></p>
</body></html>
`))

// SerialMux is a generic serial port multiplexer that allows multiple clients to
// subscribe to tokens from a single serial port.
type SerialMux[T SerialPorter] struct {
	port         T
	opts         muxOptions
	subscribers  map[string]chan string
	subscriberMu sync.Mutex
	commandMu    sync.Mutex
	closing      bool
	closingMu    sync.Mutex
}

// SerialMuxInterface defines the interface for the SerialMux type.
type SerialMuxInterface interface {
	// Subscribe creates a new channel for receiving tokens from the serial
	// port. The channel ID is used to identify the unique channel when
	// unsubscribing.
	Subscribe() (string, chan string)
	// Unsubscribe removes a channel from the list of subscribers.
	Unsubscribe(string)
	// SendCommand writes the provided command to the serial port.
	SendCommand(string) error
	// Monitor reads tokens from the serial port and sends them to the
	// subscribed channels.
	Monitor(context.Context) error
	// Close closes all subscribed channels and closes the serial port.
	Close() error

	// AttachAdminRoutes attaches admin debugging endpoints to the given HTTP
	// mux served at /debug/<name>/. These routes are accessible only over
	// localhost/via Tailscale and are not publicly accessible.
	AttachAdminRoutes(*http.ServeMux)
}

type muxOptions struct {
	name       string
	split      bufio.SplitFunc
	lineEnding string
	bufferSize int
}

// Option configures a SerialMux.
type Option func(*muxOptions)

// WithName sets the name used for the admin route prefix. Defaults to "serial".
func WithName(name string) Option {
	return func(o *muxOptions) { o.name = name }
}

// WithSplit sets how the incoming byte stream is tokenised. Defaults to
// bufio.ScanLines; the operator console uses bufio.ScanRunes so that single
// keystrokes are delivered without waiting for a newline.
func WithSplit(split bufio.SplitFunc) Option {
	return func(o *muxOptions) { o.split = split }
}

// WithLineEnding sets the terminator appended by SendCommand. Defaults to "\n".
func WithLineEnding(ending string) Option {
	return func(o *muxOptions) { o.lineEnding = ending }
}

// WithSubscriberBuffer sets the capacity of each subscriber channel. Tokens
// that arrive while a subscriber's buffer is full are dropped for that
// subscriber. Defaults to 16.
func WithSubscriberBuffer(n int) Option {
	return func(o *muxOptions) { o.bufferSize = n }
}

// NewSerialMux creates a SerialMux instance backed by the given port.
func NewSerialMux[T SerialPorter](port T, options ...Option) *SerialMux[T] {
	opts := muxOptions{
		name:       "serial",
		split:      bufio.ScanLines,
		lineEnding: "\n",
		bufferSize: 16,
	}
	for _, o := range options {
		o(&opts)
	}
	if opts.bufferSize < 0 {
		opts.bufferSize = 0
	}
	return &SerialMux[T]{
		port:        port,
		opts:        opts,
		subscribers: make(map[string]chan string),
	}
}

// Name returns the admin route prefix of the mux.
func (s *SerialMux[T]) Name() string { return s.opts.name }

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

func (s *SerialMux[T]) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string, s.opts.bufferSize)
	s.closingMu.Lock()
	closing := s.closing
	s.closingMu.Unlock()
	if closing {
		// already closed: hand back a closed channel so readers don't block
		close(ch)
		return id, ch
	}
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber from the serial mux.
func (s *SerialMux[T]) Unsubscribe(id string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// SendCommand sends a command to the serial port. The configured line ending
// is appended unless the command already ends with a newline.
func (s *SerialMux[T]) SendCommand(command string) error {
	s.commandMu.Lock()
	defer s.commandMu.Unlock()
	if !bytes.HasSuffix([]byte(command), []byte("\n")) {
		command += s.opts.lineEnding
	}
	n, err := s.port.Write([]byte(command))
	if err != nil {
		return err
	}
	if n != len(command) {
		return ErrWriteFailed
	}
	return nil
}

// Monitor monitors the serial port for tokens and sends them to subscribers
func (s *SerialMux[T]) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(s.port)
	scan.Split(s.opts.split)

	tokenChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// the blocking scan.Scan runs in its own goroutine so it does not
	// interfere with our outer loop awaiting tokens & context cancellation.
	go func() {
		defer close(tokenChan)
		for scan.Scan() {
			select {
			case tokenChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			return err

		case token, ok := <-tokenChan:
			// if the channel is closed, we're done reading from the serial port
			if !ok {
				select {
				case err := <-scanErrChan:
					return err
				default:
					return nil
				}
			}
			s.closingMu.Lock()
			if s.closing {
				s.closingMu.Unlock()
				return nil
			}
			s.closingMu.Unlock()

			s.subscriberMu.Lock()
			for _, ch := range s.subscribers {
				select {
				case ch <- token:
				default:
					// if the channel is full skip so as not to block the outer loop
				}
			}
			s.subscriberMu.Unlock()
		}
	}
}

func (s *SerialMux[T]) Close() error {
	s.closingMu.Lock()
	s.closing = true
	s.closingMu.Unlock()

	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	return s.port.Close()
}

func (s *SerialMux[T]) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	name := s.opts.name

	debug.HandleFunc(name+"/send-command", fmt.Sprintf("send a command to the %s port", name), func(w http.ResponseWriter, r *http.Request) {
		buf := bytes.NewBuffer(nil)
		if err := sendCommandTemplate.Execute(buf, struct{ Name string }{name}); err != nil {
			http.Error(w, "Failed to render template", http.StatusInternalServerError)
			return
		}
		io.Copy(w, buf)
	})

	// API endpoint to write command to the serial port
	debug.HandleSilentFunc(name+"/send-command-api", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		command := strings.TrimSpace(r.FormValue("command"))
		if command == "" {
			http.Error(w, "Missing command", http.StatusBadRequest)
			return
		}
		if err := s.SendCommand(command); err != nil {
			http.Error(w, "Failed to write command", http.StatusInternalServerError)
			return
		}
		io.WriteString(w, fmt.Sprintf("Wrote command %q to %s port", command, name))
	})

	// Server-Sent Events for every token read from the serial port.
	debug.HandleSilentFunc(name+"/tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

		id, c := s.Subscribe()
		defer s.Unsubscribe(id)

		w.Write([]byte(": ping\n\n"))
		flusher.Flush()

		for {
			select {
			case payload, ok := <-c:
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %q\n\n", payload); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})
}
