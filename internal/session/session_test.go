package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/markis/learnpath/internal/client"
	"github.com/markis/learnpath/internal/render"
	"github.com/markis/learnpath/internal/stream"
)

// scriptedStream returns one scripted chunk per Read call, then errEnd.
type scriptedStream struct {
	chunks [][]byte
	errEnd error // io.EOF for a clean end of stream
	closed bool
}

func (s *scriptedStream) Read(p []byte) (int, error) {
	if len(s.chunks) == 0 {
		return 0, s.errEnd
	}
	chunk := s.chunks[0]
	n := copy(p, chunk)
	if n < len(chunk) {
		s.chunks[0] = chunk[n:]
	} else {
		s.chunks = s.chunks[1:]
	}
	return n, nil
}

func (s *scriptedStream) Close() error {
	s.closed = true
	return nil
}

// scriptedTransport hands out one scripted stream per Open call.
type scriptedTransport struct {
	stream  *scriptedStream
	openErr error
}

func (t *scriptedTransport) Open(_ context.Context, _ string) (io.ReadCloser, error) {
	if t.openErr != nil {
		return nil, t.openErr
	}
	return t.stream, nil
}

// countingSink records blocks handed to it, in order.
type countingSink struct {
	blocks []render.Block
}

func (s *countingSink) WriteBlock(b render.Block) error {
	s.blocks = append(s.blocks, b)
	return nil
}

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

func runSession(t *testing.T, chunks [][]byte, errEnd error) (*Controller, *countingSink, error) {
	t.Helper()
	body := &scriptedStream{chunks: chunks, errEnd: errEnd}
	c := New(&scriptedTransport{stream: body}, testLogger())
	sink := &countingSink{}
	err := c.Run(context.Background(), "learn about black holes", render.NewPipeline(sink))
	if !body.closed {
		t.Error("response body was not closed")
	}
	return c, sink, err
}

func split(raw string, size int) [][]byte {
	data := []byte(raw)
	var chunks [][]byte
	for len(data) > 0 {
		n := size
		if n > len(data) {
			n = len(data)
		}
		chunks = append(chunks, data[:n])
		data = data[n:]
	}
	return chunks
}

const threeRecords = "{\"module_title\":\"Intro\",\"lessons\":[]}\n" +
	"{\"module_title\":\"Résumé 🚀\",\"lessons\":[{\"lesson_title\":\"L\",\"videos\":[{\"url\":\"https://youtu.be/abc\",\"title\":\"A\"}]}]}\n" +
	"{\"error\":\"quota exceeded\"}\n"

func TestRunRendersEveryRecordRegardlessOfChunking(t *testing.T) {
	// Chunk sizes sweep through splits mid token, mid delimiter and mid
	// multi-byte character; the rendered block sequence must not vary.
	for size := 1; size <= len(threeRecords); size++ {
		c, sink, err := runSession(t, split(threeRecords, size), io.EOF)
		if err != nil {
			t.Fatalf("chunk size %d: Run() error = %v", size, err)
		}
		if got := c.State(); got != Completed {
			t.Fatalf("chunk size %d: state = %v, want Completed", size, got)
		}
		if len(sink.blocks) != 3 {
			t.Fatalf("chunk size %d: got %d blocks, want 3", size, len(sink.blocks))
		}
		if mb, ok := sink.blocks[0].(render.ModuleBlock); !ok || mb.Title != "Intro" {
			t.Fatalf("chunk size %d: first block = %#v, want module Intro", size, sink.blocks[0])
		}
		if eb, ok := sink.blocks[2].(render.ErrorBlock); !ok || eb.Message != "quota exceeded" {
			t.Fatalf("chunk size %d: last block = %#v, want error block", size, sink.blocks[2])
		}
	}
}

func TestRunDropsUnterminatedFinalRecord(t *testing.T) {
	raw := "{\"module_title\":\"A\",\"lessons\":[]}\n{\"module_title\":\"B\",\"lessons\":[]}"
	c, sink, err := runSession(t, split(raw, 7), io.EOF)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := c.State(); got != Completed {
		t.Errorf("state = %v, want Completed", got)
	}
	// Two objects were sent but the second lacks its newline.
	if len(sink.blocks) != 1 {
		t.Errorf("got %d blocks, want 1", len(sink.blocks))
	}
}

func TestRunErrorRecordDoesNotSuppressLaterRecords(t *testing.T) {
	raw := "{\"error\":\"rate limited\"}\n{\"module_title\":\"X\",\"lessons\":[]}\n"
	c, sink, err := runSession(t, split(raw, 5), io.EOF)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := c.State(); got != Completed {
		t.Errorf("state = %v, want Completed", got)
	}
	if len(sink.blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(sink.blocks))
	}
	if eb, ok := sink.blocks[0].(render.ErrorBlock); !ok || eb.Message != "rate limited" {
		t.Errorf("first block = %#v, want error block", sink.blocks[0])
	}
}

func TestRunParseFailureFailsSessionKeepsBlocks(t *testing.T) {
	raw := "{\"module_title\":\"A\",\"lessons\":[]}\nthis is not json\n{\"module_title\":\"B\",\"lessons\":[]}\n"
	c, sink, err := runSession(t, split(raw, 9), io.EOF)
	if err == nil {
		t.Fatal("Run() expected error for malformed record")
	}
	if got := c.State(); got != Failed {
		t.Errorf("state = %v, want Failed", got)
	}
	// The record before the malformed line stays rendered; the one after
	// is forfeited.
	if len(sink.blocks) != 1 {
		t.Errorf("got %d blocks, want 1", len(sink.blocks))
	}
}

func TestRunTransportFailureMidStream(t *testing.T) {
	raw := "{\"module_title\":\"A\",\"lessons\":[]}\n"
	netErr := errors.New("connection reset")
	c, sink, err := runSession(t, split(raw, 11), netErr)
	if err == nil || !errors.Is(err, netErr) {
		t.Fatalf("Run() error = %v, want wrapped %v", err, netErr)
	}
	if got := c.State(); got != Failed {
		t.Errorf("state = %v, want Failed", got)
	}
	if len(sink.blocks) != 1 {
		t.Errorf("got %d blocks, want 1 rendered before the failure", len(sink.blocks))
	}
}

func TestRunOpenFailure(t *testing.T) {
	c := New(&scriptedTransport{openErr: errors.New("refused")}, testLogger())
	err := c.Run(context.Background(), "learn about black holes", render.NewPipeline(&countingSink{}))
	if err == nil {
		t.Fatal("Run() expected error")
	}
	if got := c.State(); got != Failed {
		t.Errorf("state = %v, want Failed", got)
	}
}

func TestRunOversizedLineFailsSession(t *testing.T) {
	raw := "{\"module_title\":\"A\",\"lessons\":[]}\n{\"padding\":\"" + strings.Repeat("x", stream.MaxLineBytes+1)
	c, sink, err := runSession(t, split(raw, 64*1024), io.EOF)
	if !errors.Is(err, stream.ErrLineTooLong) {
		t.Fatalf("Run() error = %v, want ErrLineTooLong", err)
	}
	if got := c.State(); got != Failed {
		t.Errorf("state = %v, want Failed", got)
	}
	if len(sink.blocks) != 1 {
		t.Errorf("got %d blocks, want 1", len(sink.blocks))
	}
}

// gatedStream blocks Read until the gate closes, then signals a clean EOF.
type gatedStream struct {
	gate <-chan struct{}
}

func (g *gatedStream) Read(_ []byte) (int, error) {
	<-g.gate
	return 0, io.EOF
}

func (g *gatedStream) Close() error { return nil }

type gatedTransport struct {
	gate <-chan struct{}
}

func (t *gatedTransport) Open(_ context.Context, _ string) (io.ReadCloser, error) {
	return &gatedStream{gate: t.gate}, nil
}

func waitForState(t *testing.T, c *Controller, want State) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("state never reached %v, still %v", want, c.State())
}

func TestRunRejectsSecondSessionWhileRunning(t *testing.T) {
	gate := make(chan struct{})
	c := New(&gatedTransport{gate: gate}, testLogger())

	first := make(chan error, 1)
	go func() {
		first <- c.Run(context.Background(), "learn about black holes", render.NewPipeline(&countingSink{}))
	}()
	waitForState(t, c, Running)

	err := c.Run(context.Background(), "learn about quasars", render.NewPipeline(&countingSink{}))
	if !errors.Is(err, ErrSessionActive) {
		t.Fatalf("second Run() error = %v, want ErrSessionActive", err)
	}

	close(gate)
	if err := <-first; err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	waitForState(t, c, Completed)

	// A terminal state re-enables starting a session; the gate is already
	// open so this run drains immediately.
	if err := c.Run(context.Background(), "learn about pulsars", render.NewPipeline(&countingSink{})); err != nil {
		t.Fatalf("Run() after completion error = %v", err)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{Idle, "idle"},
		{Running, "running"},
		{Completed, "completed"},
		{Failed, "failed"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestRunContextCancellationFailsSession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New(&scriptedTransport{openErr: fmt.Errorf("post failed: %w", context.Canceled)}, testLogger())
	err := c.Run(ctx, "learn about black holes", render.NewPipeline(&countingSink{}))
	if err == nil {
		t.Fatal("Run() expected error")
	}
	if got := c.State(); got != Failed {
		t.Errorf("state = %v, want Failed", got)
	}
}

func TestRunContextExpiryMidStreamFailsSession(t *testing.T) {
	t.Setenv("LEARNPATH_TOKEN", "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	// One record arrives, then the server stalls until the request
	// context expires; the read error must fail the session while the
	// rendered record stays in place.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.WriteString(w, "{\"module_title\":\"A\",\"lessons\":[]}\n"); err != nil {
			return
		}
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	c := New(client.New(srv.URL, testLogger()), testLogger())
	sink := &countingSink{}
	err := c.Run(ctx, "learn about black holes", render.NewPipeline(sink))
	if err == nil {
		t.Fatal("Run() expected error after context expiry")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want wrapped context.DeadlineExceeded", err)
	}
	if got := c.State(); got != Failed {
		t.Errorf("state = %v, want Failed", got)
	}
	if len(sink.blocks) != 1 {
		t.Errorf("got %d blocks, want the record rendered before expiry", len(sink.blocks))
	}
}
