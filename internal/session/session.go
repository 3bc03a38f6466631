// Package session orchestrates one generation run: it opens the stream,
// drains it chunk by chunk through the line reassembler and record parser,
// and feeds every record to the render pipeline in arrival order.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/markis/learnpath/internal/render"
	"github.com/markis/learnpath/internal/stream"
)

// readBufferSize is the size of the transport read buffer. Chunk
// boundaries carry no meaning; the reassembler handles any split.
const readBufferSize = 4096

// State is the lifecycle of a generation run.
type State int

const (
	Idle State = iota
	Running
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrSessionActive is returned by Run while another run is in progress.
var ErrSessionActive = errors.New("a generation run is already in progress")

// Transport opens the record stream for a topic. The returned body is read
// until EOF or error and then closed.
type Transport interface {
	Open(ctx context.Context, topic string) (io.ReadCloser, error)
}

// Controller runs generation sessions one at a time. A new run may start
// once the previous one reaches Completed or Failed; two concurrent runs
// on the same controller are rejected, never interleaved.
type Controller struct {
	transport Transport
	logger    *log.Logger

	mu    sync.Mutex
	state State
}

// New returns an idle controller using transport for its streams.
func New(transport Transport, logger *log.Logger) *Controller {
	return &Controller{transport: transport, logger: logger}
}

// State reports the controller's current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Running {
		return ErrSessionActive
	}
	c.state = Running
	return nil
}

func (c *Controller) finish(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Run executes one session: open the stream for topic, then repeatedly
// read a chunk, drain every complete line it yields through the parser and
// the pipeline, and only then read the next chunk. Records render in
// arrival order with no buffering of the remaining stream.
//
// A transport failure or a malformed record ends the run as Failed;
// everything rendered up to that point stays in place. A clean end of
// stream ends it as Completed. An unterminated final record (no trailing
// newline) is dropped, not parsed.
func (c *Controller) Run(ctx context.Context, topic string, pipeline *render.Pipeline) error {
	if err := c.begin(); err != nil {
		return err
	}

	logger := c.logger.With("session", uuid.NewString())
	logger.Debug("session started", "topic", topic)

	err := c.consume(ctx, topic, pipeline, logger)
	if err != nil {
		c.finish(Failed)
		logger.Debug("session failed", "err", err)
		return err
	}

	c.finish(Completed)
	logger.Debug("session completed")
	return nil
}

func (c *Controller) consume(ctx context.Context, topic string, pipeline *render.Pipeline, logger *log.Logger) error {
	body, err := c.transport.Open(ctx, topic)
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}
	defer func() {
		if err := body.Close(); err != nil {
			logger.Debug("failed to close stream", "err", err)
		}
	}()

	reassembler := stream.NewLineReassembler()
	buf := make([]byte, readBufferSize)
	records := 0

	for {
		n, readErr := body.Read(buf)

		if n > 0 {
			lines, feedErr := reassembler.Feed(buf[:n])
			for _, line := range lines {
				rec, parseErr := stream.ParseRecord(line)
				if parseErr != nil {
					return parseErr
				}
				if renderErr := pipeline.Render(rec); renderErr != nil {
					return renderErr
				}
				records++
			}
			if feedErr != nil {
				return feedErr
			}
		}

		if readErr == io.EOF {
			if residual := reassembler.Residual(); residual > 0 {
				logger.Debug("dropping unterminated final record", "bytes", residual)
			}
			logger.Debug("stream drained", "records", records)
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("stream read failed: %w", readErr)
		}
	}
}
