// Package client consumes the planning event stream and keeps the client-side view of a session.
package client

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/wayfarer-planner/server/internal/agent/model"
	"github.com/wayfarer-planner/server/internal/agent/stream"
)

const maxFrameSize = 4 << 20

var (
	ErrAfterDone       = errors.New("client: event after done")
	ErrSecondItinerary = errors.New("client: second itinerary")
	// ErrIncomplete is returned when the stream ends before the done marker.
	ErrIncomplete = errors.New("client: stream ended without done")
)

// Handler receives each decoded event in order.
type Handler func(model.Event) error

// Consume reads server-sent event frames from r until the done marker or EOF. Only data
// fields are used; comments and other fields are ignored. Multi-line data is joined with
// newlines as the event-stream format requires.
func Consume(ctx context.Context, r io.Reader, handle Handler) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxFrameSize)

	var data bytes.Buffer
	lines := 0
	dispatch := func() (bool, error) {
		if lines == 0 {
			return false, nil
		}
		ev, err := stream.Decode(data.Bytes())
		data.Reset()
		lines = 0
		if err != nil {
			return false, err
		}
		if err := handle(ev); err != nil {
			return false, err
		}
		return ev.Type == model.EventDone, nil
	}

	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := sc.Bytes()
		if len(line) == 0 {
			done, err := dispatch()
			if err != nil || done {
				return err
			}
			continue
		}
		if line[0] == ':' {
			continue
		}
		field, value, _ := bytes.Cut(line, []byte(":"))
		if string(field) != "data" {
			continue
		}
		value = bytes.TrimPrefix(value, []byte(" "))
		if lines > 0 {
			data.WriteByte('\n')
		}
		data.Write(value)
		lines++
	}
	if err := sc.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("client: read stream: %w", err)
	}
	// a final frame without the trailing blank line still counts
	done, err := dispatch()
	if err != nil {
		return err
	}
	if !done {
		return ErrIncomplete
	}
	return nil
}
