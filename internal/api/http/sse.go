package http

import (
	"bytes"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/cloudwego/hertz/pkg/protocol/sse"

	"github.com/wayfarer-planner/server/internal/agent/stream"
)

const contentTypeEventStream = "text/event-stream"

// SinkOpener prepares the response for an event stream and returns the sink plus a func that
// finishes the response.
type SinkOpener func(c *app.RequestContext) (stream.Sink, func())

type sseSink struct {
	w *sse.Writer
}

// Send writes one event as an unnamed SSE data frame and flushes it.
func (s *sseSink) Send(event []byte) error {
	return s.w.WriteEvent("", "", event)
}

// OpenSSE streams events to the client as they are produced.
func OpenSSE(c *app.RequestContext) (stream.Sink, func()) {
	c.Response.Header.Set("Cache-Control", "no-cache")
	c.Response.Header.Set("Connection", "keep-alive")
	c.Response.Header.Set("X-Accel-Buffering", "no")
	c.SetStatusCode(consts.StatusOK)
	w := sse.NewWriter(c)
	return &sseSink{w: w}, func() { _ = w.Close() }
}

// BufferedSSE collects the frames and writes them as one response body when finished. It
// serves replays and clients that cannot read a streamed body.
func BufferedSSE(c *app.RequestContext) (stream.Sink, func()) {
	var buf bytes.Buffer
	sink := stream.SinkFunc(func(event []byte) error {
		writeFrame(&buf, event)
		return nil
	})
	return sink, func() {
		c.Response.Header.Set("Cache-Control", "no-cache")
		c.Data(consts.StatusOK, contentTypeEventStream, buf.Bytes())
	}
}

func writeFrame(buf *bytes.Buffer, event []byte) {
	buf.WriteString("data: ")
	buf.Write(event)
	buf.WriteString("\n\n")
}
