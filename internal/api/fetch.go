package api

import (
	"context"
	"errors"
	"io"

	"github.com/richhaase/autose/internal/logger"
)

// readBufferSize is the largest chunk handed to the consumer at once.
const readBufferSize = 32 * 1024

// OutcomeKind tags an Outcome.
type OutcomeKind int

const (
	// OutcomeChunk carries body bytes. A zero-length chunk marks the normal
	// end of the stream.
	OutcomeChunk OutcomeKind = iota
	// OutcomeResponse carries the response status line.
	OutcomeResponse
	// OutcomeError is terminal.
	OutcomeError
)

// ResponseMeta describes the response header.
type ResponseMeta struct {
	Status int
	OK     bool
}

// Outcome is one event of a fetched stream.
type Outcome struct {
	Kind  OutcomeKind
	Chunk []byte
	Meta  ResponseMeta
	Err   error
}

// End reports whether o is the end-of-stream marker.
func (o Outcome) End() bool {
	return o.Kind == OutcomeChunk && len(o.Chunk) == 0
}

// Fetcher streams the body at a path.
type Fetcher interface {
	Fetch(ctx context.Context, path string) <-chan Outcome
}

// Fetch issues a GET for path on its own goroutine and delivers the response
// as Outcomes, in order. The channel holds at most one undelivered outcome,
// so a slow consumer stalls the read. The last outcome is either a
// zero-length chunk or an error; the channel is closed after it. Cancelling
// ctx stops the goroutine even if nobody is receiving.
func (c *Client) Fetch(ctx context.Context, path string) <-chan Outcome {
	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		c.stream(ctx, path, out)
	}()
	return out
}

func (c *Client) stream(ctx context.Context, path string, out chan<- Outcome) {
	log := logger.FromContext(ctx)
	send := func(o Outcome) bool {
		select {
		case out <- o:
			return true
		case <-ctx.Done():
			return false
		}
	}
	fail := func(err error) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		send(Outcome{Kind: OutcomeError, Err: err})
	}

	req, reqID := c.newRequest(ctx)
	log.Debug("stream request", "path", path, "request_id", reqID)
	resp, err := req.SetDoNotParseResponse(true).Get(path)
	if err != nil {
		fail(HTTPError(0, "", err))
		return
	}
	body := resp.RawBody()
	if body == nil {
		fail(ChannelError("response has no body"))
		return
	}
	defer body.Close()

	meta := ResponseMeta{Status: resp.StatusCode(), OK: resp.IsSuccess()}
	log.Debug("stream response", "path", path, "status", meta.Status)
	if !send(Outcome{Kind: OutcomeResponse, Meta: meta}) {
		return
	}
	if !meta.OK {
		data, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
		fail(HTTPError(meta.Status, string(data), nil))
		return
	}

	buf := make([]byte, readBufferSize)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			log.Debug("chunk received", "path", path, "bytes", n)
			if !send(Outcome{Kind: OutcomeChunk, Chunk: chunk}) {
				return
			}
		}
		if errors.Is(err, io.EOF) {
			send(Outcome{Kind: OutcomeChunk, Chunk: []byte{}})
			return
		}
		if err != nil {
			fail(ChunkDecodeError(err))
			return
		}
	}
}
