// Package history reads a task's streamed history, restarting the stream
// when the transport cuts it.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/richhaase/autose/internal/api"
	"github.com/richhaase/autose/internal/logger"
)

const (
	// DefaultMaxAttempts is the number of times a stream is requested before
	// giving up on chunk decode errors.
	DefaultMaxAttempts = 5
	// DefaultDelay is the pause between attempts.
	DefaultDelay = 15 * time.Second
)

// ErrTooManyErrors is returned once every attempt ended in a chunk decode
// error.
var ErrTooManyErrors = errors.New("too many errors while receiving the task history")

// Options configures a Reader.
type Options struct {
	MaxAttempts int
	Delay       time.Duration
	// OnRetry is called before the reader sleeps ahead of the next attempt.
	// attempt is the number of the attempt that just failed.
	OnRetry func(attempt int, err error)
}

// Reader turns a Fetcher into one logical text stream.
type Reader struct {
	fetcher     api.Fetcher
	maxAttempts int
	delay       time.Duration
	onRetry     func(int, error)
}

// NewReader creates a Reader. Zero option values take the defaults.
func NewReader(f api.Fetcher, opts Options) *Reader {
	r := &Reader{
		fetcher:     f,
		maxAttempts: opts.MaxAttempts,
		delay:       opts.Delay,
		onRetry:     opts.OnRetry,
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = DefaultMaxAttempts
	}
	if r.delay <= 0 {
		r.delay = DefaultDelay
	}
	if r.onRetry == nil {
		r.onRetry = func(int, error) {}
	}
	return r
}

// ReadHistory streams the history of task id in lineage, calling onText with
// each decoded piece of text in order.
//
// Each attempt re-requests the whole history, so text delivered before a cut
// is delivered again by the next attempt. Only chunk decode errors are
// retried; everything else is returned on first occurrence.
func (r *Reader) ReadHistory(ctx context.Context, lineage api.Lineage, id string, onText func(string) error) error {
	if !lineage.Valid() {
		return api.InvalidParameters("unknown lineage %q", lineage)
	}
	if err := api.ValidateTaskID(id); err != nil {
		return err
	}
	if onText == nil {
		return api.InvalidParameters("no text handler")
	}

	log := logger.FromContext(ctx)
	path := lineage.HistoryPath(id)

	var (
		attempt int
		lastErr error
	)
	backoff := retry.WithMaxRetries(uint64(r.maxAttempts-1), retry.NewConstant(r.delay))
	backoff = notifyBackoff(backoff, func() { r.onRetry(attempt, lastErr) })

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := r.readOnce(ctx, path, onText)
		if err == nil {
			return nil
		}
		lastErr = err
		if api.IsTransient(err) {
			log.Debug("history stream cut", "path", path, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil && api.IsTransient(err) {
		return fmt.Errorf("%w (%d attempts); wait a while, then run 'autose follow %s' or 'autose download-patch %s': %w",
			ErrTooManyErrors, attempt, id, id, err)
	}
	return err
}

// notifyBackoff calls hook each time b grants another attempt.
func notifyBackoff(b retry.Backoff, hook func()) retry.Backoff {
	return retry.BackoffFunc(func() (time.Duration, bool) {
		d, stop := b.Next()
		if !stop {
			hook()
		}
		return d, stop
	})
}

func (r *Reader) readOnce(ctx context.Context, path string, onText func(string) error) error {
	// Leaving early cancels the fetch so its goroutine does not outlive us.
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := logger.FromContext(ctx)
	var dec textDecoder
	for o := range r.fetcher.Fetch(streamCtx, path) {
		switch o.Kind {
		case api.OutcomeResponse:
			log.Debug("history response", "path", path, "status", o.Meta.Status, "ok", o.Meta.OK)
		case api.OutcomeError:
			return o.Err
		case api.OutcomeChunk:
			if o.End() {
				return dec.finish()
			}
			text, err := dec.decode(o.Chunk)
			if err != nil {
				return err
			}
			if text == "" {
				continue
			}
			if err := onText(text); err != nil {
				return err
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return api.ChannelError("history stream closed without a final outcome")
}
