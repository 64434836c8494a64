// Package dispatch implements the response dispatcher: byte-exact
// passthrough when the upstream and client formats agree, incremental
// SSE-to-SSE translation otherwise, and non-2xx error-envelope
// translation.
package dispatch

import (
	"context"
	"io"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/relaymux/gateway/internal/domain"
	"github.com/relaymux/gateway/internal/xlate"
	"github.com/relaymux/gateway/internal/xlate/ir"
)

// Flusher is the minimal surface the dispatcher needs from the client's
// HTTP response writer: write bytes and flush them to the wire
// immediately, so translated events reach the client as soon as they are
// emitted rather than sitting in a buffer.
type Flusher interface {
	io.Writer
	Flush()
}

const streamReadChunk = 32 * 1024

// UsageObserver is notified once a terminal event or a non-streamed
// response carries a token usage block.
type UsageObserver func(usage *ir.Usage)

// Dispatcher renders an upstream 2xx response into the client's requested
// format and streams it out incrementally.
type Dispatcher struct{}

func New() *Dispatcher { return &Dispatcher{} }

// Dispatch writes upstream's body to w, translating between fromFormat and
// toFormat when they differ. It never buffers a translated streaming
// response in full; each decoded event is re-encoded and flushed as soon
// as its SSE frame completes. onUsage, if non-nil, is called at most once
// with the usage block extracted from a terminal streaming event or a
// non-streamed response body.
func (d *Dispatcher) Dispatch(ctx context.Context, fromFormat, toFormat domain.Format, contentType string, body io.ReadCloser, model, messageID string, w Flusher, onUsage UsageObserver) error {
	defer body.Close()

	if fromFormat == toFormat {
		return passthrough(ctx, w, body, fromFormat, isEventStream(contentType), onUsage)
	}

	if isEventStream(contentType) {
		return streamTranslate(ctx, w, body, fromFormat, toFormat, model, messageID, onUsage)
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	fr := parseFinalResponse(fromFormat, raw)
	if fr.Usage != nil && onUsage != nil {
		onUsage(fr.Usage)
	}
	rendered := renderFinalResponse(toFormat, fr, model, messageID)
	_, err = w.Write(rendered)
	return err
}

func isEventStream(contentType string) bool {
	return strings.Contains(contentType, "text/event-stream")
}

// passthrough copies upstream bytes to w verbatim, flushing after every
// read so SSE chunk boundaries reach the client as they arrive. It also
// decodes a side copy of the bytes to extract the terminal usage block
// (from a streaming message_stop/usage event, or from the buffered
// non-streamed body at EOF), since a byte-exact pass has no other chance
// to learn upstream's authoritative token counts.
func passthrough(ctx context.Context, w Flusher, body io.Reader, fromFormat domain.Format, isStream bool, onUsage UsageObserver) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var pending, finalBuf []byte
		buf := make([]byte, streamReadChunk)
		usageSent := false
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			n, err := body.Read(buf)
			if n > 0 {
				chunk := buf[:n]
				if _, werr := w.Write(chunk); werr != nil {
					return werr
				}
				w.Flush()

				if onUsage != nil && !usageSent {
					if isStream {
						pending = append(pending, chunk...)
						var frames []xlate.SSEFrame
						frames, pending = xlate.SplitSSEFrames(pending)
						for _, frame := range frames {
							ev, decErr := xlate.DecodeEvent(fromFormat, frame)
							if decErr != nil || ev == nil || ev.Usage == nil {
								continue
							}
							if ev.Type == ir.EventUsage || ev.Type == ir.EventMessageStop {
								onUsage(ev.Usage)
								usageSent = true
								break
							}
						}
					} else {
						finalBuf = append(finalBuf, chunk...)
					}
				}
			}
			if err != nil {
				if err == io.EOF {
					if onUsage != nil && !usageSent && !isStream {
						if fr := parseFinalResponse(fromFormat, finalBuf); fr.Usage != nil {
							onUsage(fr.Usage)
						}
					}
					return nil
				}
				return err
			}
		}
	})
	return g.Wait()
}

// streamTranslate incrementally parses SSE frames from body, decodes each
// into a UnifiedEvent, re-encodes it in toFormat, and flushes it. Partial
// frames straddling two reads are held in pending until the boundary
// completes.
func streamTranslate(ctx context.Context, w Flusher, body io.Reader, fromFormat, toFormat domain.Format, model, messageID string, onUsage UsageObserver) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var pending []byte
		buf := make([]byte, streamReadChunk)
		usageSent := false
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			n, err := body.Read(buf)
			if n > 0 {
				pending = append(pending, buf[:n]...)
				var frames []xlate.SSEFrame
				frames, pending = xlate.SplitSSEFrames(pending)
				for _, frame := range frames {
					ev, decErr := xlate.DecodeEvent(fromFormat, frame)
					if decErr != nil || ev == nil {
						continue
					}
					if !usageSent && ev.Usage != nil && (ev.Type == ir.EventUsage || ev.Type == ir.EventMessageStop) && onUsage != nil {
						onUsage(ev.Usage)
						usageSent = true
					}
					out := xlate.EncodeEvent(toFormat, *ev, model, messageID)
					if len(out) == 0 {
						continue
					}
					if _, werr := w.Write(out); werr != nil {
						return werr
					}
					w.Flush()
				}
			}
			if err != nil {
				if err == io.EOF {
					return nil
				}
				return err
			}
		}
	})
	return g.Wait()
}
