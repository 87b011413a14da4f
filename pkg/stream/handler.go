// Package stream serves the item sequence over three encodings: a JSON (or
// XML) array, newline delimited JSON and server-sent events.
package stream

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashpect/itemstream/pkg/item"
	"github.com/ashpect/itemstream/pkg/logging"
	"github.com/ashpect/itemstream/pkg/metrics"
)

const (
	MediaJSON        = "application/json"
	MediaXML         = "application/xml"
	MediaStreamJSON  = "application/stream+json"
	MediaNDJSON      = "application/x-ndjson"
	MediaEventStream = "text/event-stream"
)

// EventName is the SSE event every item is sent under.
const EventName = "data"

const (
	endpointArray  = "array"
	endpointStream = "stream"
	endpointEvents = "events"
)

type Handler struct {
	source  *item.Source
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Handler)

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = l
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

func New(source *item.Source, opts ...Option) *Handler {
	h := &Handler{source: source, logger: logging.Discard()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the three endpoints on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /array", h.handleArray)
	mux.HandleFunc("GET /stream", h.handleStream)
	mux.HandleFunc("GET /events", h.handleEvents)
}

// handleArray waits for the whole sequence and writes it in one go.
func (h *Handler) handleArray(w http.ResponseWriter, r *http.Request) {
	mediaType, ok := negotiate(r.Header.Get("Accept"), []string{MediaJSON, MediaXML})
	if !ok {
		notAcceptable(w)
		return
	}

	done := h.track(endpointArray)
	items, err := h.source.Collect(r.Context())
	if err != nil {
		h.logger.Debug("client went away before the array was complete",
			slog.String("endpoint", endpointArray), slog.Int("collected", len(items)), slog.Any("error", err))
		done(metrics.OutcomeAborted)
		return
	}

	w.Header().Set("Content-Type", mediaType)
	switch mediaType {
	case MediaXML:
		_, err = w.Write([]byte(xml.Header))
		if err == nil {
			err = xml.NewEncoder(w).Encode(item.List{Items: items})
		}
	default:
		err = json.NewEncoder(w).Encode(items)
	}
	if err != nil {
		h.logger.Debug("write array", slog.Any("error", err))
		done(metrics.OutcomeAborted)
		return
	}
	h.emitted(endpointArray, len(items))
	done(metrics.OutcomeCompleted)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	mediaType, ok := negotiate(r.Header.Get("Accept"), []string{MediaStreamJSON, MediaNDJSON})
	if !ok {
		notAcceptable(w)
		return
	}
	w.Header().Set("Content-Type", mediaType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	h.pump(r.Context(), w, endpointStream, newNDJSONSink(w))
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if _, ok := negotiate(r.Header.Get("Accept"), []string{MediaEventStream}); !ok {
		notAcceptable(w)
		return
	}
	w.Header().Set("Content-Type", MediaEventStream)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	h.pump(r.Context(), w, endpointEvents, newSSESink(w, EventName))
}

// pump copies a fresh sequence into s, flushing after every item. A failed
// write cancels the sequence so its ticker goroutine exits.
func (h *Handler) pump(ctx context.Context, w http.ResponseWriter, endpoint string, s sink) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := h.track(endpoint)
	w.WriteHeader(http.StatusOK)
	// push headers out before the first tick
	flushable := true
	if err := s.Flush(); err != nil {
		if !errors.Is(err, http.ErrNotSupported) {
			done(metrics.OutcomeAborted)
			return
		}
		flushable = false
		h.logger.Warn("response writer cannot flush; items will arrive together", slog.String("endpoint", endpoint))
	}

	sent := 0
	for it := range h.source.Stream(ctx) {
		if err := s.Send(it); err != nil {
			h.logger.Debug("stream write failed", slog.String("endpoint", endpoint), slog.Int("sent", sent), slog.Any("error", err))
			done(metrics.OutcomeAborted)
			return
		}
		if flushable {
			if err := s.Flush(); err != nil {
				h.logger.Debug("stream flush failed", slog.String("endpoint", endpoint), slog.Int("sent", sent), slog.Any("error", err))
				done(metrics.OutcomeAborted)
				return
			}
		}
		sent++
		h.emitted(endpoint, 1)
	}

	if sent < h.source.Count() {
		h.logger.Debug("client went away mid stream", slog.String("endpoint", endpoint), slog.Int("sent", sent))
		done(metrics.OutcomeAborted)
		return
	}
	done(metrics.OutcomeCompleted)
}

// track marks a response active and returns the func that closes it out.
func (h *Handler) track(endpoint string) func(outcome string) {
	if h.metrics == nil {
		return func(string) {}
	}
	start := time.Now()
	h.metrics.StreamsActive.WithLabelValues(endpoint).Inc()
	return func(outcome string) {
		h.metrics.StreamsActive.WithLabelValues(endpoint).Dec()
		h.metrics.StreamDuration.WithLabelValues(endpoint, outcome).Observe(time.Since(start).Seconds())
	}
}

func (h *Handler) emitted(endpoint string, n int) {
	if h.metrics != nil {
		h.metrics.ItemsEmitted.WithLabelValues(endpoint).Add(float64(n))
	}
}

func notAcceptable(w http.ResponseWriter) {
	http.Error(w, http.StatusText(http.StatusNotAcceptable), http.StatusNotAcceptable)
}
