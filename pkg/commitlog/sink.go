package commitlog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/lattice-kb/lattice.graph/pkg/logger"
)

// InMemory is the engine URL value that selects the no-op sink.
const InMemory = "IN_MEMORY"

// commitLogPath is the engine endpoint that ingests commit logs.
const commitLogPath = "/db/commit-log"

// Sink receives commit log payloads after a transaction commits.
type Sink interface {
	Submit(ctx context.Context, keyspace string, payload *Payload) error
}

// NewSink returns the sink for the configured engine URL.
func NewSink(engineURL string, log *slog.Logger) Sink {
	if engineURL == InMemory || engineURL == "" {
		return NoopSink{}
	}
	return &HTTPSink{
		engineURL: engineURL,
		client:    &http.Client{Timeout: 30 * time.Second},
		log:       log.With(logger.Scope("commitlog")),
	}
}

// NoopSink discards payloads. Used by embedded, in-memory deployments
// where post-processing runs in process.
type NoopSink struct{}

func (NoopSink) Submit(context.Context, string, *Payload) error { return nil }

// HTTPSink POSTs payloads to the engine's commit-log endpoint.
type HTTPSink struct {
	engineURL string
	client    *http.Client
	log       *slog.Logger
}

func (s *HTTPSink) Submit(ctx context.Context, keyspace string, payload *Payload) error {
	body, err := payload.Marshal()
	if err != nil {
		return fmt.Errorf("marshal commit log: %w", err)
	}

	endpoint := fmt.Sprintf("%s%s?keyspace=%s", s.engineURL, commitLogPath, url.QueryEscape(keyspace))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build commit log request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("submit commit log: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("commit log rejected: %s: %s", resp.Status, snippet)
	}

	s.log.Debug("commit log submitted",
		slog.String("keyspace", keyspace),
		slog.Int("castings", len(payload.Castings)),
		slog.Int("resources", len(payload.Resources)))
	return nil
}
