package writeup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/msmm/aitools/internal/telemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	DefaultQuoteTimeout       = 20 * time.Second
	DefaultDescriptionTimeout = 45 * time.Second

	// DescriptionVersions is how many alternatives the batch endpoint produces.
	DescriptionVersions = 3

	descriptionAttempts = 2
)

var (
	ErrRefused       = errors.New("generator returned an error or refusal instead of content")
	ErrEmptyResponse = errors.New("generator returned no content")
	ErrNotConfigured = errors.New("text generation is not configured")
)

// Format selects the shape of a generated reply.
type Format int

const (
	FormatText Format = iota
	FormatQuotes
)

// Request is one text generation call.
type Request struct {
	System          string
	Prompt          string
	Temperature     float32
	MaxOutputTokens int32
	Format          Format
}

// Generator calls a text generation API.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Writer turns uploaded documents into quotes and project descriptions.
type Writer struct {
	gen                Generator
	quoteTimeout       time.Duration
	descriptionTimeout time.Duration
	retryInterval      time.Duration
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithTimeouts overrides the per call timeouts.
func WithTimeouts(quotes, descriptions time.Duration) WriterOption {
	return func(w *Writer) {
		if quotes > 0 {
			w.quoteTimeout = quotes
		}
		if descriptions > 0 {
			w.descriptionTimeout = descriptions
		}
	}
}

// WithRetryInterval sets the initial backoff between description attempts.
func WithRetryInterval(d time.Duration) WriterOption {
	return func(w *Writer) {
		w.retryInterval = d
	}
}

// NewWriter creates a Writer. gen may be nil, in which case quotes fall back
// to pattern matching and descriptions fail with ErrNotConfigured.
func NewWriter(gen Generator, opts ...WriterOption) *Writer {
	w := &Writer{
		gen:                gen,
		quoteTimeout:       DefaultQuoteTimeout,
		descriptionTimeout: DefaultDescriptionTimeout,
		retryInterval:      2 * time.Second,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// ExtractQuotes asks the generator for quotes and falls back to SearchQuotes
// when it fails or finds none.
func (w *Writer) ExtractQuotes(ctx context.Context, text string) []Quote {
	if len(strings.TrimSpace(text)) < minQuoteSourceLength {
		return nil
	}

	quotes, err := w.generateQuotes(ctx, text)
	if err != nil {
		log.Warn().Err(err).Str("op", "quotes").Msg("Quote generation failed, using text search")
	}

	if len(quotes) == 0 {
		quotes = SearchQuotes(text)
	}

	return quotes
}

func (w *Writer) generateQuotes(ctx context.Context, text string) ([]Quote, error) {
	if w.gen == nil {
		return nil, ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, w.quoteTimeout)
	defer cancel()

	content, err := w.call(ctx, "quotes", Request{
		System:          quoteSystemInstruction,
		Prompt:          QuotePrompt(text),
		Temperature:     0.1,
		MaxOutputTokens: 500,
		Format:          FormatQuotes,
	})
	if err != nil {
		return nil, err
	}

	return ParseQuotes(content)
}

// Describe generates one project description.
func (w *Writer) Describe(ctx context.Context, opts DescriptionOptions) (string, error) {
	if w.gen == nil {
		return "", ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, w.descriptionTimeout)
	defer cancel()

	content, err := w.call(ctx, "description", Request{
		System:          descriptionSystemInstruction,
		Prompt:          DescriptionPrompt(opts),
		Temperature:     0.7,
		MaxOutputTokens: 4000,
		Format:          FormatText,
	})
	if err != nil {
		return "", err
	}

	content = strings.TrimSpace(content)
	if IsRefusal(content) {
		return "", fmt.Errorf("%w: %s", ErrRefused, truncate(content, 200))
	}

	return content, nil
}

// DescribeWithRetry calls Describe up to twice with exponential backoff between attempts.
func (w *Writer) DescribeWithRetry(ctx context.Context, opts DescriptionOptions) (string, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = w.retryInterval

	attempt := 0
	op := func() (string, error) {
		attempt++
		content, err := w.Describe(ctx, opts)
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Str("op", "description").Msg("Description attempt failed")
			if errors.Is(err, ErrNotConfigured) {
				return "", backoff.Permanent(err)
			}
			return "", err
		}
		return content, nil
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(descriptionAttempts),
	)
}

func (w *Writer) call(ctx context.Context, kind string, req Request) (string, error) {
	started := time.Now()
	content, err := w.gen.Generate(ctx, req)

	outcome := "success"
	switch {
	case err != nil:
		outcome = "error"
	case strings.TrimSpace(content) == "":
		outcome = "empty"
		err = ErrEmptyResponse
	}

	m := telemetry.GetMetrics()
	attrs := metric.WithAttributes(attribute.String("kind", kind), attribute.String("outcome", outcome))
	m.GenerationsTotal.Add(ctx, 1, attrs)
	m.GenerationDuration.Record(ctx, float64(time.Since(started).Milliseconds()), attrs)

	if err != nil {
		return "", fmt.Errorf("%s generation failed: %w", kind, err)
	}

	return content, nil
}
