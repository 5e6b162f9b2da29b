package writeup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeGenerator replays canned replies in order, repeating the last one.
type fakeGenerator struct {
	mu       sync.Mutex
	replies  []fakeReply
	requests []Request
}

type fakeReply struct {
	content string
	err     error
}

func (f *fakeGenerator) Generate(ctx context.Context, req Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)

	idx := len(f.requests) - 1
	if idx >= len(f.replies) {
		idx = len(f.replies) - 1
	}
	r := f.replies[idx]
	return r.content, r.err
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func TestWriter_ExtractQuotesUsesGenerator(t *testing.T) {
	gen := &fakeGenerator{replies: []fakeReply{{content: `[{"quote":"Top notch","author":"Ann Lee","title":"PM"}]`}}}
	w := NewWriter(gen)

	quotes := w.ExtractQuotes(context.Background(), sampleLetter)
	require.Equal(t, []Quote{{Quote: "Top notch", Author: "Ann Lee", Title: "PM"}}, quotes)

	require.Equal(t, FormatQuotes, gen.requests[0].Format)
	require.Equal(t, quoteSystemInstruction, gen.requests[0].System)
}

func TestWriter_ExtractQuotesFallsBack(t *testing.T) {
	tests := []struct {
		name  string
		reply fakeReply
	}{
		{name: "generator error", reply: fakeReply{err: errors.New("boom")}},
		{name: "empty array", reply: fakeReply{content: "[]"}},
		{name: "prose reply", reply: fakeReply{content: "Sorry, no quotes here."}},
		{name: "empty reply", reply: fakeReply{content: ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWriter(&fakeGenerator{replies: []fakeReply{tt.reply}})

			quotes := w.ExtractQuotes(context.Background(), sampleLetter)
			require.Equal(t, SearchQuotes(sampleLetter), quotes)
		})
	}

	t.Run("no generator configured", func(t *testing.T) {
		quotes := NewWriter(nil).ExtractQuotes(context.Background(), sampleLetter)
		require.Len(t, quotes, 2)
	})
}

func TestWriter_ExtractQuotesSkipsShortInput(t *testing.T) {
	gen := &fakeGenerator{replies: []fakeReply{{content: "[]"}}}

	require.Empty(t, NewWriter(gen).ExtractQuotes(context.Background(), "  tiny  "))
	require.Equal(t, 0, gen.calls())
}

func TestWriter_Describe(t *testing.T) {
	t.Run("returns trimmed content", func(t *testing.T) {
		gen := &fakeGenerator{replies: []fakeReply{{content: "  The project delivered...  \n"}}}

		content, err := NewWriter(gen).Describe(context.Background(), DescriptionOptions{DocumentsText: "docs"})
		require.NoError(t, err)
		require.Equal(t, "The project delivered...", content)
		require.Equal(t, FormatText, gen.requests[0].Format)
	})

	t.Run("refusal is an error", func(t *testing.T) {
		gen := &fakeGenerator{replies: []fakeReply{{content: "I cannot write this."}}}

		_, err := NewWriter(gen).Describe(context.Background(), DescriptionOptions{})
		require.ErrorIs(t, err, ErrRefused)
	})

	t.Run("empty is an error", func(t *testing.T) {
		gen := &fakeGenerator{replies: []fakeReply{{content: "   "}}}

		_, err := NewWriter(gen).Describe(context.Background(), DescriptionOptions{})
		require.ErrorIs(t, err, ErrEmptyResponse)
	})

	t.Run("not configured", func(t *testing.T) {
		_, err := NewWriter(nil).Describe(context.Background(), DescriptionOptions{})
		require.ErrorIs(t, err, ErrNotConfigured)
	})
}

func TestWriter_DescribeTimeout(t *testing.T) {
	gen := generatorFunc(func(ctx context.Context, req Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	w := NewWriter(gen, WithTimeouts(0, 10*time.Millisecond))

	_, err := w.Describe(context.Background(), DescriptionOptions{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWriter_DescribeWithRetry(t *testing.T) {
	t.Run("second attempt succeeds", func(t *testing.T) {
		gen := &fakeGenerator{replies: []fakeReply{
			{err: errors.New("temporary")},
			{content: "Recovered description"},
		}}

		content, err := NewWriter(gen, WithRetryInterval(time.Millisecond)).DescribeWithRetry(context.Background(), DescriptionOptions{})
		require.NoError(t, err)
		require.Equal(t, "Recovered description", content)
		require.Equal(t, 2, gen.calls())
	})

	t.Run("gives up after two attempts", func(t *testing.T) {
		gen := &fakeGenerator{replies: []fakeReply{{err: errors.New("down")}}}

		_, err := NewWriter(gen, WithRetryInterval(time.Millisecond)).DescribeWithRetry(context.Background(), DescriptionOptions{})
		require.Error(t, err)
		require.Equal(t, descriptionAttempts, gen.calls())
	})

	t.Run("not configured is not retried", func(t *testing.T) {
		_, err := NewWriter(nil).DescribeWithRetry(context.Background(), DescriptionOptions{})
		require.ErrorIs(t, err, ErrNotConfigured)
	})
}

type generatorFunc func(ctx context.Context, req Request) (string, error)

func (f generatorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
