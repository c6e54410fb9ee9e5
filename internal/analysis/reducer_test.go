package analysis

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	records map[uint]Record
	saves   int
	lastRun string
}

func newMemStore() *memStore {
	return &memStore{records: make(map[uint]Record)}
}

func (m *memStore) LoadRecord(_ context.Context, id uint) (Record, error) {
	return m.records[id], nil
}

func (m *memStore) SaveRecord(_ context.Context, id uint, runID string, rec Record) error {
	m.saves++
	m.lastRun = runID
	m.records[id] = rec
	return nil
}

type sliceTokens struct {
	tokens []string
	err    error
}

func (s *sliceTokens) Next(context.Context) (string, error) {
	if len(s.tokens) == 0 {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	tok := s.tokens[0]
	s.tokens = s.tokens[1:]
	return tok, nil
}

func (s *sliceTokens) Close() error { return nil }

// chunk splits s into n-byte pieces so JSON is cut mid-token.
func chunk(s string, n int) []string {
	var out []string
	for len(s) > n {
		out = append(out, s[:n])
		s = s[n:]
	}
	return append(out, s)
}

const reply = "```json\n" + `{
  "title": "Canon AE-1 Program 35mm Camera",
  "brand": "Canon",
  "category": "electronics",
  "condition": "Very Good",
  "condition_notes": "Light wear on the top plate. Shutter fires at all speeds.",
  "tags": ["film", "35mm"],
  "reference_prices": {"new": 400, "used_mid": 180},
  "facets": [{"name": "original_packaging"}],
  "special": true
}` + "\n```"

func TestReducer_ReassemblesSplitJSON(t *testing.T) {
	store := newMemStore()
	r := NewReducer(store, 5, nil)

	var events []Event
	rec, err := r.Run(context.Background(), "run-1", 3, &sliceTokens{tokens: chunk(reply, 7)}, func(e Event) {
		events = append(events, e)
	})
	require.NoError(t, err)

	assert.Equal(t, "Canon AE-1 Program 35mm Camera", rec.Title)
	assert.Equal(t, "Very Good", rec.Condition)
	require.NotNil(t, rec.SuggestedPrice)
	assert.InDelta(t, 0.04, rec.Uplift, 1e-9)
	assert.Equal(t, rec, store.records[3])
	assert.Equal(t, "run-1", store.lastRun)

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, EventCompleted, last.Type)
	require.NotNil(t, last.Record)
	assert.Equal(t, rec.Title, last.Record.Title)
	for _, e := range events[:len(events)-1] {
		assert.Equal(t, EventProcessing, e.Type)
		assert.Equal(t, "run-1", e.RunID)
		assert.Nil(t, e.Record)
	}
}

func TestReducer_SingleByteChunks(t *testing.T) {
	store := newMemStore()
	r := NewReducer(store, 0, nil)

	rec, err := r.Run(context.Background(), "run-2", 1, &sliceTokens{tokens: chunk(reply, 1)}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Canon", rec.Brand)
}

func TestReducer_MergesWithPriorRecord(t *testing.T) {
	store := newMemStore()
	store.records[9] = Record{
		Title:          "Camera",
		Condition:      "Like New",
		ConditionNotes: "Clean body, no marks.",
	}
	r := NewReducer(store, 0, nil)

	rec, err := r.Run(context.Background(), "run-3", 9, &sliceTokens{tokens: chunk(reply, 16)}, nil)
	require.NoError(t, err)

	// "Light wear" is not a damage keyword, so the old narrative stays.
	assert.Equal(t, "Clean body, no marks.", rec.ConditionNotes)
	assert.Equal(t, "Like New", rec.Condition)
	assert.Equal(t, "Canon AE-1 Program 35mm Camera", rec.Title)
}

func TestReducer_MalformedReplyIsFatal(t *testing.T) {
	store := newMemStore()
	r := NewReducer(store, 0, nil)

	var events []Event
	_, err := r.Run(context.Background(), "run-4", 2, &sliceTokens{tokens: []string{`{"title": "half`}}, func(e Event) {
		events = append(events, e)
	})
	assert.ErrorIs(t, err, ErrMalformedResult)
	assert.Zero(t, store.saves)
	for _, e := range events {
		assert.NotEqual(t, EventCompleted, e.Type)
	}
}

func TestReducer_StreamError(t *testing.T) {
	boom := errors.New("connection reset")
	r := NewReducer(newMemStore(), 0, nil)

	_, err := r.Run(context.Background(), "run-5", 2, &sliceTokens{tokens: []string{"{"}, err: boom}, nil)
	assert.ErrorIs(t, err, boom)
}

func TestReducer_FromSSEBody(t *testing.T) {
	var b strings.Builder
	b.WriteString(": ping\n\n")
	for _, c := range chunk(reply, 9) {
		b.WriteString("data: {\"choices\":[{\"delta\":{\"content\":")
		b.WriteString(quote(c))
		b.WriteString("}}]}\n\n")
	}
	b.WriteString("data: [DONE]\n\n")

	store := newMemStore()
	r := NewReducer(store, 0, nil)
	r.Categorize = func(Record) string { return "should-not-be-used" }

	rec, err := r.Run(context.Background(), "run-6", 4, NewSSETokens(io.NopCloser(strings.NewReader(b.String()))), nil)
	require.NoError(t, err)
	assert.Equal(t, "electronics", rec.Category)
	assert.Equal(t, 1, store.saves)
}

func TestReducer_UnknownCategoryIsRederived(t *testing.T) {
	store := newMemStore()
	r := NewReducer(store, 0, nil)
	r.Categorize = func(rec Record) string {
		assert.Equal(t, "Canon", rec.Brand)
		return "electronics"
	}

	odd := strings.Replace(reply, `"category": "electronics"`, `"category": "Film Photography"`, 1)
	rec, err := r.Run(context.Background(), "run-7", 5, &sliceTokens{tokens: chunk(odd, 13)}, nil)
	require.NoError(t, err)
	assert.Equal(t, "electronics", rec.Category)
	assert.InDelta(t, 0.04, rec.Uplift, 1e-9)
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return `"` + r.Replace(s) + `"`
}
