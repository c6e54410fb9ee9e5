// Package analysis reduces a streamed LLM reply into a persisted item record.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/justsurfingit/resale-lister/internal/pricing"
	"go.uber.org/zap"
)

type EventType string

const (
	EventProcessing EventType = "processing"
	EventCompleted  EventType = "completed"
	EventError      EventType = "error"
)

// Event is what the analyze endpoint relays to the client. Processing events
// are progress hints only; Record is set on completed events.
type Event struct {
	Type         EventType `json:"type"`
	RunID        string    `json:"run_id"`
	ItemID       uint      `json:"item_id"`
	Tokens       int       `json:"tokens,omitempty"`
	Bytes        int       `json:"bytes,omitempty"`
	JSONComplete bool      `json:"json_complete,omitempty"`
	Record       *Record   `json:"record,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// Store loads and saves the analysed part of an item. SaveRecord must refuse
// the write once runID no longer owns the item.
type Store interface {
	LoadRecord(ctx context.Context, itemID uint) (Record, error)
	SaveRecord(ctx context.Context, itemID uint, runID string, rec Record) error
}

const DefaultProgressEvery = 8

type Reducer struct {
	Store         Store
	ProgressEvery int
	// Categorize fills in a category when neither run produced a known one.
	Categorize func(Record) string
	Logger     *zap.Logger
}

func NewReducer(store Store, progressEvery int, logger *zap.Logger) *Reducer {
	if progressEvery <= 0 {
		progressEvery = DefaultProgressEvery
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reducer{Store: store, ProgressEvery: progressEvery, Logger: logger}
}

// Run drains src, then parses, merges and saves the result. A reply that does
// not parse is returned as ErrMalformedResult and nothing is written.
func (r *Reducer) Run(ctx context.Context, runID string, itemID uint, src TokenStream, emit func(Event)) (Record, error) {
	log := r.Logger.With(zap.String("run_id", runID), zap.Uint("item_id", itemID))
	if emit == nil {
		emit = func(Event) {}
	}

	var buf strings.Builder
	tokens := 0
	for {
		tok, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Record{}, fmt.Errorf("read stream after %d tokens: %w", tokens, err)
		}
		buf.WriteString(tok)
		tokens++

		if tokens%r.ProgressEvery == 0 {
			_, _, complete := completeObject(buf.String())
			emit(Event{
				Type:         EventProcessing,
				RunID:        runID,
				ItemID:       itemID,
				Tokens:       tokens,
				Bytes:        buf.Len(),
				JSONComplete: complete,
			})
		}
	}
	log.Debug("stream finished", zap.Int("tokens", tokens), zap.Int("bytes", buf.Len()))

	obj, err := ExtractJSON(buf.String())
	if err != nil {
		log.Warn("unparseable analysis reply", zap.Error(err), zap.String("reply", excerpt(buf.String(), 300)))
		return Record{}, err
	}
	fresh, err := ParseRecord(obj)
	if err != nil {
		return Record{}, err
	}

	prev, err := r.Store.LoadRecord(ctx, itemID)
	if err != nil {
		return Record{}, fmt.Errorf("load prior record: %w", err)
	}
	merged := Merge(prev, fresh)
	// Categories without an uplift table are re-derived from the text.
	if !pricing.KnownCategory(merged.Category) && r.Categorize != nil {
		merged.Category = r.Categorize(merged)
	}
	Reprice(&merged)

	if err := r.Store.SaveRecord(ctx, itemID, runID, merged); err != nil {
		return Record{}, fmt.Errorf("save merged record: %w", err)
	}
	log.Info("analysis merged",
		zap.String("condition", merged.Condition),
		zap.Bool("narrative_replaced", merged.ConditionNotes != prev.ConditionNotes),
	)

	emit(Event{Type: EventCompleted, RunID: runID, ItemID: itemID, Tokens: tokens, Bytes: buf.Len(), Record: &merged})
	return merged, nil
}
