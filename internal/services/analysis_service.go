package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/justsurfingit/resale-lister/internal/analysis"
	"github.com/justsurfingit/resale-lister/internal/llm"
	"github.com/justsurfingit/resale-lister/internal/metrics"
	"github.com/justsurfingit/resale-lister/internal/models"
	"go.uber.org/zap"
)

type AnalysisService struct {
	Items   *ItemService
	LLM     llm.Client
	Reducer *analysis.Reducer
	log     *zap.Logger
}

func NewAnalysisService(items *ItemService, client llm.Client, progressEvery int, log *zap.Logger) *AnalysisService {
	if log == nil {
		log = zap.NewNop()
	}
	reducer := analysis.NewReducer(items, progressEvery, log.Named("reducer"))
	if items.Matcher != nil {
		reducer.Categorize = items.Matcher.Categorize
	}
	return &AnalysisService{
		Items:   items,
		LLM:     client,
		Reducer: reducer,
		log:     log,
	}
}

// Analyze runs one analysis for itemID and relays progress through emit. The
// final item status is written even if ctx is cancelled mid-stream.
func (s *AnalysisService) Analyze(ctx context.Context, itemID uint, req llm.Request, emit func(analysis.Event)) (analysis.Record, error) {
	if emit == nil {
		emit = func(analysis.Event) {}
	}
	runID := uuid.NewString()
	log := s.log.With(zap.String("run_id", runID), zap.Uint("item_id", itemID))

	item, err := s.Items.BeginAnalysis(ctx, itemID, runID)
	if err != nil {
		return analysis.Record{}, err
	}
	metrics.AnalysesStarted.WithLabelValues(s.LLM.Provider()).Inc()
	start := time.Now()
	log.Info("analysis started", zap.Int("photos", len(req.Photos)))

	if strings.TrimSpace(req.Description) == "" {
		req.Description = item.Input
	}
	req.Known = summarize(item)

	rec, runErr := s.run(ctx, runID, itemID, req, emit)

	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.Items.FinishAnalysis(finishCtx, itemID, runID, runErr); err != nil {
		log.Warn("could not record analysis outcome", zap.Error(err))
	}
	metrics.AnalysisDuration.Observe(time.Since(start).Seconds())

	if runErr != nil {
		outcome := "failed"
		if errors.Is(runErr, analysis.ErrMalformedResult) {
			outcome = "malformed"
		}
		metrics.AnalysesFinished.WithLabelValues(outcome).Inc()
		log.Error("analysis failed", zap.Error(runErr), zap.String("outcome", outcome))
		emit(analysis.Event{Type: analysis.EventError, RunID: runID, ItemID: itemID, Error: runErr.Error()})
		return analysis.Record{}, runErr
	}

	metrics.AnalysesFinished.WithLabelValues("completed").Inc()
	log.Info("analysis completed", zap.Duration("took", time.Since(start)))
	return rec, nil
}

func (s *AnalysisService) run(ctx context.Context, runID string, itemID uint, req llm.Request, emit func(analysis.Event)) (analysis.Record, error) {
	stream, err := s.LLM.StreamAnalysis(ctx, req)
	if err != nil {
		return analysis.Record{}, fmt.Errorf("start %s stream: %w", s.LLM.Provider(), err)
	}
	defer stream.Close()
	return s.Reducer.Run(ctx, runID, itemID, stream, emit)
}

// summarize tells the model what earlier runs or the seller already settled.
func summarize(item *models.Item) string {
	var lines []string
	add := func(label, v string) {
		if v != "" {
			lines = append(lines, label+": "+v)
		}
	}
	add("title", item.Title)
	add("brand", item.Brand)
	add("model", item.Model)
	add("category", item.Category)
	add("condition", item.Condition)
	add("condition notes", item.ConditionNotes)
	return strings.Join(lines, "\n")
}
