package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/justsurfingit/resale-lister/internal/analysis"
	"github.com/justsurfingit/resale-lister/internal/dtos"
	"github.com/justsurfingit/resale-lister/internal/models"
	"github.com/justsurfingit/resale-lister/internal/platforms"
	"github.com/justsurfingit/resale-lister/internal/pricing"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrItemNotFound       = errors.New("item not found")
	ErrAnalysisInProgress = errors.New("analysis already in progress")
	// ErrRunSuperseded means the item left ANALYZING (swept or deleted) before
	// the run could save its result.
	ErrRunSuperseded = errors.New("analysis run no longer current")
	ErrInvalidEdit   = errors.New("invalid edit")
)

type ItemService struct {
	DB      *gorm.DB
	Matcher *MatcherService
	log     *zap.Logger
}

func NewItemService(db *gorm.DB, matcher *MatcherService, log *zap.Logger) *ItemService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ItemService{
		DB:      db,
		Matcher: matcher,
		log:     log,
	}
}

func (s *ItemService) Create(ctx context.Context, req *dtos.ItemCreationRequest) (*models.Item, error) {
	item := &models.Item{
		Input:    strings.TrimSpace(req.Input),
		Title:    strings.TrimSpace(req.Title),
		Category: strings.ToLower(strings.TrimSpace(req.Category)),
		Status:   models.StatusDraft,
	}
	if item.Category == "" && s.Matcher != nil {
		item.Category = s.Matcher.CategorizeText(item.Title, item.Input)
	}
	if err := s.DB.WithContext(ctx).Create(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

func (s *ItemService) Get(ctx context.Context, id uint) (*models.Item, error) {
	var item models.Item
	err := s.DB.WithContext(ctx).
		Preload("Events", func(db *gorm.DB) *gorm.DB { return db.Order("created_at, id") }).
		First(&item, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrItemNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// List returns items newest first, optionally filtered by status.
func (s *ItemService) List(ctx context.Context, status string, limit, offset int) ([]models.Item, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	q := s.DB.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit).Offset(offset)
	if status != "" {
		q = q.Where("status = ?", strings.ToUpper(status))
	}
	var items []models.Item
	if err := q.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Update applies user edits. Changing the condition or category reprices the item.
func (s *ItemService) Update(ctx context.Context, id uint, req *dtos.ItemUpdateRequest) (*models.Item, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Status == models.StatusAnalyzing {
		return nil, ErrAnalysisInProgress
	}

	var changed []string
	set := func(name string, dst *string, v *string) {
		if v == nil {
			return
		}
		nv := strings.TrimSpace(*v)
		if nv != *dst {
			*dst = nv
			changed = append(changed, name)
		}
	}

	if req.Condition != nil {
		cond, err := pricing.ParseCondition(*req.Condition)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidEdit, err)
		}
		label := cond.String()
		set("condition", &item.Condition, &label)
	}
	if req.Category != nil {
		cat := strings.ToLower(*req.Category)
		set("category", &item.Category, &cat)
	}
	set("title", &item.Title, req.Title)
	set("brand", &item.Brand, req.Brand)
	set("model", &item.Model, req.Model)
	set("condition_notes", &item.ConditionNotes, req.ConditionNotes)
	set("description", &item.Description, req.Description)
	if req.Tags != nil {
		item.Tags = req.Tags
		changed = append(changed, "tags")
	}
	if req.ListPrice != nil {
		item.ListPrice = req.ListPrice
		changed = append(changed, "list_price")
	}
	if len(changed) == 0 {
		return item, nil
	}

	columns := append([]string(nil), changed...)
	if contains(changed, "condition") || contains(changed, "category") {
		rec := recordFromItem(item)
		analysis.Reprice(&rec)
		item.SuggestedPrice = rec.SuggestedPrice
		item.Uplift = rec.Uplift
		columns = append(columns, "suggested_price", "uplift")
	}

	if err := s.saveEdit(ctx, item, columns, changed); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// saveEdit writes only the edited columns, and only while no run holds the
// item. item may have been read before a run claimed it.
func (s *ItemService) saveEdit(ctx context.Context, item *models.Item, columns, changed []string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Item{}).
			Where("id = ? AND status <> ?", item.ID, models.StatusAnalyzing).
			Select(columns).
			Updates(item)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&models.Item{}).Where("id = ?", item.ID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("%w: %d", ErrItemNotFound, item.ID)
			}
			return fmt.Errorf("%w: item %d", ErrAnalysisInProgress, item.ID)
		}
		return tx.Create(&models.ItemEvent{
			ItemID:    item.ID,
			EventType: models.EventUserEdit,
			Details:   "Edited: " + strings.Join(changed, ", "),
		}).Error
	})
}

func (s *ItemService) Delete(ctx context.Context, id uint) error {
	res := s.DB.WithContext(ctx).Delete(&models.Item{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", ErrItemNotFound, id)
	}
	return nil
}

// BeginAnalysis claims the item for one run. Only one run per item may be in flight.
func (s *ItemService) BeginAnalysis(ctx context.Context, id uint, runID string) (*models.Item, error) {
	res := s.DB.WithContext(ctx).Model(&models.Item{}).
		Where("id = ? AND status <> ?", id, models.StatusAnalyzing).
		Updates(map[string]interface{}{
			"status":      models.StatusAnalyzing,
			"last_run_id": runID,
			"last_error":  "",
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: item %d", ErrAnalysisInProgress, id)
	}

	s.logEvent(ctx, id, models.EventAnalysisStarted, "Run "+runID)
	return s.Get(ctx, id)
}

// FinishAnalysis records the outcome of a run that BeginAnalysis claimed.
// Runs that were swept in the meantime are left alone.
func (s *ItemService) FinishAnalysis(ctx context.Context, id uint, runID string, runErr error) error {
	status, eventType, details := models.StatusAnalyzed, models.EventAnalysisCompleted, "Run "+runID
	lastError := ""
	if runErr != nil {
		status, eventType = models.StatusFailed, models.EventAnalysisFailed
		lastError = runErr.Error()
		details = fmt.Sprintf("Run %s failed: %s", runID, lastError)
	}

	res := s.DB.WithContext(ctx).Model(&models.Item{}).
		Where("id = ? AND status = ? AND last_run_id = ?", id, models.StatusAnalyzing, runID).
		Updates(map[string]interface{}{"status": status, "last_error": lastError})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRunSuperseded
	}
	s.logEvent(ctx, id, eventType, details)
	return nil
}

// MarkStale fails every item that has been ANALYZING since before cutoff.
func (s *ItemService) MarkStale(ctx context.Context, cutoff time.Time) ([]uint, error) {
	var stale []models.Item
	err := s.DB.WithContext(ctx).
		Select("id", "last_run_id").
		Where("status = ? AND updated_at < ?", models.StatusAnalyzing, cutoff).
		Find(&stale).Error
	if err != nil {
		return nil, err
	}

	var ids []uint
	for _, it := range stale {
		err := s.FinishAnalysis(ctx, it.ID, it.LastRunID, errors.New("analysis timed out"))
		if errors.Is(err, ErrRunSuperseded) {
			continue
		}
		if err != nil {
			return ids, err
		}
		s.logEvent(ctx, it.ID, models.EventAnalysisStale, "Marked failed by sweeper")
		ids = append(ids, it.ID)
	}
	return ids, nil
}

// LoadRecord implements analysis.Store.
func (s *ItemService) LoadRecord(ctx context.Context, itemID uint) (analysis.Record, error) {
	var item models.Item
	err := s.DB.WithContext(ctx).First(&item, itemID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return analysis.Record{}, fmt.Errorf("%w: %d", ErrItemNotFound, itemID)
	}
	if err != nil {
		return analysis.Record{}, err
	}
	return recordFromItem(&item), nil
}

// SaveRecord implements analysis.Store. The write only lands while runID
// still holds the item's ANALYZING claim.
func (s *ItemService) SaveRecord(ctx context.Context, itemID uint, runID string, rec analysis.Record) error {
	var item models.Item
	applyRecord(&item, rec)

	res := s.DB.WithContext(ctx).Model(&models.Item{}).
		Where("id = ? AND status = ? AND last_run_id = ?", itemID, models.StatusAnalyzing, runID).
		Select(recordColumns).
		Updates(&item)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRunSuperseded
	}
	return nil
}

// PlatformPayload renders the item for one marketplace's posting form.
func (s *ItemService) PlatformPayload(ctx context.Context, id uint, platform string) (platforms.Payload, error) {
	p, err := platforms.Parse(platform)
	if err != nil {
		return platforms.Payload{}, err
	}
	item, err := s.Get(ctx, id)
	if err != nil {
		return platforms.Payload{}, err
	}
	return platforms.Build(p, ListingFromItem(item))
}

// ListingFromItem is the platform-neutral view of an item.
func ListingFromItem(item *models.Item) platforms.Listing {
	return platforms.Listing{
		Title:          item.Title,
		Description:    item.Description,
		Brand:          item.Brand,
		Model:          item.Model,
		Category:       item.Category,
		Condition:      item.Condition,
		ConditionNotes: item.ConditionNotes,
		Price:          item.EffectivePrice(),
		Tags:           item.Tags,
	}
}

// logEvent appends to the item timeline. The status change it describes has
// already been written, so a failure here is logged rather than returned.
func (s *ItemService) logEvent(ctx context.Context, itemID uint, eventType, details string) {
	err := s.DB.WithContext(ctx).Create(&models.ItemEvent{ItemID: itemID, EventType: eventType, Details: details}).Error
	if err != nil {
		s.log.Error("could not record item event",
			zap.Uint("item_id", itemID), zap.String("event_type", eventType), zap.Error(err))
	}
}

var recordColumns = []string{
	"title", "brand", "model", "category", "condition", "condition_notes", "description", "tags",
	"price_new", "price_used_high", "price_used_mid", "price_used_low", "price_parts",
	"facets", "special", "uplift", "suggested_price",
}

func recordFromItem(i *models.Item) analysis.Record {
	return analysis.Record{
		Title:           i.Title,
		Brand:           i.Brand,
		Model:           i.Model,
		Category:        i.Category,
		Condition:       i.Condition,
		ConditionNotes:  i.ConditionNotes,
		Description:     i.Description,
		Tags:            i.Tags,
		ReferencePrices: i.ReferencePrices(),
		Facets:          i.Facets,
		Special:         i.Special,
		SuggestedPrice:  i.SuggestedPrice,
		Uplift:          i.Uplift,
	}
}

func applyRecord(i *models.Item, r analysis.Record) {
	i.Title = r.Title
	i.Brand = r.Brand
	i.Model = r.Model
	i.Category = r.Category
	i.Condition = r.Condition
	i.ConditionNotes = r.ConditionNotes
	i.Description = r.Description
	i.Tags = r.Tags
	i.SetReferencePrices(r.ReferencePrices)
	i.Facets = r.Facets
	i.Special = r.Special
	i.SuggestedPrice = r.SuggestedPrice
	i.Uplift = r.Uplift
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
