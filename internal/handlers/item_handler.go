package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/resale-lister/internal/analysis"
	"github.com/justsurfingit/resale-lister/internal/dtos"
	"github.com/justsurfingit/resale-lister/internal/llm"
	"github.com/justsurfingit/resale-lister/internal/platforms"
	"github.com/justsurfingit/resale-lister/internal/pricing"
	"github.com/justsurfingit/resale-lister/internal/services"
)

// ItemHandler serves the item, analysis and platform endpoints.
type ItemHandler struct {
	ItemService     *services.ItemService
	AnalysisService *services.AnalysisService
	MaxUploadBytes  int64
}

func NewItemHandler(items *services.ItemService, analyzer *services.AnalysisService, maxUploadBytes int64) *ItemHandler {
	return &ItemHandler{
		ItemService:     items,
		AnalysisService: analyzer,
		MaxUploadBytes:  maxUploadBytes,
	}
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CreateItem is the POST /items endpoint
func (h *ItemHandler) CreateItem(c *gin.Context) {
	var req dtos.ItemCreationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format: " + err.Error()})
		return
	}
	item, err := h.ItemService.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "Failed to create item")
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *ItemHandler) ListItems(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	items, err := h.ItemService.List(c.Request.Context(), c.Query("status"), limit, offset)
	if err != nil {
		respondError(c, err, "Failed to list items")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *ItemHandler) GetItem(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}
	item, err := h.ItemService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to load item")
		return
	}
	c.JSON(http.StatusOK, item)
}

// UpdateItem is the PATCH /items/:id endpoint for user edits of the listing
func (h *ItemHandler) UpdateItem(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}
	var req dtos.ItemUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format: " + err.Error()})
		return
	}
	item, err := h.ItemService.Update(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err, "Failed to update item")
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *ItemHandler) DeleteItem(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}
	if err := h.ItemService.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err, "Failed to delete item")
		return
	}
	c.Status(http.StatusNoContent)
}

// Analyze is the POST /items/:id/analyze endpoint. It accepts JSON or a
// multipart form with "photos" parts and answers as an event stream:
// processing events, then one completed or error event. Failures before
// the run starts (unknown item, run in flight) are plain JSON errors.
func (h *ItemHandler) Analyze(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}
	if h.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)
	}
	req, err := h.bindAnalyzeRequest(c)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errUnsupportedMedia) {
			status = http.StatusUnsupportedMediaType
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	streaming := false
	emit := func(e analysis.Event) {
		if !streaming {
			c.Header("Cache-Control", "no-cache")
			c.Header("Connection", "keep-alive")
			c.Header("X-Accel-Buffering", "no")
			c.Status(http.StatusOK)
			streaming = true
		}
		c.SSEvent(string(e.Type), e)
		c.Writer.Flush()
	}

	_, err = h.AnalysisService.Analyze(c.Request.Context(), id, req, emit)
	if err != nil && !streaming {
		respondError(c, err, "Analysis failed")
	}
}

var errUnsupportedMedia = errors.New("unsupported photo type")

func (h *ItemHandler) bindAnalyzeRequest(c *gin.Context) (llm.Request, error) {
	var body dtos.AnalyzeRequest
	var req llm.Request

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBind(&body); err != nil {
			return req, fmt.Errorf("invalid form: %w", err)
		}
		form, err := c.MultipartForm()
		if err != nil {
			return req, fmt.Errorf("invalid form: %w", err)
		}
		files := form.File["photos"]
		if len(files) > llm.MaxPhotos {
			return req, fmt.Errorf("at most %d photos allowed", llm.MaxPhotos)
		}
		for _, fh := range files {
			photo, err := readPhoto(fh)
			if err != nil {
				return req, err
			}
			req.Photos = append(req.Photos, photo)
		}
	} else if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			return req, fmt.Errorf("Invalid JSON format: %w", err)
		}
	}

	req.Description = strings.TrimSpace(body.Description)
	req.Notes = strings.TrimSpace(body.Notes)
	return req, nil
}

func readPhoto(fh *multipart.FileHeader) (llm.Photo, error) {
	f, err := fh.Open()
	if err != nil {
		return llm.Photo{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return llm.Photo{}, err
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return llm.Photo{}, fmt.Errorf("%w: %s is %s", errUnsupportedMedia, fh.Filename, mt.String())
	}
	return llm.Photo{MimeType: mt.String(), Data: data}, nil
}

// PlatformPayload is the GET /items/:id/platforms/:platform endpoint the
// browser extension reads before filling a posting form.
func (h *ItemHandler) PlatformPayload(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}
	payload, err := h.ItemService.PlatformPayload(c.Request.Context(), id, c.Param("platform"))
	if err != nil {
		respondError(c, err, "Failed to build platform payload")
		return
	}
	c.JSON(http.StatusOK, payload)
}

// Platforms lists every payload for the item at once.
func (h *ItemHandler) Platforms(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}
	item, err := h.ItemService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to load item")
		return
	}
	listing := services.ListingFromItem(item)
	out := make([]platforms.Payload, 0)
	for _, p := range platforms.All() {
		payload, err := platforms.Build(p, listing)
		if err != nil {
			respondError(c, err, "Failed to build platform payload")
			return
		}
		out = append(out, payload)
	}
	c.JSON(http.StatusOK, gin.H{"platforms": out})
}

func itemID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item id"})
		return 0, false
	}
	return uint(id), true
}

func respondError(c *gin.Context, err error, msg string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrItemNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrAnalysisInProgress):
		status = http.StatusConflict
	case errors.Is(err, platforms.ErrUnknownPlatform):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrInvalidEdit),
		errors.Is(err, platforms.ErrIncompleteListing),
		errors.Is(err, llm.ErrNoInput),
		errors.Is(err, pricing.ErrNoReferencePrices),
		errors.Is(err, pricing.ErrInvalidPrice),
		errors.Is(err, pricing.ErrUnknownCondition):
		status = http.StatusUnprocessableEntity
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": msg + ": " + err.Error()})
}
