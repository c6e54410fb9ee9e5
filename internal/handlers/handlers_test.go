package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/resale-lister/internal/analysis"
	"github.com/justsurfingit/resale-lister/internal/database/dbtest"
	"github.com/justsurfingit/resale-lister/internal/llm"
	"github.com/justsurfingit/resale-lister/internal/models"
	"github.com/justsurfingit/resale-lister/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const watchReply = `{"title":"Seiko 5 Automatic SNK809","brand":"Seiko","category":"watches",
"condition":"Good","condition_notes":"Small scratch on the crystal.","description":"Field watch on canvas strap.",
"tags":["seiko","automatic"],"reference_prices":{"new":150,"used_mid":90},"special":false}`

type stubClient struct {
	reply  string
	photos int
}

func (c *stubClient) Provider() string { return "stub" }

func (c *stubClient) StreamAnalysis(_ context.Context, req llm.Request) (analysis.TokenStream, error) {
	c.photos = len(req.Photos)
	return &stubStream{rest: c.reply}, nil
}

type stubStream struct{ rest string }

func (s *stubStream) Next(context.Context) (string, error) {
	if s.rest == "" {
		return "", io.EOF
	}
	n := min(len(s.rest), 9)
	tok := s.rest[:n]
	s.rest = s.rest[n:]
	return tok, nil
}

func (s *stubStream) Close() error { return nil }

type testServer struct {
	router *gin.Engine
	items  *services.ItemService
	client *stubClient
}

func newTestServer(t *testing.T, cfg RouterConfig) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	client := &stubClient{reply: watchReply}
	items := services.NewItemService(dbtest.Open(t), services.NewMatcherService(), zap.NewNop())
	analyzer := services.NewAnalysisService(items, client, 4, zap.NewNop())
	h := NewItemHandler(items, analyzer, 1<<20)
	return &testServer{router: NewRouter(h, cfg, zap.NewNop()), items: items, client: client}
}

func (s *testServer) do(method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) createItem(t *testing.T, input string) models.Item {
	t.Helper()
	w := s.do(http.MethodPost, "/api/v1/items", strings.NewReader(fmt.Sprintf(`{"input":%q}`, input)), "application/json")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var item models.Item
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &item))
	return item
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t, RouterConfig{})
	w := s.do(http.MethodGet, "/api/v1/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestItemCRUD(t *testing.T) {
	s := newTestServer(t, RouterConfig{})

	w := s.do(http.MethodPost, "/api/v1/items", strings.NewReader(`{}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	item := s.createItem(t, "old casio calculator watch")
	assert.Equal(t, "watches", item.Category)

	w = s.do(http.MethodPatch, fmt.Sprintf("/api/v1/items/%d", item.ID), strings.NewReader(`{"title":"Casio F-91W"}`), "application/json")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Casio F-91W")

	w = s.do(http.MethodPatch, fmt.Sprintf("/api/v1/items/%d", item.ID), strings.NewReader(`{"condition":"pristine-ish"}`), "application/json")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(http.MethodGet, "/api/v1/items", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Casio F-91W")

	w = s.do(http.MethodDelete, fmt.Sprintf("/api/v1/items/%d", item.ID), nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(http.MethodGet, fmt.Sprintf("/api/v1/items/%d", item.ID), nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "error")

	w = s.do(http.MethodGet, "/api/v1/items/abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyze_StreamsEvents(t *testing.T) {
	s := newTestServer(t, RouterConfig{})
	item := s.createItem(t, "seiko automatic on a canvas strap")

	w := s.do(http.MethodPost, fmt.Sprintf("/api/v1/items/%d/analyze", item.ID), strings.NewReader(`{"notes":"runs 5s fast"}`), "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, "event:processing")
	assert.Contains(t, body, "event:completed")
	assert.NotContains(t, body, "event:error")
	assert.Less(t, strings.Index(body, "event:processing"), strings.Index(body, "event:completed"))

	stored, err := s.items.Get(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAnalyzed, stored.Status)
	assert.Equal(t, "Seiko 5 Automatic SNK809", stored.Title)
	require.NotNil(t, stored.SuggestedPrice)
	assert.Equal(t, 90.0, *stored.SuggestedPrice)
}

func TestAnalyze_Errors(t *testing.T) {
	s := newTestServer(t, RouterConfig{})

	w := s.do(http.MethodPost, "/api/v1/items/999/analyze", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

	item := s.createItem(t, "seiko automatic")
	_, err := s.items.BeginAnalysis(context.Background(), item.ID, "other-run")
	require.NoError(t, err)

	w = s.do(http.MethodPost, fmt.Sprintf("/api/v1/items/%d/analyze", item.ID), nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPatch, fmt.Sprintf("/api/v1/items/%d", item.ID), strings.NewReader(`{"title":"x"}`), "application/json")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func multipartBody(t *testing.T, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("description", "seiko automatic"))
	for name, data := range files {
		fw, err := mw.CreateFormFile("photos", name)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func TestAnalyze_PhotoUpload(t *testing.T) {
	s := newTestServer(t, RouterConfig{})
	item := s.createItem(t, "seiko automatic")

	body, ct := multipartBody(t, map[string][]byte{"front.png": pngHeader})
	w := s.do(http.MethodPost, fmt.Sprintf("/api/v1/items/%d/analyze", item.ID), body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "event:completed")
	assert.Equal(t, 1, s.client.photos)

	body, ct = multipartBody(t, map[string][]byte{"notes.txt": []byte("definitely not a picture")})
	w = s.do(http.MethodPost, fmt.Sprintf("/api/v1/items/%d/analyze", item.ID), body, ct)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestAnalyze_RateLimited(t *testing.T) {
	s := newTestServer(t, RouterConfig{AnalyzePerMinute: 1})
	item := s.createItem(t, "seiko automatic")
	path := fmt.Sprintf("/api/v1/items/%d/analyze", item.ID)

	assert.Equal(t, http.StatusOK, s.do(http.MethodPost, path, nil, "").Code)
	assert.Equal(t, http.StatusTooManyRequests, s.do(http.MethodPost, path, nil, "").Code)
}

func TestPlatformPayloads(t *testing.T) {
	s := newTestServer(t, RouterConfig{})
	item := s.createItem(t, "seiko automatic")
	w := s.do(http.MethodPost, fmt.Sprintf("/api/v1/items/%d/analyze", item.ID), nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, fmt.Sprintf("/api/v1/items/%d/platforms/ebay", item.ID), nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var payload struct {
		Platform string            `json:"platform"`
		Fields   map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, "ebay", payload.Platform)
	assert.Equal(t, "90.00", payload.Fields["price"])
	assert.Equal(t, "3000", payload.Fields["condition_id"])

	w = s.do(http.MethodGet, fmt.Sprintf("/api/v1/items/%d/platforms/etsy", item.ID), nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, fmt.Sprintf("/api/v1/items/%d/platforms", item.ID), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var all struct {
		Platforms []json.RawMessage `json:"platforms"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Len(t, all.Platforms, 5)
}

func TestLadderEndpoint(t *testing.T) {
	s := newTestServer(t, RouterConfig{})

	w := s.do(http.MethodPost, "/api/v1/pricing/ladder",
		strings.NewReader(`{"reference_prices":{"new":100},"condition":"poor"}`), "application/json")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out struct {
		Condition string  `json:"condition"`
		Price     float64 `json:"price"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "Poor", out.Condition)
	assert.Equal(t, 37.5, out.Price)

	w = s.do(http.MethodPost, "/api/v1/pricing/ladder", strings.NewReader(`{"condition":"good"}`), "application/json")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(http.MethodPost, "/api/v1/pricing/ladder",
		strings.NewReader(`{"reference_prices":{"new":100},"condition":"shiny"}`), "application/json")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	l := NewRateLimiter(4)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "clients have separate buckets")

	now = now.Add(20 * time.Second)
	assert.True(t, l.Allow("a"))

	now = now.Add(11 * time.Minute)
	assert.True(t, l.Allow("c"))
	assert.Len(t, l.clients, 1, "idle clients are evicted")
}
