package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/artcityconsulting/propwatch/internal/config"
	"github.com/artcityconsulting/propwatch/internal/model"
	"github.com/artcityconsulting/propwatch/internal/pipeline"
	"github.com/artcityconsulting/propwatch/internal/resolver"
	"github.com/artcityconsulting/propwatch/internal/store"

	"github.com/gin-gonic/gin"
)

type mockListingStore struct {
	getFunc      func(ctx context.Context, id uint) (*model.Listing, error)
	listFunc     func(ctx context.Context) ([]model.Listing, error)
	hasInputFunc func(ctx context.Context, input string) (bool, error)
	settings     map[string]string
	setCalls     int
}

func (m *mockListingStore) GetListing(ctx context.Context, id uint) (*model.Listing, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockListingStore) ListListings(ctx context.Context) ([]model.Listing, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return nil, nil
}

func (m *mockListingStore) SaveListing(ctx context.Context, l *model.Listing) error { return nil }
func (m *mockListingStore) DeleteListing(ctx context.Context, id uint) error        { return nil }
func (m *mockListingStore) DeleteListings(ctx context.Context, ids []uint) error    { return nil }
func (m *mockListingStore) DeleteAllListings(ctx context.Context) error             { return nil }

func (m *mockListingStore) CountListings(ctx context.Context) (int64, error) { return 0, nil }

func (m *mockListingStore) CountByStatus(ctx context.Context, statusValue string) (int64, error) {
	return 0, nil
}

func (m *mockListingStore) HasInput(ctx context.Context, inputText string) (bool, error) {
	if m.hasInputFunc != nil {
		return m.hasInputFunc(ctx, inputText)
	}
	return false, nil
}

func (m *mockListingStore) ListStatusChanges(ctx context.Context, listingID uint) ([]model.StatusChange, error) {
	return nil, nil
}

func (m *mockListingStore) GetSetting(ctx context.Context, key, def string) (string, error) {
	if v, ok := m.settings[key]; ok {
		return v, nil
	}
	return def, nil
}

func (m *mockListingStore) SetSetting(ctx context.Context, key, value string) error {
	m.setCalls++
	if m.settings == nil {
		m.settings = map[string]string{}
	}
	m.settings[key] = value
	return nil
}

func (m *mockListingStore) LastRefresh(ctx context.Context) time.Time { return time.Time{} }

type mockTracker struct {
	addFunc    func(ctx context.Context, input string) (*model.Listing, error)
	addCalls   int
	refreshAll func(ctx context.Context, progress pipeline.ProgressFunc) (pipeline.BatchResult, error)
}

func (m *mockTracker) Add(ctx context.Context, inputText string) (*model.Listing, error) {
	m.addCalls++
	return m.addFunc(ctx, inputText)
}

func (m *mockTracker) Refresh(ctx context.Context, id uint) (pipeline.Outcome, error) {
	return pipeline.Outcome{}, nil
}

func (m *mockTracker) RefreshAll(ctx context.Context, progress pipeline.ProgressFunc) (pipeline.BatchResult, error) {
	if m.refreshAll != nil {
		return m.refreshAll(ctx, progress)
	}
	return pipeline.BatchResult{}, nil
}

type mockDeduper struct {
	dupFunc     func(ctx context.Context, input string) (bool, error)
	deleteCalls int
	calls       int
}

func (m *mockDeduper) IsDuplicate(ctx context.Context, input string) (bool, error) {
	m.calls++
	if m.dupFunc != nil {
		return m.dupFunc(ctx, input)
	}
	return false, nil
}

func (m *mockDeduper) Delete(ctx context.Context, input string) error {
	m.deleteCalls++
	return nil
}

type mockCRM struct {
	enabled  bool
	syncFunc func(ctx context.Context, l *model.Listing) (string, error)
}

func (m *mockCRM) Enabled() bool { return m.enabled }

func (m *mockCRM) Sync(ctx context.Context, l *model.Listing) (string, error) {
	return m.syncFunc(ctx, l)
}

func newTestServer(listings ListingStore, tracker Tracker, deduper Deduper) *Server {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	s := &Server{
		cfg:      &config.Config{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		router:   r,
		listings: listings,
		tracker:  tracker,
		crm:      &mockCRM{},
		deduper:  deduper,
	}
	s.registerRoutes()
	return s
}

func postJSON(t *testing.T, s *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestCreateListing_Normal(t *testing.T) {
	tracker := &mockTracker{
		addFunc: func(ctx context.Context, input string) (*model.Listing, error) {
			return &model.Listing{ID: 1, InputText: input, Status: "For Sale"}, nil
		},
	}
	deduper := &mockDeduper{}
	s := newTestServer(&mockListingStore{}, tracker, deduper)

	w := postJSON(t, s, "/listings", gin.H{"input": "2053078"})

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if tracker.addCalls != 1 {
		t.Fatalf("expected add to be called once, got %d", tracker.addCalls)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "For Sale" {
		t.Fatalf("expected status For Sale, got %v", resp["status"])
	}
}

func TestCreateListing_Deduplicated(t *testing.T) {
	tracker := &mockTracker{
		addFunc: func(ctx context.Context, input string) (*model.Listing, error) {
			t.Fatal("add should not be called for a duplicate")
			return nil, nil
		},
	}
	deduper := &mockDeduper{
		dupFunc: func(ctx context.Context, input string) (bool, error) { return true, nil },
	}
	s := newTestServer(&mockListingStore{}, tracker, deduper)

	w := postJSON(t, s, "/listings", gin.H{"input": "2053078"})

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	if deduper.calls != 1 {
		t.Fatalf("expected dedup check to be called once, got %d", deduper.calls)
	}
}

func TestCreateListing_AlreadyTracked(t *testing.T) {
	listings := &mockListingStore{
		hasInputFunc: func(ctx context.Context, input string) (bool, error) { return true, nil },
	}
	tracker := &mockTracker{
		addFunc: func(ctx context.Context, input string) (*model.Listing, error) {
			t.Fatal("add should not be called for a tracked input")
			return nil, nil
		},
	}
	s := newTestServer(listings, tracker, nil)

	w := postJSON(t, s, "/listings", gin.H{"input": "2053078"})

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestCreateListing_InvalidInput(t *testing.T) {
	tracker := &mockTracker{
		addFunc: func(ctx context.Context, input string) (*model.Listing, error) {
			return nil, &pipeline.Error{Kind: pipeline.KindInput, Input: input, Err: resolver.ErrInvalidInput}
		},
	}
	deduper := &mockDeduper{}
	s := newTestServer(&mockListingStore{}, tracker, deduper)

	w := postJSON(t, s, "/listings", gin.H{"input": "not-a-listing"})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if deduper.deleteCalls != 1 {
		t.Fatalf("expected dedup mark to be released, delete calls = %d", deduper.deleteCalls)
	}
}

func TestGetListing_NotFound(t *testing.T) {
	s := newTestServer(&mockListingStore{}, &mockTracker{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/listings/42", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestImport_TextMode(t *testing.T) {
	listings := &mockListingStore{
		hasInputFunc: func(ctx context.Context, input string) (bool, error) {
			return input == "2053078", nil
		},
	}
	tracker := &mockTracker{
		addFunc: func(ctx context.Context, input string) (*model.Listing, error) {
			return &model.Listing{ID: 1, InputText: input}, nil
		},
	}
	s := newTestServer(listings, tracker, nil)

	w := postJSON(t, s, "/import", gin.H{"text": "2053078\n1234567\nhttps://www.zillow.com/homedetails/1_zpid/"})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Added   int `json:"added"`
		Skipped int `json:"skipped"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Added != 2 || resp.Skipped != 1 {
		t.Fatalf("expected added=2 skipped=1, got added=%d skipped=%d", resp.Added, resp.Skipped)
	}
	if tracker.addCalls != 2 {
		t.Fatalf("expected 2 add calls, got %d", tracker.addCalls)
	}
}

func TestImport_PartialFailure(t *testing.T) {
	tracker := &mockTracker{
		addFunc: func(ctx context.Context, input string) (*model.Listing, error) {
			if input == "bad-input" {
				return nil, &pipeline.Error{Kind: pipeline.KindInput, Input: input, Err: resolver.ErrInvalidInput}
			}
			return &model.Listing{ID: 1, InputText: input}, nil
		},
	}
	s := newTestServer(&mockListingStore{}, tracker, nil)

	w := postJSON(t, s, "/import", gin.H{"text": "2053078\nbad-input\n2053079"})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Added  int             `json:"added"`
		Failed []importFailure `json:"failed"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Added != 2 {
		t.Fatalf("expected added=2, got %d", resp.Added)
	}
	if len(resp.Failed) != 1 || resp.Failed[0].Input != "bad-input" {
		t.Fatalf("expected one failure for bad-input, got %+v", resp.Failed)
	}
}

func TestRefreshAll_ReportsErrors(t *testing.T) {
	tracker := &mockTracker{
		refreshAll: func(ctx context.Context, progress pipeline.ProgressFunc) (pipeline.BatchResult, error) {
			return pipeline.BatchResult{
				Total:   2,
				Changed: 1,
				Errors: []pipeline.ItemError{
					{ListingID: 7, InputText: "2053078", Err: context.DeadlineExceeded},
				},
			}, nil
		},
	}
	s := newTestServer(&mockListingStore{}, tracker, nil)

	w := postJSON(t, s, "/refresh", gin.H{})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Total   int                  `json:"total"`
		Changed int                  `json:"changed"`
		Errors  []batchErrorResponse `json:"errors"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 2 || resp.Changed != 1 || len(resp.Errors) != 1 {
		t.Fatalf("unexpected batch summary: %+v", resp)
	}
	if resp.Errors[0].ListingID != 7 {
		t.Fatalf("expected listing id 7 in error, got %d", resp.Errors[0].ListingID)
	}
}

func TestUpdateSettings_Validation(t *testing.T) {
	listings := &mockListingStore{}
	s := newTestServer(listings, &mockTracker{}, nil)

	days := 0
	req := httptest.NewRequest(http.MethodPut, "/settings", bytes.NewReader(mustJSON(t, updateSettingsRequest{RefreshIntervalDays: &days})))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero interval, got %d", w.Code)
	}
	if listings.setCalls != 0 {
		t.Fatalf("expected no settings written, got %d", listings.setCalls)
	}
}

func TestUpdateSettings_Persist(t *testing.T) {
	listings := &mockListingStore{}
	s := newTestServer(listings, &mockTracker{}, nil)

	enabled := false
	days := 3
	req := httptest.NewRequest(http.MethodPut, "/settings", bytes.NewReader(mustJSON(t, updateSettingsRequest{
		AutoRefreshEnabled:  &enabled,
		RefreshIntervalDays: &days,
	})))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if listings.settings[store.SettingAutoRefreshEnabled] != "false" {
		t.Fatalf("auto refresh setting not persisted: %v", listings.settings)
	}
	if listings.settings[store.SettingRefreshIntervalDays] != "3" {
		t.Fatalf("interval setting not persisted: %v", listings.settings)
	}
}

func TestSyncListing_NotConfigured(t *testing.T) {
	s := newTestServer(&mockListingStore{}, &mockTracker{}, nil)

	w := postJSON(t, s, "/listings/1/sync", gin.H{})

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestSyncListing_StoresExternalID(t *testing.T) {
	saved := map[uint]string{}
	listings := &mockListingStore{
		getFunc: func(ctx context.Context, id uint) (*model.Listing, error) {
			return &model.Listing{ID: id, InputText: "2053078", Status: "For Sale"}, nil
		},
	}
	s := newTestServer(listings, &mockTracker{}, nil)
	s.crm = &mockCRM{
		enabled: true,
		syncFunc: func(ctx context.Context, l *model.Listing) (string, error) {
			saved[l.ID] = "crm-900"
			return "crm-900", nil
		},
	}

	w := postJSON(t, s, "/listings/5/sync", gin.H{})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if saved[5] != "crm-900" {
		t.Fatalf("expected sync to be called for listing 5")
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["external_id"] != "crm-900" {
		t.Fatalf("expected external id in response, got %v", resp)
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}
