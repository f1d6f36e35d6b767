package presets

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"storecanvas/core"
	catalog "storecanvas/presets"
)

type mockCatalog struct {
	store    core.StoreID
	category core.PresetCategory
}

func (m *mockCatalog) List(store core.StoreID, category core.PresetCategory) []core.SizePreset {
	m.store = store
	m.category = category
	return []core.SizePreset{}
}

func TestHandleList_PassesFilters(t *testing.T) {
	mock := &mockCatalog{}
	req := httptest.NewRequest(http.MethodGet, "/size-presets?store=google_play&category=icon", nil)
	rec := httptest.NewRecorder()

	HandleList(mock)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status code mismatch: got %d, want %d", rec.Code, http.StatusOK)
	}
	if mock.store != core.StoreGooglePlay || mock.category != core.CategoryIcon {
		t.Errorf("List() called with (%q, %q)", mock.store, mock.category)
	}
}

func TestHandleList_BuiltinCatalog(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/size-presets?store=apple_app_store", nil)
	rec := httptest.NewRecorder()

	HandleList(catalog.NewCatalog())(rec, req)

	var got []core.SizePreset
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("Expected apple presets")
	}
	for _, p := range got {
		if p.Store != core.StoreAppleAppStore {
			t.Errorf("Preset %s has store %s", p.Code, p.Store)
		}
	}
}

func TestHandleList_NoMatches(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/size-presets?store=nowhere", nil)
	rec := httptest.NewRecorder()

	HandleList(catalog.NewCatalog())(rec, req)

	if body := rec.Body.String(); body != "[]\n" {
		t.Errorf("Body = %q, want empty array", body)
	}
}
