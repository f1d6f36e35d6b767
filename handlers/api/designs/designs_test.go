package designs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"storecanvas/core"
	"storecanvas/export"
	"storecanvas/middleware"
	canvas "storecanvas/render"
	"storecanvas/service"
)

// Mock design service for testing. Only design "design-1" owned by
// "user-1" exists.
type mockDesignService struct {
	err         error
	prompt      string
	brief       string
	base64Image string
	codes       []string
	format      core.Format
}

func (m *mockDesignService) design(userID, id string) (*core.Design, error) {
	if m.err != nil {
		return nil, m.err
	}
	if userID != "user-1" || id != "design-1" {
		return nil, fmt.Errorf("design %s: %w", id, core.ErrNotFound)
	}
	return &core.Design{
		ID:         "design-1",
		ProjectID:  "project-1",
		Name:       "Hero",
		Type:       core.DesignPhoneScreenshot,
		BaseWidth:  1080,
		BaseHeight: 2160,
		Layers:     []core.Layer{},
		Status:     core.StatusDraft,
	}, nil
}

func (m *mockDesignService) CreateDesign(ctx context.Context, userID, projectID string, in service.DesignInput) (*core.Design, error) {
	if m.err != nil {
		return nil, m.err
	}
	if in.Name == nil {
		return nil, fmt.Errorf("%w: name is required", core.ErrInvalidDesign)
	}
	d, _ := m.design("user-1", "design-1")
	d.ProjectID = projectID
	d.Name = *in.Name
	if in.Layers != nil {
		d.Layers = *in.Layers
	}
	return d, nil
}

func (m *mockDesignService) ListDesigns(ctx context.Context, userID, projectID string) ([]*core.Design, error) {
	if m.err != nil {
		return nil, m.err
	}
	return nil, nil
}

func (m *mockDesignService) GetDesign(ctx context.Context, userID, id string) (*core.Design, error) {
	return m.design(userID, id)
}

func (m *mockDesignService) UpdateDesign(ctx context.Context, userID, id string, in service.DesignInput) (*core.Design, error) {
	d, err := m.design(userID, id)
	if err != nil {
		return nil, err
	}
	if in.Status != nil {
		d.Status = *in.Status
	}
	return d, nil
}

func (m *mockDesignService) DeleteDesign(ctx context.Context, userID, id string) error {
	_, err := m.design(userID, id)
	return err
}

func (m *mockDesignService) GenerateBackground(ctx context.Context, userID, id, prompt string) (*core.Design, error) {
	m.prompt = prompt
	return m.design(userID, id)
}

func (m *mockDesignService) ApplyImg2Img(ctx context.Context, userID, id, prompt, base64Image string) (*core.Design, error) {
	m.prompt = prompt
	m.base64Image = base64Image
	return m.design(userID, id)
}

func (m *mockDesignService) SuggestCopy(ctx context.Context, userID, id, brief string) ([]string, error) {
	m.brief = brief
	if _, err := m.design(userID, id); err != nil {
		return nil, err
	}
	return []string{"Ship faster", "Look sharper"}, nil
}

func (m *mockDesignService) Export(ctx context.Context, userID, id string, codes []string, format core.Format) (*export.Batch, error) {
	m.codes = codes
	m.format = format
	if _, err := m.design(userID, id); err != nil {
		return nil, err
	}
	exp := &core.Export{ID: "export-1", DesignID: id, SizePresetID: "google-play-icon", Format: core.FormatPNG, Width: 512, Height: 512, OutputURL: "http://files/export-1.png"}
	return &export.Batch{
		Results: []export.Result{
			{PresetCode: "google_play_icon", Export: exp},
			{PresetCode: "apple_iphone_6_7_portrait", Reason: "base_too_small", Message: "too small", Err: core.ErrBaseTooSmall},
		},
		LayerErrors: []*canvas.LayerError{{LayerID: "layer-1", Type: core.LayerImage, Err: errors.New("fetch failed")}},
	}, nil
}

func (m *mockDesignService) ListExports(ctx context.Context, userID, id string) ([]*core.Export, error) {
	if _, err := m.design(userID, id); err != nil {
		return nil, err
	}
	return nil, nil
}

func (m *mockDesignService) Preview(ctx context.Context, userID, id string) ([]byte, []*canvas.LayerError, error) {
	if _, err := m.design(userID, id); err != nil {
		return nil, nil, err
	}
	return []byte("\x89PNG"), []*canvas.LayerError{{LayerID: "layer-1", Type: core.LayerText}}, nil
}

func newRouter(svc DesignService) http.Handler {
	r := chi.NewRouter()
	r.Get("/projects/{projectId}/designs", HandleList(svc))
	r.Post("/projects/{projectId}/designs", HandleCreate(svc))
	r.Get("/designs/{id}", HandleGet(svc))
	r.Put("/designs/{id}", HandleUpdate(svc))
	r.Delete("/designs/{id}", HandleDelete(svc))
	r.Post("/designs/{id}/generate-background", HandleGenerateBackground(svc))
	r.Post("/designs/{id}/apply-img2img", HandleApplyImg2Img(svc))
	r.Post("/designs/{id}/suggest-copy", HandleSuggestCopy(svc))
	r.Post("/designs/{id}/export", HandleExport(svc))
	r.Get("/designs/{id}/exports", HandleListExports(svc))
	r.Get("/designs/{id}/preview", HandlePreview(svc))
	return r
}

func serve(h http.Handler, method, path, userID string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if userID != "" {
		req = req.WithContext(middleware.WithUserID(req.Context(), userID))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleCreate_Success(t *testing.T) {
	body := `{"name":"Hero","layers":[{"id":"bg","type":"background","zIndex":0,"data":{"type":"solid","color":"#ffffff"}}]}`
	rec := serve(newRouter(&mockDesignService{}), http.MethodPost, "/projects/project-9/designs", "user-1", strings.NewReader(body))

	if rec.Code != http.StatusCreated {
		t.Fatalf("Status code mismatch: got %d, want %d", rec.Code, http.StatusCreated)
	}
	var d core.Design
	if err := json.NewDecoder(rec.Body).Decode(&d); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if d.ProjectID != "project-9" {
		t.Errorf("ProjectID = %q, want project-9", d.ProjectID)
	}
	if len(d.Layers) != 1 || d.Layers[0].Type != core.LayerBackground {
		t.Fatalf("Layers = %+v", d.Layers)
	}
	bg, ok := d.Layers[0].Data.(*core.BackgroundData)
	if !ok || bg.Color != "#ffffff" {
		t.Errorf("Background data = %#v", d.Layers[0].Data)
	}
}

func TestHandleCreate_Invalid(t *testing.T) {
	rec := serve(newRouter(&mockDesignService{}), http.MethodPost, "/projects/project-1/designs", "user-1", strings.NewReader(`{}`))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("Status code mismatch: got %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
}

func TestHandleList_EmptyIsArray(t *testing.T) {
	rec := serve(newRouter(&mockDesignService{}), http.MethodGet, "/projects/project-1/designs", "user-1", nil)
	if body := rec.Body.String(); body != "[]\n" {
		t.Errorf("Body = %q, want empty array", body)
	}
}

func TestHandlers_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		userID string
		path   string
		want   int
	}{
		{"not owned", nil, "user-2", "/designs/design-1", http.StatusNotFound},
		{"missing", nil, "user-1", "/designs/other", http.StatusNotFound},
		{"unauthenticated", nil, "", "/designs/design-1", http.StatusUnauthorized},
		{"upstream failure", fmt.Errorf("%w: 503", core.ErrNetwork), "user-1", "/designs/design-1", http.StatusBadGateway},
		{"store failure", errors.New("db closed"), "user-1", "/designs/design-1", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(newRouter(&mockDesignService{err: tt.err}), http.MethodGet, tt.path, tt.userID, nil)
			if rec.Code != tt.want {
				t.Errorf("Status code mismatch: got %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestHandleUpdate_Status(t *testing.T) {
	rec := serve(newRouter(&mockDesignService{}), http.MethodPut, "/designs/design-1", "user-1", strings.NewReader(`{"status":"ready"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("Status code mismatch: got %d, want %d", rec.Code, http.StatusOK)
	}
	var d core.Design
	if err := json.NewDecoder(rec.Body).Decode(&d); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if d.Status != core.StatusReady {
		t.Errorf("Status = %q, want ready", d.Status)
	}
}

func TestHandleDelete(t *testing.T) {
	rec := serve(newRouter(&mockDesignService{}), http.MethodDelete, "/designs/design-1", "user-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Status code mismatch: got %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), `"success":true`) {
		t.Errorf("Body = %q", rec.Body.String())
	}
}

func TestHandleAssist_PassesArguments(t *testing.T) {
	svc := &mockDesignService{}
	h := newRouter(svc)

	rec := serve(h, http.MethodPost, "/designs/design-1/generate-background", "user-1", strings.NewReader(`{"prompt":"sunset"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("generate-background status: got %d, want %d", rec.Code, http.StatusOK)
	}
	if svc.prompt != "sunset" {
		t.Errorf("prompt = %q, want sunset", svc.prompt)
	}

	rec = serve(h, http.MethodPost, "/designs/design-1/apply-img2img", "user-1", strings.NewReader(`{"prompt":"neon","base64Image":"aGk="}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("img2img status: got %d, want %d", rec.Code, http.StatusOK)
	}
	if svc.prompt != "neon" || svc.base64Image != "aGk=" {
		t.Errorf("img2img args = (%q, %q)", svc.prompt, svc.base64Image)
	}
}

func TestHandleSuggestCopy(t *testing.T) {
	svc := &mockDesignService{}
	rec := serve(newRouter(svc), http.MethodPost, "/designs/design-1/suggest-copy", "user-1", strings.NewReader(`{"context":"fitness app"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("Status code mismatch: got %d, want %d", rec.Code, http.StatusOK)
	}
	var resp SuggestCopyResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Suggestions) != 2 {
		t.Errorf("Suggestions = %v", resp.Suggestions)
	}
	if svc.brief != "fitness app" {
		t.Errorf("brief = %q, want fitness app", svc.brief)
	}
}

func TestHandleExport_ResponseShape(t *testing.T) {
	svc := &mockDesignService{}
	body := `{"sizePresetCodes":["google_play_icon","apple_iphone_6_7_portrait"],"format":"png"}`
	rec := serve(newRouter(svc), http.MethodPost, "/designs/design-1/export", "user-1", strings.NewReader(body))

	if rec.Code != http.StatusOK {
		t.Fatalf("Status code mismatch: got %d, want %d", rec.Code, http.StatusOK)
	}
	if len(svc.codes) != 2 || svc.format != core.FormatPNG {
		t.Errorf("Export() called with (%v, %q)", svc.codes, svc.format)
	}

	var resp struct {
		Exports []core.Export `json:"exports"`
		Results []struct {
			PresetCode string       `json:"presetCode"`
			Export     *core.Export `json:"export"`
			Reason     string       `json:"reason"`
		} `json:"results"`
		LayerErrors []struct {
			LayerID string `json:"layerId"`
			Message string `json:"message"`
		} `json:"layerErrors"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Exports) != 1 || resp.Exports[0].ID != "export-1" {
		t.Errorf("Exports = %+v", resp.Exports)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("Results = %+v", resp.Results)
	}
	if resp.Results[0].Export == nil || resp.Results[1].Reason != "base_too_small" {
		t.Errorf("Results = %+v", resp.Results)
	}
	if len(resp.LayerErrors) != 1 || resp.LayerErrors[0].LayerID != "layer-1" || resp.LayerErrors[0].Message == "" {
		t.Errorf("LayerErrors = %+v", resp.LayerErrors)
	}
}

func TestHandleExport_MalformedBody(t *testing.T) {
	rec := serve(newRouter(&mockDesignService{}), http.MethodPost, "/designs/design-1/export", "user-1", strings.NewReader(`[`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status code mismatch: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleExport_RequestRejected(t *testing.T) {
	svc := &mockDesignService{err: fmt.Errorf("%w: nope", core.ErrUnknownPreset)}
	rec := serve(newRouter(svc), http.MethodPost, "/designs/design-1/export", "user-1", strings.NewReader(`{"sizePresetCodes":["nope"]}`))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("Status code mismatch: got %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
}

func TestHandleListExports_EmptyIsArray(t *testing.T) {
	rec := serve(newRouter(&mockDesignService{}), http.MethodGet, "/designs/design-1/exports", "user-1", nil)
	if body := rec.Body.String(); body != "[]\n" {
		t.Errorf("Body = %q, want empty array", body)
	}
}

func TestHandlePreview(t *testing.T) {
	rec := serve(newRouter(&mockDesignService{}), http.MethodGet, "/designs/design-1/preview", "user-1", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status code mismatch: got %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
	if n := rec.Header().Get("X-Layer-Errors"); n != "1" {
		t.Errorf("X-Layer-Errors = %q, want 1", n)
	}
	if rec.Body.String() != "\x89PNG" {
		t.Errorf("Body = %q", rec.Body.String())
	}
}
