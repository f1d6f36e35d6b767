package main

import (
	"bytes"
	"encoding/json"
	"image/color"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"storecanvas/core"
	"storecanvas/export"
	"storecanvas/middleware"
	catalog "storecanvas/presets"
	canvas "storecanvas/render"
	"storecanvas/service"
	"storecanvas/storage"
	objectmemory "storecanvas/storage/memory"
	"storecanvas/stores/memory"
)

func testRouter(t *testing.T) (http.Handler, *middleware.Authenticator) {
	t.Helper()
	store := memory.NewStore()
	objects := objectmemory.NewStore()
	fonts, err := canvas.NewFontSet()
	if err != nil {
		t.Fatalf("NewFontSet() failed: %v", err)
	}
	comp := canvas.NewCompositor(canvas.NewHTTPFetcher(time.Second, nil), fonts)
	presetCatalog := catalog.NewCatalog()
	pipeline := export.NewPipeline(presetCatalog, comp, objects, store, nil, 2)
	svc := service.New(store, objects, comp, pipeline, nil, nil)
	auth := middleware.NewAuthenticator("test-secret")
	return setupRouter(svc, presetCatalog, auth, middleware.NewRateLimiter(100, 100), storage.Config{}), auth
}

func TestRouter_PublicRoutes(t *testing.T) {
	h, _ := testRouter(t)

	for _, path := range []string{"/health", "/size-presets", "/size-presets?store=google_play"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, rec.Code)
		}
	}
}

func TestRouter_ProtectedRoutesRequireToken(t *testing.T) {
	h, _ := testRouter(t)

	for _, path := range []string{"/projects", "/designs/abc", "/designs/abc/exports", "/uploads"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s status = %d, want 401", path, rec.Code)
		}
	}
}

func TestRouter_ProjectFlow(t *testing.T) {
	h, auth := testRouter(t)
	token, err := auth.CreateJWT("user-1", time.Hour)
	if err != nil {
		t.Fatalf("CreateJWT() failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/projects", strings.NewReader(`{"name":"Shop"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /projects status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/projects", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"name":"Shop"`) {
		t.Errorf("GET /projects = %d %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/designs/missing", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /designs/missing status = %d, want 404", rec.Code)
	}
}

func TestRouter_UploadFlow(t *testing.T) {
	h, auth := testRouter(t)
	token, err := auth.CreateJWT("user-1", time.Hour)
	if err != nil {
		t.Fatalf("CreateJWT() failed: %v", err)
	}
	do := func(method, path, contentType string, body *bytes.Buffer) *httptest.ResponseRecorder {
		if body == nil {
			body = &bytes.Buffer{}
		}
		req := httptest.NewRequest(method, path, body)
		req.Header.Set("Authorization", "Bearer "+token)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	var img bytes.Buffer
	if err := imaging.Encode(&img, imaging.New(40, 20, color.NRGBA{0, 0, 255, 255}), imaging.PNG); err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	mw.WriteField("type", "screenshot")
	part, _ := mw.CreateFormFile("file", "shot.png")
	part.Write(img.Bytes())
	mw.Close()

	rec := do(http.MethodPost, "/uploads", mw.FormDataContentType(), &form)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /uploads status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var upload core.Upload
	if err := json.NewDecoder(rec.Body).Decode(&upload); err != nil {
		t.Fatalf("Failed to decode upload: %v", err)
	}
	if upload.Width != 40 || upload.Height != 20 || upload.Name != "shot.png" {
		t.Errorf("Upload = %+v", upload)
	}

	rec = do(http.MethodPost, "/editing/transform", "application/json",
		bytes.NewBufferString(`{"uploadId":"`+upload.ID+`","mode":"resize","width":20}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /editing/transform status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var edited struct {
		Upload core.Upload `json:"upload"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&edited); err != nil {
		t.Fatalf("Failed to decode edited upload: %v", err)
	}
	if edited.Upload.Width != 20 || edited.Upload.Height != 10 {
		t.Errorf("Edited size = %dx%d, want 20x10", edited.Upload.Width, edited.Upload.Height)
	}

	rec = do(http.MethodGet, "/uploads", "", nil)
	var list []core.Upload
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil || len(list) != 2 {
		t.Errorf("GET /uploads = %d uploads, err %v", len(list), err)
	}

	if rec := do(http.MethodDelete, "/uploads/"+upload.ID, "", nil); rec.Code != http.StatusOK {
		t.Errorf("DELETE /uploads status = %d, want 200", rec.Code)
	}
	if rec := do(http.MethodDelete, "/uploads/"+upload.ID, "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("Second DELETE status = %d, want 404", rec.Code)
	}
}
