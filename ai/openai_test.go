package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"storecanvas/core"
)

func imageJSON(payload []byte) string {
	return `{"data":[{"b64_json":"` + base64.StdEncoding.EncodeToString(payload) + `"}]}`
}

func TestGenerateImage(t *testing.T) {
	var got imageGenerationRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/images/generations" {
			t.Errorf("Path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		json.NewDecoder(r.Body).Decode(&got)
		io.WriteString(w, imageJSON([]byte("png-bytes")))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL + "/"})
	img, err := c.GenerateImage(context.Background(), "sunset over hills", 2048, 1000)
	if err != nil {
		t.Fatalf("GenerateImage() failed: %v", err)
	}
	if string(img) != "png-bytes" {
		t.Errorf("GenerateImage() = %q", img)
	}
	if got.Model != defaultImageModel || got.Prompt != "sunset over hills" || got.Size != "1792x1024" || got.ResponseFormat != "b64_json" {
		t.Errorf("Request = %+v", got)
	}
}

func TestImageSize(t *testing.T) {
	tests := []struct {
		w, h int
		want string
	}{
		{2048, 1000, "1792x1024"},
		{1290, 2796, "1024x1792"},
		{1024, 1024, "1024x1024"},
	}
	for _, tt := range tests {
		if got := imageSize(tt.w, tt.h); got != tt.want {
			t.Errorf("imageSize(%d, %d) = %s, want %s", tt.w, tt.h, got, tt.want)
		}
	}
}

func TestEditImage_SendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/images/edits" {
			t.Errorf("Path = %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm() failed: %v", err)
			return
		}
		if r.FormValue("prompt") != "make it neon" || r.FormValue("model") != defaultEditModel {
			t.Errorf("Form = %v", r.MultipartForm.Value)
		}
		f, _, err := r.FormFile("image")
		if err != nil {
			t.Errorf("FormFile() failed: %v", err)
			return
		}
		data, _ := io.ReadAll(f)
		if string(data) != "source-png" {
			t.Errorf("Uploaded image = %q", data)
		}
		io.WriteString(w, imageJSON([]byte("edited")))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL})
	out, err := c.EditImage(context.Background(), "make it neon", []byte("source-png"))
	if err != nil {
		t.Fatalf("EditImage() failed: %v", err)
	}
	if string(out) != "edited" {
		t.Errorf("EditImage() = %q", out)
	}
}

func TestSuggestCopy_ParsesNumberedLines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatCompletionRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "fitness tracker" {
			t.Errorf("Messages = %+v", req.Messages)
		}
		json.NewEncoder(w).Encode(ChatCompletionResponse{
			Choices: []ChatCompletionChoice{{
				Message: ChatMessage{Role: "assistant", Content: "1. Move more\n\n2) Sleep better\n3. Track it all\n4. Extra line"},
			}},
		})
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL})
	lines, err := c.SuggestCopy(context.Background(), "fitness tracker")
	if err != nil {
		t.Fatalf("SuggestCopy() failed: %v", err)
	}
	want := []string{"Move more", "Sleep better", "Track it all"}
	if len(lines) != len(want) {
		t.Fatalf("SuggestCopy() = %v, want %v", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("lines[%d] = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestClient_ErrorsAreNetworkErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL})
	if _, err := c.GenerateImage(context.Background(), "x", 100, 100); !errors.Is(err, core.ErrNetwork) {
		t.Errorf("GenerateImage() error = %v, want ErrNetwork", err)
	}

	noKey := NewClient(Config{BaseURL: srv.URL})
	if _, err := noKey.SuggestCopy(context.Background(), "x"); !errors.Is(err, core.ErrNetwork) {
		t.Errorf("SuggestCopy() without key error = %v, want ErrNetwork", err)
	}
}

type failingAssistant struct {
	err error
}

func (f failingAssistant) GenerateImage(context.Context, string, int, int) ([]byte, error) {
	return nil, f.err
}

func (f failingAssistant) EditImage(context.Context, string, []byte) ([]byte, error) {
	return nil, f.err
}

func (f failingAssistant) SuggestCopy(context.Context, string) ([]string, error) {
	return nil, f.err
}

func TestFallback_PlaceholderOnFailure(t *testing.T) {
	fb := WithFallback(failingAssistant{err: core.ErrNetwork})

	data, err := fb.GenerateImage(context.Background(), "sunset", 640, 320)
	if err != nil {
		t.Fatalf("GenerateImage() failed: %v", err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DecodeConfig() failed: %v", err)
	}
	if format != "png" || cfg.Width != 640 || cfg.Height != 320 {
		t.Errorf("Placeholder = %s %dx%d", format, cfg.Width, cfg.Height)
	}

	edited, err := fb.EditImage(context.Background(), "neon", data)
	if err != nil {
		t.Fatalf("EditImage() failed: %v", err)
	}
	cfg, _, _ = image.DecodeConfig(bytes.NewReader(edited))
	if cfg.Width != 640 || cfg.Height != 320 {
		t.Errorf("Edit placeholder should keep the source size, got %dx%d", cfg.Width, cfg.Height)
	}

	lines, err := fb.SuggestCopy(context.Background(), "brief")
	if err != nil || len(lines) != 3 {
		t.Errorf("SuggestCopy() = %v, %v", lines, err)
	}
}

func TestFallback_DoesNotMaskCancellation(t *testing.T) {
	fb := WithFallback(failingAssistant{err: context.Canceled})

	if _, err := fb.GenerateImage(context.Background(), "x", 10, 10); !errors.Is(err, context.Canceled) {
		t.Errorf("GenerateImage() error = %v, want context.Canceled", err)
	}
	if _, err := fb.SuggestCopy(context.Background(), "x"); !errors.Is(err, context.Canceled) {
		t.Errorf("SuggestCopy() error = %v, want context.Canceled", err)
	}
}

func TestPlaceholder_Deterministic(t *testing.T) {
	a, _ := Placeholder("same prompt", 8, 8)
	b, _ := Placeholder("same prompt", 8, 8)
	c, _ := Placeholder("other prompt", 8, 8)
	if !bytes.Equal(a, b) {
		t.Error("Placeholder() differs for the same prompt")
	}
	if bytes.Equal(a, c) {
		t.Error("Placeholder() identical for different prompts")
	}
}
