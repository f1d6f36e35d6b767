package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"storecanvas/core"
)

const (
	defaultBaseURL    = "https://api.openai.com"
	defaultImageModel = "dall-e-3"
	defaultEditModel  = "dall-e-2"
	defaultChatModel  = "gpt-4o-mini"

	copySystemPrompt = "You create concise marketing copy for app store assets."
	maxSuggestions   = 3
)

// Client talks to an OpenAI-compatible API for background generation,
// image-to-image edits and copy suggestions.
type Client struct {
	apiKey     string
	baseURL    string
	imageModel string
	editModel  string
	chatModel  string
	http       *http.Client
}

// Config holds the connection settings of a Client. Empty fields use the defaults.
type Config struct {
	APIKey     string
	BaseURL    string
	ImageModel string
	EditModel  string
	ChatModel  string
	Timeout    time.Duration
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = defaultImageModel
	}
	if cfg.EditModel == "" {
		cfg.EditModel = defaultEditModel
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = defaultChatModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		imageModel: cfg.ImageModel,
		editModel:  cfg.EditModel,
		chatModel:  cfg.ChatModel,
		http:       &http.Client{Timeout: cfg.Timeout},
	}
}

// ConfigFromEnv reads OPENAI_API_KEY, OPENAI_BASE_URL, OPENAI_IMAGE_MODEL,
// OPENAI_EDIT_MODEL and OPENAI_CHAT_MODEL.
func ConfigFromEnv() Config {
	cfg := Config{
		APIKey:     os.Getenv("OPENAI_API_KEY"),
		BaseURL:    os.Getenv("OPENAI_BASE_URL"),
		ImageModel: os.Getenv("OPENAI_IMAGE_MODEL"),
		EditModel:  os.Getenv("OPENAI_EDIT_MODEL"),
		ChatModel:  os.Getenv("OPENAI_CHAT_MODEL"),
	}
	if cfg.APIKey == "" {
		logrus.Warn("OPENAI_API_KEY environment variable not set. AI operations will use placeholders.")
	}
	return cfg
}

type imageGenerationRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format"`
}

type imageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// ChatMessage and the request/response types below follow the chat completions wire format.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

type ChatCompletionChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type ChatCompletionResponse struct {
	ID      string                 `json:"id"`
	Model   string                 `json:"model"`
	Choices []ChatCompletionChoice `json:"choices"`
}

// GenerateImage creates a background for a width x height canvas. The API
// only offers a few sizes, so the closest orientation is requested and the
// caller stretches the result.
func (c *Client) GenerateImage(ctx context.Context, prompt string, width, height int) ([]byte, error) {
	body, err := json.Marshal(imageGenerationRequest{
		Model:          c.imageModel,
		Prompt:         prompt,
		N:              1,
		Size:           imageSize(width, height),
		ResponseFormat: "b64_json",
	})
	if err != nil {
		return nil, err
	}
	resp, err := c.post(ctx, "/v1/images/generations", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return decodeImageResponse(resp)
}

// EditImage runs an image-to-image edit of a PNG.
func (c *Client) EditImage(ctx context.Context, prompt string, image []byte) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := map[string]string{
		"model":           c.editModel,
		"prompt":          prompt,
		"n":               "1",
		"response_format": "b64_json",
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	part, err := mw.CreateFormFile("image", "image.png")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(image); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	resp, err := c.post(ctx, "/v1/images/edits", mw.FormDataContentType(), &buf)
	if err != nil {
		return nil, err
	}
	return decodeImageResponse(resp)
}

var numbering = regexp.MustCompile(`^\d+[.)]\s*`)

// SuggestCopy asks the chat model for up to three short lines for brief.
func (c *Client) SuggestCopy(ctx context.Context, brief string) ([]string, error) {
	body, err := json.Marshal(ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []ChatMessage{
			{Role: "system", Content: copySystemPrompt},
			{Role: "user", Content: brief},
		},
	})
	if err != nil {
		return nil, err
	}
	resp, err := c.post(ctx, "/v1/chat/completions", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var completion ChatCompletionResponse
	if err := json.Unmarshal(resp, &completion); err != nil {
		return nil, fmt.Errorf("%w: invalid chat completion response: %w", core.ErrNetwork, err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("%w: chat completion returned no choices", core.ErrNetwork)
	}
	return parseSuggestions(completion.Choices[0].Message.Content), nil
}

func parseSuggestions(content string) []string {
	out := make([]string, 0, maxSuggestions)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(numbering.ReplaceAllString(strings.TrimSpace(line), ""))
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}

func (c *Client) post(ctx context.Context, path, contentType string, body io.Reader) ([]byte, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is not configured", core.ErrNetwork)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: failed to communicate with OpenAI API: %w", core.ErrNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read OpenAI response: %w", core.ErrNetwork, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logrus.WithFields(logrus.Fields{
			"path":   path,
			"status": resp.StatusCode,
		}).Warn("OpenAI request failed")
		return nil, fmt.Errorf("%w: OpenAI API returned %d: %s", core.ErrNetwork, resp.StatusCode, truncate(string(data)))
	}
	return data, nil
}

func decodeImageResponse(data []byte) ([]byte, error) {
	var out imageResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: invalid image response: %w", core.ErrNetwork, err)
	}
	if len(out.Data) == 0 || out.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("%w: image response contained no image", core.ErrNetwork)
	}
	img, err := base64.StdEncoding.DecodeString(out.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid image payload: %w", core.ErrNetwork, err)
	}
	return img, nil
}

func imageSize(width, height int) string {
	switch {
	case width > height:
		return "1792x1024"
	case height > width:
		return "1024x1792"
	default:
		return "1024x1024"
	}
}

func truncate(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
