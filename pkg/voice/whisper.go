package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/synaptica-ai/diseaseform/pkg/gateway/httpclient"
)

const (
	APIWhisperCPP = "whispercpp"
	APIOpenAI     = "openai"

	whisperSampleRate  = 16000
	defaultOpenAIModel = "whisper-1"
)

// WhisperClient transcribes clips through a whisper.cpp server
// (POST /inference) or an OpenAI-compatible one
// (POST /v1/audio/transcriptions).
type WhisperClient struct {
	baseURL    string
	api        string
	language   string
	model      string
	apiKey     string
	attempts   int
	httpClient *http.Client
}

type WhisperOption func(*WhisperClient)

func WithAPI(api string) WhisperOption {
	return func(c *WhisperClient) { c.api = api }
}

func WithLanguage(lang string) WhisperOption {
	return func(c *WhisperClient) { c.language = lang }
}

func WithModel(model string) WhisperOption {
	return func(c *WhisperClient) { c.model = model }
}

// WithAPIKey sends key as a bearer token, as OpenAI-compatible servers
// expect.
func WithAPIKey(key string) WhisperOption {
	return func(c *WhisperClient) { c.apiKey = key }
}

func WithRequestTimeout(d time.Duration) WhisperOption {
	return func(c *WhisperClient) { c.httpClient.Timeout = d }
}

// WithAttempts sets how many times a request is tried when the server is
// unreachable or answers 502/503/504. Defaults to 2.
func WithAttempts(n int) WhisperOption {
	return func(c *WhisperClient) { c.attempts = n }
}

func NewWhisperClient(baseURL string, opts ...WhisperOption) (*WhisperClient, error) {
	if baseURL == "" {
		return nil, errors.New("whisper: server URL must not be empty")
	}
	c := &WhisperClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		api:        APIWhisperCPP,
		language:   "en",
		attempts:   2,
		httpClient: httpclient.New(30 * time.Second),
	}
	for _, o := range opts {
		o(c)
	}
	switch c.api {
	case APIWhisperCPP:
	case APIOpenAI:
		if c.model == "" {
			c.model = defaultOpenAIModel
		}
	default:
		return nil, fmt.Errorf("whisper: unknown api %q", c.api)
	}
	return c, nil
}

func (c *WhisperClient) endpoint() string {
	if c.api == APIOpenAI {
		return c.baseURL + "/v1/audio/transcriptions"
	}
	return c.baseURL + "/inference"
}

func (c *WhisperClient) Transcribe(ctx context.Context, clip Clip) (string, error) {
	wav := clip.Resample(whisperSampleRate).WAV()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return "", fmt.Errorf("whisper: write wav data: %w", err)
	}
	fields := map[string]string{"response_format": "json"}
	if c.language != "" {
		fields["language"] = c.language
	}
	if c.model != "" {
		fields["model"] = c.model
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return "", fmt.Errorf("whisper: write %s field: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	var text string
	err = httpclient.Retry(ctx, c.attempts, 250*time.Millisecond, func() error {
		var rerr error
		text, rerr = c.post(ctx, body.Bytes(), mw.FormDataContentType())
		return rerr
	})
	if err != nil {
		return "", fmt.Errorf("whisper: %w", err)
	}
	return text, nil
}

func (c *WhisperClient) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func (c *WhisperClient) post(ctx context.Context, payload []byte, contentType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &httpclient.StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("parse JSON response: %w", err)
	}
	return result.Text, nil
}

// Health reports whether the transcription server answers its health probe.
func (c *WhisperClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	c.authorize(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("whisper: health request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("whisper: health: %w", &httpclient.StatusError{Code: resp.StatusCode})
	}
	return nil
}
