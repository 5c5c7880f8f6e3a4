package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/trialscout/platform/pkg/common/apperrors"
	"github.com/trialscout/platform/pkg/common/httpclient"
	"github.com/trialscout/platform/pkg/retry"
)

// Client submits consultation audio to the transcription provider and
// polls until the transcript is ready. The API key is checked when a
// transcription is requested, not at construction, so an unconfigured
// deployment still serves every other endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	maxRetries int
	baseDelay  time.Duration

	pollInterval time.Duration
	pollTimeout  time.Duration
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		httpClient:   httpclient.New(60 * time.Second),
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		maxRetries:   3,
		baseDelay:    time.Second,
		pollInterval: 2 * time.Second,
		pollTimeout:  5 * time.Minute,
	}
}

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type transcriptRequest struct {
	AudioURL string `json:"audio_url"`
}

type transcriptResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Text   string `json:"text"`
	Error  string `json:"error"`
}

// Transcribe uploads raw audio bytes and blocks until the provider
// finishes or the polling window runs out.
func (c *Client) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return "", apperrors.New(apperrors.KindConfig, "transcription API key not configured")
	}
	if len(audio) == 0 {
		return "", apperrors.New(apperrors.KindNoMedicalData, "empty audio payload")
	}

	audioURL, err := retry.Do(ctx, func(ctx context.Context) (string, error) {
		return c.upload(ctx, audio)
	}, retry.WithMaxRetries(c.maxRetries), retry.WithBaseDelay(c.baseDelay), retry.WithRetryIf(apperrors.Retriable))
	if err != nil {
		return "", err
	}

	transcriptID, err := retry.Do(ctx, func(ctx context.Context) (string, error) {
		return c.submit(ctx, audioURL)
	}, retry.WithMaxRetries(c.maxRetries), retry.WithBaseDelay(c.baseDelay), retry.WithRetryIf(apperrors.Retriable))
	if err != nil {
		return "", err
	}

	return c.awaitTranscript(ctx, transcriptID)
}

func (c *Client) upload(ctx context.Context, audio []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", bytes.NewReader(audio))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	var out uploadResponse
	if err := c.doJSON(req, &out); err != nil {
		return "", err
	}
	if out.UploadURL == "" {
		return "", apperrors.New(apperrors.KindParse, "upload response missing upload_url")
	}
	return out.UploadURL, nil
}

func (c *Client) submit(ctx context.Context, audioURL string) (string, error) {
	body, err := json.Marshal(transcriptRequest{AudioURL: audioURL})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcript", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	var out transcriptResponse
	if err := c.doJSON(req, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", apperrors.New(apperrors.KindParse, "transcript response missing id")
	}
	return out.ID, nil
}

func (c *Client) awaitTranscript(ctx context.Context, transcriptID string) (string, error) {
	deadline := time.Now().Add(c.pollTimeout)
	for {
		status, err := c.fetchStatus(ctx, transcriptID)
		if err != nil {
			return "", err
		}
		switch status.Status {
		case "completed":
			return status.Text, nil
		case "error":
			return "", apperrors.New(apperrors.KindUpstreamAPI, fmt.Sprintf("transcription failed: %s", status.Error))
		}

		if time.Now().After(deadline) {
			return "", apperrors.New(apperrors.KindUpstreamAPI, "transcription timed out")
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

func (c *Client) fetchStatus(ctx context.Context, transcriptID string) (transcriptResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/transcript/"+transcriptID, nil)
	if err != nil {
		return transcriptResponse{}, err
	}
	req.Header.Set("Authorization", c.apiKey)

	var out transcriptResponse
	if err := c.doJSON(req, &out); err != nil {
		return transcriptResponse{}, err
	}
	return out, nil
}

func (c *Client) doJSON(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.KindUpstreamAPI, "transcription provider unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return apperrors.Wrap(apperrors.KindUpstreamAPI, "reading transcription response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperrors.New(apperrors.KindUpstreamAPI, fmt.Sprintf("transcription provider returned %d: %s", resp.StatusCode, truncate(string(body), 200)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperrors.Wrap(apperrors.KindParse, "decoding transcription response", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
