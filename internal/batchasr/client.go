package batchasr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Client drives the provider's batch speech-to-text job API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, timeoutSeconds int) *Client {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 30
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSeconds) * time.Second,
		},
	}
}

type createJobRequest struct {
	LanguageCode    string `json:"language_code"`
	WithDiarization bool   `json:"with_diarization"`
	WithTimestamps  bool   `json:"with_timestamps"`
}

type createJobResponse struct {
	JobID string `json:"job_id"`
}

type statusResponse struct {
	Status       string `json:"status"`
	LanguageCode string `json:"language_code"`
	Detail       string `json:"detail"`
}

// CreateJob registers a new batch recognition job and returns the provider's
// job identifier.
func (c *Client) CreateJob(ctx context.Context, opts JobOptions) (string, error) {
	payload, err := json.Marshal(createJobRequest{
		LanguageCode:    opts.LanguageCode,
		WithDiarization: opts.Diarization,
		WithTimestamps:  opts.Timestamps,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var resp createJobResponse
	if err := c.doJSON(ctx, http.MethodPost, "/jobs", bytes.NewBuffer(payload), "application/json", &resp); err != nil {
		return "", fmt.Errorf("failed to create recognition job: %w", err)
	}
	if resp.JobID == "" {
		return "", fmt.Errorf("recognition job created without an id")
	}
	return resp.JobID, nil
}

// UploadAudio attaches an audio file to the job.
func (c *Client) UploadAudio(ctx context.Context, jobID, audioPath string) error {
	f, err := os.Open(audioPath)
	if err != nil {
		return fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("failed to read audio file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finish upload: %w", err)
	}

	path := fmt.Sprintf("/jobs/%s/audio", jobID)
	if err := c.doJSON(ctx, http.MethodPost, path, &body, writer.FormDataContentType(), nil); err != nil {
		return fmt.Errorf("failed to upload audio: %w", err)
	}
	return nil
}

// Start begins processing an uploaded job.
func (c *Client) Start(ctx context.Context, jobID string) error {
	path := fmt.Sprintf("/jobs/%s/start", jobID)
	if err := c.doJSON(ctx, http.MethodPost, path, nil, "", nil); err != nil {
		return fmt.Errorf("failed to start recognition job: %w", err)
	}
	return nil
}

// PollStatus returns the current state of the job.
func (c *Client) PollStatus(ctx context.Context, jobID string) (JobStatus, error) {
	path := fmt.Sprintf("/jobs/%s/status", jobID)

	var resp statusResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, "", &resp); err != nil {
		return JobStatus{}, fmt.Errorf("failed to poll job status: %w", err)
	}

	status := JobStatus{
		DetectedLanguage: resp.LanguageCode,
		Detail:           resp.Detail,
	}
	switch resp.Status {
	case "created", "pending":
		status.State = StateCreated
	case "processing", "running", "in_progress":
		status.State = StateProcessing
	case "completed", "succeeded", "success":
		status.State = StateCompleted
	case "failed", "error":
		status.State = StateFailed
	default:
		return JobStatus{}, fmt.Errorf("unknown job status %q", resp.Status)
	}
	return status, nil
}

// DownloadResult fetches the job's result artifact, saves the raw JSON under
// destDir, and returns the parsed result.
func (c *Client) DownloadResult(ctx context.Context, jobID, destDir string) (*Result, error) {
	path := fmt.Sprintf("/jobs/%s/result", jobID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("api-subscription-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download result: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read result body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("result download failed with status %d: %s", resp.StatusCode, string(body))
	}

	if destDir != "" {
		artifact := filepath.Join(destDir, jobID+".json")
		if err := os.WriteFile(artifact, body, 0644); err != nil {
			return nil, fmt.Errorf("failed to save result artifact: %w", err)
		}
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse result: %w", err)
	}
	return &result, nil
}

// doJSON performs a request against the job API and decodes the JSON response
// into out when out is non-nil.
func (c *Client) doJSON(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("api-subscription-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(data))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}
