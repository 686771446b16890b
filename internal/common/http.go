package common

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxResponseBytes bounds collaborator response bodies.
const maxResponseBytes = 1 << 20

// UpstreamError is a failure reported by a collaborator service. Its text is
// the collaborator's own message when one was returned.
type UpstreamError struct {
	Service string
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s returned status %d", e.Service, e.Status)
}

// SendJSON encodes body as JSON and sends it to url.
func SendJSON(ctx context.Context, client *http.Client, method, url string, body any, headers map[string]string, logger *slog.Logger, event string) ([]byte, int, error) {
	bs, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("encode json: %w", err)
	}
	return Send(ctx, client, method, url, "application/json", bs, headers, logger, event)
}

// Send issues one request and returns the raw response body. Non-2xx
// responses yield an *UpstreamError carrying the service's error message.
// event prefixes the log lines, e.g. "storage.http".
func Send(ctx context.Context, client *http.Client, method, url, contentType string, body []byte, headers map[string]string, logger *slog.Logger, event string) ([]byte, int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: 45 * time.Second}
	}

	reqID := uuid.New().String()
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		logger.Error(event+".build_request_error", "req_id", reqID, "error", err)
		return nil, 0, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	logger.Info(event+".request", "req_id", reqID, "method", method, "url", url, "content_length", len(body))

	resp, err := client.Do(req)
	if err != nil {
		logger.Error(event+".send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, 0, err
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logger.Warn(event+".response_body_close_error", "req_id", reqID, "error", err)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))

	logger.Info(event+".response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return raw, resp.StatusCode, &UpstreamError{
			Service: strings.SplitN(event, ".", 2)[0],
			Status:  resp.StatusCode,
			Message: upstreamMessage(raw),
		}
	}
	return raw, resp.StatusCode, nil
}

// upstreamMessage extracts {"error": "..."} or {"message": "..."} from an
// error body, or returns short plain-text bodies as-is.
func upstreamMessage(raw []byte) string {
	var body struct {
		Error   any    `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		switch v := body.Error.(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]any:
			if m, ok := v["message"].(string); ok && m != "" {
				return m
			}
		}
		return body.Message
	}
	text := strings.TrimSpace(string(raw))
	if len(text) > 0 && len(text) <= 300 && !strings.HasPrefix(text, "<") {
		return text
	}
	return ""
}
