package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/classdocs/constants"
	"github.com/joseph-ayodele/classdocs/internal/common"
	"github.com/joseph-ayodele/classdocs/internal/ports"
)

// HTTPStore uploads artifacts to a remote object store with one PUT per
// document. The store answers {"url": "...", "id": "..."}.
type HTTPStore struct {
	endpoint string
	token    string
	client   *http.Client
	log      *slog.Logger
}

func NewHTTPStore(endpoint, token string, timeout time.Duration, log *slog.Logger) *HTTPStore {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPStore{
		endpoint: strings.TrimRight(endpoint, "/"),
		token:    token,
		client:   &http.Client{Timeout: timeout},
		log:      log,
	}
}

type putResponse struct {
	URL string `json:"url"`
	ID  string `json:"id"`
}

func (s *HTTPStore) Put(ctx context.Context, data []byte, suggestedName string) (ports.StoredObject, error) {
	name := objectName(suggestedName)
	ct := contentType(name)
	headers := map[string]string{}
	if s.token != "" {
		headers["Authorization"] = "Bearer " + s.token
	}

	raw, _, err := common.Send(ctx, s.client, http.MethodPut, s.endpoint+"/"+escapeKey(name), ct, data, headers, s.log, "storage.http")
	if err != nil {
		return ports.StoredObject{}, uploadError(err)
	}

	var resp putResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return ports.StoredObject{}, fmt.Errorf("storage returned an unreadable response: %w", err)
	}
	if resp.URL == "" {
		return ports.StoredObject{}, fmt.Errorf("storage response is missing the artifact url")
	}
	return ports.StoredObject{URL: resp.URL, StorageID: resp.ID}, nil
}

func uploadError(err error) error {
	var up *common.UpstreamError
	if errors.As(err, &up) {
		return err
	}
	return fmt.Errorf("storage upload failed: %w", err)
}

// contentType prefers the document formats' own types over the platform
// mime table, which may not know OOXML extensions.
func contentType(name string) string {
	ext := filepath.Ext(name)
	if f, ok := constants.ParseFormat(constants.NormalizeExt(ext)); ok {
		return f.MIMEType()
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
