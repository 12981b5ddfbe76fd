package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/botvault/botvault/internal/config"
	"github.com/botvault/botvault/internal/db/models"
)

// Mirror copies audit entries to a destination outside the database. Shipping
// is best effort; a mirror failure never affects the recorded trail.
type Mirror interface {
	Ship(ctx context.Context, entry *models.AuditLog) error
	Close() error
}

// mirrorEntry is the JSON shape written to mirror destinations.
type mirrorEntry struct {
	Timestamp  time.Time              `json:"timestamp"`
	Action     string                 `json:"action"`
	UserID     string                 `json:"user_id,omitempty"`
	BotID      string                 `json:"bot_id,omitempty"`
	TargetType string                 `json:"target_type,omitempty"`
	TargetID   string                 `json:"target_id,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

func toMirrorEntry(entry *models.AuditLog) mirrorEntry {
	return mirrorEntry{
		Timestamp:  entry.CreatedAt,
		Action:     entry.Action,
		UserID:     strOrEmpty(entry.UserID),
		BotID:      strOrEmpty(entry.BotID),
		TargetType: strOrEmpty(entry.TargetType),
		TargetID:   strOrEmpty(entry.TargetID),
		Metadata:   entry.Metadata,
	}
}

// NewMirror builds the configured mirror, or (nil, nil) when mirroring is
// disabled.
func NewMirror(cfg config.AuditMirrorConfig) (Mirror, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Type {
	case "file":
		return newFileMirror(cfg.Path)
	case "webhook":
		return newWebhookMirror(cfg.URL, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown audit mirror type: %s", cfg.Type)
	}
}

// fileMirror appends entries as JSON lines to a local file.
type fileMirror struct {
	mu   sync.Mutex
	file *os.File
}

func newFileMirror(path string) (*fileMirror, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit mirror file: %w", err)
	}
	return &fileMirror{file: f}, nil
}

func (m *fileMirror) Ship(_ context.Context, entry *models.AuditLog) error {
	data, err := json.Marshal(toMirrorEntry(entry))
	if err != nil {
		return fmt.Errorf("failed to encode audit entry: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	return nil
}

func (m *fileMirror) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.file.Close()
}

// webhookMirror POSTs each entry to an HTTP endpoint.
type webhookMirror struct {
	url    string
	client *http.Client
}

func newWebhookMirror(url string, timeout time.Duration) *webhookMirror {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &webhookMirror{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (m *webhookMirror) Ship(ctx context.Context, entry *models.AuditLog) error {
	data, err := json.Marshal(toMirrorEntry(entry))
	if err != nil {
		return fmt.Errorf("failed to encode audit entry: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build audit webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("audit webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("audit webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (m *webhookMirror) Close() error { return nil }
