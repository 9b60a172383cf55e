package application

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/cenkalti/backoff/v4"

	"github.com/ericfisherdev/creatorhub/internal/domain/model"
	"github.com/ericfisherdev/creatorhub/internal/domain/port/driven"
)

// MaxMediaBytes caps a single downloaded media object.
const MaxMediaBytes = 64 << 20

// MediaIngestHandler copies the media URLs of a task into object storage under
// media/<taskID>/<sha256 of content>. Objects that already exist are skipped,
// so a redelivered job stores nothing twice.
type MediaIngestHandler struct {
	client  *http.Client
	objects driven.ObjectStore
}

// NewMediaIngestHandler creates a MediaIngestHandler.
func NewMediaIngestHandler(client *http.Client, objects driven.ObjectStore) *MediaIngestHandler {
	if client == nil {
		client = http.DefaultClient
	}
	return &MediaIngestHandler{client: client, objects: objects}
}

// Handle implements JobHandler.
func (h *MediaIngestHandler) Handle(ctx context.Context, job model.Job) error {
	var payload model.MediaIngestPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return backoff.Permanent(fmt.Errorf("decode media ingest payload: %w", err))
	}

	stored := 0
	for _, url := range payload.MediaURLs {
		created, err := h.ingest(ctx, job.TaskID, url)
		if err != nil {
			return err
		}
		if created {
			stored++
		}
	}

	slog.Info("media ingested", "task_id", job.TaskID, "urls", len(payload.MediaURLs), "stored", stored)
	return nil
}

// MediaKey returns the object key of content belonging to taskID.
func MediaKey(taskID string, content []byte) string {
	sum := sha256.Sum256(content)
	return "media/" + taskID + "/" + hex.EncodeToString(sum[:])
}

func (h *MediaIngestHandler) ingest(ctx context.Context, taskID, url string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, backoff.Permanent(fmt.Errorf("build media request for %s: %w", url, err))
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("download %s: unexpected status %d", url, resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return false, backoff.Permanent(err)
		}
		return false, err
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, MaxMediaBytes+1))
	if err != nil {
		return false, fmt.Errorf("read %s: %w", url, err)
	}
	if len(content) > MaxMediaBytes {
		return false, backoff.Permanent(fmt.Errorf("media %s exceeds %d bytes", url, MaxMediaBytes))
	}

	key := MediaKey(taskID, content)
	exists, err := h.objects.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check object %s: %w", key, err)
	}
	if exists {
		slog.Debug("media already stored", "key", key)
		return false, nil
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(content)
	}
	if err := h.objects.Put(ctx, key, bytes.NewReader(content), int64(len(content)), contentType); err != nil {
		return false, fmt.Errorf("store object %s: %w", key, err)
	}
	return true, nil
}
