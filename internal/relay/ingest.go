package relay

import (
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"chat-relay/internal/blob"
)

// Ingestor decodes inline attachments and writes them to durable blob
// storage under a collision-resistant name.
type Ingestor struct {
	blobs blob.Store

	mu   sync.Mutex
	last int64 // last issued receipt-time millis, for monotonic names
}

func NewIngestor(blobs blob.Store) *Ingestor {
	return &Ingestor{blobs: blobs}
}

// Ingest decodes a "<mime-prefix>,<base64-bytes>" payload, stores the
// bytes, and returns the storage name. The name is derived from receipt
// time plus the original extension and is unique for the process
// lifetime, so the persisted record never dangles.
func (g *Ingestor) Ingest(ctx context.Context, filename, data string) (string, error) {
	_, encoded, ok := strings.Cut(data, ",")
	if !ok {
		return "", ErrBadAttachment
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadAttachment, err)
	}

	name := g.nextName(filepath.Ext(filename))
	if err := g.blobs.Write(ctx, name, raw); err != nil {
		return "", fmt.Errorf("write attachment %s: %w", name, err)
	}
	return name, nil
}

// nextName issues a strictly increasing receipt-time stamp so two
// attachments arriving in the same millisecond still get distinct names.
func (g *Ingestor) nextName(ext string) string {
	now := time.Now().UnixMilli()

	g.mu.Lock()
	if now <= g.last {
		now = g.last + 1
	}
	g.last = now
	g.mu.Unlock()

	return strconv.FormatInt(now, 10) + ext
}
