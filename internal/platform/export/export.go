// Package export writes audit ledgers to object storage.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"accessgate/internal/apperr"
	"accessgate/internal/platform/audit"
)

var ErrStorageDisabled = &apperr.Error{Kind: apperr.KindValidation, Code: "export_disabled", Message: "Audit export is not configured"}

// Document is the stored form of an exported ledger.
type Document struct {
	ExportedAt time.Time      `json:"exported_at"`
	ExportedBy uuid.UUID      `json:"exported_by"`
	History    *audit.History `json:"history"`
}

type Service struct {
	storage fiber.Storage
	audit   *audit.Log
	now     func() time.Time
}

// NewService returns an exporter writing to storage. A nil storage disables
// exports.
func NewService(storage fiber.Storage, auditLog *audit.Log) *Service {
	return &Service{storage: storage, audit: auditLog, now: time.Now}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	c := *s
	c.now = now
	return &c
}

func (s *Service) Enabled() bool {
	return s.storage != nil
}

// Key returns the object key of an export of userID taken at t.
func Key(userID uuid.UUID, t time.Time) string {
	return fmt.Sprintf("audit/%s/%s.json", userID, t.UTC().Format("20060102T150405Z"))
}

// Export stores the current ledger of userID and returns the object key.
func (s *Service) Export(ctx context.Context, userID, exportedBy uuid.UUID) (string, error) {
	if !s.Enabled() {
		return "", ErrStorageDisabled
	}

	history, err := s.audit.History(ctx, userID)
	if err != nil {
		return "", err
	}

	now := s.now().UTC()
	body, err := json.Marshal(Document{
		ExportedAt: now,
		ExportedBy: exportedBy,
		History:    history,
	})
	if err != nil {
		return "", apperr.Internal(err)
	}

	key := Key(userID, now)
	if err := s.storage.Set(key, body, 0); err != nil {
		return "", apperr.Internal(fmt.Errorf("store %s: %w", key, err))
	}

	log.Infow("audit ledger exported", "user_id", userID, "key", key, "bytes", len(body))
	return key, nil
}
