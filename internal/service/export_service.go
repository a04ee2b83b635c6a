package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"gymbook/internal/domain"
	"gymbook/internal/repository"
	"gymbook/internal/storage"
	"log/slog"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RosterExport describes an uploaded roster file.
type RosterExport struct {
	ObjectKey string `json:"objectKey"`
	URL       string `json:"url"`
	Visitors  int    `json:"visitors"`
}

// ExportService writes session rosters to object storage.
type ExportService interface {
	ExportRoster(ctx context.Context, principal domain.Principal, sessionID primitive.ObjectID) (*RosterExport, error)
}

type exportService struct {
	sessions repository.SessionRepository
	visitors repository.VisitorRepository
	files    storage.FileStorage
	logger   *slog.Logger
}

// NewExportService creates a new ExportService.
func NewExportService(sessions repository.SessionRepository, visitors repository.VisitorRepository, files storage.FileStorage, logger *slog.Logger) ExportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &exportService{sessions: sessions, visitors: visitors, files: files, logger: logger}
}

// ExportRoster uploads the roster as CSV and returns a presigned download URL.
func (s *exportService) ExportRoster(ctx context.Context, principal domain.Principal, sessionID primitive.ObjectID) (*RosterExport, error) {
	if err := requireRole(principal, TrainerOrManager); err != nil {
		return nil, err
	}
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, storeError(err)
	}
	if err := requireManage(principal, session); err != nil {
		return nil, err
	}

	visitors, err := s.visitors.GetByIDs(ctx, session.Visitors)
	if err != nil {
		return nil, storeError(err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"visitor_id", "name", "email", "username"})
	for _, v := range visitors {
		_ = w.Write([]string{v.ID.Hex(), v.Name, v.Email, v.Username})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("write roster csv: %w", err)
	}

	key := fmt.Sprintf("exports/rosters/%s/%s.csv", sessionID.Hex(), uuid.NewString())
	if err := s.files.PutObject(ctx, key, "text/csv", buf.Bytes()); err != nil {
		return nil, storeError(err)
	}
	url, err := s.files.GeneratePresignedDownloadURL(ctx, key, storage.DefaultPresignedURLExpiry)
	if err != nil {
		// Nobody can fetch the object without a URL.
		if delErr := s.files.DeleteObject(context.WithoutCancel(ctx), key); delErr != nil {
			s.logger.WarnContext(ctx, "Failed to remove unreachable roster export", "object_key", key, "error", delErr)
		}
		return nil, storeError(err)
	}

	s.logger.InfoContext(ctx, "Roster exported", "session_id", sessionID.Hex(), "object_key", key, "visitors", len(visitors))
	return &RosterExport{ObjectKey: key, URL: url, Visitors: len(visitors)}, nil
}
