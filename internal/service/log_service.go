package service

import (
	"context"

	"github.com/mehrbod2002/masjidmap/internal/apperrors"
	"github.com/mehrbod2002/masjidmap/internal/models"
	"github.com/mehrbod2002/masjidmap/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const maxLogPageSize = 200

type LogService interface {
	LogAction(ctx context.Context, actorID primitive.ObjectID, action, description string, metadata map[string]interface{}) error
	GetAllLogs(ctx context.Context, page, limit int) ([]*models.LogEntry, error)
	GetLogsByActor(ctx context.Context, actorID string, page, limit int) ([]*models.LogEntry, error)
}

type logService struct {
	logRepo repository.LogRepository
}

func NewLogService(logRepo repository.LogRepository) LogService {
	return &logService{logRepo: logRepo}
}

func (s *logService) LogAction(ctx context.Context, actorID primitive.ObjectID, action, description string, metadata map[string]interface{}) error {
	logEntry := &models.LogEntry{
		ActorID:     actorID,
		Action:      action,
		Description: description,
		IPAddress:   clientIP(ctx),
		Metadata:    metadata,
	}
	return s.logRepo.SaveLog(ctx, logEntry)
}

func (s *logService) GetAllLogs(ctx context.Context, page, limit int) ([]*models.LogEntry, error) {
	if err := checkPage(page, limit); err != nil {
		return nil, err
	}
	return s.logRepo.GetAllLogs(ctx, page, limit)
}

func (s *logService) GetLogsByActor(ctx context.Context, actorID string, page, limit int) ([]*models.LogEntry, error) {
	objID, err := parseID(actorID, "account")
	if err != nil {
		return nil, err
	}
	if err := checkPage(page, limit); err != nil {
		return nil, err
	}
	return s.logRepo.GetLogsByActor(ctx, objID, page, limit)
}

func checkPage(page, limit int) error {
	if page < 1 || limit < 1 || limit > maxLogPageSize {
		return apperrors.Validation("page must be >= 1 and limit between 1 and %d", maxLogPageSize)
	}
	return nil
}
