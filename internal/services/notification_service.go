package services

import (
	"context"
	"fmt"

	"github.com/ahmetcoskunkizilkaya/marketplace-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationInput struct {
	UserID  uuid.UUID
	Title   string
	Message string
	Type    models.NotificationType
}

// Notifier records a notification for a user. Delivery (push, email,
// websocket) happens elsewhere.
type Notifier interface {
	Create(ctx context.Context, input NotificationInput) error
}

type NotificationService struct {
	db *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{db: db}
}

func (s *NotificationService) Create(ctx context.Context, input NotificationInput) error {
	notificationType := input.Type
	if notificationType == "" {
		notificationType = models.NotificationTypeSystem
	}

	notification := models.Notification{
		UserID:  input.UserID,
		Type:    notificationType,
		Title:   input.Title,
		Message: input.Message,
	}
	if err := s.db.WithContext(ctx).Omit("User").Create(&notification).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}
