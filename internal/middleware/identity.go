package middleware

import (
	"errors"
	"strings"

	"github.com/ahmetcoskunkizilkaya/marketplace-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/marketplace-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/marketplace-backend/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	localUserID  = "user_id"
	localIsAdmin = "is_admin"
)

// Identity resolves the caller from the verified JWT and decides whether the
// caller is an admin. Admin status comes from:
// 1. Config-based admin emails/IDs
// 2. DB-based user Role field
// Must run after JWTProtected.
func Identity(db *gorm.DB, cfg *config.Config) fiber.Handler {
	adminEmails := parseCSV(cfg.AdminEmails)
	adminUserIDs := parseCSV(cfg.AdminUserIDs)

	return func(c *fiber.Ctx) error {
		token, ok := c.Locals("user").(*jwt.Token)
		if !ok || token == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Invalid claims",
			})
		}

		sub, _ := claims["sub"].(string)
		userID, err := uuid.Parse(sub)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Invalid subject claim",
			})
		}
		email, _ := claims["email"].(string)

		isAdmin := contains(adminEmails, email) || contains(adminUserIDs, sub)
		if !isAdmin {
			var user models.User
			if err := db.WithContext(c.UserContext()).Select("id", "role").First(&user, "id = ?", userID).Error; err == nil {
				isAdmin = user.IsAdmin()
			}
		}

		c.Locals(localUserID, userID)
		c.Locals(localIsAdmin, isAdmin)
		return c.Next()
	}
}

// GetUserID returns the caller resolved by Identity.
func GetUserID(c *fiber.Ctx) (uuid.UUID, error) {
	userID, ok := c.Locals(localUserID).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, errors.New("missing user identity")
	}
	return userID, nil
}

func IsAdmin(c *fiber.Ctx) bool {
	isAdmin, _ := c.Locals(localIsAdmin).(bool)
	return isAdmin
}

func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func contains(list []string, val string) bool {
	if val == "" {
		return false
	}
	for _, item := range list {
		if item == val {
			return true
		}
	}
	return false
}
