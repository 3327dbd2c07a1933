package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pasindubuddhika1999/findmyphone/internal/apperrors"
	"github.com/pasindubuddhika1999/findmyphone/internal/auth"
	"github.com/pasindubuddhika1999/findmyphone/internal/db"
	"github.com/pasindubuddhika1999/findmyphone/internal/models"
)

// RegisterInput is the account part of any registration.
type RegisterInput struct {
	Username    string `json:"username" validate:"required,min=3,max=30,username"`
	Email       string `json:"email" validate:"omitempty,email,max=100"`
	Password    string `json:"password" validate:"required,min=6,max=128"`
	PhoneNumber string `json:"phoneNumber" validate:"required,phone"`
}

// EffectiveRole decides what an account may act as after login.
// Admins are admins. Individuals are users. Shop accounts depend on their shop:
// approved acts as a shop, pending may not log in, rejected or revoked fall back to user.
// A shop account whose shop was deleted is a user.
func EffectiveRole(user *models.User, shop *models.Shop) (models.Role, error) {
	if user.Role == models.RoleAdmin {
		return models.RoleAdmin, nil
	}
	if user.AccountType != models.AccountTypeShop || shop == nil {
		return models.RoleUser, nil
	}
	switch shop.ModerationStatus {
	case models.ModerationApproved:
		return models.RoleShop, nil
	case models.ModerationPending:
		return "", apperrors.PendingApproval()
	default:
		return models.RoleUser, nil
	}
}

// insertUser hashes the password and stores a new account.
func insertUser(ctx context.Context, database *mongo.Database, input RegisterInput, accountType models.AccountType) (*models.User, error) {
	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Base:         models.NewBase(),
		Username:     strings.TrimSpace(input.Username),
		PasswordHash: hash,
		Role:         models.RoleUser,
		AccountType:  accountType,
		PhoneNumber:  strings.TrimSpace(input.PhoneNumber),
	}
	if email := normaliseEmail(input.Email); email != "" {
		user.Email = &email
	}

	err = db.Try(func() error {
		_, insertErr := database.Collection(db.UsersCollection).InsertOne(ctx, user)
		return insertErr
	})
	if err != nil {
		if conflict := userConflict(err); conflict != nil {
			return nil, conflict
		}
		return nil, fmt.Errorf("failed to insert user %s: %w", user.Username, err)
	}
	return user, nil
}

// userConflict maps unique index violations on users to a conflict error.
func userConflict(err error) error {
	return duplicateKeyConflict(err, map[string]string{
		"username_unique": "Username already taken",
		"email_unique":    "Email already registered",
	}, "Account already exists")
}

// duplicateKeyConflict turns a duplicate key error into a conflict naming the violated index.
// It returns nil for any other error.
func duplicateKeyConflict(err error, byIndex map[string]string, fallback string) error {
	if !db.IsMongoDuplicateKeyError(err) {
		return nil
	}
	msg := err.Error()
	for index, message := range byIndex {
		if strings.Contains(msg, index) {
			return apperrors.Conflict(message)
		}
	}
	return apperrors.Conflict(fallback)
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func findUserByID(ctx context.Context, database *mongo.Database, id interface{}) (*models.User, error) {
	var user models.User
	err := database.Collection(db.UsersCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound("User")
		}
		return nil, fmt.Errorf("error finding user by ID %v: %w", id, err)
	}
	return &user, nil
}

func totalPages(total, limit int64) int64 {
	if limit <= 0 {
		return 0
	}
	return int64(math.Ceil(float64(total) / float64(limit)))
}
