package services

import (
	"context"

	"github.com/pasindubuddhika1999/findmyphone/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ModerationAction names a step of the shop moderation workflow.
type ModerationAction string

const (
	ModerationRegistered ModerationAction = "registered"
	ModerationApprove    ModerationAction = "approve"
	ModerationReject     ModerationAction = "reject"
	ModerationRevoke     ModerationAction = "revoke"
	ModerationDelete     ModerationAction = "delete"
)

// IModerationNotifier tells admins about new shops and owners about decisions.
// Implementations queue the work; a returned error never undoes a transition.
type IModerationNotifier interface {
	NotifyShopRegistered(ctx context.Context, shop *models.Shop, owner *models.User) error
	NotifyShopDecision(ctx context.Context, shop *models.Shop, owner *models.User, action ModerationAction) error
}

// IImageJobs schedules post-upload processing of stored listing images.
type IImageJobs interface {
	EnqueueImageNormalisation(ctx context.Context, listingID primitive.ObjectID, key string) error
}
