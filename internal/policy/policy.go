// Package policy decides whether a principal may perform an operation.
// Callers load the target first (so a missing target is reported as not found)
// and only then ask the policy, which answers unauthenticated or forbidden.
package policy

import (
	"github.com/pasindubuddhika1999/findmyphone/internal/apperrors"
	"github.com/pasindubuddhika1999/findmyphone/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Principal is the verified caller of an operation.
type Principal struct {
	UserID      primitive.ObjectID
	Username    string
	Role        models.Role
	AccountType models.AccountType
	IsBanned    bool
}

// Anonymous is the principal of an unauthenticated request.
var Anonymous = Principal{}

func (p Principal) IsAuthenticated() bool {
	return !p.UserID.IsZero()
}

func (p Principal) IsAdmin() bool {
	return p.IsAuthenticated() && p.Role == models.RoleAdmin
}

// UserAction is an administrative action taken on another account.
type UserAction string

const (
	ActionBan        UserAction = "ban"
	ActionUnban      UserAction = "unban"
	ActionDelete     UserAction = "delete"
	ActionChangeRole UserAction = "change_role"
)

// RequireAuthenticated rejects anonymous and banned principals.
func RequireAuthenticated(p Principal) error {
	if !p.IsAuthenticated() {
		return apperrors.Unauthenticated("")
	}
	if p.IsBanned {
		return apperrors.Forbidden()
	}
	return nil
}

func RequireAdmin(p Principal) error {
	if err := RequireAuthenticated(p); err != nil {
		return err
	}
	if p.Role != models.RoleAdmin {
		return apperrors.Forbidden()
	}
	return nil
}

// CanCreateListing allows any authenticated user. A shop account may post only
// when its shop is not waiting for moderation: pending shops are refused,
// approved shops post as the shop, rejected or revoked shops post as individuals.
// shop is nil for individual accounts.
func CanCreateListing(p Principal, shop *models.Shop) error {
	if err := RequireAuthenticated(p); err != nil {
		return err
	}
	if p.AccountType == models.AccountTypeShop && shop != nil && shop.ModerationStatus == models.ModerationPending {
		return apperrors.Forbidden()
	}
	return nil
}

// CanModifyListing allows the owner or an admin to edit, resolve or delete a listing.
func CanModifyListing(p Principal, listing *models.Listing) error {
	if err := RequireAuthenticated(p); err != nil {
		return err
	}
	if p.Role == models.RoleAdmin || listing.OwnedBy(p.UserID) {
		return nil
	}
	return apperrors.Forbidden()
}

// CanManageUser guards ban, delete and role changes. Only admins may act, never
// on another admin, and never on themselves.
func CanManageUser(p Principal, target *models.User, action UserAction) error {
	if err := RequireAdmin(p); err != nil {
		return err
	}
	if target.ID == p.UserID {
		return apperrors.Forbidden()
	}
	if target.Role == models.RoleAdmin {
		// Demoting or banning another admin is not allowed; unban of an admin is harmless
		if action != ActionUnban {
			return apperrors.Forbidden()
		}
	}
	return nil
}

// CanManageMetadata guards brand, model, color, district, town and banner mutation.
func CanManageMetadata(p Principal) error {
	return RequireAdmin(p)
}

// CanModerateShops guards shop list, approve, reject, revoke and delete.
func CanModerateShops(p Principal) error {
	return RequireAdmin(p)
}
