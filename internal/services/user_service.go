package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pasindubuddhika1999/findmyphone/internal/apperrors"
	"github.com/pasindubuddhika1999/findmyphone/internal/auth"
	"github.com/pasindubuddhika1999/findmyphone/internal/cache"
	"github.com/pasindubuddhika1999/findmyphone/internal/db"
	"github.com/pasindubuddhika1999/findmyphone/internal/models"
	"github.com/pasindubuddhika1999/findmyphone/internal/policy"
	"github.com/pasindubuddhika1999/findmyphone/internal/validation"
)

var errListingsUnavailable = errors.New("user service has no listing service for listing bulk actions")

// IUserService defines the account operations.
type IUserService interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	Login(ctx context.Context, input LoginInput) (*LoginResult, error)
	FindByID(ctx context.Context, userID primitive.ObjectID) (*models.User, error)
	GetProfile(ctx context.Context, p policy.Principal) (*Profile, error)
	UpdateProfile(ctx context.Context, p policy.Principal, patch ProfilePatch) (*models.User, error)
	ChangePassword(ctx context.Context, p policy.Principal, input ChangePasswordInput) error
	// Admin operations
	ListUsers(ctx context.Context, p policy.Principal, params UserSearchParams) (*UserPage, error)
	ToggleBan(ctx context.Context, p policy.Principal, userID primitive.ObjectID) (*models.User, error)
	ChangeRole(ctx context.Context, p policy.Principal, userID primitive.ObjectID, role models.Role) (*models.User, error)
	DeleteUser(ctx context.Context, p policy.Principal, userID primitive.ObjectID) error
	BulkAction(ctx context.Context, p policy.Principal, input BulkActionInput) (*BulkActionResult, error)
}

// LoginInput identifies the account by email or phone number.
type LoginInput struct {
	Identifier string `json:"identifier" validate:"required,max=100"`
	Password   string `json:"password" validate:"required"`
}

// LoginResult is an authenticated account with the role it acts as.
type LoginResult struct {
	User          *models.User
	Shop          *models.Shop
	EffectiveRole models.Role
}

// Profile is an account with its shop, if any.
type Profile struct {
	User          *models.User `json:"user"`
	Shop          *models.Shop `json:"shop,omitempty"`
	EffectiveRole models.Role  `json:"role"`
}

type ProfilePatch struct {
	Username    *string `json:"username" validate:"omitnil,min=3,max=30,username"`
	Email       *string `json:"email" validate:"omitnil,omitempty,email,max=100"`
	PhoneNumber *string `json:"phoneNumber" validate:"omitnil,phone"`
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6,max=128"`
}

type UserSearchParams struct {
	Search string
	Role   string
	Banned *bool
	Page   int
	Limit  int
}

type UserPage struct {
	Items       []models.User `json:"items"`
	Total       int64         `json:"totalCount"`
	TotalPages  int64         `json:"totalPages"`
	CurrentPage int           `json:"currentPage"`
	Limit       int64         `json:"limit"`
}

// Bulk actions over users.
const (
	BulkBan         = "ban"
	BulkUnban       = "unban"
	BulkDelete      = "delete"
	BulkResolve     = "resolve"
	BulkDeletePosts = "delete-posts"
)

// BulkActionInput applies one action to many users (or, for resolve, to listings).
type BulkActionInput struct {
	Action string   `json:"action" validate:"required,oneof=ban unban delete resolve delete-posts"`
	IDs    []string `json:"ids" validate:"required,min=1,max=100,dive,mongodb"`
}

type BulkActionResult struct {
	Action   string   `json:"action"`
	Affected int64    `json:"affected"`
	Skipped  []string `json:"skipped,omitempty"`
}

// userService implements IUserService.
type userService struct {
	db       *mongo.Database
	listings IListingService
	banList  cache.IBanList
}

// NewUserService creates a new UserService. banList may be nil.
func NewUserService(db *mongo.Database, listings IListingService, banList cache.IBanList) IUserService {
	return &userService{db: db, listings: listings, banList: banList}
}

func (s *userService) collection() *mongo.Collection {
	return s.db.Collection(db.UsersCollection)
}

// Register creates an individual account.
func (s *userService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	return insertUser(ctx, s.db, input, models.AccountTypeIndividual)
}

// Login checks credentials and the moderation gate, and stamps lastLogin.
func (s *userService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	identifier := strings.TrimSpace(input.Identifier)
	filter := bson.M{"phone_number": identifier}
	if strings.Contains(identifier, "@") {
		filter = bson.M{"email": normaliseEmail(identifier)}
	}

	var user models.User
	err := s.collection().FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.Unauthenticated("Invalid credentials")
		}
		return nil, fmt.Errorf("error finding user %s: %w", identifier, err)
	}
	if !auth.CheckPasswordHash(input.Password, user.PasswordHash) {
		return nil, apperrors.Unauthenticated("Invalid credentials")
	}
	if user.IsBanned {
		return nil, apperrors.Unauthenticated("This account has been banned")
	}

	var shop *models.Shop
	if user.AccountType == models.AccountTypeShop {
		shop, err = findShopByUserID(ctx, s.db, user.ID)
		if err != nil && apperrors.KindOf(err) != apperrors.KindNotFound {
			return nil, err
		}
	}
	role, err := EffectiveRole(&user, shop)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if _, err := s.collection().UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{"$set": bson.M{"last_login": now}}); err != nil {
		log.Printf("WARN: failed to stamp last login for %s: %v", user.ID.Hex(), err)
	} else {
		user.LastLogin = &now
	}

	return &LoginResult{User: &user, Shop: shop, EffectiveRole: role}, nil
}

func (s *userService) FindByID(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	return findUserByID(ctx, s.db, userID)
}

func (s *userService) GetProfile(ctx context.Context, p policy.Principal) (*Profile, error) {
	if err := policy.RequireAuthenticated(p); err != nil {
		return nil, err
	}
	user, err := s.FindByID(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	profile := &Profile{User: user, EffectiveRole: models.RoleUser}
	if user.AccountType == models.AccountTypeShop {
		shop, err := findShopByUserID(ctx, s.db, user.ID)
		if err != nil && apperrors.KindOf(err) != apperrors.KindNotFound {
			return nil, err
		}
		profile.Shop = shop
	}
	if role, err := EffectiveRole(user, profile.Shop); err == nil {
		profile.EffectiveRole = role
	} else if apperrors.KindOf(err) == apperrors.KindPendingApproval {
		profile.EffectiveRole = models.RoleUser
	}
	return profile, nil
}

func (s *userService) UpdateProfile(ctx context.Context, p policy.Principal, patch ProfilePatch) (*models.User, error) {
	if err := policy.RequireAuthenticated(p); err != nil {
		return nil, err
	}
	if err := validation.Struct(patch); err != nil {
		return nil, err
	}

	set := bson.M{}
	unset := bson.M{}
	if patch.Username != nil {
		set["username"] = strings.TrimSpace(*patch.Username)
	}
	if patch.PhoneNumber != nil {
		set["phone_number"] = strings.TrimSpace(*patch.PhoneNumber)
	}
	if patch.Email != nil {
		// An empty email removes it; the sparse index ignores absent fields
		if email := normaliseEmail(*patch.Email); email != "" {
			set["email"] = email
		} else {
			unset["email"] = ""
		}
	}
	if len(set) == 0 && len(unset) == 0 {
		return nil, apperrors.Validation("No valid fields provided for update")
	}
	set["updated_at"] = time.Now().UTC()

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	var updated models.User
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := s.collection().FindOneAndUpdate(ctx, bson.M{"_id": p.UserID}, update, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound("User")
		}
		if conflict := userConflict(err); conflict != nil {
			return nil, conflict
		}
		return nil, fmt.Errorf("failed to update profile of %s: %w", p.UserID.Hex(), err)
	}
	return &updated, nil
}

func (s *userService) ChangePassword(ctx context.Context, p policy.Principal, input ChangePasswordInput) error {
	if err := policy.RequireAuthenticated(p); err != nil {
		return err
	}
	if err := validation.Struct(input); err != nil {
		return err
	}
	user, err := s.FindByID(ctx, p.UserID)
	if err != nil {
		return err
	}
	if !auth.CheckPasswordHash(input.CurrentPassword, user.PasswordHash) {
		return apperrors.Validation("", apperrors.Field("currentPassword", "password", "is incorrect"))
	}
	hash, err := auth.HashPassword(input.NewPassword)
	if err != nil {
		return err
	}
	_, err = s.collection().UpdateOne(ctx, bson.M{"_id": user.ID},
		bson.M{"$set": bson.M{"password": hash, "updated_at": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("failed to change password of %s: %w", user.ID.Hex(), err)
	}
	return nil
}

func (s *userService) ListUsers(ctx context.Context, p policy.Principal, params UserSearchParams) (*UserPage, error) {
	if err := policy.RequireAdmin(p); err != nil {
		return nil, err
	}

	filter := bson.M{}
	if search := strings.TrimSpace(params.Search); search != "" {
		rx := containsRegex(search)
		filter["$or"] = bson.A{
			bson.M{"username": rx},
			bson.M{"email": rx},
			bson.M{"phone_number": rx},
		}
	}
	switch params.Role {
	case "", StatusAll:
	case string(models.RoleUser), string(models.RoleAdmin):
		filter["role"] = params.Role
	case string(models.RoleShop):
		filter["account_type"] = models.AccountTypeShop
	default:
		return nil, apperrors.Validation("", apperrors.Field("role", "oneof", "must be one of: user, shop, admin, all"))
	}
	if params.Banned != nil {
		filter["is_banned"] = *params.Banned
	}

	page, limit := normalisePage(params.Page, params.Limit, QueryDefaults{PageSize: 20, MaxPageSize: 100})
	total, err := s.collection().CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(page-1) * limit).
		SetLimit(limit)
	cursor, err := s.collection().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return &UserPage{Items: users, Total: total, TotalPages: totalPages(total, limit), CurrentPage: page, Limit: limit}, nil
}

func (s *userService) ToggleBan(ctx context.Context, p policy.Principal, userID primitive.ObjectID) (*models.User, error) {
	target, err := s.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	action := policy.ActionBan
	if target.IsBanned {
		action = policy.ActionUnban
	}
	if err := policy.CanManageUser(p, target, action); err != nil {
		return nil, err
	}
	if err := s.setBanned(ctx, []primitive.ObjectID{target.ID}, !target.IsBanned); err != nil {
		return nil, err
	}
	target.IsBanned = !target.IsBanned
	return target, nil
}

// setBanned writes the flag and mirrors it into the ban list read by the auth middleware.
func (s *userService) setBanned(ctx context.Context, ids []primitive.ObjectID, banned bool) error {
	_, err := s.collection().UpdateMany(ctx, bson.M{"_id": bson.M{"$in": ids}},
		bson.M{"$set": bson.M{"is_banned": banned, "updated_at": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("failed to update ban flag: %w", err)
	}
	if s.banList == nil {
		return nil
	}
	for _, id := range ids {
		var listErr error
		if banned {
			listErr = s.banList.Ban(ctx, id.Hex())
		} else {
			listErr = s.banList.Unban(ctx, id.Hex())
		}
		if listErr != nil {
			log.Printf("CRITICAL: ban list out of sync for %s: %v", id.Hex(), listErr)
		}
	}
	return nil
}

func (s *userService) ChangeRole(ctx context.Context, p policy.Principal, userID primitive.ObjectID, role models.Role) (*models.User, error) {
	target, err := s.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := policy.CanManageUser(p, target, policy.ActionChangeRole); err != nil {
		return nil, err
	}
	if !role.IsValidStored() {
		return nil, apperrors.Validation("", apperrors.Field("role", "oneof", "must be one of: user, admin"))
	}

	var updated models.User
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err = s.collection().FindOneAndUpdate(ctx, bson.M{"_id": target.ID},
		bson.M{"$set": bson.M{"role": role, "updated_at": time.Now().UTC()}}, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound("User")
		}
		return nil, fmt.Errorf("failed to change role of %s: %w", target.ID.Hex(), err)
	}
	return &updated, nil
}

// DeleteUser removes an account together with its listings and shop.
func (s *userService) DeleteUser(ctx context.Context, p policy.Principal, userID primitive.ObjectID) error {
	target, err := s.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := policy.CanManageUser(p, target, policy.ActionDelete); err != nil {
		return err
	}
	_, err = s.deleteUsers(ctx, []primitive.ObjectID{target.ID})
	return err
}

func (s *userService) deleteUsers(ctx context.Context, ids []primitive.ObjectID) (int64, error) {
	if s.listings != nil {
		if _, err := s.listings.PurgeByAuthors(ctx, ids); err != nil {
			return 0, fmt.Errorf("failed to delete listings of users: %w", err)
		}
	}
	if _, err := s.db.Collection(db.ShopsCollection).DeleteMany(ctx, bson.M{"user_id": bson.M{"$in": ids}}); err != nil {
		return 0, fmt.Errorf("failed to delete shops of users: %w", err)
	}
	result, err := s.collection().DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete users: %w", err)
	}
	if s.banList != nil {
		for _, id := range ids {
			_ = s.banList.Unban(ctx, id.Hex())
		}
	}
	return result.DeletedCount, nil
}

// BulkAction applies an admin action to many accounts. Accounts the policy protects
// (admins, the caller) are skipped and reported rather than failing the batch.
// "resolve" takes listing ids.
func (s *userService) BulkAction(ctx context.Context, p policy.Principal, input BulkActionInput) (*BulkActionResult, error) {
	if err := policy.RequireAdmin(p); err != nil {
		return nil, err
	}
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(input.IDs))
	for _, hex := range input.IDs {
		id, _ := primitive.ObjectIDFromHex(hex) // validated above
		ids = append(ids, id)
	}
	result := &BulkActionResult{Action: input.Action}

	if (input.Action == BulkResolve || input.Action == BulkDeletePosts) && s.listings == nil {
		return nil, errListingsUnavailable
	}
	if input.Action == BulkResolve {
		n, err := s.listings.BulkResolve(ctx, p, ids)
		if err != nil {
			return nil, err
		}
		result.Affected = n
		return result, nil
	}

	cursor, err := s.collection().Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to load users for bulk action: %w", err)
	}
	var targets []models.User
	if err := cursor.All(ctx, &targets); err != nil {
		return nil, fmt.Errorf("failed to decode users for bulk action: %w", err)
	}

	action := map[string]policy.UserAction{
		BulkBan:         policy.ActionBan,
		BulkUnban:       policy.ActionUnban,
		BulkDelete:      policy.ActionDelete,
		BulkDeletePosts: policy.ActionDelete,
	}[input.Action]

	allowed := make([]primitive.ObjectID, 0, len(targets))
	for i := range targets {
		if err := policy.CanManageUser(p, &targets[i], action); err != nil {
			result.Skipped = append(result.Skipped, targets[i].ID.Hex())
			continue
		}
		allowed = append(allowed, targets[i].ID)
	}
	if len(allowed) == 0 {
		return result, nil
	}

	switch input.Action {
	case BulkBan, BulkUnban:
		if err := s.setBanned(ctx, allowed, input.Action == BulkBan); err != nil {
			return nil, err
		}
		result.Affected = int64(len(allowed))
	case BulkDelete:
		n, err := s.deleteUsers(ctx, allowed)
		if err != nil {
			return nil, err
		}
		result.Affected = n
	case BulkDeletePosts:
		n, err := s.listings.PurgeByAuthors(ctx, allowed)
		if err != nil {
			return nil, err
		}
		result.Affected = n
	}
	return result, nil
}
