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
	"github.com/pasindubuddhika1999/findmyphone/internal/db"
	"github.com/pasindubuddhika1999/findmyphone/internal/models"
	"github.com/pasindubuddhika1999/findmyphone/internal/policy"
	"github.com/pasindubuddhika1999/findmyphone/internal/validation"
)

// IShopService covers shop registration and moderation.
type IShopService interface {
	RegisterShop(ctx context.Context, input ShopRegistration) (*models.User, *models.Shop, error)
	UpdateShopProfile(ctx context.Context, p policy.Principal, patch ShopProfilePatch) (*models.Shop, error)
	// Admin operations
	ListShops(ctx context.Context, p policy.Principal, params ShopSearchParams) (*ShopPage, error)
	GetShop(ctx context.Context, p policy.Principal, shopID primitive.ObjectID) (*models.Shop, error)
	Approve(ctx context.Context, p policy.Principal, shopID primitive.ObjectID) (*models.Shop, error)
	Reject(ctx context.Context, p policy.Principal, shopID primitive.ObjectID, reason string) (*models.Shop, error)
	Revoke(ctx context.Context, p policy.Principal, shopID primitive.ObjectID, reason string) (*models.Shop, error)
	DeleteShop(ctx context.Context, p policy.Principal, shopID primitive.ObjectID) error
	CountPending(ctx context.Context) (int64, error)
}

// ShopRegistration creates a shop account and its pending shop profile.
type ShopRegistration struct {
	Username      string `json:"username" validate:"required,min=3,max=30,username"`
	Email         string `json:"email" validate:"omitempty,email,max=100"`
	Password      string `json:"password" validate:"required,min=6,max=128"`
	PhoneNumber   string `json:"phoneNumber" validate:"required,phone"`
	ShopName      string `json:"shopName" validate:"required,min=2,max=100"`
	OwnerName     string `json:"ownerName" validate:"required,max=100"`
	ContactNumber string `json:"contactNumber" validate:"required,phone"`
	Address       string `json:"address" validate:"required,max=200"`
	Location      string `json:"location" validate:"required,max=100"`
	Description   string `json:"description" validate:"max=500"`
}

func (r ShopRegistration) account() RegisterInput {
	return RegisterInput{Username: r.Username, Email: r.Email, Password: r.Password, PhoneNumber: r.PhoneNumber}
}

type ShopProfilePatch struct {
	ShopName      *string `json:"shopName" validate:"omitnil,min=2,max=100"`
	OwnerName     *string `json:"ownerName" validate:"omitnil,min=1,max=100"`
	ContactNumber *string `json:"contactNumber" validate:"omitnil,phone"`
	Address       *string `json:"address" validate:"omitnil,min=1,max=200"`
	Location      *string `json:"location" validate:"omitnil,min=1,max=100"`
	Description   *string `json:"description" validate:"omitnil,max=500"`
}

type ShopSearchParams struct {
	Status    string
	Search    string
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
}

type ShopPage struct {
	Items       []models.Shop `json:"items"`
	Total       int64         `json:"totalCount"`
	TotalPages  int64         `json:"totalPages"`
	CurrentPage int           `json:"currentPage"`
	Limit       int64         `json:"limit"`
}

// shopService implements IShopService.
type shopService struct {
	db       *mongo.Database
	notifier IModerationNotifier
}

// NewShopService creates a new ShopService. notifier may be nil.
func NewShopService(db *mongo.Database, notifier IModerationNotifier) IShopService {
	return &shopService{db: db, notifier: notifier}
}

func (s *shopService) collection() *mongo.Collection {
	return s.db.Collection(db.ShopsCollection)
}

// RegisterShop stores a shop account and a pending shop. If the shop cannot be
// stored the account is removed again so the username stays free.
func (s *shopService) RegisterShop(ctx context.Context, input ShopRegistration) (*models.User, *models.Shop, error) {
	if err := validation.Struct(input); err != nil {
		return nil, nil, err
	}

	// Checked up front so a taken shop name does not cost an account insert
	count, err := s.collection().CountDocuments(ctx, bson.M{"shop_name": strings.TrimSpace(input.ShopName)})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check shop name: %w", err)
	}
	if count > 0 {
		return nil, nil, apperrors.Conflict("Shop name already taken")
	}

	user, err := insertUser(ctx, s.db, input.account(), models.AccountTypeShop)
	if err != nil {
		return nil, nil, err
	}

	shop := &models.Shop{
		Base:             models.NewBase(),
		UserID:           user.ID,
		ShopName:         strings.TrimSpace(input.ShopName),
		OwnerName:        strings.TrimSpace(input.OwnerName),
		ContactNumber:    strings.TrimSpace(input.ContactNumber),
		Address:          strings.TrimSpace(input.Address),
		Location:         strings.TrimSpace(input.Location),
		Description:      strings.TrimSpace(input.Description),
		ModerationStatus: models.ModerationPending,
	}
	err = db.Try(func() error {
		_, insertErr := s.collection().InsertOne(ctx, shop)
		return insertErr
	})
	if err != nil {
		if _, delErr := s.db.Collection(db.UsersCollection).DeleteOne(context.WithoutCancel(ctx), bson.M{"_id": user.ID}); delErr != nil {
			log.Printf("CRITICAL: orphaned shop account %s after failed shop insert: %v", user.ID.Hex(), delErr)
		}
		if conflict := shopConflict(err); conflict != nil {
			return nil, nil, conflict
		}
		return nil, nil, fmt.Errorf("failed to insert shop %s: %w", shop.ShopName, err)
	}

	shopModerationTotal.WithLabelValues(string(ModerationRegistered)).Inc()
	if s.notifier != nil {
		if err := s.notifier.NotifyShopRegistered(ctx, shop, user); err != nil {
			log.Printf("WARN: failed to notify admins about shop %s: %v", shop.ID.Hex(), err)
		}
	}
	return user, shop, nil
}

func (s *shopService) UpdateShopProfile(ctx context.Context, p policy.Principal, patch ShopProfilePatch) (*models.Shop, error) {
	if err := policy.RequireAuthenticated(p); err != nil {
		return nil, err
	}
	shop, err := findShopByUserID(ctx, s.db, p.UserID)
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(patch); err != nil {
		return nil, err
	}

	set := bson.M{}
	for field, value := range map[string]*string{
		"shop_name":      patch.ShopName,
		"owner_name":     patch.OwnerName,
		"contact_number": patch.ContactNumber,
		"address":        patch.Address,
		"location":       patch.Location,
		"description":    patch.Description,
	} {
		if value != nil {
			set[field] = strings.TrimSpace(*value)
		}
	}
	if len(set) == 0 {
		return nil, apperrors.Validation("No valid fields provided for update")
	}
	set["updated_at"] = time.Now().UTC()

	var updated models.Shop
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err = s.collection().FindOneAndUpdate(ctx, bson.M{"_id": shop.ID}, bson.M{"$set": set}, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound("Shop")
		}
		if conflict := shopConflict(err); conflict != nil {
			return nil, conflict
		}
		return nil, fmt.Errorf("failed to update shop %s: %w", shop.ID.Hex(), err)
	}
	return &updated, nil
}

// ListShops lists shops for moderation. Status defaults to all.
func (s *shopService) ListShops(ctx context.Context, p policy.Principal, params ShopSearchParams) (*ShopPage, error) {
	if err := policy.CanModerateShops(p); err != nil {
		return nil, err
	}

	var fieldErrs []apperrors.FieldError
	filter := bson.M{}
	switch status := models.ModerationStatus(params.Status); {
	case params.Status == "" || params.Status == StatusAll:
	case status.IsValid():
		filter["moderation_status"] = status
	default:
		fieldErrs = append(fieldErrs, apperrors.Field("status", "oneof", "must be one of: pending, approved, rejected, revoked, all"))
	}
	if search := strings.TrimSpace(params.Search); search != "" {
		rx := containsRegex(search)
		filter["$or"] = bson.A{
			bson.M{"shop_name": rx},
			bson.M{"owner_name": rx},
			bson.M{"location": rx},
		}
	}

	sortField := "created_at"
	switch params.SortBy {
	case "", SortByCreatedAt:
	case "shopName":
		sortField = "shop_name"
	default:
		fieldErrs = append(fieldErrs, apperrors.Field("sortBy", "oneof", "must be one of: createdAt, shopName"))
	}
	direction := -1
	switch params.SortOrder {
	case "", SortDesc:
	case SortAsc:
		direction = 1
	default:
		fieldErrs = append(fieldErrs, apperrors.Field("sortOrder", "oneof", "must be one of: asc, desc"))
	}
	if len(fieldErrs) > 0 {
		return nil, apperrors.Validation("", fieldErrs...)
	}

	page, limit := normalisePage(params.Page, params.Limit, QueryDefaults{PageSize: 10, MaxPageSize: 100})
	total, err := s.collection().CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count shops: %w", err)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: sortField, Value: direction}, {Key: "_id", Value: direction}}).
		SetSkip(int64(page-1) * limit).
		SetLimit(limit)
	cursor, err := s.collection().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list shops: %w", err)
	}
	shops := []models.Shop{}
	if err := cursor.All(ctx, &shops); err != nil {
		return nil, fmt.Errorf("failed to decode shops: %w", err)
	}
	s.attachOwners(ctx, shops)

	return &ShopPage{Items: shops, Total: total, TotalPages: totalPages(total, limit), CurrentPage: page, Limit: limit}, nil
}

func (s *shopService) GetShop(ctx context.Context, p policy.Principal, shopID primitive.ObjectID) (*models.Shop, error) {
	shop, err := s.findShop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	if err := policy.CanModerateShops(p); err != nil {
		return nil, err
	}
	items := []models.Shop{*shop}
	s.attachOwners(ctx, items)
	return &items[0], nil
}

func (s *shopService) Approve(ctx context.Context, p policy.Principal, shopID primitive.ObjectID) (*models.Shop, error) {
	return s.transition(ctx, p, shopID, ModerationApprove, "")
}

func (s *shopService) Reject(ctx context.Context, p policy.Principal, shopID primitive.ObjectID, reason string) (*models.Shop, error) {
	return s.transition(ctx, p, shopID, ModerationReject, reason)
}

func (s *shopService) Revoke(ctx context.Context, p policy.Principal, shopID primitive.ObjectID, reason string) (*models.Shop, error) {
	return s.transition(ctx, p, shopID, ModerationRevoke, reason)
}

// moderationSteps maps an action to its source and target status and the fields it stamps.
var moderationSteps = map[ModerationAction]struct {
	from, to     models.ModerationStatus
	atKey, byKey string
}{
	ModerationApprove: {models.ModerationPending, models.ModerationApproved, "approved_at", "approved_by"},
	ModerationReject:  {models.ModerationPending, models.ModerationRejected, "rejected_at", "rejected_by"},
	ModerationRevoke:  {models.ModerationApproved, models.ModerationRevoked, "revoked_at", "revoked_by"},
}

// transition applies one moderation step. The update is conditional on the
// source status, so of two concurrent approvals exactly one wins; the loser
// re-reads the shop to report why.
func (s *shopService) transition(ctx context.Context, p policy.Principal, shopID primitive.ObjectID, action ModerationAction, reason string) (*models.Shop, error) {
	step := moderationSteps[action]

	shop, err := s.findShop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	if err := policy.CanModerateShops(p); err != nil {
		return nil, err
	}
	if err := moderationError(shop, step.to); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	set := bson.M{
		"moderation_status": step.to,
		step.atKey:          now,
		step.byKey:          p.UserID,
		"updated_at":        now,
	}
	if reason = strings.TrimSpace(reason); reason != "" {
		set["decision_reason"] = reason
	}

	var updated models.Shop
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err = s.collection().FindOneAndUpdate(ctx,
		bson.M{"_id": shop.ID, "moderation_status": step.from},
		bson.M{"$set": set}, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Lost a race, or the shop vanished in between
			current, findErr := s.findShop(ctx, shopID)
			if findErr != nil {
				return nil, findErr
			}
			if err := moderationError(current, step.to); err != nil {
				return nil, err
			}
			return nil, apperrors.Conflict("Shop moderation state changed concurrently")
		}
		return nil, fmt.Errorf("failed to %s shop %s: %w", action, shop.ID.Hex(), err)
	}

	shopModerationTotal.WithLabelValues(string(action)).Inc()
	log.Printf("Shop %s (%s) moved %s -> %s by %s", updated.ID.Hex(), updated.ShopName, step.from, step.to, p.UserID.Hex())

	owner, err := findUserByID(ctx, s.db, updated.UserID)
	if err != nil {
		log.Printf("WARN: owner of shop %s not loaded: %v", updated.ID.Hex(), err)
	} else {
		updated.Owner = &models.UserSummary{ID: owner.ID, Username: owner.Username, Email: owner.EmailAddress()}
		if s.notifier != nil {
			if err := s.notifier.NotifyShopDecision(ctx, &updated, owner, action); err != nil {
				log.Printf("WARN: failed to notify owner of shop %s: %v", updated.ID.Hex(), err)
			}
		}
	}
	return &updated, nil
}

// moderationError explains why shop cannot move to next, or returns nil.
func moderationError(shop *models.Shop, next models.ModerationStatus) error {
	if shop.ModerationStatus.CanTransitionTo(next) {
		return nil
	}
	if next == models.ModerationApproved && shop.ModerationStatus == models.ModerationApproved {
		return apperrors.AlreadyApproved("Shop")
	}
	return apperrors.Conflict(fmt.Sprintf("Shop is %s and cannot be %s", shop.ModerationStatus, next))
}

// DeleteShop removes the shop record. The account stays and falls back to posting as an individual.
func (s *shopService) DeleteShop(ctx context.Context, p policy.Principal, shopID primitive.ObjectID) error {
	shop, err := s.findShop(ctx, shopID)
	if err != nil {
		return err
	}
	if err := policy.CanModerateShops(p); err != nil {
		return err
	}
	result, err := s.collection().DeleteOne(ctx, bson.M{"_id": shop.ID})
	if err != nil {
		return fmt.Errorf("failed to delete shop %s: %w", shop.ID.Hex(), err)
	}
	if result.DeletedCount == 0 {
		return apperrors.NotFound("Shop")
	}
	shopModerationTotal.WithLabelValues(string(ModerationDelete)).Inc()
	return nil
}

func (s *shopService) CountPending(ctx context.Context) (int64, error) {
	n, err := s.collection().CountDocuments(ctx, bson.M{"moderation_status": models.ModerationPending})
	if err != nil {
		return 0, fmt.Errorf("failed to count pending shops: %w", err)
	}
	return n, nil
}

func (s *shopService) findShop(ctx context.Context, shopID primitive.ObjectID) (*models.Shop, error) {
	var shop models.Shop
	err := s.collection().FindOne(ctx, bson.M{"_id": shopID}).Decode(&shop)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound("Shop")
		}
		return nil, fmt.Errorf("error finding shop by ID %s: %w", shopID.Hex(), err)
	}
	return &shop, nil
}

// attachOwners fills the display-only owner summary. Failures only cost the display field.
func (s *shopService) attachOwners(ctx context.Context, shops []models.Shop) {
	if len(shops) == 0 {
		return
	}
	ids := make([]primitive.ObjectID, 0, len(shops))
	for _, shop := range shops {
		ids = append(ids, shop.UserID)
	}
	cursor, err := s.db.Collection(db.UsersCollection).Find(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"username": 1, "email": 1}))
	if err != nil {
		log.Printf("WARN: failed to load shop owners: %v", err)
		return
	}
	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		log.Printf("WARN: failed to decode shop owners: %v", err)
		return
	}
	byID := make(map[primitive.ObjectID]*models.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}
	for i := range shops {
		if u, ok := byID[shops[i].UserID]; ok {
			shops[i].Owner = &models.UserSummary{ID: u.ID, Username: u.Username, Email: u.EmailAddress()}
		}
	}
}

func shopConflict(err error) error {
	return duplicateKeyConflict(err, map[string]string{
		"shop_name_unique": "Shop name already taken",
		"shop_user_unique": "Account already has a shop",
	}, "Shop already exists")
}
