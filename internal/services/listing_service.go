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
	"github.com/pasindubuddhika1999/findmyphone/internal/config"
	"github.com/pasindubuddhika1999/findmyphone/internal/db"
	"github.com/pasindubuddhika1999/findmyphone/internal/models"
	"github.com/pasindubuddhika1999/findmyphone/internal/policy"
	"github.com/pasindubuddhika1999/findmyphone/internal/storage"
	"github.com/pasindubuddhika1999/findmyphone/internal/validation"
)

// IListingService defines the lost-phone report operations.
type IListingService interface {
	SearchListings(ctx context.Context, params ListingSearchParams) (*ListingPage, error)
	SearchByIMEI(ctx context.Context, imei string, page, limit int) (*ListingPage, error)
	ListByAuthor(ctx context.Context, p policy.Principal, status string, page, limit int) (*ListingPage, error)
	AdminSearch(ctx context.Context, p policy.Principal, params ListingSearchParams) (*ListingPage, error)
	ViewListing(ctx context.Context, listingID primitive.ObjectID) (*models.Listing, error)
	FindListingByID(ctx context.Context, listingID primitive.ObjectID) (*models.Listing, error)
	CreateListing(ctx context.Context, p policy.Principal, input ListingInput, images []storage.ImageUpload) (*models.Listing, error)
	UpdateListing(ctx context.Context, p policy.Principal, listingID primitive.ObjectID, patch ListingPatch) (*models.Listing, error)
	ResolveListing(ctx context.Context, p policy.Principal, listingID primitive.ObjectID) (*models.Listing, error)
	DeleteListing(ctx context.Context, p policy.Principal, listingID primitive.ObjectID) error
	PurgeListing(ctx context.Context, p policy.Principal, listingID primitive.ObjectID) error
	BulkResolve(ctx context.Context, p policy.Principal, listingIDs []primitive.ObjectID) (int64, error)
	BulkPurge(ctx context.Context, p policy.Principal, listingIDs []primitive.ObjectID) (int64, error)
	// PurgeByAuthors removes every listing of the given users. Callers authorize.
	PurgeByAuthors(ctx context.Context, authorIDs []primitive.ObjectID) (int64, error)
	Statistics(ctx context.Context) (*ListingStatistics, error)
}

// ListingInput is a new lost-phone report as submitted by a client.
type ListingInput struct {
	Title        string              `json:"title" validate:"required,min=5,max=100"`
	Description  string              `json:"description" validate:"required,min=10,max=1000"`
	IMEI         string              `json:"imei" validate:"required,imei"`
	PhoneModel   string              `json:"phoneModel" validate:"required,max=100"`
	Brand        string              `json:"brand" validate:"required,max=50"`
	Color        string              `json:"color" validate:"omitempty,max=30"`
	District     string              `json:"district" validate:"required,max=50"`
	Town         string              `json:"town" validate:"required,max=50"`
	LostLocation string              `json:"lostLocation" validate:"required,max=200"`
	LostDate     string              `json:"lostDate" validate:"required,isodate"`
	ContactInfo  models.ContactInfo  `json:"contactInfo"`
	Tags         []string            `json:"tags" validate:"omitempty,max=10,dive,max=30"`
	Coordinates  *models.Coordinates `json:"coordinates"`
}

// ListingPatch holds the editable fields of a listing; nil means unchanged.
type ListingPatch struct {
	Title        *string             `json:"title" validate:"omitnil,min=5,max=100"`
	Description  *string             `json:"description" validate:"omitnil,min=10,max=1000"`
	IMEI         *string             `json:"imei" validate:"omitnil,imei"`
	PhoneModel   *string             `json:"phoneModel" validate:"omitnil,min=1,max=100"`
	Brand        *string             `json:"brand" validate:"omitnil,min=1,max=50"`
	Color        *string             `json:"color" validate:"omitnil,max=30"`
	District     *string             `json:"district" validate:"omitnil,min=1,max=50"`
	Town         *string             `json:"town" validate:"omitnil,min=1,max=50"`
	LostLocation *string             `json:"lostLocation" validate:"omitnil,min=1,max=200"`
	LostDate     *string             `json:"lostDate" validate:"omitnil,isodate"`
	ContactInfo  *models.ContactInfo `json:"contactInfo"`
	Tags         []string            `json:"tags" validate:"omitempty,max=10,dive,max=30"`
	Coordinates  *models.Coordinates `json:"coordinates"`
}

// toSet maps the provided fields to their document keys. Only these keys are ever updated.
func (p ListingPatch) toSet() bson.M {
	set := bson.M{}
	str := func(key string, v *string) {
		if v != nil {
			set[key] = strings.TrimSpace(*v)
		}
	}
	str("title", p.Title)
	str("description", p.Description)
	str("imei", p.IMEI)
	str("phone_model", p.PhoneModel)
	str("brand", p.Brand)
	str("color", p.Color)
	str("district", p.District)
	str("town", p.Town)
	str("lost_location", p.LostLocation)
	if p.LostDate != nil {
		// Already validated
		lostDate, _ := validation.ParseDate(*p.LostDate)
		set["lost_date"] = lostDate
	}
	if p.ContactInfo != nil {
		set["contact_info"] = *p.ContactInfo
	}
	if p.Tags != nil {
		set["tags"] = cleanTags(p.Tags)
	}
	if p.Coordinates != nil {
		set["coordinates"] = *p.Coordinates
	}
	return set
}

// ListingStatistics are the public counters shown on the home page.
type ListingStatistics struct {
	TotalPosts    int64 `json:"totalPosts"`
	ActivePosts   int64 `json:"activePosts"`
	ResolvedPosts int64 `json:"resolvedPosts"`
}

// listingService implements IListingService.
type listingService struct {
	db        *mongo.Database
	cfg       *config.Config
	images    storage.IImageStore
	imageJobs IImageJobs
}

// NewListingService creates a new ListingService. imageJobs may be nil.
func NewListingService(db *mongo.Database, cfg *config.Config, images storage.IImageStore, imageJobs IImageJobs) IListingService {
	return &listingService{db: db, cfg: cfg, images: images, imageJobs: imageJobs}
}

func (s *listingService) collection() *mongo.Collection {
	return s.db.Collection(db.ListingsCollection)
}

func (s *listingService) defaults(ownListings bool, status string) QueryDefaults {
	pageSize, ownPageSize, maxPageSize := s.cfg.ListingDefaults()
	if ownListings {
		pageSize = ownPageSize
	}
	return QueryDefaults{PageSize: pageSize, MaxPageSize: maxPageSize, DefaultStatus: status}
}

// SearchListings runs a public search: public listings only, active unless asked otherwise.
func (s *listingService) SearchListings(ctx context.Context, params ListingSearchParams) (*ListingPage, error) {
	q, err := BuildListingQuery(params, s.defaults(false, string(models.ListingActive)))
	if err != nil {
		return nil, err
	}
	return s.runQuery(ctx, q)
}

// SearchByIMEI finds active public listings whose IMEI contains the given digits.
func (s *listingService) SearchByIMEI(ctx context.Context, imei string, page, limit int) (*ListingPage, error) {
	imei = strings.TrimSpace(imei)
	if imei == "" || strings.Trim(imei, "0123456789") != "" || len(imei) > 15 {
		return nil, apperrors.Validation("", apperrors.Field("imei", "numeric", "must be up to 15 digits"))
	}
	return s.SearchListings(ctx, ListingSearchParams{IMEI: imei, Page: page, Limit: limit})
}

// ListByAuthor returns the caller's own listings regardless of visibility.
// Deleted listings are hidden unless status asks for them.
func (s *listingService) ListByAuthor(ctx context.Context, p policy.Principal, status string, page, limit int) (*ListingPage, error) {
	if err := policy.RequireAuthenticated(p); err != nil {
		return nil, err
	}
	q, err := BuildListingQuery(ListingSearchParams{Status: status, Page: page, Limit: limit}, s.defaults(true, StatusAll))
	if err != nil {
		return nil, err
	}
	delete(q.Filter, "is_public")
	q.Filter["author"] = p.UserID
	if status == "" {
		q.Filter["status"] = bson.M{"$ne": models.ListingDeleted}
	}
	return s.runQuery(ctx, q)
}

// AdminSearch is the moderation view: every status and visibility, status defaults to all.
func (s *listingService) AdminSearch(ctx context.Context, p policy.Principal, params ListingSearchParams) (*ListingPage, error) {
	if err := policy.RequireAdmin(p); err != nil {
		return nil, err
	}
	q, err := BuildListingQuery(params, s.defaults(false, StatusAll))
	if err != nil {
		return nil, err
	}
	delete(q.Filter, "is_public")
	return s.runQuery(ctx, q)
}

// runQuery counts and fetches one page for the same filter.
func (s *listingService) runQuery(ctx context.Context, q *ListingQuery) (*ListingPage, error) {
	collection := s.collection()

	total, err := collection.CountDocuments(ctx, q.Filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count listings: %w", err)
	}

	opts := options.Find().SetSort(q.Sort).SetSkip(q.Skip).SetLimit(q.Limit)
	if len(q.Projection) > 0 {
		opts.SetProjection(q.Projection)
	}
	cursor, err := collection.Find(ctx, q.Filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to search listings: %w", err)
	}
	var items []models.Listing
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("failed to decode listings: %w", err)
	}

	s.attachDisplayNames(ctx, items)
	return NewListingPage(items, total, q), nil
}

// ViewListing returns a public listing and counts the view.
func (s *listingService) ViewListing(ctx context.Context, listingID primitive.ObjectID) (*models.Listing, error) {
	filter := bson.M{
		"_id":       listingID,
		"is_public": true,
		"status":    bson.M{"$ne": models.ListingDeleted},
	}
	update := bson.M{"$inc": bson.M{"views": 1}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	// Not retried: a replayed $inc would count the view twice
	var listing models.Listing
	err := s.collection().FindOneAndUpdate(ctx, filter, update, opts).Decode(&listing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound("Listing")
		}
		return nil, fmt.Errorf("failed to view listing %s: %w", listingID.Hex(), err)
	}
	listingViewsTotal.Inc()

	items := []models.Listing{listing}
	s.attachDisplayNames(ctx, items)
	return &items[0], nil
}

// FindListingByID loads a listing in any state without side effects.
func (s *listingService) FindListingByID(ctx context.Context, listingID primitive.ObjectID) (*models.Listing, error) {
	var listing models.Listing
	err := s.collection().FindOne(ctx, bson.M{"_id": listingID}).Decode(&listing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound("Listing")
		}
		return nil, fmt.Errorf("error finding listing by ID %s: %w", listingID.Hex(), err)
	}
	return &listing, nil
}

// CreateListing stores a new report. Images are uploaded before the listing is
// written, and removed again if anything after the upload fails.
func (s *listingService) CreateListing(ctx context.Context, p policy.Principal, input ListingInput, images []storage.ImageUpload) (*models.Listing, error) {
	if err := policy.RequireAuthenticated(p); err != nil {
		return nil, err
	}

	// Shop accounts are gated on the current shop record, not on the token.
	// A deleted shop leaves the account posting as an individual.
	var shop *models.Shop
	if p.AccountType == models.AccountTypeShop {
		var err error
		shop, err = findShopByUserID(ctx, s.db, p.UserID)
		if err != nil && apperrors.KindOf(err) != apperrors.KindNotFound {
			return nil, err
		}
	}
	if err := policy.CanCreateListing(p, shop); err != nil {
		return nil, err
	}

	if err := s.validateInput(input, images); err != nil {
		return nil, err
	}
	lostDate, _ := validation.ParseDate(input.LostDate)

	stored, err := s.uploadImages(ctx, images)
	if err != nil {
		return nil, apperrors.Upstream("Image upload failed", err)
	}

	listing := &models.Listing{
		Base:         models.NewBase(),
		Title:        strings.TrimSpace(input.Title),
		Description:  strings.TrimSpace(input.Description),
		IMEI:         input.IMEI,
		PhoneModel:   strings.TrimSpace(input.PhoneModel),
		Brand:        strings.TrimSpace(input.Brand),
		Color:        strings.TrimSpace(input.Color),
		District:     strings.TrimSpace(input.District),
		Town:         strings.TrimSpace(input.Town),
		LostLocation: strings.TrimSpace(input.LostLocation),
		LostDate:     lostDate,
		ContactInfo:  input.ContactInfo,
		Images:       stored,
		Status:       models.ListingActive,
		Author:       p.UserID,
		IsPublic:     true,
		Tags:         cleanTags(input.Tags),
		Coordinates:  input.Coordinates,
		AuthorName:   p.Username,
	}
	producer := "individual"
	if shop.IsApproved() {
		listing.CreatedByShop = &shop.ID
		listing.IsShopCreated = true
		listing.ShopName = shop.ShopName
		producer = "shop"
	}

	err = db.Try(func() error {
		_, insertErr := s.collection().InsertOne(ctx, listing)
		return insertErr
	})
	if err != nil {
		s.discardImages(ctx, stored)
		return nil, fmt.Errorf("failed to insert listing for user %s: %w", p.UserID.Hex(), err)
	}
	listingsCreatedTotal.WithLabelValues(producer).Inc()

	if s.imageJobs != nil && s.images != nil && s.images.Backend() == config.ImageStorageS3 {
		for _, img := range stored {
			if err := s.imageJobs.EnqueueImageNormalisation(ctx, listing.ID, img.PublicID); err != nil {
				log.Printf("WARN: failed to enqueue normalisation of %s for listing %s: %v", img.PublicID, listing.ID.Hex(), err)
			}
		}
	}

	return listing, nil
}

func (s *listingService) validateInput(input ListingInput, images []storage.ImageUpload) error {
	maxImages := s.cfg.ImageMaxPerListing
	if maxImages <= 0 {
		maxImages = 5
	}
	maxBytes := int64(s.cfg.ImageMaxSizeMB) * 1024 * 1024

	var imageErrs []apperrors.FieldError
	if len(images) > maxImages {
		imageErrs = append(imageErrs, apperrors.Field("images", "max", fmt.Sprintf("must contain at most %d items", maxImages)))
	}
	for i, img := range images {
		if err := storage.CheckImage(img, maxBytes); err != nil {
			imageErrs = append(imageErrs, apperrors.Field(fmt.Sprintf("images[%d]", i), "image", err.Error()))
		}
	}
	var imageErr error
	if len(imageErrs) > 0 {
		imageErr = apperrors.Validation("", imageErrs...)
	}
	return validation.Merge(validation.Struct(input), imageErr)
}

func (s *listingService) uploadImages(ctx context.Context, images []storage.ImageUpload) ([]models.ListingImage, error) {
	stored := make([]models.ListingImage, 0, len(images))
	if len(images) == 0 {
		return stored, nil
	}
	if s.images == nil {
		return nil, errors.New("no image store configured")
	}
	for _, img := range images {
		out, err := s.images.Upload(ctx, img)
		if err != nil {
			s.discardImages(ctx, stored)
			return nil, err
		}
		stored = append(stored, models.ListingImage{URL: out.URL, PublicID: out.PublicID})
	}
	return stored, nil
}

// discardImages removes stored objects, logging failures. It outlives a cancelled request.
func (s *listingService) discardImages(ctx context.Context, images []models.ListingImage) {
	if s.images == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, img := range images {
		if err := s.images.Delete(ctx, img.PublicID); err != nil {
			log.Printf("WARN: failed to remove image %s: %v", img.PublicID, err)
		}
	}
}

// UpdateListing edits whitelisted fields of a listing owned by the caller (or any listing for admins).
func (s *listingService) UpdateListing(ctx context.Context, p policy.Principal, listingID primitive.ObjectID, patch ListingPatch) (*models.Listing, error) {
	listing, err := s.FindListingByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if err := policy.CanModifyListing(p, listing); err != nil {
		return nil, err
	}
	if listing.Status == models.ListingDeleted {
		return nil, apperrors.NotFound("Listing")
	}
	if err := validation.Struct(patch); err != nil {
		return nil, err
	}

	set := patch.toSet()
	if len(set) == 0 {
		return nil, apperrors.Validation("No valid fields provided for update")
	}
	set["updated_at"] = time.Now().UTC()

	filter := bson.M{"_id": listingID, "status": bson.M{"$ne": models.ListingDeleted}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Listing
	err = s.collection().FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound("Listing")
		}
		return nil, fmt.Errorf("failed to update listing %s: %w", listingID.Hex(), err)
	}
	return &updated, nil
}

// ResolveListing marks an active listing as resolved. There is no way back to active.
func (s *listingService) ResolveListing(ctx context.Context, p policy.Principal, listingID primitive.ObjectID) (*models.Listing, error) {
	listing, err := s.FindListingByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if err := policy.CanModifyListing(p, listing); err != nil {
		return nil, err
	}
	if listing.Status != models.ListingActive {
		return nil, apperrors.Conflict("Only active listings can be resolved")
	}

	now := time.Now().UTC()
	result, err := s.collection().UpdateOne(ctx,
		bson.M{"_id": listingID, "status": models.ListingActive},
		bson.M{"$set": bson.M{"status": models.ListingResolved, "resolved_at": now, "updated_at": now}},
	)
	if err != nil {
		return nil, fmt.Errorf("db error resolving listing %s: %w", listingID.Hex(), err)
	}
	if result.MatchedCount == 0 {
		// Someone else resolved or deleted it in between
		return nil, apperrors.Conflict("Only active listings can be resolved")
	}

	listing.Status = models.ListingResolved
	listing.ResolvedAt = &now
	listing.UpdatedAt = now
	return listing, nil
}

// DeleteListing performs a soft delete by setting the status to deleted.
func (s *listingService) DeleteListing(ctx context.Context, p policy.Principal, listingID primitive.ObjectID) error {
	listing, err := s.FindListingByID(ctx, listingID)
	if err != nil {
		return err
	}
	if err := policy.CanModifyListing(p, listing); err != nil {
		return err
	}
	if listing.Status == models.ListingDeleted {
		return nil
	}

	now := time.Now().UTC()
	_, err = s.collection().UpdateOne(ctx,
		bson.M{"_id": listingID},
		bson.M{"$set": bson.M{"status": models.ListingDeleted, "updated_at": now}},
	)
	if err != nil {
		return fmt.Errorf("db error deleting listing %s: %w", listingID.Hex(), err)
	}
	return nil
}

// PurgeListing physically removes a listing and its images. Admin only.
func (s *listingService) PurgeListing(ctx context.Context, p policy.Principal, listingID primitive.ObjectID) error {
	listing, err := s.FindListingByID(ctx, listingID)
	if err != nil {
		return err
	}
	if err := policy.RequireAdmin(p); err != nil {
		return err
	}
	if _, err := s.collection().DeleteOne(ctx, bson.M{"_id": listing.ID}); err != nil {
		return fmt.Errorf("db error purging listing %s: %w", listingID.Hex(), err)
	}
	s.discardImages(ctx, listing.Images)
	return nil
}

func (s *listingService) BulkResolve(ctx context.Context, p policy.Principal, listingIDs []primitive.ObjectID) (int64, error) {
	if err := policy.RequireAdmin(p); err != nil {
		return 0, err
	}
	if len(listingIDs) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	result, err := s.collection().UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": listingIDs}, "status": models.ListingActive},
		bson.M{"$set": bson.M{"status": models.ListingResolved, "resolved_at": now, "updated_at": now}},
	)
	if err != nil {
		return 0, fmt.Errorf("db error resolving listings: %w", err)
	}
	return result.ModifiedCount, nil
}

func (s *listingService) BulkPurge(ctx context.Context, p policy.Principal, listingIDs []primitive.ObjectID) (int64, error) {
	if err := policy.RequireAdmin(p); err != nil {
		return 0, err
	}
	if len(listingIDs) == 0 {
		return 0, nil
	}
	return s.purgeWhere(ctx, bson.M{"_id": bson.M{"$in": listingIDs}})
}

func (s *listingService) PurgeByAuthors(ctx context.Context, authorIDs []primitive.ObjectID) (int64, error) {
	if len(authorIDs) == 0 {
		return 0, nil
	}
	return s.purgeWhere(ctx, bson.M{"author": bson.M{"$in": authorIDs}})
}

func (s *listingService) purgeWhere(ctx context.Context, filter bson.M) (int64, error) {
	collection := s.collection()

	cursor, err := collection.Find(ctx, filter, options.Find().SetProjection(bson.M{"images": 1}))
	if err != nil {
		return 0, fmt.Errorf("failed to load listings to purge: %w", err)
	}
	var doomed []models.Listing
	if err := cursor.All(ctx, &doomed); err != nil {
		return 0, fmt.Errorf("failed to decode listings to purge: %w", err)
	}

	result, err := collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to purge listings: %w", err)
	}
	for _, l := range doomed {
		s.discardImages(ctx, l.Images)
	}
	return result.DeletedCount, nil
}

func (s *listingService) Statistics(ctx context.Context) (*ListingStatistics, error) {
	collection := s.collection()
	count := func(filter bson.M) (int64, error) {
		filter["is_public"] = true
		return collection.CountDocuments(ctx, filter)
	}

	var stats ListingStatistics
	var err error
	if stats.TotalPosts, err = count(bson.M{"status": bson.M{"$ne": models.ListingDeleted}}); err != nil {
		return nil, fmt.Errorf("failed to count listings: %w", err)
	}
	if stats.ActivePosts, err = count(bson.M{"status": models.ListingActive}); err != nil {
		return nil, fmt.Errorf("failed to count active listings: %w", err)
	}
	if stats.ResolvedPosts, err = count(bson.M{"status": models.ListingResolved}); err != nil {
		return nil, fmt.Errorf("failed to count resolved listings: %w", err)
	}
	return &stats, nil
}

// attachDisplayNames fills author username and shop name. Failures only cost the display fields.
func (s *listingService) attachDisplayNames(ctx context.Context, items []models.Listing) {
	if len(items) == 0 {
		return
	}
	authorIDs := make([]primitive.ObjectID, 0, len(items))
	shopIDs := make([]primitive.ObjectID, 0)
	for _, l := range items {
		authorIDs = append(authorIDs, l.Author)
		if l.CreatedByShop != nil {
			shopIDs = append(shopIDs, *l.CreatedByShop)
		}
	}

	usernames := map[primitive.ObjectID]string{}
	var users []models.User
	cursor, err := s.db.Collection(db.UsersCollection).Find(ctx,
		bson.M{"_id": bson.M{"$in": authorIDs}},
		options.Find().SetProjection(bson.M{"username": 1}))
	if err == nil {
		err = cursor.All(ctx, &users)
	}
	if err != nil {
		log.Printf("WARN: failed to load listing authors: %v", err)
	}
	for _, u := range users {
		usernames[u.ID] = u.Username
	}

	shopNames := map[primitive.ObjectID]string{}
	if len(shopIDs) > 0 {
		var shops []models.Shop
		cursor, err := s.db.Collection(db.ShopsCollection).Find(ctx,
			bson.M{"_id": bson.M{"$in": shopIDs}},
			options.Find().SetProjection(bson.M{"shop_name": 1}))
		if err == nil {
			err = cursor.All(ctx, &shops)
		}
		if err != nil {
			log.Printf("WARN: failed to load listing shops: %v", err)
		}
		for _, sh := range shops {
			shopNames[sh.ID] = sh.ShopName
		}
	}

	for i := range items {
		items[i].AuthorName = usernames[items[i].Author]
		if items[i].CreatedByShop != nil {
			items[i].ShopName = shopNames[*items[i].CreatedByShop]
		}
	}
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := map[string]bool{}
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// findShopByUserID loads the shop attached to an account.
func findShopByUserID(ctx context.Context, database *mongo.Database, userID primitive.ObjectID) (*models.Shop, error) {
	var shop models.Shop
	err := database.Collection(db.ShopsCollection).FindOne(ctx, bson.M{"user_id": userID}).Decode(&shop)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound("Shop profile")
		}
		return nil, fmt.Errorf("failed to load shop for user %s: %w", userID.Hex(), err)
	}
	return &shop, nil
}
