package services

import (
	"context"
	"errors"
	"fmt"
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

// IBannerService manages the home page banners.
type IBannerService interface {
	ListActive(ctx context.Context) ([]models.Banner, error)
	ListAll(ctx context.Context, p policy.Principal) ([]models.Banner, error)
	GetBanner(ctx context.Context, p policy.Principal, id primitive.ObjectID) (*models.Banner, error)
	CreateBanner(ctx context.Context, p policy.Principal, input BannerInput) (*models.Banner, error)
	UpdateBanner(ctx context.Context, p policy.Principal, id primitive.ObjectID, input BannerInput) (*models.Banner, error)
	DeleteBanner(ctx context.Context, p policy.Principal, id primitive.ObjectID) error
}

type BannerInput struct {
	Title      string `json:"title" validate:"required,max=100"`
	Subtitle   string `json:"subtitle" validate:"max=200"`
	ImageURL   string `json:"imageUrl" validate:"required,url"`
	ButtonText string `json:"buttonText" validate:"max=50"`
	ButtonLink string `json:"buttonLink" validate:"max=300"`
	IsActive   *bool  `json:"isActive"`
	Order      int    `json:"order" validate:"gte=0"`
}

type bannerService struct {
	db *mongo.Database
}

func NewBannerService(db *mongo.Database) IBannerService {
	return &bannerService{db: db}
}

func (s *bannerService) collection() *mongo.Collection {
	return s.db.Collection(db.BannersCollection)
}

func (s *bannerService) list(ctx context.Context, filter bson.M) ([]models.Banner, error) {
	opts := options.Find().SetSort(bson.D{{Key: "order", Value: 1}, {Key: "created_at", Value: -1}})
	cursor, err := s.collection().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query banners: %w", err)
	}
	banners := []models.Banner{}
	if err := cursor.All(ctx, &banners); err != nil {
		return nil, fmt.Errorf("failed to decode banners: %w", err)
	}
	return banners, nil
}

// ListActive returns the banners shown on the home page, in display order.
func (s *bannerService) ListActive(ctx context.Context) ([]models.Banner, error) {
	return s.list(ctx, bson.M{"is_active": true})
}

func (s *bannerService) ListAll(ctx context.Context, p policy.Principal) ([]models.Banner, error) {
	if err := policy.CanManageMetadata(p); err != nil {
		return nil, err
	}
	return s.list(ctx, bson.M{})
}

func (s *bannerService) find(ctx context.Context, id primitive.ObjectID) (*models.Banner, error) {
	var banner models.Banner
	if err := s.collection().FindOne(ctx, bson.M{"_id": id}).Decode(&banner); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound("Banner")
		}
		return nil, fmt.Errorf("error finding banner %s: %w", id.Hex(), err)
	}
	return &banner, nil
}

func (s *bannerService) GetBanner(ctx context.Context, p policy.Principal, id primitive.ObjectID) (*models.Banner, error) {
	banner, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.CanManageMetadata(p); err != nil {
		return nil, err
	}
	return banner, nil
}

func (s *bannerService) CreateBanner(ctx context.Context, p policy.Principal, input BannerInput) (*models.Banner, error) {
	if err := policy.CanManageMetadata(p); err != nil {
		return nil, err
	}
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	banner := &models.Banner{Base: models.NewBase()}
	input.apply(banner)
	err := db.Try(func() error {
		_, insertErr := s.collection().InsertOne(ctx, banner)
		return insertErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert banner: %w", err)
	}
	return banner, nil
}

// UpdateBanner replaces the editable fields of a banner.
func (s *bannerService) UpdateBanner(ctx context.Context, p policy.Principal, id primitive.ObjectID, input BannerInput) (*models.Banner, error) {
	banner, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.CanManageMetadata(p); err != nil {
		return nil, err
	}
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	input.apply(banner)
	banner.UpdatedAt = time.Now().UTC()

	result, err := s.collection().ReplaceOne(ctx, bson.M{"_id": banner.ID}, banner)
	if err != nil {
		return nil, fmt.Errorf("failed to update banner %s: %w", id.Hex(), err)
	}
	if result.MatchedCount == 0 {
		return nil, apperrors.NotFound("Banner")
	}
	return banner, nil
}

func (s *bannerService) DeleteBanner(ctx context.Context, p policy.Principal, id primitive.ObjectID) error {
	banner, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if err := policy.CanManageMetadata(p); err != nil {
		return err
	}
	if _, err := s.collection().DeleteOne(ctx, bson.M{"_id": banner.ID}); err != nil {
		return fmt.Errorf("failed to delete banner %s: %w", id.Hex(), err)
	}
	return nil
}

func (in BannerInput) apply(b *models.Banner) {
	b.Title = in.Title
	b.Subtitle = in.Subtitle
	b.ImageURL = in.ImageURL
	b.ButtonText = in.ButtonText
	b.ButtonLink = in.ButtonLink
	b.Order = in.Order
	b.IsActive = in.IsActive == nil || *in.IsActive
}
