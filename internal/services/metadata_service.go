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
	"github.com/pasindubuddhika1999/findmyphone/internal/cache"
	"github.com/pasindubuddhika1999/findmyphone/internal/db"
	"github.com/pasindubuddhika1999/findmyphone/internal/models"
	"github.com/pasindubuddhika1999/findmyphone/internal/policy"
	"github.com/pasindubuddhika1999/findmyphone/internal/seed"
	"github.com/pasindubuddhika1999/findmyphone/internal/validation"
)

// metadataCachePrefix namespaces every cached metadata read.
const metadataCachePrefix = "meta:"

// metadataListLimit caps model and color lookups.
const metadataListLimit = 50

// IMetadataService manages the brand -> model -> color and district -> town vocabularies.
type IMetadataService interface {
	ListBrands(ctx context.Context) ([]models.PhoneBrand, error)
	CreateBrand(ctx context.Context, p policy.Principal, input NameInput) (*models.PhoneBrand, error)
	UpdateBrand(ctx context.Context, p policy.Principal, id primitive.ObjectID, input NameInput) (*models.PhoneBrand, error)
	DeleteBrand(ctx context.Context, p policy.Principal, id primitive.ObjectID) error

	ListModels(ctx context.Context, brandID primitive.ObjectID, search string) ([]models.PhoneModel, error)
	CreateModel(ctx context.Context, p policy.Principal, input ModelInput) (*models.PhoneModel, error)
	UpdateModel(ctx context.Context, p policy.Principal, id primitive.ObjectID, input NameInput) (*models.PhoneModel, error)
	DeleteModel(ctx context.Context, p policy.Principal, id primitive.ObjectID) error

	ListColors(ctx context.Context, modelID primitive.ObjectID, search string) ([]models.PhoneColor, error)
	CreateColor(ctx context.Context, p policy.Principal, input ColorInput) (*models.PhoneColor, error)
	UpdateColor(ctx context.Context, p policy.Principal, id primitive.ObjectID, patch ColorPatch) (*models.PhoneColor, error)
	DeleteColor(ctx context.Context, p policy.Principal, id primitive.ObjectID) error

	ListDistricts(ctx context.Context, includeInactive bool) ([]models.District, error)
	CreateDistrict(ctx context.Context, p policy.Principal, input DistrictInput) (*models.District, error)
	UpdateDistrict(ctx context.Context, p policy.Principal, id primitive.ObjectID, patch PlacePatch) (*models.District, error)
	DeleteDistrict(ctx context.Context, p policy.Principal, id primitive.ObjectID) error

	ListTowns(ctx context.Context, districtID primitive.ObjectID, includeInactive bool) ([]models.Town, error)
	CreateTown(ctx context.Context, p policy.Principal, input TownInput) (*models.Town, error)
	UpdateTown(ctx context.Context, p policy.Principal, id primitive.ObjectID, patch PlacePatch) (*models.Town, error)
	DeleteTown(ctx context.Context, p policy.Principal, id primitive.ObjectID) error

	Seed(ctx context.Context, catalog *seed.Catalog) (*SeedResult, error)
}

type NameInput struct {
	Name string `json:"name" validate:"required,max=50"`
}

type ModelInput struct {
	BrandID string `json:"brandId" validate:"required,mongodb"`
	Name    string `json:"name" validate:"required,max=50"`
}

type ColorInput struct {
	ModelID string `json:"modelId" validate:"required,mongodb"`
	Name    string `json:"name" validate:"required,max=50"`
	HexCode string `json:"hexCode" validate:"omitempty,hexcolor"`
}

type ColorPatch struct {
	Name    *string `json:"name" validate:"omitnil,min=1,max=50"`
	HexCode *string `json:"hexCode" validate:"omitnil,omitempty,hexcolor"`
}

type DistrictInput struct {
	Name     string `json:"name" validate:"required,max=50"`
	IsActive *bool  `json:"isActive"`
}

type TownInput struct {
	DistrictID string `json:"districtId" validate:"required,mongodb"`
	Name       string `json:"name" validate:"required,max=50"`
	IsActive   *bool  `json:"isActive"`
}

// PlacePatch updates a district or a town.
type PlacePatch struct {
	Name     *string `json:"name" validate:"omitnil,min=1,max=50"`
	IsActive *bool   `json:"isActive"`
}

// SeedResult counts the entries inserted by Seed; existing entries are not counted.
type SeedResult struct {
	Brands    int `json:"brands"`
	Models    int `json:"models"`
	Colors    int `json:"colors"`
	Districts int `json:"districts"`
	Towns     int `json:"towns"`
}

// metadataService implements IMetadataService.
type metadataService struct {
	db       *mongo.Database
	cache    cache.IJSONCache
	cacheTTL time.Duration
}

// NewMetadataService creates a new MetadataService. jsonCache may be nil.
func NewMetadataService(db *mongo.Database, jsonCache cache.IJSONCache, cacheTTL time.Duration) IMetadataService {
	if jsonCache == nil {
		jsonCache = cache.NoopCache{}
	}
	return &metadataService{db: db, cache: jsonCache, cacheTTL: cacheTTL}
}

// cached serves key from the cache, or runs load and stores its result in dest.
func (s *metadataService) cached(ctx context.Context, key string, dest interface{}, load func() error) error {
	key = metadataCachePrefix + key
	hit, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		log.Printf("WARN: metadata cache read failed: %v", err)
	}
	if hit {
		metadataCacheLookups.WithLabelValues("hit").Inc()
		return nil
	}
	metadataCacheLookups.WithLabelValues("miss").Inc()
	if err := load(); err != nil {
		return err
	}
	if err := s.cache.Set(ctx, key, dest, s.cacheTTL); err != nil {
		log.Printf("WARN: metadata cache write failed: %v", err)
	}
	return nil
}

func (s *metadataService) invalidate(ctx context.Context) {
	if err := s.cache.InvalidatePrefix(ctx, metadataCachePrefix); err != nil {
		log.Printf("WARN: metadata cache invalidation failed: %v", err)
	}
}

func (s *metadataService) findAll(ctx context.Context, collection string, filter bson.M, limit int64, dest interface{}) error {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := s.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", collection, err)
	}
	defer cursor.Close(ctx)
	if err := cursor.All(ctx, dest); err != nil {
		return fmt.Errorf("failed to decode %s: %w", collection, err)
	}
	return nil
}

func (s *metadataService) findOne(ctx context.Context, collection, entity string, id primitive.ObjectID, dest interface{}) error {
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(dest)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperrors.NotFound(entity)
		}
		return fmt.Errorf("error finding %s %s: %w", strings.ToLower(entity), id.Hex(), err)
	}
	return nil
}

func (s *metadataService) insert(ctx context.Context, collection, entity string, doc interface{}) error {
	err := db.Try(func() error {
		_, insertErr := s.db.Collection(collection).InsertOne(ctx, doc)
		return insertErr
	})
	if err != nil {
		if db.IsMongoDuplicateKeyError(err) {
			return apperrors.Conflict(entity + " already exists")
		}
		return fmt.Errorf("failed to insert %s: %w", strings.ToLower(entity), err)
	}
	s.invalidate(ctx)
	return nil
}

func (s *metadataService) update(ctx context.Context, collection, entity string, id primitive.ObjectID, set bson.M, dest interface{}) error {
	if len(set) == 0 {
		return apperrors.Validation("No valid fields provided for update")
	}
	set["updated_at"] = time.Now().UTC()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := s.db.Collection(collection).FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(dest)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperrors.NotFound(entity)
		}
		if db.IsMongoDuplicateKeyError(err) {
			return apperrors.Conflict(entity + " already exists")
		}
		return fmt.Errorf("failed to update %s %s: %w", strings.ToLower(entity), id.Hex(), err)
	}
	s.invalidate(ctx)
	return nil
}

// remove deletes a node that has no children. childField names the parent reference in childCollection.
func (s *metadataService) remove(ctx context.Context, p policy.Principal, collection, entity string, id primitive.ObjectID, childCollection, childField, childEntity string) error {
	var existing bson.M
	if err := s.findOne(ctx, collection, entity, id, &existing); err != nil {
		return err
	}
	if err := policy.CanManageMetadata(p); err != nil {
		return err
	}
	if childCollection != "" {
		n, err := s.db.Collection(childCollection).CountDocuments(ctx, bson.M{childField: id})
		if err != nil {
			return fmt.Errorf("failed to count %s of %s: %w", childCollection, id.Hex(), err)
		}
		if n > 0 {
			return apperrors.Conflict(fmt.Sprintf("%s has %d %s; delete them first", entity, n, childEntity))
		}
	}
	result, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", strings.ToLower(entity), id.Hex(), err)
	}
	if result.DeletedCount == 0 {
		return apperrors.NotFound(entity)
	}
	s.invalidate(ctx)
	return nil
}

func parentID(hex string) primitive.ObjectID {
	id, _ := primitive.ObjectIDFromHex(hex) // validated by the mongodb rule
	return id
}

// Brands

func (s *metadataService) ListBrands(ctx context.Context) ([]models.PhoneBrand, error) {
	brands := []models.PhoneBrand{}
	err := s.cached(ctx, "brands", &brands, func() error {
		return s.findAll(ctx, db.BrandsCollection, bson.M{}, 0, &brands)
	})
	return brands, err
}

func (s *metadataService) CreateBrand(ctx context.Context, p policy.Principal, input NameInput) (*models.PhoneBrand, error) {
	if err := policy.CanManageMetadata(p); err != nil {
		return nil, err
	}
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	brand := &models.PhoneBrand{Base: models.NewBase(), Name: strings.TrimSpace(input.Name)}
	if err := s.insert(ctx, db.BrandsCollection, "Brand", brand); err != nil {
		return nil, err
	}
	return brand, nil
}

func (s *metadataService) UpdateBrand(ctx context.Context, p policy.Principal, id primitive.ObjectID, input NameInput) (*models.PhoneBrand, error) {
	var brand models.PhoneBrand
	if err := s.findOne(ctx, db.BrandsCollection, "Brand", id, &brand); err != nil {
		return nil, err
	}
	if err := policy.CanManageMetadata(p); err != nil {
		return nil, err
	}
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	if err := s.update(ctx, db.BrandsCollection, "Brand", id, bson.M{"name": strings.TrimSpace(input.Name)}, &brand); err != nil {
		return nil, err
	}
	return &brand, nil
}

func (s *metadataService) DeleteBrand(ctx context.Context, p policy.Principal, id primitive.ObjectID) error {
	return s.remove(ctx, p, db.BrandsCollection, "Brand", id, db.ModelsCollection, "brand_id", "models")
}

// Models

func (s *metadataService) ListModels(ctx context.Context, brandID primitive.ObjectID, search string) ([]models.PhoneModel, error) {
	filter := bson.M{}
	if !brandID.IsZero() {
		filter["brand_id"] = brandID
	}
	items := []models.PhoneModel{}
	load := func() error {
		return s.findAll(ctx, db.ModelsCollection, filter, metadataListLimit, &items)
	}
	if search = strings.TrimSpace(search); search != "" {
		filter["name"] = containsRegex(search)
		return items, load()
	}
	return items, s.cached(ctx, "models:"+brandID.Hex(), &items, load)
}

func (s *metadataService) CreateModel(ctx context.Context, p policy.Principal, input ModelInput) (*models.PhoneModel, error) {
	if err := policy.CanManageMetadata(p); err != nil {
		return nil, err
	}
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	var brand models.PhoneBrand
	if err := s.findOne(ctx, db.BrandsCollection, "Brand", parentID(input.BrandID), &brand); err != nil {
		return nil, err
	}
	model := &models.PhoneModel{Base: models.NewBase(), Name: strings.TrimSpace(input.Name), BrandID: brand.ID}
	if err := s.insert(ctx, db.ModelsCollection, "Model", model); err != nil {
		return nil, err
	}
	return model, nil
}

func (s *metadataService) UpdateModel(ctx context.Context, p policy.Principal, id primitive.ObjectID, input NameInput) (*models.PhoneModel, error) {
	var model models.PhoneModel
	if err := s.findOne(ctx, db.ModelsCollection, "Model", id, &model); err != nil {
		return nil, err
	}
	if err := policy.CanManageMetadata(p); err != nil {
		return nil, err
	}
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	if err := s.update(ctx, db.ModelsCollection, "Model", id, bson.M{"name": strings.TrimSpace(input.Name)}, &model); err != nil {
		return nil, err
	}
	return &model, nil
}

func (s *metadataService) DeleteModel(ctx context.Context, p policy.Principal, id primitive.ObjectID) error {
	return s.remove(ctx, p, db.ModelsCollection, "Model", id, db.ColorsCollection, "model_id", "colors")
}

// Colors

func (s *metadataService) ListColors(ctx context.Context, modelID primitive.ObjectID, search string) ([]models.PhoneColor, error) {
	filter := bson.M{}
	if !modelID.IsZero() {
		filter["model_id"] = modelID
	}
	items := []models.PhoneColor{}
	load := func() error {
		return s.findAll(ctx, db.ColorsCollection, filter, metadataListLimit, &items)
	}
	if search = strings.TrimSpace(search); search != "" {
		filter["name"] = containsRegex(search)
		return items, load()
	}
	return items, s.cached(ctx, "colors:"+modelID.Hex(), &items, load)
}

func (s *metadataService) CreateColor(ctx context.Context, p policy.Principal, input ColorInput) (*models.PhoneColor, error) {
	if err := policy.CanManageMetadata(p); err != nil {
		return nil, err
	}
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	var model models.PhoneModel
	if err := s.findOne(ctx, db.ModelsCollection, "Model", parentID(input.ModelID), &model); err != nil {
		return nil, err
	}
	color := &models.PhoneColor{
		Base:    models.NewBase(),
		Name:    strings.TrimSpace(input.Name),
		HexCode: strings.ToUpper(input.HexCode),
		ModelID: model.ID,
	}
	if err := s.insert(ctx, db.ColorsCollection, "Color", color); err != nil {
		return nil, err
	}
	return color, nil
}

func (s *metadataService) UpdateColor(ctx context.Context, p policy.Principal, id primitive.ObjectID, patch ColorPatch) (*models.PhoneColor, error) {
	var color models.PhoneColor
	if err := s.findOne(ctx, db.ColorsCollection, "Color", id, &color); err != nil {
		return nil, err
	}
	if err := policy.CanManageMetadata(p); err != nil {
		return nil, err
	}
	if err := validation.Struct(patch); err != nil {
		return nil, err
	}
	set := bson.M{}
	if patch.Name != nil {
		set["name"] = strings.TrimSpace(*patch.Name)
	}
	if patch.HexCode != nil {
		set["hex_code"] = strings.ToUpper(*patch.HexCode)
	}
	if err := s.update(ctx, db.ColorsCollection, "Color", id, set, &color); err != nil {
		return nil, err
	}
	return &color, nil
}

func (s *metadataService) DeleteColor(ctx context.Context, p policy.Principal, id primitive.ObjectID) error {
	return s.remove(ctx, p, db.ColorsCollection, "Color", id, "", "", "")
}

// Districts and towns

func (s *metadataService) ListDistricts(ctx context.Context, includeInactive bool) ([]models.District, error) {
	filter := bson.M{"is_active": true}
	key := "districts:active"
	if includeInactive {
		filter, key = bson.M{}, "districts:all"
	}
	items := []models.District{}
	err := s.cached(ctx, key, &items, func() error {
		return s.findAll(ctx, db.DistrictsCollection, filter, 0, &items)
	})
	return items, err
}

func (s *metadataService) CreateDistrict(ctx context.Context, p policy.Principal, input DistrictInput) (*models.District, error) {
	if err := policy.CanManageMetadata(p); err != nil {
		return nil, err
	}
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	district := &models.District{Base: models.NewBase(), Name: strings.TrimSpace(input.Name), IsActive: input.IsActive == nil || *input.IsActive}
	if err := s.insert(ctx, db.DistrictsCollection, "District", district); err != nil {
		return nil, err
	}
	return district, nil
}

func (s *metadataService) UpdateDistrict(ctx context.Context, p policy.Principal, id primitive.ObjectID, patch PlacePatch) (*models.District, error) {
	var district models.District
	if err := s.findOne(ctx, db.DistrictsCollection, "District", id, &district); err != nil {
		return nil, err
	}
	if err := policy.CanManageMetadata(p); err != nil {
		return nil, err
	}
	if err := validation.Struct(patch); err != nil {
		return nil, err
	}
	if err := s.update(ctx, db.DistrictsCollection, "District", id, patch.toSet(), &district); err != nil {
		return nil, err
	}
	return &district, nil
}

func (s *metadataService) DeleteDistrict(ctx context.Context, p policy.Principal, id primitive.ObjectID) error {
	return s.remove(ctx, p, db.DistrictsCollection, "District", id, db.TownsCollection, "district_id", "towns")
}

func (s *metadataService) ListTowns(ctx context.Context, districtID primitive.ObjectID, includeInactive bool) ([]models.Town, error) {
	filter := bson.M{}
	if !districtID.IsZero() {
		filter["district_id"] = districtID
	}
	key := "towns:" + districtID.Hex() + ":all"
	if !includeInactive {
		filter["is_active"] = true
		key = "towns:" + districtID.Hex() + ":active"
	}
	items := []models.Town{}
	err := s.cached(ctx, key, &items, func() error {
		return s.findAll(ctx, db.TownsCollection, filter, 0, &items)
	})
	return items, err
}

func (s *metadataService) CreateTown(ctx context.Context, p policy.Principal, input TownInput) (*models.Town, error) {
	if err := policy.CanManageMetadata(p); err != nil {
		return nil, err
	}
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	var district models.District
	if err := s.findOne(ctx, db.DistrictsCollection, "District", parentID(input.DistrictID), &district); err != nil {
		return nil, err
	}
	town := &models.Town{
		Base:       models.NewBase(),
		Name:       strings.TrimSpace(input.Name),
		DistrictID: district.ID,
		IsActive:   input.IsActive == nil || *input.IsActive,
	}
	if err := s.insert(ctx, db.TownsCollection, "Town", town); err != nil {
		return nil, err
	}
	return town, nil
}

func (s *metadataService) UpdateTown(ctx context.Context, p policy.Principal, id primitive.ObjectID, patch PlacePatch) (*models.Town, error) {
	var town models.Town
	if err := s.findOne(ctx, db.TownsCollection, "Town", id, &town); err != nil {
		return nil, err
	}
	if err := policy.CanManageMetadata(p); err != nil {
		return nil, err
	}
	if err := validation.Struct(patch); err != nil {
		return nil, err
	}
	if err := s.update(ctx, db.TownsCollection, "Town", id, patch.toSet(), &town); err != nil {
		return nil, err
	}
	return &town, nil
}

func (s *metadataService) DeleteTown(ctx context.Context, p policy.Principal, id primitive.ObjectID) error {
	return s.remove(ctx, p, db.TownsCollection, "Town", id, "", "", "")
}

func (p PlacePatch) toSet() bson.M {
	set := bson.M{}
	if p.Name != nil {
		set["name"] = strings.TrimSpace(*p.Name)
	}
	if p.IsActive != nil {
		set["is_active"] = *p.IsActive
	}
	return set
}

// Seed inserts the catalog entries that do not exist yet. Running it twice changes nothing.
func (s *metadataService) Seed(ctx context.Context, catalog *seed.Catalog) (*SeedResult, error) {
	result := &SeedResult{}
	for _, b := range catalog.Brands {
		brandID, created, err := s.ensure(ctx, db.BrandsCollection, bson.M{"name": strings.TrimSpace(b.Name)}, nil)
		if err != nil {
			return result, err
		}
		result.Brands += created
		for _, m := range b.Models {
			modelID, created, err := s.ensure(ctx, db.ModelsCollection, bson.M{"brand_id": brandID, "name": strings.TrimSpace(m.Name)}, nil)
			if err != nil {
				return result, err
			}
			result.Models += created
			for _, c := range m.Colors {
				_, created, err := s.ensure(ctx, db.ColorsCollection,
					bson.M{"model_id": modelID, "name": strings.TrimSpace(c.Name)},
					bson.M{"hex_code": strings.ToUpper(c.HexCode)})
				if err != nil {
					return result, err
				}
				result.Colors += created
			}
		}
	}
	for _, d := range catalog.Districts {
		districtID, created, err := s.ensure(ctx, db.DistrictsCollection, bson.M{"name": strings.TrimSpace(d.Name)}, bson.M{"is_active": true})
		if err != nil {
			return result, err
		}
		result.Districts += created
		for _, t := range d.Towns {
			_, created, err := s.ensure(ctx, db.TownsCollection,
				bson.M{"district_id": districtID, "name": strings.TrimSpace(t)},
				bson.M{"is_active": true})
			if err != nil {
				return result, err
			}
			result.Towns += created
		}
	}
	s.invalidate(ctx)
	return result, nil
}

// ensure upserts the document identified by key and returns its id and 1 if it was inserted.
func (s *metadataService) ensure(ctx context.Context, collection string, key bson.M, fields bson.M) (primitive.ObjectID, int, error) {
	now := time.Now().UTC()
	onInsert := bson.M{"_id": primitive.NewObjectID(), "created_at": now, "updated_at": now}
	for k, v := range fields {
		onInsert[k] = v
	}
	coll := s.db.Collection(collection)
	var result *mongo.UpdateResult
	err := db.Try(func() error {
		var upsertErr error
		result, upsertErr = coll.UpdateOne(ctx, key, bson.M{"$setOnInsert": onInsert}, options.Update().SetUpsert(true))
		return upsertErr
	})
	if err != nil {
		return primitive.NilObjectID, 0, fmt.Errorf("failed to seed %s %v: %w", collection, key, err)
	}
	if id, ok := result.UpsertedID.(primitive.ObjectID); ok {
		return id, 1, nil
	}

	var existing struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := coll.FindOne(ctx, key, options.FindOne().SetProjection(bson.M{"_id": 1})).Decode(&existing); err != nil {
		return primitive.NilObjectID, 0, fmt.Errorf("failed to read seeded %s %v: %w", collection, key, err)
	}
	return existing.ID, 0, nil
}
