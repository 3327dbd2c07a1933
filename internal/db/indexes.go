package db

import (
	"context"
	"fmt"
	"log"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names shared by services, seeding and tests.
const (
	ListingsCollection  = "listings"
	UsersCollection     = "users"
	ShopsCollection     = "shops"
	BrandsCollection    = "phone_brands"
	ModelsCollection    = "phone_models"
	ColorsCollection    = "phone_colors"
	DistrictsCollection = "districts"
	TownsCollection     = "towns"
	BannersCollection   = "banners"
)

// ListingTextIndexName is the weighted full-text index used by listing search.
const ListingTextIndexName = "listing_text"

// AllCollections lists every collection the application owns.
var AllCollections = []string{
	ListingsCollection, UsersCollection, ShopsCollection,
	BrandsCollection, ModelsCollection, ColorsCollection,
	DistrictsCollection, TownsCollection, BannersCollection,
}

func indexModels() map[string][]mongo.IndexModel {
	unique := func(name string) *options.IndexOptions {
		return options.Index().SetUnique(true).SetName(name)
	}

	return map[string][]mongo.IndexModel{
		ListingsCollection: {
			{
				Keys: bson.D{
					{Key: "title", Value: "text"},
					{Key: "description", Value: "text"},
					{Key: "phone_model", Value: "text"},
					{Key: "brand", Value: "text"},
					{Key: "lost_location", Value: "text"},
				},
				Options: options.Index().SetName(ListingTextIndexName).SetWeights(bson.D{
					{Key: "title", Value: 5},
					{Key: "phone_model", Value: 4},
					{Key: "brand", Value: 3},
					{Key: "description", Value: 1},
					{Key: "lost_location", Value: 1},
				}),
			},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "is_public", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "author", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "imei", Value: 1}}},
		},
		UsersCollection: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: unique("username_unique")},
			// Email is optional; sparse keeps users without one from colliding
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique("email_unique").SetSparse(true)},
			{Keys: bson.D{{Key: "phone_number", Value: 1}}},
		},
		ShopsCollection: {
			{Keys: bson.D{{Key: "shop_name", Value: 1}}, Options: unique("shop_name_unique")},
			{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: unique("shop_user_unique")},
			{Keys: bson.D{{Key: "moderation_status", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		BrandsCollection: {
			{Keys: bson.D{{Key: "name", Value: 1}}, Options: unique("brand_name_unique")},
		},
		ModelsCollection: {
			{Keys: bson.D{{Key: "brand_id", Value: 1}, {Key: "name", Value: 1}}, Options: unique("model_brand_name_unique")},
		},
		ColorsCollection: {
			{Keys: bson.D{{Key: "model_id", Value: 1}, {Key: "name", Value: 1}}, Options: unique("color_model_name_unique")},
		},
		DistrictsCollection: {
			{Keys: bson.D{{Key: "name", Value: 1}}, Options: unique("district_name_unique")},
		},
		TownsCollection: {
			{Keys: bson.D{{Key: "district_id", Value: 1}, {Key: "name", Value: 1}}, Options: unique("town_district_name_unique")},
		},
		BannersCollection: {
			{Keys: bson.D{{Key: "is_active", Value: 1}, {Key: "order", Value: 1}}},
		},
	}
}

// EnsureIndexes creates every index the services rely on. Creating an existing index is a no-op.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	for collection, models := range indexModels() {
		err := Try(func() error {
			_, err := database.Collection(collection).Indexes().CreateMany(ctx, models)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", collection, err)
		}
	}
	log.Printf("Indexes ensured on %d collections", len(indexModels()))
	return nil
}
