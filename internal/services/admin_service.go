package services

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pasindubuddhika1999/findmyphone/internal/db"
	"github.com/pasindubuddhika1999/findmyphone/internal/models"
	"github.com/pasindubuddhika1999/findmyphone/internal/policy"
)

const dashboardRecentLimit = 5

// IAdminService builds the admin dashboard.
type IAdminService interface {
	Dashboard(ctx context.Context, p policy.Principal) (*Dashboard, error)
}

type Dashboard struct {
	TotalUsers    int64            `json:"totalUsers"`
	TotalPosts    int64            `json:"totalPosts"`
	ActivePosts   int64            `json:"activePosts"`
	ResolvedPosts int64            `json:"resolvedPosts"`
	BannedUsers   int64            `json:"bannedUsers"`
	PendingShops  int64            `json:"pendingShops"`
	RecentPosts   []models.Listing `json:"recentPosts"`
	RecentUsers   []models.User    `json:"recentUsers"`
}

type adminService struct {
	db       *mongo.Database
	listings IListingService
	shops    IShopService
}

func NewAdminService(db *mongo.Database, listings IListingService, shops IShopService) IAdminService {
	return &adminService{db: db, listings: listings, shops: shops}
}

// Dashboard counts every listing regardless of visibility; admins see the whole store.
func (s *adminService) Dashboard(ctx context.Context, p policy.Principal) (*Dashboard, error) {
	if err := policy.RequireAdmin(p); err != nil {
		return nil, err
	}
	users := s.db.Collection(db.UsersCollection)
	listings := s.db.Collection(db.ListingsCollection)

	d := &Dashboard{}
	counts := []struct {
		dest   *int64
		coll   *mongo.Collection
		filter bson.M
	}{
		{&d.TotalUsers, users, bson.M{}},
		{&d.BannedUsers, users, bson.M{"is_banned": true}},
		{&d.TotalPosts, listings, bson.M{}},
		{&d.ActivePosts, listings, bson.M{"status": models.ListingActive}},
		{&d.ResolvedPosts, listings, bson.M{"status": models.ListingResolved}},
	}
	for _, c := range counts {
		n, err := c.coll.CountDocuments(ctx, c.filter)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s for dashboard: %w", c.coll.Name(), err)
		}
		*c.dest = n
	}

	var err error
	if d.PendingShops, err = s.shops.CountPending(ctx); err != nil {
		return nil, err
	}

	recentPosts, err := s.listings.AdminSearch(ctx, p, ListingSearchParams{Limit: dashboardRecentLimit})
	if err != nil {
		return nil, err
	}
	d.RecentPosts = recentPosts.Items

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(dashboardRecentLimit)
	cursor, err := users.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent users: %w", err)
	}
	d.RecentUsers = []models.User{}
	if err := cursor.All(ctx, &d.RecentUsers); err != nil {
		return nil, fmt.Errorf("failed to decode recent users: %w", err)
	}
	return d, nil
}
