package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pasindubuddhika1999/findmyphone/internal/apperrors"
	"github.com/pasindubuddhika1999/findmyphone/internal/config"
	"github.com/pasindubuddhika1999/findmyphone/internal/db"
	"github.com/pasindubuddhika1999/findmyphone/internal/models"
	"github.com/pasindubuddhika1999/findmyphone/internal/policy"
	"github.com/pasindubuddhika1999/findmyphone/internal/storage"
	"github.com/pasindubuddhika1999/findmyphone/internal/utils"
)

func setupServiceTestDB(t *testing.T, dbName string) *mongo.Database {
	return utils.SetupTestDB(t, dbName, db.AllCollections...)
}

func testConfig() *config.Config {
	return &config.Config{
		ImageStorage:       config.ImageStorageS3,
		ImageMaxSizeMB:     5,
		ImageMaxPerListing: 5,
		ListingPageSize:    12,
		ListingOwnPageSize: 10,
		ListingMaxPageSize: 100,
	}
}

// createTestUser stores an account with password "secret123".
func createTestUser(t *testing.T, database *mongo.Database, username string, accountType models.AccountType, role models.Role) *models.User {
	t.Helper()
	user, err := insertUser(context.Background(), database, RegisterInput{
		Username:    username,
		Password:    "secret123",
		PhoneNumber: "0771234567",
	}, accountType)
	require.NoError(t, err)
	if role == models.RoleAdmin {
		_, err = database.Collection(db.UsersCollection).UpdateByID(context.Background(), user.ID,
			bson.M{"$set": bson.M{"role": models.RoleAdmin}})
		require.NoError(t, err)
		user.Role = models.RoleAdmin
	}
	return user
}

func principalOf(user *models.User) policy.Principal {
	return policy.Principal{
		UserID:      user.ID,
		Username:    user.Username,
		Role:        user.Role,
		AccountType: user.AccountType,
		IsBanned:    user.IsBanned,
	}
}

func validListingInput() ListingInput {
	return ListingInput{
		Title:        "Lost black iPhone 13",
		Description:  "Lost near the bus stand on Friday evening.",
		IMEI:         "356938035643809",
		PhoneModel:   "iPhone 13",
		Brand:        "Apple",
		Color:        "Black",
		District:     "Colombo",
		Town:         "Nugegoda",
		LostLocation: "Nugegoda bus stand",
		LostDate:     "2024-05-10",
		ContactInfo:  models.ContactInfo{Name: "Nimal", Phone: "0771234567"},
	}
}

// pngUpload is the smallest byte sequence sniffed as image/png.
func pngUpload(name string) storage.ImageUpload {
	return storage.ImageUpload{
		Filename: name,
		Data:     append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...),
	}
}

func assertKind(t *testing.T, err error, kind apperrors.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, apperrors.KindOf(err), "unexpected error: %v", err)
}

// fakeImageStore keeps uploads in memory and can fail the nth upload.
type fakeImageStore struct {
	mu      sync.Mutex
	failOn  int
	uploads int
	stored  map[string]bool
	deleted []string
	backend string
}

func newFakeImageStore() *fakeImageStore {
	return &fakeImageStore{stored: map[string]bool{}, backend: config.ImageStorageS3}
}

func (f *fakeImageStore) Upload(_ context.Context, img storage.ImageUpload) (*storage.StoredImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	if f.failOn > 0 && f.uploads == f.failOn {
		return nil, errors.New("bucket unavailable")
	}
	key := "listings/" + primitive.NewObjectID().Hex() + ".png"
	f.stored[key] = true
	return &storage.StoredImage{URL: "https://cdn.example.com/" + key, PublicID: key}, nil
}

func (f *fakeImageStore) Delete(_ context.Context, publicID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.stored, publicID)
	f.deleted = append(f.deleted, publicID)
	return nil
}

func (f *fakeImageStore) Backend() string {
	return f.backend
}

type mockImageJobs struct {
	mock.Mock
}

func (m *mockImageJobs) EnqueueImageNormalisation(ctx context.Context, listingID primitive.ObjectID, key string) error {
	args := m.Called(ctx, listingID, key)
	return args.Error(0)
}

type mockModerationNotifier struct {
	mock.Mock
}

func (m *mockModerationNotifier) NotifyShopRegistered(ctx context.Context, shop *models.Shop, owner *models.User) error {
	args := m.Called(ctx, shop, owner)
	return args.Error(0)
}

func (m *mockModerationNotifier) NotifyShopDecision(ctx context.Context, shop *models.Shop, owner *models.User, action ModerationAction) error {
	args := m.Called(ctx, shop, owner, action)
	return args.Error(0)
}
