package handlers_test

import (
	"context"

	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pasindubuddhika1999/findmyphone/internal/models"
	"github.com/pasindubuddhika1999/findmyphone/internal/policy"
	"github.com/pasindubuddhika1999/findmyphone/internal/services"
	"github.com/pasindubuddhika1999/findmyphone/internal/storage"
)

// --- Mocks ---

// MockListingService
type MockListingService struct {
	mock.Mock
}

func (m *MockListingService) page(args mock.Arguments) (*services.ListingPage, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ListingPage), args.Error(1)
}

func (m *MockListingService) listing(args mock.Arguments) (*models.Listing, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingService) SearchListings(ctx context.Context, params services.ListingSearchParams) (*services.ListingPage, error) {
	return m.page(m.Called(ctx, params))
}
func (m *MockListingService) SearchByIMEI(ctx context.Context, imei string, page, limit int) (*services.ListingPage, error) {
	return m.page(m.Called(ctx, imei, page, limit))
}
func (m *MockListingService) ListByAuthor(ctx context.Context, p policy.Principal, status string, page, limit int) (*services.ListingPage, error) {
	return m.page(m.Called(ctx, p, status, page, limit))
}
func (m *MockListingService) AdminSearch(ctx context.Context, p policy.Principal, params services.ListingSearchParams) (*services.ListingPage, error) {
	return m.page(m.Called(ctx, p, params))
}
func (m *MockListingService) ViewListing(ctx context.Context, listingID primitive.ObjectID) (*models.Listing, error) {
	return m.listing(m.Called(ctx, listingID))
}
func (m *MockListingService) FindListingByID(ctx context.Context, listingID primitive.ObjectID) (*models.Listing, error) {
	return m.listing(m.Called(ctx, listingID))
}
func (m *MockListingService) CreateListing(ctx context.Context, p policy.Principal, input services.ListingInput, images []storage.ImageUpload) (*models.Listing, error) {
	return m.listing(m.Called(ctx, p, input, images))
}
func (m *MockListingService) UpdateListing(ctx context.Context, p policy.Principal, listingID primitive.ObjectID, patch services.ListingPatch) (*models.Listing, error) {
	return m.listing(m.Called(ctx, p, listingID, patch))
}
func (m *MockListingService) ResolveListing(ctx context.Context, p policy.Principal, listingID primitive.ObjectID) (*models.Listing, error) {
	return m.listing(m.Called(ctx, p, listingID))
}
func (m *MockListingService) DeleteListing(ctx context.Context, p policy.Principal, listingID primitive.ObjectID) error {
	return m.Called(ctx, p, listingID).Error(0)
}
func (m *MockListingService) PurgeListing(ctx context.Context, p policy.Principal, listingID primitive.ObjectID) error {
	return m.Called(ctx, p, listingID).Error(0)
}
func (m *MockListingService) BulkResolve(ctx context.Context, p policy.Principal, listingIDs []primitive.ObjectID) (int64, error) {
	args := m.Called(ctx, p, listingIDs)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockListingService) BulkPurge(ctx context.Context, p policy.Principal, listingIDs []primitive.ObjectID) (int64, error) {
	args := m.Called(ctx, p, listingIDs)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockListingService) PurgeByAuthors(ctx context.Context, authorIDs []primitive.ObjectID) (int64, error) {
	args := m.Called(ctx, authorIDs)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockListingService) Statistics(ctx context.Context) (*services.ListingStatistics, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ListingStatistics), args.Error(1)
}

// MockUserService
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) user(args mock.Arguments) (*models.User, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) Register(ctx context.Context, input services.RegisterInput) (*models.User, error) {
	return m.user(m.Called(ctx, input))
}
func (m *MockUserService) Login(ctx context.Context, input services.LoginInput) (*services.LoginResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.LoginResult), args.Error(1)
}
func (m *MockUserService) FindByID(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	return m.user(m.Called(ctx, userID))
}
func (m *MockUserService) GetProfile(ctx context.Context, p policy.Principal) (*services.Profile, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Profile), args.Error(1)
}
func (m *MockUserService) UpdateProfile(ctx context.Context, p policy.Principal, patch services.ProfilePatch) (*models.User, error) {
	return m.user(m.Called(ctx, p, patch))
}
func (m *MockUserService) ChangePassword(ctx context.Context, p policy.Principal, input services.ChangePasswordInput) error {
	return m.Called(ctx, p, input).Error(0)
}
func (m *MockUserService) ListUsers(ctx context.Context, p policy.Principal, params services.UserSearchParams) (*services.UserPage, error) {
	args := m.Called(ctx, p, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.UserPage), args.Error(1)
}
func (m *MockUserService) ToggleBan(ctx context.Context, p policy.Principal, userID primitive.ObjectID) (*models.User, error) {
	return m.user(m.Called(ctx, p, userID))
}
func (m *MockUserService) ChangeRole(ctx context.Context, p policy.Principal, userID primitive.ObjectID, role models.Role) (*models.User, error) {
	return m.user(m.Called(ctx, p, userID, role))
}
func (m *MockUserService) DeleteUser(ctx context.Context, p policy.Principal, userID primitive.ObjectID) error {
	return m.Called(ctx, p, userID).Error(0)
}
func (m *MockUserService) BulkAction(ctx context.Context, p policy.Principal, input services.BulkActionInput) (*services.BulkActionResult, error) {
	args := m.Called(ctx, p, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.BulkActionResult), args.Error(1)
}

// MockShopService
type MockShopService struct {
	mock.Mock
}

func (m *MockShopService) shop(args mock.Arguments) (*models.Shop, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Shop), args.Error(1)
}

func (m *MockShopService) RegisterShop(ctx context.Context, input services.ShopRegistration) (*models.User, *models.Shop, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*models.User), args.Get(1).(*models.Shop), args.Error(2)
}
func (m *MockShopService) UpdateShopProfile(ctx context.Context, p policy.Principal, patch services.ShopProfilePatch) (*models.Shop, error) {
	return m.shop(m.Called(ctx, p, patch))
}
func (m *MockShopService) ListShops(ctx context.Context, p policy.Principal, params services.ShopSearchParams) (*services.ShopPage, error) {
	args := m.Called(ctx, p, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ShopPage), args.Error(1)
}
func (m *MockShopService) GetShop(ctx context.Context, p policy.Principal, shopID primitive.ObjectID) (*models.Shop, error) {
	return m.shop(m.Called(ctx, p, shopID))
}
func (m *MockShopService) Approve(ctx context.Context, p policy.Principal, shopID primitive.ObjectID) (*models.Shop, error) {
	return m.shop(m.Called(ctx, p, shopID))
}
func (m *MockShopService) Reject(ctx context.Context, p policy.Principal, shopID primitive.ObjectID, reason string) (*models.Shop, error) {
	return m.shop(m.Called(ctx, p, shopID, reason))
}
func (m *MockShopService) Revoke(ctx context.Context, p policy.Principal, shopID primitive.ObjectID, reason string) (*models.Shop, error) {
	return m.shop(m.Called(ctx, p, shopID, reason))
}
func (m *MockShopService) DeleteShop(ctx context.Context, p policy.Principal, shopID primitive.ObjectID) error {
	return m.Called(ctx, p, shopID).Error(0)
}
func (m *MockShopService) CountPending(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockAdminService
type MockAdminService struct {
	mock.Mock
}

func (m *MockAdminService) Dashboard(ctx context.Context, p policy.Principal) (*services.Dashboard, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Dashboard), args.Error(1)
}

// MockBannerService
type MockBannerService struct {
	mock.Mock
}

func (m *MockBannerService) banner(args mock.Arguments) (*models.Banner, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Banner), args.Error(1)
}

func (m *MockBannerService) ListActive(ctx context.Context) ([]models.Banner, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Banner), args.Error(1)
}
func (m *MockBannerService) ListAll(ctx context.Context, p policy.Principal) ([]models.Banner, error) {
	args := m.Called(ctx, p)
	return args.Get(0).([]models.Banner), args.Error(1)
}
func (m *MockBannerService) GetBanner(ctx context.Context, p policy.Principal, id primitive.ObjectID) (*models.Banner, error) {
	return m.banner(m.Called(ctx, p, id))
}
func (m *MockBannerService) CreateBanner(ctx context.Context, p policy.Principal, input services.BannerInput) (*models.Banner, error) {
	return m.banner(m.Called(ctx, p, input))
}
func (m *MockBannerService) UpdateBanner(ctx context.Context, p policy.Principal, id primitive.ObjectID, input services.BannerInput) (*models.Banner, error) {
	return m.banner(m.Called(ctx, p, id, input))
}
func (m *MockBannerService) DeleteBanner(ctx context.Context, p policy.Principal, id primitive.ObjectID) error {
	return m.Called(ctx, p, id).Error(0)
}

// MockMetadataService implements the lookups the handler tests exercise.
// Calling any other method panics on the nil embedded interface.
type MockMetadataService struct {
	mock.Mock
	services.IMetadataService
}

func (m *MockMetadataService) ListModels(ctx context.Context, brandID primitive.ObjectID, search string) ([]models.PhoneModel, error) {
	args := m.Called(ctx, brandID, search)
	return args.Get(0).([]models.PhoneModel), args.Error(1)
}
func (m *MockMetadataService) ListDistricts(ctx context.Context, includeInactive bool) ([]models.District, error) {
	args := m.Called(ctx, includeInactive)
	return args.Get(0).([]models.District), args.Error(1)
}
func (m *MockMetadataService) CreateBrand(ctx context.Context, p policy.Principal, input services.NameInput) (*models.PhoneBrand, error) {
	args := m.Called(ctx, p, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PhoneBrand), args.Error(1)
}
