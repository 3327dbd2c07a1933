package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pasindubuddhika1999/findmyphone/internal/api/handlers"
	"github.com/pasindubuddhika1999/findmyphone/internal/apperrors"
	"github.com/pasindubuddhika1999/findmyphone/internal/models"
	"github.com/pasindubuddhika1999/findmyphone/internal/policy"
	"github.com/pasindubuddhika1999/findmyphone/internal/services"
)

type adminMocks struct {
	admin    *MockAdminService
	users    *MockUserService
	shops    *MockShopService
	listings *MockListingService
}

func setupAdminEngine(p policy.Principal) (adminMocks, func(method, path string, body interface{}) *httptest.ResponseRecorder) {
	m := adminMocks{
		admin:    new(MockAdminService),
		users:    new(MockUserService),
		shops:    new(MockShopService),
		listings: new(MockListingService),
	}
	h := handlers.NewRestAdminHandler(m.admin, m.users, m.shops, m.listings)
	r := newEngine(p)
	r.GET("/v1/admin/dashboard", h.Dashboard)
	r.GET("/v1/admin/shops", h.ListShops)
	r.PATCH("/v1/admin/shops/:id/approve", h.ApproveShop)
	r.PATCH("/v1/admin/shops/:id/reject", h.RejectShop)
	r.PATCH("/v1/admin/shops/:id/revoke", h.RevokeShop)
	r.GET("/v1/admin/users", h.ListUsers)
	r.GET("/v1/admin/users/:id", h.GetUser)
	r.PATCH("/v1/admin/users/:id/ban", h.ToggleBan)
	r.PATCH("/v1/admin/users/:id/role", h.ChangeRole)
	r.POST("/v1/admin/bulk-action", h.BulkAction)
	r.GET("/v1/admin/posts", h.ListPosts)
	r.DELETE("/v1/admin/posts/:id", h.DeletePost)
	return m, func(method, path string, body interface{}) *httptest.ResponseRecorder {
		return serve(r, method, path, body)
	}
}

func TestRestAdminHandler_Dashboard(t *testing.T) {
	m, do := setupAdminEngine(admin)
	m.admin.On("Dashboard", mock.Anything, admin).Return(&services.Dashboard{TotalUsers: 4, PendingShops: 2}, nil)

	w := do(http.MethodGet, "/v1/admin/dashboard", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(4), body["totalUsers"])
	assert.Equal(t, float64(2), body["pendingShops"])
}

func TestRestAdminHandler_ListShopsPassesFilters(t *testing.T) {
	m, do := setupAdminEngine(admin)
	m.shops.On("ListShops", mock.Anything, admin, services.ShopSearchParams{Status: "pending", Search: "fix", Page: 1, Limit: 20}).
		Return(&services.ShopPage{Items: []models.Shop{}}, nil)

	w := do(http.MethodGet, "/v1/admin/shops?status=pending&search=fix&page=1&limit=20", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	m.shops.AssertExpectations(t)
}

func TestRestAdminHandler_ModerationTransitions(t *testing.T) {
	m, do := setupAdminEngine(admin)
	id := primitive.NewObjectID()
	approved := &models.Shop{Base: models.Base{ID: id}, ModerationStatus: models.ModerationApproved}
	m.shops.On("Approve", mock.Anything, admin, id).Return(approved, nil).Once()
	m.shops.On("Approve", mock.Anything, admin, id).Return(nil, apperrors.AlreadyApproved("Shop")).Once()
	m.shops.On("Reject", mock.Anything, admin, id, "Blurry documents").Return(nil, apperrors.Validation("Only pending shops can be rejected")).Once()
	m.shops.On("Revoke", mock.Anything, admin, id, "Complaints").
		Return(&models.Shop{Base: models.Base{ID: id}, ModerationStatus: models.ModerationRevoked}, nil).Once()

	w := do(http.MethodPatch, "/v1/admin/shops/"+id.Hex()+"/approve", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "approved", decode(t, w)["shop"].(map[string]interface{})["moderationStatus"])

	w = do(http.MethodPatch, "/v1/admin/shops/"+id.Hex()+"/approve", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already_approved", decode(t, w)["kind"])

	w = do(http.MethodPatch, "/v1/admin/shops/"+id.Hex()+"/reject", map[string]string{"reason": "Blurry documents"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(http.MethodPatch, "/v1/admin/shops/"+id.Hex()+"/revoke", map[string]string{"reason": "Complaints"})
	assert.Equal(t, http.StatusOK, w.Code)
	m.shops.AssertExpectations(t)
}

func TestRestAdminHandler_NonAdminIsForbidden(t *testing.T) {
	m, do := setupAdminEngine(alice)
	m.admin.On("Dashboard", mock.Anything, alice).Return(nil, apperrors.Forbidden())

	assert.Equal(t, http.StatusForbidden, do(http.MethodGet, "/v1/admin/dashboard", nil).Code)

	// GetUser authorizes in the handler since FindByID has no caller.
	id := primitive.NewObjectID()
	assert.Equal(t, http.StatusForbidden, do(http.MethodGet, "/v1/admin/users/"+id.Hex(), nil).Code)
	m.users.AssertNotCalled(t, "FindByID", mock.Anything, id)
}

func TestRestAdminHandler_Users(t *testing.T) {
	m, do := setupAdminEngine(admin)
	id := primitive.NewObjectID()
	banned := true
	m.users.On("ListUsers", mock.Anything, admin, services.UserSearchParams{Role: "user", Banned: &banned}).
		Return(&services.UserPage{Items: []models.User{}}, nil)
	m.users.On("ToggleBan", mock.Anything, admin, id).Return(&models.User{Base: models.Base{ID: id}, IsBanned: true}, nil)
	m.users.On("ChangeRole", mock.Anything, admin, id, models.RoleAdmin).Return(&models.User{Base: models.Base{ID: id}, Role: models.RoleAdmin}, nil)
	m.users.On("FindByID", mock.Anything, id).Return(&models.User{Base: models.Base{ID: id}, Username: "bob"}, nil)

	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/v1/admin/users?role=user&banned=true", nil).Code)

	w := do(http.MethodPatch, "/v1/admin/users/"+id.Hex()+"/ban", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "User banned successfully", decode(t, w)["message"])

	w = do(http.MethodPatch, "/v1/admin/users/"+id.Hex()+"/role", map[string]string{"role": "admin"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(http.MethodGet, "/v1/admin/users/"+id.Hex(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bob", decode(t, w)["username"])
	m.users.AssertExpectations(t)
}

func TestRestAdminHandler_BulkAction(t *testing.T) {
	m, do := setupAdminEngine(admin)
	ids := []string{primitive.NewObjectID().Hex(), primitive.NewObjectID().Hex()}
	m.users.On("BulkAction", mock.Anything, admin, services.BulkActionInput{Action: "ban", IDs: ids}).
		Return(&services.BulkActionResult{Action: "ban", Affected: 1, Skipped: ids[1:]}, nil)

	w := do(http.MethodPost, "/v1/admin/bulk-action", map[string]interface{}{"action": "ban", "ids": ids})
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(1), body["affected"])
	assert.Len(t, body["skipped"], 1)
}

func TestRestAdminHandler_Posts(t *testing.T) {
	m, do := setupAdminEngine(admin)
	id := primitive.NewObjectID()
	m.listings.On("AdminSearch", mock.Anything, admin, services.ListingSearchParams{Status: "deleted"}).
		Return(&services.ListingPage{Items: []models.Listing{}}, nil)
	m.listings.On("PurgeListing", mock.Anything, admin, id).Return(nil)

	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/v1/admin/posts?status=deleted", nil).Code)
	assert.Equal(t, http.StatusOK, do(http.MethodDelete, "/v1/admin/posts/"+id.Hex(), nil).Code)
	m.listings.AssertExpectations(t)
}
