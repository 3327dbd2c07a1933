package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pasindubuddhika1999/findmyphone/internal/api/middleware"
	"github.com/pasindubuddhika1999/findmyphone/internal/models"
	"github.com/pasindubuddhika1999/findmyphone/internal/policy"
	"github.com/pasindubuddhika1999/findmyphone/internal/services"
)

// RestAdminHandler serves the /v1/admin moderation console.
// Every route is also guarded by AdminMiddleware; the services re-check.
type RestAdminHandler struct {
	adminService   services.IAdminService
	userService    services.IUserService
	shopService    services.IShopService
	listingService services.IListingService
}

func NewRestAdminHandler(
	adminService services.IAdminService,
	userService services.IUserService,
	shopService services.IShopService,
	listingService services.IListingService,
) *RestAdminHandler {
	return &RestAdminHandler{
		adminService:   adminService,
		userService:    userService,
		shopService:    shopService,
		listingService: listingService,
	}
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type roleRequest struct {
	Role models.Role `json:"role"`
}

// Dashboard handles GET /v1/admin/dashboard
func (h *RestAdminHandler) Dashboard(c *gin.Context) {
	dashboard, err := h.adminService.Dashboard(c.Request.Context(), middleware.PrincipalFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

// Shops

// ListShops handles GET /v1/admin/shops?status=&search=&sortBy=&sortOrder=&page=&limit=
func (h *RestAdminHandler) ListShops(c *gin.Context) {
	page, err := h.shopService.ListShops(c.Request.Context(), middleware.PrincipalFrom(c), services.ShopSearchParams{
		Status:    c.Query("status"),
		Search:    c.Query("search"),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
		Page:      queryInt(c, "page"),
		Limit:     queryInt(c, "limit"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *RestAdminHandler) GetShop(c *gin.Context) {
	id, ok := objectIDParam(c, "id", "Shop")
	if !ok {
		return
	}
	shop, err := h.shopService.GetShop(c.Request.Context(), middleware.PrincipalFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, shop)
}

// ApproveShop handles PATCH /v1/admin/shops/:id/approve
func (h *RestAdminHandler) ApproveShop(c *gin.Context) {
	id, ok := objectIDParam(c, "id", "Shop")
	if !ok {
		return
	}
	shop, err := h.shopService.Approve(c.Request.Context(), middleware.PrincipalFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Shop approved successfully", "shop": shop})
}

// RejectShop handles PATCH /v1/admin/shops/:id/reject
func (h *RestAdminHandler) RejectShop(c *gin.Context) {
	id, ok := objectIDParam(c, "id", "Shop")
	if !ok {
		return
	}
	var req reasonRequest
	if !bindJSON(c, &req) {
		return
	}
	shop, err := h.shopService.Reject(c.Request.Context(), middleware.PrincipalFrom(c), id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Shop rejected", "shop": shop})
}

// RevokeShop handles PATCH /v1/admin/shops/:id/revoke
func (h *RestAdminHandler) RevokeShop(c *gin.Context) {
	id, ok := objectIDParam(c, "id", "Shop")
	if !ok {
		return
	}
	var req reasonRequest
	if !bindJSON(c, &req) {
		return
	}
	shop, err := h.shopService.Revoke(c.Request.Context(), middleware.PrincipalFrom(c), id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Shop approval revoked", "shop": shop})
}

func (h *RestAdminHandler) DeleteShop(c *gin.Context) {
	id, ok := objectIDParam(c, "id", "Shop")
	if !ok {
		return
	}
	if err := h.shopService.DeleteShop(c.Request.Context(), middleware.PrincipalFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Shop deleted successfully"})
}

// Users

// ListUsers handles GET /v1/admin/users?search=&role=&banned=&page=&limit=
func (h *RestAdminHandler) ListUsers(c *gin.Context) {
	page, err := h.userService.ListUsers(c.Request.Context(), middleware.PrincipalFrom(c), services.UserSearchParams{
		Search: c.Query("search"),
		Role:   c.Query("role"),
		Banned: queryBool(c, "banned"),
		Page:   queryInt(c, "page"),
		Limit:  queryInt(c, "limit"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *RestAdminHandler) GetUser(c *gin.Context) {
	id, ok := objectIDParam(c, "id", "User")
	if !ok {
		return
	}
	if err := policy.RequireAdmin(middleware.PrincipalFrom(c)); err != nil {
		respondError(c, err)
		return
	}
	user, err := h.userService.FindByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// ToggleBan handles PATCH /v1/admin/users/:id/ban
func (h *RestAdminHandler) ToggleBan(c *gin.Context) {
	id, ok := objectIDParam(c, "id", "User")
	if !ok {
		return
	}
	user, err := h.userService.ToggleBan(c.Request.Context(), middleware.PrincipalFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	message := "User unbanned successfully"
	if user.IsBanned {
		message = "User banned successfully"
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "user": user})
}

// ChangeRole handles PATCH /v1/admin/users/:id/role
func (h *RestAdminHandler) ChangeRole(c *gin.Context) {
	id, ok := objectIDParam(c, "id", "User")
	if !ok {
		return
	}
	var req roleRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.userService.ChangeRole(c.Request.Context(), middleware.PrincipalFrom(c), id, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User role updated successfully", "user": user})
}

func (h *RestAdminHandler) DeleteUser(c *gin.Context) {
	id, ok := objectIDParam(c, "id", "User")
	if !ok {
		return
	}
	if err := h.userService.DeleteUser(c.Request.Context(), middleware.PrincipalFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User and their posts deleted successfully"})
}

// BulkAction handles POST /v1/admin/bulk-action
func (h *RestAdminHandler) BulkAction(c *gin.Context) {
	var input services.BulkActionInput
	if !bindJSON(c, &input) {
		return
	}
	result, err := h.userService.BulkAction(c.Request.Context(), middleware.PrincipalFrom(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Posts

// ListPosts handles GET /v1/admin/posts. Status defaults to "all".
func (h *RestAdminHandler) ListPosts(c *gin.Context) {
	page, err := h.listingService.AdminSearch(c.Request.Context(), middleware.PrincipalFrom(c), searchParams(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *RestAdminHandler) UpdatePost(c *gin.Context) {
	id, ok := objectIDParam(c, "id", "Post")
	if !ok {
		return
	}
	var patch services.ListingPatch
	if !bindJSON(c, &patch) {
		return
	}
	listing, err := h.listingService.UpdateListing(c.Request.Context(), middleware.PrincipalFrom(c), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post updated successfully", "post": listing})
}

// DeletePost handles DELETE /v1/admin/posts/:id and removes the record for good.
func (h *RestAdminHandler) DeletePost(c *gin.Context) {
	id, ok := objectIDParam(c, "id", "Post")
	if !ok {
		return
	}
	if err := h.listingService.PurgeListing(c.Request.Context(), middleware.PrincipalFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted permanently"})
}
