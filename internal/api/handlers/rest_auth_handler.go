package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pasindubuddhika1999/findmyphone/internal/api/middleware"
	"github.com/pasindubuddhika1999/findmyphone/internal/auth"
	"github.com/pasindubuddhika1999/findmyphone/internal/config"
	"github.com/pasindubuddhika1999/findmyphone/internal/models"
	"github.com/pasindubuddhika1999/findmyphone/internal/services"
)

// RestAuthHandler serves registration, login and the caller's own profile.
type RestAuthHandler struct {
	cfg         *config.Config
	userService services.IUserService
	shopService services.IShopService
}

func NewRestAuthHandler(cfg *config.Config, userService services.IUserService, shopService services.IShopService) *RestAuthHandler {
	return &RestAuthHandler{cfg: cfg, userService: userService, shopService: shopService}
}

func (h *RestAuthHandler) issueToken(c *gin.Context, user *models.User) (string, bool) {
	token, err := auth.GenerateJWT(user, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return "", false
	}
	return token, true
}

// Register handles POST /v1/auth/register
func (h *RestAuthHandler) Register(c *gin.Context) {
	var input services.RegisterInput
	if !bindJSON(c, &input) {
		return
	}
	user, err := h.userService.Register(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	token, ok := h.issueToken(c, user)
	if !ok {
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"token":   token,
		"user":    user,
		"role":    models.RoleUser,
	})
}

// RegisterShop handles POST /v1/auth/register-shop. No token is issued: the
// account cannot log in until an admin approves the shop.
func (h *RestAuthHandler) RegisterShop(c *gin.Context) {
	var input services.ShopRegistration
	if !bindJSON(c, &input) {
		return
	}
	user, shop, err := h.shopService.RegisterShop(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":           "Shop registration submitted. You can log in once an administrator approves it.",
		"user":              user,
		"shop":              shop,
		"isPendingApproval": true,
	})
}

// Login handles POST /v1/auth/login
func (h *RestAuthHandler) Login(c *gin.Context) {
	var input services.LoginInput
	if !bindJSON(c, &input) {
		return
	}
	result, err := h.userService.Login(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	token, ok := h.issueToken(c, result.User)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   token,
		"user":    result.User,
		"shop":    result.Shop,
		"role":    result.EffectiveRole,
	})
}

// GetProfile handles GET /v1/auth/profile
func (h *RestAuthHandler) GetProfile(c *gin.Context) {
	profile, err := h.userService.GetProfile(c.Request.Context(), middleware.PrincipalFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// UpdateProfile handles PUT /v1/auth/profile
func (h *RestAuthHandler) UpdateProfile(c *gin.Context) {
	var patch services.ProfilePatch
	if !bindJSON(c, &patch) {
		return
	}
	user, err := h.userService.UpdateProfile(c.Request.Context(), middleware.PrincipalFrom(c), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile updated successfully", "user": user})
}

// ChangePassword handles PUT /v1/auth/change-password
func (h *RestAuthHandler) ChangePassword(c *gin.Context) {
	var input services.ChangePasswordInput
	if !bindJSON(c, &input) {
		return
	}
	if err := h.userService.ChangePassword(c.Request.Context(), middleware.PrincipalFrom(c), input); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
}

// UpdateShopProfile handles PUT /v1/auth/shop-profile
func (h *RestAuthHandler) UpdateShopProfile(c *gin.Context) {
	var patch services.ShopProfilePatch
	if !bindJSON(c, &patch) {
		return
	}
	shop, err := h.shopService.UpdateShopProfile(c.Request.Context(), middleware.PrincipalFrom(c), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Shop profile updated successfully", "shop": shop})
}
