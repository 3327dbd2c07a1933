package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pasindubuddhika1999/findmyphone/internal/api/middleware"
	"github.com/pasindubuddhika1999/findmyphone/internal/services"
)

// RestBannerHandler serves home page banners.
type RestBannerHandler struct {
	bannerService services.IBannerService
}

func NewRestBannerHandler(bannerService services.IBannerService) *RestBannerHandler {
	return &RestBannerHandler{bannerService: bannerService}
}

// ListActive handles GET /v1/banners
func (h *RestBannerHandler) ListActive(c *gin.Context) {
	banners, err := h.bannerService.ListActive(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, banners)
}

// ListAll handles GET /v1/admin/banners
func (h *RestBannerHandler) ListAll(c *gin.Context) {
	banners, err := h.bannerService.ListAll(c.Request.Context(), middleware.PrincipalFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, banners)
}

func (h *RestBannerHandler) GetBanner(c *gin.Context) {
	id, ok := objectIDParam(c, "id", "Banner")
	if !ok {
		return
	}
	banner, err := h.bannerService.GetBanner(c.Request.Context(), middleware.PrincipalFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, banner)
}

func (h *RestBannerHandler) CreateBanner(c *gin.Context) {
	var input services.BannerInput
	if !bindJSON(c, &input) {
		return
	}
	banner, err := h.bannerService.CreateBanner(c.Request.Context(), middleware.PrincipalFrom(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, banner)
}

func (h *RestBannerHandler) UpdateBanner(c *gin.Context) {
	id, ok := objectIDParam(c, "id", "Banner")
	if !ok {
		return
	}
	var input services.BannerInput
	if !bindJSON(c, &input) {
		return
	}
	banner, err := h.bannerService.UpdateBanner(c.Request.Context(), middleware.PrincipalFrom(c), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, banner)
}

func (h *RestBannerHandler) DeleteBanner(c *gin.Context) {
	id, ok := objectIDParam(c, "id", "Banner")
	if !ok {
		return
	}
	if err := h.bannerService.DeleteBanner(c.Request.Context(), middleware.PrincipalFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Banner deleted successfully"})
}
