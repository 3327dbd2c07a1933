package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pasindubuddhika1999/findmyphone/internal/api/middleware"
	"github.com/pasindubuddhika1999/findmyphone/internal/services"
)

// RestMetadataHandler serves the brand, model, color, district and town lookups.
type RestMetadataHandler struct {
	metadataService services.IMetadataService
}

func NewRestMetadataHandler(metadataService services.IMetadataService) *RestMetadataHandler {
	return &RestMetadataHandler{metadataService: metadataService}
}

// includeInactive honours ?includeInactive=true for admins only.
func includeInactive(c *gin.Context) bool {
	v := queryBool(c, "includeInactive")
	return v != nil && *v && middleware.PrincipalFrom(c).IsAdmin()
}

func (h *RestMetadataHandler) ListBrands(c *gin.Context) {
	items, err := h.metadataService.ListBrands(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// ListModels handles GET /v1/metadata/models?brandId=&search=
func (h *RestMetadataHandler) ListModels(c *gin.Context) {
	brandID, ok := objectIDQuery(c, "brandId")
	if !ok {
		return
	}
	items, err := h.metadataService.ListModels(c.Request.Context(), brandID, c.Query("search"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// ListColors handles GET /v1/metadata/colors?modelId=&search=
func (h *RestMetadataHandler) ListColors(c *gin.Context) {
	modelID, ok := objectIDQuery(c, "modelId")
	if !ok {
		return
	}
	items, err := h.metadataService.ListColors(c.Request.Context(), modelID, c.Query("search"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *RestMetadataHandler) ListDistricts(c *gin.Context) {
	items, err := h.metadataService.ListDistricts(c.Request.Context(), includeInactive(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// ListTowns handles GET /v1/metadata/towns?districtId=
func (h *RestMetadataHandler) ListTowns(c *gin.Context) {
	districtID, ok := objectIDQuery(c, "districtId")
	if !ok {
		return
	}
	items, err := h.metadataService.ListTowns(c.Request.Context(), districtID, includeInactive(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// Admin CRUD

func (h *RestMetadataHandler) CreateBrand(c *gin.Context) {
	var input services.NameInput
	if !bindJSON(c, &input) {
		return
	}
	brand, err := h.metadataService.CreateBrand(c.Request.Context(), middleware.PrincipalFrom(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, brand)
}

func (h *RestMetadataHandler) UpdateBrand(c *gin.Context) {
	id, ok := objectIDParam(c, "id", "Brand")
	if !ok {
		return
	}
	var input services.NameInput
	if !bindJSON(c, &input) {
		return
	}
	brand, err := h.metadataService.UpdateBrand(c.Request.Context(), middleware.PrincipalFrom(c), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, brand)
}

func (h *RestMetadataHandler) DeleteBrand(c *gin.Context) {
	id, ok := objectIDParam(c, "id", "Brand")
	if !ok {
		return
	}
	if err := h.metadataService.DeleteBrand(c.Request.Context(), middleware.PrincipalFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Brand deleted successfully"})
}

func (h *RestMetadataHandler) CreateModel(c *gin.Context) {
	var input services.ModelInput
	if !bindJSON(c, &input) {
		return
	}
	model, err := h.metadataService.CreateModel(c.Request.Context(), middleware.PrincipalFrom(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, model)
}

func (h *RestMetadataHandler) UpdateModel(c *gin.Context) {
	id, ok := objectIDParam(c, "id", "Model")
	if !ok {
		return
	}
	var input services.NameInput
	if !bindJSON(c, &input) {
		return
	}
	model, err := h.metadataService.UpdateModel(c.Request.Context(), middleware.PrincipalFrom(c), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model)
}

func (h *RestMetadataHandler) DeleteModel(c *gin.Context) {
	id, ok := objectIDParam(c, "id", "Model")
	if !ok {
		return
	}
	if err := h.metadataService.DeleteModel(c.Request.Context(), middleware.PrincipalFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Model deleted successfully"})
}

func (h *RestMetadataHandler) CreateColor(c *gin.Context) {
	var input services.ColorInput
	if !bindJSON(c, &input) {
		return
	}
	color, err := h.metadataService.CreateColor(c.Request.Context(), middleware.PrincipalFrom(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, color)
}

func (h *RestMetadataHandler) UpdateColor(c *gin.Context) {
	id, ok := objectIDParam(c, "id", "Color")
	if !ok {
		return
	}
	var patch services.ColorPatch
	if !bindJSON(c, &patch) {
		return
	}
	color, err := h.metadataService.UpdateColor(c.Request.Context(), middleware.PrincipalFrom(c), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, color)
}

func (h *RestMetadataHandler) DeleteColor(c *gin.Context) {
	id, ok := objectIDParam(c, "id", "Color")
	if !ok {
		return
	}
	if err := h.metadataService.DeleteColor(c.Request.Context(), middleware.PrincipalFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Color deleted successfully"})
}

func (h *RestMetadataHandler) CreateDistrict(c *gin.Context) {
	var input services.DistrictInput
	if !bindJSON(c, &input) {
		return
	}
	district, err := h.metadataService.CreateDistrict(c.Request.Context(), middleware.PrincipalFrom(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, district)
}

func (h *RestMetadataHandler) UpdateDistrict(c *gin.Context) {
	id, ok := objectIDParam(c, "id", "District")
	if !ok {
		return
	}
	var patch services.PlacePatch
	if !bindJSON(c, &patch) {
		return
	}
	district, err := h.metadataService.UpdateDistrict(c.Request.Context(), middleware.PrincipalFrom(c), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, district)
}

func (h *RestMetadataHandler) DeleteDistrict(c *gin.Context) {
	id, ok := objectIDParam(c, "id", "District")
	if !ok {
		return
	}
	if err := h.metadataService.DeleteDistrict(c.Request.Context(), middleware.PrincipalFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "District deleted successfully"})
}

func (h *RestMetadataHandler) CreateTown(c *gin.Context) {
	var input services.TownInput
	if !bindJSON(c, &input) {
		return
	}
	town, err := h.metadataService.CreateTown(c.Request.Context(), middleware.PrincipalFrom(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, town)
}

func (h *RestMetadataHandler) UpdateTown(c *gin.Context) {
	id, ok := objectIDParam(c, "id", "Town")
	if !ok {
		return
	}
	var patch services.PlacePatch
	if !bindJSON(c, &patch) {
		return
	}
	town, err := h.metadataService.UpdateTown(c.Request.Context(), middleware.PrincipalFrom(c), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, town)
}

func (h *RestMetadataHandler) DeleteTown(c *gin.Context) {
	id, ok := objectIDParam(c, "id", "Town")
	if !ok {
		return
	}
	if err := h.metadataService.DeleteTown(c.Request.Context(), middleware.PrincipalFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Town deleted successfully"})
}
