package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pasindubuddhika1999/findmyphone/internal/api/middleware"
	"github.com/pasindubuddhika1999/findmyphone/internal/apperrors"
	"github.com/pasindubuddhika1999/findmyphone/internal/config"
	"github.com/pasindubuddhika1999/findmyphone/internal/models"
	"github.com/pasindubuddhika1999/findmyphone/internal/services"
	"github.com/pasindubuddhika1999/findmyphone/internal/storage"
)

const (
	// imagesField is the multipart field carrying listing photos.
	imagesField = "images"
	// formOverhead bounds the non-file part of a listing form.
	formOverhead = 1 << 20
)

// RestListingHandler handles REST requests for lost-phone reports.
type RestListingHandler struct {
	listingService services.IListingService
	maxImages      int
	maxImageBytes  int64
}

// NewRestListingHandler creates a new RestListingHandler.
// Upload limits come from the image settings in cfg.
func NewRestListingHandler(cfg *config.Config, listingService services.IListingService) *RestListingHandler {
	h := &RestListingHandler{
		listingService: listingService,
		maxImages:      cfg.ImageMaxPerListing,
		maxImageBytes:  int64(cfg.ImageMaxSizeMB) << 20,
	}
	if h.maxImages <= 0 {
		h.maxImages = 5
	}
	if h.maxImageBytes <= 0 {
		h.maxImageBytes = 5 << 20
	}
	return h
}

// searchParams reads the shared listing filters from the query string.
func searchParams(c *gin.Context) services.ListingSearchParams {
	return services.ListingSearchParams{
		Search:    c.Query("search"),
		IMEI:      c.Query("imei"),
		Brand:     c.Query("brand"),
		Model:     c.Query("model"),
		Location:  c.Query("location"),
		Status:    c.Query("status"),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
		Page:      queryInt(c, "page"),
		Limit:     queryInt(c, "limit"),
	}
}

// SearchListings handles GET /v1/posts
func (h *RestListingHandler) SearchListings(c *gin.Context) {
	page, err := h.listingService.SearchListings(c.Request.Context(), searchParams(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// SearchByIMEI handles GET /v1/posts/search/imei/:imei
func (h *RestListingHandler) SearchByIMEI(c *gin.Context) {
	page, err := h.listingService.SearchByIMEI(c.Request.Context(), c.Param("imei"), queryInt(c, "page"), queryInt(c, "limit"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// Statistics handles GET /v1/posts/statistics
func (h *RestListingHandler) Statistics(c *gin.Context) {
	stats, err := h.listingService.Statistics(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ListOwnListings handles GET /v1/posts/my
func (h *RestListingHandler) ListOwnListings(c *gin.Context) {
	page, err := h.listingService.ListByAuthor(c.Request.Context(), middleware.PrincipalFrom(c),
		c.Query("status"), queryInt(c, "page"), queryInt(c, "limit"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetListing handles GET /v1/posts/:id and counts the view.
func (h *RestListingHandler) GetListing(c *gin.Context) {
	id, ok := objectIDParam(c, "id", "Post")
	if !ok {
		return
	}
	listing, err := h.listingService.ViewListing(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

// CreateListing handles POST /v1/posts. Both multipart forms (with photos
// under "images") and plain JSON bodies are accepted.
func (h *RestListingHandler) CreateListing(c *gin.Context) {
	var (
		input  services.ListingInput
		images []storage.ImageUpload
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, int64(h.maxImages)*h.maxImageBytes+formOverhead)
		form, err := c.MultipartForm()
		if err != nil {
			respondError(c, apperrors.Validation("Invalid multipart form: "+err.Error()))
			return
		}
		files := form.File[imagesField]
		if err := h.checkImageHeaders(files); err != nil {
			respondError(c, err)
			return
		}
		input = listingInputFromForm(form)
		if images, err = readImages(files); err != nil {
			respondError(c, apperrors.Validation(err.Error()))
			return
		}
	} else if !bindJSON(c, &input) {
		return
	}

	listing, err := h.listingService.CreateListing(c.Request.Context(), middleware.PrincipalFrom(c), input, images)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Post created successfully", "post": listing})
}

// UpdateListing handles PUT /v1/posts/:id
func (h *RestListingHandler) UpdateListing(c *gin.Context) {
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

// ResolveListing handles PATCH /v1/posts/:id/resolve
func (h *RestListingHandler) ResolveListing(c *gin.Context) {
	id, ok := objectIDParam(c, "id", "Post")
	if !ok {
		return
	}
	listing, err := h.listingService.ResolveListing(c.Request.Context(), middleware.PrincipalFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post marked as resolved", "post": listing})
}

// DeleteListing handles DELETE /v1/posts/:id
func (h *RestListingHandler) DeleteListing(c *gin.Context) {
	id, ok := objectIDParam(c, "id", "Post")
	if !ok {
		return
	}
	if err := h.listingService.DeleteListing(c.Request.Context(), middleware.PrincipalFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully"})
}

// listingInputFromForm maps multipart values onto a ListingInput.
// Contact details use bracketed keys: contactInfo[name], contactInfo[phone], contactInfo[email].
func listingInputFromForm(form *multipart.Form) services.ListingInput {
	get := func(key string) string {
		if v := form.Value[key]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}

	input := services.ListingInput{
		Title:        get("title"),
		Description:  get("description"),
		IMEI:         get("imei"),
		PhoneModel:   get("phoneModel"),
		Brand:        get("brand"),
		Color:        get("color"),
		District:     get("district"),
		Town:         get("town"),
		LostLocation: get("lostLocation"),
		LostDate:     get("lostDate"),
		ContactInfo: models.ContactInfo{
			Name:  get("contactInfo[name]"),
			Phone: get("contactInfo[phone]"),
			Email: get("contactInfo[email]"),
		},
	}

	// Tags arrive either repeated or as one comma separated value.
	for _, raw := range form.Value["tags"] {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				input.Tags = append(input.Tags, tag)
			}
		}
	}

	lat, latErr := strconv.ParseFloat(get("coordinates[latitude]"), 64)
	lng, lngErr := strconv.ParseFloat(get("coordinates[longitude]"), 64)
	if latErr == nil && lngErr == nil {
		input.Coordinates = &models.Coordinates{Latitude: lat, Longitude: lng}
	}
	return input
}

// checkImageHeaders enforces the count and size limits before any file is opened.
func (h *RestListingHandler) checkImageHeaders(files []*multipart.FileHeader) error {
	if len(files) > h.maxImages {
		return apperrors.Validation("", apperrors.Field(imagesField, "max", fmt.Sprintf("must contain at most %d items", h.maxImages)))
	}
	var fields []apperrors.FieldError
	for i, fh := range files {
		if fh.Size > h.maxImageBytes {
			fields = append(fields, apperrors.Field(fmt.Sprintf("%s[%d]", imagesField, i), "image",
				fmt.Sprintf("%s exceeds %d MB", fh.Filename, h.maxImageBytes>>20)))
		}
	}
	if len(fields) > 0 {
		return apperrors.Validation("", fields...)
	}
	return nil
}

func readImages(files []*multipart.FileHeader) ([]storage.ImageUpload, error) {
	images := make([]storage.ImageUpload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("could not read %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("could not read %s: %w", fh.Filename, err)
		}
		images = append(images, storage.ImageUpload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return images, nil
}
