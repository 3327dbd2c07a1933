package handlers_test

import (
	"net/http"
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

func TestRestMetadataHandler_ListModels(t *testing.T) {
	metadata := new(MockMetadataService)
	h := handlers.NewRestMetadataHandler(metadata)
	r := newEngine(policy.Anonymous)
	r.GET("/v1/metadata/models", h.ListModels)

	brandID := primitive.NewObjectID()
	metadata.On("ListModels", mock.Anything, brandID, "gal").Return([]models.PhoneModel{{Name: "Galaxy S23", BrandID: brandID}}, nil)
	metadata.On("ListModels", mock.Anything, primitive.NilObjectID, "").Return([]models.PhoneModel{}, nil)

	w := serve(r, http.MethodGet, "/v1/metadata/models?brandId="+brandID.Hex()+"&search=gal", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Galaxy S23")

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/v1/metadata/models", nil).Code)
	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodGet, "/v1/metadata/models?brandId=nope", nil).Code)
	metadata.AssertExpectations(t)
}

func TestRestMetadataHandler_InactiveDistrictsAreAdminOnly(t *testing.T) {
	metadata := new(MockMetadataService)
	h := handlers.NewRestMetadataHandler(metadata)
	metadata.On("ListDistricts", mock.Anything, false).Return([]models.District{{Name: "Colombo", IsActive: true}}, nil).Once()
	metadata.On("ListDistricts", mock.Anything, true).Return([]models.District{{Name: "Colombo", IsActive: true}, {Name: "Mannar"}}, nil).Once()

	public := newEngine(alice)
	public.GET("/v1/metadata/districts", h.ListDistricts)
	assert.Equal(t, http.StatusOK, serve(public, http.MethodGet, "/v1/metadata/districts?includeInactive=true", nil).Code)

	privileged := newEngine(admin)
	privileged.GET("/v1/metadata/districts", h.ListDistricts)
	w := serve(privileged, http.MethodGet, "/v1/metadata/districts?includeInactive=true", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Mannar")
	metadata.AssertExpectations(t)
}

func TestRestMetadataHandler_CreateBrandConflict(t *testing.T) {
	metadata := new(MockMetadataService)
	h := handlers.NewRestMetadataHandler(metadata)
	r := newEngine(admin)
	r.POST("/v1/admin/metadata/brands", h.CreateBrand)
	metadata.On("CreateBrand", mock.Anything, admin, services.NameInput{Name: "Apple"}).
		Return(nil, apperrors.Conflict("Brand already exists")).Once()
	metadata.On("CreateBrand", mock.Anything, admin, services.NameInput{Name: "Nokia"}).
		Return(&models.PhoneBrand{Base: models.NewBase(), Name: "Nokia"}, nil).Once()

	assert.Equal(t, http.StatusConflict, serve(r, http.MethodPost, "/v1/admin/metadata/brands", services.NameInput{Name: "Apple"}).Code)
	assert.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/v1/admin/metadata/brands", services.NameInput{Name: "Nokia"}).Code)
}
