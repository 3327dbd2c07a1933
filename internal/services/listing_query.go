package services

import (
	"math"
	"regexp"
	"strings"

	"github.com/pasindubuddhika1999/findmyphone/internal/apperrors"
	"github.com/pasindubuddhika1999/findmyphone/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Sort keys accepted from clients.
const (
	SortByCreatedAt = "createdAt"
	SortByLostDate  = "lostDate"
	SortByViews     = "views"
	SortByRelevance = "relevance"

	SortAsc  = "asc"
	SortDesc = "desc"

	// StatusAll removes the status constraint from a search.
	StatusAll = "all"
)

var sortFields = map[string]string{
	SortByCreatedAt: "created_at",
	SortByLostDate:  "lost_date",
	SortByViews:     "views",
}

// ListingSearchParams are the optional, independently settable search criteria.
type ListingSearchParams struct {
	Search    string
	IMEI      string
	Brand     string
	Model     string
	Location  string
	Status    string
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
}

// QueryDefaults vary by call site: public search, own listings, admin views.
type QueryDefaults struct {
	PageSize      int
	MaxPageSize   int
	DefaultStatus string // "active" for public search, "all" for admin and owner views
}

// ListingQuery is a ready to run repository query.
type ListingQuery struct {
	Filter     bson.M
	Sort       bson.D
	Projection bson.D
	Skip       int64
	Limit      int64
	Page       int
}

// ListingPage is one page of results with the counts needed to render a pager.
type ListingPage struct {
	Items       []models.Listing `json:"items"`
	Total       int64            `json:"totalCount"`
	TotalPages  int64            `json:"totalPages"`
	CurrentPage int              `json:"currentPage"`
	Limit       int64            `json:"limit"`
}

// NewListingPage computes TotalPages as ceil(total/limit).
func NewListingPage(items []models.Listing, total int64, q *ListingQuery) *ListingPage {
	if items == nil {
		items = []models.Listing{}
	}
	var totalPages int64
	if q.Limit > 0 {
		totalPages = int64(math.Ceil(float64(total) / float64(q.Limit)))
	}
	return &ListingPage{
		Items:       items,
		Total:       total,
		TotalPages:  totalPages,
		CurrentPage: q.Page,
		Limit:       q.Limit,
	}
}

// BuildListingQuery turns search parameters into a filter, sort and page window.
// All supplied filters are ANDed. Only public listings are ever eligible.
func BuildListingQuery(params ListingSearchParams, defaults QueryDefaults) (*ListingQuery, error) {
	filter := bson.M{"is_public": true}
	var fieldErrs []apperrors.FieldError

	status := strings.TrimSpace(params.Status)
	if status == "" {
		status = defaults.DefaultStatus
	}
	if status == "" {
		status = string(models.ListingActive)
	}
	if status != StatusAll {
		if !models.ListingStatus(status).IsValid() {
			fieldErrs = append(fieldErrs, apperrors.Field("status", "oneof", "must be one of: active, resolved, deleted, all"))
		} else {
			filter["status"] = status
		}
	}

	search := strings.TrimSpace(params.Search)
	if search != "" {
		filter["$text"] = bson.M{"$search": search}
	}
	if v := strings.TrimSpace(params.IMEI); v != "" {
		filter["imei"] = containsRegex(v)
	}
	if v := strings.TrimSpace(params.Brand); v != "" {
		filter["brand"] = containsRegex(v)
	}
	if v := strings.TrimSpace(params.Model); v != "" {
		filter["phone_model"] = containsRegex(v)
	}
	if v := strings.TrimSpace(params.Location); v != "" {
		rx := containsRegex(v)
		filter["$or"] = bson.A{
			bson.M{"lost_location": rx},
			bson.M{"town": rx},
			bson.M{"district": rx},
		}
	}

	sortBy := params.SortBy
	if sortBy == "" {
		sortBy = SortByCreatedAt
	}
	if _, ok := sortFields[sortBy]; !ok && sortBy != SortByRelevance {
		fieldErrs = append(fieldErrs, apperrors.Field("sortBy", "oneof", "must be one of: createdAt, lostDate, views, relevance"))
	}
	direction := -1
	switch strings.ToLower(params.SortOrder) {
	case "", SortDesc:
	case SortAsc:
		direction = 1
	default:
		fieldErrs = append(fieldErrs, apperrors.Field("sortOrder", "oneof", "must be one of: asc, desc"))
	}

	if len(fieldErrs) > 0 {
		return nil, apperrors.Validation("Invalid search parameters", fieldErrs...)
	}

	var sort, projection bson.D
	switch {
	case sortBy == SortByRelevance && search != "":
		score := bson.M{"$meta": "textScore"}
		projection = bson.D{{Key: "score", Value: score}}
		sort = bson.D{{Key: "score", Value: score}, {Key: "_id", Value: -1}}
	case sortBy == SortByRelevance:
		// Without a search term there is no score; newest first keeps the order stable
		sort = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
	default:
		sort = bson.D{{Key: sortFields[sortBy], Value: direction}, {Key: "_id", Value: direction}}
	}

	page, limit := normalisePage(params.Page, params.Limit, defaults)

	return &ListingQuery{
		Filter:     filter,
		Sort:       sort,
		Projection: projection,
		Skip:       int64(page-1) * limit,
		Limit:      limit,
		Page:       page,
	}, nil
}

func normalisePage(page, limit int, defaults QueryDefaults) (int, int64) {
	pageSize, maxPageSize := defaults.PageSize, defaults.MaxPageSize
	if pageSize <= 0 {
		pageSize = 12
	}
	if maxPageSize <= 0 {
		maxPageSize = 100
	}
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = pageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, int64(limit)
}

// containsRegex is a case-insensitive substring match with the input taken literally.
func containsRegex(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
}
