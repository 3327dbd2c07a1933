package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pasindubuddhika1999/findmyphone/internal/apperrors"
)

var kindStatus = map[apperrors.Kind]int{
	apperrors.KindValidation:      http.StatusBadRequest,
	apperrors.KindUnauthenticated: http.StatusUnauthorized,
	apperrors.KindForbidden:       http.StatusForbidden,
	apperrors.KindPendingApproval: http.StatusForbidden,
	apperrors.KindNotFound:        http.StatusNotFound,
	apperrors.KindConflict:        http.StatusConflict,
	apperrors.KindAlreadyApproved: http.StatusConflict,
	apperrors.KindUpstream:        http.StatusBadGateway,
}

// respondError maps a service error to its HTTP status and JSON body.
// Internal errors are attached to the context for logging and never echoed.
func respondError(c *gin.Context, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "kind": apperrors.KindInternal})
		return
	}

	status, known := kindStatus[appErr.Kind]
	if !known {
		status = http.StatusInternalServerError
	}
	if appErr.Err != nil || status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}

	body := gin.H{"error": appErr.Message, "kind": appErr.Kind}
	if len(appErr.Fields) > 0 {
		body["fields"] = appErr.Fields
	}
	if appErr.Kind == apperrors.KindPendingApproval {
		body["isPendingApproval"] = true
	}
	c.JSON(status, body)
}

// bindJSON decodes the request body, answering 400 on malformed JSON.
func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		respondError(c, apperrors.Validation("Invalid request body: "+err.Error()))
		return false
	}
	return true
}

// objectIDParam parses a path parameter; an invalid id is reported as not found.
func objectIDParam(c *gin.Context, name, entity string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		respondError(c, apperrors.NotFound(entity))
		return primitive.NilObjectID, false
	}
	return id, true
}

// objectIDQuery parses an optional id filter from the query string.
// A missing value yields the zero id; a malformed one is a validation error.
func objectIDQuery(c *gin.Context, name string) (primitive.ObjectID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return primitive.NilObjectID, true
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		respondError(c, apperrors.Validation("", apperrors.Field(name, "mongodb", "must be a valid id")))
		return primitive.NilObjectID, false
	}
	return id, true
}

// queryInt returns 0 for a missing or malformed value so services apply their defaults.
func queryInt(c *gin.Context, name string) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return 0
	}
	return v
}

// queryBool returns nil when the parameter is absent or not a boolean.
func queryBool(c *gin.Context, name string) *bool {
	v, err := strconv.ParseBool(c.Query(name))
	if err != nil {
		return nil
	}
	return &v
}
