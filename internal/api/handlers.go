package api

import (
	"errors"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mehrbod2002/masjidmap/internal/api/respond"
	"github.com/mehrbod2002/masjidmap/internal/apperrors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// bindJSON decodes the request body into v; an empty body is accepted when optional.
func bindJSON(c *gin.Context, v interface{}, optional bool) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		respond.Error(c, apperrors.Wrap(apperrors.KindValidation, err, "invalid JSON body"))
		return false
	}
	return true
}

func pathID(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		respond.Error(c, apperrors.Validation("invalid %s", name).WithField(name, "malformed"))
		return primitive.NilObjectID, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.Validation("%s must be an integer", name).WithField(name, "integer")
	}
	return n, nil
}

func queryFloat(c *gin.Context, name string) (float64, bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, true, apperrors.Validation("%s must be a number", name).WithField(name, "number")
	}
	return f, true, nil
}
