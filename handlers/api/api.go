// Package api serves the run ledger over HTTP.
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ReconfigureIO/hlsflow/sugar"
	"github.com/gin-gonic/gin"
)

// DefaultLimit caps list responses without a limit parameter.
const DefaultLimit = 20

func bindID(c *gin.Context, id *string) bool {
	paramID := c.Param("id")
	if paramID != "" {
		*id = paramID
		return true
	}
	sugar.ErrResponse(c, http.StatusNotFound, nil)
	return false
}

func bindLimit(c *gin.Context, limit *int) bool {
	q := c.Query("limit")
	if q == "" {
		*limit = DefaultLimit
		return true
	}
	n, err := strconv.Atoi(q)
	if err != nil || n <= 0 {
		sugar.ErrResponse(c, http.StatusBadRequest, "limit must be a positive integer")
		return false
	}
	*limit = n
	return true
}

// bearerToken returns the token of an "Authorization: Bearer" header, or
// the token query parameter.
func bearerToken(c *gin.Context) string {
	const prefix = "Bearer "
	if h := c.GetHeader("Authorization"); len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return c.Query("token")
}

var errNotFound = errors.New("not found")
