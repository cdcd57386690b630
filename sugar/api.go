// Package sugar holds the response helpers shared by the API handlers.
package sugar

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
	validator "gopkg.in/validator.v2"
)

type (
	// M is a convenience wrapper for a map.
	M map[string]interface{}

	apiError struct {
		Error string `json:"error"`
	}

	apiSuccess struct {
		Value interface{} `json:"value"`
	}
)

// ErrResponse aborts with code and err as the error message, or the
// status text if err is nil.
func ErrResponse(c *gin.Context, code int, err interface{}) {
	if err == nil {
		err = http.StatusText(code)
	}
	c.AbortWithStatusJSON(code, apiError{Error: fmt.Sprint(err)})
}

// InternalError records err and responds 500 without exposing it.
func InternalError(c *gin.Context, err error) {
	c.Error(err)
	ErrResponse(c, http.StatusInternalServerError, nil)
}

func SuccessResponse(c *gin.Context, code int, value interface{}) {
	c.JSON(code, apiSuccess{Value: value})
}

// NotFoundOrError responds 404 for a missing record, else 500.
func NotFoundOrError(c *gin.Context, err error) {
	if err == gorm.ErrRecordNotFound {
		ErrResponse(c, http.StatusNotFound, nil)
	} else {
		InternalError(c, err)
	}
}

// ValidateRequest responds 400 and returns false if object is invalid.
func ValidateRequest(c *gin.Context, object interface{}) bool {
	err := validator.Validate(object)
	if err == nil {
		return true
	}
	ErrResponse(c, http.StatusBadRequest, err)
	return false
}
