package req

import (
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// IsValid валидирует структуру типа T по тегам validate.
func IsValid[T any](payload T) error {
	return validate.Struct(payload)
}

// BindURI заполняет структуру из параметров пути (теги uri) и валидирует ее.
func BindURI[T any](c *gin.Context) (*T, error) {
	var payload T
	if err := c.ShouldBindUri(&payload); err != nil {
		return nil, err
	}
	if err := IsValid(payload); err != nil {
		return nil, err
	}
	return &payload, nil
}
