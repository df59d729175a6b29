package utils

import (
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// ValidateStruct runs `validate` struct tags and returns an InvalidArgument
// error naming the first failing field.
func ValidateStruct(input any) error {
	if err := getValidator().Struct(input); err != nil {
		fields := ProcessValidationErrors(err)
		parts := make([]string, 0, len(fields))
		for field, tag := range fields {
			parts = append(parts, field+" failed "+tag)
		}
		return InvalidArgument("invalid input: %s", strings.Join(parts, ", "))
	}
	return nil
}
