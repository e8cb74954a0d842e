package contracts

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is safe for concurrent use and caches struct metadata
var validate = validator.New()

// validateStruct runs tag validation and converts failures into
// ErrInvalidParameter with human readable messages
func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}

	messages := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		messages = append(messages, fieldMessage(fe))
	}

	return invalidParameter("%s", strings.Join(messages, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.StructField() {
	case "Market":
		return "market must be one of: KOSPI, KOSDAQ"
	case "CapMin":
		return "capMin must not be negative"
	case "CapMax":
		return "capMin must not exceed capMax"
	case "TopN":
		return "topN must be between 1 and 100"
	case "PERMax":
		return "perMax must be positive"
	case "PBRMax":
		return "pbrMax must be positive"
	case "DivPolicy":
		return "divPolicy must be one of: zero, exclude"
	default:
		return fmt.Sprintf("%s failed %s validation", fe.StructField(), fe.Tag())
	}
}
