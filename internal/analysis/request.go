package analysis

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"

	"github.com/sells-group/siterisk/internal/spatial"
)

// ErrInvalidRequest marks every request validation failure.
var ErrInvalidRequest = eris.New("analysis: invalid request")

// ErrUnknownCategory means the category key is not in the registry.
var ErrUnknownCategory = eris.New("analysis: unknown category")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Request is one analysis request. Lat and Lng are pointers so a missing
// coordinate is distinguishable from zero.
type Request struct {
	Lat      *float64 `json:"lat" validate:"required"`
	Lng      *float64 `json:"lng" validate:"required"`
	Category string   `json:"category" validate:"required,max=64"`
}

// NewRequest builds a Request from plain values.
func NewRequest(lat, lng float64, category string) Request {
	return Request{Lat: &lat, Lng: &lng, Category: category}
}

// ValidationError names the offending field. It matches ErrInvalidRequest
// and whatever Err wraps.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("analysis: invalid request: %s: %s", e.Field, e.Message)
}

// Is reports whether target is ErrInvalidRequest.
func (e *ValidationError) Is(target error) bool { return target == ErrInvalidRequest }

func (e *ValidationError) Unwrap() error { return e.Err }

// Validate checks the request shape and coordinate range. Category
// membership is checked by the service against its registry.
func (r Request) Validate() error {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &ValidationError{Field: fe.Field(), Message: fieldMessage(fe)}
		}
		return &ValidationError{Message: err.Error(), Err: err}
	}
	if err := spatial.ValidateCoordinate(*r.Lat, *r.Lng); err != nil {
		field := "lat"
		if spatial.ValidateCoordinate(*r.Lat, 0) == nil {
			field = "lng"
		}
		return &ValidationError{Field: field, Message: "coordinate out of range or not a number", Err: err}
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
