package patient

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var ErrValidation = errors.New("validation failed")

// Info is the contact data every booking and waitlist request carries.
type Info struct {
	Name  string `json:"name" validate:"required,min=2,max=100"`
	Email string `json:"email" validate:"required,max=255,email"`
	Phone string `json:"phone" validate:"required,max=20,br_phone"`
}

// Normalize trims whitespace and lowercases the email.
func (i Info) Normalize() Info {
	return Info{
		Name:  strings.Join(strings.Fields(i.Name), " "),
		Email: strings.ToLower(strings.TrimSpace(i.Email)),
		Phone: strings.TrimSpace(i.Phone),
	}
}

// brPhone accepts Brazilian landline and mobile numbers with optional +55, area code
// parentheses, spaces and a dash: "(11) 98765-4321", "+55 11 3456-7890", "11987654321".
var brPhone = regexp.MustCompile(`^(\+?55[\s-]?)?(\(?[1-9]{2}\)?[\s-]?)(9?\d{4})[\s-]?(\d{4})$`)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("br_phone", func(fl validator.FieldLevel) bool {
			return brPhone.MatchString(fl.Field().String())
		})
	})
	return validate
}

// ValidationError lists the offending fields with a message for each.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Field builds a single-field ValidationError.
func Field(name, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{name: message}}
}

// Validate runs the struct's validate tags and converts failures into a ValidationError.
func Validate(s any) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		out.Fields[fieldName(fe)] = describe(fe)
	}
	return out
}

func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return strings.ToLower(ns)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must have at least " + fe.Param() + " characters"
	case "max":
		return "must have at most " + fe.Param() + " characters"
	case "email":
		return "must be a valid email address"
	case "br_phone":
		return "must be a valid Brazilian phone number"
	case "oneof":
		return "must be one of: " + fe.Param()
	}
	return "is invalid"
}
