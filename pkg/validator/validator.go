package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var contactPattern = regexp.MustCompile(`^\d{10}$`)

// FieldError is one failed rule, reported by its JSON field name.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors lists every failed field, in struct order.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, fe := range v {
		msgs = append(msgs, fe.Message)
	}
	return strings.Join(msgs, "; ")
}

// First returns the first failure, which is what a form shows the user.
func (v ValidationErrors) First() FieldError {
	if len(v) == 0 {
		return FieldError{}
	}
	return v[0]
}

// Validator provides validation functionality
type Validator interface {
	Validate(interface{}) error
}

type validate struct {
	engine   *validator.Validate
	messages map[string]string
}

// Option configures a Validator.
type Option func(*validate)

// WithMessages sets user facing messages keyed by "field.tag", e.g.
// "contact.required".
func WithMessages(messages map[string]string) Option {
	return func(v *validate) {
		for k, m := range messages {
			v.messages[k] = m
		}
	}
}

func New(opts ...Option) Validator {
	v := &validate{
		engine:   validator.New(validator.WithRequiredStructEnabled()),
		messages: make(map[string]string),
	}
	if err := Register(v.engine); err != nil {
		panic(err)
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Register installs the custom rules and JSON field naming on an engine.
// The HTTP layer calls it on gin's binding engine as well.
func Register(engine *validator.Validate) error {
	engine.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	if err := engine.RegisterValidation("contact", func(fl validator.FieldLevel) bool {
		return contactPattern.MatchString(fl.Field().String())
	}); err != nil {
		return fmt.Errorf("register contact rule: %w", err)
	}
	return nil
}

func (v *validate) Validate(obj interface{}) error {
	err := v.engine.Struct(obj)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := make(ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field:   fe.Field(),
			Message: v.message(fe),
		})
	}
	return out
}

// FromBinding converts the errors gin's binding engine returns into
// ValidationErrors with the default messages.
func FromBinding(err error) (ValidationErrors, bool) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, false
	}
	out := make(ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Message: defaultMessage(fe)})
	}
	return out, true
}

func (v *validate) message(fe validator.FieldError) string {
	if msg, ok := v.messages[fe.Field()+"."+fe.Tag()]; ok {
		return msg
	}
	return defaultMessage(fe)
}

func defaultMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "contact":
		return fmt.Sprintf("%s must be a 10-digit number", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email", fe.Field())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}
