package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	pkgvalidator "github.com/jwalitptl/labreport/pkg/validator"
)

// RegisterValidation installs the custom rules and JSON field names on gin's
// binding engine, so binding failures name fields the way clients send them.
func RegisterValidation() error {
	engine, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected binding engine %T", binding.Validator.Engine())
	}
	return pkgvalidator.Register(engine)
}
