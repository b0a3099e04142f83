package workflow

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidRequest marks input rejected before an operation is launched.
var ErrInvalidRequest = errors.New("invalid request")

// ValidationError carries a message fit for the API caller.
type ValidationError struct {
	Message string
	Field   string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidRequest }

// Recipes a site can be created from.
var Recipes = []string{"wordpress", "drupal10", "laravel", "lamp", "lemp"}

const RecipeWordPress = "wordpress"

var (
	siteNameRe = regexp.MustCompile(`^[a-z0-9-]+$`)
	phpRe      = regexp.MustCompile(`^\d+\.\d+$`)
	dbSpecRe   = regexp.MustCompile(`^(mysql|mariadb|postgres):\d+(\.\d+)*$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := registerValidations(v); err != nil {
		panic(err)
	}
	return v
}

// registerValidations adds the "sitename", "phpversion" and "dbspec" tags to v.
func registerValidations(v *validator.Validate) error {
	tags := map[string]*regexp.Regexp{
		"sitename":   siteNameRe,
		"phpversion": phpRe,
		"dbspec":     dbSpecRe,
	}
	for tag, re := range tags {
		re := re
		if err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return re.MatchString(fl.Field().String())
		}); err != nil {
			return err
		}
	}
	return nil
}

// CreateRequest describes a new site.
type CreateRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=50,sitename"`
	Recipe   string `json:"recipe" validate:"required,oneof=wordpress drupal10 laravel lamp lemp"`
	PHP      string `json:"php,omitempty" validate:"omitempty,phpversion"`
	Database string `json:"database,omitempty" validate:"omitempty,dbspec"`
	Webroot  string `json:"webroot,omitempty"`
}

func (r CreateRequest) Validate() error {
	if strings.Contains(r.Webroot, "..") {
		return &ValidationError{Field: "webroot", Message: "Webroot must stay inside the site directory"}
	}
	return translate(validate.Struct(r))
}

// MigrateRequest lists the settings to change. Nil or empty fields are left alone.
type MigrateRequest struct {
	PHP        string `json:"php,omitempty" validate:"omitempty,phpversion"`
	Database   string `json:"database,omitempty" validate:"omitempty,dbspec"`
	PhpMyAdmin *bool  `json:"phpmyadmin,omitempty"`
}

func (r MigrateRequest) Validate() error {
	if r.PHP == "" && r.Database == "" && r.PhpMyAdmin == nil {
		return &ValidationError{Message: "At least one of php, database or phpmyadmin is required"}
	}
	return translate(validate.Struct(r))
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Message: err.Error()}
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	msg := ""
	switch fe.Field() + "." + fe.Tag() {
	case "Name.required":
		msg = "Site name is required"
	case "Name.sitename":
		msg = "Site name must contain only lowercase letters, numbers, and hyphens"
	case "Name.min", "Name.max":
		msg = "Site name must be between 2 and 50 characters"
	case "Recipe.required":
		msg = "Recipe is required"
	case "Recipe.oneof":
		msg = "Invalid recipe. Allowed values: " + strings.Join(Recipes, ", ")
	case "PHP.phpversion":
		msg = "PHP version must look like 8.1"
	case "Database.dbspec":
		msg = "Database must look like <mysql|mariadb|postgres>:<version>"
	default:
		msg = "Invalid " + field
	}
	return &ValidationError{Field: field, Message: msg}
}
