package lore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// draftRules carries the validation tags for a draft.
type draftRules struct {
	Owner       string   `validate:"required"`
	Kind        string   `validate:"required,oneof=CHARACTER PLACE EVENT"`
	Name        string   `validate:"required,max=200"`
	Description string   `validate:"max=10000"`
	Traits      []string `validate:"max=32,dive,max=200"`
	Order       int      `validate:"min=0"`
}

// Validate checks a draft before it is sent to a store.
func (d Draft) Validate() error {
	rules := draftRules{
		Owner:       d.OwnerID,
		Kind:        string(d.Kind()),
		Name:        strings.TrimSpace(d.Name),
		Description: d.Description,
	}
	switch a := d.Attributes.(type) {
	case CharacterAttributes:
		rules.Traits = a.Traits
	case EventAttributes:
		rules.Order = a.Order
	}
	if err := validate.Struct(rules); err != nil {
		return formatValidationError(err)
	}
	return nil
}

func formatValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, formatFieldError(fe))
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
}

func formatFieldError(e validator.FieldError) string {
	field := strings.ToLower(e.Field())
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	}
	return fmt.Sprintf("%s is invalid", field)
}
