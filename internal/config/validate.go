package config

import (
	stderrors "errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/rileyhilliard/nodeboard/internal/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Node names become file names (<node>.json), so they must stay inside the data directory.
	_ = v.RegisterValidation("nodename", func(fl validator.FieldLevel) bool {
		return ValidNodeName(fl.Field().String())
	})
	return v
}

// ValidNodeName reports whether name can be used as the <node>.json file name.
func ValidNodeName(name string) bool {
	return name != "" && !strings.ContainsAny(name, `/\`) && filepath.IsLocal(name)
}

// Validate checks the loaded documents. Node names must be unique and
// usable as file names; status must be active or disabled.
func Validate(d *Dashboard) error {
	if err := validate.Struct(d.Global); err != nil {
		return validationError("config/global.json", "", err)
	}

	if len(d.Nodes) == 0 {
		return errors.New(errors.ErrConfig,
			"config/nodes.json doesn't list any nodes",
			`Add at least one node, e.g. {"gpu01": {"order": 1, "status": "active"}}`)
	}

	seen := make(map[string]bool, len(d.Nodes))
	for _, n := range d.Nodes {
		if err := validate.Struct(n); err != nil {
			return validationError("config/nodes.json", n.Name, err)
		}
		if seen[n.Name] {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Node %q is listed twice", n.Name),
				"Node names are unique keys; remove or rename the duplicate.")
		}
		seen[n.Name] = true
	}
	return nil
}

func validationError(doc, node string, err error) error {
	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return errors.WrapWithCode(err, errors.ErrConfig, doc+" failed validation", "")
	}

	fe := fieldErrs[0]
	subject := doc
	if node != "" {
		subject = fmt.Sprintf("node %q in %s", node, doc)
	}

	var msg, suggestion string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("%s is missing %s", subject, fieldName(fe))
	case "oneof":
		msg = fmt.Sprintf("%s has %s %q", subject, fieldName(fe), fmt.Sprint(fe.Value()))
		suggestion = fmt.Sprintf("Use one of: %s (or leave it out for active).", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "nodename":
		msg = fmt.Sprintf("Node name %q can't be used as a file name", fmt.Sprint(fe.Value()))
		suggestion = "Node names must not contain '/', '\\' or '..'."
	case "gte":
		msg = fmt.Sprintf("%s: %s must be at least %s", subject, fieldName(fe), fe.Param())
	default:
		msg = fmt.Sprintf("%s: %s is invalid", subject, fieldName(fe))
	}
	return errors.WrapWithCode(err, errors.ErrConfig, msg, suggestion)
}

func fieldName(fe validator.FieldError) string {
	switch fe.Field() {
	case "RefreshInterval":
		return "refresh_interval_seconds"
	case "UsageTopN":
		return "usage_top_n"
	}
	return strings.ToLower(fe.Field())
}
