package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"

	"agentsvc/internal/agent/ports"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Handler executes a tool. It must not retain the run context after returning.
type Handler func(ctx context.Context, rc *ports.RunContext, args json.RawMessage) (any, error)

// Spec is a named capability an agent may invoke mid-generation.
type Spec struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
	Handler     Handler
}

// Definition is the catalog entry shown to the model.
func (s Spec) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{Name: s.Name, Description: s.Description, Parameters: s.Parameters}
}

func (s Spec) validate() error {
	if !ports.ValidToolName(s.Name) {
		return fmt.Errorf("invalid tool name %q", s.Name)
	}
	if strings.TrimSpace(s.Description) == "" {
		return fmt.Errorf("tool %s: description is required", s.Name)
	}
	if s.Handler == nil {
		return fmt.Errorf("tool %s: handler is required", s.Name)
	}
	if s.Parameters != nil && s.Parameters.Type != "" && s.Parameters.Type != "object" {
		return fmt.Errorf("tool %s: parameters must describe an object", s.Name)
	}
	return nil
}

// NewTyped builds a spec whose parameter schema is generated from In.
// Fields without omitempty are required; `validate` tags are enforced
// before fn runs.
func NewTyped[In any](name, description string, fn func(ctx context.Context, rc *ports.RunContext, in In) (any, error)) Spec {
	return Spec{
		Name:        name,
		Description: description,
		Parameters:  reflectParameters[In](),
		Handler: func(ctx context.Context, rc *ports.RunContext, args json.RawMessage) (any, error) {
			var in In
			dec := json.NewDecoder(bytes.NewReader(args))
			if err := dec.Decode(&in); err != nil {
				return nil, &argumentsError{detail: describeDecodeError(err)}
			}
			if reflect.ValueOf(in).Kind() == reflect.Struct {
				if err := validate.Struct(in); err != nil {
					return nil, &argumentsError{detail: describeValidationError(err)}
				}
			}
			return fn(ctx, rc, in)
		},
	}
}

func reflectParameters[In any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var zero In
	schema := reflector.Reflect(zero)
	schema.Version = ""
	schema.ID = ""
	if schema.Type == "" {
		schema.Type = "object"
	}
	return schema
}

func describeDecodeError(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return fmt.Sprintf("%s must be %s, got %s", typeErr.Field, typeErr.Type.Kind(), typeErr.Value)
	}
	return err.Error()
}

func describeValidationError(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, fmt.Sprintf("%s fails %s", fe.Field(), rule))
	}
	return strings.Join(parts, "; ")
}
