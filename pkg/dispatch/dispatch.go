// Package dispatch defines the action protocol and the registry that resolves
// an action step's configured type into an executable implementation.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/campaignkit/journey/pkg/models"
	"github.com/campaignkit/journey/pkg/personalize"
)

// Action is one executable step implementation. Execute returns the result
// payload recorded on the step execution.
type Action interface {
	Execute(ctx context.Context, executionCtx models.ExecutionContext, logger *slog.Logger) (map[string]any, error)
}

// ActionFactory creates action instances and describes the parameters they
// accept.
type ActionFactory interface {
	Create(params map[string]any) (Action, error)
	ActionType() string

	// Schema returns the JSON schema the step parameters are validated
	// against at publish time.
	Schema() map[string]any
}

// Registry maps action types to their factories.
type Registry struct {
	logger    *slog.Logger
	factories map[string]ActionFactory
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger.With("module", "dispatch"),
		factories: make(map[string]ActionFactory),
	}
}

func (r *Registry) Register(factory ActionFactory) {
	r.factories[factory.ActionType()] = factory
}

func (r *Registry) ActionTypes() []string {
	types := make([]string, 0, len(r.factories))
	for actionType := range r.factories {
		types = append(types, actionType)
	}

	return types
}

func (r *Registry) Create(actionType string, params map[string]any) (Action, error) {
	factory, ok := r.factories[actionType]
	if !ok {
		return nil, fmt.Errorf("action type %q not registered", actionType)
	}

	return factory.Create(params)
}

// ValidateParameters checks step parameters against the action's JSON schema.
// Called by the publishing service so misconfigured steps never reach a
// worker.
func (r *Registry) ValidateParameters(actionType string, params map[string]any) error {
	factory, ok := r.factories[actionType]
	if !ok {
		return fmt.Errorf("action type %q not registered", actionType)
	}

	schema := factory.Schema()
	if schema == nil {
		return nil
	}

	if params == nil {
		params = map[string]any{}
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(params)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("schema validation for %q: %w", actionType, err)
	}

	if !result.Valid() {
		descriptions := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			descriptions = append(descriptions, desc.String())
		}

		return fmt.Errorf("invalid parameters for %q: %s", actionType, strings.Join(descriptions, "; "))
	}

	return nil
}

// Dispatch resolves and runs the action configured on a step. Parameters
// are personalized against the execution context first, so configuration
// can reference contact attributes and earlier step outputs. A missing
// action type is a permanent error; the action itself decides whether its
// failures are transient.
func (r *Registry) Dispatch(ctx context.Context, spec *models.ActionSpec, executionCtx models.ExecutionContext) (map[string]any, error) {
	params, err := personalize.RenderParameters(spec.Parameters, &executionCtx)
	if err != nil {
		return nil, fmt.Errorf("render parameters for %q: %w", spec.ActionType, err)
	}

	action, err := r.Create(spec.ActionType, params)
	if err != nil {
		return nil, err
	}

	logger := r.logger.With(
		"action_type", spec.ActionType,
		"execution_id", executionCtx.ExecutionID,
		"contact_id", executionCtx.ContactID,
	)

	return action.Execute(ctx, executionCtx, logger)
}
