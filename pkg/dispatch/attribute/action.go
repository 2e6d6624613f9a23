// Package attribute writes a contact attribute back to the CRM.
package attribute

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/campaignkit/journey/pkg/dispatch"
	"github.com/campaignkit/journey/pkg/models"
)

type UpdateAttributeAction struct {
	attribute string
	value     any
	client    dispatch.CRMClient
}

func NewUpdateAttributeAction(params map[string]any, client dispatch.CRMClient) (*UpdateAttributeAction, error) {
	name, _ := params["attribute"].(string)
	if name == "" {
		return nil, errors.New("update_attribute requires an attribute parameter")
	}

	value, ok := params["value"]
	if !ok {
		return nil, errors.New("update_attribute requires a value parameter")
	}

	return &UpdateAttributeAction{
		attribute: name,
		value:     value,
		client:    client,
	}, nil
}

func (a *UpdateAttributeAction) Execute(ctx context.Context, executionCtx models.ExecutionContext, logger *slog.Logger) (map[string]any, error) {
	logger.InfoContext(ctx, "Updating contact attribute", "attribute", a.attribute)

	err := a.client.UpdateAttribute(ctx, executionCtx.OrganizationID, executionCtx.ContactID, a.attribute, a.value)
	if err != nil {
		return nil, dispatch.NewTransientError(fmt.Errorf("update attribute %q: %w", a.attribute, err))
	}

	return map[string]any{
		"attribute": a.attribute,
		"value":     a.value,
	}, nil
}
