// Package sendemail delivers a templated email to the execution's contact
// through the configured delivery provider.
package sendemail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/campaignkit/journey/pkg/dispatch"
	"github.com/campaignkit/journey/pkg/models"
)

type SendEmailAction struct {
	templateID string
	variables  map[string]any
	client     dispatch.DeliveryClient
}

func NewSendEmailAction(params map[string]any, client dispatch.DeliveryClient) (*SendEmailAction, error) {
	templateID, _ := params["template_id"].(string)
	if templateID == "" {
		return nil, errors.New("send_email requires a template_id parameter")
	}

	variables, _ := params["variables"].(map[string]any)

	return &SendEmailAction{
		templateID: templateID,
		variables:  variables,
		client:     client,
	}, nil
}

func (a *SendEmailAction) Execute(ctx context.Context, executionCtx models.ExecutionContext, logger *slog.Logger) (map[string]any, error) {
	logger.InfoContext(ctx, "Sending email", "template_id", a.templateID)

	messageID, err := a.client.SendEmail(ctx, executionCtx.OrganizationID, executionCtx.ContactID, a.templateID, a.variables)
	if err != nil {
		// Provider outages resolve on their own, let the executor retry.
		return nil, dispatch.NewTransientError(fmt.Errorf("send email: %w", err))
	}

	return map[string]any{
		"message_id":  messageID,
		"template_id": a.templateID,
	}, nil
}
