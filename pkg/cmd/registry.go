// Package cmd provides common initialization functions for command-line
// applications.
package cmd

import (
	"log/slog"

	"github.com/campaignkit/journey/pkg/clients"
	"github.com/campaignkit/journey/pkg/dispatch"
	"github.com/campaignkit/journey/pkg/dispatch/attribute"
	"github.com/campaignkit/journey/pkg/dispatch/score"
	"github.com/campaignkit/journey/pkg/dispatch/sendemail"
	"github.com/campaignkit/journey/pkg/dispatch/webhook"
)

// NewRegistry builds the action registry with the native actions wired to the
// platform client.
func NewRegistry(logger *slog.Logger, platform *clients.PlatformClient) *dispatch.Registry {
	registry := dispatch.NewRegistry(logger)

	registry.Register(sendemail.NewSendEmailActionFactory(platform))
	registry.Register(attribute.NewUpdateAttributeActionFactory(platform))
	registry.Register(score.NewAdjustScoreActionFactory(platform))
	registry.Register(webhook.NewWebhookActionFactory())

	return registry
}
