// Package cmd provides common initialization for the leadmill binaries.
package cmd

import (
	"log/slog"

	"github.com/leadmill/leadmill/pkg/dispatch/crmupdate"
	"github.com/leadmill/leadmill/pkg/dispatch/email"
	"github.com/leadmill/leadmill/pkg/dispatch/sms"
	"github.com/leadmill/leadmill/pkg/dispatch/task"
	"github.com/leadmill/leadmill/pkg/dispatch/webhook"
	"github.com/leadmill/leadmill/pkg/protocol"
	"github.com/leadmill/leadmill/pkg/registry"
)

// NewRegistry registers the built-in action kinds. Email, sms, and
// task use logging transports until a provider is configured; webhook
// and crm_update are fully live.
func NewRegistry(logger *slog.Logger, leads protocol.LeadStore) *registry.Registry {
	reg := registry.NewRegistry(logger)

	reg.Register(webhook.NewFactory())
	reg.Register(crmupdate.NewFactory(leads))
	reg.Register(email.NewFactory(email.NewLogGateway(logger)))
	reg.Register(sms.NewFactory(sms.NewLogGateway(logger)))
	reg.Register(task.NewFactory(task.NewLogCreator(logger)))

	return reg
}
