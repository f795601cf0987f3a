// Package transport defines the outbound collaborator boundaries the action
// handlers forward to: email, SMS, webhooks, and entity record writes.
//
// Template interpolation is a transport concern. Handlers pass raw config
// and data through; each sender renders {{field.path}} placeholders itself
// via Render.
package transport

import (
	"context"
	"fmt"
	"regexp"

	"github.com/paperledger/workflow/internal/fieldpath"
)

// EmailSender delivers (or queues) an email described by an action config.
type EmailSender interface {
	SendEmail(ctx context.Context, config map[string]any, data map[string]any) error
}

// SMSSender delivers an SMS described by an action config.
type SMSSender interface {
	SendSMS(ctx context.Context, config map[string]any, data map[string]any) error
}

// WebhookCaller performs an outbound HTTP call described by an action config.
type WebhookCaller interface {
	Call(ctx context.Context, config map[string]any, data map[string]any) error
}

// RecordWriter mutates entity records on behalf of update_record and
// create_record actions.
type RecordWriter interface {
	UpdateRecord(ctx context.Context, config map[string]any, data map[string]any) error
	CreateRecord(ctx context.Context, config map[string]any, data map[string]any) error
}

var placeholderRe = regexp.MustCompile(`\{\{\s*([^{}\s]+)\s*\}\}`)

// Render substitutes {{field.path}} placeholders in s with values resolved
// from data. Unresolvable placeholders render empty.
func Render(s string, data map[string]any) string {
	return placeholderRe.ReplaceAllStringFunc(s, func(m string) string {
		path := placeholderRe.FindStringSubmatch(m)[1]
		val, ok := fieldpath.Resolve(data, path)
		if !ok || val == nil {
			return ""
		}
		return fmt.Sprintf("%v", val)
	})
}

// ConfigString reads a string-valued key from an action config, rendering
// any placeholders against data.
func ConfigString(config map[string]any, key string, data map[string]any) string {
	s, _ := config[key].(string)
	if s == "" {
		return ""
	}
	return Render(s, data)
}
