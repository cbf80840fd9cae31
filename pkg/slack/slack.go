// Copyright 2025 The Binrep Authors
// SPDX-License-Identifier: Apache-2.0

// Package slack posts optional webhook notifications for the CLI
// collaborators. Without a configured webhook URL it does nothing.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
)

// WebhookConfig is the notification target. Every field is optional.
type WebhookConfig struct {
	WebhookURL string `toml:"webhook_url,omitempty"`
	Channel    string `toml:"channel,omitempty"`
}

// Config is the `[slack]` section of the main configuration file.
type Config struct {
	Slack *WebhookConfig `toml:"slack,omitempty"`
}

// Webhook returns the configured target, empty when the section is
// absent.
func (c Config) Webhook() WebhookConfig {
	if c.Slack == nil {
		return WebhookConfig{}
	}
	return *c.Slack
}

// OverrideWith layers o on top of c: set fields of o win.
func (c WebhookConfig) OverrideWith(o WebhookConfig) WebhookConfig {
	out := c
	if o.WebhookURL != "" {
		out.WebhookURL = o.WebhookURL
	}
	if o.Channel != "" {
		out.Channel = o.Channel
	}
	return out
}

type payload struct {
	Text    string `json:"text"`
	Channel string `json:"channel,omitempty"`
}

// Send posts text to the webhook. It reports whether a notification
// was actually sent; an unset webhook URL sends nothing.
func (c WebhookConfig) Send(ctx context.Context, text string) (bool, error) {
	if c.WebhookURL == "" {
		return false, nil
	}
	body, err := json.Marshal(payload{Text: text, Channel: c.Channel})
	if err != nil {
		return false, errors.Wrap(err, "encoding slack payload")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return false, errors.Wrap(err, "building slack request")
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false, errors.Wrap(err, "posting slack notification")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return false, errors.Errorf("slack webhook returned %s", resp.Status)
	}
	return true, nil
}
