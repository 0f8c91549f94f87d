package helius

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var ErrNoWebhookID = errors.New("helius: webhook response carried no id")

type Webhook struct {
	ID               string   `json:"webhookID,omitempty"`
	URL              string   `json:"webhookURL"`
	TransactionTypes []string `json:"transactionTypes"`
	AccountAddresses []string `json:"accountAddresses"`
	WebhookType      string   `json:"webhookType"`
}

func swapWebhook(url string, addrs []string) Webhook {
	if addrs == nil {
		addrs = []string{}
	}
	return Webhook{
		URL:              url,
		TransactionTypes: []string{"SWAP"},
		AccountAddresses: addrs,
		WebhookType:      "enhanced",
	}
}

// CreateWebhook registers an enhanced SWAP webhook and returns its id.
func (c *Client) CreateWebhook(ctx context.Context, url string, addrs []string) (string, error) {
	data, err := c.do(ctx, "webhook_create", http.MethodPost, "/webhooks", nil, swapWebhook(url, addrs))
	if err != nil {
		return "", err
	}
	var out Webhook
	if err = json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("webhook_create: decode: %w", err)
	}
	if out.ID == "" {
		return "", ErrNoWebhookID
	}
	return out.ID, nil
}

// EditWebhook replaces the address list of an existing webhook.
func (c *Client) EditWebhook(ctx context.Context, id, url string, addrs []string) error {
	_, err := c.do(ctx, "webhook_edit", http.MethodPost, "/webhooks/"+id, nil, swapWebhook(url, addrs))
	return err
}

func (c *Client) DeleteWebhook(ctx context.Context, id string) error {
	_, err := c.do(ctx, "webhook_delete", http.MethodDelete, "/webhooks/"+id, nil, nil)
	return err
}

func (c *Client) ListWebhooks(ctx context.Context) ([]Webhook, error) {
	data, err := c.do(ctx, "webhook_list", http.MethodGet, "/webhooks", nil, nil)
	if err != nil {
		return nil, err
	}
	var out []Webhook
	if err = json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("webhook_list: decode: %w", err)
	}
	return out, nil
}
