package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Discord sends notifications via Discord webhook.
type Discord struct {
	client     *http.Client
	webhookURL string
	now        func() time.Time
}

// NewDiscord creates a new Discord notifier.
func NewDiscord(webhookURL string) *Discord {
	return &Discord{
		client:     &http.Client{Timeout: 10 * time.Second},
		webhookURL: webhookURL,
		now:        time.Now,
	}
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Send(ctx context.Context, n *Notification) error {
	var ideas []string
	for _, idea := range topIdeas(n, 5) {
		ideas = append(ideas, fmt.Sprintf("• %s (%s saturation)", idea.Title, idea.Saturation))
	}

	description := fmt.Sprintf("%s\n\n%s\n\n**Signals:** %s",
		scoreLine(n, "**"), n.Summary, strings.Join(n.Members, ", "))
	if len(ideas) > 0 {
		description += "\n\n**Ideas:**\n" + strings.Join(ideas, "\n")
	}

	embed := map[string]any{
		"title":       n.Title,
		"description": description,
		"color":       0x14F195,
		"timestamp":   d.now().UTC().Format(time.RFC3339),
	}
	if n.URL != "" {
		embed["url"] = n.URL
	}

	body, err := json.Marshal(map[string]any{"embeds": []map[string]any{embed}})
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}
	return postJSON(ctx, d.client, "discord webhook", d.webhookURL, body, nil)
}
