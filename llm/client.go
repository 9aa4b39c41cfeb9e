// LLMClient - Simple wrapper around providers.

package llm

import (
	"context"
	"strings"
)

// Client wraps a Provider with a content-only interface.
type Client struct {
	provider Provider
}

// NewClient creates a new LLM client from a provider.
func NewClient(provider Provider) *Client {
	return &Client{provider: provider}
}

// Ask sends a system and a user prompt and returns the trimmed reply.
func (c *Client) Ask(ctx context.Context, system, user string) (string, error) {
	return c.AskWithFormat(ctx, system, user, nil)
}

// AskWithFormat is Ask with a response format.
func (c *Client) AskWithFormat(ctx context.Context, system, user string, format *ResponseFormat) (string, error) {
	response, err := c.provider.ChatWithFormat(ctx, buildMessages(system, user), format)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Content), nil
}

// Stream sends a system and a user prompt, forwarding chunks as they arrive,
// and returns the assembled reply.
func (c *Client) Stream(ctx context.Context, system, user string, chunks chan<- string) (string, error) {
	relay := make(chan string)
	done := make(chan struct{})

	var sb strings.Builder
	go func() {
		defer close(done)
		for chunk := range relay {
			sb.WriteString(chunk)
			if chunks != nil {
				select {
				case chunks <- chunk:
				case <-ctx.Done():
				}
			}
		}
	}()

	_, err := c.provider.StreamChat(ctx, buildMessages(system, user), relay)
	close(relay)
	<-done
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(sb.String()), nil
}

// Provider returns the underlying provider.
func (c *Client) Provider() Provider {
	return c.provider
}

func buildMessages(system, user string) []ChatMessage {
	var messages []ChatMessage
	if system != "" {
		messages = append(messages, SystemMessage(system))
	}
	return append(messages, UserMessage(user))
}
