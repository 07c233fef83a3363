package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ukiyo/internal/envelope"
	"ukiyo/internal/logging"
	"ukiyo/internal/usage"
)

// Label is the result source label, "<Display> (<model>)".
func Label(name Name, model string) string {
	if model == "" {
		return name.Display()
	}
	return fmt.Sprintf("%s (%s)", name.Display(), model)
}

// Client pairs a Backend with the persona and call defaults. It implements Chatter.
type Client struct {
	Backend  Backend
	Persona  string
	Settings Settings
	// Tracker records token usage. When nil, the tracker carried by the
	// call context (usage.NewContext) is used, if any.
	Tracker *usage.Tracker
}

// NewClient creates a Chatter over b.
func NewClient(b Backend, persona string, s Settings, tracker *usage.Tracker) *Client {
	return &Client{Backend: b, Persona: persona, Settings: s, Tracker: tracker}
}

// Chat runs one chat-style call with the backend's default settings.
func Chat(ctx context.Context, b Backend, persona string, req Request) envelope.Result {
	return NewClient(b, persona, DefaultSettings(b.Name()), nil).Chat(ctx, req)
}

// Chat assembles the prompt, calls the backend and converts the outcome into a Result.
func (c *Client) Chat(ctx context.Context, req Request) envelope.Result {
	name := c.Backend.Name()
	model := req.Model
	if model == "" {
		model = c.Settings.Model
	}
	source := Label(name, model)
	log := logging.Get(logging.CategoryProvider)

	conv, err := Assemble(req, c.Backend.Quirks(), c.Persona)
	if err != nil {
		log.Warn("[%s] not sent: %v", name.Display(), err)
		return envelope.Result{Source: source, Error: fmt.Sprintf("%s: prompt is empty, nothing to send.", name.Display())}
	}

	log.Debug("[%s] request: model=%s system_len=%d turns=%d prompt=%q",
		name.Display(), model, len(conv.System), len(conv.Turns), logging.Truncate(req.Prompt, 100))

	if c.Settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Settings.Timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := c.Backend.Send(ctx, model, conv, c.Settings)
	if err != nil {
		msg := describeError(name, err, c.Settings.Timeout)
		log.Error("[%s] call failed after %v: %v", name.Display(), time.Since(start), err)
		return envelope.Result{Source: source, Error: msg}
	}

	c.track(ctx, name, model, reply, "chat")
	log.Info("[%s] completed in %v: model=%s response_len=%d",
		name.Display(), time.Since(start), model, len([]rune(reply.Text)))

	return envelope.Result{Source: source, Response: reply.Text, Links: reply.Links}
}

func (c *Client) track(ctx context.Context, name Name, model string, reply Reply, op string) {
	tracker := c.Tracker
	if tracker == nil {
		tracker = usage.FromContext(ctx)
	}
	if tracker == nil {
		return
	}
	tracker.Track(ctx, model, string(name), reply.InputTokens, reply.OutputTokens, op)
}

func describeError(name Name, err error, timeout time.Duration) string {
	switch {
	case errors.Is(err, ErrNotInitialized):
		return fmt.Sprintf("%s client not initialized.", name.Display())
	case errors.Is(err, context.DeadlineExceeded):
		if timeout > 0 {
			return fmt.Sprintf("%s request timed out after %s", name.Display(), timeout)
		}
		return fmt.Sprintf("%s request timed out", name.Display())
	case errors.Is(err, context.Canceled):
		return fmt.Sprintf("%s request cancelled", name.Display())
	default:
		return fmt.Sprintf("%s API error: %v", name.Display(), err)
	}
}
