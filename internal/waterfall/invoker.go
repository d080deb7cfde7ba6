package waterfall

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/foodshare/internal/model"
	"github.com/sells-group/foodshare/internal/resilience"
	"github.com/sells-group/foodshare/pkg/anthropic"
	"github.com/sells-group/foodshare/pkg/openrouter"
)

// Invoker performs one attempt against one external model and returns the
// raw reply text. Failures are *resilience.ModelError for non-2xx replies and
// *resilience.TimeoutError when the call exceeds Call.Timeout.
type Invoker interface {
	Invoke(ctx context.Context, call Call) (string, error)
}

// generation settings per tier.
type genParams struct {
	temperature float64
	maxTokens   int
}

var tierParams = map[model.Tier]genParams{
	model.TierVision: {temperature: 0.2, maxTokens: 500},
	model.TierText:   {temperature: 0.3, maxTokens: 400},
}

func paramsFor(tier model.Tier) genParams {
	if p, ok := tierParams[tier]; ok {
		return p
	}
	return tierParams[model.TierText]
}

func withCallTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// timeoutOrWrap converts deadline failures into a TimeoutError and wraps
// everything else.
func timeoutOrWrap(ctx context.Context, call Call, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || resilience.IsTimeout(err) {
		return &resilience.TimeoutError{Model: call.Model, After: call.Timeout, Err: err}
	}
	return eris.Wrapf(err, "invoke %s", call.Model)
}

// OpenRouterInvoker sends calls through the OpenRouter chat completions API.
type OpenRouterInvoker struct {
	client openrouter.Client
}

// NewOpenRouterInvoker wraps an OpenRouter client.
func NewOpenRouterInvoker(client openrouter.Client) *OpenRouterInvoker {
	return &OpenRouterInvoker{client: client}
}

func (o *OpenRouterInvoker) Invoke(ctx context.Context, call Call) (string, error) {
	ctx, cancel := withCallTimeout(ctx, call.Timeout)
	defer cancel()

	p := paramsFor(call.Tier)
	user := openrouter.Message{Role: "user", Content: call.Prompt}
	if call.Image != nil {
		user = openrouter.Message{Role: "user", Parts: []openrouter.ContentPart{
			openrouter.TextPart(call.Prompt),
			openrouter.ImagePart(call.Image.Data, call.Image.MIMEType),
		}}
	}

	resp, err := o.client.ChatCompletion(ctx, openrouter.ChatCompletionRequest{
		Model: call.Model,
		Messages: []openrouter.Message{
			{Role: "system", Content: call.System},
			user,
		},
		Temperature: &p.temperature,
		MaxTokens:   &p.maxTokens,
	})
	if err != nil {
		var apiErr *openrouter.APIError
		if errors.As(err, &apiErr) {
			return "", resilience.NewModelError(call.Model, apiErr.StatusCode, apiErr.Body)
		}
		return "", timeoutOrWrap(ctx, call, err)
	}

	zap.L().Debug("token usage",
		zap.String("provider", "openrouter"),
		zap.String("model", call.Model),
		zap.String("tier", string(call.Tier)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)
	return resp.Text(), nil
}

// AnthropicInvoker sends calls through the Anthropic messages API.
type AnthropicInvoker struct {
	client anthropic.Client
}

// NewAnthropicInvoker wraps an Anthropic client.
func NewAnthropicInvoker(client anthropic.Client) *AnthropicInvoker {
	return &AnthropicInvoker{client: client}
}

func (a *AnthropicInvoker) Invoke(ctx context.Context, call Call) (string, error) {
	ctx, cancel := withCallTimeout(ctx, call.Timeout)
	defer cancel()

	p := paramsFor(call.Tier)
	msg := anthropic.Message{Role: "user", Content: call.Prompt}
	if call.Image != nil {
		msg.Image = &anthropic.Image{Data: call.Image.Data, MediaType: call.Image.MIMEType}
	}

	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       call.Model,
		MaxTokens:   int64(p.maxTokens),
		System:      call.System,
		Messages:    []anthropic.Message{msg},
		Temperature: &p.temperature,
	})
	if err != nil {
		if code := anthropic.StatusCode(err); code != 0 {
			return "", resilience.NewModelError(call.Model, code, []byte(err.Error()))
		}
		return "", timeoutOrWrap(ctx, call, err)
	}

	resp.Usage.LogUsage(call.Model, string(call.Tier))
	return resp.Text(), nil
}
