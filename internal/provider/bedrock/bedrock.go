// Package bedrock implements the Bedrock invoke-endpoint provider (C4/C5):
// it builds the Anthropic-shaped request body via internal/translator,
// signs it from scratch via internal/sigv4 (no aws-sdk-go-v2), resolves and
// refreshes credentials via internal/awsauth, and posts it through
// internal/transport. This replaces the teacher's SDK-based
// bedrockruntime.Client/ConverseStream entirely, per spec.md §4.1/§4.2.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nmnduy/claude-c-sub001/internal/awsauth"
	"github.com/nmnduy/claude-c-sub001/internal/interrupt"
	"github.com/nmnduy/claude-c-sub001/internal/provider"
	"github.com/nmnduy/claude-c-sub001/internal/sigv4"
	"github.com/nmnduy/claude-c-sub001/internal/transport"
	"github.com/nmnduy/claude-c-sub001/internal/translator"
)

const providerName = "bedrock"

// endpointFormat builds the Bedrock runtime invoke URL for a model ID.
const endpointFormat = "https://bedrock-runtime.%s.amazonaws.com/model/%s/invoke"

// Provider implements provider.Provider against the raw Bedrock invoke
// endpoint for Anthropic-family models.
type Provider struct {
	region        string
	profile       string
	resolver      *awsauth.Resolver
	client        *transport.Client
	creds         awsauth.Credentials
	hasCreds      bool
	endpointURL   string // overrides endpointFormat entirely when non-empty
	enableCaching bool   // emit cache-control markers; off when DISABLE_PROMPT_CACHING is set
}

// Option configures a Provider.
type Option func(*Provider)

// WithResolver overrides the credential resolver (tests inject a fake
// runner through awsauth.WithRunner on this resolver).
func WithResolver(r *awsauth.Resolver) Option {
	return func(p *Provider) { p.resolver = r }
}

// WithProfile sets the AWS CLI profile used to resolve credentials.
func WithProfile(profile string) Option {
	return func(p *Provider) { p.profile = profile }
}

// WithEndpoint overrides the invoke endpoint entirely, for VPC endpoints or
// tests pointed at a local stand-in server.
func WithEndpoint(url string) Option {
	return func(p *Provider) { p.endpointURL = url }
}

// WithPromptCaching toggles cache-control markers in outgoing requests. It
// defaults to enabled; callers set it to the negation of the
// DISABLE_PROMPT_CACHING config flag.
func WithPromptCaching(enabled bool) Option {
	return func(p *Provider) { p.enableCaching = enabled }
}

// New creates a Bedrock provider for the given region.
func New(region string, bus *interrupt.Bus, opts ...Option) *Provider {
	p := &Provider{
		region:        region,
		profile:       "default",
		resolver:      awsauth.NewResolver(),
		client:        transport.NewClient(bus),
		enableCaching: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string { return providerName }

func (p *Provider) ensureCredentials(ctx context.Context) error {
	if p.hasCreds {
		return nil
	}
	creds, ok := p.resolver.Load(ctx, p.profile, p.region)
	if !ok {
		return fmt.Errorf("bedrock: no AWS credentials available for profile %q", p.profile)
	}
	p.creds = creds
	p.hasCreds = true
	return nil
}

// CallAPI performs exactly one signed HTTP attempt, per spec.md §4.4. On a
// 4xx that looks like a credential problem, it runs the refresh protocol
// once and reports the new retryability to the caller rather than retrying
// itself (retries are internal/agent's concern, one layer up).
func (p *Provider) CallAPI(ctx context.Context, opts provider.CallOptions) provider.ApiCallResult {
	if err := p.ensureCredentials(ctx); err != nil {
		return provider.ApiCallResult{ErrorMessage: err.Error(), IsRetryable: false}
	}

	req, err := translator.OpenAIToAnthropic(opts.Messages, opts.Tools, opts.MaxTokens, p.enableCaching)
	if err != nil {
		return provider.ApiCallResult{ErrorMessage: fmt.Sprintf("build request: %v", err)}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return provider.ApiCallResult{ErrorMessage: fmt.Sprintf("marshal request: %v", err)}
	}

	url := p.endpointURL
	if url == "" {
		url = fmt.Sprintf(endpointFormat, p.region, opts.Model)
	}
	result := p.doSigned(ctx, url, body)

	out := provider.ApiCallResult{
		RawResponseText: result.RawResponseText,
		RequestJSON:     result.RequestJSON,
		HTTPStatus:      result.StatusCode,
		DurationMS:      result.DurationMS,
		ErrorMessage:    result.ErrorMessage,
		IsRetryable:     result.IsRetryable,
		Interrupted:     result.Interrupted,
	}

	if awsauth.LooksLikeAuthError(result.StatusCode, result.RawResponseText) {
		outcome, refreshErr := p.resolver.RefreshOnError(ctx, p.creds)
		if refreshErr == nil {
			p.creds = outcome.Credentials
			out.IsRetryable = outcome.Retry
		}
	}

	if out.ErrorMessage != "" || out.Interrupted {
		return out
	}
	if out.HTTPStatus < 200 || out.HTTPStatus >= 300 {
		out.ErrorMessage = fmt.Sprintf("bedrock: HTTP %d: %s", out.HTTPStatus, out.RawResponseText)
		return out
	}

	var anthropicResp translator.AnthropicResponse
	if err := json.Unmarshal([]byte(result.RawResponseText), &anthropicResp); err != nil {
		out.ErrorMessage = fmt.Sprintf("decode response: %v", err)
		return out
	}
	completion, err := translator.AnthropicToOpenAI(anthropicResp)
	if err != nil {
		out.ErrorMessage = err.Error()
		return out
	}
	out.Response = &completion
	return out
}

func (p *Provider) doSigned(ctx context.Context, url string, body []byte) transport.Result {
	signed, err := sigv4.Sign(http.MethodPost, url, body, sigv4.Credentials{
		AccessKeyID:     p.creds.AccessKeyID,
		SecretAccessKey: p.creds.SecretAccessKey,
		SessionToken:    p.creds.SessionToken,
	}, p.region, "bedrock", time.Now())
	if err != nil {
		return transport.Result{ErrorMessage: fmt.Sprintf("sign request: %v", err), RequestJSON: body}
	}

	headers := http.Header{}
	headers.Set("Content-Type", signed.ContentType)
	headers.Set("X-Amz-Date", signed.AmzDate)
	headers.Set("Authorization", signed.Authorization)
	if signed.SecurityToken != "" {
		headers.Set("X-Amz-Security-Token", signed.SecurityToken)
	}

	return p.client.Post(ctx, url, headers, body)
}
