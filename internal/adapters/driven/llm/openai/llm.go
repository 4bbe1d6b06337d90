// Package openai implements the LLM port on the official OpenAI Go SDK
// using the Responses API. Skeleton reasoning runs with strict
// structured outputs so replies conform to a JSON schema reflected from
// the domain types; section prose and question answering use plain text
// output. A BaseURL override points the adapter at any OpenAI-compatible
// inference server.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"github.com/custodia-labs/longdoc-cli/internal/core/domain"
	"github.com/custodia-labs/longdoc-cli/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultModel           = "gpt-4o-mini"
	DefaultTimeout         = 120 * time.Second
	DefaultMaxOutputTokens = 4096
)

// Config holds configuration for the OpenAI LLM service.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL overrides the API endpoint for Azure OpenAI or local
	// OpenAI-compatible runtimes. Empty means api.openai.com.
	BaseURL string

	// Model is the model to use (default: gpt-4o-mini).
	Model string

	// Timeout is the per-request timeout (default: 120s).
	Timeout time.Duration

	// MaxOutputTokens caps the length of a single model reply
	// (default: 4096).
	MaxOutputTokens int
}

// LLMService provides reasoning and generation via the OpenAI Responses API.
type LLMService struct {
	client    *openai.Client
	model     string
	maxTokens int64
}

// Schemas are reflected once at init; the domain types carry the JSON
// field names the prompts refer to.
var (
	proposalSchema = generateSchema[domain.SkeletonProposal]()
	revisionSchema = generateSchema[domain.SkeletonRevision]()
)

// NewLLMService creates a new OpenAI LLM service.
func NewLLMService(cfg Config) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, domain.ConfigErrorf("openai llm: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxOutputTokens == 0 {
		cfg.MaxOutputTokens = DefaultMaxOutputTokens
	}

	// Retries stay with the calling service's policy, so the SDK's own
	// retry loop is disabled.
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")+"/"))
	}

	client := openai.NewClient(opts...)
	return &LLMService{
		client:    &client,
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxOutputTokens),
	}, nil
}

// ProposeSkeleton drafts the initial report structure from the first
// document batch.
func (s *LLMService) ProposeSkeleton(ctx context.Context, batchText string) (domain.SkeletonProposal, error) {
	params := s.structuredParams(
		"skeleton_proposal",
		"Initial report skeleton JSON",
		proposalSchema,
		proposePrompt(batchText),
	)

	resp, err := s.client.Responses.New(ctx, params)
	if err != nil {
		return domain.SkeletonProposal{}, classify("propose skeleton", err)
	}

	var out domain.SkeletonProposal
	if err := decodeModelJSON(resp.OutputText(), &out); err != nil {
		return domain.SkeletonProposal{}, fmt.Errorf("openai llm: propose skeleton: %w", err)
	}
	return out, nil
}

// ReviseSkeleton updates the structure from a later batch. The entire
// current skeleton goes into the prompt, never a delta.
func (s *LLMService) ReviseSkeleton(ctx context.Context, current *domain.Skeleton, batchText string) (domain.SkeletonRevision, error) {
	if current == nil {
		return domain.SkeletonRevision{}, fmt.Errorf("openai llm: revise skeleton: current skeleton is nil")
	}

	params := s.structuredParams(
		"skeleton_revision",
		"Skeleton revision JSON",
		revisionSchema,
		revisePrompt(current, batchText),
	)

	resp, err := s.client.Responses.New(ctx, params)
	if err != nil {
		return domain.SkeletonRevision{}, classify("revise skeleton", err)
	}

	var out domain.SkeletonRevision
	if err := decodeModelJSON(resp.OutputText(), &out); err != nil {
		return domain.SkeletonRevision{}, fmt.Errorf("openai llm: revise skeleton: %w", err)
	}
	return out, nil
}

// ComposeSection writes report prose for one section from reranked
// supporting passages.
func (s *LLMService) ComposeSection(ctx context.Context, section domain.Section, passages []domain.ScoredChunk) (string, error) {
	resp, err := s.client.Responses.New(ctx, s.textParams(writerInstructions, composePrompt(section, passages)))
	if err != nil {
		return "", classify("compose section", err)
	}

	text := strings.TrimSpace(resp.OutputText())
	if text == "" {
		return "", fmt.Errorf("openai llm: compose section %q: empty model output", section.Title)
	}
	return text, nil
}

// Answer responds to an ad-hoc question from retrieved passages.
func (s *LLMService) Answer(ctx context.Context, question string, passages []domain.ScoredChunk) (string, error) {
	resp, err := s.client.Responses.New(ctx, s.textParams(writerInstructions, answerPrompt(question, passages)))
	if err != nil {
		return "", classify("answer", err)
	}

	text := strings.TrimSpace(resp.OutputText())
	if text == "" {
		return "", fmt.Errorf("openai llm: answer: empty model output")
	}
	return text, nil
}

// ModelName returns the name of the model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping validates the service is reachable by listing models. This
// checks the API key without running inference.
func (s *LLMService) Ping(ctx context.Context) error {
	if _, err := s.client.Models.List(ctx); err != nil {
		return classify("ping", err)
	}
	return nil
}

// Close releases resources.
func (s *LLMService) Close() error {
	// The SDK client holds no resources that need explicit cleanup.
	return nil
}

// structuredParams builds a Responses API call with a strict JSON-schema
// text format.
func (s *LLMService) structuredParams(name, description string, schema map[string]any, input string) responses.ResponseNewParams {
	format := responses.ResponseFormatTextConfigUnionParam{
		OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
			Name:        name,
			Schema:      schema,
			Strict:      openai.Bool(true),
			Description: openai.String(description),
			Type:        "json_schema",
		},
	}

	return responses.ResponseNewParams{
		Model:           s.model,
		MaxOutputTokens: openai.Int(s.maxTokens),
		Instructions:    openai.String(analystInstructions),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(input, responses.EasyInputMessageRoleUser),
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: format,
		},
	}
}

// textParams builds a plain-text Responses API call.
func (s *LLMService) textParams(instructions, input string) responses.ResponseNewParams {
	return responses.ResponseNewParams{
		Model:           s.model,
		MaxOutputTokens: openai.Int(s.maxTokens),
		Instructions:    openai.String(instructions),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(input, responses.EasyInputMessageRoleUser),
			},
		},
	}
}

// classify maps SDK errors onto the domain taxonomy so the calling
// service's retry policy can tell transient failures from broken
// configuration. Auth failures are configuration problems; rate limits
// and server errors are transient.
func classify(op string, err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		switch {
		case apierr.StatusCode == http.StatusUnauthorized || apierr.StatusCode == http.StatusForbidden:
			return domain.ConfigErrorf("openai llm: %s: %v", op, err)
		case apierr.StatusCode == http.StatusTooManyRequests || apierr.StatusCode >= 500:
			return domain.TransientErrorf("openai llm: %s: %v", op, err)
		default:
			return fmt.Errorf("openai llm: %s: %w", op, err)
		}
	}

	// No HTTP status to go on. Network-level failures are worth a retry.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "eof"):
		return domain.TransientErrorf("openai llm: %s: %v", op, err)
	default:
		return fmt.Errorf("openai llm: %s: %w", op, err)
	}
}

// decodeModelJSON unmarshals JSON from a model reply, with a small
// amount of robustness for replies that wrap the object in code fences
// or stray text.
func decodeModelJSON(outputText string, v any) error {
	s := strings.TrimSpace(outputText)
	if s == "" {
		return io.ErrUnexpectedEOF
	}

	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end <= start {
		return fmt.Errorf("no JSON object in model output (len=%d)", len(s))
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), v); err != nil {
		return fmt.Errorf("unmarshal extracted JSON: %w", err)
	}
	return nil
}

// generateSchema reflects a strict-mode JSON schema from a response type.
func generateSchema[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	schema := reflector.Reflect(v)

	b, err := schema.MarshalJSON()
	if err != nil {
		panic(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		panic(err)
	}

	ensureStrictCompliance(m)
	return m
}

const (
	propertiesKey           = "properties"
	additionalPropertiesKey = "additionalProperties"
	typeKey                 = "type"
	requiredKey             = "required"
	itemsKey                = "items"
)

// ensureStrictCompliance rewrites a reflected schema to what the OpenAI
// strict mode accepts: every object closes additionalProperties and
// lists all of its properties as required.
func ensureStrictCompliance(schema map[string]any) {
	if schemaType, ok := schema[typeKey].(string); ok && schemaType == "object" {
		schema[additionalPropertiesKey] = false

		if properties, ok := schema[propertiesKey].(map[string]any); ok {
			var requiredFields []string
			for propName := range properties {
				requiredFields = append(requiredFields, propName)
			}
			if len(requiredFields) > 0 {
				schema[requiredKey] = requiredFields
			}
		}
	}

	if properties, ok := schema[propertiesKey].(map[string]any); ok {
		for _, prop := range properties {
			if propMap, ok := prop.(map[string]any); ok {
				ensureStrictCompliance(propMap)
			}
		}
	}

	if items, ok := schema[itemsKey].(map[string]any); ok {
		ensureStrictCompliance(items)
	}

	if additionalProps, ok := schema[additionalPropertiesKey].(map[string]any); ok {
		ensureStrictCompliance(additionalProps)
	}
}
