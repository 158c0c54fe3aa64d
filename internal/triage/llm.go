package triage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// SpecialtyDetector is the optional LLM assist consulted when the keyword
// tables detect no specialty. It never influences urgency.
type SpecialtyDetector interface {
	DetectSpecialty(ctx context.Context, message string) (string, error)
}

const specialtyPrompt = `You are a dental clinic intake assistant. Given a patient message,
answer with exactly one word from this list, or NONE if none applies:
Endodontics, Orthodontics, Implantology, Cosmetic, General.`

var knownSpecialties = map[string]string{
	"endodontics":  SpecialtyEndodontics,
	"orthodontics": SpecialtyOrthodontics,
	"implantology": SpecialtyImplantology,
	"cosmetic":     SpecialtyCosmetic,
	"general":      SpecialtyGeneral,
}

func normalizeSpecialty(raw string) string {
	cleaned := strings.ToLower(strings.TrimSpace(strings.Trim(raw, ".\"' ")))
	return knownSpecialties[cleaned]
}

// GeminiDetector implements SpecialtyDetector using Google's Gemini API.
type GeminiDetector struct {
	client  *genai.Client
	modelID string
	timeout time.Duration
}

// NewGeminiDetector creates a Gemini-backed detector.
func NewGeminiDetector(ctx context.Context, apiKey, modelID string, timeout time.Duration) (*GeminiDetector, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("triage: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-2.5-flash"
	}
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("triage: create gemini client: %w", err)
	}
	return &GeminiDetector{client: client, modelID: modelID, timeout: timeout}, nil
}

// DetectSpecialty asks Gemini to name the specialty, returning "" for NONE or
// anything unrecognized.
func (d *GeminiDetector) DetectSpecialty(ctx context.Context, message string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	model := d.client.GenerativeModel(d.modelID)
	model.SystemInstruction = genai.NewUserContent(genai.Text(specialtyPrompt))
	model.SetTemperature(0)

	resp, err := model.GenerateContent(ctx, genai.Text(message))
	if err != nil {
		return "", fmt.Errorf("triage: gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return normalizeSpecialty(b.String()), nil
}

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockDetector implements SpecialtyDetector using the Bedrock Converse API.
type BedrockDetector struct {
	api     bedrockConverseAPI
	modelID string
	timeout time.Duration
}

// NewBedrockDetector creates a Bedrock-backed detector.
func NewBedrockDetector(api bedrockConverseAPI, modelID string, timeout time.Duration) (*BedrockDetector, error) {
	if api == nil {
		return nil, errors.New("triage: bedrock client is required")
	}
	if strings.TrimSpace(modelID) == "" {
		return nil, errors.New("triage: bedrock model id is required")
	}
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &BedrockDetector{api: api, modelID: modelID, timeout: timeout}, nil
}

// DetectSpecialty asks the Bedrock model to name the specialty.
func (d *BedrockDetector) DetectSpecialty(ctx context.Context, message string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	out, err := d.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(d.modelID),
		System: []brtypes.SystemContentBlock{
			&brtypes.SystemContentBlockMemberText{Value: specialtyPrompt},
		},
		Messages: []brtypes.Message{{
			Role: brtypes.ConversationRoleUser,
			Content: []brtypes.ContentBlock{
				&brtypes.ContentBlockMemberText{Value: message},
			},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("triage: bedrock converse: %w", err)
	}

	msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return "", nil
	}
	var b strings.Builder
	for _, block := range msg.Value.Content {
		if text, ok := block.(*brtypes.ContentBlockMemberText); ok {
			b.WriteString(text.Value)
		}
	}
	return normalizeSpecialty(b.String()), nil
}

// FallbackDetector tries each detector in order until one answers.
type FallbackDetector struct {
	detectors []SpecialtyDetector
}

// NewFallbackDetector chains detectors; nil entries are skipped.
func NewFallbackDetector(detectors ...SpecialtyDetector) *FallbackDetector {
	chain := make([]SpecialtyDetector, 0, len(detectors))
	for _, d := range detectors {
		if d != nil {
			chain = append(chain, d)
		}
	}
	if len(chain) == 0 {
		return nil
	}
	return &FallbackDetector{detectors: chain}
}

// DetectSpecialty returns the first successful answer in the chain.
func (f *FallbackDetector) DetectSpecialty(ctx context.Context, message string) (string, error) {
	var lastErr error
	for _, d := range f.detectors {
		specialty, err := d.DetectSpecialty(ctx, message)
		if err == nil {
			return specialty, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("triage: no specialty detectors configured")
	}
	return "", lastErr
}
