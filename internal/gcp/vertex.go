package gcp

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

const analysisSystemPrompt = "You are a legal document analysis assistant. You produce accurate, structured output and never invent facts that are not supported by the document."

const detectorPromptTemplate = `Identify the primary language of the following text. Respond with only the two-letter ISO 639-1 code (for example "en" or "es") and nothing else.

Text:
%s`

// detectorSampleBytes bounds how much text is sent for language
// detection.
const detectorSampleBytes = 1000

// VertexConfig holds the model settings for a client.
type VertexConfig struct {
	ProjectID     string
	Region        string
	Model         string
	DetectorModel string
}

// VertexClient wraps the Vertex AI generative models: one JSON-mode
// model for document analysis and a lighter one for language detection.
type VertexClient struct {
	analysisModel *genai.GenerativeModel
	detectorModel *genai.GenerativeModel
	baseClient    *genai.Client
}

// NewVertexClient creates a client holding both pre-configured models.
func NewVertexClient(ctx context.Context, cfg VertexConfig) (*VertexClient, error) {
	if cfg.ProjectID == "" || cfg.Region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-pro"
	}
	if cfg.DetectorModel == "" {
		cfg.DetectorModel = "gemini-1.5-flash"
	}

	baseClient, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	analysisModel := baseClient.GenerativeModel(cfg.Model)
	analysisModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(analysisSystemPrompt)},
	}
	analysisModel.GenerationConfig = genai.GenerationConfig{
		// Force JSON output; the response is schema-validated downstream.
		ResponseMIMEType: "application/json",
	}
	analysisModel.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}

	detectorModel := baseClient.GenerativeModel(cfg.DetectorModel)
	detectorModel.GenerationConfig = genai.GenerationConfig{
		Temperature:     genai.Ptr[float32](0.0),
		MaxOutputTokens: genai.Ptr[int32](8),
	}

	return &VertexClient{
		analysisModel: analysisModel,
		detectorModel: detectorModel,
		baseClient:    baseClient,
	}, nil
}

// GenerateText runs one analysis-model call with per-call output and
// temperature settings. The shared model value is copied so concurrent
// calls do not race on GenerationConfig.
func (c *VertexClient) GenerateText(ctx context.Context, prompt string, maxOutputTokens int32, temperature float32) (string, error) {
	model := *c.analysisModel
	model.GenerationConfig.MaxOutputTokens = genai.Ptr(maxOutputTokens)
	model.GenerationConfig.Temperature = genai.Ptr(temperature)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return flattenResponse(resp), nil
}

// DetectLanguage asks the detector model for the ISO 639-1 code of the
// text. Only a short sample is sent.
func (c *VertexClient) DetectLanguage(ctx context.Context, text string) (string, error) {
	sample := text
	if len(sample) > detectorSampleBytes {
		sample = sample[:detectorSampleBytes]
	}

	resp, err := c.detectorModel.GenerateContent(ctx, genai.Text(fmt.Sprintf(detectorPromptTemplate, sample)))
	if err != nil {
		return "", fmt.Errorf("detect language: %w", err)
	}

	code := strings.ToLower(strings.TrimSpace(flattenResponse(resp)))
	code = strings.Trim(code, "\"'.`")
	if len(code) != 2 {
		return "", fmt.Errorf("detector returned %q instead of an ISO 639-1 code", code)
	}
	return code, nil
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}

// flattenResponse concatenates the text parts of the first candidate.
func flattenResponse(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}
