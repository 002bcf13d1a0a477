package internal

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// ImageGenerator produces a new image from a text prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (*ImageCandidate, error)
}

// ImageDescriber turns an image into a short description the caption
// generator can anchor on.
type ImageDescriber interface {
	Describe(ctx context.Context, path string) (string, error)
}

type OpenAIImageGenerator struct {
	client openai.Client
	model  string
	dir    string
	logger *zap.Logger
}

func NewOpenAIImageGenerator(apiKey, model, dir string, logger *zap.Logger, opts ...option.RequestOption) (*OpenAIImageGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai image generator: %w", ErrMissingCredentials)
	}
	if model == "" {
		model = string(openai.ImageModelDallE3)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIImageGenerator{
		client: openai.NewClient(opts...),
		model:  model,
		dir:    dir,
		logger: logger.Named("imagegen"),
	}, nil
}

func (g *OpenAIImageGenerator) GenerateImage(ctx context.Context, prompt string) (*ImageCandidate, error) {
	resp, err := g.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          openai.ImageModel(g.model),
		N:              openai.Int(1),
		Size:           openai.ImageGenerateParamsSize1024x1024,
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("generate image: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, errors.New("generate image: empty response")
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	if err := os.MkdirAll(g.dir, 0755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}
	id := "generated_" + strings.ToLower(ulid.Make().String()) + ".png"
	path := filepath.Join(g.dir, id)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("write image: %w", err)
	}

	w, h, err := ImageDimensions(path)
	if err != nil {
		g.logger.Debug("could not probe generated image", zap.Error(err))
	}

	description := prompt
	if revised := resp.Data[0].RevisedPrompt; revised != "" {
		description = revised
	}

	g.logger.Info("image generated", zap.String("id", id))
	return &ImageCandidate{
		ID:          id,
		Path:        path,
		Description: description,
		Width:       w,
		Height:      h,
	}, nil
}

type GeminiDescriber struct {
	client *genai.Client
	model  string
}

func NewGeminiDescriber(ctx context.Context, apiKey, model string) (*GeminiDescriber, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini describer: %w", ErrMissingCredentials)
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiDescriber{client: client, model: model}, nil
}

const describePrompt = `Describe this image in one sentence for a caption writer. Mention clothing, setting, objects, facial expression and any visible text in quotes.`

func (d *GeminiDescriber) Describe(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}

	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(data, mimeType),
			genai.NewPartFromText(describePrompt),
		}, genai.RoleUser),
	}

	resp, err := d.client.Models.GenerateContent(ctx, d.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("describe image: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("describe image: empty response")
	}
	return text, nil
}
