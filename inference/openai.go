package inference

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"mediaIndex/config"
	"mediaIndex/core"
)

// Client builds the shared API client from config; loaded once and reused
// across jobs.
func Client(cfg *config.Config) *openai.Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientConfig)
}

// ========== Transcription ==========

type APITranscriber struct {
	cli   *openai.Client
	model string
}

// Transcribe round-trips the window through a temp WAV file, which is what
// the transcription endpoint accepts.
func (t *APITranscriber) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	f, err := os.CreateTemp("", "window-*.wav")
	if err != nil {
		return "", err
	}
	path := f.Name()
	defer os.Remove(path)
	if _, err := f.Write(EncodeWAV(samples, sampleRate)); err != nil {
		f.Close()
		return "", err
	}
	f.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	resp, err := t.cli.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: path,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

// ========== Captioning ==========

type VisionCaptioner struct {
	cli   *openai.Client
	model string
}

func (c *VisionCaptioner) Caption(ctx context.Context, imagePath string) (string, error) {
	part, err := imagePart(imagePath)
	if err != nil {
		return "", err
	}
	resp, err := c.cli.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: "Describe this video frame in one short sentence."},
				part,
			},
		}},
		MaxTokens:   60,
		Temperature: 0.2,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty caption response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// ========== Detection ==========

type VisionDetector struct {
	cli   *openai.Client
	model string
}

func (d *VisionDetector) Detect(ctx context.Context, imagePath string) ([]core.Detection, error) {
	part, err := imagePart(imagePath)
	if err != nil {
		return nil, err
	}
	resp, err := d.cli.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: d.model,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: `List the objects visible in this frame as a JSON array of {"label": string, "confidence": number} sorted by confidence. Reply with JSON only.`},
				part,
			},
		}},
		MaxTokens:   300,
		Temperature: 0,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty detection response")
	}
	var detections []core.Detection
	raw := stripFence(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(raw), &detections); err != nil {
		return nil, fmt.Errorf("parse detections: %v", err)
	}
	return detections, nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func imagePart(imagePath string) (openai.ChatMessagePart, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return openai.ChatMessagePart{}, fmt.Errorf("read frame %s: %v", imagePath, err)
	}
	mime := "image/jpeg"
	if strings.EqualFold(filepath.Ext(imagePath), ".png") {
		mime = "image/png"
	}
	return openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeImageURL,
		ImageURL: &openai.ChatMessageImageURL{
			URL:    fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data)),
			Detail: openai.ImageURLDetailLow,
		},
	}, nil
}

// ========== Embeddings ==========

type APIEmbedder struct {
	cli   *openai.Client
	model string
	dim   int
}

func (e *APIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.cli.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding API failed: %v", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	vec := resp.Data[0].Embedding
	if e.dim == 0 {
		e.dim = len(vec)
	}
	return vec, nil
}

func (e *APIEmbedder) Dim() int {
	if e.dim == 0 {
		return 1536
	}
	return e.dim
}
