// Package transcribe turns a dictated audio note into a prescription draft
// with a speech-to-text model followed by a JSON-mode chat model.
package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"clinicdesk/internal/domain"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const structurePrompt = `You convert a doctor's dictated prescription into JSON.
Reply with a single JSON object with exactly these keys:
"symptoms" (string), "medicines" (array of objects with "name", "consumption_days", "time", "instruction", all strings),
"overall_instruction" (string).
Use empty strings for anything not mentioned. Do not invent medicines.`

type Options struct {
	APIKey          string
	BaseURL         string
	TranscribeModel string
	StructureModel  string
	HTTPClient      *http.Client
}

type Client struct {
	api             *openai.Client
	transcribeModel string
	structureModel  string
	logger          *zap.Logger
}

func New(opts Options, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("transcribe: api key is required")
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}
	if opts.TranscribeModel == "" {
		opts.TranscribeModel = openai.Whisper1
	}
	if opts.StructureModel == "" {
		opts.StructureModel = openai.GPT4oMini
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		api:             openai.NewClientWithConfig(cfg),
		transcribeModel: opts.TranscribeModel,
		structureModel:  opts.StructureModel,
		logger:          logger,
	}, nil
}

type structured struct {
	Symptoms           string            `json:"symptoms"`
	Medicines          []domain.Medicine `json:"medicines"`
	OverallInstruction string            `json:"overall_instruction"`
}

// Dictate transcribes audio and structures the transcript. The draft is not validated.
func (c *Client) Dictate(ctx context.Context, filename string, audio io.Reader) (domain.Prescription, error) {
	if filename == "" {
		filename = "dictation.webm"
	}
	transcript, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.transcribeModel,
		FilePath: filename,
		Reader:   audio,
	})
	if err != nil {
		return domain.Prescription{}, fmt.Errorf("transcribe audio: %w", err)
	}
	text := strings.TrimSpace(transcript.Text)
	if text == "" {
		return domain.Prescription{}, domain.Invalid("audio", "no speech recognised")
	}
	c.logger.Debug("dictation transcribed", zap.Int("chars", len(text)))

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.structureModel,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: structurePrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return domain.Prescription{}, fmt.Errorf("structure transcript: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.Prescription{}, errors.New("structure transcript: no choices in response")
	}
	return parseStructured(resp.Choices[0].Message.Content)
}

func parseStructured(content string) (domain.Prescription, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var out structured
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &out); err != nil {
		return domain.Prescription{}, fmt.Errorf("decode structured prescription: %w", err)
	}
	medicines := make([]domain.Medicine, 0, len(out.Medicines))
	for _, m := range out.Medicines {
		m.Name = strings.TrimSpace(m.Name)
		if m.Name == "" {
			continue
		}
		medicines = append(medicines, m)
	}
	return domain.Prescription{
		Symptoms:           strings.TrimSpace(out.Symptoms),
		Medicines:          medicines,
		OverallInstruction: strings.TrimSpace(out.OverallInstruction),
		Photos:             []string{},
	}, nil
}
