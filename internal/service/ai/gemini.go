package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/ellielabs/ellie/backend/internal/model/chat"
)

const defaultGeminiModel = "gemini-2.0-flash"

// Gemini is the stateful backend: dialogues keep their turn history inside
// the provider via the Chats API.
type Gemini struct {
	client *genai.Client
	model  string
	log    zerolog.Logger
}

var _ Gateway = (*Gemini)(nil)

// NewGemini creates a Gemini-backed Gateway. An empty model selects the
// package default.
func NewGemini(ctx context.Context, apiKey, model string, logger zerolog.Logger) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	if model == "" {
		model = defaultGeminiModel
	}
	return &Gemini{
		client: client,
		model:  model,
		log:    logger.With().Str("backend", "gemini").Logger(),
	}, nil
}

func (g *Gemini) Generate(ctx context.Context, messages []chat.Turn, cfg Config) (string, error) {
	if err := validateMessages(messages); err != nil {
		return "", err
	}

	config := geminiConfig(cfg)
	var contents []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case chat.RoleSystem:
			config.SystemInstruction = &genai.Content{
				Parts: []*genai.Part{{Text: m.Content}},
			}
		case chat.RoleUser:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: m.Content}},
			})
		case chat.RoleAssistant:
			contents = append(contents, &genai.Content{
				Role:  "model",
				Parts: []*genai.Part{{Text: m.Content}},
			})
		}
	}
	// A system-only request still needs one content; nudge the model the
	// way the provider expects.
	if len(contents) == 0 {
		contents = append(contents, &genai.Content{
			Role:  "user",
			Parts: []*genai.Part{{Text: "\n"}},
		})
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", &GenerationError{Backend: "gemini", Err: err}
	}
	text := resp.Text()
	if text == "" {
		return "", &GenerationError{Backend: "gemini", Err: errors.New("empty response")}
	}

	g.log.Debug().Int("messages", len(messages)).Int("response_len", len(text)).Msg("generated completion")
	return text, nil
}

func (g *Gemini) OpenDialogue(ctx context.Context, systemPrompt string, cfg Config) (Dialogue, error) {
	config := geminiConfig(cfg)
	config.SystemInstruction = &genai.Content{
		Parts: []*genai.Part{{Text: systemPrompt}},
	}

	session, err := g.client.Chats.Create(ctx, g.model, config, nil)
	if err != nil {
		return nil, &GenerationError{Backend: "gemini", Err: err}
	}
	return &geminiDialogue{chat: session}, nil
}

func geminiConfig(cfg Config) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if cfg.Temperature != nil {
		t := float32(*cfg.Temperature)
		config.Temperature = &t
	}
	if cfg.TopP != nil {
		p := float32(*cfg.TopP)
		config.TopP = &p
	}
	if cfg.MaxTokens != nil {
		config.MaxOutputTokens = int32(*cfg.MaxTokens)
	}
	if cfg.SafetyRelaxed {
		config.SafetySettings = []*genai.SafetySetting{
			{
				Category:  genai.HarmCategorySexuallyExplicit,
				Threshold: genai.HarmBlockThresholdBlockNone,
			},
		}
	}
	return config
}

// geminiDialogue wraps a provider-side chat session; history lives with
// the provider, so Record is a no-op.
type geminiDialogue struct {
	chat *genai.Chat
}

func (d *geminiDialogue) Send(ctx context.Context, text string) (string, error) {
	resp, err := d.chat.SendMessage(ctx, genai.Part{Text: text})
	if err != nil {
		return "", &GenerationError{Backend: "gemini", Err: err}
	}
	out := resp.Text()
	if out == "" {
		return "", &GenerationError{Backend: "gemini", Err: errors.New("empty response")}
	}
	return out, nil
}

func (d *geminiDialogue) Record(...chat.Turn) {}
