package ai

import (
	"context"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/ellielabs/ellie/backend/internal/model/chat"
)

// Ark is the stateless chat-completion backend. Every turn resends the
// full message history to the model; dialogues opened on it keep their
// history on this side of the wire.
type Ark struct {
	model model.BaseChatModel
	log   zerolog.Logger
}

var _ Gateway = (*Ark)(nil)

// NewArk wraps an eino chat model as a Gateway.
func NewArk(chatModel model.BaseChatModel, logger zerolog.Logger) *Ark {
	return &Ark{model: chatModel, log: logger.With().Str("backend", "ark").Logger()}
}

func (a *Ark) Generate(ctx context.Context, messages []chat.Turn, cfg Config) (string, error) {
	if err := validateMessages(messages); err != nil {
		return "", err
	}

	in := make([]*schema.Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case chat.RoleSystem:
			in = append(in, schema.SystemMessage(m.Content))
		case chat.RoleUser:
			in = append(in, schema.UserMessage(m.Content))
		case chat.RoleAssistant:
			in = append(in, schema.AssistantMessage(m.Content, nil))
		}
	}

	resp, err := a.model.Generate(ctx, in, arkOptions(cfg)...)
	if err != nil {
		return "", &GenerationError{Backend: "ark", Err: err}
	}

	a.log.Debug().Int("messages", len(in)).Int("response_len", len(resp.Content)).Msg("generated completion")
	return resp.Content, nil
}

func (a *Ark) OpenDialogue(_ context.Context, systemPrompt string, cfg Config) (Dialogue, error) {
	return &arkDialogue{
		gw:      a,
		cfg:     cfg,
		history: []chat.Turn{{Role: chat.RoleSystem, Content: systemPrompt}},
	}, nil
}

func arkOptions(cfg Config) []model.Option {
	var opts []model.Option
	if cfg.Temperature != nil {
		opts = append(opts, model.WithTemperature(float32(*cfg.Temperature)))
	}
	if cfg.TopP != nil {
		opts = append(opts, model.WithTopP(float32(*cfg.TopP)))
	}
	if cfg.MaxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*cfg.MaxTokens))
	}
	// SafetyRelaxed has no Ark-side control.
	return opts
}

// arkDialogue keeps turn history on the caller side and replays it on
// every Send.
type arkDialogue struct {
	gw      *Ark
	cfg     Config
	history []chat.Turn
}

func (d *arkDialogue) Send(ctx context.Context, text string) (string, error) {
	attempt := append(d.history, chat.Turn{Role: chat.RoleUser, Content: text})
	out, err := d.gw.Generate(ctx, attempt, d.cfg)
	if err != nil {
		return "", err
	}
	d.history = append(attempt, chat.Turn{Role: chat.RoleAssistant, Content: out})
	return out, nil
}

func (d *arkDialogue) Record(turns ...chat.Turn) {
	d.history = append(d.history, turns...)
}
