package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"synthesistalk/internal/config"
	"synthesistalk/internal/models"
)

const (
	defaultModelTimeout = 90 * time.Second
	defaultTemperature  = float32(0.7)
	defaultMaxTokens    = 3000
)

type chatGateway struct {
	chatModel model.BaseChatModel
	timeout   time.Duration
}

// NewModelGateway builds the chat model for the configured provider.
func NewModelGateway(ctx context.Context, cfg *config.Config) (ModelGateway, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	provider := cfg.Model.Provider
	provCfg, ok := cfg.Providers[provider]
	if !ok {
		return nil, fmt.Errorf("provider %s not configured", provider)
	}
	modelName := cfg.Model.Model
	if modelName == "" {
		modelName = provCfg.Model
	}
	chatModel, err := newChatModel(ctx, provider, modelName, provCfg)
	if err != nil {
		return nil, err
	}
	return NewChatGateway(chatModel), nil
}

// NewChatGateway adapts any eino chat model to the ModelGateway contract.
func NewChatGateway(chatModel model.BaseChatModel) ModelGateway {
	return &chatGateway{chatModel: chatModel, timeout: defaultModelTimeout}
}

func newChatModel(ctx context.Context, provider, modelName string, provCfg config.ProviderConfig) (model.BaseChatModel, error) {
	maxTokens := provCfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	switch provider {
	case "openai":
		temperature := defaultTemperature
		chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:     provCfg.BaseURL,
			Model:       modelName,
			APIKey:      provCfg.APIKey,
			Temperature: &temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("init openai model: %w", err)
		}
		return chatModel, nil
	case "gemini":
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: provCfg.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("init gemini client: %w", err)
		}
		chatModel, err := gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  modelName,
		})
		if err != nil {
			return nil, fmt.Errorf("init gemini model: %w", err)
		}
		return chatModel, nil
	case "claude":
		var baseURLPtr *string
		if provCfg.BaseURL != "" {
			baseURLPtr = &provCfg.BaseURL
		}
		chatModel, err := claude.NewChatModel(ctx, &claude.Config{
			APIKey:    provCfg.APIKey,
			Model:     modelName,
			BaseURL:   baseURLPtr,
			MaxTokens: maxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("init claude model: %w", err)
		}
		return chatModel, nil
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
}

// Complete runs one non-streaming generation.
func (g *chatGateway) Complete(ctx context.Context, messages models.ContextBundle) (string, error) {
	if len(messages) == 0 {
		return "", modelError("complete", errors.New("no messages"))
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	resp, err := g.chatModel.Generate(ctx, convertMessages(messages))
	if err != nil {
		return "", modelError("complete", err)
	}
	if resp == nil {
		return "", modelError("complete", errors.New("empty response"))
	}
	return strings.TrimSpace(resp.Content), nil
}

func convertMessages(messages models.ContextBundle) []*schema.Message {
	out := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		var role schema.RoleType
		switch msg.Role {
		case models.RoleAssistant:
			role = schema.Assistant
		case models.RoleSystem:
			role = schema.System
		default:
			role = schema.User
		}
		out = append(out, &schema.Message{
			Role:    role,
			Content: msg.Content,
		})
	}
	return out
}
