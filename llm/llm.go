// Package llm is the language-model collaborator. A Completer returns raw
// text that is expected, but not guaranteed, to be a JSON object.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/tbxark/adagent/config"
)

var (
	ErrDisabled      = errors.New("language model disabled")
	ErrEmptyResponse = errors.New("empty model response")
)

type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

type CompleterFunc func(ctx context.Context, systemPrompt, userPrompt string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f(ctx, systemPrompt, userPrompt)
}

// Disabled always fails, which leaves every turn to the fallback planner.
type Disabled struct{}

func (Disabled) Complete(context.Context, string, string) (string, error) {
	return "", ErrDisabled
}

// ChatCompleter sends a system + user message pair to any eino chat model and
// returns the reply content.
type ChatCompleter struct {
	chatModel model.BaseChatModel
}

func NewChatCompleter(chatModel model.BaseChatModel) *ChatCompleter {
	return &ChatCompleter{chatModel: chatModel}
}

func (c *ChatCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	response, err := c.chatModel.Generate(ctx, buildMessages(systemPrompt, userPrompt))
	if err != nil {
		return "", fmt.Errorf("call model failed: %w", err)
	}
	if response == nil {
		return "", ErrEmptyResponse
	}
	return response.Content, nil
}

// ToolCompleter forces the model to answer through a single tool whose
// parameters are reflected from T, and returns the raw tool arguments.
type ToolCompleter struct {
	chatModel model.ToolCallingChatModel
	toolInfo  *schema.ToolInfo
}

func NewToolCompleter[T any](chatModel model.ToolCallingChatModel, toolName, toolDesc string) (*ToolCompleter, error) {
	toolInfo, err := utils.GoStruct2ToolInfo[T](toolName, toolDesc)
	if err != nil {
		return nil, fmt.Errorf("convert tool info failed: %w", err)
	}
	return &ToolCompleter{chatModel: chatModel, toolInfo: toolInfo}, nil
}

func (c *ToolCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	response, err := c.chatModel.Generate(ctx, buildMessages(systemPrompt, userPrompt),
		model.WithTools([]*schema.ToolInfo{c.toolInfo}),
		model.WithToolChoice(schema.ToolChoiceForced, c.toolInfo.Name),
	)
	if err != nil {
		return "", fmt.Errorf("call model failed: %w", err)
	}
	if response == nil {
		return "", ErrEmptyResponse
	}
	if len(response.ToolCalls) == 0 {
		// some OpenAI-compatible servers ignore forced tool choice and answer in content
		if response.Content != "" {
			return response.Content, nil
		}
		return "", fmt.Errorf("no ToolCall found in model response: %w", ErrEmptyResponse)
	}
	return response.ToolCalls[0].Function.Arguments, nil
}

func (c *ToolCompleter) ToolInfo() *schema.ToolInfo {
	return c.toolInfo
}

func buildMessages(systemPrompt, userPrompt string) []*schema.Message {
	return []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(userPrompt),
	}
}

// NewOpenAIChatModel builds an OpenAI-compatible chat model (OpenAI, NVIDIA
// NIM and similar endpoints).
func NewOpenAIChatModel(ctx context.Context, conf config.LLM) (*openai.ChatModel, error) {
	temperature := conf.Temperature
	maxTokens := conf.MaxTokens
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      conf.APIKey,
		Model:       conf.Model,
		BaseURL:     conf.BaseURL,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}
	return cm, nil
}
