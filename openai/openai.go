package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gptLib "github.com/sashabaranov/go-openai"
	. "github.com/stevegt/goadapt"
	"github.com/stevegt/azchat/client"
)

// AzureChatClient implements the ChatClient interface for an Azure
// OpenAI deployment.
type AzureChatClient struct {
	client     *gptLib.Client
	deployment string
}

// NewAzureChatClient creates a new AzureChatClient.  endpoint is the
// resource base URL (e.g. https://myres.openai.azure.com/), deployment
// is the deployment name, and apiVersion is sent as the api-version
// query parameter on every request.
func NewAzureChatClient(endpoint, deployment, apiKey, apiVersion string) *AzureChatClient {
	config := gptLib.DefaultAzureConfig(apiKey, strings.TrimRight(endpoint, "/"))
	if apiVersion != "" {
		config.APIVersion = apiVersion
	}
	// the deployment is fixed by configuration, so every model name
	// maps to it
	config.AzureModelMapperFunc = func(model string) string {
		return deployment
	}
	c := gptLib.NewClientWithConfig(config)
	return &AzureChatClient{client: c, deployment: deployment}
}

// CompleteChat sends the transcript to the deployment and returns the
// first choice's content.  A response with no choices or blank content
// is client.EmptyReply, not an error.
func (ac *AzureChatClient) CompleteChat(messages []client.ChatMsg, params client.Params) (reply client.Reply, err error) {
	omsgs := make([]gptLib.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		var role string
		switch msg.Role {
		case client.RoleSystem:
			role = gptLib.ChatMessageRoleSystem
		case client.RoleUser:
			role = gptLib.ChatMessageRoleUser
		case client.RoleAssistant:
			role = gptLib.ChatMessageRoleAssistant
		default:
			err = &client.GatewayError{Msg: fmt.Sprintf("unknown role: %q", msg.Role)}
			return
		}
		omsgs = append(omsgs, gptLib.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}
	req := gptLib.ChatCompletionRequest{
		Model:            ac.deployment,
		Messages:         omsgs,
		MaxTokens:        params.MaxTokens,
		Temperature:      params.Temperature,
		TopP:             params.TopP,
		FrequencyPenalty: params.FrequencyPenalty,
		PresencePenalty:  params.PresencePenalty,
		Stop:             params.Stop,
		Stream:           false,
	}

	Debug("sending %d messages to deployment %s", len(omsgs), ac.deployment)

	resp, err := ac.client.CreateChatCompletion(context.Background(), req)
	if err != nil {
		err = &client.GatewayError{Msg: ErrorMessage(err), Err: err}
		return
	}
	if len(resp.Choices) == 0 {
		Debug("response %s has no choices", resp.ID)
		return client.EmptyReply, nil
	}
	reply = client.NewReply(resp.Choices[0].Message.Content)
	Debug("response from deployment: %s", reply)
	return
}

// ErrorMessage returns the most specific message available for an
// error returned by go-openai: the API's own error message, then the
// HTTP status and cause of a request error, then err.Error().
func ErrorMessage(err error) string {
	var apiErr *gptLib.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = apiErr.Type
		}
		if apiErr.HTTPStatusCode != 0 {
			return fmt.Sprintf("%s (status %d)", msg, apiErr.HTTPStatusCode)
		}
		return msg
	}
	var reqErr *gptLib.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.Err != nil {
			return fmt.Sprintf("%v (status %d)", reqErr.Err, reqErr.HTTPStatusCode)
		}
		return fmt.Sprintf("request failed (status %d)", reqErr.HTTPStatusCode)
	}
	return err.Error()
}

// Assert that AzureChatClient implements client.ChatClient.
var _ client.ChatClient = (*AzureChatClient)(nil)
