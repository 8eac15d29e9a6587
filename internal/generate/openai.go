package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/responses"
)

// OpenAIBackend completes prompts through the Responses API, streamed
// and reassembled.
type OpenAIBackend struct {
	client openai.Client
	model  string
}

func NewOpenAIBackend(apiKey, model string, opts ...option.RequestOption) *OpenAIBackend {
	if model == "" {
		model = openai.ChatModelGPT5_2
	}
	all := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIBackend{
		client: openai.NewClient(all...),
		model:  model,
	}
}

func (b *OpenAIBackend) Name() string { return "openai" }

func (b *OpenAIBackend) Complete(ctx context.Context, prompt string) (string, error) {
	stream := b.client.Responses.NewStreaming(ctx, responses.ResponseNewParams{
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: responses.ResponseInputParam{
				{OfMessage: &responses.EasyInputMessageParam{
					Role:    "user",
					Content: responses.EasyInputMessageContentUnionParam{OfString: param.NewOpt(prompt)},
				}},
			},
		},
		Model: b.model,
	})

	var out strings.Builder
	for stream.Next() {
		data := stream.Current()
		switch data.AsAny().(type) {
		case responses.ResponseTextDeltaEvent:
			out.WriteString(data.Delta)
		}
	}
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("responses stream: %w", err)
	}
	return out.String(), nil
}
