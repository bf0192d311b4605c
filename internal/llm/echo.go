package llm

import (
	"context"
	"fmt"
	"strings"
)

// EchoProvider answers without a model. It is used when no API key is
// configured so the chat flow can run locally.
type EchoProvider struct{}

func (EchoProvider) Name() string {
	return "echo"
}

func (EchoProvider) Stream(ctx context.Context, userMessage string, chatCtx ChatContext, emit EmitFunc) error {
	reply := fmt.Sprintf("(%s) You said: %q. What is the riskiest assumption behind that?", ParseMode(string(chatCtx.Mode)), userMessage)

	words := strings.SplitAfter(reply, " ")
	for _, word := range words {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(word); err != nil {
			return err
		}
	}
	return nil
}
