package completion

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcore"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcore/types"
)

// AgentCoreAPI is the subset of *bedrockagentcore.Client used by AgentCore.
type AgentCoreAPI interface {
	CompleteResourceTokenAuth(ctx context.Context, in *bedrockagentcore.CompleteResourceTokenAuthInput, optFns ...func(*bedrockagentcore.Options)) (*bedrockagentcore.CompleteResourceTokenAuthOutput, error)
}

// AgentCore completes the session at Bedrock AgentCore Identity, which then
// holds the outbound OAuth token for the gateway.
type AgentCore struct {
	client AgentCoreAPI
}

func NewAgentCore(client AgentCoreAPI) *AgentCore {
	return &AgentCore{client: client}
}

func (a *AgentCore) CompleteTokenAuth(ctx context.Context, sessionURI, userToken string) error {
	_, err := a.client.CompleteResourceTokenAuth(ctx, &bedrockagentcore.CompleteResourceTokenAuthInput{
		SessionUri:     aws.String(sessionURI),
		UserIdentifier: &types.UserIdentifierMemberUserToken{Value: userToken},
	})
	if err != nil {
		return fmt.Errorf("complete resource token auth: %w", err)
	}
	return nil
}

// CompleteUserAuth finishes the agent's inbound sign-in for a known user id.
func (a *AgentCore) CompleteUserAuth(ctx context.Context, sessionURI, userID string) error {
	_, err := a.client.CompleteResourceTokenAuth(ctx, &bedrockagentcore.CompleteResourceTokenAuthInput{
		SessionUri:     aws.String(sessionURI),
		UserIdentifier: &types.UserIdentifierMemberUserId{Value: userID},
	})
	if err != nil {
		return fmt.Errorf("complete user auth: %w", err)
	}
	return nil
}
