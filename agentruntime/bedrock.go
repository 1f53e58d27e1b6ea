package agentruntime

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
	"github.com/m4xw311/jarvis/errors"
)

// BedrockRuntime talks to the Bedrock agent runtime. Safe for sequential
// reuse across invocations; it is never reconfigured after construction.
type BedrockRuntime struct {
	client *bedrockagentruntime.Client
	region string
}

// NewBedrockRuntime creates a Bedrock agent runtime client. It requires AWS
// credentials to be configured in the environment.
func NewBedrockRuntime(ctx context.Context, region string) (*BedrockRuntime, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load AWS config")
	}

	resolved := cfg.Region
	if resolved == "" {
		resolved = os.Getenv("AWS_DEFAULT_REGION")
	}
	if resolved == "" {
		resolved = os.Getenv("AWS_REGION")
	}
	if resolved == "" {
		resolved = "us-east-1"
	}

	return &BedrockRuntime{
		client: bedrockagentruntime.NewFromConfig(cfg),
		region: resolved,
	}, nil
}

// Region returns the region the client was resolved against.
func (b *BedrockRuntime) Region() string { return b.region }

func (b *BedrockRuntime) InvokeAgent(ctx context.Context, req *InvocationRequest) (EventStream, error) {
	input := &bedrockagentruntime.InvokeAgentInput{
		AgentId:      aws.String(req.AgentID),
		AgentAliasId: aws.String(req.AgentAliasID),
		SessionId:    aws.String(req.SessionID),
		InputText:    aws.String(req.InputText),
		EnableTrace:  aws.Bool(req.EnableTrace),
		EndSession:   aws.Bool(req.EndSession),
	}
	if req.MemoryID != "" {
		input.MemoryId = aws.String(req.MemoryID)
	}
	if len(req.SessionAttributes) > 0 {
		input.SessionState = &types.SessionState{
			SessionAttributes: req.SessionAttributes,
		}
	}

	out, err := b.client.InvokeAgent(ctx, input)
	if err != nil {
		return nil, err
	}

	stream := out.GetStream()
	if stream == nil {
		return nil, nil
	}
	return newBedrockStream(stream), nil
}

type bedrockStream struct {
	inner *bedrockagentruntime.InvokeAgentEventStream
	ch    chan Event
}

func newBedrockStream(inner *bedrockagentruntime.InvokeAgentEventStream) *bedrockStream {
	s := &bedrockStream{
		inner: inner,
		ch:    make(chan Event),
	}
	go func() {
		defer close(s.ch)
		for raw := range inner.Events() {
			s.ch <- convertEvent(raw)
		}
	}()
	return s
}

func (s *bedrockStream) Events() <-chan Event { return s.ch }
func (s *bedrockStream) Err() error           { return s.inner.Err() }
func (s *bedrockStream) Close() error         { return s.inner.Close() }

func convertEvent(raw types.ResponseStream) Event {
	switch v := raw.(type) {
	case *types.ResponseStreamMemberChunk:
		return Event{
			Kind:     EventChunk,
			Bytes:    v.Value.Bytes,
			HasBytes: v.Value.Bytes != nil,
		}
	case *types.ResponseStreamMemberTrace:
		return Event{Kind: EventTrace, Trace: v.Value}
	default:
		return Event{Kind: EventUnknown, Raw: raw}
	}
}
