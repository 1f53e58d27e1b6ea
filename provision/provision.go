// Package provision creates the cloud resources the chat client depends
// on: an IAM policy and role for the agent, the Bedrock agent itself, its
// prepared version, and an alias. Every step checks for an existing
// resource first, so reruns are safe.
package provision

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockagent"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/m4xw311/jarvis/config"
	"github.com/m4xw311/jarvis/errors"
)

// Narrow views of the AWS clients, satisfied by *iam.Client, *sts.Client
// and *bedrockagent.Client; tests substitute mocks.

type iamAPI interface {
	GetPolicy(ctx context.Context, in *iam.GetPolicyInput, optFns ...func(*iam.Options)) (*iam.GetPolicyOutput, error)
	CreatePolicy(ctx context.Context, in *iam.CreatePolicyInput, optFns ...func(*iam.Options)) (*iam.CreatePolicyOutput, error)
	GetRole(ctx context.Context, in *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
	CreateRole(ctx context.Context, in *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error)
	ListAttachedRolePolicies(ctx context.Context, in *iam.ListAttachedRolePoliciesInput, optFns ...func(*iam.Options)) (*iam.ListAttachedRolePoliciesOutput, error)
	AttachRolePolicy(ctx context.Context, in *iam.AttachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error)
}

type stsAPI interface {
	GetCallerIdentity(ctx context.Context, in *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

type agentAPI interface {
	ListAgents(ctx context.Context, in *bedrockagent.ListAgentsInput, optFns ...func(*bedrockagent.Options)) (*bedrockagent.ListAgentsOutput, error)
	CreateAgent(ctx context.Context, in *bedrockagent.CreateAgentInput, optFns ...func(*bedrockagent.Options)) (*bedrockagent.CreateAgentOutput, error)
	GetAgent(ctx context.Context, in *bedrockagent.GetAgentInput, optFns ...func(*bedrockagent.Options)) (*bedrockagent.GetAgentOutput, error)
	PrepareAgent(ctx context.Context, in *bedrockagent.PrepareAgentInput, optFns ...func(*bedrockagent.Options)) (*bedrockagent.PrepareAgentOutput, error)
	ListAgentAliases(ctx context.Context, in *bedrockagent.ListAgentAliasesInput, optFns ...func(*bedrockagent.Options)) (*bedrockagent.ListAgentAliasesOutput, error)
	CreateAgentAlias(ctx context.Context, in *bedrockagent.CreateAgentAliasInput, optFns ...func(*bedrockagent.Options)) (*bedrockagent.CreateAgentAliasOutput, error)
}

// Provisioner runs the setup workflow. The zero delay/clock fields default
// to the real ones.
type Provisioner struct {
	iam    iamAPI
	sts    stsAPI
	agents agentAPI
	log    *slog.Logger

	sleep func(time.Duration)
	now   func() time.Time
}

func New(iamClient iamAPI, stsClient stsAPI, agentClient agentAPI, log *slog.Logger) *Provisioner {
	return &Provisioner{
		iam:    iamClient,
		sts:    stsClient,
		agents: agentClient,
		log:    log,
		sleep:  time.Sleep,
		now:    time.Now,
	}
}

// Result carries the identifiers of the provisioned resources.
type Result struct {
	AgentID      string `json:"agent_id"`
	AgentAliasID string `json:"agent_alias_id"`
	RoleARN      string `json:"role_arn"`
	PolicyARN    string `json:"policy_arn"`
}

// Run executes the workflow in order: policy, role, attachment, agent,
// preparation, alias. Each step's output feeds the next step's input.
func (p *Provisioner) Run(ctx context.Context, cfg *config.Config) (*Result, error) {
	identity, err := p.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get AWS account ID, check your credentials and permissions")
	}
	accountID := deref(identity.Account)
	region := cfg.Region
	prov := cfg.Provisioning

	suffix := fmt.Sprintf("%s-%s", region, accountID)
	policyName := fmt.Sprintf("%s-ba-%s", prov.AgentName, suffix)
	roleName := fmt.Sprintf("AmazonBedrockExecutionRoleForAgents_%s", prov.AgentName)

	policyDoc, err := foundationModelPolicy(region, prov.FoundationModel)
	if err != nil {
		return nil, err
	}
	assumeDoc, err := assumeRolePolicy(region, accountID)
	if err != nil {
		return nil, err
	}

	policyARN, err := p.ensurePolicy(ctx, accountID, policyName, policyDoc)
	if err != nil {
		return nil, err
	}
	roleARN, err := p.ensureRole(ctx, roleName, assumeDoc)
	if err != nil {
		return nil, err
	}
	if err := p.attachPolicy(ctx, roleName, policyARN); err != nil {
		return nil, err
	}

	agentID, err := p.ensureAgent(ctx, prov, roleARN)
	if err != nil {
		return nil, err
	}
	p.log.Info("agent resolved", "agent_id", agentID)

	if err := p.prepareAgent(ctx, agentID); err != nil {
		return nil, err
	}
	aliasID, err := p.ensureAlias(ctx, agentID, prov.AliasName)
	if err != nil {
		return nil, err
	}
	p.log.Info("setup completed successfully", "agent_id", agentID, "agent_alias_id", aliasID)

	return &Result{
		AgentID:      agentID,
		AgentAliasID: aliasID,
		RoleARN:      roleARN,
		PolicyARN:    policyARN,
	}, nil
}

// foundationModelPolicy allows the agent role to invoke the configured
// foundation model, with and without response streaming.
func foundationModelPolicy(region, foundationModel string) (string, error) {
	doc := map[string]any{
		"Version": "2012-10-17",
		"Statement": []map[string]any{
			{
				"Sid":    "AmazonBedrockAgentBedrockFoundationModelPolicyProd",
				"Effect": "Allow",
				"Action": []string{
					"bedrock:InvokeModel",
					"bedrock:InvokeModelWithResponseStream",
				},
				"Resource": []string{
					fmt.Sprintf("arn:aws:bedrock:%s::foundation-model/%s", region, foundationModel),
				},
			},
		},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", errors.Wrapf(err, "failed to serialize foundation model policy")
	}
	return string(data), nil
}

// assumeRolePolicy lets the Bedrock service assume the role, scoped to
// agents in this account.
func assumeRolePolicy(region, accountID string) (string, error) {
	doc := map[string]any{
		"Version": "2012-10-17",
		"Statement": []map[string]any{
			{
				"Sid":    "AmazonBedrockAgentBedrockFoundationModelPolicyProd",
				"Effect": "Allow",
				"Principal": map[string]any{
					"Service": "bedrock.amazonaws.com",
				},
				"Action": "sts:AssumeRole",
				"Condition": map[string]any{
					"StringEquals": map[string]any{
						"aws:SourceAccount": accountID,
					},
					"ArnLike": map[string]any{
						"aws:SourceArn": fmt.Sprintf("arn:aws:bedrock:%s:%s:agent/*", region, accountID),
					},
				},
			},
		},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", errors.Wrapf(err, "failed to serialize assume role policy")
	}
	return string(data), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
