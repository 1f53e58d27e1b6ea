package provision

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagent"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagent/types"
	"github.com/m4xw311/jarvis/config"
	"github.com/m4xw311/jarvis/errors"
)

const (
	pollInitialDelay = 2 * time.Second
	pollMaxDelay     = 30 * time.Second
	prepareTimeout   = 5 * time.Minute
)

// ensureAgent returns the id of the named agent, creating it if absent.
func (p *Provisioner) ensureAgent(ctx context.Context, prov config.Provisioning, roleARN string) (string, error) {
	var nextToken *string
	for {
		agents, err := p.agents.ListAgents(ctx, &bedrockagent.ListAgentsInput{NextToken: nextToken})
		if err != nil {
			return "", errors.Wrapf(err, "failed to list agents")
		}
		for _, summary := range agents.AgentSummaries {
			if deref(summary.AgentName) == prov.AgentName {
				p.log.Info("agent already exists, using existing agent", "agent", prov.AgentName)
				return deref(summary.AgentId), nil
			}
		}
		nextToken = agents.NextToken
		if nextToken == nil {
			break
		}
	}

	p.log.Info("creating agent", "agent", prov.AgentName)
	created, err := p.agents.CreateAgent(ctx, &bedrockagent.CreateAgentInput{
		AgentName:               aws.String(prov.AgentName),
		AgentResourceRoleArn:    aws.String(roleARN),
		Description:             aws.String(prov.Description),
		Instruction:             aws.String(prov.Instruction),
		FoundationModel:         aws.String(prov.FoundationModel),
		IdleSessionTTLInSeconds: aws.Int32(prov.IdleSessionTTL),
		MemoryConfiguration: &types.MemoryConfiguration{
			EnabledMemoryTypes: []types.MemoryType{types.MemoryTypeSessionSummary},
			StorageDays:        aws.Int32(prov.MemoryStorageDays),
		},
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to create agent %s", prov.AgentName)
	}
	agentID := deref(created.Agent.AgentId)
	p.log.Info("successfully created agent", "agent", prov.AgentName, "agent_id", agentID)

	// Creation is asynchronous; wait until the agent leaves CREATING before
	// preparing it.
	if err := p.waitForAgent(ctx, agentID, func(s types.AgentStatus) bool {
		return s != types.AgentStatusCreating
	}); err != nil {
		return "", err
	}
	return agentID, nil
}

// prepareAgent kicks off preparation and polls until the agent reports
// PREPARED.
func (p *Provisioner) prepareAgent(ctx context.Context, agentID string) error {
	p.log.Info("preparing agent", "agent_id", agentID)
	if _, err := p.agents.PrepareAgent(ctx, &bedrockagent.PrepareAgentInput{
		AgentId: aws.String(agentID),
	}); err != nil {
		return errors.Wrapf(err, "failed to prepare agent %s", agentID)
	}

	if err := p.waitForAgent(ctx, agentID, func(s types.AgentStatus) bool {
		return s == types.AgentStatusPrepared
	}); err != nil {
		return err
	}
	p.log.Info("agent successfully prepared", "agent_id", agentID)
	return nil
}

// waitForAgent polls GetAgent with exponential backoff until the status
// satisfies done, the agent fails, or the timeout elapses.
func (p *Provisioner) waitForAgent(ctx context.Context, agentID string, done func(types.AgentStatus) bool) error {
	deadline := p.now().Add(prepareTimeout)
	delay := pollInitialDelay

	for {
		out, err := p.agents.GetAgent(ctx, &bedrockagent.GetAgentInput{AgentId: aws.String(agentID)})
		if err != nil {
			return errors.Wrapf(err, "failed to get agent %s", agentID)
		}
		status := out.Agent.AgentStatus
		if done(status) {
			return nil
		}
		if status == types.AgentStatusFailed {
			return errors.New("agent %s entered FAILED status", agentID)
		}
		if p.now().After(deadline) {
			return errors.New("timed out waiting for agent %s, last status %s", agentID, status)
		}

		p.log.Info("waiting for agent", "agent_id", agentID, "status", status, "retry_in", delay)
		p.sleep(delay)
		if delay *= 2; delay > pollMaxDelay {
			delay = pollMaxDelay
		}
	}
}

// ensureAlias returns the id of the named alias, creating it if absent.
func (p *Provisioner) ensureAlias(ctx context.Context, agentID, aliasName string) (string, error) {
	var nextToken *string
	for {
		aliases, err := p.agents.ListAgentAliases(ctx, &bedrockagent.ListAgentAliasesInput{
			AgentId:   aws.String(agentID),
			NextToken: nextToken,
		})
		if err != nil {
			return "", errors.Wrapf(err, "failed to list aliases for agent %s", agentID)
		}
		for _, summary := range aliases.AgentAliasSummaries {
			if deref(summary.AgentAliasName) == aliasName {
				p.log.Info("alias already exists, using existing alias", "alias", aliasName)
				return deref(summary.AgentAliasId), nil
			}
		}
		nextToken = aliases.NextToken
		if nextToken == nil {
			break
		}
	}

	p.log.Info("creating agent alias", "alias", aliasName)
	created, err := p.agents.CreateAgentAlias(ctx, &bedrockagent.CreateAgentAliasInput{
		AgentId:        aws.String(agentID),
		AgentAliasName: aws.String(aliasName),
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to create agent alias %s", aliasName)
	}
	p.log.Info("successfully created agent alias", "alias", aliasName)
	return deref(created.AgentAlias.AgentAliasId), nil
}
