package provision

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/m4xw311/jarvis/errors"
)

// IAM offers no observable propagation status, so a newly created role gets
// one bounded delay before it is referenced by the agent.
const rolePropagationDelay = 10 * time.Second

// ensurePolicy returns the ARN of the named policy, creating it if absent.
func (p *Provisioner) ensurePolicy(ctx context.Context, accountID, name, document string) (string, error) {
	arn := fmt.Sprintf("arn:aws:iam::%s:policy/%s", accountID, name)

	existing, err := p.iam.GetPolicy(ctx, &iam.GetPolicyInput{PolicyArn: aws.String(arn)})
	if err == nil {
		p.log.Info("policy already exists, using existing policy", "policy", name)
		return deref(existing.Policy.Arn), nil
	}
	if se, ok := errors.Classify(err); !ok || !se.NotFound() {
		return "", errors.Wrapf(err, "failed to look up policy %s", name)
	}

	p.log.Info("creating policy", "policy", name)
	created, err := p.iam.CreatePolicy(ctx, &iam.CreatePolicyInput{
		PolicyName:     aws.String(name),
		PolicyDocument: aws.String(document),
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to create policy %s", name)
	}
	p.log.Info("successfully created policy", "policy", name)
	return deref(created.Policy.Arn), nil
}

// ensureRole returns the ARN of the named role, creating it if absent.
func (p *Provisioner) ensureRole(ctx context.Context, name, assumeRolePolicyDocument string) (string, error) {
	existing, err := p.iam.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(name)})
	if err == nil {
		p.log.Info("role already exists, using existing role", "role", name)
		return deref(existing.Role.Arn), nil
	}
	if se, ok := errors.Classify(err); !ok || !se.NotFound() {
		return "", errors.Wrapf(err, "failed to look up role %s", name)
	}

	p.log.Info("creating role", "role", name)
	created, err := p.iam.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 aws.String(name),
		AssumeRolePolicyDocument: aws.String(assumeRolePolicyDocument),
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to create role %s", name)
	}

	p.log.Info("waiting for role to propagate", "role", name)
	p.sleep(rolePropagationDelay)
	return deref(created.Role.Arn), nil
}

// attachPolicy attaches the policy to the role unless already attached.
func (p *Provisioner) attachPolicy(ctx context.Context, roleName, policyARN string) error {
	attached, err := p.iam.ListAttachedRolePolicies(ctx, &iam.ListAttachedRolePoliciesInput{
		RoleName: aws.String(roleName),
	})
	if err != nil {
		return errors.Wrapf(err, "failed to list attached policies for role %s", roleName)
	}
	for _, policy := range attached.AttachedPolicies {
		if deref(policy.PolicyArn) == policyARN {
			p.log.Info("policy already attached to role", "role", roleName, "policy_arn", policyARN)
			return nil
		}
	}

	p.log.Info("attaching policy to role", "role", roleName, "policy_arn", policyARN)
	_, err = p.iam.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
		RoleName:  aws.String(roleName),
		PolicyArn: aws.String(policyARN),
	})
	if err != nil {
		return errors.Wrapf(err, "failed to attach policy to role %s", roleName)
	}
	return nil
}
