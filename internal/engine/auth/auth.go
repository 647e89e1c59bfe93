package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"controlroom/internal/config"
	"controlroom/internal/repo"
)

const (
	PermDecisionRead     = "decision.read"
	PermDecisionSimulate = "decision.simulate"
	PermDecisionApprove  = "decision.approve"
	PermDecisionExecute  = "decision.execute"
	PermAlertManage      = "alert.manage"
	PermOutcomeRecord    = "outcome.record"
	PermRefreshRun       = "refresh.run"
	PermOptimizerRun     = "optimizer.run"
	PermAPIKeyManage     = "apikey.manage"
)

// ForbiddenError indicates missing permission.
type ForbiddenError struct {
	Permission string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("permission %s required", e.Permission)
}

// Service resolves actor roles from SQLite and role permissions from the policy file.
type Service struct {
	Repo   repo.Repo
	Config *config.Config
}

func (s Service) Roles(ctx context.Context, actorID string) ([]string, error) {
	if actorID == "" {
		return nil, errors.New("actor_id required")
	}
	return s.Repo.ActorRoles(ctx, nil, actorID)
}

func (s Service) Permissions(ctx context.Context, actorID string) ([]string, error) {
	roles, err := s.Roles(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return s.Config.RolePermissions(roles), nil
}

// Require returns ForbiddenError unless the actor holds perm.
func (s Service) Require(ctx context.Context, actorID, perm string) error {
	perms, err := s.Permissions(ctx, actorID)
	if err != nil {
		return err
	}
	if !HasPermission(perms, perm) {
		return ForbiddenError{Permission: perm}
	}
	return nil
}

// Grant assigns a role defined in the policy file.
func (s Service) Grant(ctx context.Context, actorID, roleID string) error {
	if actorID == "" {
		return errors.New("actor_id required")
	}
	if err := s.CheckRoles(roleID); err != nil {
		return err
	}
	tx, err := s.Repo.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := s.Repo.EnsureActor(ctx, tx, actorID, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	if err := s.Repo.AssignRole(ctx, tx, actorID, roleID); err != nil {
		return err
	}
	return tx.Commit()
}

// CheckRoles fails on the first role the policy file does not define.
func (s Service) CheckRoles(roles ...string) error {
	for _, r := range roles {
		if _, ok := s.Config.RBAC.Roles[r]; !ok {
			return fmt.Errorf("role %s not defined in policy", r)
		}
	}
	return nil
}

func (s Service) Revoke(ctx context.Context, actorID, roleID string) error {
	return s.Repo.RevokeRole(ctx, nil, actorID, roleID)
}

func HasPermission(perms []string, perm string) bool {
	return slices.Contains(perms, perm)
}
