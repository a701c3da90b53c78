package service

import (
	"context"

	"goconverse/internal/chat/repository"
	"goconverse/internal/common"
	"goconverse/internal/config"
	"goconverse/internal/dbmysql"
)

// PolicyAuthorizer is the default Authorizer implementation. Messaging
// policy is a closed enumeration; anything unrecognized is denied.
type PolicyAuthorizer struct {
	users         repository.UserRepository
	conversations repository.ConversationRepository
	subscriptions common.SubscriptionChecker // optional
	override      bool                       // feature flag: subscriber override
	clock         common.Clock
}

func NewPolicyAuthorizer(
	cfg *config.Config,
	users repository.UserRepository,
	conversations repository.ConversationRepository,
	subscriptions common.SubscriptionChecker,
	clock common.Clock,
) *PolicyAuthorizer {
	return &PolicyAuthorizer{
		users:         users,
		conversations: conversations,
		subscriptions: subscriptions,
		override:      cfg.Notification.SubscriberOverride,
		clock:         clock,
	}
}

func (a *PolicyAuthorizer) CanMessage(ctx context.Context, viewerID, targetID uint64) (bool, error) {
	if viewerID == targetID {
		return false, nil
	}

	blocked, err := a.users.HasBlockRelationship(ctx, viewerID, targetID)
	if err != nil {
		return false, err
	}
	if blocked {
		return false, nil
	}

	target, err := a.users.ByID(ctx, targetID)
	if err != nil {
		if repository.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}

	allowed, err := a.policyAllows(ctx, viewerID, target)
	if err != nil {
		return false, err
	}
	if allowed {
		return true, nil
	}

	// Subscriber override sits behind a feature flag and the target's own
	// opt-in; it never overrides a block.
	if a.override && target.SubscriberOverride && a.subscriptions != nil {
		return a.subscriptions.IsSubscribed(ctx, viewerID, targetID)
	}
	return false, nil
}

func (a *PolicyAuthorizer) policyAllows(ctx context.Context, viewerID uint64, target *dbmysql.User) (bool, error) {
	switch target.MessagingPolicy {
	case dbmysql.PolicyEveryone:
		return true, nil
	case dbmysql.PolicyNoOne:
		return false, nil
	case dbmysql.PolicyVerified:
		viewer, err := a.users.ByID(ctx, viewerID)
		if err != nil {
			return false, err
		}
		return viewer.Verified, nil
	case dbmysql.PolicyFollowing:
		return a.users.IsFollowing(ctx, target.UserID, viewerID)
	case dbmysql.PolicyVerifiedAndFollowing:
		viewer, err := a.users.ByID(ctx, viewerID)
		if err != nil {
			return false, err
		}
		if !viewer.Verified {
			return false, nil
		}
		return a.users.IsFollowing(ctx, target.UserID, viewerID)
	default:
		// Fail closed on unknown policy values.
		return false, nil
	}
}

func (a *PolicyAuthorizer) Can(ctx context.Context, actorID uint64, action common.Action, msg *dbmysql.Message) (bool, error) {
	switch action {
	case common.ActionView:
		p, err := a.conversations.ParticipantFor(ctx, msg.ConversationID, actorID)
		if err != nil {
			return false, err
		}
		return p != nil && p.Active(), nil

	case common.ActionDelete:
		if msg.SenderID != nil && *msg.SenderID == actorID {
			return true, nil
		}
		p, err := a.conversations.ParticipantFor(ctx, msg.ConversationID, actorID)
		if err != nil {
			return false, err
		}
		return p != nil && p.Active() && p.Role == dbmysql.RoleOwner, nil

	case common.ActionUndo:
		if msg.SenderID == nil || *msg.SenderID != actorID {
			return false, nil
		}
		if msg.UndoExpiresAt == nil {
			return false, nil
		}
		return a.clock.Now().Before(*msg.UndoExpiresAt), nil

	default:
		return false, nil
	}
}
