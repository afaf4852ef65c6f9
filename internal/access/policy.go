package access

import (
	"context"
	"fmt"
	"strings"
)

// Decision is the outcome of evaluating a gated action.
type Decision int

const (
	DecisionAllow Decision = iota
	DecisionPending
	DecisionBanned
	DecisionAdmin
)

func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "ALLOW"
	case DecisionPending:
		return "PENDING"
	case DecisionBanned:
		return "BANNED"
	case DecisionAdmin:
		return "ADMIN"
	default:
		return fmt.Sprintf("Decision(%d)", int(d))
	}
}

// Permitted reports whether the gated action may proceed.
func (d Decision) Permitted() bool {
	return d == DecisionAllow || d == DecisionAdmin
}

// AdminOutcome is the result of authorizing a privileged command. A denied
// command is dropped without telling the caller.
type AdminOutcome int

const (
	AdminDeniedSilently AdminOutcome = iota
	AdminGranted
)

// Requester identifies who invoked a command.
type Requester struct {
	ID        int64
	Username  string
	FirstName string
	ChatID    int64
}

// Admin is the configured operator, matched by numeric id or username.
type Admin struct {
	ID       int64
	Username string
}

// Matches reports whether id or username identifies the admin. Usernames
// compare case-insensitively, with or without a leading '@'.
func (a Admin) Matches(id int64, username string) bool {
	if a.ID != 0 && a.ID == id {
		return true
	}
	want := strings.TrimPrefix(a.Username, "@")
	got := strings.TrimPrefix(username, "@")
	return want != "" && strings.EqualFold(want, got)
}

// Notifier delivers access-related messages. Calls happen after the store
// change they describe has been persisted.
type Notifier interface {
	NotifyRequester(ctx context.Context, r Requester) error
	NotifyAdmin(ctx context.Context, r Requester, alreadyPending bool) error
}

type Policy struct {
	store    *Store
	admin    Admin
	notifier Notifier
}

func NewPolicy(store *Store, admin Admin, notifier Notifier) *Policy {
	return &Policy{store: store, admin: admin, notifier: notifier}
}

// Evaluate decides whether r may run a gated action, registering r as
// pending on first contact. A notification failure does not change the
// decision; it is returned alongside it.
func (p *Policy) Evaluate(ctx context.Context, r Requester) (Decision, error) {
	if p.admin.Matches(r.ID, r.Username) {
		return DecisionAdmin, nil
	}

	switch p.store.State(r.ID) {
	case StateBanned:
		return DecisionBanned, nil
	case StateApproved:
		return DecisionAllow, nil
	}

	prev, err := p.store.RequestAccess(ctx, r.ID)
	if err != nil {
		return DecisionPending, err
	}
	switch prev {
	case StateBanned:
		return DecisionBanned, nil
	case StateApproved:
		return DecisionAllow, nil
	case StatePending:
		return DecisionPending, p.notifyAdmin(ctx, r, true)
	}

	if p.notifier != nil {
		if err := p.notifier.NotifyRequester(ctx, r); err != nil {
			return DecisionPending, fmt.Errorf("notifying requester: %w", err)
		}
	}
	return DecisionPending, p.notifyAdmin(ctx, r, false)
}

func (p *Policy) notifyAdmin(ctx context.Context, r Requester, alreadyPending bool) error {
	if p.notifier == nil {
		return nil
	}
	if err := p.notifier.NotifyAdmin(ctx, r, alreadyPending); err != nil {
		return fmt.Errorf("notifying admin: %w", err)
	}
	return nil
}

// AuthorizeAdmin gates privileged commands.
func (p *Policy) AuthorizeAdmin(r Requester) AdminOutcome {
	if p.admin.Matches(r.ID, r.Username) {
		return AdminGranted
	}
	return AdminDeniedSilently
}

// Admin returns the configured operator.
func (p *Policy) Admin() Admin {
	return p.admin
}

// Store returns the underlying access list.
func (p *Policy) Store() *Store {
	return p.store
}
