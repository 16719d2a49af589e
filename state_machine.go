package identity

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const (
	textCodeInvalidTransition = "INVALID_STATUS_TRANSITION"
)

// ErrInvalidTransition is returned when a requested status change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid principal status transition", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// ActorRef identifies who/what triggered a transition.
type ActorRef struct {
	ID   string
	Type string
}

// TransitionMetadata captures extra context for a transition.
type TransitionMetadata struct {
	Reason  string
	Request RequestMeta
}

// TransitionContext is passed into hooks for additional processing.
type TransitionContext struct {
	Actor     ActorRef
	Principal *Principal
	From      Status
	To        Status
	Meta      TransitionMetadata
}

// TransitionHook is executed before or after a transition.
type TransitionHook func(ctx context.Context, tc TransitionContext) error

// TransitionOption customizes a single transition.
type TransitionOption func(*transitionOptions)

// PrincipalStateMachine defines lifecycle operations for principals.
type PrincipalStateMachine interface {
	Transition(ctx context.Context, actor ActorRef, principal *Principal, target Status, opts ...TransitionOption) (*Principal, error)
	CurrentStatus(principal *Principal) Status
}

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*principalStateMachine)

// WithStateMachineClock injects a custom clock (useful for tests).
func WithStateMachineClock(clock func() time.Time) StateMachineOption {
	return func(sm *principalStateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithStateMachineRecorder sets the audit Recorder transitions are written to.
func WithStateMachineRecorder(recorder Recorder) StateMachineOption {
	return func(sm *principalStateMachine) {
		sm.recorder = normalizeRecorder(recorder)
	}
}

// WithStateMachineLogger overrides the logger used for recorder failures.
func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(sm *principalStateMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// WithTransitionReason sets the human-readable reason for the transition.
func WithTransitionReason(reason string) TransitionOption {
	return func(opts *transitionOptions) {
		opts.metadata.Reason = reason
	}
}

// WithTransitionRequestMeta attaches the transport-level origin of the
// transition to its audit entry.
func WithTransitionRequestMeta(meta RequestMeta) TransitionOption {
	return func(opts *transitionOptions) {
		opts.metadata.Request = meta
	}
}

// WithTransitionAction overrides the heuristic audit classification. Use it
// when a multi-field mutation happens to include a status change.
func WithTransitionAction(action AuditAction) TransitionOption {
	return func(opts *transitionOptions) {
		opts.action = action
	}
}

// WithForceTransition bypasses validation rules (use sparingly).
func WithForceTransition() TransitionOption {
	return func(opts *transitionOptions) {
		opts.force = true
	}
}

// WithBeforeTransitionHook adds a hook executed before the status update.
func WithBeforeTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.beforeHooks = append(opts.beforeHooks, h)
		}
	}
}

// WithAfterTransitionHook adds a hook executed after the status update succeeds.
func WithAfterTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.afterHooks = append(opts.afterHooks, h)
		}
	}
}

// NewPrincipalStateMachine returns the default implementation backed by the
// provided repository.
func NewPrincipalStateMachine(principals Principals, opts ...StateMachineOption) PrincipalStateMachine {
	sm := &principalStateMachine{
		principals: principals,
		transitions: map[Status]map[Status]struct{}{
			StatusPending: {
				StatusActive:    {},
				StatusSuspended: {},
			},
			StatusActive: {
				StatusSuspended: {},
			},
			StatusSuspended: {
				StatusActive: {},
			},
		},
		now:      time.Now,
		recorder: noopRecorder{},
		logger:   defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

type principalStateMachine struct {
	principals  Principals
	transitions map[Status]map[Status]struct{}
	now         func() time.Time
	recorder    Recorder
	logger      Logger
}

type transitionOptions struct {
	metadata    TransitionMetadata
	action      AuditAction
	force       bool
	beforeHooks []TransitionHook
	afterHooks  []TransitionHook
}

func (sm *principalStateMachine) Transition(ctx context.Context, actor ActorRef, principal *Principal, target Status, opts ...TransitionOption) (*Principal, error) {
	if principal == nil {
		return nil, ErrInvalidTransition.WithMetadata(map[string]any{
			"target": target,
			"reason": "principal is nil",
		})
	}

	principal.EnsureStatus()
	from := principal.Status
	if !target.IsValid() {
		return nil, ErrInvalidTransition.WithMetadata(map[string]any{
			"reason": fmt.Sprintf("unknown target status: %q", target),
		})
	}

	if from == target {
		return principal, nil
	}

	options := sm.buildTransitionOptions(opts...)

	if !options.force && !sm.canTransition(from, target) {
		return nil, ErrInvalidTransition.WithMetadata(map[string]any{
			"from": from,
			"to":   target,
		})
	}

	ctxData := TransitionContext{
		Actor:     actor,
		Principal: principal,
		From:      from,
		To:        target,
		Meta:      options.metadata,
	}

	if err := runTransitionHooks(ctx, options.beforeHooks, ctxData); err != nil {
		return nil, err
	}

	statusOpts := sm.buildStatusOptions(principal, from, target)

	updated, err := sm.principals.UpdateStatus(ctx, principal.ID, target, statusOpts...)
	if err != nil {
		return nil, err
	}

	sm.applyUpdates(principal, updated, target, from)

	if err := runTransitionHooks(ctx, options.afterHooks, ctxData); err != nil {
		return nil, err
	}

	sm.recordTransition(ctx, actor, principal, from, target, options)

	return principal, nil
}

func (sm *principalStateMachine) CurrentStatus(principal *Principal) Status {
	if principal == nil {
		return ""
	}
	principal.EnsureStatus()
	return principal.Status
}

func (sm *principalStateMachine) canTransition(from, to Status) bool {
	if allowed, ok := sm.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

func (sm *principalStateMachine) buildTransitionOptions(opts ...TransitionOption) *transitionOptions {
	options := &transitionOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}
	return options
}

func (sm *principalStateMachine) buildStatusOptions(principal *Principal, from, to Status) []StatusUpdateOption {
	statusOpts := []StatusUpdateOption{}

	if to == StatusSuspended {
		now := sm.now()
		statusOpts = append(statusOpts, WithSuspendedAt(&now))
	} else if from == StatusSuspended && principal.SuspendedAt != nil {
		statusOpts = append(statusOpts, WithSuspendedAt(nil))
	}

	return statusOpts
}

func (sm *principalStateMachine) applyUpdates(principal, updated *Principal, target, from Status) {
	if updated != nil {
		if updated.Status != "" {
			principal.Status = updated.Status
		} else {
			principal.Status = target
		}
		principal.SuspendedAt = updated.SuspendedAt
		return
	}

	principal.Status = target
	if from == StatusSuspended {
		principal.SuspendedAt = nil
	}
}

func (sm *principalStateMachine) recordTransition(ctx context.Context, actor ActorRef, principal *Principal, from, to Status, options *transitionOptions) {
	action := options.action
	if action == "" {
		action = ClassifyStatusChange(from, to)
	}

	actorID, err := uuid.Parse(actor.ID)
	if err != nil {
		actorID = uuid.Nil
	}

	oldValues := map[string]any{"status": string(from)}
	newValues := map[string]any{"status": string(to)}
	if options.metadata.Reason != "" {
		newValues["reason"] = options.metadata.Reason
	}

	targetID := principal.ID
	entry := AuditEntry{
		ActingPrincipalID: actorID,
		Action:            action,
		EntityType:        "principal",
		EntityID:          principal.ID.String(),
		TargetPrincipalID: &targetID,
		OldValues:         oldValues,
		NewValues:         newValues,
		IPAddress:         options.metadata.Request.IPAddress,
		UserAgent:         options.metadata.Request.UserAgent,
	}

	recordBestEffort(ctx, sm.recorder, sm.logger, entry)
}

func runTransitionHooks(ctx context.Context, hooks []TransitionHook, data TransitionContext) error {
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, data); err != nil {
			return err
		}
	}
	return nil
}
