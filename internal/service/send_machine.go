package service

import (
	"context"
	"log/slog"

	"github.com/qmuntal/stateless"

	"nova-ai/backend/internal/repository"
)

// Send FSM states. Every send operation walks
// Idle -> UserAppended -> PlaceholderAppended -> {Streaming|SingleShot}
// -> {Settled|Errored}; both terminal states clear the loading flag.
type sendState stateless.State

var (
	stateIdle                sendState = "Idle"
	stateUserAppended        sendState = "UserAppended"
	statePlaceholderAppended sendState = "PlaceholderAppended"
	stateStreaming           sendState = "Streaming"
	stateSingleShot          sendState = "SingleShot"
	stateSettled             sendState = "Settled"
	stateErrored             sendState = "Errored"
)

type sendTrigger stateless.Trigger

var (
	triggerUserAppended        sendTrigger = "UserAppended"
	triggerPlaceholderAppended sendTrigger = "PlaceholderAppended"
	triggerStreamStarted       sendTrigger = "StreamStarted"
	triggerSingleShotStarted   sendTrigger = "SingleShotStarted"
	triggerSettled             sendTrigger = "Settled"
	triggerFailed              sendTrigger = "Failed"
)

type sendFSM = *stateless.StateMachine

// newSendMachine builds the per-send state machine. The machine does not
// drive the work itself; the orchestrator fires triggers as it progresses so
// that an out-of-order transition fails loudly instead of corrupting state.
func newSendMachine(repo repository.Repository) sendFSM {
	fsm := stateless.NewStateMachine(stateIdle)

	clearLoading := func(_ context.Context, _ ...any) error {
		repo.SetLoading(false)
		return nil
	}

	fsm.Configure(stateIdle).
		Permit(triggerUserAppended, stateUserAppended)

	fsm.Configure(stateUserAppended).
		Permit(triggerPlaceholderAppended, statePlaceholderAppended)

	fsm.Configure(statePlaceholderAppended).
		Permit(triggerStreamStarted, stateStreaming).
		Permit(triggerSingleShotStarted, stateSingleShot).
		Permit(triggerFailed, stateErrored)

	fsm.Configure(stateStreaming).
		Permit(triggerSettled, stateSettled).
		Permit(triggerFailed, stateErrored)

	fsm.Configure(stateSingleShot).
		Permit(triggerSettled, stateSettled).
		Permit(triggerFailed, stateErrored)

	fsm.Configure(stateSettled).
		OnEntry(clearLoading)

	fsm.Configure(stateErrored).
		OnEntry(clearLoading)

	return fsm
}

func fireSend(fsm *stateless.StateMachine, trigger sendTrigger) {
	if err := fsm.Fire(trigger); err != nil {
		slog.Warn("Send FSM fire error", "trigger", trigger, "error", err)
	}
}
