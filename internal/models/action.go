package models

import "fmt"

type ActionType string

const (
	ActionLockdown ActionType = "lockdown"
	ActionBan      ActionType = "ban"
	ActionKick     ActionType = "kick"
)

func ParseActionType(s string) (ActionType, error) {
	switch ActionType(s) {
	case ActionLockdown, ActionBan, ActionKick:
		return ActionType(s), nil
	default:
		return "", &ConfigurationError{Field: "action_type", Reason: fmt.Sprintf("unknown action %q", s)}
	}
}

func (a ActionType) String() string {
	return string(a)
}

// BatchResult collects per-target outcomes of a best-effort bulk action.
type BatchResult struct {
	Action    ActionType
	Succeeded []string
	Skipped   []string
	Failed    map[string]error
}

func NewBatchResult(action ActionType) *BatchResult {
	return &BatchResult{
		Action: action,
		Failed: make(map[string]error),
	}
}

func (r *BatchResult) SuccessCount() int {
	return len(r.Succeeded)
}

func (r *BatchResult) FailureCount() int {
	return len(r.Failed)
}

func (r *BatchResult) Summary() string {
	return fmt.Sprintf("%s: %d succeeded, %d failed, %d skipped",
		r.Action, len(r.Succeeded), len(r.Failed), len(r.Skipped))
}
