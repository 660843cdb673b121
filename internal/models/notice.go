package models

// NoticeLevel classifies a transient notice.
type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
	NoticeInfo    NoticeLevel = "info"
)

// Notice is a toast shown to the operator after an action.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// Action is a status action gated by the confirm modal.
type Action string

const (
	ActionDelete     Action = "delete"
	ActionActivate   Action = "activate"
	ActionDeactivate Action = "deactivate"
)

// ParseAction validates a raw action tag.
func ParseAction(raw string) (Action, bool) {
	switch Action(raw) {
	case ActionDelete, ActionActivate, ActionDeactivate:
		return Action(raw), true
	default:
		return "", false
	}
}
