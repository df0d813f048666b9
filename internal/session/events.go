package session

import "github.com/abhijeet-rane/Examwizards-Platform-sub001/internal/model"

// eventKind enumerates everything the machine's event loop can consume.
// Timer ticks, monitor callbacks and user actions all funnel through
// the same queue, so the machine processes one event to completion
// before accepting the next.
type eventKind int

const (
	evConfirm eventKind = iota
	evCancel
	evSetSingle
	evToggleMulti
	evSetText
	evGoTo
	evNext
	evPrevious
	evToggleFlag
	evViolation
	evRestored
	evInputBlocked
	evTick
	evExpire
	evSubmit
	evRetry
	evSubmitDone
)

// event is the single queue element type. Only the fields relevant to
// the kind are populated.
type event struct {
	kind eventKind

	questionID string
	option     string
	included   bool
	text       string
	index      int

	violation ViolationKind
	blocking  bool
	signature string

	remaining int

	attempt int
	result  *model.AttemptResult
	err     error
}
