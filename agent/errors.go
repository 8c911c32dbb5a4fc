package agent

import "fmt"

// RoundLimitError reports a turn that was still requesting tools when the
// round budget ran out.
type RoundLimitError struct {
	Rounds int
}

func (e *RoundLimitError) Error() string {
	return fmt.Sprintf("model still requesting tools after %d rounds", e.Rounds)
}

// BadArgumentsError reports a writeback tool call whose arguments could not
// be mapped onto a commit payload. The turn aborts rather than dropping the
// requested write.
type BadArgumentsError struct {
	Tool string
}

func (e *BadArgumentsError) Error() string {
	return fmt.Sprintf("tool %s: arguments do not map onto a writeback payload", e.Tool)
}
