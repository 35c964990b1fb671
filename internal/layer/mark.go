package layer

import (
	"github.com/roach88/crossplot/internal/encoding"
	"github.com/roach88/crossplot/internal/spec"
)

func has(resolved map[spec.Channel]*encoding.Resolved, chans ...spec.Channel) bool {
	for _, ch := range chans {
		if _, ok := resolved[ch]; ok {
			return true
		}
	}
	return false
}

// stacking is an aggregate that stacks: eCDF outputs are positions, not
// amounts.
func stacking(r *encoding.Resolved) bool {
	return r != nil && r.Aggregate && !r.Unnest
}

// checkMark reports marks that cannot be drawn from the resolved channels.
func checkMark(mark spec.Mark, resolved map[spec.Channel]*encoding.Resolved) *encoding.SpecError {
	if !spec.ValidMarks[mark] {
		return encoding.NewSpecError(encoding.ErrCodeInvalidMark, "", "unknown mark %q", mark)
	}
	hasX := has(resolved, spec.ChannelX, spec.ChannelX1)
	hasY := has(resolved, spec.ChannelY, spec.ChannelY1)

	switch mark {
	case spec.MarkLine, spec.MarkPoint, spec.MarkArea, spec.MarkRect:
		if !hasX || !hasY {
			return encoding.NewSpecError(encoding.ErrCodeInvalidMark, "", "%s mark needs both an x and a y encoding", mark)
		}
	case spec.MarkBar:
		if !hasX && !hasY {
			return encoding.NewSpecError(encoding.ErrCodeInvalidMark, "", "bar mark needs an x or a y encoding")
		}
		if stacking(resolved[spec.ChannelX]) && stacking(resolved[spec.ChannelY]) {
			return encoding.NewSpecError(encoding.ErrCodeInvalidMark, "", "bar mark cannot aggregate both x and y")
		}
	case spec.MarkRule:
		if !hasX && !hasY && !has(resolved, spec.ChannelX2, spec.ChannelY2) {
			return encoding.NewSpecError(encoding.ErrCodeInvalidMark, "", "rule mark needs a position encoding")
		}
	}
	return nil
}

// valueAxis returns the axis a bar or area stacks along, or "".
func valueAxis(mark spec.Mark, resolved map[spec.Channel]*encoding.Resolved) spec.Channel {
	if mark != spec.MarkBar && mark != spec.MarkArea {
		return ""
	}
	x, y := resolved[spec.ChannelX], resolved[spec.ChannelY]
	switch {
	case stacking(y) && !stacking(x):
		return spec.ChannelY
	case stacking(x) && !stacking(y):
		return spec.ChannelX
	}
	return ""
}
