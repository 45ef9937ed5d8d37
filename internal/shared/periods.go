package shared

// Period statuses reused outside the accounting module.
const (
	PeriodStatusOpen   = "OPEN"
	PeriodStatusClosed = "CLOSED"
	PeriodStatusLocked = "LOCKED"
)

// ErrInvalidPeriodTransition indicates status change not allowed.
var ErrInvalidPeriodTransition = Policy("INVALID_PERIOD_TRANSITION", "period transition not allowed")

type periodMove struct {
	from, to string
}

// periodMoves maps each allowed move to whether it needs an override.
var periodMoves = map[periodMove]bool{
	{PeriodStatusOpen, PeriodStatusClosed}:   false,
	{PeriodStatusOpen, PeriodStatusLocked}:   false,
	{PeriodStatusClosed, PeriodStatusOpen}:   false,
	{PeriodStatusClosed, PeriodStatusLocked}: false,
	{PeriodStatusLocked, PeriodStatusClosed}: true,
}

// ValidatePeriodTransition reports whether a period may move from current to
// target. A locked period only goes back to CLOSED, and only with override.
func ValidatePeriodTransition(current, target string, override bool) error {
	if current == target {
		return nil
	}
	needsOverride, ok := periodMoves[periodMove{current, target}]
	if !ok || (needsOverride && !override) {
		return ErrInvalidPeriodTransition.Withf("cannot move period from %s to %s", current, target)
	}
	return nil
}
