package agenda

import (
	"time"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/pkg/types"
)

// Clock is the time source injected into the machine. Production code uses
// [SystemClock]; tests use a fake advancing under test control.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production [Clock] backed by time.Now.
type SystemClock struct{}

// Now returns the current wall-clock time (with monotonic reading).
func (SystemClock) Now() time.Time { return time.Now() }

// Tuning carries the numeric facilitation parameters. Zero values are
// replaced by the documented defaults in [NewMachine]; construct with
// [DefaultTuning] and override individual fields as needed.
type Tuning struct {
	// WarningRatio is the fraction of the allocation at which an Active item
	// transitions to Warning. Default 0.80.
	WarningRatio float64

	// OverrideGrace is the extension granted by an override request.
	// Default 120s.
	OverrideGrace time.Duration

	// SilenceWindow is how long a participant silence request mutes the bot.
	// Default 300s.
	SilenceWindow time.Duration

	// InterventionCooldown is the minimum gap between two monitoring-triggered
	// interventions. Default 30s.
	InterventionCooldown time.Duration

	// TranscriptWindow bounds the rolling transcript buffer. Default 120s.
	TranscriptWindow time.Duration

	// RecentWindow is the slice of the rolling buffer exposed to the gate and
	// the tangent assessor. Default 60s.
	RecentWindow time.Duration

	// TangentThresholds overrides the per-style tangent confidence thresholds.
	// Styles absent from the map use the built-in table.
	TangentThresholds map[Style]float64
}

// DefaultTuning returns the documented default facilitation parameters.
func DefaultTuning() Tuning {
	return Tuning{
		WarningRatio:         0.80,
		OverrideGrace:        120 * time.Second,
		SilenceWindow:        300 * time.Second,
		InterventionCooldown: 30 * time.Second,
		TranscriptWindow:     120 * time.Second,
		RecentWindow:         60 * time.Second,
	}
}

// tangentThreshold resolves the effective threshold for a style, preferring
// a configured override.
func (t Tuning) tangentThreshold(s Style) float64 {
	if v, ok := t.TangentThresholds[s]; ok {
		return v
	}
	return s.TangentThreshold()
}

// TimeStatus is a point-in-time snapshot of the current item's timing,
// produced for the deterministic time-query reply and for intervention text.
// All durations are non-negative; Remaining is clamped to zero.
type TimeStatus struct {
	// Topic is the current item's topic, empty when no item is current.
	Topic string

	// Elapsed is the time spent on the current item so far.
	Elapsed time.Duration

	// Remaining is Allocated - Elapsed, clamped to zero.
	Remaining time.Duration

	// Allocated is the current item's planned duration.
	Allocated time.Duration

	// TotalMeeting is the sum of all items' allocations.
	TotalMeeting time.Duration

	// Overtime is the cumulative meeting overtime: finalised overruns of
	// completed items plus the current item's overrun so far.
	Overtime time.Duration
}

// Context is the derived snapshot the speech gate decides over. It is built
// by [Machine.Context] and carries everything the gate needs, so the gate
// itself stays a pure function with no access to mutable state.
type Context struct {
	// Now is the snapshot instant. Deadline comparisons inside the gate use
	// this value, never the wall clock.
	Now time.Time

	// Style is the effective facilitation style.
	Style Style

	// Topic is the current item's topic, empty when no item is current.
	Topic string

	// ItemState is the current item's lifecycle state, ItemCompleted when no
	// item is current.
	ItemState ItemState

	// Elapsed and Allocated describe the current item's timing.
	Elapsed   time.Duration
	Allocated time.Duration

	// MeetingOvertime is cumulative (finalised + current overrun).
	MeetingOvertime time.Duration

	// Recent is the transcript window the redundancy rule inspects.
	Recent []types.TranscriptEntry

	// OverrideActive reports whether a participant-granted override window
	// covers Now.
	OverrideActive bool

	// SilenceUntil is the absolute deadline of the active silence window;
	// zero when none was requested.
	SilenceUntil time.Time

	// TangentConfidence is the assessor's confidence for tangent candidates,
	// 0.0 for every other trigger.
	TangentConfidence float64

	// TangentThreshold is the effective threshold for the current style,
	// resolved from tuning so the gate needs no configuration of its own.
	TangentThreshold float64

	// ItemsRemaining counts items not yet completed, including the current one.
	ItemsRemaining int
}
