package config

import "slices"

// ConfigDiff describes what changed between two configs. Only fields that
// can be applied without restarting a running meeting are tracked: the log
// level applies immediately, persona and meeting defaults apply to sessions
// started after the reload.
type ConfigDiff struct {
	// LogLevelChanged reports a new root log level.
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// BotChanged reports a change to the facilitator persona (name,
	// aliases, language, or voice).
	BotChanged bool

	// MeetingChanged reports a change to the facilitation defaults (style,
	// time reply mode, intervals, or tuning knobs).
	MeetingChanged bool
}

// Empty reports whether the diff contains no applicable change.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.BotChanged && !d.MeetingChanged
}

// Diff compares old and new configs and returns what changed. Provider,
// transport and memory changes are deliberately not tracked; they require a
// restart and the watcher's caller logs them as ignored.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Bot.Name != new.Bot.Name ||
		old.Bot.Language != new.Bot.Language ||
		old.Bot.Voice != new.Bot.Voice ||
		!slices.Equal(old.Bot.Aliases, new.Bot.Aliases) {
		d.BotChanged = true
	}

	if old.Meeting != new.Meeting {
		d.MeetingChanged = true
	}

	return d
}
