package config

import "reflect"

// ConfigDiff describes what changed between two configs.
// Only the log level is applied live; every other section needs a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// RestartRequired lists the top-level sections that changed and only
	// take effect after a restart.
	RestartRequired []string
}

// Changed reports whether anything differs.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server")
	}

	sections := []struct {
		name     string
		old, new any
	}{
		{"discord", old.Discord, new.Discord},
		{"providers", old.Providers, new.Providers},
		{"media", old.Media, new.Media},
		{"content", old.Content, new.Content},
		{"sessions", old.Sessions, new.Sessions},
		{"avatar", old.Avatar, new.Avatar},
	}
	for _, s := range sections {
		if !reflect.DeepEqual(s.old, s.new) {
			d.RestartRequired = append(d.RestartRequired, s.name)
		}
	}
	return d
}
