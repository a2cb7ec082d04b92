package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// AssessmentChanged is true if any assessment tuning changed. The
	// server rebuilds its assessor from the new config.
	AssessmentChanged bool

	// RestartRequired lists top-level sections that changed but are only
	// read at startup.
	RestartRequired []string
}

// IsZero reports whether nothing changed.
func (d ConfigDiff) IsZero() bool {
	return !d.LogLevelChanged && !d.AssessmentChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if !assessmentEqual(old.Assessment, new.Assessment) {
		d.AssessmentChanged = true
	}

	if old.Server.ListenAddr != new.Server.ListenAddr || !tlsEqual(old.Server.TLS, new.Server.TLS) {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if !providerEqual(old.Providers.G2P, new.Providers.G2P) || !providerEqual(old.Providers.STT, new.Providers.STT) ||
		!slices.EqualFunc(old.Providers.G2PFallbacks, new.Providers.G2PFallbacks, providerEqual) ||
		!slices.EqualFunc(old.Providers.STTFallbacks, new.Providers.STTFallbacks, providerEqual) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if old.Store != new.Store {
		d.RestartRequired = append(d.RestartRequired, "store")
	}

	return d
}

func assessmentEqual(a, b AssessmentConfig) bool {
	if a.Policy != b.Policy || a.CostModel != b.CostModel || a.CostTable != b.CostTable ||
		a.RulesFile != b.RulesFile || a.AlignMode != b.AlignMode || a.MaxCells != b.MaxCells ||
		a.KeepStress != b.KeepStress || len(a.Lexicons) != len(b.Lexicons) {
		return false
	}
	for i := range a.Lexicons {
		if a.Lexicons[i] != b.Lexicons[i] {
			return false
		}
	}
	return true
}

func tlsEqual(a, b *TLSConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func providerEqual(a, b ProviderEntry) bool {
	if a.Name != b.Name || a.BaseURL != b.BaseURL || a.Model != b.Model || len(a.Options) != len(b.Options) {
		return false
	}
	for k, v := range a.Options {
		w, ok := b.Options[k]
		if !ok || !scalarEqual(v, w) {
			return false
		}
	}
	return true
}

// scalarEqual compares option values. Nested maps and lists compare unequal
// so that any change to them requests a restart.
func scalarEqual(a, b any) bool {
	switch a.(type) {
	case string, bool, int, int64, float64, nil:
		return a == b
	}
	return false
}
