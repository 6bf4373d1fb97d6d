// Package featureflag toggles streaming behaviors at deploy time, e.g.
// silencing tile events for load tests or disabling dormancy sweeps while
// debugging eviction.
package featureflag

// FeatureFlag is a lookup map for features that is enabled or disabled.
type FeatureFlag map[Flag]struct{}

// New returns feature flags initialized from a list of flag names,
// typically straight from configuration.
func New(flags []string) FeatureFlag {
	featureFlag := make(FeatureFlag)
	for _, f := range flags {
		featureFlag[Flag(f)] = struct{}{}
	}
	return featureFlag
}

// IfSet runs `do` if the flag is set.
func (f FeatureFlag) IfSet(flag Flag, do func()) {
	if _, ok := f[flag]; !ok {
		return
	}
	do()
}

// IfNotSet runs `do` if the flag is not set.
func (f FeatureFlag) IfNotSet(flag Flag, do func()) {
	if _, ok := f[flag]; ok {
		return
	}
	do()
}

// IsSet reports whether the flag is set.
func (f FeatureFlag) IsSet(flag Flag) bool {
	_, ok := f[flag]
	return ok
}

// Strings returns the set flags as plain strings, for logging.
func (f FeatureFlag) Strings() []string {
	s := make([]string, 0, len(f))
	for flag := range f {
		s = append(s, string(flag))
	}
	return s
}
