package domain

// Flag is a named boolean toggle with an optional user-facing message
type Flag struct {
	Enabled bool    `json:"enabled"`
	Message *string `json:"message,omitempty"`
}

// FeatureFlagSet maps flag name to its state. It is always stored and replaced as a whole.
type FeatureFlagSet map[string]Flag

// Enabled reports whether the named flag exists and is on
func (s FeatureFlagSet) Enabled(name string) bool {
	f, ok := s[name]
	return ok && f.Enabled
}

// Clone returns a deep copy of the set
func (s FeatureFlagSet) Clone() FeatureFlagSet {
	res := make(FeatureFlagSet, len(s))
	for k, v := range s {
		if v.Message != nil {
			msg := *v.Message
			v.Message = &msg
		}
		res[k] = v
	}
	return res
}

// CachedFlags is the envelope clients keep locally, timestamp is unix milliseconds
type CachedFlags struct {
	Flags     FeatureFlagSet `json:"flags"`
	Timestamp int64          `json:"timestamp"`
}
