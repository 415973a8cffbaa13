package session

// Config holds the tunables for one collaboration session.
type Config struct {
	MaxClients       int
	IdleTimeoutSecs  uint64
	EnablePresence   bool
	EnableCursors    bool
	EnableSelections bool
	SyncIntervalMS   uint64
	MaxOpsPerSync    int
	EventBufferSize  int // per-subscriber channel capacity
}

// DefaultConfig mirrors the Rust source's Default impl for SessionConfig.
func DefaultConfig() Config {
	return Config{
		MaxClients:       100,
		IdleTimeoutSecs:  3600,
		EnablePresence:   true,
		EnableCursors:    true,
		EnableSelections: true,
		SyncIntervalMS:   100,
		MaxOpsPerSync:    1000,
		EventBufferSize:  256,
	}
}
