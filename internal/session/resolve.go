package session

import "github.com/quickchat/qc/internal/config"

const DefaultSessionName = "main"

// Resolve determines the active session name using precedence:
// 1. flagOverride (--session flag)
// 2. config.toml default_session (or QC_SESSION env)
// 3. "main"
func Resolve(flagOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	cfg := config.LoadOrDefault(ConfigPath())
	if cfg.DefaultSession != "" {
		return cfg.DefaultSession
	}
	return DefaultSessionName
}
