package app

// Policy is the configuration port used by the application.
// Implemented by internal/policy.Policy.
type Policy interface {
	SignalFilePath() string
	IsToolEnabled(name string) bool
}
