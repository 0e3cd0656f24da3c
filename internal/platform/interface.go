package platform

// ForegroundInfo describes the currently focused application.
type ForegroundInfo struct {
	AppName     string `json:"appName"`
	ProcessID   int    `json:"processId"`
	ExePath     string `json:"exePath"`
	WindowTitle string `json:"windowTitle"`
}

// ProbeAPI defines the interface for platform-specific foreground and
// idle probing. Implementations must be cheap enough to call at 1 Hz.
type ProbeAPI interface {
	// GetForegroundInfo returns the focused application, or nil when it
	// cannot be determined (locked screen, secure desktop).
	GetForegroundInfo() *ForegroundInfo

	// GetIdleSeconds returns seconds elapsed since the last user input.
	GetIdleSeconds() float64
}
