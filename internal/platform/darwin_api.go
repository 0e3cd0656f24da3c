//go:build darwin

package platform

// DarwinAPI implements ProbeAPI for macOS
type DarwinAPI struct{}

// NewDarwinAPI creates a new macOS API instance
func NewDarwinAPI() *DarwinAPI {
	return &DarwinAPI{}
}

// NewProbeAPI creates a new ProbeAPI instance for macOS
func NewProbeAPI() ProbeAPI {
	return NewDarwinAPI()
}

// GetForegroundInfo returns the focused application on macOS.
func (d *DarwinAPI) GetForegroundInfo() *ForegroundInfo {
	// TODO: implement via NSWorkspace.frontmostApplication once a cgo
	// bridge is in place; observations currently come from the browser
	// extension on this platform.
	return nil
}

// GetIdleSeconds returns seconds since the last user input on macOS.
func (d *DarwinAPI) GetIdleSeconds() float64 {
	// TODO: CGEventSourceSecondsSinceLastEventType
	return 0
}
