//go:build linux

package platform

// LinuxAPI implements ProbeAPI for Linux
type LinuxAPI struct{}

// NewLinuxAPI creates a new Linux API instance
func NewLinuxAPI() *LinuxAPI {
	return &LinuxAPI{}
}

// NewProbeAPI creates a new ProbeAPI instance for Linux
func NewProbeAPI() ProbeAPI {
	return NewLinuxAPI()
}

// GetForegroundInfo returns the focused application on Linux.
func (l *LinuxAPI) GetForegroundInfo() *ForegroundInfo {
	// TODO: X11 _NET_ACTIVE_WINDOW / wlr-foreign-toplevel-management;
	// observations currently come from the browser extension on this
	// platform.
	return nil
}

// GetIdleSeconds returns seconds since the last user input on Linux.
func (l *LinuxAPI) GetIdleSeconds() float64 {
	// TODO: XScreenSaverQueryInfo on X11
	return 0
}
