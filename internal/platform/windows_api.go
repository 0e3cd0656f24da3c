//go:build windows

package platform

import (
	"path/filepath"
	"strings"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                       = windows.NewLazySystemDLL("user32.dll")
	kernel32                     = windows.NewLazySystemDLL("kernel32.dll")
	psapi                        = windows.NewLazySystemDLL("psapi.dll")
	procGetForegroundWindow      = user32.NewProc("GetForegroundWindow")
	procGetWindowThreadProcessId = user32.NewProc("GetWindowThreadProcessId")
	procGetWindowTextW           = user32.NewProc("GetWindowTextW")
	procGetLastInputInfo         = user32.NewProc("GetLastInputInfo")
	procOpenProcess              = kernel32.NewProc("OpenProcess")
	procCloseHandle              = kernel32.NewProc("CloseHandle")
	procGetTickCount             = kernel32.NewProc("GetTickCount")
	procGetModuleFileNameExW     = psapi.NewProc("GetModuleFileNameExW")
)

// LASTINPUTINFO mirrors the win32 struct used by GetLastInputInfo.
type LASTINPUTINFO struct {
	cbSize uint32
	dwTime uint32
}

// WindowsAPI implements ProbeAPI for Windows
type WindowsAPI struct{}

// NewWindowsAPI creates a new Windows API instance
func NewWindowsAPI() *WindowsAPI {
	return &WindowsAPI{}
}

// NewProbeAPI creates a new ProbeAPI instance for Windows
func NewProbeAPI() ProbeAPI {
	return NewWindowsAPI()
}

// GetForegroundInfo returns the focused application on Windows.
func (w *WindowsAPI) GetForegroundInfo() *ForegroundInfo {
	hwnd, _, _ := procGetForegroundWindow.Call()
	if hwnd == 0 {
		return nil
	}

	var processID uint32
	procGetWindowThreadProcessId.Call(hwnd, uintptr(unsafe.Pointer(&processID)))
	if processID == 0 {
		return nil
	}

	// Open process with PROCESS_QUERY_INFORMATION | PROCESS_VM_READ
	hProcess, _, _ := procOpenProcess.Call(0x0400|0x0010, 0, uintptr(processID))
	if hProcess == 0 {
		return nil
	}
	defer procCloseHandle.Call(hProcess)

	var buffer [windows.MAX_PATH]uint16
	ret, _, _ := procGetModuleFileNameExW.Call(hProcess, 0, uintptr(unsafe.Pointer(&buffer[0])), windows.MAX_PATH)
	if ret == 0 {
		return nil
	}

	exePath := windows.UTF16ToString(buffer[:])
	if exePath == "" {
		return nil
	}

	filename := filepath.Base(exePath)
	name := strings.TrimSuffix(filename, filepath.Ext(filename))

	return &ForegroundInfo{
		AppName:     name,
		ProcessID:   int(processID),
		ExePath:     exePath,
		WindowTitle: w.windowTitle(hwnd),
	}
}

// GetIdleSeconds returns seconds since the last keyboard/mouse input,
// derived from GetLastInputInfo against the current tick count.
func (w *WindowsAPI) GetIdleSeconds() float64 {
	var info LASTINPUTINFO
	info.cbSize = uint32(unsafe.Sizeof(info))

	ret, _, _ := procGetLastInputInfo.Call(uintptr(unsafe.Pointer(&info)))
	if ret == 0 {
		return 0
	}

	ticks, _, _ := procGetTickCount.Call()

	// GetTickCount wraps at ~49.7 days; uint32 subtraction handles the
	// wraparound correctly.
	elapsed := uint32(ticks) - info.dwTime
	return float64(elapsed) / 1000.0
}

// windowTitle reads the foreground window's title text.
func (w *WindowsAPI) windowTitle(hwnd uintptr) string {
	var title [512]uint16
	ret, _, _ := procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&title[0])), uintptr(len(title)))
	if ret == 0 {
		return ""
	}
	return syscall.UTF16ToString(title[:ret])
}
