// Package extern defines the boundary interfaces for collaborators that
// live outside this module's control: the OS clipboard, synthetic key
// injection, and frontmost-application detection. Only the clipboard has
// a portable ecosystem implementation; the other two are documented
// interfaces a platform-specific caller supplies.
package extern

import "time"

// Clipboard reads and writes the OS clipboard's text contents.
type Clipboard interface {
	Read() (string, error)
	Write(text string) error
}

// KeyInjector sends a synthetic paste keystroke (platform-native
// Cmd+V/Ctrl+V) to whatever window currently has focus. No dependency in
// the retrieved pack performs this portably; a real implementation is
// platform-specific and supplied by the caller.
type KeyInjector interface {
	SendPaste() error
}

// AppInfo identifies the foreground application at a point in time.
type AppInfo struct {
	Name     string
	BundleID string
}

// FrontmostApp reports the foreground application. Like KeyInjector, a
// real implementation is platform-specific.
type FrontmostApp interface {
	Frontmost() (AppInfo, error)
}

// pasteSettleDelay is the pause between clipboard write and synthetic
// paste, and between paste and clipboard restore, giving the target
// application's input handling time to observe the new clipboard value.
const pasteSettleDelay = 50 * time.Millisecond

// PasteWithPreservation inserts text at the cursor via the clipboard: it reads
// the clipboard's current contents, writes text, sends a paste keystroke,
// then restores the original clipboard contents. The original is restored
// even if the paste keystroke fails, so a transient key-injection failure
// never leaves the user's clipboard silently overwritten.
func PasteWithPreservation(clip Clipboard, keys KeyInjector, text string) error {
	original, err := clip.Read()
	if err != nil {
		original = ""
	}

	if err := clip.Write(text); err != nil {
		return err
	}
	time.Sleep(pasteSettleDelay)

	pasteErr := keys.SendPaste()
	time.Sleep(pasteSettleDelay)

	if restoreErr := clip.Write(original); restoreErr != nil && pasteErr == nil {
		return restoreErr
	}
	return pasteErr
}
