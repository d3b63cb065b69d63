package extern

import "github.com/atotto/clipboard"

// SystemClipboard is a Clipboard backed by the OS clipboard via
// atotto/clipboard, which shells out to the platform's native clipboard
// utility (pbcopy/pbpaste, xclip/xsel, or the Windows clipboard API).
type SystemClipboard struct{}

// NewSystemClipboard constructs a SystemClipboard.
func NewSystemClipboard() *SystemClipboard {
	return &SystemClipboard{}
}

func (SystemClipboard) Read() (string, error) {
	return clipboard.ReadAll()
}

func (SystemClipboard) Write(text string) error {
	return clipboard.WriteAll(text)
}
