package hotkey

import (
	"strconv"
	"strings"

	"github.com/voicedapp/voiced/internal/apperr"
)

// standaloneAllowed lists single keys that are safe to register without a
// modifier because they never appear in normal typing.
var standaloneAllowed = map[string]bool{
	"fn": true, "printscreen": true, "scrolllock": true, "pause": true, "insert": true,
}

// Validate rejects hotkey strings that would swallow normal typing: a bare
// key without a modifier. Function keys F1-F24 and a short list of
// standalone special keys are allowed with no modifier; everything with at
// least one "+"-joined modifier is allowed outright.
func Validate(hotkeyStr string) error {
	lower := strings.ToLower(strings.TrimSpace(hotkeyStr))
	if lower == "" {
		return apperr.New(apperr.PermissionDenied, "hotkey string is empty")
	}

	parts := strings.Split(lower, "+")
	if len(parts) != 1 {
		return nil // modifier present; always allowed
	}
	key := strings.TrimSpace(parts[0])

	if isFunctionKey(key) {
		return nil
	}
	if standaloneAllowed[key] {
		return nil
	}
	if len([]rune(key)) == 1 {
		return apperr.Newf(apperr.PermissionDenied,
			"single key %q is not allowed as a hotkey; add a modifier (ctrl, cmd, alt, shift) or use a function key", strings.ToUpper(key))
	}
	return apperr.Newf(apperr.PermissionDenied,
		"key %q alone is not allowed as a hotkey; add a modifier (ctrl, cmd, alt, shift)", key)
}

// isFunctionKey reports whether key is "f1".."f24".
func isFunctionKey(key string) bool {
	if len(key) < 2 || key[0] != 'f' {
		return false
	}
	n, err := strconv.Atoi(key[1:])
	if err != nil {
		return false
	}
	return n >= 1 && n <= 24
}
