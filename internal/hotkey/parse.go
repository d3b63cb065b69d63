package hotkey

import (
	"strings"

	"golang.design/x/hotkey"

	"github.com/voicedapp/voiced/internal/apperr"
)

var modifierNames = map[string]hotkey.Modifier{
	"ctrl":    hotkey.ModCtrl,
	"control": hotkey.ModCtrl,
	"shift":   hotkey.ModShift,
	"alt":     hotkey.ModOption,
	"option":  hotkey.ModOption,
	"cmd":     hotkey.ModCmd,
	"command": hotkey.ModCmd,
	"super":   hotkey.ModCmd,
	"win":     hotkey.ModCmd,
}

var keyNames = map[string]hotkey.Key{
	"space": hotkey.KeySpace,
	"0":     hotkey.Key0, "1": hotkey.Key1, "2": hotkey.Key2, "3": hotkey.Key3, "4": hotkey.Key4,
	"5": hotkey.Key5, "6": hotkey.Key6, "7": hotkey.Key7, "8": hotkey.Key8, "9": hotkey.Key9,
	"f1": hotkey.KeyF1, "f2": hotkey.KeyF2, "f3": hotkey.KeyF3, "f4": hotkey.KeyF4,
	"f5": hotkey.KeyF5, "f6": hotkey.KeyF6, "f7": hotkey.KeyF7, "f8": hotkey.KeyF8,
	"f9": hotkey.KeyF9, "f10": hotkey.KeyF10, "f11": hotkey.KeyF11, "f12": hotkey.KeyF12,
	"f13": hotkey.KeyF13, "f14": hotkey.KeyF14, "f15": hotkey.KeyF15, "f16": hotkey.KeyF16,
	"f17": hotkey.KeyF17, "f18": hotkey.KeyF18, "f19": hotkey.KeyF19, "f20": hotkey.KeyF20,
	"a": hotkey.KeyA, "b": hotkey.KeyB, "c": hotkey.KeyC, "d": hotkey.KeyD, "e": hotkey.KeyE,
	"f": hotkey.KeyF, "g": hotkey.KeyG, "h": hotkey.KeyH, "i": hotkey.KeyI, "j": hotkey.KeyJ,
	"k": hotkey.KeyK, "l": hotkey.KeyL, "m": hotkey.KeyM, "n": hotkey.KeyN, "o": hotkey.KeyO,
	"p": hotkey.KeyP, "q": hotkey.KeyQ, "r": hotkey.KeyR, "s": hotkey.KeyS, "t": hotkey.KeyT,
	"u": hotkey.KeyU, "v": hotkey.KeyV, "w": hotkey.KeyW, "x": hotkey.KeyX, "y": hotkey.KeyY,
	"z": hotkey.KeyZ,
}

// parse turns a "ctrl+shift+space"-style hotkey string into the modifier
// list and key golang.design/x/hotkey's registration API expects. It
// assumes hotkeyStr has already passed Validate.
func parse(hotkeyStr string) ([]hotkey.Modifier, hotkey.Key, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(hotkeyStr)), "+")
	if len(parts) == 0 {
		return nil, 0, apperr.New(apperr.PermissionDenied, "hotkey string is empty")
	}

	var mods []hotkey.Modifier
	keyPart := strings.TrimSpace(parts[len(parts)-1])
	for _, p := range parts[:len(parts)-1] {
		p = strings.TrimSpace(p)
		mod, ok := modifierNames[p]
		if !ok {
			return nil, 0, apperr.Newf(apperr.PermissionDenied, "unknown modifier %q in hotkey", p)
		}
		mods = append(mods, mod)
	}

	key, ok := keyNames[keyPart]
	if !ok {
		return nil, 0, apperr.Newf(apperr.PermissionDenied, "unknown key %q in hotkey", keyPart)
	}
	return mods, key, nil
}
