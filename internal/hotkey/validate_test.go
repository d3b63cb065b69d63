package hotkey

import "testing"

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		hotkey  string
		wantErr bool
	}{
		{"modifier and letter", "ctrl+shift+space", false},
		{"single modifier and key", "cmd+k", false},
		{"function key alone", "F13", false},
		{"function key lowercase", "f1", false},
		{"function key out of range", "f25", true},
		{"standalone allowed fn", "fn", false},
		{"standalone allowed printscreen", "printscreen", false},
		{"bare letter", "a", true},
		{"bare digit", "5", true},
		{"bare space", "space", true},
		{"bare return", "return", true},
		{"bare arrow", "up", true},
		{"empty string", "", true},
		{"whitespace only", "   ", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.hotkey)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%q) error = %v, wantErr %v", tt.hotkey, err, tt.wantErr)
			}
		})
	}
}
