// internal/browser/keys.go
package browser

import (
	"runtime"
	"strings"
	"unicode"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp/kb"
)

// Modifier is a bitmask of held modifier keys.
type Modifier int

const (
	ModAlt Modifier = 1 << iota
	ModCtrl
	ModMeta
	ModShift
)

// Key is a single key press, optionally with modifiers held.
type Key struct {
	Value     string
	Modifiers Modifier
}

var (
	KeyEnter     = Key{Value: kb.Enter}
	KeyEscape    = Key{Value: kb.Escape}
	KeyHome      = Key{Value: kb.Home}
	KeyArrowUp   = Key{Value: kb.ArrowUp}
	KeyBackspace = Key{Value: kb.Backspace}
)

// goos is swapped in tests.
var goos = runtime.GOOS

// primaryModifier is Meta on macOS and Control everywhere else.
func primaryModifier() Modifier {
	if goos == "darwin" {
		return ModMeta
	}
	return ModCtrl
}

// Shortcut returns r pressed with the platform's primary modifier
// (the "ControlOrMeta" chord).
func Shortcut(r rune) Key {
	return Key{Value: string(unicode.ToLower(r)), Modifiers: primaryModifier()}
}

// Ctrl returns r pressed with Control on every platform.
func Ctrl(r rune) Key {
	return Key{Value: string(unicode.ToLower(r)), Modifiers: ModCtrl}
}

var keyNames = map[string]string{
	kb.Enter:     "Enter",
	kb.Escape:    "Escape",
	kb.Home:      "Home",
	kb.ArrowUp:   "ArrowUp",
	kb.Backspace: "Backspace",
}

// String renders the key in "Control+J" form for logs.
func (k Key) String() string {
	var parts []string
	if k.Modifiers&ModCtrl != 0 {
		parts = append(parts, "Control")
	}
	if k.Modifiers&ModMeta != 0 {
		parts = append(parts, "Meta")
	}
	if k.Modifiers&ModAlt != 0 {
		parts = append(parts, "Alt")
	}
	if k.Modifiers&ModShift != 0 {
		parts = append(parts, "Shift")
	}
	name, ok := keyNames[k.Value]
	if !ok {
		name = strings.ToUpper(k.Value)
	}
	return strings.Join(append(parts, name), "+")
}

// cdpModifiers maps the bitmask onto the CDP input modifiers.
func (k Key) cdpModifiers() input.Modifier {
	var m input.Modifier
	if k.Modifiers&ModAlt != 0 {
		m |= input.ModifierAlt
	}
	if k.Modifiers&ModCtrl != 0 {
		m |= input.ModifierCtrl
	}
	if k.Modifiers&ModMeta != 0 {
		m |= input.ModifierMeta
	}
	if k.Modifiers&ModShift != 0 {
		m |= input.ModifierShift
	}
	return m
}

// chordEvents builds the raw key down/up pair for a modified letter key.
// A modified chord must not emit a char event, or the letter is typed into the page.
func (k Key) chordEvents() (down, up *input.DispatchKeyEventParams) {
	upper := strings.ToUpper(k.Value)
	code := "Key" + upper
	var vk int64
	if r := []rune(upper); len(r) == 1 {
		vk = int64(r[0])
	}
	mods := k.cdpModifiers()
	down = input.DispatchKeyEvent(input.KeyRawDown).
		WithModifiers(mods).
		WithKey(k.Value).
		WithCode(code).
		WithWindowsVirtualKeyCode(vk)
	up = input.DispatchKeyEvent(input.KeyUp).
		WithModifiers(mods).
		WithKey(k.Value).
		WithCode(code).
		WithWindowsVirtualKeyCode(vk)
	return down, up
}
