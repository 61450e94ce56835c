package viewmodel

import (
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"
)

// Palette is the set of background colors used for initials avatars.
var Palette = []string{
	"#FF6B6B",
	"#4ECDC4",
	"#9B59B6",
	"#E74C3C",
	"#3498DB",
	"#1ABC9C",
	"#F39C12",
	"#E67E22",
}

// Avatar is either an image URL or an initials badge on a palette color.
type Avatar struct {
	URL      string `json:"url,omitempty"`
	Initials string `json:"initials,omitempty"`
	Color    string `json:"color,omitempty"`
}

// ResolveAvatar returns the explicit url when set, otherwise initials and a
// color derived from name.
func ResolveAvatar(url *string, name string) Avatar {
	if url != nil && *url != "" {
		return Avatar{URL: *url}
	}
	return Avatar{
		Initials: Initials(name),
		Color:    ColorFor(name),
	}
}

// Initials returns the uppercased first letters of the first two
// space-separated words of name.
func Initials(name string) string {
	var b strings.Builder
	n := 0
	for _, word := range strings.Split(name, " ") {
		if word == "" {
			continue
		}
		r, _ := utf8.DecodeRuneInString(word)
		b.WriteRune(unicode.ToUpper(r))
		if n++; n == 2 {
			break
		}
	}
	return b.String()
}

// ColorFor picks a palette color from the sum of the UTF-16 code units of
// name, so the same name always gets the same color.
func ColorFor(name string) string {
	sum := 0
	for _, u := range utf16.Encode([]rune(name)) {
		sum += int(u)
	}
	return Palette[sum%len(Palette)]
}
