package marker

import (
	"errors"
	"strings"
)

// Syntax describes how marker tokens are spelled: "<Comment> <name> <Begin>"
// and "<Comment> <name> <End>".
type Syntax struct {
	Comment string
	Begin   string
	End     string
}

// DefaultSyntax returns the "// sync begin" / "// sync end" spelling.
func DefaultSyntax() Syntax {
	return Syntax{
		Comment: "//",
		Begin:   "begin",
		End:     "end",
	}
}

// Validate checks that the syntax can produce unambiguous tokens.
func (s Syntax) Validate() error {
	if strings.TrimSpace(s.Comment) == "" {
		return errors.New("marker syntax: comment leader must not be empty")
	}
	if strings.TrimSpace(s.Begin) == "" || strings.TrimSpace(s.End) == "" {
		return errors.New("marker syntax: begin and end words must not be empty")
	}
	if s.Begin == s.End {
		return errors.New("marker syntax: begin and end words must differ")
	}
	return nil
}

// BeginToken returns the begin token for a mark name.
func (s Syntax) BeginToken(name string) string {
	return s.Comment + " " + name + " " + s.Begin
}

// EndToken returns the end token for a mark name.
func (s Syntax) EndToken(name string) string {
	return s.Comment + " " + name + " " + s.End
}

// EndFor derives the end token of a begin token by swapping the begin word
// for the end word, so "// sync2 begin" pairs with "// sync2 end".
func (s Syntax) EndFor(beginToken string) string {
	return strings.TrimSuffix(beginToken, s.Begin) + s.End
}
