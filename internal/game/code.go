package game

import (
	"math/rand/v2"
	"strings"
)

type Colour string

const (
	Green  Colour = "GREEN"
	Blue   Colour = "BLUE"
	Yellow Colour = "YELLOW"
	Red    Colour = "RED"
	Purple Colour = "PURPLE"
	Orange Colour = "ORANGE"
)

// Colours lists every peg colour in display order.
var Colours = []Colour{Green, Blue, Yellow, Red, Purple, Orange}

func ParseColour(s string) (Colour, bool) {
	c := Colour(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Colours {
		if c == known {
			return c, true
		}
	}
	return "", false
}

// Code is an ordered row of pegs, either the secret or a guess.
type Code []Colour

func NewCode(pegs ...Colour) Code {
	return append(Code(nil), pegs...)
}

// ParseCode converts colour names into a Code. Unknown names are reported all
// at once so the caller can show the whole rejected guess.
func ParseCode(names []string) (Code, error) {
	code := make(Code, 0, len(names))
	bad := false
	for _, n := range names {
		c, ok := ParseColour(n)
		if !ok {
			bad = true
			continue
		}
		code = append(code, c)
	}
	if bad {
		return nil, &InvalidCodeError{Names: append([]string(nil), names...)}
	}
	return code, nil
}

func (c Code) Equal(other Code) bool {
	if len(c) != len(other) {
		return false
	}
	for i := range c {
		if c[i] != other[i] {
			return false
		}
	}
	return true
}

func (c Code) Strings() []string {
	out := make([]string, len(c))
	for i, p := range c {
		out[i] = string(p)
	}
	return out
}

func (c Code) String() string {
	return strings.Join(c.Strings(), ",")
}

// CodeMaker picks the secret for a new game.
type CodeMaker interface {
	MakeCode(length int) Code
}

type CodeMakerFunc func(length int) Code

func (f CodeMakerFunc) MakeCode(length int) Code { return f(length) }

// RandomCodeMaker draws every peg independently, so repeated colours are allowed.
type RandomCodeMaker struct{}

func (RandomCodeMaker) MakeCode(length int) Code {
	code := make(Code, length)
	for i := range code {
		code[i] = Colours[rand.IntN(len(Colours))]
	}
	return code
}

func allowedColours() string {
	names := make([]string, len(Colours))
	for i, c := range Colours {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
