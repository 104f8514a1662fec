package game

type Outcome string

const (
	InProgress Outcome = "IN_PROGRESS"
	Won        Outcome = "WON"
	Lost       Outcome = "LOST"
)

func (o Outcome) Finished() bool {
	return o == Won || o == Lost
}

type KeyPeg string

const (
	Black KeyPeg = "BLACK" // right colour, right position
	White KeyPeg = "WHITE" // right colour, wrong position
)

type Feedback struct {
	Outcome    Outcome `json:"outcome"`
	ExactHits  int     `json:"exactHits"`
	ColourHits int     `json:"colourHits"`
}

// Pegs renders the feedback the way it is shown on a physical board:
// one black peg per exact hit followed by one white peg per colour hit.
func (f Feedback) Pegs() []KeyPeg {
	pegs := make([]KeyPeg, 0, f.ExactHits+f.ColourHits)
	for i := 0; i < f.ExactHits; i++ {
		pegs = append(pegs, Black)
	}
	for i := 0; i < f.ColourHits; i++ {
		pegs = append(pegs, White)
	}
	return pegs
}

// Score compares a guess against the secret. Both codes must have the same
// length; the aggregate checks that before scoring.
func Score(secret, guess Code) (exact, colour int) {
	// exact hits
	used := make([]bool, len(secret))
	for i := range secret {
		if secret[i] == guess[i] {
			exact++
			used[i] = true
		}
	}

	// counts for remaining
	cntS := make(map[Colour]int, len(Colours))
	cntG := make(map[Colour]int, len(Colours))
	for i := range secret {
		if used[i] {
			continue
		}
		cntS[secret[i]]++
		cntG[guess[i]]++
	}

	for c, n := range cntS {
		colour += min(n, cntG[c])
	}
	return exact, colour
}

// Evaluate scores a guess and decides the outcome. lastMove reports whether
// this guess uses up the final move of the game.
func Evaluate(secret, guess Code, lastMove bool) Feedback {
	exact, colour := Score(secret, guess)
	fb := Feedback{Outcome: InProgress, ExactHits: exact, ColourHits: colour}
	switch {
	case exact == len(secret):
		fb.Outcome = Won
	case lastMove:
		fb.Outcome = Lost
	}
	return fb
}
