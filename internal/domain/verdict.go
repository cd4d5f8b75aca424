// Package domain contains pure, dependency-free domain models and types
// for the pairwise ranking engine.
package domain

import "fmt"

// Verdict is the three-way outcome of one pairwise comparison,
// logically a signed value: +1 means the left item ranks above the
// right item, -1 the opposite, 0 a tie.
type Verdict int

// The three possible comparison outcomes.
const (
	RightWins Verdict = -1
	Tie       Verdict = 0
	LeftWins  Verdict = 1
)

// Negate returns the verdict as seen from the opposite side of the pair.
// Negate(LeftWins) == RightWins and Negate(Tie) == Tie.
func (v Verdict) Negate() Verdict { return -v }

// Valid reports whether v is one of the three defined outcomes.
func (v Verdict) Valid() bool { return v >= RightWins && v <= LeftWins }

// String returns the wire representation used by the HTTP API and the
// comparison log: "left", "tie", or "right".
func (v Verdict) String() string {
	switch v {
	case LeftWins:
		return "left"
	case RightWins:
		return "right"
	case Tie:
		return "tie"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// ParseVerdict converts a wire representation back into a Verdict.
func ParseVerdict(s string) (Verdict, error) {
	switch s {
	case "left":
		return LeftWins, nil
	case "right":
		return RightWins, nil
	case "tie":
		return Tie, nil
	default:
		return Tie, fmt.Errorf("%w: %q", ErrInvalidVerdict, s)
	}
}

// Pair identifies the two snippets of one comparison request.
// Left and Right are snippet IDs; order is significant because the
// verdict is signed.
type Pair struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// Reversed returns the pair with its sides swapped.
func (p Pair) Reversed() Pair { return Pair{Left: p.Right, Right: p.Left} }

// Comparison is one resolved pairwise judgment, as forwarded to the
// durable comparison log. Winner is a snippet ID or "tie".
type Comparison struct {
	SnippetA string `json:"snippet_a"`
	SnippetB string `json:"snippet_b"`
	Winner   string `json:"winner"`
	Rater    string `json:"rater"`
}

// NewComparison builds the log entry for a resolved pair.
func NewComparison(p Pair, v Verdict, rater string) Comparison {
	c := Comparison{SnippetA: p.Left, SnippetB: p.Right, Rater: rater, Winner: "tie"}
	switch v {
	case LeftWins:
		c.Winner = p.Left
	case RightWins:
		c.Winner = p.Right
	}
	return c
}

// Rating is one absolute 1-10 judgment of a single snippet, kept for
// the rating mode that coexists with pairwise comparison.
type Rating struct {
	SnippetID string `json:"snippet_id"`
	Rater     string `json:"rater"`
	Rating    int    `json:"rating"`
}

// Ranking is the final ordered sequence of snippet IDs, descending by
// the oracle's notion of abnormality. Produced exactly once per
// completed sort run and immutable thereafter.
type Ranking []string
