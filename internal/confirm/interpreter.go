// Package confirm interprets operator replies to a confirmation prompt.
// Consent must be explicit: anything that is not a clear yes or a clear
// no comes back Ambiguous so the caller can re-prompt instead of
// guessing. Timeouts are handled by the caller and count as negative.
package confirm

import "strings"

type Decision int

const (
	Ambiguous Decision = iota
	Affirmative
	Negative
)

func (d Decision) String() string {
	switch d {
	case Affirmative:
		return "affirmative"
	case Negative:
		return "negative"
	default:
		return "ambiguous"
	}
}

var affirmativeReplies = []string{
	"y",
	"yes",
	"yeah",
	"yep",
	"sure",
	"ok",
	"okay",
	"confirm",
	"confirmed",
	"proceed",
	"go ahead",
	"do it",
	"affirmative",
	"looks good",
	"lgtm",
}

var negativeReplies = []string{
	"n",
	"no",
	"nope",
	"nah",
	"cancel",
	"abort",
	"stop",
	"negative",
	"don't",
	"do not",
	"decline",
	"never mind",
	"nevermind",
}

type Interpreter struct{}

func NewInterpreter() *Interpreter {
	return &Interpreter{}
}

// Interpret classifies one reply. Matching is against the whole
// normalized reply first, then against its leading word so that
// "yes, launch it" and "no, wrong size" resolve without the tail
// having to match. A reply phrased as a question is never consent.
func (i *Interpreter) Interpret(reply string) Decision {
	norm := normalize(reply)
	if norm == "" {
		return Ambiguous
	}
	if strings.HasSuffix(norm, "?") {
		return Ambiguous
	}

	for _, phrase := range negativeReplies {
		if norm == phrase {
			return Negative
		}
	}
	for _, phrase := range affirmativeReplies {
		if norm == phrase {
			return Affirmative
		}
	}

	head := leadingWord(norm)
	switch head {
	case "y", "yes", "yeah", "yep":
		return Affirmative
	case "n", "no", "nope", "nah", "cancel", "abort":
		return Negative
	}
	return Ambiguous
}

func normalize(reply string) string {
	norm := strings.ToLower(strings.TrimSpace(reply))
	norm = strings.TrimRight(norm, ".!")
	return strings.TrimSpace(norm)
}

func leadingWord(norm string) string {
	fields := strings.FieldsFunc(norm, func(r rune) bool {
		return r == ' ' || r == ',' || r == ';' || r == ':'
	})
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
