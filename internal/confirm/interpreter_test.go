package confirm

import "testing"

func TestInterpret(t *testing.T) {
	tests := []struct {
		reply string
		want  Decision
	}{
		{"yes", Affirmative},
		{"y", Affirmative},
		{"YES", Affirmative},
		{"  Yes.  ", Affirmative},
		{"yep", Affirmative},
		{"ok", Affirmative},
		{"go ahead", Affirmative},
		{"yes, launch it", Affirmative},
		{"yeah do it", Affirmative},
		{"lgtm", Affirmative},

		{"no", Negative},
		{"n", Negative},
		{"No.", Negative},
		{"nope", Negative},
		{"cancel", Negative},
		{"abort", Negative},
		{"stop", Negative},
		{"no, wrong size", Negative},
		{"never mind", Negative},
		{"don't", Negative},

		{"", Ambiguous},
		{"   ", Ambiguous},
		{"maybe", Ambiguous},
		{"what does MinCount mean", Ambiguous},
		{"yes?", Ambiguous},
		{"is that the right AMI?", Ambiguous},
		{"hmm", Ambiguous},
		{"not sure", Ambiguous},
		{"yessir", Ambiguous},
	}

	in := NewInterpreter()
	for _, tt := range tests {
		if got := in.Interpret(tt.reply); got != tt.want {
			t.Errorf("Interpret(%q) = %s, want %s", tt.reply, got, tt.want)
		}
	}
}

func TestDecisionString(t *testing.T) {
	if Affirmative.String() != "affirmative" {
		t.Errorf("Affirmative.String() = %q", Affirmative.String())
	}
	if Negative.String() != "negative" {
		t.Errorf("Negative.String() = %q", Negative.String())
	}
	if Ambiguous.String() != "ambiguous" {
		t.Errorf("Ambiguous.String() = %q", Ambiguous.String())
	}
}
