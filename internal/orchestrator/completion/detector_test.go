package completion

import "testing"

func TestDetector_Detect(t *testing.T) {
	d := NewDetector()

	tests := []struct {
		name string
		text string
		want bool
	}{
		{"exact", "The project is complete.", true},
		{"upper case", "TASK IS COMPLETE", true},
		{"wrapped across lines", "I believe the project\n   is\tcomplete now.", true},
		{"deployment", "Everything builds; this is ready for deployment!", true},
		{"no further improvements", "No further improvements needed at this time.", true},
		{"inside file block", "File: STATUS.md\n```\nproject complete\n```\n", true},
		{"negation still counts", "I would not say the project is complete yet.", true},
		{"question still counts", "Is the task complete? No.", true},
		{"unrelated", "I added the login handler and tests.", false},
		{"partial word", "completed the first step", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Detect(tt.text); got != tt.want {
				t.Errorf("Detect(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestDefaultPhrases_AtLeastADozen(t *testing.T) {
	if len(DefaultPhrases) < 12 {
		t.Errorf("got %d default phrases, want at least 12", len(DefaultPhrases))
	}
	for _, p := range DefaultPhrases {
		if Normalize(p) != p {
			t.Errorf("default phrase %q is not normalized", p)
		}
	}
}

func TestDetector_Match(t *testing.T) {
	d := NewDetector("  Ship   It ", "", "task complete")

	phrase, ok := d.Match("OK, ship it.")
	if !ok || phrase != "ship it" {
		t.Errorf("Match = %q, %v; want ship it, true", phrase, ok)
	}

	if got := len(d.Phrases()); got != len(DefaultPhrases)+1 {
		t.Errorf("Phrases() has %d entries; blanks and duplicates should be dropped", got)
	}
}

func TestDetector_Nil(t *testing.T) {
	var d *Detector
	if d.Detect("project is complete") {
		t.Error("nil detector should match nothing")
	}
}

func TestDetector_Pure(t *testing.T) {
	d := NewDetector()
	text := "ready to deploy"
	for i := 0; i < 3; i++ {
		if !d.Detect(text) {
			t.Fatalf("call %d: Detect changed its answer", i)
		}
	}
	if d.Detect("still working") {
		t.Error("a prior match must not influence later calls")
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("  A\n\tB   C "); got != "a b c" {
		t.Errorf("Normalize = %q", got)
	}
}
