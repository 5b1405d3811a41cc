package review

import "testing"

func TestNormalize_Defaults(t *testing.T) {
	opts := ReviewOptions{}
	opts.Normalize()

	want := []FocusArea{FocusContent, FocusTone, FocusFlow}
	if len(opts.FocusAreas) != len(want) {
		t.Fatalf("expected %d default focus areas, got %v", len(want), opts.FocusAreas)
	}
	for i, a := range want {
		if opts.FocusAreas[i] != a {
			t.Errorf("focus area %d: got %s, want %s", i, opts.FocusAreas[i], a)
		}
	}
	if opts.TargetTone != ToneProfessional {
		t.Errorf("default tone should be professional, got %s", opts.TargetTone)
	}
}

func TestNormalize_DropsInvalidAreas(t *testing.T) {
	opts := ReviewOptions{
		FocusAreas: []FocusArea{FocusDesign, FocusArea("grammar"), FocusContent},
		TargetTone: Tone("sassy"),
	}
	opts.Normalize()

	if len(opts.FocusAreas) != 2 || opts.FocusAreas[0] != FocusDesign || opts.FocusAreas[1] != FocusContent {
		t.Errorf("invalid areas should be dropped, valid ones kept in order: %v", opts.FocusAreas)
	}
	if opts.TargetTone != ToneProfessional {
		t.Errorf("unknown tone should fall back to professional, got %s", opts.TargetTone)
	}
}

func TestNormalize_AllInvalidAreasFallsBackToDefaults(t *testing.T) {
	opts := ReviewOptions{FocusAreas: []FocusArea{FocusArea("x"), FocusArea("y")}}
	opts.Normalize()

	if len(opts.FocusAreas) != 3 {
		t.Errorf("all-invalid input should yield the default set, got %v", opts.FocusAreas)
	}
}

func TestIsContinuation(t *testing.T) {
	opts := ReviewOptions{}
	if opts.IsContinuation() {
		t.Error("no prior feedback: not a continuation")
	}
	opts.ExistingFeedback = []FeedbackThread{{TopLevelNoteID: "n1", BlockID: "b1"}}
	if !opts.IsContinuation() {
		t.Error("prior feedback present: should be a continuation")
	}
}
