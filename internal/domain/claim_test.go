package domain

import "testing"

func TestNormalizeStatement(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Forward P/E uses *expected* earnings!", "forward pe uses expected earnings"},
		{"  multiple   spaces\tand\ttabs  ", "multiple spaces and tabs"},
		{"Déjà-vu counts: 100%", "déjàvu counts 100"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeStatement(tt.in); got != tt.want {
			t.Errorf("NormalizeStatement(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSourceRefHeaderString(t *testing.T) {
	tests := []struct {
		ref  SourceRef
		want string
	}{
		{SourceRef{Label: "Damodaran", Kind: SourceBook, Locator: "p.327"}, "Damodaran (p.327)"},
		{SourceRef{Label: "investopedia.com", Kind: SourceWeb}, "investopedia.com"},
		{SourceRef{Label: "prior synthesis", Kind: SourceMemory, Locator: "ignored"}, "prior synthesis (memory)"},
	}
	for _, tt := range tests {
		if got := tt.ref.HeaderString(); got != tt.want {
			t.Errorf("HeaderString() = %q, want %q", got, tt.want)
		}
	}
}

func TestNewConflictCanonicalOrder(t *testing.T) {
	a := Claim{Statement: "rates rise"}
	b := Claim{Statement: "rates fall"}

	fwd := NewConflict(a, b, "direction")
	rev := NewConflict(b, a, "direction")

	if fwd.Key() != rev.Key() {
		t.Fatal("conflict key must not depend on argument order")
	}
	if fwd.A.Statement != "rates fall" {
		t.Errorf("lower normalized statement must come first, got %q", fwd.A.Statement)
	}
	if got, want := fwd.Render(), "⚠️ rates fall ↔ rates rise"; got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestTrailActiveAndSort(t *testing.T) {
	trail := EvidenceTrail{
		{Statement: "low", Confidence: 0.2, ArrivalSeq: 0},
		{Statement: "high", Confidence: 0.9, ArrivalSeq: 1},
		{Statement: "superseded", Confidence: 0.95, ArrivalSeq: 2, Superseded: true},
		{Statement: "tie later", Confidence: 0.9, ArrivalSeq: 3},
	}

	active := trail.Active(2)
	if len(active) != 2 {
		t.Fatalf("expected 2 active claims, got %d", len(active))
	}
	if active[0].Statement != "high" || active[1].Statement != "tie later" {
		t.Errorf("unexpected order: %q, %q", active[0].Statement, active[1].Statement)
	}

	if got := trail.MaxArrivalSeq(); got != 3 {
		t.Errorf("MaxArrivalSeq() = %d, want 3", got)
	}
	if got := (EvidenceTrail{}).MaxArrivalSeq(); got != -1 {
		t.Errorf("empty MaxArrivalSeq() = %d, want -1", got)
	}
}

func TestStateForScore(t *testing.T) {
	tests := []struct {
		score float64
		want  MasteryState
	}{
		{0, StateUnexplored},
		{0.29, StateUnexplored},
		{0.3, StateAware},
		{0.5, StateCanExplain},
		{0.7, StateCanApply},
		{0.84, StateCanApply},
		{0.85, StateMastered},
		{1, StateMastered},
	}
	for _, tt := range tests {
		if got := StateForScore(tt.score); got != tt.want {
			t.Errorf("StateForScore(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}
