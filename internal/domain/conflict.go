package domain

// Conflict is an unordered pair of claims whose assertions are mutually
// incompatible. The pair is stored in canonical order (lower normalized
// statement first) so that {A,B} and {B,A} are the same conflict.
type Conflict struct {
	A      Claim  `json:"a"`
	B      Claim  `json:"b"`
	Reason string `json:"reason"`
}

// NewConflict builds a conflict with the claims in canonical order.
func NewConflict(a, b Claim, reason string) Conflict {
	if a.Normalized() > b.Normalized() {
		a, b = b, a
	}
	return Conflict{A: a, B: b, Reason: reason}
}

// Key identifies the conflict independently of claim order.
func (c Conflict) Key() string {
	return c.A.Normalized() + "\x00" + c.B.Normalized()
}

// Render produces the persisted conflict line body, both claim texts
// retained verbatim.
func (c Conflict) Render() string {
	return "⚠️ " + c.A.Statement + " ↔ " + c.B.Statement
}
