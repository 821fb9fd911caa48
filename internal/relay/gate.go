package relay

// Gate short-circuits the notify pipeline for recipients on the deny-list
// before any resolution or network work happens. The list is injected at
// construction (config-driven) so it can change without touching relay code.
type Gate struct {
	denied map[string]struct{}
}

func NewGate(denylist []string) *Gate {
	denied := make(map[string]struct{}, len(denylist))
	for _, ref := range denylist {
		if ref == "" {
			continue
		}
		denied[ref] = struct{}{}
	}
	return &Gate{denied: denied}
}

// ShouldAttempt is a pure membership test on the literal reference string.
func (gate *Gate) ShouldAttempt(ref string) bool {
	_, listed := gate.denied[ref]
	return !listed
}
