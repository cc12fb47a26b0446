package hub

import "fmt"

// Side identifies one of the two claim-token pools.
type Side int

const (
	SideA Side = iota
	SideB
)

func (s Side) String() string {
	switch s {
	case SideA:
		return "A"
	case SideB:
		return "B"
	default:
		return fmt.Sprintf("side(%d)", int(s))
	}
}

// ExchangePool holds bonded principal and issued claim tokens for one side.
type ExchangePool struct {
	Bonded int64 `json:"bonded"`
	Issued int64 `json:"issued"`
}

// Rate returns bonded/issued, or exactly 1.0 for a pool with no principal.
// Issued must be positive whenever Bonded is; the hub checks that before use.
func (p ExchangePool) Rate() float64 {
	if p.Bonded == 0 {
		return 1.0
	}
	return float64(p.Bonded) / float64(p.Issued)
}

func (p ExchangePool) checkSupply(side Side) error {
	if p.Bonded != 0 && p.Issued <= 0 {
		return fmt.Errorf("pool %s {bonded=%d issued=%d}: %w", side, p.Bonded, p.Issued, ErrEmptySupply)
	}
	return nil
}
