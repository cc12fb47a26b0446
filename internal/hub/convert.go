package hub

import "fmt"

// Direction selects a conversion between the two claim tokens.
type Direction int

const (
	BtoA Direction = iota
	AtoB
)

func (d Direction) String() string {
	switch d {
	case BtoA:
		return "B->A"
	case AtoB:
		return "A->B"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Convert dispatches to ConvertBtoA or ConvertAtoB.
func (h *Hub) Convert(dir Direction, amount int64, dryRun bool) (int64, error) {
	switch dir {
	case BtoA:
		return h.ConvertBtoA(amount, dryRun)
	case AtoB:
		return h.ConvertAtoB(amount, dryRun)
	default:
		return 0, fmt.Errorf("convert %s: %w", dir, ErrPrecondition)
	}
}

func (h *Hub) checkConvert(dir Direction, from ExchangePool, amount int64, dryRun bool) error {
	if amount <= 0 {
		return fmt.Errorf("convert %s %d: %w", dir, amount, ErrInvalidAmount)
	}
	if err := h.checkSupplies(); err != nil {
		return fmt.Errorf("convert %s: %w", dir, err)
	}
	// A dry run only prices the notional; it may exceed what is outstanding.
	if !dryRun && amount > from.Issued {
		return fmt.Errorf("convert %s %d of %d: %w", dir, amount, from.Issued, ErrInsufficientSupply)
	}
	return nil
}

// ConvertBtoA redeems amount B tokens for A tokens. The peg-recovery fee is
// charged on the A tokens minted, sized by pool A's deficit. With dryRun the
// minted amount is returned and nothing changes.
func (h *Hub) ConvertBtoA(amount int64, dryRun bool) (int64, error) {
	if err := h.checkConvert(BtoA, h.b, amount, dryRun); err != nil {
		return 0, err
	}

	equiv := int64(h.b.Rate() * float64(amount))
	mintTo := int64(float64(equiv) / h.a.Rate())
	minted := mintTo - h.pegFee(h.a, mintTo, equiv)
	if dryRun {
		return minted, nil
	}

	h.b.Bonded -= equiv
	h.a.Bonded += equiv
	h.b.Issued -= amount
	h.a.Issued += minted
	return minted, nil
}

// ConvertAtoB redeems amount A tokens for B tokens. Here the fee is taken
// from the A tokens offered, before their principal equivalent is computed.
func (h *Hub) ConvertAtoB(amount int64, dryRun bool) (int64, error) {
	if err := h.checkConvert(AtoB, h.a, amount, dryRun); err != nil {
		return 0, err
	}

	amountWithFee := h.inputAfterFee(amount)
	equiv := int64(h.a.Rate() * float64(amountWithFee))
	mintTo := int64(float64(equiv) / h.b.Rate())
	if dryRun {
		return mintTo, nil
	}

	h.a.Bonded -= equiv
	h.b.Bonded += equiv
	h.a.Issued -= amountWithFee
	h.b.Issued += mintTo
	return mintTo, nil
}

func (h *Hub) inputAfterFee(amount int64) int64 {
	if h.a.Rate() >= h.params.PegThreshold {
		return amount
	}
	maxFee := int64(float64(amount) * h.params.RecoveryFeeRate)
	requiredFee := h.a.Issued - h.a.Bonded
	return amount - min(maxFee, requiredFee)
}

// ReverseConvertAtoB answers the inverse A->B question: how many A tokens
// must be offered so that netA survive the peg-recovery fee, and how many B
// tokens that yields. It never mutates state.
func (h *Hub) ReverseConvertAtoB(netA int64) (grossA, mintB int64, err error) {
	if netA <= 0 {
		return 0, 0, fmt.Errorf("reverse convert %s %d: %w", AtoB, netA, ErrInvalidAmount)
	}
	if err := h.checkSupplies(); err != nil {
		return 0, 0, fmt.Errorf("reverse convert %s: %w", AtoB, err)
	}

	grossA = netA
	if h.a.Rate() < h.params.PegThreshold {
		keep := 1 - h.params.RecoveryFeeRate
		if keep <= 0 {
			return 0, 0, fmt.Errorf("reverse convert %s with a %.0f%% fee: %w", AtoB, h.params.RecoveryFeeRate*100, ErrPrecondition)
		}
		requiredFee := h.a.Issued - h.a.Bonded
		grossA = int64(float64(netA) / keep)
		// The fee never exceeds the pool's deficit.
		if requiredFee < grossA-netA {
			grossA = netA + requiredFee
		}
	}

	equiv := int64(float64(netA) * h.a.Rate())
	mintB = int64(float64(equiv) / h.b.Rate())
	return grossA, mintB, nil
}
