package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PegSentinel/internal/model"
)

func newHub(t *testing.T, mutate func(*Params)) *Hub {
	t.Helper()
	p := DefaultParams()
	if mutate != nil {
		mutate(&p)
	}
	h, err := New(p)
	require.NoError(t, err)
	return h
}

// A below peg at exactly 0.5 keeps the float arithmetic exact.
func depeggedA(p *Params) {
	p.InitialA = ExchangePool{Bonded: 500_000, Issued: 1_000_000}
}

func TestRate_EmptyPoolIsOne(t *testing.T) {
	assert.Equal(t, 1.0, ExchangePool{}.Rate())
	assert.Equal(t, 1.0, ExchangePool{Bonded: 0, Issued: 5_000}.Rate())
	assert.Equal(t, 1.5, ExchangePool{Bonded: 1_500_000, Issued: 1_000_000}.Rate())
}

func TestNew_RejectsBadParams(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"fee above one", func(p *Params) { p.RecoveryFeeRate = 1.5 }},
		{"negative fee", func(p *Params) { p.RecoveryFeeRate = -0.1 }},
		{"zero threshold", func(p *Params) { p.PegThreshold = 0 }},
		{"negative reward", func(p *Params) { p.RewardRatePerBlock = -1 }},
		{"negative pool", func(p *Params) { p.InitialB = ExchangePool{Bonded: -1, Issued: 1} }},
		{"bonded without supply", func(p *Params) { p.InitialA = ExchangePool{Bonded: 10, Issued: 0} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			_, err := New(p)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrPrecondition)
		})
	}
}

func TestBond_AtPegMintsOneToOne(t *testing.T) {
	h := newHub(t, nil)

	minted, err := h.Bond(SideA, 1_000_000)
	require.NoError(t, err)
	assert.EqualValues(t, 1_000_000, minted)
	assert.Equal(t, ExchangePool{Bonded: 2_000_000, Issued: 2_000_000}, h.PoolA())
}

func TestBond_AbovePegHasNoFee(t *testing.T) {
	h := newHub(t, nil)
	before := h.PoolB()

	minted, err := h.Bond(SideB, 3_000_000)
	require.NoError(t, err)
	assert.EqualValues(t, 2_000_000, minted) // 3_000_000 / 1.5
	assert.Equal(t, before.Bonded+3_000_000, h.PoolB().Bonded)
	assert.Equal(t, before.Issued+minted, h.PoolB().Issued)
}

func TestBond_BelowPegChargesCappedFee(t *testing.T) {
	h := newHub(t, depeggedA)

	minted, err := h.Bond(SideA, 100_000)
	require.NoError(t, err)
	// mint 200_000, max fee 10_000, required fee 600_000
	assert.EqualValues(t, 190_000, minted)
	assert.Equal(t, ExchangePool{Bonded: 600_000, Issued: 1_190_000}, h.PoolA())
}

func TestBond_NegativeRequiredFeeMintsBonus(t *testing.T) {
	h := newHub(t, func(p *Params) {
		p.PegThreshold = 2.0
		p.InitialA = ExchangePool{Bonded: 1_500_000, Issued: 1_000_000}
	})

	minted, err := h.Bond(SideA, 300_000)
	require.NoError(t, err)
	// mint 200_000, required fee (1_200_000 - 1_800_000) = -600_000 wins the min
	assert.EqualValues(t, 800_000, minted)
	assert.Equal(t, ExchangePool{Bonded: 1_800_000, Issued: 1_800_000}, h.PoolA())
}

func TestBond_RejectsNonPositiveAmount(t *testing.T) {
	h := newHub(t, nil)
	before := h.Snapshot()

	for _, amount := range []int64{0, -5} {
		_, err := h.Bond(SideA, amount)
		assert.ErrorIs(t, err, ErrInvalidAmount)
		assert.ErrorIs(t, err, ErrPrecondition)
	}
	assert.Equal(t, before, h.Snapshot())
}

func TestBond_MonotonicBonded(t *testing.T) {
	h := newHub(t, depeggedA)
	for _, amount := range []int64{1, 7, 1_000, 123_456, 9_999_999} {
		for _, side := range []Side{SideA, SideB} {
			before := h.Pool(side).Bonded
			_, err := h.Bond(side, amount)
			require.NoError(t, err)
			assert.Equal(t, before+amount, h.Pool(side).Bonded)
		}
	}
}

func TestSlash_ReferenceScenario(t *testing.T) {
	h := newHub(t, nil)
	amount := h.TotalBonded() / 1000

	require.NoError(t, h.Slash(amount))
	assert.EqualValues(t, 2_500, amount)
	assert.EqualValues(t, 999_000, h.PoolA().Bonded)
	assert.EqualValues(t, 1_498_500, h.PoolB().Bonded)
	assert.EqualValues(t, 1_000_000, h.PoolA().Issued)
	assert.EqualValues(t, 1_000_000, h.PoolB().Issued)
}

func TestSlash_ConservesTotal(t *testing.T) {
	for _, amount := range []int64{0, 1, 2_500, 333_333, 1_249_999, 2_500_000} {
		h := newHub(t, nil)
		total := h.TotalBonded()
		require.NoError(t, h.Slash(amount))
		assert.Equal(t, total-amount, h.PoolA().Bonded+h.PoolB().Bonded, "amount %d", amount)
		assert.GreaterOrEqual(t, h.PoolA().Bonded, int64(0))
		assert.GreaterOrEqual(t, h.PoolB().Bonded, int64(0))
	}
}

func TestSlash_RejectsOutOfRange(t *testing.T) {
	h := newHub(t, nil)
	before := h.Snapshot()

	assert.ErrorIs(t, h.Slash(-1), ErrInvalidSlash)
	assert.ErrorIs(t, h.Slash(h.TotalBonded()+1), ErrInvalidSlash)
	assert.Equal(t, before, h.Snapshot())
}

func TestAccrueRewards(t *testing.T) {
	h := newHub(t, func(p *Params) { p.RewardRatePerBlock = 0.001 })
	block := model.Block{Number: 10, Time: 105}

	rewards, err := h.AccrueRewards(block)
	require.NoError(t, err)
	assert.EqualValues(t, 15_000, rewards)
	assert.EqualValues(t, 1_515_000, h.PoolB().Bonded)
	assert.EqualValues(t, 1_000_000, h.PoolA().Bonded)
	assert.Equal(t, block, h.LastRewardBlock())

	_, err = h.AccrueRewards(model.Block{Number: 5, Time: 200})
	assert.ErrorIs(t, err, ErrRewardOrder)
	assert.Equal(t, block, h.LastRewardBlock())
}

func TestAccrueRewards_DefaultRateTruncatesSmallPools(t *testing.T) {
	h := newHub(t, nil)
	rewards, err := h.AccrueRewards(model.Block{Number: 10, Time: 100})
	require.NoError(t, err)
	assert.Zero(t, rewards)
	assert.EqualValues(t, 1_500_000, h.PoolB().Bonded)
}

func TestConvertBtoA(t *testing.T) {
	h := newHub(t, nil)

	minted, err := h.ConvertBtoA(5_000, false)
	require.NoError(t, err)
	assert.EqualValues(t, 7_500, minted)
	assert.Equal(t, ExchangePool{Bonded: 1_007_500, Issued: 1_007_500}, h.PoolA())
	assert.Equal(t, ExchangePool{Bonded: 1_492_500, Issued: 995_000}, h.PoolB())
}

func TestConvertBtoA_BelowPegFeeOnOutput(t *testing.T) {
	h := newHub(t, depeggedA)

	minted, err := h.ConvertBtoA(10_000, false)
	require.NoError(t, err)
	// equiv 15_000, mint 30_000, fee min(1_500, 515_000)
	assert.EqualValues(t, 28_500, minted)
	assert.Equal(t, ExchangePool{Bonded: 515_000, Issued: 1_028_500}, h.PoolA())
	assert.Equal(t, ExchangePool{Bonded: 1_485_000, Issued: 990_000}, h.PoolB())
}

func TestConvertAtoB(t *testing.T) {
	h := newHub(t, nil)

	minted, err := h.ConvertAtoB(5_000, false)
	require.NoError(t, err)
	assert.EqualValues(t, 3_333, minted)
	assert.Equal(t, ExchangePool{Bonded: 995_000, Issued: 995_000}, h.PoolA())
	assert.Equal(t, ExchangePool{Bonded: 1_505_000, Issued: 1_003_333}, h.PoolB())
}

func TestConvertAtoB_BelowPegFeeOnInput(t *testing.T) {
	h := newHub(t, depeggedA)

	minted, err := h.ConvertAtoB(10_000, false)
	require.NoError(t, err)
	// fee 500 taken from the input, equiv 4_750
	assert.EqualValues(t, 3_166, minted)
	assert.Equal(t, ExchangePool{Bonded: 495_250, Issued: 990_500}, h.PoolA())
	assert.Equal(t, ExchangePool{Bonded: 1_504_750, Issued: 1_003_166}, h.PoolB())
}

func TestConvert_DryRunMatchesExecution(t *testing.T) {
	regimes := map[string]func(*Params){"at peg": nil, "below peg": depeggedA}
	for name, mutate := range regimes {
		t.Run(name, func(t *testing.T) {
			for _, dir := range []Direction{BtoA, AtoB} {
				h := newHub(t, mutate)
				before := h.Snapshot()

				preview, err := h.Convert(dir, 12_345, true)
				require.NoError(t, err)
				assert.Equal(t, before, h.Snapshot(), "dry run mutated state for %s", dir)

				minted, err := h.Convert(dir, 12_345, false)
				require.NoError(t, err)
				assert.Equal(t, preview, minted, dir.String())
			}
		})
	}
}

func TestConvert_PrincipalConserved(t *testing.T) {
	h := newHub(t, depeggedA)
	total := h.TotalBonded()

	_, err := h.ConvertBtoA(50_000, false)
	require.NoError(t, err)
	_, err = h.ConvertAtoB(20_000, false)
	require.NoError(t, err)
	assert.Equal(t, total, h.TotalBonded())
}

func TestConvert_RoundTripNeverGains(t *testing.T) {
	for _, x := range []int64{1, 999, 100_000, 333_333} {
		h := newHub(t, nil)
		gotA, err := h.ConvertBtoA(x, false)
		require.NoError(t, err)
		gotB, err := h.ConvertAtoB(gotA, false)
		require.NoError(t, err)
		assert.LessOrEqual(t, gotB, x, "round trip of %d", x)
	}
}

func TestConvert_Preconditions(t *testing.T) {
	h := newHub(t, nil)
	before := h.Snapshot()

	_, err := h.ConvertBtoA(0, true)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = h.ConvertAtoB(-1, false)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = h.ConvertAtoB(2_000_000, false)
	assert.ErrorIs(t, err, ErrInsufficientSupply)
	_, err = h.Convert(Direction(7), 10, true)
	assert.ErrorIs(t, err, ErrPrecondition)
	assert.Equal(t, before, h.Snapshot())

	// previews may price more than is outstanding
	_, err = h.ConvertAtoB(2_000_000, true)
	assert.NoError(t, err)
}

func TestConvert_EmptySupplyFailsFast(t *testing.T) {
	h := newHub(t, nil)
	h.Restore(State{A: ExchangePool{Bonded: 100, Issued: 0}, B: h.PoolB()})

	_, err := h.ConvertBtoA(10, true)
	assert.ErrorIs(t, err, ErrEmptySupply)
	_, err = h.Bond(SideA, 10)
	assert.ErrorIs(t, err, ErrEmptySupply)
}

func TestReverseConvertAtoB(t *testing.T) {
	h := newHub(t, depeggedA)

	gross, mintB, err := h.ReverseConvertAtoB(9_500)
	require.NoError(t, err)
	assert.EqualValues(t, 10_000, gross)
	assert.EqualValues(t, 3_166, mintB)

	forward, err := h.ConvertAtoB(gross, true)
	require.NoError(t, err)
	assert.Equal(t, forward, mintB)
}

func TestReverseConvertAtoB_FeeCappedByDeficit(t *testing.T) {
	h := newHub(t, func(p *Params) {
		p.InitialA = ExchangePool{Bonded: 999_900, Issued: 1_000_000}
	})

	gross, mintB, err := h.ReverseConvertAtoB(10_000)
	require.NoError(t, err)
	assert.EqualValues(t, 10_100, gross)
	assert.EqualValues(t, 6_666, mintB)

	forward, err := h.ConvertAtoB(gross, true)
	require.NoError(t, err)
	assert.Equal(t, forward, mintB)
}

func TestReverseConvertAtoB_AtPeg(t *testing.T) {
	h := newHub(t, nil)
	gross, mintB, err := h.ReverseConvertAtoB(5_000)
	require.NoError(t, err)
	assert.EqualValues(t, 5_000, gross)
	assert.EqualValues(t, 3_333, mintB)

	_, _, err = h.ReverseConvertAtoB(0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestSideAndDirectionStrings(t *testing.T) {
	assert.Equal(t, "A", SideA.String())
	assert.Equal(t, "B", SideB.String())
	assert.Equal(t, "B->A", BtoA.String())
	assert.Equal(t, "A->B", AtoB.String())
}
