package venue

import (
	"context"
	"fmt"
	"math/big"
	"math/rand"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// SimVenue is an in-process constant-product AMM used by demo mode and
// tests. It quotes x*y=k output without an LP fee; the engine applies the
// configured fee once, exactly as for any venue whose raw quote is
// fee-exclusive.
type SimVenue struct {
	name   string
	feeBps int64

	mu         sync.Mutex
	reserveIn  *uint256.Int // borrow-token reserve
	reserveOut *uint256.Int // intermediate-token reserve
	rng        *rand.Rand
	driftBps   int64
}

// NewSimVenue seeds a pool with the given reserves. driftBps > 0 makes the
// out-reserve wander by up to +-driftBps on every quote, mimicking live
// price movement.
func NewSimVenue(name string, feeBps int64, reserveIn, reserveOut *big.Int, driftBps int64, seed int64) (*SimVenue, error) {
	rin, overflow := uint256.FromBig(reserveIn)
	if overflow || rin.IsZero() {
		return nil, fmt.Errorf("bad in-reserve for %s", name)
	}
	rout, overflow := uint256.FromBig(reserveOut)
	if overflow || rout.IsZero() {
		return nil, fmt.Errorf("bad out-reserve for %s", name)
	}

	return &SimVenue{
		name:       name,
		feeBps:     feeBps,
		reserveIn:  rin,
		reserveOut: rout,
		rng:        rand.New(rand.NewSource(seed)),
		driftBps:   driftBps,
	}, nil
}

func (v *SimVenue) Name() string {
	return v.name
}

func (v *SimVenue) FeeBps() int64 {
	return v.feeBps
}

// Quote applies the constant-product formula out = in*Rout/(Rin+in). The
// path argument is accepted for interface compatibility and ignored; a sim
// venue holds exactly one pair.
func (v *SimVenue) Quote(_ context.Context, amountIn *big.Int, _ []common.Address) (*big.Int, error) {
	in, overflow := uint256.FromBig(amountIn)
	if overflow || in.IsZero() {
		return nil, fmt.Errorf("bad input amount")
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.drift()

	num := new(uint256.Int).Mul(in, v.reserveOut)
	den := new(uint256.Int).Add(v.reserveIn, in)
	out := num.Div(num, den)

	return out.ToBig(), nil
}

// drift nudges the out-reserve by a random amount within +-driftBps.
func (v *SimVenue) drift() {
	if v.driftBps <= 0 {
		return
	}

	delta := v.rng.Int63n(2*v.driftBps+1) - v.driftBps
	if delta == 0 {
		return
	}

	move := new(uint256.Int).Mul(v.reserveOut, uint256.NewInt(uint64(abs(delta))))
	move.Div(move, uint256.NewInt(10_000))
	if delta > 0 {
		v.reserveOut.Add(v.reserveOut, move)
	} else if move.Cmp(v.reserveOut) < 0 {
		v.reserveOut.Sub(v.reserveOut, move)
	}
}

func abs(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}
