package venue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbscan/flash-searcher/internal/storage"
)

type stubQuoter struct {
	name string
	out  *big.Int
	err  error
}

func (s *stubQuoter) Name() string  { return s.name }
func (s *stubQuoter) FeeBps() int64 { return 25 }
func (s *stubQuoter) Quote(context.Context, *big.Int, []common.Address) (*big.Int, error) {
	return s.out, s.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFetchQuotesDropsFailedVenues(t *testing.T) {
	quoters := []Quoter{
		&stubQuoter{name: "a", out: big.NewInt(100)},
		&stubQuoter{name: "b", err: errors.New("rpc timeout")},
		&stubQuoter{name: "c", out: big.NewInt(300)},
	}

	quotes := FetchQuotes(context.Background(), quoters, big.NewInt(1), nil, discard())

	require.Len(t, quotes, 2)
	assert.Equal(t, "a", quotes[0].Venue)
	assert.Equal(t, big.NewInt(100), quotes[0].AmountOut)
	assert.Equal(t, int64(25), quotes[0].FeeBps)
	assert.Equal(t, "c", quotes[1].Venue)
}

func TestFetchQuotesPreservesOrder(t *testing.T) {
	quoters := make([]Quoter, 0, 5)
	names := []string{"v1", "v2", "v3", "v4", "v5"}
	for i, n := range names {
		quoters = append(quoters, &stubQuoter{name: n, out: big.NewInt(int64(i + 1))})
	}

	quotes := FetchQuotes(context.Background(), quoters, big.NewInt(1), nil, discard())

	require.Len(t, quotes, len(names))
	for i, q := range quotes {
		assert.Equal(t, names[i], q.Venue)
	}
}

func TestFetchQuotesAllFailed(t *testing.T) {
	quoters := []Quoter{
		&stubQuoter{name: "a", err: errors.New("down")},
		&stubQuoter{name: "b", err: errors.New("down")},
	}

	quotes := FetchQuotes(context.Background(), quoters, big.NewInt(1), nil, discard())
	assert.Empty(t, quotes)
}

func TestSimVenueConstantProduct(t *testing.T) {
	v, err := NewSimVenue("sim", 0, big.NewInt(1_000_000), big.NewInt(600_000_000), 0, 1)
	require.NoError(t, err)

	out, err := v.Quote(context.Background(), big.NewInt(1000), nil)
	require.NoError(t, err)
	// floor(1000 * 600_000_000 / 1_001_000)
	assert.Equal(t, big.NewInt(599_400), out)

	// no drift configured: quoting is repeatable
	again, err := v.Quote(context.Background(), big.NewInt(1000), nil)
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestSimVenueDrift(t *testing.T) {
	v, err := NewSimVenue("sim", 0, big.NewInt(1_000_000), big.NewInt(600_000_000), 50, 7)
	require.NoError(t, err)

	first, err := v.Quote(context.Background(), big.NewInt(1000), nil)
	require.NoError(t, err)

	moved := false
	for i := 0; i < 5; i++ {
		out, err := v.Quote(context.Background(), big.NewInt(1000), nil)
		require.NoError(t, err)
		if out.Cmp(first) != 0 {
			moved = true
		}
	}
	assert.True(t, moved, "drifting venue should not quote a flat price")
}

// stubCaller answers symbol/decimals view calls from canned values.
type stubCaller struct {
	abi abi.ABI
}

func (c stubCaller) ChainID() *big.Int { return big.NewInt(56) }

func (c stubCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	method, err := c.abi.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "symbol":
		return method.Outputs.Pack("WBNB")
	case "decimals":
		return method.Outputs.Pack(uint8(18))
	}
	return nil, errors.New("unexpected call")
}

// A cache that can no longer be written to must not fail a resolve: the
// on-chain fetch already succeeded and the cache is only an optimization.
func TestMetaResolverSurvivesBrokenCache(t *testing.T) {
	cache, err := storage.NewTokenCache(filepath.Join(t.TempDir(), "tokens.db"))
	require.NoError(t, err)
	require.NoError(t, cache.Close()) // every Get and Put from here on fails

	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	require.NoError(t, err)

	r, err := NewMetaResolver(stubCaller{abi: parsed}, cache, discard())
	require.NoError(t, err)

	wbnb := common.HexToAddress("0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c")
	meta, err := r.Resolve(context.Background(), wbnb)
	require.NoError(t, err)
	assert.Equal(t, "WBNB", meta.Symbol)
	assert.Equal(t, uint8(18), meta.Decimals)

	// the memo still serves repeat lookups
	again, err := r.Resolve(context.Background(), wbnb)
	require.NoError(t, err)
	assert.Equal(t, meta, again)
}

func TestSimVenueRejectsBadInput(t *testing.T) {
	v, err := NewSimVenue("sim", 0, big.NewInt(1000), big.NewInt(1000), 0, 1)
	require.NoError(t, err)

	_, err = v.Quote(context.Background(), big.NewInt(0), nil)
	assert.Error(t, err)

	_, err = NewSimVenue("empty", 0, big.NewInt(0), big.NewInt(1000), 0, 1)
	assert.Error(t, err)
}
