package tracker

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	bCtx "github.com/mitakash/pymaker/base/ctx"
	"github.com/mitakash/pymaker/domain"
)

var _ domain.EthClientRepo = (*fakeEthClient)(nil)

// fakeEthClient refuses log queries wider than maxRange, the way providers
// cap oversized filters.
type fakeEthClient struct {
	maxRange uint64
	logs     []types.Log
	queries  int
}

func (f *fakeEthClient) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.queries++
	from := q.FromBlock.Uint64()
	to := q.ToBlock.Uint64()
	if to-from+1 > f.maxRange {
		return nil, xerrors.New("query returned more than 10000 results")
	}
	var out []types.Log
	for _, l := range f.logs {
		if l.BlockNumber >= from && l.BlockNumber <= to {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeEthClient) ChainID(context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (f *fakeEthClient) BlockNumber(context.Context) (uint64, error) {
	return 0, xerrors.New("not implemented")
}

func (f *fakeEthClient) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return nil, xerrors.New("not implemented")
}

func (f *fakeEthClient) SubscribeFilterLogs(context.Context, ethereum.FilterQuery, chan<- types.Log) (ethereum.Subscription, error) {
	return nil, xerrors.New("not implemented")
}

func (f *fakeEthClient) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return nil, xerrors.New("not implemented")
}

func (f *fakeEthClient) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return nil, xerrors.New("not implemented")
}

func (f *fakeEthClient) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 0, xerrors.New("not implemented")
}

func (f *fakeEthClient) SuggestGasPrice(context.Context) (*big.Int, error) {
	return nil, xerrors.New("not implemented")
}

func (f *fakeEthClient) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 0, xerrors.New("not implemented")
}

func (f *fakeEthClient) SendTransaction(context.Context, *types.Transaction) error {
	return xerrors.New("not implemented")
}

func (f *fakeEthClient) TransactionByHash(context.Context, common.Hash) (*types.Transaction, bool, error) {
	return nil, false, xerrors.New("not implemented")
}

func (f *fakeEthClient) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	return nil, ethereum.NotFound
}

type collectHandler struct {
	got []types.Log
}

func (h *collectHandler) GetFilterTopics() [][]common.Hash {
	return [][]common.Hash{{newAuctionTopic}}
}

func (h *collectHandler) ProcessEvents(_ bCtx.Ctx, logs []types.Log) error {
	h.got = append(h.got, logs...)
	return nil
}

func TestNewEventTrackerRequiresHandler(t *testing.T) {
	_, err := NewEventTracker(&EventTrackerCfg{})
	require.Error(t, err)
}

func TestProcessBlkRangeSplitsOversizedQueries(t *testing.T) {
	req := require.New(t)

	client := &fakeEthClient{
		maxRange: 256,
		logs: []types.Log{
			{BlockNumber: 10},
			{BlockNumber: 500},
			{BlockNumber: 900},
		},
	}
	handler := &collectHandler{}
	tracker, err := NewEventTracker(&EventTrackerCfg{
		ChainId:    1,
		RpcClient:  client,
		EventHandl: handler,
	})
	req.NoError(err)

	req.NoError(tracker.processBlkRange(bCtx.Background(), newBlockRange(0, 1000)))
	req.Len(handler.got, 3)
	req.Equal(uint64(10), handler.got[0].BlockNumber)
	req.Equal(uint64(500), handler.got[1].BlockNumber)
	req.Equal(uint64(900), handler.got[2].BlockNumber)
	req.Greater(client.queries, 3)
}

func TestProcessBlkRangeSingleBlockFailureStops(t *testing.T) {
	client := &fakeEthClient{maxRange: 0}
	handler := &collectHandler{}
	tracker, err := NewEventTracker(&EventTrackerCfg{
		ChainId:    1,
		RpcClient:  client,
		EventHandl: handler,
	})
	require.NoError(t, err)

	err = tracker.processBlkRange(bCtx.Background(), newBlockRange(5, 5))
	require.Error(t, err)
}
