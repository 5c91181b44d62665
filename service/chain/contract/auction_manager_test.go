package contract

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	baseabi "github.com/mitakash/pymaker/base/abi"
	bCtx "github.com/mitakash/pymaker/base/ctx"
	"github.com/mitakash/pymaker/domain"
	"github.com/mitakash/pymaker/domain/auction"
)

var (
	managerAddress = common.HexToAddress("0x98a652a3e7486c4a1820f4a4b219ddc9f0e3e7f7")
	creatorAddress = common.HexToAddress("0xDEAdbEEf00000000000000000000000000000000")
	revertErr      = xerrors.New("execution reverted")
	transportErr   = xerrors.New("connection refused")
)

func newTestManager(t *testing.T, client *fakeClient, splitting bool) *AuctionManager {
	t.Helper()
	m, err := NewAuctionManager(bCtx.Background(), &AuctionManagerCfg{
		Client:    client,
		Address:   managerAddress,
		Splitting: splitting,
	})
	require.NoError(t, err)
	return m
}

func auctionInfoResult() []interface{} {
	return []interface{}{
		creatorAddress,
		common.HexToAddress("0x01"),
		common.HexToAddress("0x02"),
		big.NewInt(1000),
		big.NewInt(20),
		big.NewInt(5),
		big.NewInt(5000),
		big.NewInt(3600),
		true,
		false,
	}
}

func TestGetAuction(t *testing.T) {
	req := require.New(t)

	client := &fakeClient{
		callFn: func(method string, params []interface{}) ([]interface{}, error) {
			req.Equal("getAuctionInfo", method)
			req.Equal(big.NewInt(7), params[0])
			return auctionInfoResult(), nil
		},
	}
	m := newTestManager(t, client, false)

	a, err := m.GetAuction(bCtx.Background(), big.NewInt(7))
	req.NoError(err)
	req.Equal(big.NewInt(7), a.Id)
	req.Equal(domain.Address("0xdeadbeef00000000000000000000000000000000"), a.Creator)
	req.Equal(domain.NewWadFromInt64(1000), a.StartBid)
	req.Equal(uint64(20), a.MinIncrease)
	req.Equal(uint64(5), a.MinDecrease)
	req.Equal(domain.NewWadFromInt64(5000), a.SellAmount)
	req.Equal(uint64(3600), a.Ttl)
	req.True(a.Reversed)
	req.False(a.Unsold)
}

func TestGetAuctionletAbsentOnRevert(t *testing.T) {
	req := require.New(t)

	client := &fakeClient{
		callFn: func(method string, params []interface{}) ([]interface{}, error) {
			return nil, revertErr
		},
	}
	m := newTestManager(t, client, false)

	a, err := m.GetAuctionlet(bCtx.Background(), big.NewInt(1))
	req.NoError(err)
	req.Nil(a)
}

func TestGetAuctionletTransportErrorPassesThrough(t *testing.T) {
	client := &fakeClient{
		callFn: func(method string, params []interface{}) ([]interface{}, error) {
			return nil, transportErr
		},
	}
	m := newTestManager(t, client, false)

	_, err := m.GetAuctionlet(bCtx.Background(), big.NewInt(1))
	require.ErrorIs(t, err, transportErr)
}

func TestGetAuctionletResolvesParentLazily(t *testing.T) {
	req := require.New(t)

	var auctionInfoCalls int
	client := &fakeClient{
		callFn: func(method string, params []interface{}) ([]interface{}, error) {
			switch method {
			case "getAuctionletInfo":
				return []interface{}{
					big.NewInt(7),
					creatorAddress,
					big.NewInt(1500000000),
					big.NewInt(1200),
					big.NewInt(5000),
					true,
					true,
				}, nil
			case "getAuctionInfo":
				auctionInfoCalls++
				return auctionInfoResult(), nil
			}
			return nil, xerrors.Errorf("unexpected call %s", method)
		},
	}
	m := newTestManager(t, client, false)

	a, err := m.GetAuctionlet(bCtx.Background(), big.NewInt(12))
	req.NoError(err)
	req.Equal(big.NewInt(12), a.Id)
	req.Equal(big.NewInt(7), a.AuctionId)
	req.Equal(domain.NewWadFromInt64(1200), a.BuyAmount)
	req.True(a.Unclaimed)
	req.True(a.Base)
	req.Equal(0, auctionInfoCalls)

	parent, err := a.GetAuction(bCtx.Background())
	req.NoError(err)
	req.Equal(big.NewInt(7), parent.Id)

	again, err := a.GetAuction(bCtx.Background())
	req.NoError(err)
	req.True(parent.Equals(again))
	req.Equal(1, auctionInfoCalls)
}

func TestIsExpired(t *testing.T) {
	tests := []struct {
		name    string
		result  []interface{}
		callErr error
		want    *bool
		wantErr error
	}{
		{
			name:   "expired",
			result: []interface{}{true},
			want:   boolPtr(true),
		},
		{
			name:   "live",
			result: []interface{}{false},
			want:   boolPtr(false),
		},
		{
			name:    "gone",
			callErr: revertErr,
			want:    nil,
		},
		{
			name:    "transport failure",
			callErr: transportErr,
			wantErr: transportErr,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{
				callFn: func(method string, params []interface{}) ([]interface{}, error) {
					return tt.result, tt.callErr
				},
			}
			m := newTestManager(t, client, false)

			got, err := m.IsExpired(bCtx.Background(), big.NewInt(1))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBidPartialOnNonSplittingFailsWithoutTransacting(t *testing.T) {
	req := require.New(t)

	client := &fakeClient{}
	m := newTestManager(t, client, false)
	a := auction.NewAuctionlet(m, big.NewInt(3))

	quantity := domain.NewWadFromInt64(100)
	ok, err := m.Bid(bCtx.Background(), a, domain.NewWadFromInt64(500), &quantity)
	req.ErrorIs(err, domain.ErrNonSplittingPartialBid)
	req.False(ok)
	req.Empty(client.transacted)
}

func TestBidSucceedsAndRecordsOwnTx(t *testing.T) {
	req := require.New(t)

	txHash := common.HexToHash("0xabc1")
	client := &fakeClient{
		transactFn: func(method string, params []interface{}) (common.Hash, *types.Receipt, error) {
			req.Equal("bid", method)
			req.Len(params, 2)
			return txHash, &types.Receipt{Logs: []*types.Log{{}}}, nil
		},
	}
	m := newTestManager(t, client, false)
	a := auction.NewAuctionlet(m, big.NewInt(3))

	ok, err := m.Bid(bCtx.Background(), a, domain.NewWadFromInt64(500), nil)
	req.NoError(err)
	req.True(ok)
	req.True(m.OwnTxs().Contains(txHash))
}

func TestSplittingBidPassesQuantity(t *testing.T) {
	req := require.New(t)

	client := &fakeClient{
		transactFn: func(method string, params []interface{}) (common.Hash, *types.Receipt, error) {
			req.Equal("bid", method)
			req.Len(params, 3)
			req.Equal(big.NewInt(100), params[2])
			return common.HexToHash("0xabc2"), &types.Receipt{Logs: []*types.Log{{}}}, nil
		},
	}
	m := newTestManager(t, client, true)
	a := auction.NewAuctionlet(m, big.NewInt(3))
	req.True(a.CanSplit())

	quantity := domain.NewWadFromInt64(100)
	ok, err := a.Bid(bCtx.Background(), domain.NewWadFromInt64(500), &quantity)
	req.NoError(err)
	req.True(ok)
}

func TestSplittingBidWithoutQuantityBidsFullSellAmount(t *testing.T) {
	req := require.New(t)

	client := &fakeClient{
		transactFn: func(method string, params []interface{}) (common.Hash, *types.Receipt, error) {
			req.Equal("bid", method)
			req.Len(params, 3)
			req.Equal(big.NewInt(5000), params[2])
			_, err := baseabi.SplittingAuctionManagerABI.Pack(method, params...)
			req.NoError(err)
			return common.HexToHash("0xabc4"), &types.Receipt{Logs: []*types.Log{{}}}, nil
		},
	}
	m := newTestManager(t, client, true)
	a := auction.NewAuctionlet(m, big.NewInt(3))
	a.SellAmount = domain.NewWadFromInt64(5000)

	ok, err := a.Bid(bCtx.Background(), domain.NewWadFromInt64(500), nil)
	req.NoError(err)
	req.True(ok)
	req.Equal([]string{"bid"}, client.transacted)
}

func TestBidRevertReportsFalse(t *testing.T) {
	req := require.New(t)

	client := &fakeClient{
		transactFn: func(method string, params []interface{}) (common.Hash, *types.Receipt, error) {
			return common.Hash{}, nil, revertErr
		},
	}
	m := newTestManager(t, client, false)
	a := auction.NewAuctionlet(m, big.NewInt(3))

	ok, err := a.Bid(bCtx.Background(), domain.NewWadFromInt64(500), nil)
	req.NoError(err)
	req.False(ok)
}

func TestClaimLoglessReceiptReportsFalse(t *testing.T) {
	req := require.New(t)

	client := &fakeClient{
		transactFn: func(method string, params []interface{}) (common.Hash, *types.Receipt, error) {
			return common.HexToHash("0xabc3"), &types.Receipt{}, nil
		},
	}
	m := newTestManager(t, client, false)

	ok, err := m.Claim(bCtx.Background(), big.NewInt(3))
	req.NoError(err)
	req.False(ok)
	req.True(m.OwnTxs().Contains(common.HexToHash("0xabc3")))
}

func TestClaimTransportErrorPassesThrough(t *testing.T) {
	client := &fakeClient{
		transactFn: func(method string, params []interface{}) (common.Hash, *types.Receipt, error) {
			return common.Hash{}, nil, transportErr
		},
	}
	m := newTestManager(t, client, false)

	ok, err := m.Claim(bCtx.Background(), big.NewInt(3))
	require.ErrorIs(t, err, transportErr)
	require.False(t, ok)
}

func TestDiscoverRecentAuctionlets(t *testing.T) {
	req := require.New(t)

	newAuctionTopic := baseabi.AuctionManagerABI.Events["LogNewAuction"].ID
	splitTopic := baseabi.AuctionManagerABI.Events["LogSplit"].ID

	splitData, err := baseabi.AuctionManagerABI.Events["LogSplit"].Inputs.Pack(
		big.NewInt(5), big.NewInt(6), big.NewInt(7))
	req.NoError(err)

	eth := &fakeEth{
		blockNumber: 1000,
		logs: []types.Log{
			{
				Topics: []common.Hash{newAuctionTopic, common.BigToHash(big.NewInt(1))},
			},
			{
				Topics: []common.Hash{splitTopic},
				Data:   splitData,
			},
		},
	}
	client := &fakeClient{eth: eth}
	m := newTestManager(t, client, false)

	var seen []int64
	err = m.DiscoverRecentAuctionlets(bCtx.Background(), 100, func(id *big.Int) {
		seen = append(seen, id.Int64())
	})
	req.NoError(err)
	req.Equal([]int64{1, 6, 7}, seen)

	req.Equal(big.NewInt(900), eth.lastFilter.FromBlock)
	req.Equal(big.NewInt(1000), eth.lastFilter.ToBlock)
	req.Equal([]common.Address{managerAddress}, eth.lastFilter.Addresses)
	req.Equal([][]common.Hash{{newAuctionTopic, splitTopic}}, eth.lastFilter.Topics)
}

func TestStringNamesSplittingVariant(t *testing.T) {
	client := &fakeClient{}
	assert.Equal(t,
		fmt.Sprintf("AuctionManager('%s')", managerAddress.Hex()),
		newTestManager(t, client, false).String())
	assert.Equal(t,
		fmt.Sprintf("SplittingAuctionManager('%s')", managerAddress.Hex()),
		newTestManager(t, client, true).String())
}

func boolPtr(b bool) *bool {
	return &b
}
