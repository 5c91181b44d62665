package contract

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	ethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/xerrors"

	baseabi "github.com/mitakash/pymaker/base/abi"
	bCtx "github.com/mitakash/pymaker/base/ctx"
	"github.com/mitakash/pymaker/base/log"
	"github.com/mitakash/pymaker/base/txset"
	"github.com/mitakash/pymaker/domain"
	"github.com/mitakash/pymaker/domain/auction"
	"github.com/mitakash/pymaker/service/chain"
)

type AuctionManagerCfg struct {
	Client  chain.Client
	Address common.Address
	// Splitting selects the splitting contract variant, whose bid call
	// accepts a quantity and may spawn new auctionlets.
	Splitting bool
	// OwnTxs collects the hashes of transactions this binding submits, so
	// event handlers can tell the keeper's own bids from everyone else's.
	// A fresh set is created when nil.
	OwnTxs *txset.Set
}

// AuctionManager binds a token-auction manager contract. It satisfies
// auction.Manager, so auctionlets fetched from it can act on themselves.
type AuctionManager struct {
	client    chain.Client
	address   common.Address
	abi       ethabi.ABI
	splitting bool
	ownTxs    *txset.Set
}

func NewAuctionManager(ctx bCtx.Ctx, cfg *AuctionManagerCfg) (*AuctionManager, error) {
	if err := cfg.Client.EnsureContract(ctx, cfg.Address); err != nil {
		return nil, err
	}
	m := &AuctionManager{
		client:    cfg.Client,
		address:   cfg.Address,
		abi:       baseabi.AuctionManagerABI,
		splitting: cfg.Splitting,
		ownTxs:    cfg.OwnTxs,
	}
	if m.splitting {
		m.abi = baseabi.SplittingAuctionManagerABI
	}
	if m.ownTxs == nil {
		m.ownTxs = txset.New(txset.DefaultCapacity)
	}
	return m, nil
}

func (m *AuctionManager) Address() common.Address {
	return m.address
}

func (m *AuctionManager) IsSplitting() bool {
	return m.splitting
}

// OwnTxs exposes the set of transaction hashes submitted through this
// binding. Share it with the event handler to suppress self-notifications.
func (m *AuctionManager) OwnTxs() *txset.Set {
	return m.ownTxs
}

// GetAuction fetches a fresh snapshot of the auction. The contract never
// deletes auctions, so a revert here signals a genuinely bad id and is
// returned as an error.
func (m *AuctionManager) GetAuction(ctx bCtx.Ctx, id *big.Int) (*auction.Auction, error) {
	unpacked, err := m.client.Call(ctx, m.address, m.abi, "getAuctionInfo", id)
	if err != nil {
		return nil, xerrors.Errorf("auction %s: %w", id, err)
	}
	return &auction.Auction{
		Id:          id,
		Creator:     domain.Address(unpacked[0].(common.Address).Hex()).ToLower(),
		Selling:     domain.Address(unpacked[1].(common.Address).Hex()).ToLower(),
		Buying:      domain.Address(unpacked[2].(common.Address).Hex()).ToLower(),
		StartBid:    domain.NewWad(unpacked[3].(*big.Int)),
		MinIncrease: unpacked[4].(*big.Int).Uint64(),
		MinDecrease: unpacked[5].(*big.Int).Uint64(),
		SellAmount:  domain.NewWad(unpacked[6].(*big.Int)),
		Ttl:         unpacked[7].(*big.Int).Uint64(),
		Reversed:    unpacked[8].(bool),
		Unsold:      unpacked[9].(bool),
	}, nil
}

// GetAuctionlet fetches the auctionlet or reports it absent. The contract
// deletes auctionlets once claimed and reverts on lookups afterwards, so a
// revert maps to (nil, nil) while transport failures stay errors.
func (m *AuctionManager) GetAuctionlet(ctx bCtx.Ctx, id *big.Int) (*auction.Auctionlet, error) {
	unpacked, err := m.client.Call(ctx, m.address, m.abi, "getAuctionletInfo", id)
	if err != nil {
		if chain.IsRevert(err) {
			return nil, nil
		}
		return nil, xerrors.Errorf("auctionlet %s: %w", id, err)
	}
	a := auction.NewAuctionlet(m, id)
	a.AuctionId = unpacked[0].(*big.Int)
	a.LastBidder = domain.Address(unpacked[1].(common.Address).Hex()).ToLower()
	a.LastBidTime = time.Unix(int64(unpacked[2].(*big.Int).Uint64()), 0).UTC()
	a.BuyAmount = domain.NewWad(unpacked[3].(*big.Int))
	a.SellAmount = domain.NewWad(unpacked[4].(*big.Int))
	a.Unclaimed = unpacked[5].(bool)
	a.Base = unpacked[6].(bool)
	return a, nil
}

// IsExpired reports whether the auctionlet's bid window has passed. A nil
// result means the auctionlet is gone from the contract.
func (m *AuctionManager) IsExpired(ctx bCtx.Ctx, auctionletId *big.Int) (*bool, error) {
	unpacked, err := m.client.Call(ctx, m.address, m.abi, "isExpired", auctionletId)
	if err != nil {
		if chain.IsRevert(err) {
			return nil, nil
		}
		return nil, xerrors.Errorf("auctionlet %s: %w", auctionletId, err)
	}
	expired := unpacked[0].(bool)
	return &expired, nil
}

// Claim collects the proceeds of an expired auctionlet. It reports false
// without an error when the contract refuses the claim.
func (m *AuctionManager) Claim(ctx bCtx.Ctx, auctionletId *big.Int) (bool, error) {
	ctx.WithField("auctionletId", auctionletId.String()).Info("claiming auctionlet")
	return m.transactSucceeded(ctx, "claim", auctionletId)
}

// Bid places a bid of howMuch buying tokens on the auctionlet. A nil
// quantity bids on the whole remaining sell amount. A non-nil quantity is a
// splitting bid and fails up front on non-splitting managers, without
// touching the chain.
func (m *AuctionManager) Bid(ctx bCtx.Ctx, auctionlet *auction.Auctionlet, howMuch domain.Wad, quantity *domain.Wad) (bool, error) {
	if quantity != nil && !m.splitting {
		return false, xerrors.Errorf("auctionlet %s: %w", auctionlet.Id, domain.ErrNonSplittingPartialBid)
	}
	ctx.WithFields(log.Fields{
		"auctionletId": auctionlet.Id.String(),
		"howMuch":      howMuch.RawString(),
	}).Info("bidding on auctionlet")
	if quantity != nil {
		return m.transactSucceeded(ctx, "bid", auctionlet.Id, howMuch.Int(), quantity.Int())
	}
	// the splitting contract only has the three-argument bid, so a full bid
	// passes the remaining sell amount as the quantity
	if m.splitting {
		return m.transactSucceeded(ctx, "bid", auctionlet.Id, howMuch.Int(), auctionlet.SellAmount.Int())
	}
	return m.transactSucceeded(ctx, "bid", auctionlet.Id, howMuch.Int())
}

func (m *AuctionManager) transactSucceeded(ctx bCtx.Ctx, method string, params ...interface{}) (bool, error) {
	txHash, receipt, err := m.client.Transact(ctx, m.address, m.abi, method, params...)
	if txHash != (common.Hash{}) {
		m.ownTxs.Add(txHash)
	}
	if err != nil {
		if chain.IsRevert(err) {
			return false, nil
		}
		return false, err
	}
	// the contract has no return values; it logs on success and throws
	// otherwise, so a log-less receipt means the call did nothing
	return receipt != nil && len(receipt.Logs) > 0, nil
}

// DiscoverRecentAuctionlets replays LogNewAuction and LogSplit over the last
// lookbackBlocks blocks and invokes fn for every auctionlet id seen. Ids may
// refer to auctionlets that have since been claimed; callers are expected to
// re-check with GetAuctionlet.
func (m *AuctionManager) DiscoverRecentAuctionlets(ctx bCtx.Ctx, lookbackBlocks uint64, fn func(auctionletId *big.Int)) error {
	head, err := m.client.Eth().BlockNumber(ctx)
	if err != nil {
		ctx.WithField("err", err).Error("eth.BlockNumber failed")
		return err
	}
	from := uint64(0)
	if head > lookbackBlocks {
		from = head - lookbackBlocks
	}

	newAuctionTopic := m.abi.Events["LogNewAuction"].ID
	splitTopic := m.abi.Events["LogSplit"].ID
	logs, err := m.client.Eth().FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(head),
		Addresses: []common.Address{m.address},
		Topics:    [][]common.Hash{{newAuctionTopic, splitTopic}},
	})
	if err != nil {
		ctx.WithField("err", err).Error("eth.FilterLogs failed")
		return err
	}

	for i := range logs {
		l := logs[i]
		switch l.Topics[0] {
		case newAuctionTopic:
			parsed, err := baseabi.ToNewAuctionLog(&l)
			if err != nil {
				ctx.WithField("err", err).Warn("skipping malformed LogNewAuction")
				continue
			}
			fn(parsed.BaseId)
		case splitTopic:
			parsed, err := baseabi.ToSplitLog(&l)
			if err != nil {
				ctx.WithField("err", err).Warn("skipping malformed LogSplit")
				continue
			}
			fn(parsed.NewId)
			fn(parsed.SplitId)
		}
	}
	return nil
}

func (m *AuctionManager) String() string {
	if m.splitting {
		return fmt.Sprintf("SplittingAuctionManager('%s')", m.address.Hex())
	}
	return fmt.Sprintf("AuctionManager('%s')", m.address.Hex())
}
