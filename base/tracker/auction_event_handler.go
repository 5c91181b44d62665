package tracker

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/viney-shih/goroutines"

	baseabi "github.com/mitakash/pymaker/base/abi"
	bCtx "github.com/mitakash/pymaker/base/ctx"
	"github.com/mitakash/pymaker/base/log"
	"github.com/mitakash/pymaker/base/txset"
)

var (
	newAuctionTopic = baseabi.AuctionManagerABI.Events["LogNewAuction"].ID
	bidTopic        = baseabi.AuctionManagerABI.Events["LogBid"].ID
	splitTopic      = baseabi.AuctionManagerABI.Events["LogSplit"].ID
	reversalTopic   = baseabi.AuctionManagerABI.Events["LogAuctionReversal"].ID
)

type (
	NewAuctionCallback      func(bCtx.Ctx, *baseabi.NewAuctionLog)
	BidCallback             func(bCtx.Ctx, *baseabi.BidLog)
	SplitCallback           func(bCtx.Ctx, *baseabi.SplitLog)
	AuctionReversalCallback func(bCtx.Ctx, *baseabi.AuctionReversalLog)
)

type AuctionEventHandlerCfg struct {
	// OwnTxs holds the hashes of transactions this keeper submitted itself.
	// LogNewAuction and LogBid from those transactions are suppressed;
	// LogSplit and LogAuctionReversal always go through, since a splitting
	// bid affects auctionlets the keeper does not control.
	OwnTxs *txset.Set
	// Workers bounds the callback pool. Defaults to 8.
	Workers int
}

// AuctionEventHandler fans auction manager logs out to subscribed callbacks.
// Callbacks run fire-and-forget on a bounded pool, so a slow subscriber
// cannot stall log processing.
type AuctionEventHandler struct {
	ownTxs *txset.Set
	pool   *goroutines.Pool
	topics [][]common.Hash

	mu         sync.RWMutex
	onNew      []NewAuctionCallback
	onBid      []BidCallback
	onSplit    []SplitCallback
	onReversal []AuctionReversalCallback
}

func NewAuctionEventHandler(cfg *AuctionEventHandlerCfg) *AuctionEventHandler {
	ownTxs := cfg.OwnTxs
	if ownTxs == nil {
		ownTxs = txset.New(txset.DefaultCapacity)
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 8
	}
	return &AuctionEventHandler{
		ownTxs: ownTxs,
		pool:   goroutines.NewPool(workers, goroutines.WithTaskQueueLength(1024)),
		topics: [][]common.Hash{
			{newAuctionTopic, bidTopic, splitTopic, reversalTopic},
		},
	}
}

func (h *AuctionEventHandler) OnNewAuction(fn NewAuctionCallback) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onNew = append(h.onNew, fn)
}

func (h *AuctionEventHandler) OnBid(fn BidCallback) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onBid = append(h.onBid, fn)
}

func (h *AuctionEventHandler) OnSplit(fn SplitCallback) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onSplit = append(h.onSplit, fn)
}

func (h *AuctionEventHandler) OnAuctionReversal(fn AuctionReversalCallback) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onReversal = append(h.onReversal, fn)
}

func (h *AuctionEventHandler) GetFilterTopics() [][]common.Hash {
	return h.topics
}

func (h *AuctionEventHandler) ProcessEvents(ctx bCtx.Ctx, logs []types.Log) error {
	for i := range logs {
		l := logs[i]
		if len(l.Topics) == 0 {
			continue
		}
		switch l.Topics[0] {
		case newAuctionTopic:
			if h.isOwnTx(ctx, &l) {
				continue
			}
			parsed, err := baseabi.ToNewAuctionLog(&l)
			if err != nil {
				ctx.WithField("err", err).Error("ToNewAuctionLog failed")
				return err
			}
			h.mu.RLock()
			for _, fn := range h.onNew {
				h.dispatchNewAuction(ctx, fn, parsed)
			}
			h.mu.RUnlock()
		case bidTopic:
			if h.isOwnTx(ctx, &l) {
				continue
			}
			parsed, err := baseabi.ToBidLog(&l)
			if err != nil {
				ctx.WithField("err", err).Error("ToBidLog failed")
				return err
			}
			h.mu.RLock()
			for _, fn := range h.onBid {
				h.dispatchBid(ctx, fn, parsed)
			}
			h.mu.RUnlock()
		case splitTopic:
			parsed, err := baseabi.ToSplitLog(&l)
			if err != nil {
				ctx.WithField("err", err).Error("ToSplitLog failed")
				return err
			}
			h.mu.RLock()
			for _, fn := range h.onSplit {
				h.dispatchSplit(ctx, fn, parsed)
			}
			h.mu.RUnlock()
		case reversalTopic:
			parsed, err := baseabi.ToAuctionReversalLog(&l)
			if err != nil {
				ctx.WithField("err", err).Error("ToAuctionReversalLog failed")
				return err
			}
			h.mu.RLock()
			for _, fn := range h.onReversal {
				h.dispatchReversal(ctx, fn, parsed)
			}
			h.mu.RUnlock()
		default:
			ctx.WithField("topic", l.Topics[0].Hex()).Warn("unknown topic, skipping")
		}
	}
	return nil
}

// Close drains the callback pool. Pending callbacks still run.
func (h *AuctionEventHandler) Close() {
	h.pool.Release()
}

func (h *AuctionEventHandler) isOwnTx(ctx bCtx.Ctx, l *types.Log) bool {
	if !h.ownTxs.Contains(l.TxHash) {
		return false
	}
	ctx.WithFields(log.Fields{
		"txHash": l.TxHash.Hex(),
	}).Debug("suppressing own transaction event")
	return true
}

func (h *AuctionEventHandler) dispatchNewAuction(ctx bCtx.Ctx, fn NewAuctionCallback, l *baseabi.NewAuctionLog) {
	h.pool.Schedule(func() {
		fn(ctx, l)
	})
}

func (h *AuctionEventHandler) dispatchBid(ctx bCtx.Ctx, fn BidCallback, l *baseabi.BidLog) {
	h.pool.Schedule(func() {
		fn(ctx, l)
	})
}

func (h *AuctionEventHandler) dispatchSplit(ctx bCtx.Ctx, fn SplitCallback, l *baseabi.SplitLog) {
	h.pool.Schedule(func() {
		fn(ctx, l)
	})
}

func (h *AuctionEventHandler) dispatchReversal(ctx bCtx.Ctx, fn AuctionReversalCallback, l *baseabi.AuctionReversalLog) {
	h.pool.Schedule(func() {
		fn(ctx, l)
	})
}
