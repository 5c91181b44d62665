package tracker

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/xerrors"

	bCtx "github.com/mitakash/pymaker/base/ctx"
	"github.com/mitakash/pymaker/base/log"
	"github.com/mitakash/pymaker/base/metrics"
	"github.com/mitakash/pymaker/domain"
)

var metOnce sync.Once
var met metrics.Service

// EventHandler receives the contract logs an EventTracker picks up, both
// from the historical replay and from the live subscription.
type EventHandler interface {
	GetFilterTopics() [][]common.Hash
	ProcessEvents(bCtx.Ctx, []types.Log) error
}

const TooManyLogsTimeout = 30 * time.Second

type EventTrackerCfg struct {
	ChainId   int64
	WsClient  domain.EthClientRepo
	RpcClient domain.EthClientRepo

	ContractAddress common.Address
	EventHandl      EventHandler
	ErrorCh         chan<- error

	// LookbackBlocks is replayed through FilterLogs before the live
	// subscription takes over. Zero starts from the current head.
	LookbackBlocks uint64
}

// EventTracker follows a single contract: it replays the recent past in
// chunks, then switches to a websocket subscription. It keeps no persistent
// state; a restarted tracker re-runs the lookback window.
type EventTracker struct {
	chainId         int64
	wsClient        domain.EthClientRepo
	rpcClient       domain.EthClientRepo
	contractAddress common.Address
	eventHandler    EventHandler
	errorCh         chan<- error
	lookbackBlocks  uint64
	filter          ethereum.FilterQuery
	stoppedCh       chan interface{}
}

func NewEventTracker(cfg *EventTrackerCfg) (*EventTracker, error) {
	metOnce.Do(func() {
		met = metrics.New("tracker")
	})
	if cfg.EventHandl == nil {
		return nil, xerrors.New("config error: EventHandl is required")
	}
	return &EventTracker{
		chainId:         cfg.ChainId,
		wsClient:        cfg.WsClient,
		rpcClient:       cfg.RpcClient,
		contractAddress: cfg.ContractAddress,
		eventHandler:    cfg.EventHandl,
		errorCh:         cfg.ErrorCh,
		lookbackBlocks:  cfg.LookbackBlocks,
		filter: ethereum.FilterQuery{
			Addresses: []common.Address{cfg.ContractAddress},
			Topics:    cfg.EventHandl.GetFilterTopics(),
		},
		stoppedCh: make(chan interface{}),
	}, nil
}

func (f *EventTracker) Start(ctx bCtx.Ctx) {
	go func() {
		defer close(f.stoppedCh)
		if err := f.loop(ctx); err != nil {
			f.errorCh <- err
		}
	}()
}

func (f *EventTracker) Wait() {
	<-f.stoppedCh
}

func (f *EventTracker) loop(ctx bCtx.Ctx) error {
	current, err := f.rpcClient.BlockNumber(ctx)
	if err != nil {
		ctx.WithField("err", err).Error("rpcClient.BlockNumber failed")
		return err
	}
	met.BumpAvg("blockchain.lastBlock", float64(current), "chainId", fmt.Sprint(f.chainId))

	ch := make(chan types.Log, 1024)
	// live filters must not carry from/to blocks
	filter := ethereum.FilterQuery{
		Addresses: f.filter.Addresses,
		Topics:    f.filter.Topics,
	}
	sub, err := f.wsClient.SubscribeFilterLogs(ctx, filter, ch)
	if err != nil {
		ctx.WithField("err", err).Error("wsClient.SubscribeFilterLogs failed")
		return err
	}
	defer sub.Unsubscribe()
	ctx.WithField("contract", f.contractAddress.Hex()).Info("subscription")

	// the subscription is already buffering, so logs landing during the
	// replay are not lost, only delivered after it
	if f.lookbackBlocks > 0 {
		start := uint64(0)
		if current > f.lookbackBlocks {
			start = current - f.lookbackBlocks
		}
		if err := f.processBlkRange(ctx, newBlockRange(start, current)); err != nil {
			ctx.WithField("err", err).Error("f.processBlkRange failed")
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-sub.Err():
			ctx.WithField("err", err).Error("sub.Err()")
			return err
		case l := <-ch:
			ctx.WithFields(log.Fields{
				"contract":         f.contractAddress.Hex(),
				"log_block_number": l.BlockNumber,
			}).Info("receive log")
			met.BumpSum("tracker.logs", 1, "chainId", fmt.Sprint(f.chainId))
			if err := f.eventHandler.ProcessEvents(ctx, []types.Log{l}); err != nil {
				ctx.WithField("err", err).Error("eventHandler.ProcessEvents failed")
				return err
			}
		}
	}
}

func (f *EventTracker) processBlkRange(ctx bCtx.Ctx, blkRange *blockRange) error {
	ranges := []*blockRange{blkRange}
	for len(ranges) > 0 {
		idx := len(ranges) - 1
		r := ranges[idx]
		ranges = ranges[:idx]
		f.filter.FromBlock = r.begin
		f.filter.ToBlock = r.end
		tCtx, cancel := bCtx.WithTimeout(ctx, TooManyLogsTimeout)
		logs, err := f.rpcClient.FilterLogs(tCtx, f.filter)
		cancel()
		if err != nil {
			if r.begin.Cmp(r.end) == 0 {
				ctx.WithFields(log.Fields{
					"err":      err,
					"begin":    r.begin.String(),
					"end":      r.end.String(),
					"contract": f.contractAddress.Hex(),
				}).Error("failed to get logs within one block")
				return err
			}
			r1, r2 := r.split()
			ranges = append(ranges, r2, r1)
			ctx.WithFields(log.Fields{
				"contract":      f.contractAddress.Hex(),
				"originalRange": r.String(),
				"range1":        r1.String(),
				"range2":        r2.String(),
			}).Info("splitting blockRange")
			continue
		}
		ctx.WithFields(log.Fields{
			"contract":   f.contractAddress.Hex(),
			"beginBlock": r.begin.String(),
			"endBlock":   r.end.String(),
			"#logs":      len(logs),
		}).Info(fmt.Sprintf("received #%d logs", len(logs)))

		if len(logs) == 0 {
			continue
		}
		met.BumpSum("tracker.logs", float64(len(logs)), "chainId", fmt.Sprint(f.chainId))
		if err := f.eventHandler.ProcessEvents(ctx, logs); err != nil {
			ctx.WithField("err", err).Error("eventHandler.ProcessEvents failed")
			return err
		}
	}
	return nil
}
