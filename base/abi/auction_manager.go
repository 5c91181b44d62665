package abi

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/xerrors"
)

// AuctionManagerABI and SplittingAuctionManagerABI differ only in the shape
// of bid: the splitting variant takes a third quantity argument. Both emit
// the same event set.
var (
	AuctionManagerABI          abi.ABI
	SplittingAuctionManagerABI abi.ABI
)

func init() {
	_abi, err := abi.JSON(strings.NewReader(auctionManagerABIJson(`
  {
    "inputs": [
      { "name": "auctionlet_id", "type": "uint256" },
      { "name": "how_much", "type": "uint256" }
    ],
    "name": "bid",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  }`)))
	if err != nil {
		panic("Failed to parse ABI")
	}
	AuctionManagerABI = _abi

	_abi, err = abi.JSON(strings.NewReader(auctionManagerABIJson(`
  {
    "inputs": [
      { "name": "auctionlet_id", "type": "uint256" },
      { "name": "how_much", "type": "uint256" },
      { "name": "quantity", "type": "uint256" }
    ],
    "name": "bid",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  }`)))
	if err != nil {
		panic("Failed to parse ABI")
	}
	SplittingAuctionManagerABI = _abi
}

type NewAuctionLog struct {
	BaseId *big.Int
}

type BidLog struct {
	AuctionletId *big.Int
}

type SplitLog struct {
	BaseId  *big.Int
	NewId   *big.Int
	SplitId *big.Int
}

type AuctionReversalLog struct {
	AuctionId *big.Int
}

// LogNewAuction, LogBid and LogAuctionReversal carry their single id as an
// indexed parameter, so the value lives in topics rather than data.

func ToNewAuctionLog(log *types.Log) (*NewAuctionLog, error) {
	if len(log.Topics) < 2 {
		return nil, xerrors.New("LogNewAuction: missing base_id topic")
	}
	return &NewAuctionLog{BaseId: new(big.Int).SetBytes(log.Topics[1].Bytes())}, nil
}

func ToBidLog(log *types.Log) (*BidLog, error) {
	if len(log.Topics) < 2 {
		return nil, xerrors.New("LogBid: missing auctionlet_id topic")
	}
	return &BidLog{AuctionletId: new(big.Int).SetBytes(log.Topics[1].Bytes())}, nil
}

func ToSplitLog(log *types.Log) (*SplitLog, error) {
	var l SplitLog
	if err := AuctionManagerABI.UnpackIntoInterface(&l, "LogSplit", log.Data); err != nil {
		return nil, err
	}
	return &l, nil
}

func ToAuctionReversalLog(log *types.Log) (*AuctionReversalLog, error) {
	if len(log.Topics) < 2 {
		return nil, xerrors.New("LogAuctionReversal: missing auction_id topic")
	}
	return &AuctionReversalLog{AuctionId: new(big.Int).SetBytes(log.Topics[1].Bytes())}, nil
}

func auctionManagerABIJson(bidEntry string) string {
	return `
[
  {
    "inputs": [ { "name": "auction_id", "type": "uint256" } ],
    "name": "getAuctionInfo",
    "outputs": [
      { "name": "creator", "type": "address" },
      { "name": "selling", "type": "address" },
      { "name": "buying", "type": "address" },
      { "name": "start_bid", "type": "uint256" },
      { "name": "min_increase", "type": "uint256" },
      { "name": "min_decrease", "type": "uint256" },
      { "name": "sell_amount", "type": "uint256" },
      { "name": "ttl", "type": "uint256" },
      { "name": "reversed", "type": "bool" },
      { "name": "unsold", "type": "bool" }
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [ { "name": "auctionlet_id", "type": "uint256" } ],
    "name": "getAuctionletInfo",
    "outputs": [
      { "name": "auction_id", "type": "uint256" },
      { "name": "last_bidder", "type": "address" },
      { "name": "last_bid_time", "type": "uint256" },
      { "name": "buy_amount", "type": "uint256" },
      { "name": "sell_amount", "type": "uint256" },
      { "name": "unclaimed", "type": "bool" },
      { "name": "base", "type": "bool" }
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [ { "name": "auctionlet_id", "type": "uint256" } ],
    "name": "isExpired",
    "outputs": [ { "name": "", "type": "bool" } ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [ { "name": "auctionlet_id", "type": "uint256" } ],
    "name": "claim",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },` + bidEntry + `,
  {
    "anonymous": false,
    "inputs": [
      { "indexed": true, "name": "base_id", "type": "uint256" }
    ],
    "name": "LogNewAuction",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      { "indexed": true, "name": "auctionlet_id", "type": "uint256" }
    ],
    "name": "LogBid",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      { "indexed": false, "name": "base_id", "type": "uint256" },
      { "indexed": false, "name": "new_id", "type": "uint256" },
      { "indexed": false, "name": "split_id", "type": "uint256" }
    ],
    "name": "LogSplit",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      { "indexed": true, "name": "auction_id", "type": "uint256" }
    ],
    "name": "LogAuctionReversal",
    "type": "event"
  }
]
`
}
