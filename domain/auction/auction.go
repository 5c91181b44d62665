// Package auction holds the value objects materialized from the auction
// manager contract: auctions and their splittable bidding units.
package auction

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	bCtx "github.com/mitakash/pymaker/base/ctx"
	"github.com/mitakash/pymaker/domain"
)

// Manager is the slice of the auction manager binding an auctionlet needs to
// resolve its parent and to act on itself.
type Manager interface {
	GetAuction(ctx bCtx.Ctx, id *big.Int) (*Auction, error)
	IsExpired(ctx bCtx.Ctx, auctionletId *big.Int) (*bool, error)
	Claim(ctx bCtx.Ctx, auctionletId *big.Int) (bool, error)
	Bid(ctx bCtx.Ctx, auctionlet *Auctionlet, howMuch domain.Wad, quantity *domain.Wad) (bool, error)
	IsSplitting() bool
}

// Auction is an immutable snapshot of a forward auction. Snapshots are never
// cached by the binding; every fetch re-queries the contract.
type Auction struct {
	Id          *big.Int
	Creator     domain.Address
	Selling     domain.Address
	Buying      domain.Address
	StartBid    domain.Wad
	MinIncrease uint64
	MinDecrease uint64
	SellAmount  domain.Wad
	Ttl         uint64
	Reversed    bool
	Unsold      bool
}

func (a *Auction) Equals(other *Auction) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.Id.Cmp(other.Id) == 0
}

func (a *Auction) String() string {
	return fmt.Sprintf("Auction(%s)", a.Id)
}

// Auctionlet is the bidding unit of an auction. Non-splitting auctions keep
// a single auctionlet for their whole duration; splitting auctions spawn new
// ones on partial bids.
type Auctionlet struct {
	Id          *big.Int
	AuctionId   *big.Int
	LastBidder  domain.Address
	LastBidTime time.Time
	BuyAmount   domain.Wad
	SellAmount  domain.Wad
	Unclaimed   bool
	Base        bool

	manager Manager

	mu     sync.Mutex
	parent *Auction
}

func NewAuctionlet(manager Manager, id *big.Int) *Auctionlet {
	return &Auctionlet{Id: id, manager: manager}
}

// GetAuction resolves the parent auction on first access and keeps the
// snapshot for the lifetime of this auctionlet. The snapshot is never
// re-validated; fetch the auction directly for a fresh view.
func (a *Auctionlet) GetAuction(ctx bCtx.Ctx) (*Auction, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.parent != nil {
		return a.parent, nil
	}
	parent, err := a.manager.GetAuction(ctx, a.AuctionId)
	if err != nil {
		return nil, err
	}
	a.parent = parent
	return parent, nil
}

// IsExpired reports whether the auctionlet's bid window has passed. An
// absent result means the auctionlet is gone from the contract (expired and
// already claimed).
func (a *Auctionlet) IsExpired(ctx bCtx.Ctx) (*bool, error) {
	return a.manager.IsExpired(ctx, a.Id)
}

// CanSplit reports whether partial bids are possible on this auctionlet.
func (a *Auctionlet) CanSplit() bool {
	return a.manager.IsSplitting()
}

// Bid places a bid of howMuch buying tokens. A nil quantity bids on the full
// remaining sell amount; a non-nil quantity places a splitting bid and is
// rejected outright on non-splitting managers.
func (a *Auctionlet) Bid(ctx bCtx.Ctx, howMuch domain.Wad, quantity *domain.Wad) (bool, error) {
	return a.manager.Bid(ctx, a, howMuch, quantity)
}

// Claim collects the proceeds of an expired auctionlet for its winner.
func (a *Auctionlet) Claim(ctx bCtx.Ctx) (bool, error) {
	return a.manager.Claim(ctx, a.Id)
}

func (a *Auctionlet) Equals(other *Auctionlet) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.Id.Cmp(other.Id) == 0
}

func (a *Auctionlet) String() string {
	return fmt.Sprintf("Auctionlet(%s)", a.Id)
}
