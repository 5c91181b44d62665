package contract

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	baseabi "github.com/mitakash/pymaker/base/abi"
	bCtx "github.com/mitakash/pymaker/base/ctx"
	"github.com/mitakash/pymaker/domain"
	"github.com/mitakash/pymaker/service/chain"
)

type Erc20 struct {
	client  chain.Client
	address common.Address
}

func NewErc20(client chain.Client, address common.Address) *Erc20 {
	return &Erc20{
		client:  client,
		address: address,
	}
}

func (e *Erc20) Address() common.Address {
	return e.address
}

func (e *Erc20) BalanceOf(ctx bCtx.Ctx, owner common.Address) (domain.Wad, error) {
	unpacked, err := e.client.Call(ctx, e.address, baseabi.Erc20ABI, "balanceOf", owner)
	if err != nil {
		return domain.Wad{}, err
	}
	return domain.NewWad(unpacked[0].(*big.Int)), nil
}

func (e *Erc20) AllowanceOf(ctx bCtx.Ctx, owner, spender common.Address) (domain.Wad, error) {
	unpacked, err := e.client.Call(ctx, e.address, baseabi.Erc20ABI, "allowance", owner, spender)
	if err != nil {
		return domain.Wad{}, err
	}
	return domain.NewWad(unpacked[0].(*big.Int)), nil
}

// Approve grants spender an allowance of value and waits for the receipt.
func (e *Erc20) Approve(ctx bCtx.Ctx, spender common.Address, value *big.Int) error {
	_, _, err := e.client.Transact(ctx, e.address, baseabi.Erc20ABI, "approve", spender, value)
	return err
}
