package contract

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	bCtx "github.com/mitakash/pymaker/base/ctx"
	"github.com/mitakash/pymaker/base/log"
)

// unlimitedAllowance is 2^256 - 1, the conventional "infinite" ERC20 grant.
var unlimitedAllowance = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// ApprovalPolicy decides how a token allowance towards a spender is
// established before orders can be placed or filled.
type ApprovalPolicy func(ctx bCtx.Ctx, token *Erc20, owner, spender common.Address) error

// Directly grants the spender an unlimited allowance, skipping tokens that
// already carry a non-zero one.
func Directly() ApprovalPolicy {
	return func(ctx bCtx.Ctx, token *Erc20, owner, spender common.Address) error {
		allowance, err := token.AllowanceOf(ctx, owner, spender)
		if err != nil {
			ctx.WithField("err", err).Error("token.AllowanceOf failed")
			return err
		}
		if !allowance.IsZero() {
			return nil
		}
		ctx.WithFields(log.Fields{
			"token":   token.Address().Hex(),
			"spender": spender.Hex(),
		}).Info("granting unlimited allowance")
		return token.Approve(ctx, spender, unlimitedAllowance)
	}
}
