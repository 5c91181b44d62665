package contract

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/xerrors"

	baseabi "github.com/mitakash/pymaker/base/abi"
	bCtx "github.com/mitakash/pymaker/base/ctx"
	"github.com/mitakash/pymaker/base/log"
	"github.com/mitakash/pymaker/domain"
	"github.com/mitakash/pymaker/domain/zrx"
	"github.com/mitakash/pymaker/service/chain"
)

// ZrxExchange binds the 0x protocol v1 exchange contract. It creates and
// signs orders on behalf of the client account and submits fills and
// cancellations against orders received from relays.
type ZrxExchange struct {
	client  chain.Client
	address common.Address
}

func NewZrxExchange(ctx bCtx.Ctx, client chain.Client, address common.Address) (*ZrxExchange, error) {
	if err := client.EnsureContract(ctx, address); err != nil {
		return nil, err
	}
	return &ZrxExchange{
		client:  client,
		address: address,
	}, nil
}

func (e *ZrxExchange) Address() common.Address {
	return e.address
}

// ZrxToken returns the address of the ZRX token, in which the exchange
// collects fees.
func (e *ZrxExchange) ZrxToken(ctx bCtx.Ctx) (common.Address, error) {
	unpacked, err := e.client.Call(ctx, e.address, baseabi.ZrxExchangeABI, "ZRX_TOKEN_CONTRACT")
	if err != nil {
		return common.Address{}, err
	}
	return unpacked[0].(common.Address), nil
}

// TokenTransferProxy returns the proxy contract that moves tokens on the
// exchange's behalf. Allowances are granted to the proxy, not the exchange.
func (e *ZrxExchange) TokenTransferProxy(ctx bCtx.Ctx) (common.Address, error) {
	unpacked, err := e.client.Call(ctx, e.address, baseabi.ZrxExchangeABI, "TOKEN_TRANSFER_PROXY_CONTRACT")
	if err != nil {
		return common.Address{}, err
	}
	return unpacked[0].(common.Address), nil
}

// Approve runs the policy for every token against the token transfer proxy,
// plus the ZRX token so fees can be collected.
func (e *ZrxExchange) Approve(ctx bCtx.Ctx, tokens []*Erc20, policy ApprovalPolicy) error {
	proxy, err := e.TokenTransferProxy(ctx)
	if err != nil {
		return err
	}
	zrxToken, err := e.ZrxToken(ctx)
	if err != nil {
		return err
	}

	seen := map[common.Address]bool{}
	all := make([]*Erc20, 0, len(tokens)+1)
	for _, token := range append(tokens, NewErc20(e.client, zrxToken)) {
		if seen[token.Address()] {
			continue
		}
		seen[token.Address()] = true
		all = append(all, token)
	}

	owner := e.client.Account()
	for _, token := range all {
		if err := policy(ctx, token, owner, proxy); err != nil {
			return xerrors.Errorf("approve %s: %w", token.Address().Hex(), err)
		}
	}
	return nil
}

// CreateOrder builds an unsigned order with the client account as maker,
// bound to this exchange.
func (e *ZrxExchange) CreateOrder(ctx bCtx.Ctx, makerAmount, takerAmount domain.Wad,
	makerToken, takerToken domain.Address, expiration uint64) (*zrx.Order, error) {
	maker := domain.Address(e.client.Account().Hex()).ToLower()
	return zrx.CreateOrder(maker, makerAmount, takerAmount, makerToken, takerToken,
		expiration, domain.Address(e.address.Hex()).ToLower())
}

// GetOrderHash asks the contract for the canonical order hash. The local
// zrx.Order.Hash computes the same value without a round trip; this call
// exists to cross-check the packing against the deployed contract.
func (e *ZrxExchange) GetOrderHash(ctx bCtx.Ctx, order *zrx.Order) (common.Hash, error) {
	unpacked, err := e.client.Call(ctx, e.address, baseabi.ZrxExchangeABI, "getOrderHash",
		orderAddresses(order), orderValues(order))
	if err != nil {
		return common.Hash{}, err
	}
	return common.Hash(unpacked[0].([32]byte)), nil
}

// SignOrder signs the order hash with the client key and returns a signed
// copy. The input order is left unmodified.
func (e *ZrxExchange) SignOrder(ctx bCtx.Ctx, order *zrx.Order) (*zrx.Order, error) {
	hash := order.Hash()
	sig, err := e.client.SignHash(hash.Bytes())
	if err != nil {
		ctx.WithFields(log.Fields{
			"orderHash": hash.Hex(),
			"err":       err,
		}).Error("client.SignHash failed")
		return nil, err
	}
	signed := *order
	signed.Signature = zrx.SignatureFromBytes(sig)
	return &signed, nil
}

// GetUnavailableTakerTokenAmount returns how much of the order's taker amount
// has already been filled or cancelled. Subtracting it from TakerTokenAmount
// gives the remaining fillable volume.
func (e *ZrxExchange) GetUnavailableTakerTokenAmount(ctx bCtx.Ctx, order *zrx.Order) (domain.Wad, error) {
	unpacked, err := e.client.Call(ctx, e.address, baseabi.ZrxExchangeABI,
		"getUnavailableTakerTokenAmount", [32]byte(order.Hash()))
	if err != nil {
		return domain.Wad{}, err
	}
	return domain.NewWad(unpacked[0].(*big.Int)), nil
}

// FillOrder fills up to fillAmount of the order's taker token amount. It
// reports false without an error when the fill fails on-chain, so callers
// can move on to the next order.
func (e *ZrxExchange) FillOrder(ctx bCtx.Ctx, order *zrx.Order, fillAmount domain.Wad) (bool, error) {
	if order.Signature == nil {
		return false, xerrors.New("cannot fill an unsigned order")
	}
	r, s, v, err := order.Signature.Parts()
	if err != nil {
		return false, xerrors.Errorf("order %s: %w", order.Hash().Hex(), err)
	}
	ctx.WithFields(log.Fields{
		"orderHash":  order.Hash().Hex(),
		"fillAmount": fillAmount.RawString(),
	}).Info("filling order")
	return e.transactSucceeded(ctx, "fillOrder",
		orderAddresses(order), orderValues(order), fillAmount.Int(), true, v, r, s)
}

// CancelOrder cancels the order's remaining taker token amount. Only the
// maker account can cancel; a revert is reported as false without an error.
func (e *ZrxExchange) CancelOrder(ctx bCtx.Ctx, order *zrx.Order) (bool, error) {
	ctx.WithField("orderHash", order.Hash().Hex()).Info("cancelling order")
	return e.transactSucceeded(ctx, "cancelOrder",
		orderAddresses(order), orderValues(order), order.TakerTokenAmount.Int())
}

func (e *ZrxExchange) transactSucceeded(ctx bCtx.Ctx, method string, params ...interface{}) (bool, error) {
	_, receipt, err := e.client.Transact(ctx, e.address, baseabi.ZrxExchangeABI, method, params...)
	if err != nil {
		if chain.IsRevert(err) {
			return false, nil
		}
		return false, err
	}
	// the exchange logs LogFill/LogCancel on success and LogError otherwise,
	// but a receipt without any log at all means nothing happened
	return receipt != nil && len(receipt.Logs) > 0, nil
}

func (e *ZrxExchange) String() string {
	return fmt.Sprintf("ZrxExchange('%s')", e.address.Hex())
}

func orderAddresses(o *zrx.Order) [5]common.Address {
	return [5]common.Address{
		common.HexToAddress(string(o.Maker)),
		common.HexToAddress(string(o.Taker)),
		common.HexToAddress(string(o.MakerTokenAddress)),
		common.HexToAddress(string(o.TakerTokenAddress)),
		common.HexToAddress(string(o.FeeRecipient)),
	}
}

func orderValues(o *zrx.Order) [6]*big.Int {
	salt := o.Salt
	if salt == nil {
		salt = new(big.Int)
	}
	return [6]*big.Int{
		o.MakerTokenAmount.Int(),
		o.TakerTokenAmount.Int(),
		o.MakerFee.Int(),
		o.TakerFee.Int(),
		new(big.Int).SetUint64(o.Expiration),
		salt,
	}
}
