package chain

import (
	"crypto/ecdsa"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/xerrors"

	"github.com/mitakash/pymaker/base/backoff"
	bCtx "github.com/mitakash/pymaker/base/ctx"
	"github.com/mitakash/pymaker/base/log"
	"github.com/mitakash/pymaker/domain"
)

const (
	DefaultReceiptTimeout      = 2 * time.Minute
	DefaultReceiptPollStart    = time.Second
	DefaultReceiptPollInterval = 16 * time.Second
)

type ClientCfg struct {
	Eth     domain.EthClientRepo
	ChainId int64
	// Key signs transactions and order hashes. Read-only clients may leave
	// it nil; Transact and SignHash then fail.
	Key *ecdsa.PrivateKey

	ReceiptTimeout   time.Duration
	ReceiptPollStart time.Duration
}

// Client issues calls and transactions against contracts on a single chain.
type Client interface {
	Account() common.Address
	Eth() domain.EthClientRepo
	Call(bCtx.Ctx, common.Address, abi.ABI, string, ...interface{}) ([]interface{}, error)
	Transact(bCtx.Ctx, common.Address, abi.ABI, string, ...interface{}) (common.Hash, *types.Receipt, error)
	EnsureContract(bCtx.Ctx, common.Address) error
	SignHash(hash []byte) ([]byte, error)
}

type clientImpl struct {
	eth              domain.EthClientRepo
	signer           types.Signer
	key              *ecdsa.PrivateKey
	account          common.Address
	receiptTimeout   time.Duration
	receiptPollStart time.Duration
}

func NewClient(ctx bCtx.Ctx, cfg *ClientCfg) (Client, error) {
	if cfg.Eth == nil {
		return nil, xerrors.New("config error: Eth client is required")
	}
	c := &clientImpl{
		eth:              cfg.Eth,
		signer:           types.LatestSignerForChainID(big.NewInt(cfg.ChainId)),
		key:              cfg.Key,
		receiptTimeout:   cfg.ReceiptTimeout,
		receiptPollStart: cfg.ReceiptPollStart,
	}
	if cfg.Key != nil {
		c.account = crypto.PubkeyToAddress(cfg.Key.PublicKey)
	}
	if c.receiptTimeout == 0 {
		c.receiptTimeout = DefaultReceiptTimeout
	}
	if c.receiptPollStart == 0 {
		c.receiptPollStart = DefaultReceiptPollStart
	}
	return c, nil
}

func (c *clientImpl) Account() common.Address {
	return c.account
}

func (c *clientImpl) Eth() domain.EthClientRepo {
	return c.eth
}

func (c *clientImpl) Call(ctx bCtx.Ctx, addr common.Address, _abi abi.ABI, method string, params ...interface{}) ([]interface{}, error) {
	data, err := _abi.Pack(method, params...)
	if err != nil {
		ctx.WithFields(log.Fields{
			"method": method,
			"err":    err,
		}).Error("abi.Pack failed")
		return nil, err
	}
	msg := ethereum.CallMsg{
		From: c.account,
		To:   &addr,
		Data: data,
	}
	res, err := c.eth.CallContract(ctx, msg, nil)
	if err != nil {
		// reverts are an expected outcome for some lookups, let the
		// caller classify before logging at error level
		if !IsRevert(err) {
			ctx.WithField("err", err).Error("eth.CallContract failed")
		}
		return nil, err
	}
	unpacked, err := _abi.Unpack(method, res)
	if err != nil {
		ctx.WithField("err", err).Error("abi.Unpack failed")
		return nil, err
	}
	return unpacked, nil
}

// Transact submits a state-changing call and blocks until its receipt is
// available or the receipt timeout elapses. Timeout is returned as
// domain.ErrReceiptTimeout, which callers may treat as retryable.
func (c *clientImpl) Transact(ctx bCtx.Ctx, addr common.Address, _abi abi.ABI, method string, params ...interface{}) (common.Hash, *types.Receipt, error) {
	if c.key == nil {
		return common.Hash{}, nil, xerrors.New("client has no signing key")
	}
	data, err := _abi.Pack(method, params...)
	if err != nil {
		ctx.WithFields(log.Fields{
			"method": method,
			"err":    err,
		}).Error("abi.Pack failed")
		return common.Hash{}, nil, err
	}

	nonce, err := c.eth.PendingNonceAt(ctx, c.account)
	if err != nil {
		ctx.WithField("err", err).Error("eth.PendingNonceAt failed")
		return common.Hash{}, nil, err
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		ctx.WithField("err", err).Error("eth.SuggestGasPrice failed")
		return common.Hash{}, nil, err
	}
	gas, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{
		From:     c.account,
		To:       &addr,
		GasPrice: gasPrice,
		Data:     data,
	})
	if err != nil {
		return common.Hash{}, nil, err
	}

	tx, err := types.SignTx(
		types.NewTransaction(nonce, addr, new(big.Int), gas, gasPrice, data),
		c.signer, c.key)
	if err != nil {
		ctx.WithField("err", err).Error("types.SignTx failed")
		return common.Hash{}, nil, err
	}
	if err := c.eth.SendTransaction(ctx, tx); err != nil {
		ctx.WithFields(log.Fields{
			"method": method,
			"err":    err,
		}).Error("eth.SendTransaction failed")
		return common.Hash{}, nil, err
	}

	receipt, err := c.waitReceipt(ctx, tx.Hash())
	return tx.Hash(), receipt, err
}

func (c *clientImpl) waitReceipt(ctx bCtx.Ctx, txHash common.Hash) (*types.Receipt, error) {
	wCtx, cancel := bCtx.WithTimeout(ctx, c.receiptTimeout)
	defer cancel()

	b := backoff.NewExponentialBackoff(c.receiptPollStart, DefaultReceiptPollInterval)
	for {
		if wCtx.Err() != nil {
			return nil, xerrors.Errorf("tx %s: %w", txHash.Hex(), domain.ErrReceiptTimeout)
		}
		receipt, err := c.eth.TransactionReceipt(wCtx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			ctx.WithFields(log.Fields{
				"txHash": txHash.Hex(),
				"err":    err,
			}).Error("eth.TransactionReceipt failed")
			return nil, err
		}
		if err := b.Backoff(wCtx); err != nil {
			return nil, xerrors.Errorf("tx %s: %w", txHash.Hex(), domain.ErrReceiptTimeout)
		}
	}
}

// EnsureContract fails with domain.ErrNoContractCode when the address holds
// no deployed code. Bindings call it at construction so that a bad address
// surfaces immediately instead of on the first call.
func (c *clientImpl) EnsureContract(ctx bCtx.Ctx, addr common.Address) error {
	code, err := c.eth.CodeAt(ctx, addr, nil)
	if err != nil {
		ctx.WithFields(log.Fields{
			"addr": addr.Hex(),
			"err":  err,
		}).Error("eth.CodeAt failed")
		return err
	}
	if len(code) == 0 {
		return xerrors.Errorf("%s: %w", addr.Hex(), domain.ErrNoContractCode)
	}
	return nil
}

// SignHash signs a 32-byte digest with eth_sign semantics: the digest is
// prefixed and hashed again before signing, v is returned as 27/28.
func (c *clientImpl) SignHash(hash []byte) ([]byte, error) {
	if c.key == nil {
		return nil, xerrors.New("client has no signing key")
	}
	sig, err := crypto.Sign(accounts.TextHash(hash), c.key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// revertMarkers match the error strings nodes return for failed EVM
// execution, including the pre-byzantium throw variants the token-auction
// contracts produce.
var revertMarkers = []string{
	"execution reverted",
	"always failing transaction",
	"invalid opcode",
	"invalid jump",
	"revert",
}

// IsRevert reports whether err represents an EVM execution failure, as
// opposed to a transport or encoding problem. Lookups that map reverts to
// absent results use it to avoid masking genuine infrastructure errors.
func IsRevert(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range revertMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
