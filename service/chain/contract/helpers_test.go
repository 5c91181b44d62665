package contract

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/xerrors"

	bCtx "github.com/mitakash/pymaker/base/ctx"
	"github.com/mitakash/pymaker/domain"
	"github.com/mitakash/pymaker/service/chain"
)

var _ chain.Client = (*fakeClient)(nil)

// fakeClient scripts Call and Transact per method name and records what the
// bindings submit.
type fakeClient struct {
	account    common.Address
	key        *ecdsa.PrivateKey
	eth        domain.EthClientRepo
	callFn     func(method string, params []interface{}) ([]interface{}, error)
	transactFn func(method string, params []interface{}) (common.Hash, *types.Receipt, error)

	transacted []string
}

func (f *fakeClient) Account() common.Address {
	return f.account
}

func (f *fakeClient) Eth() domain.EthClientRepo {
	return f.eth
}

func (f *fakeClient) Call(_ bCtx.Ctx, _ common.Address, _ abi.ABI, method string, params ...interface{}) ([]interface{}, error) {
	if f.callFn == nil {
		return nil, xerrors.Errorf("unexpected call %s", method)
	}
	return f.callFn(method, params)
}

func (f *fakeClient) Transact(_ bCtx.Ctx, _ common.Address, _ abi.ABI, method string, params ...interface{}) (common.Hash, *types.Receipt, error) {
	f.transacted = append(f.transacted, method)
	if f.transactFn == nil {
		return common.Hash{}, nil, xerrors.Errorf("unexpected transaction %s", method)
	}
	return f.transactFn(method, params)
}

func (f *fakeClient) EnsureContract(bCtx.Ctx, common.Address) error {
	return nil
}

func (f *fakeClient) SignHash(hash []byte) ([]byte, error) {
	if f.key == nil {
		return nil, xerrors.New("no key")
	}
	sig, err := crypto.Sign(accounts.TextHash(hash), f.key)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}

var _ domain.EthClientRepo = (*fakeEth)(nil)

// fakeEth serves block number and log queries; everything else is unused by
// the bindings under test.
type fakeEth struct {
	blockNumber uint64
	logs        []types.Log
	lastFilter  ethereum.FilterQuery
}

func (f *fakeEth) ChainID(context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (f *fakeEth) BlockNumber(context.Context) (uint64, error) {
	return f.blockNumber, nil
}

func (f *fakeEth) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return nil, xerrors.New("not implemented")
}

func (f *fakeEth) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.lastFilter = q
	return f.logs, nil
}

func (f *fakeEth) SubscribeFilterLogs(context.Context, ethereum.FilterQuery, chan<- types.Log) (ethereum.Subscription, error) {
	return nil, xerrors.New("not implemented")
}

func (f *fakeEth) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeEth) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return nil, xerrors.New("not implemented")
}

func (f *fakeEth) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 0, nil
}

func (f *fakeEth) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (f *fakeEth) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 21000, nil
}

func (f *fakeEth) SendTransaction(context.Context, *types.Transaction) error {
	return nil
}

func (f *fakeEth) TransactionByHash(context.Context, common.Hash) (*types.Transaction, bool, error) {
	return nil, false, xerrors.New("not implemented")
}

func (f *fakeEth) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	return nil, ethereum.NotFound
}
