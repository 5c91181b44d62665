// Package zrx holds the 0x v1 order data model: canonical hashing, eth_sign
// style signing, and the relay JSON wire format.
package zrx

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/xerrors"

	"github.com/mitakash/pymaker/domain"
)

// saltSpace is 2^256, the salt domain the exchange contract expects.
var saltSpace = new(big.Int).Lsh(domain.Big1, 256)

// Signature is an ECDSA signature over the order hash, v normalized to 27/28.
type Signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V int    `json:"v"`
}

// SignatureFromBytes converts a 65-byte [R || S || V] signature, v already
// normalized to 27/28, into the wire representation.
func SignatureFromBytes(sig []byte) *Signature {
	return &Signature{
		R: hexutil.Encode(sig[:32]),
		S: hexutil.Encode(sig[32:64]),
		V: int(sig[64]),
	}
}

// Parts decodes the signature into the form the exchange contract takes.
func (s *Signature) Parts() (r [32]byte, sv [32]byte, v uint8, err error) {
	rBytes, err := hexutil.Decode(s.R)
	if err != nil || len(rBytes) != 32 {
		return r, sv, 0, xerrors.Errorf("signature r %q: %w", s.R, domain.ErrInvalidSignature)
	}
	sBytes, err := hexutil.Decode(s.S)
	if err != nil || len(sBytes) != 32 {
		return r, sv, 0, xerrors.Errorf("signature s %q: %w", s.S, domain.ErrInvalidSignature)
	}
	if s.V != 27 && s.V != 28 {
		return r, sv, 0, xerrors.Errorf("signature v %d: %w", s.V, domain.ErrInvalidSignature)
	}
	copy(r[:], rBytes)
	copy(sv[:], sBytes)
	return r, sv, uint8(s.V), nil
}

// Order is a 0x v1 exchange order. An order is a pure value: it carries no
// client reference, so structural equality and hashing depend on data fields
// only. Signature is nil for unsigned orders.
type Order struct {
	ExchangeContractAddress domain.Address
	Maker                   domain.Address
	Taker                   domain.Address
	MakerTokenAddress       domain.Address
	TakerTokenAddress       domain.Address
	FeeRecipient            domain.Address
	MakerTokenAmount        domain.Wad
	TakerTokenAmount        domain.Wad
	MakerFee                domain.Wad
	TakerFee                domain.Wad
	Expiration              uint64
	Salt                    *big.Int
	Signature               *Signature
}

// CreateOrder builds an unsigned order bound to the given exchange address.
// Taker and fee recipient default to the zero address (open to anyone, no
// fees), and the salt is drawn uniformly from [0, 2^256).
func CreateOrder(maker domain.Address, makerAmount, takerAmount domain.Wad,
	makerToken, takerToken domain.Address, expiration uint64,
	exchange domain.Address) (*Order, error) {
	salt, err := rand.Int(rand.Reader, saltSpace)
	if err != nil {
		return nil, xerrors.Errorf("failed to draw order salt: %w", err)
	}
	return &Order{
		ExchangeContractAddress: exchange,
		Maker:                   maker,
		Taker:                   domain.EmptyAddress,
		MakerTokenAddress:       makerToken,
		TakerTokenAddress:       takerToken,
		FeeRecipient:            domain.EmptyAddress,
		MakerTokenAmount:        makerAmount,
		TakerTokenAmount:        takerAmount,
		Expiration:              expiration,
		Salt:                    salt,
	}, nil
}

func (o *Order) salt() *big.Int {
	if o.Salt == nil {
		return new(big.Int)
	}
	return o.Salt
}

// Hash computes the exchange-defined canonical order hash: keccak256 over
// the tight packing of every data field except the signature. It reproduces
// the contract's getOrderHash bit for bit, since it is the pre-image signed
// by the maker and verified on-chain.
func (o *Order) Hash() common.Hash {
	buf := make([]byte, 0, 6*common.AddressLength+6*common.HashLength)
	for _, addr := range []domain.Address{
		o.ExchangeContractAddress,
		o.Maker,
		o.Taker,
		o.MakerTokenAddress,
		o.TakerTokenAddress,
		o.FeeRecipient,
	} {
		buf = append(buf, common.HexToAddress(string(addr)).Bytes()...)
	}
	for _, n := range []*big.Int{
		o.MakerTokenAmount.Int(),
		o.TakerTokenAmount.Int(),
		o.MakerFee.Int(),
		o.TakerFee.Int(),
		new(big.Int).SetUint64(o.Expiration),
		o.salt(),
	} {
		buf = append(buf, common.LeftPadBytes(n.Bytes(), common.HashLength)...)
	}
	return crypto.Keccak256Hash(buf)
}

// Sign produces an eth_sign signature over the order hash with the given key
// and returns a signed copy. The receiver is left unmodified.
func Sign(o *Order, key *ecdsa.PrivateKey) (*Order, error) {
	hash := o.Hash()
	sig, err := crypto.Sign(accounts.TextHash(hash.Bytes()), key)
	if err != nil {
		return nil, xerrors.Errorf("failed to sign order %s: %w", hash.Hex(), err)
	}
	signed := *o
	signed.Signature = &Signature{
		R: hexutil.Encode(sig[:32]),
		S: hexutil.Encode(sig[32:64]),
		V: int(sig[64]) + 27,
	}
	return &signed, nil
}

// Equals compares data and signature fields. Addresses compare
// case-insensitively; amounts compare by value.
func (o *Order) Equals(other *Order) bool {
	if o == nil || other == nil {
		return o == other
	}
	if !o.ExchangeContractAddress.Equals(other.ExchangeContractAddress) ||
		!o.Maker.Equals(other.Maker) ||
		!o.Taker.Equals(other.Taker) ||
		!o.MakerTokenAddress.Equals(other.MakerTokenAddress) ||
		!o.TakerTokenAddress.Equals(other.TakerTokenAddress) ||
		!o.FeeRecipient.Equals(other.FeeRecipient) {
		return false
	}
	if !o.MakerTokenAmount.Equals(other.MakerTokenAmount) ||
		!o.TakerTokenAmount.Equals(other.TakerTokenAmount) ||
		!o.MakerFee.Equals(other.MakerFee) ||
		!o.TakerFee.Equals(other.TakerFee) {
		return false
	}
	if o.Expiration != other.Expiration || o.salt().Cmp(other.salt()) != 0 {
		return false
	}
	if o.Signature == nil || other.Signature == nil {
		return o.Signature == other.Signature
	}
	return *o.Signature == *other.Signature
}

type orderJson struct {
	ExchangeContractAddress    string            `json:"exchangeContractAddress"`
	Maker                      string            `json:"maker"`
	Taker                      string            `json:"taker"`
	MakerTokenAddress          string            `json:"makerTokenAddress"`
	TakerTokenAddress          string            `json:"takerTokenAddress"`
	FeeRecipient               string            `json:"feeRecipient"`
	MakerTokenAmount           string            `json:"makerTokenAmount"`
	TakerTokenAmount           string            `json:"takerTokenAmount"`
	MakerFee                   string            `json:"makerFee"`
	TakerFee                   string            `json:"takerFee"`
	ExpirationUnixTimestampSec string            `json:"expirationUnixTimestampSec"`
	Salt                       string            `json:"salt"`
	EcSignature                *ecSignatureJson  `json:"ecSignature,omitempty"`
}

type feelessOrderJson struct {
	ExchangeContractAddress    string `json:"exchangeContractAddress"`
	Maker                      string `json:"maker"`
	Taker                      string `json:"taker"`
	MakerTokenAddress          string `json:"makerTokenAddress"`
	TakerTokenAddress          string `json:"takerTokenAddress"`
	MakerTokenAmount           string `json:"makerTokenAmount"`
	TakerTokenAmount           string `json:"takerTokenAmount"`
	ExpirationUnixTimestampSec string `json:"expirationUnixTimestampSec"`
	Salt                       string `json:"salt"`
}

// ecSignatureJson carries pointer fields so a partially present signature
// can be told apart from an absent one during parsing.
type ecSignatureJson struct {
	R *string `json:"r,omitempty"`
	S *string `json:"s,omitempty"`
	V *int    `json:"v,omitempty"`
}

// ToJSON serializes the order in the relay wire format. All integer amounts
// are base-10 strings in the smallest unit; the ecSignature block is present
// only for signed orders.
func (o *Order) ToJSON() ([]byte, error) {
	w := orderJson{
		ExchangeContractAddress:    o.ExchangeContractAddress.ToLowerStr(),
		Maker:                      o.Maker.ToLowerStr(),
		Taker:                      o.Taker.ToLowerStr(),
		MakerTokenAddress:          o.MakerTokenAddress.ToLowerStr(),
		TakerTokenAddress:          o.TakerTokenAddress.ToLowerStr(),
		FeeRecipient:               o.FeeRecipient.ToLowerStr(),
		MakerTokenAmount:           o.MakerTokenAmount.RawString(),
		TakerTokenAmount:           o.TakerTokenAmount.RawString(),
		MakerFee:                   o.MakerFee.RawString(),
		TakerFee:                   o.TakerFee.RawString(),
		ExpirationUnixTimestampSec: new(big.Int).SetUint64(o.Expiration).String(),
		Salt:                       o.salt().String(),
	}
	if o.Signature != nil {
		sig := *o.Signature
		w.EcSignature = &ecSignatureJson{R: &sig.R, S: &sig.S, V: &sig.V}
	}
	return json.Marshal(w)
}

// ToJSONWithoutFees serializes the order for relays that do not support
// fees: feeRecipient, makerFee, takerFee and ecSignature are never emitted,
// whatever the order carries.
func (o *Order) ToJSONWithoutFees() ([]byte, error) {
	return json.Marshal(feelessOrderJson{
		ExchangeContractAddress:    o.ExchangeContractAddress.ToLowerStr(),
		Maker:                      o.Maker.ToLowerStr(),
		Taker:                      o.Taker.ToLowerStr(),
		MakerTokenAddress:          o.MakerTokenAddress.ToLowerStr(),
		TakerTokenAddress:          o.TakerTokenAddress.ToLowerStr(),
		MakerTokenAmount:           o.MakerTokenAmount.RawString(),
		TakerTokenAmount:           o.TakerTokenAmount.RawString(),
		ExpirationUnixTimestampSec: new(big.Int).SetUint64(o.Expiration).String(),
		Salt:                       o.salt().String(),
	})
}

// FromJSON parses the relay wire format. The ecSignature block is optional;
// when present it must carry all of r, s and v, otherwise the input is
// rejected as ambiguous.
func FromJSON(data []byte) (*Order, error) {
	var w orderJson
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, xerrors.Errorf("failed to parse order: %w", err)
	}

	makerAmount, err := domain.ParseWad(w.MakerTokenAmount)
	if err != nil {
		return nil, xerrors.Errorf("makerTokenAmount: %w", err)
	}
	takerAmount, err := domain.ParseWad(w.TakerTokenAmount)
	if err != nil {
		return nil, xerrors.Errorf("takerTokenAmount: %w", err)
	}
	makerFee, err := domain.ParseWad(w.MakerFee)
	if err != nil {
		return nil, xerrors.Errorf("makerFee: %w", err)
	}
	takerFee, err := domain.ParseWad(w.TakerFee)
	if err != nil {
		return nil, xerrors.Errorf("takerFee: %w", err)
	}
	expiration, ok := new(big.Int).SetString(w.ExpirationUnixTimestampSec, 10)
	if !ok || !expiration.IsUint64() {
		return nil, xerrors.Errorf("expirationUnixTimestampSec %q: %w", w.ExpirationUnixTimestampSec, domain.ErrInvalidNumberFormat)
	}
	salt, ok := new(big.Int).SetString(w.Salt, 10)
	if !ok {
		return nil, xerrors.Errorf("salt %q: %w", w.Salt, domain.ErrInvalidNumberFormat)
	}

	o := &Order{
		ExchangeContractAddress: domain.Address(w.ExchangeContractAddress).ToLower(),
		Maker:                   domain.Address(w.Maker).ToLower(),
		Taker:                   domain.Address(w.Taker).ToLower(),
		MakerTokenAddress:       domain.Address(w.MakerTokenAddress).ToLower(),
		TakerTokenAddress:       domain.Address(w.TakerTokenAddress).ToLower(),
		FeeRecipient:            domain.Address(w.FeeRecipient).ToLower(),
		MakerTokenAmount:        makerAmount,
		TakerTokenAmount:        takerAmount,
		MakerFee:                makerFee,
		TakerFee:                takerFee,
		Expiration:              expiration.Uint64(),
		Salt:                    salt,
	}

	if w.EcSignature != nil {
		s := w.EcSignature
		if s.R == nil || s.S == nil || s.V == nil {
			return nil, xerrors.Errorf("partial ecSignature: %w", domain.ErrInvalidSignature)
		}
		o.Signature = &Signature{R: *s.R, S: *s.S, V: *s.V}
	}
	return o, nil
}
