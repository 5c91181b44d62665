package abi

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

var ZrxExchangeABI abi.ABI

func init() {
	_abi, err := abi.JSON(strings.NewReader(zrxExchangeABIJson))
	if err != nil {
		panic("Failed to parse ABI")
	}
	ZrxExchangeABI = _abi
}

// 0x protocol v1 exchange, reduced to the calls the keeper issues. Orders
// travel as the contract's (address[5], uint256[6]) tuple:
// [maker, taker, makerToken, takerToken, feeRecipient] and
// [makerTokenAmount, takerTokenAmount, makerFee, takerFee, expiration, salt].
var zrxExchangeABIJson = `
[
  {
    "inputs": [],
    "name": "ZRX_TOKEN_CONTRACT",
    "outputs": [ { "name": "", "type": "address" } ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "TOKEN_TRANSFER_PROXY_CONTRACT",
    "outputs": [ { "name": "", "type": "address" } ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      { "name": "orderAddresses", "type": "address[5]" },
      { "name": "orderValues", "type": "uint256[6]" }
    ],
    "name": "getOrderHash",
    "outputs": [ { "name": "", "type": "bytes32" } ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [ { "name": "orderHash", "type": "bytes32" } ],
    "name": "getUnavailableTakerTokenAmount",
    "outputs": [ { "name": "", "type": "uint256" } ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      { "name": "orderAddresses", "type": "address[5]" },
      { "name": "orderValues", "type": "uint256[6]" },
      { "name": "cancelTakerTokenAmount", "type": "uint256" }
    ],
    "name": "cancelOrder",
    "outputs": [ { "name": "", "type": "uint256" } ],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      { "name": "orderAddresses", "type": "address[5]" },
      { "name": "orderValues", "type": "uint256[6]" },
      { "name": "fillTakerTokenAmount", "type": "uint256" },
      { "name": "shouldThrowOnInsufficientBalanceOrAllowance", "type": "bool" },
      { "name": "v", "type": "uint8" },
      { "name": "r", "type": "bytes32" },
      { "name": "s", "type": "bytes32" }
    ],
    "name": "fillOrder",
    "outputs": [ { "name": "", "type": "uint256" } ],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]
`
