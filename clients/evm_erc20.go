package clients

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const erc20TransferABI = `[
  {
    "name": "transfer",
    "type": "function",
    "stateMutability": "nonpayable",
    "inputs": [
      { "name": "to", "type": "address" },
      { "name": "amount", "type": "uint256" }
    ],
    "outputs": [{ "name": "", "type": "bool" }]
  }
]`

var erc20ABI = mustParseABI(erc20TransferABI)

// ErrNotTransfer is returned when calldata is not an ERC-20 transfer(address,uint256) call.
var ErrNotTransfer = errors.New("calldata is not an erc20 transfer")

// ERC20Transfer is a decoded transfer(address,uint256) invocation.
type ERC20Transfer struct {
	To     common.Address
	Amount *big.Int
}

// DecodeERC20Transfer decodes transaction input as transfer(address,uint256).
// Any other selector, including transferFrom, is rejected.
func DecodeERC20Transfer(data []byte) (*ERC20Transfer, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: calldata too short (%d bytes)", ErrNotTransfer, len(data))
	}

	method, err := erc20ABI.MethodById(data[:4])
	if err != nil || method.Name != "transfer" {
		return nil, fmt.Errorf("%w: selector %x", ErrNotTransfer, data[:4])
	}

	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotTransfer, err)
	}

	to, ok := args[0].(common.Address)
	if !ok {
		return nil, fmt.Errorf("%w: bad recipient", ErrNotTransfer)
	}
	amount, ok := args[1].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: bad amount", ErrNotTransfer)
	}

	return &ERC20Transfer{To: to, Amount: amount}, nil
}

// EncodeERC20Transfer builds transfer(address,uint256) calldata.
func EncodeERC20Transfer(to common.Address, amount *big.Int) ([]byte, error) {
	return erc20ABI.Pack("transfer", to, amount)
}
