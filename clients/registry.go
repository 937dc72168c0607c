package clients

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	x402types "github.com/walrus-x402/x402/types"
)

// RegistryABI covers the view functions of the content registry the gate reads.
const RegistryABI = `[
  {
    "name": "contents",
    "type": "function",
    "stateMutability": "view",
    "inputs": [{ "name": "", "type": "uint256" }],
    "outputs": [
      { "name": "id", "type": "uint256" },
      { "name": "creator", "type": "address" },
      { "name": "cType", "type": "uint8" },
      { "name": "metadataURI", "type": "string" },
      { "name": "isFree", "type": "bool" },
      { "name": "fullPrice", "type": "uint256" },
      { "name": "rentedPrice", "type": "uint256" },
      { "name": "paymentToken", "type": "address" },
      { "name": "active", "type": "bool" }
    ]
  },
  {
    "name": "checkRental",
    "type": "function",
    "stateMutability": "view",
    "inputs": [
      { "name": "user", "type": "address" },
      { "name": "contentId", "type": "uint256" }
    ],
    "outputs": [{ "name": "expiry", "type": "uint256" }]
  },
  {
    "name": "checkSubscription",
    "type": "function",
    "stateMutability": "view",
    "inputs": [
      { "name": "user", "type": "address" },
      { "name": "creator", "type": "address" }
    ],
    "outputs": [{ "name": "", "type": "bool" }]
  }
]`

var registryABI = mustParseABI(RegistryABI)

// contentTuple mirrors the outputs of contents(uint256).
type contentTuple struct {
	Id           *big.Int       `abi:"id"`
	Creator      common.Address `abi:"creator"`
	CType        uint8          `abi:"cType"`
	MetadataURI  string         `abi:"metadataURI"`
	IsFree       bool           `abi:"isFree"`
	FullPrice    *big.Int       `abi:"fullPrice"`
	RentedPrice  *big.Int       `abi:"rentedPrice"`
	PaymentToken common.Address `abi:"paymentToken"`
	Active       bool           `abi:"active"`
}

func decodeContentRecord(out []byte) (*x402types.ContentRecord, error) {
	var t contentTuple
	if err := registryABI.UnpackIntoInterface(&t, "contents", out); err != nil {
		return nil, x402types.ChainUnavailable("contents decode", err)
	}

	return &x402types.ContentRecord{
		ID:           t.Id,
		Creator:      t.Creator,
		ContentType:  t.CType,
		MetadataURI:  t.MetadataURI,
		IsFree:       t.IsFree,
		FullPrice:    t.FullPrice,
		RentPrice:    t.RentedPrice,
		PaymentToken: t.PaymentToken,
		Active:       t.Active,
	}, nil
}

func decodeRentalExpiry(out []byte) (*big.Int, error) {
	values, err := registryABI.Unpack("checkRental", out)
	if err != nil || len(values) != 1 {
		return nil, x402types.ChainUnavailable("checkRental decode", decodeErr(err, len(values)))
	}
	return *abi.ConvertType(values[0], new(*big.Int)).(**big.Int), nil
}

func decodeSubscription(out []byte) (bool, error) {
	values, err := registryABI.Unpack("checkSubscription", out)
	if err != nil || len(values) != 1 {
		return false, x402types.ChainUnavailable("checkSubscription decode", decodeErr(err, len(values)))
	}
	return *abi.ConvertType(values[0], new(bool)).(*bool), nil
}

func decodeErr(err error, n int) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("unexpected output count %d", n)
}

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("invalid abi: %v", err))
	}
	return parsed
}
