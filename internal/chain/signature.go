// Package chain holds the blockchain edge: personal-message signature
// recovery, the persona registry client and the mint watcher.
package chain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const signatureLength = 65

// ParseSignature decodes a 0x-prefixed hex signature into raw bytes.
func ParseSignature(hexSig string) ([]byte, error) {
	sig, err := hexutil.Decode(hexSig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if len(sig) != signatureLength {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidSignature, len(sig))
	}
	return sig, nil
}

// Recover returns the address that produced a personal-message signature
// over message. Wallets emit V as 27/28; secp256k1 recovery wants 0/1.
func Recover(message string, sig []byte) (common.Address, error) {
	if len(sig) != signatureLength {
		return common.Address{}, fmt.Errorf("%w: length %d", ErrInvalidSignature, len(sig))
	}

	normalized := make([]byte, signatureLength)
	copy(normalized, sig)
	if normalized[signatureLength-1] >= 27 {
		normalized[signatureLength-1] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Verify reports whether sig over message was produced by address.
// Address comparison is case-insensitive.
func Verify(message string, sig []byte, address string) bool {
	if !common.IsHexAddress(address) {
		return false
	}
	recovered, err := Recover(message, sig)
	if err != nil {
		return false
	}
	return recovered == common.HexToAddress(address)
}
