package types

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	log "github.com/sirupsen/logrus"
)

// ParseTxHash decodes a 32 byte hex transaction hash, with or without 0x prefix.
func ParseTxHash(raw string) ([32]byte, error) {
	var out [32]byte
	data, err := hex.DecodeString(strings.TrimPrefix(raw, "0x"))
	if err != nil {
		return out, err
	}
	if len(data) != 32 {
		return out, fmt.Errorf("tx hash must be 32 bytes, got %d", len(data))
	}
	copy(out[:], data)
	return out, nil
}

func PrivateKeyToAddress(privateKeyHex string) (common.Address, error) {
	privateKeyBytes, err := hex.DecodeString(privateKeyHex)
	if err != nil {
		log.Errorf("Failed to decode private key: %v", err)
		return common.Address{}, err
	}

	privateKey, err := crypto.ToECDSA(privateKeyBytes)
	if err != nil {
		log.Errorf("Failed to parse private key: %v", err)
		return common.Address{}, err
	}

	return crypto.PubkeyToAddress(privateKey.PublicKey), nil
}

// JoinAddresses renders an address list the way BridgeState stores it.
func JoinAddresses(addrs []common.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		parts = append(parts, a.Hex())
	}
	return strings.Join(parts, ",")
}

func IndexOfAddress(addrs []common.Address, target common.Address) int {
	for i, a := range addrs {
		if a == target {
			return i
		}
	}
	return -1
}
