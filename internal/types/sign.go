package types

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ValidatorSignature pairs a validator identity with its 65 byte [R||S||V]
// signature over an operation sign doc. Bundles are evaluated as unordered
// sets, duplicates by validator never count twice.
type ValidatorSignature struct {
	Validator common.Address `json:"validator"`
	Signature []byte         `json:"signature"`
}

// ConfigUpdate carries the optional fields of an UpdateConfig operation.
// Nil fields are left unchanged.
type ConfigUpdate struct {
	FeeRateBps *uint16          `json:"fee_rate_bps,omitempty"`
	DailyLimit *uint64          `json:"daily_limit,omitempty"`
	Validators []common.Address `json:"validators,omitempty"`
	Threshold  *int             `json:"threshold,omitempty"`
}

// DepositSignDoc is the canonical digest validators sign to attest a source
// chain deposit. Field order and little endian widths are fixed; the nonce
// binds the attestation to the current bridge sequence.
func DepositSignDoc(sourceTxHash [32]byte, blockHeight, amount uint64, recipient common.Address, nonce uint64) []byte {
	buf := make([]byte, 0, 32+8+8+20+8)
	buf = append(buf, sourceTxHash[:]...)
	buf = appendUint64(buf, blockHeight)
	buf = appendUint64(buf, amount)
	buf = append(buf, recipient.Bytes()...)
	buf = appendUint64(buf, nonce)
	return crypto.Keccak256(buf)
}

// WithdrawSignDoc is the optional quorum digest for withdrawals, used only
// when the bridge runs with the withdraw quorum policy enabled.
func WithdrawSignDoc(caller common.Address, sourceRecipient [32]byte, amount, nonce uint64) []byte {
	buf := make([]byte, 0, 20+32+8+8)
	buf = append(buf, caller.Bytes()...)
	buf = append(buf, sourceRecipient[:]...)
	buf = appendUint64(buf, amount)
	buf = appendUint64(buf, nonce)
	return crypto.Keccak256(buf)
}

// PauseSignDoc binds an emergency pause to the current nonce so a stale
// bundle cannot be replayed after state has moved on.
func PauseSignDoc(nonce uint64) []byte {
	return crypto.Keccak256(appendUint64([]byte("BRIDGE_PAUSE:"), nonce))
}

func UnpauseSignDoc(nonce uint64) []byte {
	return crypto.Keccak256(appendUint64([]byte("BRIDGE_UNPAUSE:"), nonce))
}

// ConfigSignDoc hashes the proposed configuration change together with the
// current nonce. Present fields are tagged so that "no change" and "zero"
// encode differently.
func ConfigSignDoc(update ConfigUpdate, nonce uint64) []byte {
	buf := []byte("BRIDGE_CONFIG:")
	if update.FeeRateBps != nil {
		buf = append(buf, 0x01)
		buf = binary.LittleEndian.AppendUint16(buf, *update.FeeRateBps)
	}
	if update.DailyLimit != nil {
		buf = append(buf, 0x02)
		buf = appendUint64(buf, *update.DailyLimit)
	}
	if len(update.Validators) > 0 {
		buf = append(buf, 0x03)
		for _, v := range update.Validators {
			buf = append(buf, v.Bytes()...)
		}
	}
	if update.Threshold != nil {
		buf = append(buf, 0x04)
		buf = appendUint64(buf, uint64(*update.Threshold))
	}
	buf = appendUint64(buf, nonce)
	return crypto.Keccak256(buf)
}

func appendUint64(buf []byte, v uint64) []byte {
	return binary.LittleEndian.AppendUint64(buf, v)
}
