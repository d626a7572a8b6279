package http

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/InsideOutbtc/nock-bridge/internal/types"
	"github.com/ethereum/go-ethereum/common"
)

type SignatureDTO struct {
	Validator string `json:"validator" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

type DepositDTO struct {
	SourceTxHash string         `json:"source_tx_hash" binding:"required"`
	BlockHeight  uint64         `json:"block_height"`
	Amount       uint64         `json:"amount" binding:"required"`
	Recipient    string         `json:"recipient" binding:"required"`
	Signatures   []SignatureDTO `json:"signatures" binding:"required"`
}

type WithdrawDTO struct {
	Caller          string         `json:"caller" binding:"required"`
	SourceRecipient string         `json:"source_recipient" binding:"required"`
	Amount          uint64         `json:"amount" binding:"required"`
	Signatures      []SignatureDTO `json:"signatures,omitempty"`
}

type EmergencyDTO struct {
	Signatures []SignatureDTO `json:"signatures" binding:"required"`
}

type ConfigUpdateDTO struct {
	FeeRateBps *uint16        `json:"fee_rate_bps,omitempty"`
	DailyLimit *uint64        `json:"daily_limit,omitempty"`
	Validators []string       `json:"validators,omitempty"`
	Threshold  *int           `json:"threshold,omitempty"`
	Signatures []SignatureDTO `json:"signatures" binding:"required"`
}

type PriceDTO struct {
	Price      uint64 `json:"price" binding:"required"`
	Confidence uint64 `json:"confidence"`
	Exponent   int32  `json:"exponent"`
	Timestamp  int64  `json:"timestamp" binding:"required"`
}

func parseSignatures(dtos []SignatureDTO) ([]types.ValidatorSignature, error) {
	sigs := make([]types.ValidatorSignature, 0, len(dtos))
	for _, dto := range dtos {
		if !common.IsHexAddress(dto.Validator) {
			return nil, fmt.Errorf("invalid validator address: %s", dto.Validator)
		}
		raw, err := hex.DecodeString(strings.TrimPrefix(dto.Signature, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid signature hex for %s: %v", dto.Validator, err)
		}
		sigs = append(sigs, types.ValidatorSignature{
			Validator: common.HexToAddress(dto.Validator),
			Signature: raw,
		})
	}
	return sigs, nil
}
