package quorum

import (
	"fmt"

	"github.com/InsideOutbtc/nock-bridge/internal/types"
	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

// ErrInsufficientQuorum is returned when fewer distinct valid member
// signatures remain after filtering than the configured threshold.
type ErrInsufficientQuorum struct {
	Got  int
	Need int
}

func (e *ErrInsufficientQuorum) Error() string {
	return fmt.Sprintf("insufficient quorum: %d valid signatures, need %d", e.Got, e.Need)
}

// Evaluate checks a signature bundle against the current validator set.
// Duplicates by validator are ignored after the first occurrence, unknown
// validators are filtered without failing the whole bundle, and the result
// does not depend on input order.
func Evaluate(signDoc []byte, validators []common.Address, threshold int, sigs []types.ValidatorSignature) error {
	seen := make(map[common.Address]bool, len(sigs))
	valid := 0
	for _, vs := range sigs {
		if seen[vs.Validator] {
			log.Debugf("Quorum evaluate: duplicate signature from %s ignored", vs.Validator.Hex())
			continue
		}
		seen[vs.Validator] = true

		if types.IndexOfAddress(validators, vs.Validator) < 0 {
			log.Debugf("Quorum evaluate: unknown validator %s filtered", vs.Validator.Hex())
			continue
		}
		if !VerifySignature(signDoc, vs.Validator, vs.Signature) {
			log.Debugf("Quorum evaluate: invalid signature from %s", vs.Validator.Hex())
			continue
		}
		valid++
	}
	if valid < threshold {
		return &ErrInsufficientQuorum{Got: valid, Need: threshold}
	}
	return nil
}
