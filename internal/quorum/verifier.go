package quorum

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// VerifySignature checks one 65 byte [R||S||V] signature over a sign doc
// against a validator address. Fails closed: any malformed input is simply
// an invalid signature, never an error that escapes into caller state.
func VerifySignature(signDoc []byte, validator common.Address, sig []byte) bool {
	if len(signDoc) != 32 || len(sig) != 65 {
		return false
	}
	// Normalize the recovery id, geth signers emit 27/28 style V as well
	recSig := make([]byte, 65)
	copy(recSig, sig)
	if recSig[64] >= 27 {
		recSig[64] -= 27
	}
	if recSig[64] > 1 {
		return false
	}
	pubKey, err := crypto.SigToPub(signDoc, recSig)
	if err != nil {
		return false
	}
	return crypto.PubkeyToAddress(*pubKey) == validator
}
