package ledger

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// CommitmentHash digests the immutable fields of a transaction at commit time.
// The canonical form is pipe-delimited so field boundaries cannot be forged by
// adjacent values. Stamped exactly once; stored for tamper evidence.
func CommitmentHash(amount int64, txType TransactionType, reference string, balanceBefore, balanceAfter int64) string {
	canonical := fmt.Sprintf("%d|%s|%s|%d|%d", amount, txType, reference, balanceBefore, balanceAfter)
	sum := sha3.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
