package settlement

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// InFlightGuard rejects a second concurrent request carrying the same
// idempotency key before the database is touched.
type InFlightGuard interface {
	// Acquire returns false when key is already held. The token identifies
	// this acquisition and must be handed back to Release.
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	// Release drops key only while it is still held under token
	Release(ctx context.Context, key, token string) error
}

// guardKey scopes an idempotency key for the in-flight guard
func guardKey(idempotencyKey string) string {
	return "settlement:inflight:" + idempotencyKey
}

// RequestFingerprint hashes the parts of a settlement request that must match
// when the same idempotency key is replayed.
func RequestFingerprint(cmd SettleCommand) string {
	ids := lo.Map(cmd.SelectedReceivableIDs, func(id uuid.UUID, _ int) string { return id.String() })
	ids = lo.Uniq(ids)
	sort.Strings(ids)

	var b strings.Builder
	fmt.Fprintf(&b, "customer=%s", cmd.CustomerID)
	fmt.Fprintf(&b, ":application=%s", cmd.ApplicationID)
	fmt.Fprintf(&b, ":receivables=%s", strings.Join(ids, ","))
	fmt.Fprintf(&b, ":use_credit=%t", cmd.UseCreditBalance)
	fmt.Fprintf(&b, ":manual_number=%s", strings.TrimSpace(cmd.ManualDocumentNumber))
	for _, m := range cmd.PaymentMethods {
		fmt.Fprintf(&b, ":method=%s/%s/%s/%s/%s", m.Type, m.Amount.StringFixed(2),
			strings.ToUpper(strings.TrimSpace(m.Bank)), m.CheckNumber, m.BankTransactionNumber)
	}

	hash := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(hash[:])
}
