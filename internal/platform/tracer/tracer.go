// Package tracer provides a small tracing abstraction so attestation code can
// emit spans without importing OpenTelemetry throughout.
//
// Implementations:
//   - NoopTracer: tests and disabled tracing
//   - OTelTracer: OpenTelemetry adapter for production
package tracer

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
)

// Span represents an active trace span.
type Span interface {
	// End completes the span, marking it failed when err is non-nil.
	// End must be called exactly once, typically via defer.
	End(err error)

	SetAttributes(attrs ...Attribute)

	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	// Start creates a span; the returned context carries it to child operations.
	//
	// Example:
	//   ctx, span := t.Start(ctx, tracer.SpanAggregate,
	//       tracer.String(tracer.AttrCriterion, "tx-count-100"),
	//       tracer.Int64(tracer.AttrWallets, 3),
	//   )
	//   defer span.End(nil)
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// HashAddress returns a short keccak fingerprint of an address so traces can
// be correlated without linking a user's wallets in the tracing backend.
func HashAddress(addr string) string {
	if addr == "" {
		return ""
	}
	return hex.EncodeToString(crypto.Keccak256([]byte(addr))[:8])
}

// Span names.
const (
	SpanAttest      = "attestation.handle"
	SpanAggregate   = "eligibility.aggregate"
	SpanVerify      = "eligibility.verify"
	SpanSign        = "attestation.sign"
	SpanReceiptSave = "attestation.receipt.save"
)

// Attribute keys.
const (
	AttrCriterion = "criterion"
	AttrChain     = "chain_id"
	AttrWallets   = "wallets"
	AttrWallet    = "wallet"
	AttrEligible  = "eligible"
	AttrFailed    = "failed"
	AttrCategory  = "error.category"
)

// Event names.
const (
	EventWalletFailed   = "wallet.failed"
	EventReceiptSkipped = "receipt.skipped"
)
