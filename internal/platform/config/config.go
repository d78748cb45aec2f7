package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"attestor/pkg/domain"
	dErrors "attestor/pkg/domain-errors"
)

const (
	DefaultAddr            = ":8080"
	DefaultRequestTimeout  = 10 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultMaxBodyBytes    = 16 << 10
)

// Env var prefixes for per-chain endpoints, e.g. RPC_URL_BASE or RPC_URL_8453.
const (
	rpcURLPrefix      = "RPC_URL_"
	explorerURLPrefix = "EXPLORER_URL_"
)

// ChainEndpoints locates the data providers for one chain.
type ChainEndpoints struct {
	RPCURL      string
	ExplorerURL string
}

// Server captures process configuration.
type Server struct {
	Addr        string
	Environment string
	LogLevel    string

	// SignerPrivateKey is the hex secp256k1 key attestations are signed with.
	SignerPrivateKey string

	// CriteriaFile is an optional YAML criteria document; built-in criteria
	// are used when empty.
	CriteriaFile string

	Chains         map[domain.ChainID]ChainEndpoints
	ExplorerAPIKey string

	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64

	// ReceiptsDir is the Pebble directory for the receipt ledger; receipts
	// are kept in memory when empty.
	ReceiptsDir string

	problems []string
}

// FromEnv builds a Server config from environment variables so main stays lean.
// Call Validate before using the result.
func FromEnv() Server {
	return fromEnviron(os.Environ())
}

func fromEnviron(environ []string) Server {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}

	cfg := Server{
		Addr:             orDefault(env["ATTESTOR_ADDR"], DefaultAddr),
		Environment:      orDefault(env["ENVIRONMENT"], "development"),
		LogLevel:         env["LOG_LEVEL"],
		SignerPrivateKey: strings.TrimSpace(env["SIGNER_PRIVATE_KEY"]),
		CriteriaFile:     env["CRITERIA_FILE"],
		ExplorerAPIKey:   env["EXPLORER_API_KEY"],
		ReceiptsDir:      env["RECEIPTS_DIR"],
		RequestTimeout:   DefaultRequestTimeout,
		ShutdownTimeout:  DefaultShutdownTimeout,
		MaxBodyBytes:     DefaultMaxBodyBytes,
		Chains:           make(map[domain.ChainID]ChainEndpoints),
	}
	cfg.RequestTimeout = cfg.duration(env, "REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.ShutdownTimeout = cfg.duration(env, "SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if raw := env["MAX_BODY_BYTES"]; raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			cfg.problems = append(cfg.problems, "MAX_BODY_BYTES must be a positive integer")
		} else {
			cfg.MaxBodyBytes = n
		}
	}

	for k, v := range env {
		switch {
		case strings.HasPrefix(k, rpcURLPrefix):
			cfg.setEndpoint(k, strings.TrimPrefix(k, rpcURLPrefix), func(e *ChainEndpoints) { e.RPCURL = v })
		case strings.HasPrefix(k, explorerURLPrefix):
			cfg.setEndpoint(k, strings.TrimPrefix(k, explorerURLPrefix), func(e *ChainEndpoints) { e.ExplorerURL = v })
		}
	}
	return cfg
}

func (c *Server) setEndpoint(key, suffix string, set func(*ChainEndpoints)) {
	chain, err := domain.ParseChainID(strings.ToLower(suffix))
	if err != nil {
		c.problems = append(c.problems, fmt.Sprintf("%s: unknown chain %q", key, suffix))
		return
	}
	e := c.Chains[chain]
	set(&e)
	c.Chains[chain] = e
}

func (c *Server) duration(env map[string]string, key string, def time.Duration) time.Duration {
	raw := env[key]
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		c.problems = append(c.problems, key+" must be a positive duration")
		return def
	}
	return d
}

// Validate reports configuration that must stop the process from starting.
func (c Server) Validate() error {
	problems := append([]string(nil), c.problems...)
	if c.SignerPrivateKey == "" {
		problems = append(problems, "SIGNER_PRIVATE_KEY is required")
	}
	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return dErrors.New(dErrors.CodeMisconfigured, "invalid configuration: "+strings.Join(problems, "; "))
}

// ChainIDs returns the configured chains in ascending order.
func (c Server) ChainIDs() []domain.ChainID {
	ids := make([]domain.ChainID, 0, len(c.Chains))
	for id := range c.Chains {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
