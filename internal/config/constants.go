package config

import "time"

// DLN Programs — Solana Mainnet
const (
	SrcProgramAddress = "src5qyZHqTqecJV4aY6Cb6zDZLMDzrDKKezs22MPHr4"
	DstProgramAddress = "dst5MGcFPoBeREFAA5E3tU5ij8m5uVYwkzkSAbsLbNo"

	// DLN's internal identifier for the Solana chain.
	SolanaChainID = 7565164
)

// Token Mints — SOL Mainnet
const (
	// NativeSOLSentinel is the 32-zero-byte address DLN uses for native SOL.
	// It has no market entry; price lookups must use WrappedSOLMint instead.
	NativeSOLSentinel = "11111111111111111111111111111111"
	WrappedSOLMint    = "So11111111111111111111111111111111111111112"

	SOLUSDCMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	SOLUSDTMint = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
	SOLBONKMint = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
	SOLJUPMint  = "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN"
)

// Chain RPC
const (
	DefaultSolanaRPS    = 10
	RPCMaxRetries       = 5
	RPCRetryBaseBackoff = 1000 * time.Millisecond

	// getSignaturesForAddress hard limit on Solana nodes.
	MaxSignaturePageSize = 1000

	MetricsLogInterval = 60 * time.Second
)

// Scanning
const (
	DefaultBatchSize = 50
	DefaultDelayMs   = 10_000

	// Mint account layout: decimals live at this byte offset.
	MintDecimalsOffset  = 44
	MintAccountMinBytes = 45
	MaxTokenDecimals    = 18

	// How often the optional order-count stop predicate is evaluated.
	StopCheckInterval = 5 * time.Second
)

// Pricing
const (
	JupiterBaseURL        = "https://api.jup.ag/price/v3"
	PriceCacheTTL         = 600 * time.Second
	PriceMaxRetries       = 3
	PriceRetryBaseBackoff = 500 * time.Millisecond
)

// Order API
const (
	OrderAPIBaseURL    = "https://dln-api.debridge.finance"
	OrderAPIRPS        = 1
	OrderAPIMaxRetries = 10
	OrderAPIRetryBase  = 1000 * time.Millisecond
	OrderAPIRetryCap   = 30 * time.Second
)

// Checkpoints
const (
	CheckpointKeyPrefix    = "indexer:checkpoint:"
	PriceCacheKeyPrefix    = "price:solana:"
	DecimalsCacheKeyPrefix = "decimals:solana:"

	// Minimum spacing between persisted checkpoint writes per program.
	CheckpointWriteInterval = 1 * time.Second
)

// Server
const (
	ServerReadTimeout  = 30 * time.Second
	ServerWriteTimeout = 60 * time.Second
	APITimeout         = 30 * time.Second
	ShutdownTimeout    = 10 * time.Second
)

// Stores
const (
	ClickHouseDialTimeout = 5 * time.Second
	RedisDialTimeout      = 5 * time.Second
)
