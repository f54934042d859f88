package store

import "context"

// Repository is the abstract contract every component in this codebase
// depends on. Its SQL backend is an implementation detail (see SQLiteStore);
// callers never see a *sql.DB.
//
// Every method scoped by a chain id (the UpdateFusionPlus* family) predicates
// its write on that chain id in addition to the correlation key, because the
// same order_hash/hashlock legitimately appears on both the src and dst
// chain's half of a FusionPlusSwap row.
type Repository interface {
	InsertTransfer(ctx context.Context, t Transfer) (bool, error)
	InsertTransfersBatch(ctx context.Context, ts []Transfer) (int, error)
	LabelTransfers(ctx context.Context, chainID uint32, txHash, swapType string) (int, error)
	TransfersByTxHash(ctx context.Context, chainID uint32, txHash string) ([]Transfer, error)

	GetCheckpoint(ctx context.Context, chainID uint32) (uint64, bool, error)
	SetCheckpoint(ctx context.Context, chainID uint32, blockNumber uint64) error

	InsertFusionPlusSwap(ctx context.Context, s FusionPlusSwap) (bool, error)
	UpdateFusionPlusDst(ctx context.Context, orderHash string, dstChainID uint32, fields FusionPlusDstUpdate) (bool, error)
	UpdateFusionPlusWithdrawalByHashlock(ctx context.Context, hashlock string, chainID uint32, isSrc bool, secret string, dst FusionPlusWithdrawalTxCoords) (bool, error)
	UpdateFusionPlusCancelled(ctx context.Context, orderHash string, chainID uint32, isSrc bool) (bool, error)
	GetFusionPlusSwap(ctx context.Context, orderHash string) (FusionPlusSwap, bool, error)
	GetFusionPlusSwapByHashlock(ctx context.Context, hashlock string) (FusionPlusSwap, bool, error)

	InsertFusionSwap(ctx context.Context, s FusionSwap) (bool, error)
	GetFusionSwapByOrderHash(ctx context.Context, orderHash string) (FusionSwap, bool, error)

	InsertCrypto2Fiat(ctx context.Context, e Crypto2FiatEvent) (bool, error)

	CleanupByCreatedAt(ctx context.Context, cutoff uint64) (CleanupCounts, error)

	TransferCount(ctx context.Context) (int64, error)
	FusionPlusCount(ctx context.Context) (int64, error)
	FusionSwapCount(ctx context.Context) (int64, error)
	Crypto2FiatCount(ctx context.Context) (int64, error)

	Close() error
}

// FusionPlusDstUpdate carries the fields UpdateFusionPlusDst fills in from a
// DstEscrowCreated event. Populated only when the update actually matches a
// row (order_hash known, dst_chain_id matches).
type FusionPlusDstUpdate struct {
	TxHash         string
	BlockNumber    uint64
	BlockTimestamp uint64
	LogIndex       uint32
	EscrowAddress  string
	DstTaker       string
	DstTimelocks   string
}

// FusionPlusWithdrawalTxCoords carries the destination-chain tx coordinates
// populated only when is_src=false and the destination side had not already
// recorded its own tx coordinates via DstEscrowCreated.
type FusionPlusWithdrawalTxCoords struct {
	TxHash         string
	BlockNumber    uint64
	BlockTimestamp uint64
	LogIndex       uint32
}
