// Package correlator implements the Fusion+ cross-chain swap state machine:
// it turns decoded escrow events, arriving independently from each chain's
// poller in arbitrary relative order, into a single convergent swap row.
package correlator

import (
	"context"
	"fmt"

	"evmindexer/internal/decode"
	"evmindexer/internal/store"
)

// TxCoords is the observing chain's position for an event: where to resume
// from and what to stamp onto the swap row.
type TxCoords struct {
	TxHash         string
	BlockNumber    uint64
	BlockTimestamp uint64
	LogIndex       uint32
}

// Correlator applies Fusion+ event transitions against a Repository. It
// holds no per-swap state of its own — every decision is made by reading
// and conditionally writing the store, so correctness does not depend on
// which chain's poller happens to observe an event first.
type Correlator struct {
	repo store.Repository
}

// New builds a Correlator backed by repo.
func New(repo store.Repository) *Correlator {
	return &Correlator{repo: repo}
}

// SrcEscrowCreated inserts a new swap row in (created, pending) state.
// A duplicate SrcEscrowCreated (already inserted by order_hash) is a no-op.
func (c *Correlator) SrcEscrowCreated(ctx context.Context, chainID uint32, tx TxCoords, f decode.SrcEscrowCreated) (bool, error) {
	inserted, err := c.repo.InsertFusionPlusSwap(ctx, store.FusionPlusSwap{
		OrderHash: f.OrderHash,
		Hashlock:  f.Hashlock,

		SrcChainID:        chainID,
		SrcTxHash:         tx.TxHash,
		SrcBlockNumber:    tx.BlockNumber,
		SrcBlockTimestamp: tx.BlockTimestamp,
		SrcLogIndex:       tx.LogIndex,
		SrcMaker:          f.SrcMaker,
		SrcTaker:          f.SrcTaker,
		SrcToken:          f.SrcToken,
		SrcAmount:         f.SrcAmount,
		SrcSafetyDeposit:  f.SrcSafetyDeposit,
		SrcTimelocks:      f.SrcTimelocks,

		DstChainID:       f.DstChainID,
		DstMaker:         f.DstMaker,
		DstToken:         f.DstToken,
		DstAmount:        f.DstAmount,
		DstSafetyDeposit: f.DstSafetyDeposit,
	})
	if err != nil {
		return false, fmt.Errorf("correlator: src escrow created: %w", err)
	}
	return inserted, nil
}

// DstEscrowCreated fills in the destination half of a swap already known by
// order_hash, scoped to the chain that emitted it. No-op if the order is
// unknown or the destination side is already populated.
func (c *Correlator) DstEscrowCreated(ctx context.Context, chainID uint32, tx TxCoords, escrowAddress string, f decode.DstEscrowCreated) (bool, error) {
	updated, err := c.repo.UpdateFusionPlusDst(ctx, f.OrderHash, chainID, store.FusionPlusDstUpdate{
		TxHash:         tx.TxHash,
		BlockNumber:    tx.BlockNumber,
		BlockTimestamp: tx.BlockTimestamp,
		LogIndex:       tx.LogIndex,
		EscrowAddress:  escrowAddress,
		DstTaker:       f.DstTaker,
		DstTimelocks:   f.DstTimelocks,
	})
	if err != nil {
		return false, fmt.Errorf("correlator: dst escrow created: %w", err)
	}
	return updated, nil
}

// EscrowWithdrawal resolves the revealed secret to its hashlock, determines
// whether the observing chain is the swap's source or destination side, and
// marks that side withdrawn. A withdrawal observed on a chain that matches
// neither side of a known swap (or no swap at all) is a no-op — the log may
// belong to an escrow this indexer never saw created.
func (c *Correlator) EscrowWithdrawal(ctx context.Context, chainID uint32, tx TxCoords, f decode.EscrowWithdrawal) (bool, error) {
	hashlock, err := decode.Hashlock(f.Secret)
	if err != nil {
		// malformed secret: nothing to correlate, not a store failure.
		return false, nil
	}

	swap, ok, err := c.repo.GetFusionPlusSwapByHashlock(ctx, hashlock)
	if err != nil {
		return false, fmt.Errorf("correlator: lookup swap by hashlock: %w", err)
	}
	if !ok {
		return false, nil
	}

	var isSrc bool
	switch chainID {
	case swap.SrcChainID:
		isSrc = true
	case swap.DstChainID:
		isSrc = false
	default:
		return false, nil
	}

	updated, err := c.repo.UpdateFusionPlusWithdrawalByHashlock(ctx, hashlock, chainID, isSrc, f.Secret, store.FusionPlusWithdrawalTxCoords{
		TxHash:         tx.TxHash,
		BlockNumber:    tx.BlockNumber,
		BlockTimestamp: tx.BlockTimestamp,
		LogIndex:       tx.LogIndex,
	})
	if err != nil {
		return false, fmt.Errorf("correlator: escrow withdrawal: %w", err)
	}
	return updated, nil
}

// EscrowCancelled only labels the transaction's transfers; it never updates
// swap status. The event carries no correlation key in its payload (no
// order_hash, no hashlock) — the escrow address alone does not identify
// which swap it belongs to without a reverse index this indexer does not
// maintain, so inventing a match here would fabricate a correlation the
// event itself doesn't supply.
func (c *Correlator) EscrowCancelled(ctx context.Context, chainID uint32, txHash string) error {
	if _, err := c.repo.LabelTransfers(ctx, chainID, txHash, store.SwapTypeFusionPlus); err != nil {
		return fmt.Errorf("correlator: escrow cancelled: label transfers: %w", err)
	}
	return nil
}
