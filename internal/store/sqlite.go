// Package store implements the Repository contract over a single SQLite
// database, with the schema, dedup, and TTL-cleanup semantics every caller
// relies on.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the Repository implementation backing every table in a
// single logical database.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates (or reuses) a SQLite database at path, applies pragmas for
// WAL concurrency, and creates every table/index this package relies on.
func Open(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create dir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	// A single writer connection serializes every caller onto one
	// connection instead of an application-level lock spanning network
	// I/O. Readers share the same connection, so reads queue behind writes
	// (and each other) in the database/sql pool rather than running in
	// parallel.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = 10000",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS transfers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chain_id INTEGER NOT NULL,
			tx_hash TEXT NOT NULL,
			log_index INTEGER NOT NULL,
			token TEXT NOT NULL,
			from_addr TEXT NOT NULL,
			to_addr TEXT NOT NULL,
			value TEXT NOT NULL,
			block_number INTEGER NOT NULL,
			block_timestamp INTEGER NOT NULL,
			swap_type TEXT,
			created_at INTEGER NOT NULL,
			UNIQUE(chain_id, tx_hash, log_index)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transfers_from ON transfers(chain_id, from_addr, block_timestamp DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_transfers_to ON transfers(chain_id, to_addr, block_timestamp DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_transfers_tx ON transfers(chain_id, tx_hash)`,
		`CREATE INDEX IF NOT EXISTS idx_transfers_swap_type ON transfers(chain_id, swap_type, block_timestamp DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_transfers_created ON transfers(created_at)`,

		`CREATE TABLE IF NOT EXISTS checkpoints (
			chain_id INTEGER PRIMARY KEY,
			block_number INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS fusion_plus_swaps (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_hash TEXT NOT NULL UNIQUE,
			hashlock TEXT NOT NULL,
			secret TEXT,

			src_chain_id INTEGER NOT NULL,
			src_tx_hash TEXT NOT NULL,
			src_block_number INTEGER NOT NULL,
			src_block_timestamp INTEGER NOT NULL,
			src_log_index INTEGER NOT NULL,
			src_escrow_address TEXT,
			src_maker TEXT NOT NULL,
			src_taker TEXT NOT NULL,
			src_token TEXT NOT NULL,
			src_amount TEXT NOT NULL,
			src_safety_deposit TEXT NOT NULL,
			src_timelocks TEXT NOT NULL,
			src_status TEXT NOT NULL DEFAULT 'created',

			dst_chain_id INTEGER NOT NULL,
			dst_tx_hash TEXT,
			dst_block_number INTEGER,
			dst_block_timestamp INTEGER,
			dst_log_index INTEGER,
			dst_escrow_address TEXT,
			dst_maker TEXT NOT NULL DEFAULT '',
			dst_taker TEXT,
			dst_token TEXT NOT NULL DEFAULT '',
			dst_amount TEXT NOT NULL DEFAULT '',
			dst_safety_deposit TEXT NOT NULL DEFAULT '',
			dst_timelocks TEXT,
			dst_status TEXT NOT NULL DEFAULT 'pending',

			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fp_hashlock ON fusion_plus_swaps(hashlock)`,
		`CREATE INDEX IF NOT EXISTS idx_fp_src_chain ON fusion_plus_swaps(src_chain_id, src_block_timestamp DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_fp_dst_chain ON fusion_plus_swaps(dst_chain_id, dst_block_timestamp DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_fp_status ON fusion_plus_swaps(src_status, dst_status)`,
		`CREATE INDEX IF NOT EXISTS idx_fp_created ON fusion_plus_swaps(created_at)`,

		`CREATE TABLE IF NOT EXISTS fusion_swaps (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_hash TEXT NOT NULL,
			chain_id INTEGER NOT NULL,
			tx_hash TEXT NOT NULL,
			block_number INTEGER NOT NULL,
			block_timestamp INTEGER NOT NULL,
			log_index INTEGER NOT NULL,
			maker TEXT NOT NULL DEFAULT '',
			taker TEXT,
			maker_token TEXT,
			taker_token TEXT,
			maker_amount TEXT,
			taker_amount TEXT,
			remaining TEXT NOT NULL,
			is_partial_fill INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'filled',
			created_at INTEGER NOT NULL,
			UNIQUE(chain_id, tx_hash, log_index)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fs_order_hash ON fusion_swaps(order_hash)`,
		`CREATE INDEX IF NOT EXISTS idx_fs_chain ON fusion_swaps(chain_id, block_timestamp DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_fs_status ON fusion_swaps(status)`,
		`CREATE INDEX IF NOT EXISTS idx_fs_created ON fusion_swaps(created_at)`,

		`CREATE TABLE IF NOT EXISTS crypto2fiat_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id TEXT NOT NULL,
			token TEXT NOT NULL,
			amount TEXT NOT NULL,
			recipient TEXT NOT NULL,
			metadata TEXT,
			chain_id INTEGER NOT NULL,
			tx_hash TEXT NOT NULL,
			block_number INTEGER NOT NULL,
			block_timestamp INTEGER NOT NULL,
			log_index INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			UNIQUE(chain_id, tx_hash, log_index)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_c2f_order_id ON crypto2fiat_events(order_id)`,
		`CREATE INDEX IF NOT EXISTS idx_c2f_recipient ON crypto2fiat_events(recipient)`,
		`CREATE INDEX IF NOT EXISTS idx_c2f_chain ON crypto2fiat_events(chain_id, block_timestamp DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_c2f_created ON crypto2fiat_events(created_at)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func now() uint64 {
	return uint64(time.Now().Unix())
}

func lower(s string) string { return strings.ToLower(s) }

// --- Transfers ---------------------------------------------------------

func (s *SQLiteStore) InsertTransfer(ctx context.Context, t Transfer) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO transfers
			(chain_id, tx_hash, log_index, token, from_addr, to_addr, value, block_number, block_timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ChainID, lower(t.TxHash), t.LogIndex, lower(t.Token), lower(t.FromAddr), lower(t.ToAddr),
		t.Value, t.BlockNumber, t.BlockTimestamp, now(),
	)
	if err != nil {
		return false, fmt.Errorf("store: insert transfer: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SQLiteStore) InsertTransfersBatch(ctx context.Context, ts []Transfer) (int, error) {
	if len(ts) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin batch insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO transfers
			(chain_id, tx_hash, log_index, token, from_addr, to_addr, value, block_number, block_timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("store: prepare batch insert: %w", err)
	}
	defer stmt.Close()

	ts_ := now()
	inserted := 0
	for _, t := range ts {
		res, err := stmt.ExecContext(ctx,
			t.ChainID, lower(t.TxHash), t.LogIndex, lower(t.Token), lower(t.FromAddr), lower(t.ToAddr),
			t.Value, t.BlockNumber, t.BlockTimestamp, ts_,
		)
		if err != nil {
			return 0, fmt.Errorf("store: batch insert transfer: %w", err)
		}
		n, _ := res.RowsAffected()
		if n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit batch insert: %w", err)
	}
	return inserted, nil
}

func (s *SQLiteStore) LabelTransfers(ctx context.Context, chainID uint32, txHash, swapType string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE transfers SET swap_type = ? WHERE chain_id = ? AND tx_hash = ?`,
		swapType, chainID, lower(txHash),
	)
	if err != nil {
		return 0, fmt.Errorf("store: label transfers: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLiteStore) TransfersByTxHash(ctx context.Context, chainID uint32, txHash string) ([]Transfer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chain_id, tx_hash, log_index, token, from_addr, to_addr, value, block_number, block_timestamp, COALESCE(swap_type, ''), created_at
		FROM transfers WHERE chain_id = ? AND tx_hash = ? ORDER BY log_index ASC`,
		chainID, lower(txHash),
	)
	if err != nil {
		return nil, fmt.Errorf("store: transfers by tx hash: %w", err)
	}
	defer rows.Close()

	var out []Transfer
	for rows.Next() {
		var t Transfer
		if err := rows.Scan(&t.ChainID, &t.TxHash, &t.LogIndex, &t.Token, &t.FromAddr, &t.ToAddr,
			&t.Value, &t.BlockNumber, &t.BlockTimestamp, &t.SwapType, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan transfer: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// --- Checkpoints ---------------------------------------------------------

func (s *SQLiteStore) GetCheckpoint(ctx context.Context, chainID uint32) (uint64, bool, error) {
	var n uint64
	err := s.db.QueryRowContext(ctx, `SELECT block_number FROM checkpoints WHERE chain_id = ?`, chainID).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("store: get checkpoint: %w", err)
	}
	return n, true, nil
}

func (s *SQLiteStore) SetCheckpoint(ctx context.Context, chainID uint32, blockNumber uint64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (chain_id, block_number, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(chain_id) DO UPDATE SET block_number = excluded.block_number, updated_at = excluded.updated_at`,
		chainID, blockNumber, now(),
	)
	if err != nil {
		return fmt.Errorf("store: set checkpoint: %w", err)
	}
	return nil
}

// --- Fusion+ --------------------------------------------------------------

func (s *SQLiteStore) InsertFusionPlusSwap(ctx context.Context, sw FusionPlusSwap) (bool, error) {
	n := now()
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO fusion_plus_swaps (
			order_hash, hashlock, secret,
			src_chain_id, src_tx_hash, src_block_number, src_block_timestamp, src_log_index,
			src_escrow_address, src_maker, src_taker, src_token, src_amount,
			src_safety_deposit, src_timelocks, src_status,
			dst_chain_id, dst_maker, dst_token, dst_amount, dst_safety_deposit, dst_status,
			created_at, updated_at
		) VALUES (?, ?, NULLIF(?, ''), ?, ?, ?, ?, ?, NULLIF(?, ''), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lower(sw.OrderHash), lower(sw.Hashlock), lower(sw.Secret),
		sw.SrcChainID, lower(sw.SrcTxHash), sw.SrcBlockNumber, sw.SrcBlockTimestamp, sw.SrcLogIndex,
		lower(sw.SrcEscrowAddress), lower(sw.SrcMaker), lower(sw.SrcTaker), lower(sw.SrcToken), sw.SrcAmount,
		sw.SrcSafetyDeposit, sw.SrcTimelocks, StatusCreated,
		sw.DstChainID, lower(sw.DstMaker), lower(sw.DstToken), sw.DstAmount, sw.DstSafetyDeposit, StatusPending,
		n, n,
	)
	if err != nil {
		return false, fmt.Errorf("store: insert fusion+ swap: %w", err)
	}
	rows, _ := res.RowsAffected()
	return rows > 0, nil
}

func (s *SQLiteStore) UpdateFusionPlusDst(ctx context.Context, orderHash string, dstChainID uint32, f FusionPlusDstUpdate) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE fusion_plus_swaps SET
			dst_tx_hash = ?,
			dst_block_number = ?,
			dst_block_timestamp = ?,
			dst_log_index = ?,
			dst_escrow_address = NULLIF(?, ''),
			dst_taker = ?,
			dst_timelocks = ?,
			dst_status = ?,
			updated_at = ?
		WHERE order_hash = ? AND dst_chain_id = ? AND dst_status = ?`,
		lower(f.TxHash), f.BlockNumber, f.BlockTimestamp, f.LogIndex,
		lower(f.EscrowAddress), lower(f.DstTaker), f.DstTimelocks, StatusCreated, now(),
		lower(orderHash), dstChainID, StatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("store: update fusion+ dst: %w", err)
	}
	rows, _ := res.RowsAffected()
	return rows > 0, nil
}

func (s *SQLiteStore) UpdateFusionPlusWithdrawalByHashlock(ctx context.Context, hashlock string, chainID uint32, isSrc bool, secret string, coords FusionPlusWithdrawalTxCoords) (bool, error) {
	var query string
	if isSrc {
		query = `
			UPDATE fusion_plus_swaps SET
				src_status = ?,
				secret = COALESCE(secret, ?),
				updated_at = ?
			WHERE hashlock = ? AND src_chain_id = ? AND src_status NOT IN (?, ?)`
		res, err := s.db.ExecContext(ctx, query,
			StatusWithdrawn, lower(secret), now(),
			lower(hashlock), chainID, StatusWithdrawn, StatusCancelled,
		)
		if err != nil {
			return false, fmt.Errorf("store: update fusion+ src withdrawal: %w", err)
		}
		rows, _ := res.RowsAffected()
		return rows > 0, nil
	}

	query = `
		UPDATE fusion_plus_swaps SET
			dst_status = ?,
			secret = COALESCE(secret, ?),
			dst_tx_hash = COALESCE(dst_tx_hash, ?),
			dst_block_number = COALESCE(dst_block_number, ?),
			dst_block_timestamp = COALESCE(dst_block_timestamp, ?),
			dst_log_index = COALESCE(dst_log_index, ?),
			updated_at = ?
		WHERE hashlock = ? AND dst_chain_id = ? AND dst_status NOT IN (?, ?)`
	res, err := s.db.ExecContext(ctx, query,
		StatusWithdrawn, lower(secret), lower(coords.TxHash), coords.BlockNumber, coords.BlockTimestamp, coords.LogIndex, now(),
		lower(hashlock), chainID, StatusWithdrawn, StatusCancelled,
	)
	if err != nil {
		return false, fmt.Errorf("store: update fusion+ dst withdrawal: %w", err)
	}
	rows, _ := res.RowsAffected()
	return rows > 0, nil
}

func (s *SQLiteStore) UpdateFusionPlusCancelled(ctx context.Context, orderHash string, chainID uint32, isSrc bool) (bool, error) {
	col := "src_status"
	chainCol := "src_chain_id"
	if !isSrc {
		col = "dst_status"
		chainCol = "dst_chain_id"
	}
	query := fmt.Sprintf(`
		UPDATE fusion_plus_swaps SET %s = ?, updated_at = ?
		WHERE order_hash = ? AND %s = ? AND %s != ?`, col, chainCol, col)
	res, err := s.db.ExecContext(ctx, query, StatusCancelled, now(), lower(orderHash), chainID, StatusWithdrawn)
	if err != nil {
		return false, fmt.Errorf("store: update fusion+ cancelled: %w", err)
	}
	rows, _ := res.RowsAffected()
	return rows > 0, nil
}

func scanFusionPlusSwap(row interface {
	Scan(dest ...any) error
}) (FusionPlusSwap, error) {
	var sw FusionPlusSwap
	var secret, srcEscrow, dstTxHash, dstEscrow, dstTaker, dstTimelocks sql.NullString
	var dstBlockNumber, dstBlockTimestamp sql.NullInt64
	var dstLogIndex sql.NullInt64

	err := row.Scan(
		&sw.OrderHash, &sw.Hashlock, &secret,
		&sw.SrcChainID, &sw.SrcTxHash, &sw.SrcBlockNumber, &sw.SrcBlockTimestamp, &sw.SrcLogIndex,
		&srcEscrow, &sw.SrcMaker, &sw.SrcTaker, &sw.SrcToken, &sw.SrcAmount,
		&sw.SrcSafetyDeposit, &sw.SrcTimelocks, &sw.SrcStatus,
		&sw.DstChainID, &dstTxHash, &dstBlockNumber, &dstBlockTimestamp, &dstLogIndex,
		&dstEscrow, &sw.DstMaker, &dstTaker, &sw.DstToken, &sw.DstAmount,
		&sw.DstSafetyDeposit, &dstTimelocks, &sw.DstStatus,
		&sw.CreatedAt, &sw.UpdatedAt,
	)
	if err != nil {
		return FusionPlusSwap{}, err
	}
	sw.Secret = secret.String
	sw.SrcEscrowAddress = srcEscrow.String
	sw.DstTxHash = dstTxHash.String
	sw.DstBlockNumber = uint64(dstBlockNumber.Int64)
	sw.DstBlockTimestamp = uint64(dstBlockTimestamp.Int64)
	sw.DstLogIndex = uint32(dstLogIndex.Int64)
	sw.DstEscrowAddress = dstEscrow.String
	sw.DstTaker = dstTaker.String
	sw.DstTimelocks = dstTimelocks.String
	return sw, nil
}

const fusionPlusSelectCols = `
	order_hash, hashlock, COALESCE(secret, ''),
	src_chain_id, src_tx_hash, src_block_number, src_block_timestamp, src_log_index,
	COALESCE(src_escrow_address, ''), src_maker, src_taker, src_token, src_amount,
	src_safety_deposit, src_timelocks, src_status,
	dst_chain_id, COALESCE(dst_tx_hash, ''), COALESCE(dst_block_number, 0), COALESCE(dst_block_timestamp, 0), COALESCE(dst_log_index, 0),
	COALESCE(dst_escrow_address, ''), dst_maker, COALESCE(dst_taker, ''), dst_token, dst_amount,
	dst_safety_deposit, COALESCE(dst_timelocks, ''), dst_status,
	created_at, updated_at`

func (s *SQLiteStore) GetFusionPlusSwap(ctx context.Context, orderHash string) (FusionPlusSwap, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+fusionPlusSelectCols+` FROM fusion_plus_swaps WHERE order_hash = ?`, lower(orderHash))
	sw, err := scanFusionPlusSwap(row)
	if err == sql.ErrNoRows {
		return FusionPlusSwap{}, false, nil
	}
	if err != nil {
		return FusionPlusSwap{}, false, fmt.Errorf("store: get fusion+ swap: %w", err)
	}
	return sw, true, nil
}

func (s *SQLiteStore) GetFusionPlusSwapByHashlock(ctx context.Context, hashlock string) (FusionPlusSwap, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+fusionPlusSelectCols+` FROM fusion_plus_swaps WHERE hashlock = ?`, lower(hashlock))
	sw, err := scanFusionPlusSwap(row)
	if err == sql.ErrNoRows {
		return FusionPlusSwap{}, false, nil
	}
	if err != nil {
		return FusionPlusSwap{}, false, fmt.Errorf("store: get fusion+ swap by hashlock: %w", err)
	}
	return sw, true, nil
}

// --- Fusion (single-chain) -------------------------------------------------

func (s *SQLiteStore) InsertFusionSwap(ctx context.Context, sw FusionSwap) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO fusion_swaps (
			order_hash, chain_id, tx_hash, block_number, block_timestamp, log_index,
			maker, taker, maker_token, taker_token, maker_amount, taker_amount,
			remaining, is_partial_fill, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), ?, ?, ?, ?)`,
		lower(sw.OrderHash), sw.ChainID, lower(sw.TxHash), sw.BlockNumber, sw.BlockTimestamp, sw.LogIndex,
		lower(sw.Maker), lower(sw.Taker), lower(sw.MakerToken), lower(sw.TakerToken), sw.MakerAmount, sw.TakerAmount,
		sw.Remaining, boolToInt(sw.IsPartialFill), sw.Status, now(),
	)
	if err != nil {
		return false, fmt.Errorf("store: insert fusion swap: %w", err)
	}
	rows, _ := res.RowsAffected()
	return rows > 0, nil
}

func (s *SQLiteStore) GetFusionSwapByOrderHash(ctx context.Context, orderHash string) (FusionSwap, bool, error) {
	var sw FusionSwap
	var taker, makerToken, takerToken, makerAmount, takerAmount sql.NullString
	var isPartial int
	err := s.db.QueryRowContext(ctx, `
		SELECT order_hash, chain_id, tx_hash, block_number, block_timestamp, log_index,
			maker, COALESCE(taker, ''), COALESCE(maker_token, ''), COALESCE(taker_token, ''),
			COALESCE(maker_amount, ''), COALESCE(taker_amount, ''), remaining, is_partial_fill, status
		FROM fusion_swaps WHERE order_hash = ? ORDER BY block_timestamp DESC LIMIT 1`,
		lower(orderHash),
	).Scan(&sw.OrderHash, &sw.ChainID, &sw.TxHash, &sw.BlockNumber, &sw.BlockTimestamp, &sw.LogIndex,
		&sw.Maker, &taker, &makerToken, &takerToken, &makerAmount, &takerAmount, &sw.Remaining, &isPartial, &sw.Status)
	if err == sql.ErrNoRows {
		return FusionSwap{}, false, nil
	}
	if err != nil {
		return FusionSwap{}, false, fmt.Errorf("store: get fusion swap: %w", err)
	}
	sw.Taker = taker.String
	sw.MakerToken = makerToken.String
	sw.TakerToken = takerToken.String
	sw.MakerAmount = makerAmount.String
	sw.TakerAmount = takerAmount.String
	sw.IsPartialFill = isPartial != 0
	return sw, true, nil
}

// --- Crypto2Fiat ------------------------------------------------------------

func (s *SQLiteStore) InsertCrypto2Fiat(ctx context.Context, e Crypto2FiatEvent) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO crypto2fiat_events (
			order_id, token, amount, recipient, metadata,
			chain_id, tx_hash, block_number, block_timestamp, log_index, created_at
		) VALUES (?, ?, ?, ?, NULLIF(?, ''), ?, ?, ?, ?, ?, ?)`,
		lower(e.OrderID), lower(e.Token), e.Amount, lower(e.Recipient), e.Metadata,
		e.ChainID, lower(e.TxHash), e.BlockNumber, e.BlockTimestamp, e.LogIndex, now(),
	)
	if err != nil {
		return false, fmt.Errorf("store: insert crypto2fiat: %w", err)
	}
	rows, _ := res.RowsAffected()
	return rows > 0, nil
}

// --- Cleanup / counts -------------------------------------------------------

func (s *SQLiteStore) CleanupByCreatedAt(ctx context.Context, cutoff uint64) (CleanupCounts, error) {
	var counts CleanupCounts

	del := func(table string) (int64, error) {
		res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE created_at < ?`, table), cutoff)
		if err != nil {
			return 0, fmt.Errorf("store: cleanup %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		return n, nil
	}

	var err error
	if counts.Transfers, err = del("transfers"); err != nil {
		return counts, err
	}
	if counts.FusionPlus, err = del("fusion_plus_swaps"); err != nil {
		return counts, err
	}
	if counts.FusionSwaps, err = del("fusion_swaps"); err != nil {
		return counts, err
	}
	if counts.Crypto2Fiat, err = del("crypto2fiat_events"); err != nil {
		return counts, err
	}
	return counts, nil
}

func (s *SQLiteStore) TransferCount(ctx context.Context) (int64, error) {
	return s.count(ctx, "transfers")
}

func (s *SQLiteStore) FusionPlusCount(ctx context.Context) (int64, error) {
	return s.count(ctx, "fusion_plus_swaps")
}

func (s *SQLiteStore) FusionSwapCount(ctx context.Context) (int64, error) {
	return s.count(ctx, "fusion_swaps")
}

func (s *SQLiteStore) Crypto2FiatCount(ctx context.Context) (int64, error) {
	return s.count(ctx, "crypto2fiat_events")
}

func (s *SQLiteStore) count(ctx context.Context, table string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: count %s: %w", table, err)
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ Repository = (*SQLiteStore)(nil)
