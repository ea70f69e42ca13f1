package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists the ledger in PostgreSQL. Each state transition is a
// single database transaction that locks the wallet row, so the balance
// mutation and the transaction/hold write land or abort together.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed ledger store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema applies the ledger schema. Safe to run on every startup.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	const ddl = `
        CREATE TABLE IF NOT EXISTS wallets (
            id          UUID PRIMARY KEY,
            owner_id    TEXT UNIQUE NOT NULL,
            available   BIGINT NOT NULL DEFAULT 0 CHECK (available >= 0),
            locked      BIGINT NOT NULL DEFAULT 0 CHECK (locked >= 0),
            spent       BIGINT NOT NULL DEFAULT 0,
            created_at  TIMESTAMPTZ NOT NULL,
            updated_at  TIMESTAMPTZ NOT NULL
        );
        CREATE TABLE IF NOT EXISTS ledger_transactions (
            id              UUID PRIMARY KEY,
            wallet_id       UUID NOT NULL REFERENCES wallets(id),
            type            TEXT NOT NULL,
            amount          BIGINT NOT NULL CHECK (amount > 0),
            status          TEXT NOT NULL,
            reference       TEXT UNIQUE NOT NULL,
            hold_id         TEXT NOT NULL DEFAULT '',
            balance_before  BIGINT NOT NULL DEFAULT 0,
            balance_after   BIGINT NOT NULL DEFAULT 0,
            hash            TEXT NOT NULL DEFAULT '',
            metadata        JSONB,
            fraud_flags     TEXT[],
            reversal_reason TEXT,
            reversal_actor  TEXT,
            reversal_tx_id  UUID,
            reversed_at     TIMESTAMPTZ,
            created_at      TIMESTAMPTZ NOT NULL,
            committed_at    TIMESTAMPTZ
        );
        CREATE INDEX IF NOT EXISTS idx_ledger_tx_wallet_created
            ON ledger_transactions (wallet_id, created_at);
        CREATE TABLE IF NOT EXISTS holds (
            id          TEXT PRIMARY KEY,
            wallet_id   UUID NOT NULL REFERENCES wallets(id),
            purpose     TEXT NOT NULL,
            amount      BIGINT NOT NULL CHECK (amount > 0),
            status      TEXT NOT NULL,
            reason      TEXT NOT NULL DEFAULT '',
            expires_at  TIMESTAMPTZ NOT NULL,
            created_at  TIMESTAMPTZ NOT NULL,
            resolved_at TIMESTAMPTZ
        );
        CREATE INDEX IF NOT EXISTS idx_holds_wallet_status ON holds (wallet_id, status);
        CREATE TABLE IF NOT EXISTS fraud_scores (
            user_id        TEXT PRIMARY KEY,
            score          INT NOT NULL DEFAULT 0,
            factors        JSONB,
            flagged        BOOLEAN NOT NULL DEFAULT FALSE,
            vend_count     INT NOT NULL DEFAULT 0,
            expired_holds  INT NOT NULL DEFAULT 0,
            cooldown_until TIMESTAMPTZ,
            updated_at     TIMESTAMPTZ NOT NULL
        );`
	_, err := db.Exec(ctx, ddl)
	return err
}

func (s *PostgresStore) EnsureWallet(ctx context.Context, walletID, ownerID string) (Wallet, error) {
	if walletID == "" {
		walletID = uuid.NewString()
	}
	id, err := uuid.Parse(walletID)
	if err != nil {
		return Wallet{}, fmt.Errorf("parse wallet id: %w", err)
	}
	now := time.Now().UTC()
	_, err = s.db.Exec(ctx, `INSERT INTO wallets (id, owner_id, created_at, updated_at)
        VALUES ($1, $2, $3, $3) ON CONFLICT (owner_id) DO NOTHING`, id, ownerID, now)
	if err != nil {
		return Wallet{}, err
	}
	return s.WalletByOwner(ctx, ownerID)
}

func (s *PostgresStore) Wallet(ctx context.Context, walletID string) (Wallet, error) {
	row := s.db.QueryRow(ctx, `SELECT id, owner_id, available, locked, spent, created_at, updated_at
        FROM wallets WHERE id = $1`, walletID)
	return scanWallet(row)
}

func (s *PostgresStore) WalletByOwner(ctx context.Context, ownerID string) (Wallet, error) {
	row := s.db.QueryRow(ctx, `SELECT id, owner_id, available, locked, spent, created_at, updated_at
        FROM wallets WHERE owner_id = $1`, ownerID)
	return scanWallet(row)
}

func (s *PostgresStore) Snapshot(ctx context.Context, walletID string) (Snapshot, error) {
	row := s.db.QueryRow(ctx, `SELECT id, owner_id, available, locked, spent, created_at, updated_at
        FROM wallets WHERE id = $1`, walletID)
	w, err := scanWallet(row)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		WalletID:  w.ID,
		Available: w.Available,
		Locked:    w.Locked,
		Spent:     w.Spent,
		AsOf:      time.Now().UTC(),
	}, nil
}

func (s *PostgresStore) Credit(ctx context.Context, walletID string, amount int64, reference string, metadata map[string]string) (Transaction, error) {
	return s.post(ctx, walletID, TypeCredit, amount, reference, "", metadata, nil)
}

func (s *PostgresStore) Debit(ctx context.Context, walletID string, amount int64, reference string, metadata map[string]string) (Transaction, error) {
	return s.post(ctx, walletID, TypeDebit, amount, reference, "", metadata, nil)
}

func (s *PostgresStore) Open(ctx context.Context, walletID string, txType TransactionType, amount int64, reference string, metadata map[string]string) (Transaction, error) {
	if txType != TypeCredit && txType != TypeDebit {
		return Transaction{}, fmt.Errorf("unsupported transaction type %q", txType)
	}
	if amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	w, err := lockWallet(ctx, tx, walletID)
	if err != nil {
		return Transaction{}, err
	}
	if existing, err := transactionByReference(ctx, tx, reference); err == nil {
		return existing, ErrDuplicateReference
	} else if !errors.Is(err, ErrNotFound) {
		return Transaction{}, err
	}

	rec := Transaction{
		ID:            uuid.NewString(),
		WalletID:      walletID,
		Type:          txType,
		Amount:        amount,
		Status:        StatusPending,
		Reference:     reference,
		BalanceBefore: w.Available,
		Metadata:      metadata,
		CreatedAt:     time.Now().UTC(),
	}
	if err := insertTransaction(ctx, tx, rec); err != nil {
		return Transaction{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, err
	}
	return rec, nil
}

func (s *PostgresStore) Commit(ctx context.Context, transactionID string) (Transaction, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	rec, err := transactionByIDForUpdate(ctx, tx, transactionID)
	if err != nil {
		return Transaction{}, err
	}
	switch rec.Status {
	case StatusCommitted:
		return rec, ErrImmutable
	case StatusReversed:
		return rec, ErrInvalidStateTransition
	}

	w, err := lockWallet(ctx, tx, rec.WalletID)
	if err != nil {
		return Transaction{}, err
	}

	switch rec.Type {
	case TypeCredit:
		w.Available += rec.Amount
	case TypeDebit:
		if w.Available < rec.Amount {
			return Transaction{}, ErrInsufficientFunds
		}
		w.Available -= rec.Amount
	}

	now := time.Now().UTC()
	rec.Status = StatusCommitted
	if rec.Type == TypeCredit {
		rec.BalanceBefore = w.Available - rec.Amount
	} else {
		rec.BalanceBefore = w.Available + rec.Amount
	}
	rec.BalanceAfter = w.Available
	rec.Hash = CommitmentHash(rec.Amount, rec.Type, rec.Reference, rec.BalanceBefore, rec.BalanceAfter)
	rec.CommittedAt = now

	if _, err := tx.Exec(ctx, `UPDATE wallets SET available = $2, updated_at = $3 WHERE id = $1`,
		w.ID, w.Available, now); err != nil {
		return Transaction{}, err
	}
	if _, err := tx.Exec(ctx, `UPDATE ledger_transactions
        SET status = $2, balance_before = $3, balance_after = $4, hash = $5, committed_at = $6
        WHERE id = $1`,
		rec.ID, rec.Status, rec.BalanceBefore, rec.BalanceAfter, rec.Hash, rec.CommittedAt); err != nil {
		return Transaction{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, err
	}
	return rec, nil
}

func (s *PostgresStore) Reverse(ctx context.Context, transactionID, reason, actorID string) (Transaction, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	orig, err := transactionByIDForUpdate(ctx, tx, transactionID)
	if err != nil {
		return Transaction{}, err
	}
	if orig.Status != StatusCommitted {
		return Transaction{}, ErrInvalidStateTransition
	}
	if orig.Type != TypeCredit && orig.Type != TypeDebit {
		return Transaction{}, ErrInvalidStateTransition
	}

	compType := TypeDebit
	if orig.Type == TypeDebit {
		compType = TypeCredit
	}

	comp, err := postInTx(ctx, tx, orig.WalletID, compType, orig.Amount, "rev:"+orig.Reference, orig.HoldID,
		map[string]string{"reversal_of": orig.ID, "reason": reason}, nil)
	if err != nil {
		return Transaction{}, err
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `UPDATE ledger_transactions
        SET status = $2, reversal_reason = $3, reversal_actor = $4, reversal_tx_id = $5, reversed_at = $6
        WHERE id = $1`,
		orig.ID, StatusReversed, reason, actorID, comp.ID, now); err != nil {
		return Transaction{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, err
	}
	return comp, nil
}

func (s *PostgresStore) Transaction(ctx context.Context, transactionID string) (Transaction, error) {
	row := s.db.QueryRow(ctx, selectTransaction+` WHERE id = $1`, transactionID)
	return scanTransaction(row)
}

func (s *PostgresStore) ListTransactions(ctx context.Context, walletID string, filter TransactionFilter) ([]Transaction, error) {
	query := selectTransaction + ` WHERE wallet_id = $1`
	args := []any{walletID}
	if filter.Type != "" {
		args = append(args, filter.Type)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	query += " ORDER BY created_at"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		rec, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) PlaceHold(ctx context.Context, input PlaceHoldInput) (Hold, error) {
	if input.Amount <= 0 {
		return Hold{}, ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Hold{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	w, err := lockWallet(ctx, tx, input.WalletID)
	if err != nil {
		return Hold{}, err
	}

	holdID := input.HoldID
	if holdID == "" {
		holdID = uuid.NewString()
	}
	if existing, err := holdByID(ctx, tx, holdID, false); err == nil {
		return existing, ErrDuplicateHoldID
	} else if !errors.Is(err, ErrNotFound) {
		return Hold{}, err
	}

	if w.Available < input.Amount {
		return Hold{}, ErrInsufficientFunds
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `UPDATE wallets SET available = available - $2, locked = locked + $2, updated_at = $3
        WHERE id = $1`, w.ID, input.Amount, now); err != nil {
		return Hold{}, err
	}

	rec := Transaction{
		ID:            uuid.NewString(),
		WalletID:      input.WalletID,
		Type:          TypeHold,
		Amount:        input.Amount,
		Status:        StatusCommitted,
		Reference:     "hold:" + holdID,
		HoldID:        holdID,
		BalanceBefore: w.Available,
		BalanceAfter:  w.Available - input.Amount,
		FraudFlags:    input.FraudFlags,
		CreatedAt:     now,
		CommittedAt:   now,
	}
	rec.Hash = CommitmentHash(rec.Amount, rec.Type, rec.Reference, rec.BalanceBefore, rec.BalanceAfter)
	if err := insertTransaction(ctx, tx, rec); err != nil {
		return Hold{}, err
	}

	h := Hold{
		ID:        holdID,
		WalletID:  input.WalletID,
		Purpose:   input.Purpose,
		Amount:    input.Amount,
		Status:    HoldActive,
		ExpiresAt: input.ExpiresAt.UTC(),
		CreatedAt: now,
	}
	if _, err := tx.Exec(ctx, `INSERT INTO holds (id, wallet_id, purpose, amount, status, expires_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		h.ID, h.WalletID, h.Purpose, h.Amount, h.Status, h.ExpiresAt, h.CreatedAt); err != nil {
		return Hold{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Hold{}, err
	}
	return h, nil
}

func (s *PostgresStore) CaptureHold(ctx context.Context, holdID string) (Hold, error) {
	return s.resolve(ctx, holdID, HoldCaptured, "")
}

func (s *PostgresStore) ReleaseHold(ctx context.Context, holdID, reason string) (Hold, error) {
	return s.resolve(ctx, holdID, HoldReleased, reason)
}

func (s *PostgresStore) RefundHold(ctx context.Context, holdID, reason string) (Hold, error) {
	return s.resolve(ctx, holdID, HoldRefunded, reason)
}

func (s *PostgresStore) ForfeitHold(ctx context.Context, holdID, reason string) (Hold, error) {
	return s.resolve(ctx, holdID, HoldForfeited, reason)
}

func (s *PostgresStore) Hold(ctx context.Context, holdID string) (Hold, error) {
	row := s.db.QueryRow(ctx, selectHold+` WHERE id = $1`, holdID)
	return scanHold(row)
}

func (s *PostgresStore) ExpiredHolds(ctx context.Context, now time.Time, limit int) ([]Hold, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(ctx, selectHold+` WHERE status = $1 AND expires_at <= $2 ORDER BY expires_at LIMIT $3`,
		HoldActive, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Hold
	for rows.Next() {
		h, err := scanHold(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// resolve applies a terminal hold transition: the hold row is locked, its
// status re-checked, and the wallet mutation plus ledger entry written in the
// same database transaction. A racing sweep or capture loses here with
// ErrInvalidStateTransition and no balance change.
func (s *PostgresStore) resolve(ctx context.Context, holdID string, target HoldStatus, reason string) (Hold, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Hold{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	h, err := holdByID(ctx, tx, holdID, true)
	if err != nil {
		return Hold{}, err
	}
	if h.Status != HoldActive {
		return h, ErrInvalidStateTransition
	}

	w, err := lockWallet(ctx, tx, h.WalletID)
	if err != nil {
		return Hold{}, err
	}

	var txType TransactionType
	var reference string
	metadata := map[string]string{}
	if reason != "" {
		metadata["reason"] = reason
	}

	now := time.Now().UTC()
	before := w.Available

	switch target {
	case HoldCaptured:
		txType = TypeDebit
		reference = "capture:" + holdID
		metadata["event"] = "capture"
		w.Locked -= h.Amount
		w.Spent += h.Amount
	case HoldReleased:
		txType = TypeRelease
		reference = "release:" + holdID
		w.Locked -= h.Amount
		w.Available += h.Amount
	case HoldRefunded:
		txType = TypeRelease
		reference = "refund:" + holdID
		w.Locked -= h.Amount
		w.Available += h.Amount
	case HoldForfeited:
		txType = TypeDebit
		reference = "forfeit:" + holdID
		metadata["event"] = "forfeit"
		w.Locked -= h.Amount
	default:
		return Hold{}, ErrInvalidStateTransition
	}

	if _, err := tx.Exec(ctx, `UPDATE wallets SET available = $2, locked = $3, spent = $4, updated_at = $5
        WHERE id = $1`, w.ID, w.Available, w.Locked, w.Spent, now); err != nil {
		return Hold{}, err
	}

	rec := Transaction{
		ID:            uuid.NewString(),
		WalletID:      h.WalletID,
		Type:          txType,
		Amount:        h.Amount,
		Status:        StatusCommitted,
		Reference:     reference,
		HoldID:        holdID,
		BalanceBefore: before,
		BalanceAfter:  w.Available,
		Metadata:      metadata,
		CreatedAt:     now,
		CommittedAt:   now,
	}
	rec.Hash = CommitmentHash(rec.Amount, rec.Type, rec.Reference, rec.BalanceBefore, rec.BalanceAfter)
	if err := insertTransaction(ctx, tx, rec); err != nil {
		return Hold{}, err
	}

	if _, err := tx.Exec(ctx, `UPDATE holds SET status = $2, reason = $3, resolved_at = $4 WHERE id = $1`,
		holdID, target, reason, now); err != nil {
		return Hold{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Hold{}, err
	}

	h.Status = target
	h.Reason = reason
	h.ResolvedAt = now
	return h, nil
}

func (s *PostgresStore) post(ctx context.Context, walletID string, txType TransactionType, amount int64, reference, holdID string, metadata map[string]string, fraudFlags []string) (Transaction, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	rec, err := postInTx(ctx, tx, walletID, txType, amount, reference, holdID, metadata, fraudFlags)
	if err != nil {
		return rec, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, err
	}
	return rec, nil
}

// postInTx opens and commits a credit/debit inside the caller's transaction.
func postInTx(ctx context.Context, tx pgx.Tx, walletID string, txType TransactionType, amount int64, reference, holdID string, metadata map[string]string, fraudFlags []string) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}

	w, err := lockWallet(ctx, tx, walletID)
	if err != nil {
		return Transaction{}, err
	}
	if existing, err := transactionByReference(ctx, tx, reference); err == nil {
		return existing, ErrDuplicateReference
	} else if !errors.Is(err, ErrNotFound) {
		return Transaction{}, err
	}

	before := w.Available
	switch txType {
	case TypeCredit:
		w.Available += amount
	case TypeDebit:
		if w.Available < amount {
			return Transaction{}, ErrInsufficientFunds
		}
		w.Available -= amount
	default:
		return Transaction{}, fmt.Errorf("unsupported transaction type %q", txType)
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `UPDATE wallets SET available = $2, updated_at = $3 WHERE id = $1`,
		w.ID, w.Available, now); err != nil {
		return Transaction{}, err
	}

	rec := Transaction{
		ID:            uuid.NewString(),
		WalletID:      walletID,
		Type:          txType,
		Amount:        amount,
		Status:        StatusCommitted,
		Reference:     reference,
		HoldID:        holdID,
		BalanceBefore: before,
		BalanceAfter:  w.Available,
		Metadata:      metadata,
		FraudFlags:    fraudFlags,
		CreatedAt:     now,
		CommittedAt:   now,
	}
	rec.Hash = CommitmentHash(rec.Amount, rec.Type, rec.Reference, rec.BalanceBefore, rec.BalanceAfter)
	if err := insertTransaction(ctx, tx, rec); err != nil {
		return Transaction{}, err
	}
	return rec, nil
}

const selectTransaction = `SELECT id, wallet_id, type, amount, status, reference, hold_id,
    balance_before, balance_after, hash, metadata, fraud_flags,
    reversal_reason, reversal_actor, reversal_tx_id, reversed_at,
    created_at, committed_at FROM ledger_transactions`

const selectHold = `SELECT id, wallet_id, purpose, amount, status, reason, expires_at, created_at, resolved_at FROM holds`

func lockWallet(ctx context.Context, tx pgx.Tx, walletID string) (Wallet, error) {
	row := tx.QueryRow(ctx, `SELECT id, owner_id, available, locked, spent, created_at, updated_at
        FROM wallets WHERE id = $1 FOR UPDATE`, walletID)
	return scanWallet(row)
}

func transactionByReference(ctx context.Context, tx pgx.Tx, reference string) (Transaction, error) {
	row := tx.QueryRow(ctx, selectTransaction+` WHERE reference = $1`, reference)
	return scanTransaction(row)
}

func transactionByIDForUpdate(ctx context.Context, tx pgx.Tx, id string) (Transaction, error) {
	row := tx.QueryRow(ctx, selectTransaction+` WHERE id = $1 FOR UPDATE`, id)
	return scanTransaction(row)
}

func holdByID(ctx context.Context, tx pgx.Tx, holdID string, forUpdate bool) (Hold, error) {
	query := selectHold + ` WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	row := tx.QueryRow(ctx, query, holdID)
	return scanHold(row)
}

func insertTransaction(ctx context.Context, tx pgx.Tx, rec Transaction) error {
	var committedAt *time.Time
	if !rec.CommittedAt.IsZero() {
		committedAt = &rec.CommittedAt
	}
	_, err := tx.Exec(ctx, `INSERT INTO ledger_transactions
        (id, wallet_id, type, amount, status, reference, hold_id, balance_before, balance_after,
         hash, metadata, fraud_flags, created_at, committed_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		rec.ID, rec.WalletID, rec.Type, rec.Amount, rec.Status, rec.Reference, rec.HoldID,
		rec.BalanceBefore, rec.BalanceAfter, rec.Hash, rec.Metadata, rec.FraudFlags,
		rec.CreatedAt, committedAt)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWallet(row rowScanner) (Wallet, error) {
	var w Wallet
	var id uuid.UUID
	if err := row.Scan(&id, &w.OwnerID, &w.Available, &w.Locked, &w.Spent, &w.CreatedAt, &w.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrNotFound
		}
		return Wallet{}, err
	}
	w.ID = id.String()
	w.CreatedAt = w.CreatedAt.UTC()
	w.UpdatedAt = w.UpdatedAt.UTC()
	return w, nil
}

func scanTransaction(row rowScanner) (Transaction, error) {
	var rec Transaction
	var id, walletID uuid.UUID
	var reversalReason, reversalActor *string
	var reversalTxID *uuid.UUID
	var reversedAt, committedAt *time.Time
	if err := row.Scan(&id, &walletID, &rec.Type, &rec.Amount, &rec.Status, &rec.Reference, &rec.HoldID,
		&rec.BalanceBefore, &rec.BalanceAfter, &rec.Hash, &rec.Metadata, &rec.FraudFlags,
		&reversalReason, &reversalActor, &reversalTxID, &reversedAt,
		&rec.CreatedAt, &committedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrNotFound
		}
		return Transaction{}, err
	}
	rec.ID = id.String()
	rec.WalletID = walletID.String()
	rec.CreatedAt = rec.CreatedAt.UTC()
	if committedAt != nil {
		rec.CommittedAt = committedAt.UTC()
	}
	if reversalReason != nil {
		rec.Reversal = &Reversal{Reason: *reversalReason}
		if reversalActor != nil {
			rec.Reversal.ActorID = *reversalActor
		}
		if reversalTxID != nil {
			rec.Reversal.CompensatingTxID = reversalTxID.String()
		}
		if reversedAt != nil {
			rec.Reversal.ReversedAt = reversedAt.UTC()
		}
	}
	return rec, nil
}

func scanHold(row rowScanner) (Hold, error) {
	var h Hold
	var walletID uuid.UUID
	var resolvedAt *time.Time
	if err := row.Scan(&h.ID, &walletID, &h.Purpose, &h.Amount, &h.Status, &h.Reason,
		&h.ExpiresAt, &h.CreatedAt, &resolvedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Hold{}, ErrNotFound
		}
		return Hold{}, err
	}
	h.WalletID = walletID.String()
	h.ExpiresAt = h.ExpiresAt.UTC()
	h.CreatedAt = h.CreatedAt.UTC()
	if resolvedAt != nil {
		h.ResolvedAt = resolvedAt.UTC()
	}
	return h, nil
}
