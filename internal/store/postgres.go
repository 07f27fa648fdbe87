package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/atmx/wager-ledger/internal/model"
)

// schema is applied by EnsureSchema. Amount columns are NUMERIC; the
// accounts column holds the owned accounts and their open wagers as one
// JSONB document so the aggregate is written in a single UPDATE.
const schema = `
CREATE TABLE IF NOT EXISTS user_aggregates (
	user_id                      TEXT PRIMARY KEY,
	name                         TEXT NOT NULL DEFAULT '',
	email                        TEXT NOT NULL DEFAULT '',
	image                        TEXT NOT NULL DEFAULT '',
	balance_sum_current          NUMERIC NOT NULL DEFAULT 0,
	balance_sum_before_bet       NUMERIC NOT NULL DEFAULT 0,
	balance_sum_after_settlement NUMERIC NOT NULL DEFAULT 0,
	cycle_profit_or_loss         NUMERIC NOT NULL DEFAULT 0,
	net_profit_or_loss           NUMERIC NOT NULL DEFAULT 0,
	accounts                     JSONB NOT NULL DEFAULT '[]',
	created_at                   TIMESTAMPTZ NOT NULL,
	updated_at                   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS bet_history (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL,
	account_id     TEXT NOT NULL,
	account_email  TEXT NOT NULL,
	side_a_label   TEXT NOT NULL,
	side_a_odds    NUMERIC NOT NULL,
	side_b_label   TEXT NOT NULL,
	side_b_odds    NUMERIC NOT NULL,
	pot            NUMERIC NOT NULL,
	stake          NUMERIC NOT NULL,
	placed_at      TIMESTAMPTZ NOT NULL,
	settled_at     TIMESTAMPTZ NOT NULL,
	winning_side   TEXT NOT NULL,
	outcome        TEXT NOT NULL,
	payout         NUMERIC NOT NULL,
	profit         NUMERIC NOT NULL,
	balance_before NUMERIC NOT NULL,
	balance_after  NUMERIC NOT NULL
);

CREATE INDEX IF NOT EXISTS bet_history_user_settled
	ON bet_history (user_id, settled_at DESC, id DESC);
`

const selectAggregate = `
SELECT user_id, name, email, image,
       balance_sum_current::TEXT, balance_sum_before_bet::TEXT,
       balance_sum_after_settlement::TEXT, cycle_profit_or_loss::TEXT,
       net_profit_or_loss::TEXT, accounts, created_at, updated_at
FROM user_aggregates WHERE user_id = $1`

const selectHistory = `
SELECT id, user_id, account_id, account_email,
       side_a_label, side_a_odds::TEXT, side_b_label, side_b_odds::TEXT,
       pot::TEXT, stake::TEXT, placed_at, settled_at, winning_side, outcome,
       payout::TEXT, profit::TEXT, balance_before::TEXT, balance_after::TEXT
FROM bet_history`

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Amounts are stored as NUMERIC; they cross the boundary through decimal
// strings and are handed to the ledger as float64.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the tables and indexes if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAggregate(ctx context.Context, agg *model.Aggregate) error {
	accounts, err := json.Marshal(nonNilAccounts(agg.Accounts))
	if err != nil {
		return fmt.Errorf("encode accounts: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO user_aggregates (user_id, name, email, image,
		        balance_sum_current, balance_sum_before_bet, balance_sum_after_settlement,
		        cycle_profit_or_loss, net_profit_or_loss, accounts, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8::NUMERIC, $9::NUMERIC, $10::JSONB, $11, $12)
		 ON CONFLICT (user_id) DO NOTHING`,
		agg.UserID, agg.Name, agg.Email, agg.Image,
		num(agg.BalanceSumCurrent), num(agg.BalanceSumBeforeBet), num(agg.BalanceSumAfterSettlement),
		num(agg.CycleProfitOrLoss), num(agg.NetProfitOrLoss),
		string(accounts), agg.CreatedAt, agg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create aggregate %s: %w", agg.UserID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, agg.UserID)
	}
	return nil
}

func (s *PostgresStore) GetAggregate(ctx context.Context, userID string) (*model.Aggregate, error) {
	return scanAggregate(s.pool.QueryRow(ctx, selectAggregate, userID), userID)
}

// Apply locks the aggregate row with SELECT ... FOR UPDATE and commits the
// aggregate UPDATE and all history INSERTs in the same transaction.
func (s *PostgresStore) Apply(ctx context.Context, userID string, fn MutateFunc) (*model.Aggregate, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	agg, err := scanAggregate(tx.QueryRow(ctx, selectAggregate+" FOR UPDATE", userID), userID)
	if err != nil {
		return nil, err
	}

	records, err := fn(agg)
	if err != nil {
		return nil, err
	}

	accounts, err := json.Marshal(nonNilAccounts(agg.Accounts))
	if err != nil {
		return nil, fmt.Errorf("encode accounts: %w", err)
	}

	err = tx.QueryRow(ctx,
		`UPDATE user_aggregates
		 SET balance_sum_current = $2::NUMERIC, balance_sum_before_bet = $3::NUMERIC,
		     balance_sum_after_settlement = $4::NUMERIC, cycle_profit_or_loss = $5::NUMERIC,
		     net_profit_or_loss = $6::NUMERIC, accounts = $7::JSONB, updated_at = now()
		 WHERE user_id = $1
		 RETURNING updated_at`,
		userID,
		num(agg.BalanceSumCurrent), num(agg.BalanceSumBeforeBet), num(agg.BalanceSumAfterSettlement),
		num(agg.CycleProfitOrLoss), num(agg.NetProfitOrLoss),
		string(accounts),
	).Scan(&agg.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update aggregate %s: %w", userID, err)
	}

	if len(records) > 0 {
		batch := &pgx.Batch{}
		for _, r := range records {
			batch.Queue(
				`INSERT INTO bet_history (id, user_id, account_id, account_email,
				        side_a_label, side_a_odds, side_b_label, side_b_odds, pot, stake,
				        placed_at, settled_at, winning_side, outcome,
				        payout, profit, balance_before, balance_after)
				 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7, $8::NUMERIC, $9::NUMERIC, $10::NUMERIC,
				         $11, $12, $13, $14, $15::NUMERIC, $16::NUMERIC, $17::NUMERIC, $18::NUMERIC)`,
				r.ID, r.UserID, r.AccountID, r.AccountEmail,
				r.SideA.Label, num(r.SideA.PayoutOdds), r.SideB.Label, num(r.SideB.PayoutOdds),
				num(r.Pot), num(r.Stake),
				r.PlacedAt, r.SettledAt, r.WinningSide, string(r.Outcome),
				num(r.Payout), num(r.Profit), num(r.BalanceBeforeSettlement), num(r.BalanceAfterSettlement),
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return nil, fmt.Errorf("insert history: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return agg, nil
}

func (s *PostgresStore) ListHistory(ctx context.Context, userID string, limit int, cursor string) ([]model.HistoryRecord, string, error) {
	after, err := decodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}
	if limit <= 0 {
		return []model.HistoryRecord{}, "", nil
	}

	var rows pgx.Rows
	if after == nil {
		rows, err = s.pool.Query(ctx,
			selectHistory+` WHERE user_id = $1 ORDER BY settled_at DESC, id DESC LIMIT $2`,
			userID, limit+1)
	} else {
		rows, err = s.pool.Query(ctx,
			selectHistory+` WHERE user_id = $1 AND (settled_at, id) < ($2, $3)
			 ORDER BY settled_at DESC, id DESC LIMIT $4`,
			userID, after.settledAt, after.id, limit+1)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	records, err := scanHistory(rows)
	if err != nil {
		return nil, "", err
	}

	next := ""
	if len(records) > limit {
		records = records[:limit]
		next = cursorOf(records[limit-1]).encode()
	}
	return records, next, nil
}

func (s *PostgresStore) PurgeHistory(ctx context.Context, userID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM bet_history WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("purge history %s: %w", userID, err)
	}
	return int(tag.RowsAffected()), nil
}

// --- Scanning helpers ---

func scanAggregate(row pgx.Row, userID string) (*model.Aggregate, error) {
	var agg model.Aggregate
	var sumCurrent, sumBefore, sumAfter, cycle, net string
	var accounts []byte

	err := row.Scan(&agg.UserID, &agg.Name, &agg.Email, &agg.Image,
		&sumCurrent, &sumBefore, &sumAfter, &cycle, &net,
		&accounts, &agg.CreatedAt, &agg.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("get aggregate %s: %w", userID, err)
	}

	if err := json.Unmarshal(accounts, &agg.Accounts); err != nil {
		return nil, fmt.Errorf("decode accounts of %s: %w", userID, err)
	}
	agg.BalanceSumCurrent = parseNum(sumCurrent)
	agg.BalanceSumBeforeBet = parseNum(sumBefore)
	agg.BalanceSumAfterSettlement = parseNum(sumAfter)
	agg.CycleProfitOrLoss = parseNum(cycle)
	agg.NetProfitOrLoss = parseNum(net)
	return &agg, nil
}

func scanHistory(rows pgx.Rows) ([]model.HistoryRecord, error) {
	records := []model.HistoryRecord{}
	for rows.Next() {
		var r model.HistoryRecord
		var outcome string
		var aOdds, bOdds, pot, stake, payout, profit, before, after string

		if err := rows.Scan(&r.ID, &r.UserID, &r.AccountID, &r.AccountEmail,
			&r.SideA.Label, &aOdds, &r.SideB.Label, &bOdds,
			&pot, &stake, &r.PlacedAt, &r.SettledAt, &r.WinningSide, &outcome,
			&payout, &profit, &before, &after); err != nil {
			return nil, err
		}

		r.PlacedAt = r.PlacedAt.UTC()
		r.SettledAt = r.SettledAt.UTC()
		r.Outcome = model.Outcome(outcome)
		r.SideA.PayoutOdds = parseNum(aOdds)
		r.SideB.PayoutOdds = parseNum(bOdds)
		r.Pot = parseNum(pot)
		r.Stake = parseNum(stake)
		r.Payout = parseNum(payout)
		r.Profit = parseNum(profit)
		r.BalanceBeforeSettlement = parseNum(before)
		r.BalanceAfterSettlement = parseNum(after)

		records = append(records, r)
	}
	return records, rows.Err()
}

// num renders a ledger amount as an exact NUMERIC literal.
func num(f float64) string {
	return decimal.NewFromFloat(f).String()
}

func parseNum(s string) float64 {
	d, _ := decimal.NewFromString(s)
	return d.InexactFloat64()
}

func nonNilAccounts(accounts []model.Account) []model.Account {
	if accounts == nil {
		return []model.Account{}
	}
	return accounts
}
