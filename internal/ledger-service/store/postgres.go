package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/radieske/livebet-ledger/internal/ledger-service/domain"
)

// Postgres implementa o Repository sobre lib/pq
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// SaveAccount grava o saldo e o lançamento na mesma transação
func (p *Postgres) SaveAccount(ctx context.Context, a domain.Account, e domain.LedgerEntry) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO accounts(user_id, balance_cents, currency, updated_at)
		VALUES ($1,$2,$3,now())
		ON CONFLICT (user_id) DO UPDATE SET balance_cents = EXCLUDED.balance_cents, updated_at = now()`,
		a.UserID, a.Balance, a.Currency); err != nil {
		return fmt.Errorf("upsert account: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO ledger_entries(user_id, operation_type, amount_cents, balance_after_cents, ref, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		e.UserID, string(e.Op), e.Amount, e.BalanceAfter, e.Ref, e.At); err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}

	return tx.Commit()
}

func (p *Postgres) SaveEvent(ctx context.Context, e domain.Event) error {
	teams, err := json.Marshal(e.Teams)
	if err != nil {
		return err
	}
	opts, err := json.Marshal(e.Options)
	if err != nil {
		return err
	}
	st, err := json.Marshal(e.Stats)
	if err != nil {
		return err
	}
	var result []byte
	if e.Result != nil {
		if result, err = json.Marshal(e.Result); err != nil {
			return err
		}
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO events(id, title, description, category, teams, status, start_time, end_time, options, result, stats, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now())
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			teams = EXCLUDED.teams,
			status = EXCLUDED.status,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			options = EXCLUDED.options,
			result = EXCLUDED.result,
			stats = EXCLUDED.stats,
			updated_at = now()`,
		e.ID, e.Title, e.Description, string(e.Category), teams, string(e.Status),
		e.StartTime, e.EndTime, opts, result, st)
	if err != nil {
		return fmt.Errorf("upsert event: %w", err)
	}
	return nil
}

func (p *Postgres) SaveWager(ctx context.Context, w domain.Wager) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO wagers(id, user_id, event_id, option_type, option_name, odds, line,
			amount_cents, potential_win_cents, actual_win_cents, status, placed_at, settled_at, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (id) DO UPDATE SET
			actual_win_cents = EXCLUDED.actual_win_cents,
			status = EXCLUDED.status,
			settled_at = EXCLUDED.settled_at,
			notes = EXCLUDED.notes`,
		w.ID, w.UserID, w.EventID, string(w.Option.Type), w.Option.Name, w.Option.Odds, w.Option.Line,
		w.Amount, w.PotentialWin, w.ActualWin, string(w.Status), w.PlacedAt, w.SettledAt, w.Notes)
	if err != nil {
		return fmt.Errorf("upsert wager: %w", err)
	}
	return nil
}

func (p *Postgres) LoadAccounts(ctx context.Context) ([]domain.Account, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT user_id, balance_cents, currency FROM accounts ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Account
	for rows.Next() {
		var a domain.Account
		if err := rows.Scan(&a.UserID, &a.Balance, &a.Currency); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (p *Postgres) LoadEvents(ctx context.Context) ([]domain.Event, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, title, description, category, teams, status, start_time, end_time, options, result, stats
		FROM events ORDER BY start_time`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var (
			e                       domain.Event
			category, status        string
			teams, opts, result, st []byte
			end                     sql.NullTime
		)
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &category, &teams, &status,
			&e.StartTime, &end, &opts, &result, &st); err != nil {
			return nil, err
		}
		e.Category = domain.Category(category)
		e.Status = domain.EventStatus(status)
		if end.Valid {
			t := end.Time
			e.EndTime = &t
		}
		if err := json.Unmarshal(teams, &e.Teams); err != nil {
			return nil, fmt.Errorf("event %s teams: %w", e.ID, err)
		}
		if err := json.Unmarshal(opts, &e.Options); err != nil {
			return nil, fmt.Errorf("event %s options: %w", e.ID, err)
		}
		if err := json.Unmarshal(st, &e.Stats); err != nil {
			return nil, fmt.Errorf("event %s stats: %w", e.ID, err)
		}
		if len(result) > 0 {
			var r domain.Outcome
			if err := json.Unmarshal(result, &r); err != nil {
				return nil, fmt.Errorf("event %s result: %w", e.ID, err)
			}
			e.Result = &r
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *Postgres) LoadWagers(ctx context.Context) ([]domain.Wager, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, event_id, option_type, option_name, odds, line,
			amount_cents, potential_win_cents, actual_win_cents, status, placed_at, settled_at, notes
		FROM wagers ORDER BY placed_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Wager
	for rows.Next() {
		var (
			w            domain.Wager
			optType, sts string
			settled      sql.NullTime
		)
		if err := rows.Scan(&w.ID, &w.UserID, &w.EventID, &optType, &w.Option.Name, &w.Option.Odds, &w.Option.Line,
			&w.Amount, &w.PotentialWin, &w.ActualWin, &sts, &w.PlacedAt, &settled, &w.Notes); err != nil {
			return nil, err
		}
		w.Option.Type = domain.OptionType(optType)
		w.Status = domain.WagerStatus(sts)
		if settled.Valid {
			t := settled.Time
			w.SettledAt = &t
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
