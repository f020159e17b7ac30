package repos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"sweetshop/internal/domain"
)

// ErrInsufficientStock is returned by DecrementIfPositive when the sweet
// exists but has no units left.
var ErrInsufficientStock = errors.New("insufficient stock")

type SweetRepo struct{ db *sqlx.DB }

func NewSweetRepo(db *sqlx.DB) *SweetRepo { return &SweetRepo{db: db} }

type sweetRow struct {
	ID        string  `db:"id"`
	Name      string  `db:"name"`
	Category  string  `db:"category"`
	Price     float64 `db:"price"`
	Quantity  int     `db:"quantity"`
	CreatedAt int64   `db:"created_at"`
}

func (r sweetRow) toDomain() domain.Sweet {
	return domain.Sweet{
		ID:        r.ID,
		Name:      r.Name,
		Category:  r.Category,
		Price:     r.Price,
		Quantity:  r.Quantity,
		CreatedAt: time.Unix(0, r.CreatedAt).UTC(),
	}
}

const sweetColumns = `id, name, category, price, quantity, created_at`

func (r *SweetRepo) Insert(ctx context.Context, s domain.Sweet) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO sweets(`+sweetColumns+`, name_key, category_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		s.ID, s.Name, s.Category, s.Price, s.Quantity, s.CreatedAt.UTC().UnixNano(),
		searchKey(s.Name), searchKey(s.Category))
	return err
}

// Get returns sql.ErrNoRows when the sweet does not exist.
func (r *SweetRepo) Get(ctx context.Context, id string) (domain.Sweet, error) {
	return getSweet(ctx, r.db, id)
}

// Query returns the sweets matching every supplied filter, newest first.
func (r *SweetRepo) Query(ctx context.Context, f domain.SearchFilter) ([]domain.Sweet, error) {
	where := `1 = 1`
	args := []any{}
	if f.Name != "" {
		where += ` AND name_key LIKE ? ESCAPE '!'`
		args = append(args, containsPattern(f.Name))
	}
	if f.Category != "" {
		where += ` AND category_key LIKE ? ESCAPE '!'`
		args = append(args, containsPattern(f.Category))
	}
	if f.MinPrice != nil {
		where += ` AND price >= ?`
		args = append(args, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		where += ` AND price <= ?`
		args = append(args, *f.MaxPrice)
	}

	query := `
  SELECT ` + sweetColumns + `
  FROM sweets
  WHERE ` + where + `
  ORDER BY created_at DESC, id DESC`

	var rows []sweetRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	out := make([]domain.Sweet, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// Patch applies the non-nil fields of p in a single statement and returns
// the resulting row. Returns sql.ErrNoRows when the sweet does not exist.
func (r *SweetRepo) Patch(ctx context.Context, id string, p domain.SweetPatch) (domain.Sweet, error) {
	if p.Empty() {
		return r.Get(ctx, id)
	}
	return r.withTx(ctx, func(tx *sqlx.Tx) (domain.Sweet, error) {
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE sweets
			SET name = COALESCE(?, name),
			    name_key = COALESCE(?, name_key),
			    category = COALESCE(?, category),
			    category_key = COALESCE(?, category_key),
			    price = COALESCE(?, price),
			    quantity = COALESCE(?, quantity)
			WHERE id = ?`),
			nullable(p.Name), keyOf(p.Name), nullable(p.Category), keyOf(p.Category),
			nullable(p.Price), nullable(p.Quantity), id)
		if err != nil {
			return domain.Sweet{}, err
		}
		// MySQL reports 0 affected rows for no-op updates, so existence is
		// decided by reading the row back.
		return getSweet(ctx, tx, id)
	})
}

// DecrementIfPositive removes one unit only while quantity > 0. The check and
// the decrement are one statement, so concurrent callers cannot oversell.
func (r *SweetRepo) DecrementIfPositive(ctx context.Context, id string) (domain.Sweet, error) {
	return r.withTx(ctx, func(tx *sqlx.Tx) (domain.Sweet, error) {
		res, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE sweets
			SET quantity = quantity - 1
			WHERE id = ? AND quantity > 0`), id)
		if err != nil {
			return domain.Sweet{}, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return domain.Sweet{}, err
		}
		if n == 0 {
			if _, err := getSweet(ctx, tx, id); err != nil {
				return domain.Sweet{}, err
			}
			return domain.Sweet{}, ErrInsufficientStock
		}
		return getSweet(ctx, tx, id)
	})
}

// Increment adds amount units. Returns sql.ErrNoRows when the sweet does not exist.
func (r *SweetRepo) Increment(ctx context.Context, id string, amount int) (domain.Sweet, error) {
	return r.withTx(ctx, func(tx *sqlx.Tx) (domain.Sweet, error) {
		res, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE sweets
			SET quantity = quantity + ?
			WHERE id = ?`), amount, id)
		if err != nil {
			return domain.Sweet{}, err
		}
		if n, err := res.RowsAffected(); err != nil {
			return domain.Sweet{}, err
		} else if n == 0 {
			return domain.Sweet{}, sql.ErrNoRows
		}
		return getSweet(ctx, tx, id)
	})
}

// Delete removes the sweet permanently. Returns sql.ErrNoRows when absent.
func (r *SweetRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM sweets WHERE id = ?`), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *SweetRepo) withTx(ctx context.Context, fn func(tx *sqlx.Tx) (domain.Sweet, error)) (domain.Sweet, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.Sweet{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	s, err := fn(tx)
	if err != nil {
		return domain.Sweet{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Sweet{}, fmt.Errorf("commit: %w", err)
	}
	return s, nil
}

type queryer interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	Rebind(query string) string
}

func getSweet(ctx context.Context, q queryer, id string) (domain.Sweet, error) {
	var row sweetRow
	err := q.GetContext(ctx, &row, q.Rebind(`SELECT `+sweetColumns+` FROM sweets WHERE id = ?`), id)
	if err != nil {
		if notFound(err) {
			return domain.Sweet{}, sql.ErrNoRows
		}
		return domain.Sweet{}, err
	}
	return row.toDomain(), nil
}

// searchKey folds text for matching. SQL LOWER() is ASCII-only on SQLite,
// so name_key and category_key are folded here and searched instead.
func searchKey(s string) string { return strings.ToLower(s) }

func keyOf(p *string) any {
	if p == nil {
		return nil
	}
	return searchKey(*p)
}

// containsPattern builds a substring LIKE pattern over searchKey-folded text
// with the LIKE metacharacters escaped by '!'.
func containsPattern(term string) string {
	esc := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(searchKey(term))
	return "%" + esc + "%"
}

func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
