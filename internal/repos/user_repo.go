package repos

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"sweetshop/internal/domain"
)

// ErrDuplicateEmail is returned by Create when the email is already registered.
var ErrDuplicateEmail = errors.New("email already registered")

type UserRepo struct{ DB *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{DB: db} }

type userRow struct {
	ID        string `db:"id"`
	Email     string `db:"email"`
	Name      string `db:"name"`
	Hash      string `db:"password_hash"`
	Role      string `db:"role"`
	CreatedAt int64  `db:"created_at"`
}

func (r userRow) toDomain() *domain.User {
	return &domain.User{
		ID:        r.ID,
		Email:     r.Email,
		Name:      r.Name,
		Hash:      r.Hash,
		Role:      domain.Role(r.Role),
		CreatedAt: time.Unix(0, r.CreatedAt).UTC(),
	}
}

const userColumns = `id,email,name,password_hash,role,created_at`

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	_, err := r.DB.ExecContext(ctx, r.DB.Rebind(`
		INSERT INTO users(`+userColumns+`)
		VALUES(?,?,?,?,?,?)`),
		u.ID, u.Email, u.Name, u.Hash, string(u.Role), u.CreatedAt.UTC().UnixNano())
	if isDuplicateKey(err) {
		return ErrDuplicateEmail
	}
	return err
}

// ByEmail expects an already normalized (lower-case) email.
func (r *UserRepo) ByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getBy(ctx, `email`, email)
}

func (r *UserRepo) ByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getBy(ctx, `id`, id)
}

func (r *UserRepo) getBy(ctx context.Context, col, val string) (*domain.User, error) {
	var row userRow
	err := r.DB.GetContext(ctx, &row, r.DB.Rebind(`SELECT `+userColumns+` FROM users WHERE `+col+`=?`), val)
	if err != nil {
		if notFound(err) {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}
	return row.toDomain(), nil
}
