package sqlxrepos

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/samkazadi/mahudhurio/core/user"
)

type userRow struct {
	ID           string      `db:"id"`
	Name         null.String `db:"name"`
	Username     null.String `db:"username"`
	Email        null.String `db:"email"`
	IsActive     null.Bool   `db:"is_active"`
	Roles        null.String `db:"roles"` // comma-separated
	PasswordHash null.Bytes  `db:"password_hash"`
	CreatedAt    null.Time   `db:"created_at"`
	UpdatedAt    null.Time   `db:"updated_at"`
	LastLogin    null.Time   `db:"last_login"`
}

func packUser(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         null.NewString(usr.Name, usr.Name != ""),
		Username:     null.NewString(usr.Username, usr.Username != ""),
		Email:        null.NewString(usr.Email, usr.Email != ""),
		IsActive:     null.BoolFromPtr(usr.IsActive),
		Roles:        null.StringFrom(strings.Join(usr.Roles, ",")),
		PasswordHash: null.BytesFrom(usr.PasswordHash),
		CreatedAt:    null.NewTime(usr.CreatedAt.UTC(), !usr.CreatedAt.IsZero()),
		UpdatedAt:    null.NewTime(usr.UpdatedAt.UTC(), !usr.UpdatedAt.IsZero()),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func unpackUser(row userRow) user.User {
	var roles []string
	if row.Roles.String != "" {
		roles = strings.Split(row.Roles.String, ",")
	}
	return user.User{
		ID:           row.ID,
		Name:         row.Name.String,
		Username:     row.Username.String,
		Email:        row.Email.String,
		IsActive:     row.IsActive.Ptr(),
		Roles:        roles,
		PasswordHash: row.PasswordHash.Bytes,
		CreatedAt:    row.CreatedAt.Time,
		UpdatedAt:    row.UpdatedAt.Time,
		LastLogin:    row.LastLogin.Time,
	}
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

// trapUserNoRowsErr maps psql "no rows" err to user.ErrNotFound
func trapUserNoRowsErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckUsernameUniqueness(username, email string, excludedUsers ...user.User) error {
	q := `SELECT username, email FROM users WHERE username = $1 OR email = $2`
	args := []interface{}{username, email}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		var err error
		q, args, err = sqlx.In(q+` AND id NOT IN (?)`, username, email, ids)
		if err != nil {
			return errors.Wrap(err, "building uniqueness query")
		}
		q = repo.db.Rebind(q)
	}

	var rows []userRow
	if err := repo.db.Select(&rows, q, args...); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, row := range rows {
		if row.Username.String == username {
			return user.ErrUsernameExists
		}
	}
	if len(rows) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	row := packUser(usr)
	q := `INSERT INTO users (id, name, username, email, is_active, roles, password_hash, created_at, updated_at, last_login)
	      VALUES (:id, :name, :username, :email, :is_active, :roles, :password_hash, :created_at, :updated_at, :last_login)`
	if _, err := repo.db.NamedExec(q, row); err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return unpackUser(row), nil
}

func (repo userRepository) QueryAllUsers() ([]user.User, error) {
	var rows []userRow
	if err := repo.db.Select(&rows, `SELECT * FROM users ORDER BY created_at DESC`); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return unpackUsers(rows), nil
}

func unpackUsers(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, unpackUser(row))
	}
	return users
}

func (repo userRepository) GetUserByID(id string) (user.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return user.User{}, user.ErrNotFound
	}
	var row userRow
	if err := repo.db.Get(&row, `SELECT * FROM users WHERE id = $1`, id); err != nil {
		return user.User{}, trapUserNoRowsErr(err, "finding user by ID")
	}
	return unpackUser(row), nil
}

func (repo userRepository) GetUserByUsername(username string) (user.User, error) {
	var row userRow
	if err := repo.db.Get(&row, `SELECT * FROM users WHERE username = $1`, username); err != nil {
		return user.User{}, trapUserNoRowsErr(err, "finding user by username")
	}
	return unpackUser(row), nil
}

func (repo userRepository) GetUserByEmail(email string) (user.User, error) {
	var row userRow
	if err := repo.db.Get(&row, `SELECT * FROM users WHERE email = $1`, email); err != nil {
		return user.User{}, trapUserNoRowsErr(err, "finding user by email")
	}
	return unpackUser(row), nil
}

func (repo userRepository) GetUserByUsernameOrEmail(username string) (user.User, error) {
	var row userRow
	q := `SELECT * FROM users WHERE username = $1 OR email = $1`
	if err := repo.db.Get(&row, q, username); err != nil {
		return user.User{}, trapUserNoRowsErr(err, "finding user")
	}
	return unpackUser(row), nil
}

func (repo userRepository) FilterUsers(filter user.QueryFilter) ([]user.User, error) {
	q := `SELECT * FROM users WHERE 1=1`
	var args []interface{}

	next := func() string { return "$" + itoa(len(args)) }

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		p := next()
		q += ` AND (name ILIKE ` + p + ` OR username ILIKE ` + p + ` OR email ILIKE ` + p + `)`
	}
	if len(filter.Roles) > 0 {
		// users with any role that starts with any of the provided roles
		conds := make([]string, 0, len(filter.Roles))
		for _, role := range filter.Roles {
			args = append(args, "%"+role+"%")
			conds = append(conds, "roles ILIKE "+next())
		}
		q += ` AND (` + strings.Join(conds, " OR ") + `)`
	}
	if filter.IsActive != nil {
		args = append(args, *filter.IsActive)
		q += ` AND is_active = ` + next()
	}
	if !filter.CreatedFrom.IsZero() {
		args = append(args, filter.CreatedFrom.UTC())
		q += ` AND created_at >= ` + next()
	}
	if !filter.CreatedTo.IsZero() {
		args = append(args, filter.CreatedTo.UTC())
		q += ` AND created_at <= ` + next()
	}
	q += ` ORDER BY created_at DESC`

	var rows []userRow
	if err := repo.db.Select(&rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	return unpackUsers(rows), nil
}

func (repo userRepository) UpdateUser(usr user.User, isActive *bool) (user.User, error) {
	orig, err := repo.GetUserByID(usr.ID)
	if err != nil {
		return user.User{}, err
	}

	row := packUser(usr)
	if isActive != nil {
		row.IsActive = null.BoolFromPtr(isActive)
	} else {
		row.IsActive = null.BoolFromPtr(orig.IsActive)
	}
	if !row.Name.Valid {
		row.Name = null.NewString(orig.Name, orig.Name != "")
	}
	if !row.Username.Valid {
		row.Username = null.NewString(orig.Username, orig.Username != "")
	}
	if !row.Email.Valid {
		row.Email = null.NewString(orig.Email, orig.Email != "")
	}
	if len(usr.Roles) == 0 {
		row.Roles = null.StringFrom(strings.Join(orig.Roles, ","))
	}
	if len(row.PasswordHash.Bytes) == 0 {
		row.PasswordHash = null.BytesFrom(orig.PasswordHash)
	}
	row.CreatedAt = null.NewTime(orig.CreatedAt, !orig.CreatedAt.IsZero())
	if !row.LastLogin.Valid {
		row.LastLogin = null.NewTime(orig.LastLogin, !orig.LastLogin.IsZero())
	}
	row.UpdatedAt = null.TimeFrom(time.Now().UTC())

	q := `UPDATE users SET name = :name, username = :username, email = :email, is_active = :is_active,
	      roles = :roles, password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login
	      WHERE id = :id`
	if _, err = repo.db.NamedExec(q, row); err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return unpackUser(row), nil
}

func (repo userRepository) SetUserLastLogin(id string, t time.Time) (user.User, error) {
	res, err := repo.db.Exec(`UPDATE users SET last_login = $1 WHERE id = $2`, t.UTC(), id)
	if err != nil {
		return user.User{}, errors.Wrap(err, "setting last login")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUserByID(id)
}

func (repo userRepository) DeleteUsersByID(ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM users WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = repo.db.Exec(repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}
