package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/FLG2005/todo-api/internal/models"
	"github.com/FLG2005/todo-api/internal/progression"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUsernameTaken   = errors.New("username taken")
	ErrVersionConflict = errors.New("account version conflict")
)

type Repo struct {
	Pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repo {
	return &Repo{Pool: pool}
}

// querier is the statement surface shared by *pgxpool.Pool and pgx.Tx, so
// the account and todo statements can run standalone or inside an event
// transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *Repo) CreateUser(ctx context.Context, username, passwordHash string) (string, error) {
	var id string
	err := r.Pool.QueryRow(ctx, `INSERT INTO users (username, password_hash) VALUES ($1, $2) RETURNING id`, username, passwordHash).Scan(&id)
	if isUniqueViolation(err) {
		return "", ErrUsernameTaken
	}
	return id, err
}

func (r *Repo) GetUserByUsername(ctx context.Context, username string) (string, string, error) {
	var id, hash string
	err := r.Pool.QueryRow(ctx, `SELECT id, password_hash FROM users WHERE username=$1`, username).Scan(&id, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", ErrNotFound
	}
	return id, hash, err
}

func (r *Repo) GetUserByID(ctx context.Context, userID string) (models.User, error) {
	var u models.User
	err := r.Pool.QueryRow(ctx, `SELECT id, username, created_at, updated_at FROM users WHERE id=$1`, userID).
		Scan(&u.ID, &u.Username, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	return u, err
}

func (r *Repo) CreateSession(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := r.Pool.Exec(ctx, `INSERT INTO sessions (user_id, token, expires_at) VALUES ($1, $2, $3)`, userID, token, expiresAt)
	return err
}

const accountColumns = `id, currency, xp, level, rank, tasks_checked_off, tasks_checked_off_today,
	tasks_checked_off_day, login_streak, login_best, last_login_day, goals, inventory,
	current_theme, current_title, version`

// GetAccount loads the progression snapshot for a user. Integrity checking
// is the caller's job; the repo reports what is stored.
func (r *Repo) GetAccount(ctx context.Context, userID string) (progression.Account, error) {
	return getAccount(ctx, r.Pool, userID)
}

func getAccount(ctx context.Context, q querier, userID string) (progression.Account, error) {
	var acc progression.Account
	err := q.QueryRow(ctx, `SELECT `+accountColumns+` FROM users WHERE id=$1`, userID).Scan(
		&acc.ID, &acc.Currency, &acc.XP, &acc.Level, &acc.Rank,
		&acc.TasksCheckedOff, &acc.TasksCheckedOffToday, &acc.TasksCheckedOffDay,
		&acc.LoginStreak, &acc.LoginStreakBest, &acc.LastLoginDay, &acc.Goals,
		&acc.Inventory, &acc.CurrentTheme, &acc.CurrentTitle, &acc.Version,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return progression.Account{}, ErrNotFound
	}
	if acc.Inventory == nil {
		acc.Inventory = []string{}
	}
	return acc, err
}

// SaveAccount writes the snapshot back in a single statement, guarded by
// the version read at load time. Purchases debit currency and credit
// inventory in this one UPDATE, so no half-applied state is observable.
func (r *Repo) SaveAccount(ctx context.Context, acc progression.Account) error {
	return saveAccount(ctx, r.Pool, acc)
}

func saveAccount(ctx context.Context, q querier, acc progression.Account) error {
	cmd, err := q.Exec(ctx, `UPDATE users SET
			currency=$1, xp=$2, level=$3, rank=$4,
			tasks_checked_off=$5, tasks_checked_off_today=$6, tasks_checked_off_day=$7,
			login_streak=$8, login_best=$9, last_login_day=$10, goals=$11,
			inventory=$12, current_theme=$13, current_title=$14,
			version=version+1, updated_at=now()
		WHERE id=$15 AND version=$16`,
		acc.Currency, acc.XP, acc.Level, acc.Rank,
		acc.TasksCheckedOff, acc.TasksCheckedOffToday, acc.TasksCheckedOffDay,
		acc.LoginStreak, acc.LoginStreakBest, acc.LastLoginDay, acc.Goals,
		acc.Inventory, acc.CurrentTheme, acc.CurrentTitle,
		acc.ID, acc.Version)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (r *Repo) GetSettings(ctx context.Context, userID string) (models.Settings, error) {
	var s models.Settings
	err := r.Pool.QueryRow(ctx, `SELECT current_theme, view FROM users WHERE id=$1`, userID).Scan(&s.Theme, &s.View)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Settings{}, ErrNotFound
	}
	if s.Theme == "" {
		s.Theme = "default"
	}
	return s, err
}

func (r *Repo) UpdateView(ctx context.Context, userID, view string) error {
	cmd, err := r.Pool.Exec(ctx, `UPDATE users SET view=$1, updated_at=now() WHERE id=$2`, view, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) CreateList(ctx context.Context, userID, name string) (string, error) {
	var id string
	err := r.Pool.QueryRow(ctx, `INSERT INTO todo_lists (user_id, name) VALUES ($1, $2) RETURNING id`, userID, name).Scan(&id)
	return id, err
}

func (r *Repo) RenameList(ctx context.Context, id, userID, name string) error {
	cmd, err := r.Pool.Exec(ctx, `UPDATE todo_lists SET name=$1, updated_at=now() WHERE id=$2 AND user_id=$3`, name, id, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteList removes a list together with its todos.
func (r *Repo) DeleteList(ctx context.Context, id, userID string) error {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM todos WHERE list_id=$1`, id); err != nil {
		return err
	}
	cmd, err := tx.Exec(ctx, `DELETE FROM todo_lists WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}

func (r *Repo) ListLists(ctx context.Context, userID string) ([]models.TodoList, error) {
	rows, err := r.Pool.Query(ctx, `SELECT l.id, l.name, COUNT(t.id), l.created_at
		FROM todo_lists l
		LEFT JOIN todos t ON t.list_id = l.id
		WHERE l.user_id=$1
		GROUP BY l.id, l.name, l.created_at
		ORDER BY l.created_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lists []models.TodoList
	for rows.Next() {
		l := models.TodoList{UserID: userID}
		if err := rows.Scan(&l.ID, &l.Name, &l.TaskCount, &l.CreatedAt); err != nil {
			return nil, err
		}
		lists = append(lists, l)
	}
	return lists, rows.Err()
}

func (r *Repo) CreateTodo(ctx context.Context, userID, listID, text string, relatedID *string, deadline *time.Time, flags int) (string, error) {
	var id string
	err := r.Pool.QueryRow(ctx, `INSERT INTO todos (list_id, text, related_id, deadline, flags)
		SELECT $1, $2, $3, $4, $5
		WHERE EXISTS (SELECT 1 FROM todo_lists WHERE id=$1 AND user_id=$6)
		RETURNING id`,
		listID, text, relatedID, deadline, flags, userID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return id, err
}

func (r *Repo) UpdateTodo(ctx context.Context, userID, id, text string, relatedID *string, deadline *time.Time, flags int) error {
	cmd, err := r.Pool.Exec(ctx, `UPDATE todos t SET text=$1, related_id=$2, deadline=$3, flags=$4,
			updated_at=now(), version=version+1
		FROM todo_lists l
		WHERE t.id=$5 AND l.id=t.list_id AND l.user_id=$6`,
		text, relatedID, deadline, flags, id, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTodo removes a todo and any todos that point at it via related_id,
// so links never dangle.
func (r *Repo) DeleteTodo(ctx context.Context, userID, id string) error {
	cmd, err := r.Pool.Exec(ctx, `DELETE FROM todos t
		USING todo_lists l
		WHERE l.id=t.list_id AND l.user_id=$1 AND (t.id=$2 OR t.related_id=$2)`,
		userID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const todoColumns = `t.id, t.list_id, t.text, t.related_id, t.deadline, t.completed, t.completed_at,
	t.flags, t.created_at, t.updated_at, t.version`

func scanTodo(row pgx.Row) (models.Todo, error) {
	var t models.Todo
	err := row.Scan(&t.ID, &t.ListID, &t.Text, &t.RelatedID, &t.Deadline, &t.Completed,
		&t.CompletedAt, &t.Flags, &t.CreatedAt, &t.UpdatedAt, &t.Version)
	return t, err
}

func (r *Repo) GetTodo(ctx context.Context, userID, id string) (models.Todo, error) {
	t, err := scanTodo(r.Pool.QueryRow(ctx, `SELECT `+todoColumns+`
		FROM todos t JOIN todo_lists l ON l.id = t.list_id
		WHERE t.id=$1 AND l.user_id=$2`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Todo{}, ErrNotFound
	}
	return t, err
}

// ListTodos returns todos for one list, or for all of the user's lists when
// listID is empty. Flagged todos sort first, as the original UI expects.
func (r *Repo) ListTodos(ctx context.Context, userID, listID string) ([]models.Todo, error) {
	query := `SELECT ` + todoColumns + `
		FROM todos t JOIN todo_lists l ON l.id = t.list_id
		WHERE l.user_id=$1`
	args := []any{userID}
	if listID != "" {
		query += ` AND t.list_id=$2`
		args = append(args, listID)
	}
	query += ` ORDER BY t.flags DESC, t.created_at ASC`

	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var todos []models.Todo
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		todos = append(todos, t)
	}
	return todos, rows.Err()
}

func (r *Repo) ListRelatedTodos(ctx context.Context, userID, id string) ([]models.Todo, error) {
	rows, err := r.Pool.Query(ctx, `SELECT `+todoColumns+`
		FROM todos t JOIN todo_lists l ON l.id = t.list_id
		WHERE l.user_id=$1 AND t.related_id=$2
		ORDER BY t.created_at ASC`, userID, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var todos []models.Todo
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		todos = append(todos, t)
	}
	return todos, rows.Err()
}

// CompleteTodo flips a todo to completed. The transition is one-way:
// a todo that is already completed is rejected with
// progression.ErrInvalidStateTransition, never silently re-accepted.
func (r *Repo) CompleteTodo(ctx context.Context, userID, id string) error {
	return completeTodo(ctx, r.Pool, userID, id)
}

func completeTodo(ctx context.Context, q querier, userID, id string) error {
	cmd, err := q.Exec(ctx, `UPDATE todos t SET completed=true, completed_at=now(),
			updated_at=now(), version=version+1
		FROM todo_lists l
		WHERE t.id=$1 AND l.id=t.list_id AND l.user_id=$2 AND t.completed=false`,
		id, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() > 0 {
		return nil
	}
	var completed bool
	err = q.QueryRow(ctx, `SELECT t.completed
		FROM todos t JOIN todo_lists l ON l.id = t.list_id
		WHERE t.id=$1 AND l.user_id=$2`, id, userID).Scan(&completed)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if completed {
		return progression.ErrInvalidStateTransition
	}
	return ErrNotFound
}

// CompleteTaskEvent flips the todo and writes the account produced by apply
// in one transaction, so the completion and its reward commit or roll back
// together. A stale account version surfaces as ErrVersionConflict with the
// todo flip rolled back, leaving the whole event retryable against fresh
// state.
func (r *Repo) CompleteTaskEvent(ctx context.Context, userID, todoID string, apply func(progression.Account) (progression.Account, error)) (progression.Account, error) {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return progression.Account{}, err
	}
	defer tx.Rollback(ctx)

	if err := completeTodo(ctx, tx, userID, todoID); err != nil {
		return progression.Account{}, err
	}
	acc, err := getAccount(ctx, tx, userID)
	if err != nil {
		return progression.Account{}, err
	}
	next, err := apply(acc)
	if err != nil {
		return progression.Account{}, err
	}
	if err := saveAccount(ctx, tx, next); err != nil {
		return progression.Account{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return progression.Account{}, err
	}
	next.Version++
	return next, nil
}
