package repo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/FLG2005/todo-api/internal/progression"
)

func setupTestRepo(t *testing.T) (*Repo, func()) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	schema := fmt.Sprintf("test_%d", time.Now().UnixNano())
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", schema))
		return err
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	_, err = pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA %s", schema))
	if err != nil {
		pool.Close()
		t.Fatalf("create schema: %v", err)
	}
	if err := createTestTables(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("create tables: %v", err)
	}
	repo := New(pool)
	return repo, func() {
		_, _ = pool.Exec(ctx, fmt.Sprintf("DROP SCHEMA %s CASCADE", schema))
		pool.Close()
	}
}

func createTestTables(ctx context.Context, pool *pgxpool.Pool) error {
	queries := []string{
		`CREATE TABLE users (id uuid PRIMARY KEY DEFAULT gen_random_uuid(), username text NOT NULL UNIQUE, password_hash text NOT NULL, currency int DEFAULT 0, xp int DEFAULT 0, level int DEFAULT 1, rank text DEFAULT 'Task Trainee', tasks_checked_off int DEFAULT 0, tasks_checked_off_today int DEFAULT 0, tasks_checked_off_day text DEFAULT '', login_streak int DEFAULT 0, login_best int DEFAULT 0, last_login_day text DEFAULT '', goals int DEFAULT 0, inventory text[] DEFAULT '{}', current_theme text DEFAULT '', current_title text DEFAULT '', view text DEFAULT 'front', version int DEFAULT 1, created_at timestamptz DEFAULT now(), updated_at timestamptz DEFAULT now())`,
		`CREATE TABLE sessions (id uuid PRIMARY KEY DEFAULT gen_random_uuid(), user_id uuid, token text, expires_at timestamptz, created_at timestamptz DEFAULT now())`,
		`CREATE TABLE todo_lists (id uuid PRIMARY KEY DEFAULT gen_random_uuid(), user_id uuid, name text, created_at timestamptz DEFAULT now(), updated_at timestamptz DEFAULT now())`,
		`CREATE TABLE todos (id uuid PRIMARY KEY DEFAULT gen_random_uuid(), list_id uuid, text text, related_id uuid, deadline timestamptz, completed boolean DEFAULT false, completed_at timestamptz, flags int DEFAULT 0, created_at timestamptz DEFAULT now(), updated_at timestamptz DEFAULT now(), version int DEFAULT 1)`,
	}
	for _, query := range queries {
		if _, err := pool.Exec(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

func createTestUser(t *testing.T, repo *Repo, username string) string {
	t.Helper()
	id, err := repo.CreateUser(context.Background(), username, "x")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return id
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	createTestUser(t, repo, "alice")
	if _, err := repo.CreateUser(context.Background(), "alice", "y"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestCompleteTodoOneWay(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	userID := createTestUser(t, repo, "bob")
	listID, err := repo.CreateList(ctx, userID, "Default List")
	if err != nil {
		t.Fatalf("create list: %v", err)
	}
	todoID, err := repo.CreateTodo(ctx, userID, listID, "buy milk", nil, nil, 0)
	if err != nil {
		t.Fatalf("create todo: %v", err)
	}

	if err := repo.CompleteTodo(ctx, userID, todoID); err != nil {
		t.Fatalf("first complete: %v", err)
	}
	err = repo.CompleteTodo(ctx, userID, todoID)
	if !errors.Is(err, progression.ErrInvalidStateTransition) {
		t.Fatalf("second complete should be rejected, got %v", err)
	}

	todo, err := repo.GetTodo(ctx, userID, todoID)
	if err != nil {
		t.Fatalf("get todo: %v", err)
	}
	if !todo.Completed || todo.CompletedAt == nil {
		t.Fatalf("todo not marked completed: %+v", todo)
	}
	if todo.Version != 2 {
		t.Fatalf("rejected completion should not bump version, got %d", todo.Version)
	}
}

func TestCompleteTaskEventAtomic(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	userID := createTestUser(t, repo, "ivan")
	listID, err := repo.CreateList(ctx, userID, "Inbox")
	if err != nil {
		t.Fatalf("create list: %v", err)
	}
	todoID, err := repo.CreateTodo(ctx, userID, listID, "water plants", nil, nil, 0)
	if err != nil {
		t.Fatalf("create todo: %v", err)
	}

	next, err := repo.CompleteTaskEvent(ctx, userID, todoID, func(acc progression.Account) (progression.Account, error) {
		return progression.ApplyTaskCompletion(acc, "2026-08-30"), nil
	})
	if err != nil {
		t.Fatalf("complete task event: %v", err)
	}
	if next.TasksCheckedOff != 1 {
		t.Fatalf("returned account not credited: %+v", next)
	}

	got, err := repo.GetAccount(ctx, userID)
	if err != nil {
		t.Fatalf("reload account: %v", err)
	}
	if got.TasksCheckedOff != 1 || got.Currency != progression.TaskCompletionCoins || got.XP != progression.TaskCompletionXP {
		t.Fatalf("reward not committed with the flip: %+v", got)
	}
	todo, err := repo.GetTodo(ctx, userID, todoID)
	if err != nil {
		t.Fatalf("get todo: %v", err)
	}
	if !todo.Completed {
		t.Fatalf("todo not completed")
	}
}

func TestCompleteTaskEventRollsBackOnConflict(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	userID := createTestUser(t, repo, "judy")
	listID, err := repo.CreateList(ctx, userID, "Inbox")
	if err != nil {
		t.Fatalf("create list: %v", err)
	}
	todoID, err := repo.CreateTodo(ctx, userID, listID, "file taxes", nil, nil, 0)
	if err != nil {
		t.Fatalf("create todo: %v", err)
	}

	_, err = repo.CompleteTaskEvent(ctx, userID, todoID, func(acc progression.Account) (progression.Account, error) {
		// A concurrent writer commits between this event's load and save.
		other := acc.Clone()
		other.Currency += 99
		if err := repo.SaveAccount(ctx, other); err != nil {
			t.Fatalf("concurrent save: %v", err)
		}
		return progression.ApplyTaskCompletion(acc, "2026-08-30"), nil
	})
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	// The todo flip must roll back with the failed save, so the event can
	// be retried whole.
	todo, err := repo.GetTodo(ctx, userID, todoID)
	if err != nil {
		t.Fatalf("get todo: %v", err)
	}
	if todo.Completed {
		t.Fatalf("conflicted event left the todo completed")
	}
	got, err := repo.GetAccount(ctx, userID)
	if err != nil {
		t.Fatalf("reload account: %v", err)
	}
	if got.TasksCheckedOff != 0 {
		t.Fatalf("conflicted event credited the account: %+v", got)
	}

	// And the retry succeeds against the fresh version.
	next, err := repo.CompleteTaskEvent(ctx, userID, todoID, func(acc progression.Account) (progression.Account, error) {
		return progression.ApplyTaskCompletion(acc, "2026-08-30"), nil
	})
	if err != nil {
		t.Fatalf("retry after conflict: %v", err)
	}
	if next.TasksCheckedOff != 1 || next.Currency != 99+progression.TaskCompletionCoins {
		t.Fatalf("retry lost state: %+v", next)
	}
}

func TestCompleteTodoMissing(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	userID := createTestUser(t, repo, "carol")
	err := repo.CompleteTodo(context.Background(), userID, "00000000-0000-0000-0000-000000000000")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAccountRoundTrip(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	userID := createTestUser(t, repo, "dave")
	acc, err := repo.GetAccount(ctx, userID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if acc.Level != 1 || acc.Version != 1 || acc.Inventory == nil {
		t.Fatalf("fresh account wrong: %+v", acc)
	}

	acc.Currency = 120
	acc.XP = 40
	acc.Level = 2
	acc.Rank = "Task Trainee"
	acc.LoginStreak = 3
	acc.LoginStreakBest = 5
	acc.LastLoginDay = "2026-08-30"
	acc.Inventory = []string{"default", "cozy"}
	acc.CurrentTheme = "cozy"
	if err := repo.SaveAccount(ctx, acc); err != nil {
		t.Fatalf("save account: %v", err)
	}

	got, err := repo.GetAccount(ctx, userID)
	if err != nil {
		t.Fatalf("reload account: %v", err)
	}
	if got.Currency != 120 || got.XP != 40 || got.Level != 2 {
		t.Fatalf("progress not persisted: %+v", got)
	}
	if got.LoginStreak != 3 || got.LoginStreakBest != 5 || got.LastLoginDay != "2026-08-30" {
		t.Fatalf("streak not persisted: %+v", got)
	}
	if len(got.Inventory) != 2 || got.Inventory[1] != "cozy" || got.CurrentTheme != "cozy" {
		t.Fatalf("inventory not persisted: %+v", got)
	}
	if got.Version != acc.Version+1 {
		t.Fatalf("save should bump version: had %d, got %d", acc.Version, got.Version)
	}
}

func TestSaveAccountVersionConflict(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	userID := createTestUser(t, repo, "erin")
	first, err := repo.GetAccount(ctx, userID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	second := first.Clone()

	first.Currency = 10
	if err := repo.SaveAccount(ctx, first); err != nil {
		t.Fatalf("first save: %v", err)
	}

	second.Currency = 20
	if err := repo.SaveAccount(ctx, second); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("stale save should conflict, got %v", err)
	}

	got, err := repo.GetAccount(ctx, userID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Currency != 10 {
		t.Fatalf("conflicting save leaked through: %+v", got)
	}
}

func TestDeleteListRemovesTodos(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	userID := createTestUser(t, repo, "frank")
	listID, err := repo.CreateList(ctx, userID, "Chores")
	if err != nil {
		t.Fatalf("create list: %v", err)
	}
	if _, err := repo.CreateTodo(ctx, userID, listID, "sweep", nil, nil, 0); err != nil {
		t.Fatalf("create todo: %v", err)
	}

	if err := repo.DeleteList(ctx, listID, userID); err != nil {
		t.Fatalf("delete list: %v", err)
	}
	todos, err := repo.ListTodos(ctx, userID, "")
	if err != nil {
		t.Fatalf("list todos: %v", err)
	}
	if len(todos) != 0 {
		t.Fatalf("todos should be gone with their list, got %d", len(todos))
	}
}

func TestDeleteTodoRemovesRelated(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	userID := createTestUser(t, repo, "grace")
	listID, err := repo.CreateList(ctx, userID, "Project")
	if err != nil {
		t.Fatalf("create list: %v", err)
	}
	parentID, err := repo.CreateTodo(ctx, userID, listID, "write draft", nil, nil, 0)
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}
	if _, err := repo.CreateTodo(ctx, userID, listID, "review draft", &parentID, nil, 0); err != nil {
		t.Fatalf("create related: %v", err)
	}

	related, err := repo.ListRelatedTodos(ctx, userID, parentID)
	if err != nil {
		t.Fatalf("list related: %v", err)
	}
	if len(related) != 1 {
		t.Fatalf("expected 1 related todo, got %d", len(related))
	}

	if err := repo.DeleteTodo(ctx, userID, parentID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	todos, err := repo.ListTodos(ctx, userID, listID)
	if err != nil {
		t.Fatalf("list todos: %v", err)
	}
	if len(todos) != 0 {
		t.Fatalf("related todo should be removed with its parent, got %d", len(todos))
	}
}

func TestListTodosFlaggedFirst(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	userID := createTestUser(t, repo, "heidi")
	listID, err := repo.CreateList(ctx, userID, "Inbox")
	if err != nil {
		t.Fatalf("create list: %v", err)
	}
	if _, err := repo.CreateTodo(ctx, userID, listID, "plain", nil, nil, 0); err != nil {
		t.Fatalf("create todo: %v", err)
	}
	if _, err := repo.CreateTodo(ctx, userID, listID, "urgent", nil, nil, 1); err != nil {
		t.Fatalf("create todo: %v", err)
	}

	todos, err := repo.ListTodos(ctx, userID, listID)
	if err != nil {
		t.Fatalf("list todos: %v", err)
	}
	if len(todos) != 2 || todos[0].Text != "urgent" {
		t.Fatalf("flagged todo should sort first: %+v", todos)
	}
}
