package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/FLG2005/todo-api/internal/auth"
	"github.com/FLG2005/todo-api/internal/cache"
	"github.com/FLG2005/todo-api/internal/catalog"
	"github.com/FLG2005/todo-api/internal/progression"
	"github.com/FLG2005/todo-api/internal/repo"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// DefaultThemeKey is equipped at signup when the catalog carries it.
const DefaultThemeKey = "default"

// maxApplyAttempts bounds the optimistic-concurrency retry loop. Core
// operations are pure over a snapshot, so a conflicting write is handled by
// re-fetching and re-applying against fresh state.
const maxApplyAttempts = 3

type Service struct {
	Repo       *repo.Repo
	Auth       *auth.Manager
	Catalog    *catalog.Catalog
	Cache      *cache.Snapshots
	Location   *time.Location
	TokenTTL   time.Duration
	RefreshTTL time.Duration
}

func New(r *repo.Repo, authManager *auth.Manager, cat *catalog.Catalog, snapshots *cache.Snapshots, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		Repo:       r,
		Auth:       authManager,
		Catalog:    cat,
		Cache:      snapshots,
		Location:   loc,
		TokenTTL:   time.Hour,
		RefreshTTL: 7 * 24 * time.Hour,
	}
}

// today is the calendar day in the configured timezone. This is the single
// day-boundary decision point; the core only ever sees the resulting key.
func (s *Service) today() string {
	return time.Now().In(s.Location).Format(progression.DayFormat)
}

func isConsecutive(lastDay, day string) bool {
	if lastDay == "" {
		return false
	}
	last, err := time.Parse(progression.DayFormat, lastDay)
	if err != nil {
		return false
	}
	current, err := time.Parse(progression.DayFormat, day)
	if err != nil {
		return false
	}
	return current.Sub(last) == 24*time.Hour
}

// applyEvent runs one pure account operation with load-validate-apply-save
// semantics. The account save is guarded by the version read at load; on a
// conflict the whole operation re-runs against a fresh snapshot. After a
// successful save the cached snapshot is replaced with the committed state.
func (s *Service) applyEvent(ctx context.Context, userID string, op func(progression.Account) (progression.Account, error)) (progression.Account, error) {
	for attempt := 0; attempt < maxApplyAttempts; attempt++ {
		acc, err := s.Repo.GetAccount(ctx, userID)
		if err != nil {
			return progression.Account{}, err
		}
		if err := acc.CheckIntegrity(); err != nil {
			return progression.Account{}, err
		}
		next, err := op(acc)
		if err != nil {
			return progression.Account{}, err
		}
		// Level may have changed; grant any auto-unlocks the new state earns.
		next = progression.Reconcile(next, s.Catalog)
		if err := s.Repo.SaveAccount(ctx, next); err != nil {
			if errors.Is(err, repo.ErrVersionConflict) {
				continue
			}
			return progression.Account{}, err
		}
		next.Version++
		s.Cache.Invalidate(ctx, userID)
		s.Cache.Put(ctx, next)
		return next, nil
	}
	return progression.Account{}, repo.ErrVersionConflict
}

func (s *Service) Register(ctx context.Context, username, password string) (string, error) {
	hash, err := s.Auth.HashPassword(password)
	if err != nil {
		return "", err
	}
	userID, err := s.Repo.CreateUser(ctx, username, hash)
	if err != nil {
		return "", err
	}
	if _, err := s.Repo.CreateList(ctx, userID, "Default List"); err != nil {
		return "", err
	}
	day := s.today()
	_, err = s.applyEvent(ctx, userID, func(acc progression.Account) (progression.Account, error) {
		next := progression.ApplyLoginDay(acc, day, false)
		next = progression.Reconcile(next, s.Catalog)
		if progression.IsEquippable(next, DefaultThemeKey) {
			return progression.Equip(next, s.Catalog, DefaultThemeKey, catalog.KindTheme)
		}
		return next, nil
	})
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *Service) Login(ctx context.Context, username, password string) (string, string, error) {
	userID, hash, err := s.Repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", "", ErrInvalidCredentials
		}
		return "", "", err
	}
	if err := s.Auth.ComparePassword(hash, password); err != nil {
		return "", "", ErrInvalidCredentials
	}
	accessToken, err := s.Auth.GenerateToken(userID, s.TokenTTL)
	if err != nil {
		return "", "", err
	}
	refreshToken, err := s.generateRefreshToken()
	if err != nil {
		return "", "", err
	}
	if err := s.Repo.CreateSession(ctx, userID, refreshToken, time.Now().Add(s.RefreshTTL)); err != nil {
		return "", "", err
	}
	if _, err := s.RecordLogin(ctx, userID); err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

// RecordLogin applies the day-advanced event: streak accrual and coin
// bonuses, idempotent within the same calendar day.
func (s *Service) RecordLogin(ctx context.Context, userID string) (progression.Account, error) {
	day := s.today()
	return s.applyEvent(ctx, userID, func(acc progression.Account) (progression.Account, error) {
		return progression.ApplyLoginDay(acc, day, isConsecutive(acc.LastLoginDay, day)), nil
	})
}

// CompleteTask flips the todo (one-way, typed rejection on repeat) and
// applies the ledger event to the account. Both writes ride one repo
// transaction: a crash or a lost version race never leaves a completed todo
// with its reward uncredited.
func (s *Service) CompleteTask(ctx context.Context, userID, todoID string) (progression.Account, error) {
	day := s.today()
	for attempt := 0; attempt < maxApplyAttempts; attempt++ {
		next, err := s.Repo.CompleteTaskEvent(ctx, userID, todoID, func(acc progression.Account) (progression.Account, error) {
			if err := acc.CheckIntegrity(); err != nil {
				return progression.Account{}, err
			}
			return progression.Reconcile(progression.ApplyTaskCompletion(acc, day), s.Catalog), nil
		})
		if err != nil {
			if errors.Is(err, repo.ErrVersionConflict) {
				continue
			}
			return progression.Account{}, err
		}
		s.Cache.Invalidate(ctx, userID)
		s.Cache.Put(ctx, next)
		return next, nil
	}
	return progression.Account{}, repo.ErrVersionConflict
}

func (s *Service) ScoreGoal(ctx context.Context, userID string) (progression.Account, error) {
	return s.applyEvent(ctx, userID, func(acc progression.Account) (progression.Account, error) {
		return progression.ApplyGoalScored(acc), nil
	})
}

func (s *Service) PurchaseItem(ctx context.Context, userID, itemKey string, expectedPrice int) (progression.Account, error) {
	return s.applyEvent(ctx, userID, func(acc progression.Account) (progression.Account, error) {
		return progression.Purchase(acc, s.Catalog, itemKey, expectedPrice)
	})
}

func (s *Service) EquipItem(ctx context.Context, userID, itemKey string, kind catalog.Kind) (progression.Account, error) {
	return s.applyEvent(ctx, userID, func(acc progression.Account) (progression.Account, error) {
		return progression.Equip(acc, s.Catalog, itemKey, kind)
	})
}

// Snapshot returns the account state, served from the cache when possible.
// Reads never mutate; unlock reconciliation happens on the event path.
func (s *Service) Snapshot(ctx context.Context, userID string) (progression.Account, error) {
	if acc, ok := s.Cache.Get(ctx, userID); ok {
		return acc, nil
	}
	acc, err := s.Repo.GetAccount(ctx, userID)
	if err != nil {
		return progression.Account{}, err
	}
	if err := acc.CheckIntegrity(); err != nil {
		return progression.Account{}, err
	}
	s.Cache.Put(ctx, acc)
	return acc, nil
}

func (s *Service) generateRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
