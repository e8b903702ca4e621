package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/FLG2005/todo-api/internal/auth"
	"github.com/FLG2005/todo-api/internal/catalog"
	"github.com/FLG2005/todo-api/internal/progression"
	"github.com/FLG2005/todo-api/internal/repo"
	"github.com/FLG2005/todo-api/internal/service"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

// FlexTime accepts both bare dates from <input type="date"> and full
// RFC3339 timestamps.
type FlexTime struct {
	time.Time
}

func (ft *FlexTime) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		ft.Time = t
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		ft.Time = t
		return nil
	}
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		ft.Time = t
		return nil
	}
	return errors.New("invalid date/time format")
}

func (ft *FlexTime) ToTimePtr() *time.Time {
	if ft == nil || ft.Time.IsZero() {
		return nil
	}
	t := ft.Time
	return &t
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type entityResponse struct {
	ID string `json:"id"`
}

type listRequest struct {
	Name string `json:"name"`
}

type todoRequest struct {
	ListID    string    `json:"list_id"`
	Text      string    `json:"text"`
	RelatedID *string   `json:"related_id"`
	Deadline  *FlexTime `json:"deadline"`
	Flags     int       `json:"flags"`
}

type purchaseRequest struct {
	ItemKey       string `json:"item_key"`
	ExpectedPrice int    `json:"expected_price"`
}

type equipRequest struct {
	ItemKey string `json:"item_key"`
	Kind    string `json:"kind"`
}

type settingsRequest struct {
	Theme string `json:"theme"`
	View  string `json:"view"`
}

// accountResponse is the account snapshot shape every gamification
// endpoint returns.
type accountResponse struct {
	ID                   string   `json:"id"`
	CheckCoins           int      `json:"check_coins"`
	XP                   int      `json:"xp"`
	Level                int      `json:"level"`
	Rank                 string   `json:"rank"`
	TasksCheckedOff      int      `json:"tasks_checked_off"`
	TasksCheckedOffToday int      `json:"tasks_checked_off_today"`
	LoginStreak          int      `json:"login_streak"`
	LoginStreakBest      int      `json:"login_best"`
	Goals                int      `json:"goals"`
	Inventory            []string `json:"inventory"`
	CurrentTheme         string   `json:"current_theme"`
	CurrentTitle         string   `json:"current_title"`
}

func toAccountResponse(acc progression.Account) accountResponse {
	inv := acc.Inventory
	if inv == nil {
		inv = []string{}
	}
	return accountResponse{
		ID:                   acc.ID,
		CheckCoins:           acc.Currency,
		XP:                   acc.XP,
		Level:                acc.Level,
		Rank:                 acc.Rank,
		TasksCheckedOff:      acc.TasksCheckedOff,
		TasksCheckedOffToday: acc.TasksCheckedOffToday,
		LoginStreak:          acc.LoginStreak,
		LoginStreakBest:      acc.LoginStreakBest,
		Goals:                acc.Goals,
		Inventory:            inv,
		CurrentTheme:         acc.CurrentTheme,
		CurrentTitle:         acc.CurrentTitle,
	}
}

// writeProgressionError maps the core's typed errors onto HTTP responses.
// All of them are user-facing: the same request fails identically until
// the account state changes, so nothing here is retried.
func writeProgressionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, progression.ErrInvalidStateTransition):
		writeError(w, http.StatusConflict, "INVALID_STATE", "Task is already completed")
	case errors.Is(err, progression.ErrUnknownItem):
		writeError(w, http.StatusNotFound, "UNKNOWN_ITEM", "Item does not exist")
	case errors.Is(err, progression.ErrNotPurchasable):
		writeError(w, http.StatusBadRequest, "NOT_PURCHASABLE", "Item cannot be bought")
	case errors.Is(err, progression.ErrLevelTooLow):
		writeError(w, http.StatusForbidden, "LEVEL_TOO_LOW", "Level requirement not met")
	case errors.Is(err, progression.ErrAlreadyOwned):
		writeError(w, http.StatusConflict, "ALREADY_OWNED", "Item already owned")
	case errors.Is(err, progression.ErrInsufficientFunds):
		writeError(w, http.StatusPaymentRequired, "INSUFFICIENT_FUNDS", "Not enough check coins")
	case errors.Is(err, progression.ErrPriceMismatch):
		writeError(w, http.StatusConflict, "PRICE_MISMATCH", "Item price has changed")
	case errors.Is(err, progression.ErrNotOwned):
		writeError(w, http.StatusForbidden, "NOT_OWNED", "Item is not owned")
	case errors.Is(err, progression.ErrCorruptAccount):
		writeError(w, http.StatusInternalServerError, "ACCOUNT_INTEGRITY", "Account state failed integrity check")
	case errors.Is(err, repo.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found")
	case errors.Is(err, repo.ErrVersionConflict):
		writeError(w, http.StatusConflict, "CONFLICT", "Concurrent update, retry")
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
	}
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Username == "" || len(req.Password) < 6 {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Username and a password of 6+ characters required")
		return
	}
	userID, err := a.Service.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, repo.ErrUsernameTaken) {
			writeError(w, http.StatusConflict, "USERNAME_TAKEN", "Username already in use")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to register")
		return
	}
	writeJSON(w, http.StatusCreated, entityResponse{ID: userID})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	access, refresh, err := a.Service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to log in")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{AccessToken: access, RefreshToken: refresh})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	acc, err := a.Service.Snapshot(r.Context(), userID)
	if err != nil {
		writeProgressionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(acc))
}

func (a *API) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	settings, err := a.Repo.GetSettings(r.Context(), userID)
	if err != nil {
		writeProgressionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (a *API) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	var req settingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.View != "" {
		if err := a.Repo.UpdateView(r.Context(), userID, req.View); err != nil {
			writeProgressionError(w, err)
			return
		}
	}
	if req.Theme != "" {
		// Theme selection routes through the equip selector so the
		// ownership invariant holds.
		if _, err := a.Service.EquipItem(r.Context(), userID, req.Theme, catalog.KindTheme); err != nil {
			writeProgressionError(w, err)
			return
		}
	}
	settings, err := a.Repo.GetSettings(r.Context(), userID)
	if err != nil {
		writeProgressionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (a *API) handleListLists(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	lists, err := a.Repo.ListLists(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list lists")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lists": lists})
}

func (a *API) handleCreateList(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	var req listRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Name required")
		return
	}
	id, err := a.Repo.CreateList(r.Context(), userID, req.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create list")
		return
	}
	writeJSON(w, http.StatusCreated, entityResponse{ID: id})
}

func (a *API) handleRenameList(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id := chi.URLParam(r, "id")
	var req listRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Name required")
		return
	}
	if err := a.Repo.RenameList(r.Context(), id, userID, req.Name); err != nil {
		writeProgressionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entityResponse{ID: id})
}

func (a *API) handleDeleteList(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id := chi.URLParam(r, "id")
	if err := a.Repo.DeleteList(r.Context(), id, userID); err != nil {
		writeProgressionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleListTodos(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	listID := r.URL.Query().Get("list_id")
	todos, err := a.Repo.ListTodos(r.Context(), userID, listID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list todos")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"todos": todos})
}

func (a *API) handleCreateTodo(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	var req todoRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Text == "" || req.ListID == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "List_id and text required")
		return
	}
	id, err := a.Repo.CreateTodo(r.Context(), userID, req.ListID, req.Text, req.RelatedID, req.Deadline.ToTimePtr(), req.Flags)
	if err != nil {
		writeProgressionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entityResponse{ID: id})
}

func (a *API) handleGetTodo(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id := chi.URLParam(r, "id")
	todo, err := a.Repo.GetTodo(r.Context(), userID, id)
	if err != nil {
		writeProgressionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, todo)
}

func (a *API) handleUpdateTodo(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id := chi.URLParam(r, "id")
	var req todoRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Text required")
		return
	}
	if err := a.Repo.UpdateTodo(r.Context(), userID, id, req.Text, req.RelatedID, req.Deadline.ToTimePtr(), req.Flags); err != nil {
		writeProgressionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entityResponse{ID: id})
}

func (a *API) handleDeleteTodo(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id := chi.URLParam(r, "id")
	if err := a.Repo.DeleteTodo(r.Context(), userID, id); err != nil {
		writeProgressionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleRelatedTodos(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id := chi.URLParam(r, "id")
	todos, err := a.Repo.ListRelatedTodos(r.Context(), userID, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list related todos")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"todos": todos})
}

func (a *API) handleCompleteTodo(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id := chi.URLParam(r, "id")
	acc, err := a.Service.CompleteTask(r.Context(), userID, id)
	if err != nil {
		writeProgressionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(acc))
}

type catalogItemResponse struct {
	catalog.Item
	Owned    bool `json:"owned"`
	Equipped bool `json:"equipped"`
}

func (a *API) handleStoreCatalog(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	acc, err := a.Service.Snapshot(r.Context(), userID)
	if err != nil {
		writeProgressionError(w, err)
		return
	}
	items := make([]catalogItemResponse, 0, a.Catalog.Len())
	for _, item := range a.Catalog.Items() {
		items = append(items, catalogItemResponse{
			Item:     item,
			Owned:    progression.IsOwned(acc, item.Key),
			Equipped: item.Key == acc.CurrentTheme || item.Key == acc.CurrentTitle,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) handlePurchase(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	var req purchaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ItemKey == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Item_key required")
		return
	}
	acc, err := a.Service.PurchaseItem(r.Context(), userID, req.ItemKey, req.ExpectedPrice)
	if err != nil {
		writeProgressionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(acc))
}

func (a *API) handleEquip(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	var req equipRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	kind := catalog.Kind(req.Kind)
	if req.ItemKey == "" || (kind != catalog.KindTheme && kind != catalog.KindTitle) {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Item_key and kind (theme|title) required")
		return
	}
	acc, err := a.Service.EquipItem(r.Context(), userID, req.ItemKey, kind)
	if err != nil {
		writeProgressionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(acc))
}

func (a *API) handleScoreGoal(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	acc, err := a.Service.ScoreGoal(r.Context(), userID)
	if err != nil {
		writeProgressionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(acc))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid payload")
		return false
	}
	return true
}
