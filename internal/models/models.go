package models

import "time"

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type TodoList struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Name      string    `json:"name"`
	TaskCount int       `json:"task_count"`
	CreatedAt time.Time `json:"created_at"`
}

type Todo struct {
	ID          string     `json:"id"`
	ListID      string     `json:"list_id"`
	Text        string     `json:"text"`
	RelatedID   *string    `json:"related_id"`
	Deadline    *time.Time `json:"deadline"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at"`
	Flags       int        `json:"flags"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Version     int        `json:"version"`
}

type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Settings is the persisted presentation preference. The equipped theme is
// authoritative on the progression account; View is a plain preference.
type Settings struct {
	Theme string `json:"theme"`
	View  string `json:"view"`
}
