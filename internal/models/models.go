// Package models holds the wire payloads shared by the sync server and the
// sync client, together with the error taxonomy both sides map statuses onto.
package models

import "time"

// CredentialsRequest is the body of POST /api/register and POST /api/login.
type CredentialsRequest struct {
	Username string `json:"username"`
	Pin      string `json:"pin"`
}

// UserInfo is the public part of a user record.
type UserInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// AuthResponse is returned by a successful registration or login.
type AuthResponse struct {
	Success bool     `json:"success"`
	User    UserInfo `json:"user"`
}

// Tab is one stored text buffer as the server returns it.
type Tab struct {
	TabID     string    `json:"tab_id"`
	TabName   string    `json:"tab_name"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Tabs []Tab

type TabsResponse struct {
	Success bool `json:"success"`
	Tabs    Tabs `json:"tabs"`
}

// SaveTabRequest is the body of POST /api/tabs. Missing name and content are
// stored as empty strings.
type SaveTabRequest struct {
	UserID  string `json:"userId"`
	TabID   string `json:"tabId"`
	TabName string `json:"tabName"`
	Content string `json:"content"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type InternalStatsResponse struct {
	Users int64 `json:"users"`
	Tabs  int64 `json:"tabs"`
}

const (
	StorageTypeUnknown = iota
	StorageTypePostgresql
	StorageTypeFile
	StorageTypeMemory
)

// MaxTabIDLength mirrors the width of the tabs.tab_id column.
const MaxTabIDLength = 50
