package client

import (
	"encoding/json"
	"time"
)

// Site is one Lando app as listed by the daemon.
type Site struct {
	App     string   `json:"app"`
	Running bool     `json:"running"`
	Dir     string   `json:"dir"`
	URLs    []string `json:"urls"`
	Recipe  string   `json:"recipe"`
}

// CreateSiteRequest describes a new site.
type CreateSiteRequest struct {
	Name     string `json:"name"`
	Recipe   string `json:"recipe"`
	PHP      string `json:"php,omitempty"`
	Database string `json:"database,omitempty"`
	Webroot  string `json:"webroot,omitempty"`
}

// MigrateRequest lists the settings to change; empty fields are left alone.
type MigrateRequest struct {
	PHP        string `json:"php,omitempty"`
	Database   string `json:"database,omitempty"`
	PhpMyAdmin *bool  `json:"phpmyadmin,omitempty"`
}

// SiteInfo is the raw Landofile and the output of `lando info`.
type SiteInfo struct {
	Config string          `json:"config"`
	Info   json.RawMessage `json:"info"`
}

// Logs is one poll of an operation log.
type Logs struct {
	Logs             []string `json:"logs"`
	Completed        bool     `json:"completed"`
	OperationSuccess *bool    `json:"operationSuccess"`
	Error            *string  `json:"error"`
	Cancelled        bool     `json:"cancelled"`
	Total            int      `json:"total"`
}

// Succeeded reports a completed, successful operation.
func (l Logs) Succeeded() bool {
	return l.Completed && l.OperationSuccess != nil && *l.OperationSuccess
}

// OperationSummary is an operation without its lines.
type OperationSummary struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	Site       string     `json:"site"`
	Status     string     `json:"status"`
	Completed  bool       `json:"completed"`
	Success    *bool      `json:"success"`
	Error      string     `json:"error,omitempty"`
	Lines      int        `json:"lines"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// Detected is the daemon's auto-detected setup.
type Detected struct {
	LandoPath           string `json:"landoPath"`
	SitesDirectory      string `json:"sitesDirectory"`
	LandoValid          bool   `json:"landoValid"`
	SitesDirectoryValid bool   `json:"sitesDirectoryValid"`
}

// Verified is the result of checking user supplied settings.
type Verified struct {
	LandoValid          bool `json:"landoValid"`
	SitesDirectoryValid bool `json:"sitesDirectoryValid"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
