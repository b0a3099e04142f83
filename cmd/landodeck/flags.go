package main

import "time"

// GlobalFlags are the persistent flags shared by every command.
type GlobalFlags struct {
	ConfigPath string
	APIUrl     string
	APITimeout time.Duration
}

type ServeFlags struct {
	LogLevel  string
	LogFormat string
	NoDocker  bool
}

// WaitFlags decide whether an operation command follows the log.
type WaitFlags struct {
	Wait     bool
	Interval time.Duration
}

type CreateFlags struct {
	Recipe   string
	PHP      string
	Database string
	Webroot  string
	WaitFlags
}

type MigrateFlags struct {
	PHP          string
	Database     string
	PhpMyAdmin   bool
	NoPhpMyAdmin bool
	WaitFlags
}

type LogsFlags struct {
	Follow   bool
	Since    int
	Interval time.Duration
}

type VerifyFlags struct {
	LandoPath      string
	SitesDirectory string
}
