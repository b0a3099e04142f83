package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/loykin/landodeck/internal/config"
	"github.com/loykin/landodeck/pkg/client"
)

func printJSON(w io.Writer, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	_, _ = fmt.Fprintln(w, string(b))
}

// apiURLFromConfig points at the daemon the config describes. Wildcard
// listen hosts are reached over loopback.
func apiURLFromConfig(cfg config.Config) string {
	host, port, err := net.SplitHostPort(cfg.Server.Listen)
	if err != nil || port == "" {
		return client.DefaultBaseURL
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/" + strings.Trim(cfg.Server.BasePath, "/")
}

// operationStatus is the one-line outcome printed after an operation ends.
func operationStatus(id string, l client.Logs) string {
	switch {
	case l.Succeeded():
		return fmt.Sprintf("Operation %s succeeded", id)
	case l.Cancelled:
		return fmt.Sprintf("Operation %s cancelled", id)
	case l.Error != nil:
		return fmt.Sprintf("Operation %s failed: %s", id, *l.Error)
	}
	return fmt.Sprintf("Operation %s failed", id)
}
