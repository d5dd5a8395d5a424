// Package misc holds small console helpers shared by the login flows.
package misc

import (
	"fmt"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// credentialSeparator visually groups related log lines.
var credentialSeparator = strings.Repeat("-", 67)

// LogSavingCredentials emits a consistent message when persisting auth material.
func LogSavingCredentials(path string) {
	if path == "" {
		return
	}
	fmt.Printf("Saving credentials to %s\n", filepath.Clean(path))
}

// LogCredentialSeparator adds a visual separator to group auth processing logs.
func LogCredentialSeparator() {
	log.Debug(credentialSeparator)
}
