package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/router-for-me/cursor-login/internal/auth/cursor"
	"github.com/router-for-me/cursor-login/internal/config"
	"github.com/router-for-me/cursor-login/internal/misc"
	"github.com/router-for-me/cursor-login/internal/store"
	"github.com/router-for-me/cursor-login/internal/util"
	sdkAuth "github.com/router-for-me/cursor-login/sdk/auth"
	log "github.com/sirupsen/logrus"
)

// LoginOptions contains options for the login process.
type LoginOptions struct {
	// NoBrowser indicates whether to skip opening the browser automatically.
	NoBrowser bool

	// CopyToken copies the issued access token to the clipboard.
	CopyToken bool

	// MaxAttempts overrides the configured poll attempt budget when > 0.
	MaxAttempts int

	// Slots stores the confirmed session credential. Nil disables the slot.
	Slots store.SlotStore

	// Prompt allows the caller to provide interactive input when needed.
	Prompt func(prompt string) (string, error)
}

// writeClipboard is replaced in tests.
var writeClipboard = clipboard.WriteAll

// DoCursorLogin runs the Cursor deep-login handshake and saves the issued token.
// The credential prompt defaults to the value stored in the credential slot.
//
// Parameters:
//   - ctx: Cancelling it aborts the prompt and the poll loop
//   - cfg: The application configuration containing proxy and auth directory settings
//   - options: Login options including browser and clipboard behavior
func DoCursorLogin(ctx context.Context, cfg *config.Config, options *LoginOptions) {
	if options == nil {
		options = &LoginOptions{}
	}
	misc.LogCredentialSeparator()
	defer misc.LogCredentialSeparator()

	record, savedPath, err := runCursorLogin(ctx, cfg, options, newAuthManager())
	if err != nil {
		log.Errorf("Cursor authentication failed: %v", err)
		if cursor.IsAuthenticationError(err) {
			fmt.Println(cursor.GetUserFriendlyMessage(err))
		}
		return
	}

	if savedPath != "" {
		fmt.Printf("Authentication saved to %s\n", savedPath)
	}
	userID, _ := record.Metadata["user_id"].(string)
	token, _ := record.Metadata["access_token"].(string)
	if userID != "" {
		fmt.Printf("User ID: %s\n", userID)
	}
	fmt.Printf("Access token: %s\n", token)
	if options.CopyToken {
		if errCopy := writeClipboard(token); errCopy != nil {
			log.Warnf("failed to copy token to clipboard: %v", errCopy)
		} else {
			fmt.Println("Access token copied to clipboard.")
		}
	}
}

func runCursorLogin(ctx context.Context, cfg *config.Config, options *LoginOptions, manager *sdkAuth.Manager) (*sdkAuth.Auth, string, error) {
	promptFn := options.Prompt
	if promptFn == nil {
		reader := bufio.NewReader(os.Stdin)
		promptFn = func(prompt string) (string, error) {
			fmt.Print(prompt)
			value, err := reader.ReadString('\n')
			if err != nil {
				return "", err
			}
			return strings.TrimSpace(value), nil
		}
	}

	stored := ""
	if options.Slots != nil {
		value, err := options.Slots.Get(ctx, store.CredentialSlotKey)
		if err != nil {
			log.Warnf("failed to read stored credential: %v", err)
		}
		stored = value
	}

	credential, err := promptForCredential(contextPrompt(ctx, promptFn), stored)
	if err != nil {
		return nil, "", err
	}
	if credential != "" {
		cookieName := config.DefaultCookieName
		if cfg != nil {
			cookieName = cfg.Cursor.CookieName
		}
		if _, errNormalize := cursor.NormalizeCredential(credential, cookieName); errNormalize != nil {
			return nil, "", fmt.Errorf("invalid session token: %w", errNormalize)
		}
	}
	if credential != "" && credential != stored && options.Slots != nil {
		if errSet := options.Slots.Set(ctx, store.CredentialSlotKey, credential); errSet != nil {
			log.Warnf("failed to store credential: %v", errSet)
		}
	}

	authOpts := &sdkAuth.LoginOptions{
		NoBrowser:   options.NoBrowser,
		Credential:  credential,
		MaxAttempts: options.MaxAttempts,
		Metadata:    map[string]string{},
		Prompt:      promptFn,
	}
	return manager.Login(ctx, "cursor", cfg, authOpts)
}

// contextPrompt returns a prompt that gives up when ctx is done. A blocked
// stdin read keeps its goroutine until the process exits.
func contextPrompt(ctx context.Context, promptFn func(string) (string, error)) func(string) (string, error) {
	return func(prompt string) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		type answer struct {
			line string
			err  error
		}
		done := make(chan answer, 1)
		go func() {
			line, err := promptFn(prompt)
			done <- answer{line: line, err: err}
		}()
		select {
		case <-ctx.Done():
			fmt.Println()
			return "", ctx.Err()
		case a := <-done:
			return a.line, a.err
		}
	}
}

// promptForCredential asks for the web session credential. An empty answer
// keeps the stored value; "-" clears it for this login.
func promptForCredential(promptFn func(string) (string, error), stored string) (string, error) {
	prompt := "Enter Cursor session token (optional, press Enter to skip): "
	if stored != "" {
		prompt = fmt.Sprintf("Enter Cursor session token [stored %s, Enter to reuse, - to skip]: ", util.HideAPIKey(stored))
	}
	line, err := promptFn(prompt)
	if err != nil {
		return "", fmt.Errorf("failed to read session token: %w", err)
	}
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return stored, nil
	case "-":
		return "", nil
	}
	return line, nil
}
