package cli

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/sentinel-chat/sentinel/internal/shared"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for a username and password, creates the account with a
// fresh identity key pair, and opens the session.
//
// The password byte slice is securely wiped before returning.
func (a *App) Register(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer shared.WipeByteArray(password)

	unlocked, err := a.authService.Register(ctx, userName, password)
	if err != nil {
		log.Printf("Registration unsuccessful: %s", err.Error())
		return err
	}

	if err := a.startSession(ctx, unlocked); err != nil {
		log.Printf("Channel open failed: %s", err.Error())
		return err
	}
	fmt.Println("Success!")
	return nil
}

// Login prompts for credentials, authenticates, unlocks the private key and
// opens the session. The password is securely wiped before returning.
func (a *App) Login(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer shared.WipeByteArray(password)

	unlocked, err := a.authService.Login(ctx, userName, password)
	if err != nil {
		log.Printf("Login unsuccessful: %s", err.Error())
		return err
	}

	if err := a.startSession(ctx, unlocked); err != nil {
		log.Printf("Channel open failed: %s", err.Error())
		return err
	}
	log.Printf("Login successful")
	return nil
}

// Logout closes the session and wipes the locally cached keys and messages.
func (a *App) Logout(ctx context.Context) error {
	a.stopSession()
	if err := a.authService.Logout(ctx); err != nil {
		return err
	}
	fmt.Println("Logged out")
	return nil
}
