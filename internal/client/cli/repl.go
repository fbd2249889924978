package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Contacts(ctx context.Context, query string) error
	Chats(ctx context.Context) error
	Open(ctx context.Context, username string) error
	Send(ctx context.Context, text string) error
	Show(ctx context.Context) error
}

// runREPL starts a simple read–eval–print loop for the sentinel CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF or when the user types
// "exit" or "quit".
//
// Commands
//
//	Not logged in:
//	  - help            — show available commands
//	  - register        — create an account
//	  - login           — authenticate and unlock the key
//	  - exit | quit     — leave the program
//
//	Logged in:
//	  - contacts <q>    — search peers by username
//	  - chats           — list conversations with unread counters
//	  - open <username> — make a peer's chat current
//	  - send <text>     — send a message to the current chat
//	  - show            — print the current chat timeline
//	  - logout          — close the session and wipe local data
//	  - exit | quit     — leave the program
//
// Handlers report their own failures (App.reportError) before returning, so
// the loop discards the already-reported error and keeps reading input.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("sentinel %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: contacts <q>, chats, open <username>, send <text>, show, logout, exit")
			} else {
				printlnFn("Available commands: register, login, exit")
			}

		case "register":
			_ = a.Register(ctx)

		case "login":
			_ = a.Login(ctx)

		case "contacts":
			if len(args) == 0 {
				printlnFn("Usage: contacts <query>")
				continue
			}
			_ = a.Contacts(ctx, strings.Join(args, " "))

		case "chats":
			_ = a.Chats(ctx)

		case "open":
			if len(args) == 0 {
				printlnFn("Usage: open <username>")
				continue
			}
			_ = a.Open(ctx, args[0])

		case "send":
			if len(args) == 0 {
				printlnFn("Usage: send <text>")
				continue
			}
			_ = a.Send(ctx, strings.Join(args, " "))

		case "show":
			_ = a.Show(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
