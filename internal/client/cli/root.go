package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
)

func (a *App) getStatus() string {
	s := ""
	if a.isLoggedIn() {
		s = a.session.Identity().Username
		if a.current != nil {
			s = fmt.Sprintf("%s @ %s", s, a.current.Username)
		}
	}
	if s != "" {
		s = fmt.Sprintf("(%s) ", s)
	}
	return s
}

// Root runs the interactive loop on stdin.
func (a *App) Root(ctx context.Context) {
	fmt.Println("Welcome to sentinel CLI (type 'help' for commands)")
	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, a.getStatus, scanner)
}
