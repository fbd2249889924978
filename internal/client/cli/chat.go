package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/sentinel-chat/sentinel/internal/client/models"
)

// Contacts searches peers by (partial) username and prints the matches.
func (a *App) Contacts(ctx context.Context, query string) error {
	if a.session == nil {
		fmt.Println("Log in first")
		return nil
	}
	contacts, err := a.session.SearchContacts(ctx, query)
	if err != nil {
		return a.reportError(err)
	}
	if len(contacts) == 0 {
		fmt.Println("No matches")
		return nil
	}
	for _, c := range contacts {
		fmt.Printf("  %s  (%s)\n", c.Username, c.Fingerprint)
	}
	return nil
}

// Chats lists the conversations with their unread counters.
func (a *App) Chats(ctx context.Context) error {
	if a.session == nil {
		fmt.Println("Log in first")
		return nil
	}
	convs, err := a.session.Conversations(ctx)
	if err != nil {
		return a.reportError(err)
	}
	if len(convs) == 0 {
		fmt.Println("No conversations yet")
		return nil
	}
	own := a.session.Identity().Fingerprint
	for _, conv := range convs {
		var peers []string
		for _, p := range conv.Participants {
			if p.User.Fingerprint != own {
				peers = append(peers, p.User.Username)
			}
		}
		unread := a.session.Unread(conv.ID)
		marker := ""
		if unread > 0 {
			marker = fmt.Sprintf("  [%d unread]", unread)
		}
		fmt.Printf("  #%d  %s%s\n", conv.ID, strings.Join(peers, ", "), marker)
	}
	return nil
}

// Open makes the named peer's conversation current and prints its history.
// A peer without an existing conversation starts a fresh one on first send.
func (a *App) Open(ctx context.Context, username string) error {
	if a.session == nil {
		fmt.Println("Log in first")
		return nil
	}
	contacts, err := a.session.SearchContacts(ctx, username)
	if err != nil {
		return a.reportError(err)
	}
	var peer *models.Contact
	for i := range contacts {
		if strings.EqualFold(contacts[i].Username, username) {
			peer = &contacts[i]
			break
		}
	}
	if peer == nil {
		fmt.Println("No such user:", username)
		return nil
	}

	if err := a.session.OpenConversation(ctx, *peer); err != nil {
		return a.reportError(err)
	}
	a.current = peer
	fmt.Printf("Opened chat with %s\n", peer.Username)
	return a.Show(ctx)
}

// Send encrypts and transmits one message to the current peer.
func (a *App) Send(ctx context.Context, text string) error {
	if a.current == nil {
		fmt.Println("Open a chat first: open <username>")
		return nil
	}
	if _, err := a.session.SendText(ctx, text); err != nil {
		return a.reportError(err)
	}
	return nil
}

// Show prints the merged timeline of the current conversation.
func (a *App) Show(ctx context.Context) error {
	if a.current == nil {
		fmt.Println("Open a chat first: open <username>")
		return nil
	}
	own := a.session.Identity().Fingerprint
	for _, m := range a.session.Timeline() {
		author := a.current.Username
		if m.SenderFP == own {
			author = "me"
		}
		body := m.Content
		if m.Unreadable {
			body = "<unreadable>"
		}
		marker := ""
		if !m.Confirmed() {
			marker = " (sending...)"
		}
		fmt.Printf("  [%s] %s: %s%s\n", m.CreatedAt.Local().Format("15:04"), author, body, marker)
	}
	return nil
}
