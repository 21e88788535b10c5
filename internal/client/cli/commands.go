package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/recochat/internal/client/models"
	"github.com/dmitrijs2005/recochat/internal/client/repositories/profile"
	"github.com/dmitrijs2005/recochat/internal/client/services"
	"github.com/dmitrijs2005/recochat/internal/client/session"
)

var errAlreadyRegistered = errors.New("already registered on this device")

func (a *App) Register(ctx context.Context, name string) error {
	if a.isRegistered() {
		return errAlreadyRegistered
	}

	resp, err := a.api.Register(ctx)
	if err != nil {
		return err
	}
	a.api.SetAccessToken(resp.Token)
	a.rt.SetAccessToken(resp.Token)

	if err := profile.Save(ctx, a.profile, profile.Profile{UserID: resp.ID, AccessToken: resp.Token, DisplayName: name}); err != nil {
		return err
	}
	a.bindUser(resp.ID, name)
	printlnFn("Registered as", resp.ID)

	a.ensureKeys(ctx)
	a.checkOnline(ctx)
	return nil
}

func (a *App) Keygen(ctx context.Context) error {
	_, prov, userID := a.current()

	ok, err := prov.IsProvisioned(ctx)
	if err != nil {
		return err
	}
	if ok && interactive() {
		yes, err := Confirm(a.reader, "This device already has a key. A new key makes existing conversations unreadable here until they are re-keyed. Continue?", a.out)
		if err != nil || !yes {
			return err
		}
	}

	if err := prov.Provision(ctx); err != nil {
		return err
	}
	a.mu.Lock()
	name := a.displayName
	a.mu.Unlock()
	a.bindUser(userID, name)
	printlnFn("New identity key uploaded")
	return nil
}

func (a *App) CreateChat(ctx context.Context, name string, participants []string) error {
	id, err := a.api.CreateChat(ctx, name, participants)
	if err != nil {
		return err
	}
	if err := a.chats.Upsert(ctx, models.Chat{ID: id, Name: name}); err != nil {
		a.logger.Warn(ctx, "failed to remember chat", "chat_id", id, "error", err)
	}
	printlnFn("Created chat", id)
	return nil
}

func (a *App) ListChats(ctx context.Context) error {
	list, err := a.chats.List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		printlnFn("No chats yet")
		return nil
	}
	for _, c := range list {
		opened := "never opened"
		if c.LastOpenedAt != nil {
			opened = c.LastOpenedAt.Local().Format("2006-01-02 15:04")
		}
		printlnFn(fmt.Sprintf("%s  %-20s %s", c.ID, c.Name, opened))
	}
	return nil
}

func (a *App) Open(ctx context.Context, chatID string) error {
	s, _, _ := a.current()

	a.mu.Lock()
	a.live = false
	a.mu.Unlock()

	if err := s.LoadPage(ctx, chatID, 1); err != nil {
		if services.IsBlocking(err) {
			printlnFn("This conversation cannot be decrypted on this device. Run 'keygen' and ask for a re-key.")
		}
		return err
	}
	if err := a.chats.Touch(ctx, chatID); err != nil {
		a.logger.Warn(ctx, "failed to remember chat", "chat_id", chatID, "error", err)
	}

	msgs := s.Messages()
	printMessages(msgs)
	if len(msgs) == 0 {
		printlnFn("(no messages yet)")
	}

	a.mu.Lock()
	a.live = true
	a.lastShown = lastID(msgs)
	a.mu.Unlock()

	// catch up on anything appended meanwhile
	a.printNew(s)
	return nil
}

func (a *App) More(ctx context.Context) error {
	s, _, _ := a.current()
	if !s.HasMoreMessages() {
		printlnFn("(beginning of conversation)")
		return nil
	}

	before := len(s.Messages())
	if err := s.LoadMore(ctx); err != nil {
		return err
	}
	msgs := s.Messages()
	added := len(msgs) - before
	if added > 0 {
		printMessages(msgs[:added])
	}
	printlnFn(fmt.Sprintf("Loaded %d older messages", added))
	if !s.HasMoreMessages() {
		printlnFn("(beginning of conversation)")
	}
	return nil
}

func (a *App) Send(ctx context.Context, text string) error {
	s, _, _ := a.current()
	chatID := s.ChatID()
	if chatID == "" {
		return session.ErrNoConversation
	}
	if _, err := s.Send(ctx, chatID, text); err != nil {
		return err
	}
	if a.rt.Err() != nil {
		printlnFn("Sent; realtime is offline, 'open " + chatID + "' to refresh")
	}
	return nil
}

func (a *App) Show(ctx context.Context) error {
	s, _, _ := a.current()
	if s.ChatID() == "" {
		return session.ErrNoConversation
	}
	printMessages(s.Messages())
	return nil
}

func (a *App) Status(ctx context.Context) error {
	a.mu.Lock()
	userID, name, mode, s, prov := a.userID, a.displayName, a.Mode, a.session, a.provisioner
	a.mu.Unlock()

	if userID == "" {
		printlnFn("Not registered; mode:", mode)
		return nil
	}

	provisioned, err := prov.IsProvisioned(ctx)
	if err != nil {
		return err
	}
	realtime := "connected"
	if a.rt.Err() != nil {
		realtime = "disconnected"
	}

	lines := []string{
		"user:        " + userID,
		"name:        " + name,
		"mode:        " + string(mode),
		"realtime:    " + realtime,
		fmt.Sprintf("key:         %t", provisioned),
	}
	if chatID := s.ChatID(); chatID != "" {
		lines = append(lines,
			"chat:        "+chatID,
			"state:       "+s.State().String(),
			fmt.Sprintf("messages:    %d (more: %t)", len(s.Messages()), s.HasMoreMessages()),
		)
		if err := s.Blocked(); err != nil {
			lines = append(lines, "blocked:     "+err.Error())
		}
	}
	printlnFn(strings.Join(lines, "\n"))
	return nil
}

// printNew prints messages appended after the last one shown.
func (a *App) printNew(s *session.Session) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.live || s != a.session || s.State() != session.Ready {
		return
	}

	msgs := s.Messages()
	start := 0
	if a.lastShown != "" {
		start = -1
		for i := len(msgs) - 1; i >= 0; i-- {
			if msgs[i].ID == a.lastShown {
				start = i + 1
				break
			}
		}
		if start < 0 {
			// list was replaced; resync silently
			a.lastShown = lastID(msgs)
			return
		}
	}
	if start >= len(msgs) {
		return
	}
	printMessages(msgs[start:])
	a.lastShown = lastID(msgs)
}

func lastID(msgs []models.Message) string {
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1].ID
}

func printMessages(msgs []models.Message) {
	for _, m := range msgs {
		printlnFn(formatMessage(m))
	}
}

func formatMessage(m models.Message) string {
	who := m.CreatedBy
	if who == "" {
		who = m.SenderID
	}
	return fmt.Sprintf("[%s] %s: %s", m.CreatedAt.Local().Format("01-02 15:04"), who, m.Content)
}

// Logout forgets this device's identity: the private key, the saved
// profile and the open conversation. Without the key the device can no
// longer read the user's conversations.
func (a *App) Logout(ctx context.Context) error {
	_, prov, _ := a.current()

	if interactive() {
		yes, err := Confirm(a.reader, "Logging out deletes this device's key. Conversations cannot be read here afterwards. Continue?", a.out)
		if err != nil || !yes {
			return err
		}
	}

	if err := prov.Revoke(ctx); err != nil {
		return err
	}
	if err := profile.Clear(ctx, a.profile); err != nil {
		return err
	}

	a.mu.Lock()
	s, stop := a.session, a.stopWatch
	a.session, a.stopWatch, a.provisioner = nil, nil, nil
	a.userID, a.displayName = "", ""
	a.lastShown, a.live = "", false
	a.mu.Unlock()

	if stop != nil {
		stop()
	}
	if s != nil {
		_ = s.Close()
	}
	a.api.SetAccessToken("")
	a.rt.SetAccessToken("")

	printlnFn("Logged out")
	return nil
}
