package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"chatwidget-backend/internal/config"
	"chatwidget-backend/internal/conversation"
	"chatwidget-backend/internal/credentials"
	"chatwidget-backend/internal/models"
	"chatwidget-backend/internal/provider"
	"chatwidget-backend/internal/services"
)

func newChatCmd() *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the configured provider from the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			setupLogging(cfg)
			// keep request logs off the conversation
			if zerolog.GlobalLevel() < zerolog.WarnLevel {
				zerolog.SetGlobalLevel(zerolog.WarnLevel)
			}

			p, err := provider.New(cfg)
			if err != nil {
				return err
			}

			var store credentials.Store = credentials.NewFileStore(cfg.CredentialFile)
			key, err := cfg.SealKey()
			if err != nil {
				return err
			}
			if key != nil {
				store = credentials.NewSealedStore(store, key)
			}

			t := newTerminal(os.Stdin, os.Stdout, p, credentials.SingleSlot(store, credentials.LocalStorageKey), cfg)
			t.category = category
			return t.run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "topic sent with each question ("+strings.Join(models.Categories, ", ")+")")
	return cmd
}

// terminal drives one conversation from a line-oriented stream.
type terminal struct {
	in       *bufio.Reader
	out      io.Writer
	chat     *services.ChatService
	session  *conversation.Session
	category string

	// readSecret reads the credential without echoing it.
	readSecret func() (string, error)

	user      *color.Color
	assistant *color.Color
	notice    *color.Color
	errColor  *color.Color
}

func newTerminal(in io.Reader, out io.Writer, p provider.Provider, store credentials.Store, cfg *config.Config) *terminal {
	t := &terminal{
		in:        bufio.NewReader(in),
		out:       out,
		user:      color.New(color.FgCyan, color.Bold),
		assistant: color.New(color.FgGreen),
		notice:    color.New(color.FgYellow),
		errColor:  color.New(color.FgRed),
	}
	t.chat = services.NewChatService(conversation.NewRegistry(cfg.Greeting, nil), p, store, t, cfg.ProviderAPIKey, cfg.Language)
	t.session = t.chat.OpenSession()
	t.readSecret = t.readLine
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		t.readSecret = func() (string, error) {
			b, err := term.ReadPassword(int(f.Fd()))
			fmt.Fprintln(t.out)
			return string(b), err
		}
	}
	return t
}

// Publish shows notifications; messages are printed by the loop itself.
func (t *terminal) Publish(_ uuid.UUID, msg models.WSMessage) {
	n, ok := msg.Payload.(models.Notification)
	if msg.Type != models.EventNotification || !ok {
		return
	}
	c := t.notice
	if n.Variant == "destructive" {
		c = t.errColor
	}
	c.Fprintf(t.out, "[%s] %s\n", n.Title, n.Description)
}

func (t *terminal) readLine() (string, error) {
	line, err := t.in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (t *terminal) run(ctx context.Context) error {
	t.printMessage(t.session.Conversation.All()[0])
	t.notice.Fprintln(t.out, "Commands: /key, /category <name>, /history, /exit")

	for {
		t.user.Fprint(t.out, "You: ")
		line, err := t.readLine()
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(t.out)
			return nil
		}
		if err != nil {
			return err
		}

		text := strings.TrimSpace(line)
		if strings.HasPrefix(text, "/") {
			if done := t.command(ctx, text); done {
				return nil
			}
			continue
		}
		if err := t.send(ctx, line); err != nil {
			return err
		}
	}
}

func (t *terminal) command(ctx context.Context, text string) (exit bool) {
	fields := strings.Fields(text)
	switch fields[0] {
	case "/exit", "/quit":
		return true
	case "/key":
		if err := t.promptKey(ctx); err != nil {
			t.errColor.Fprintf(t.out, "%v\n", err)
		}
	case "/history":
		for _, m := range t.session.Conversation.All() {
			t.printMessage(m)
		}
	case "/category":
		name := ""
		if len(fields) > 1 {
			name = fields[1]
		}
		cat, ok := models.NormalizeCategory(name)
		if !ok {
			t.errColor.Fprintf(t.out, "Unknown category %q. Choose one of: %s\n", name, strings.Join(models.Categories, ", "))
			return false
		}
		t.category = cat
		if cat == "" {
			t.notice.Fprintln(t.out, "Category cleared")
		} else {
			t.notice.Fprintf(t.out, "Category set to %s\n", cat)
		}
	default:
		t.errColor.Fprintf(t.out, "Unknown command %s\n", fields[0])
	}
	return false
}

func (t *terminal) promptKey(ctx context.Context) error {
	t.notice.Fprint(t.out, "Enter RapidAPI Key: ")
	key, err := t.readSecret()
	if err != nil {
		return err
	}
	return t.chat.SaveCredential(ctx, t.session.ID, key)
}

// send runs one turn inline; the terminal waits for the reply.
func (t *terminal) send(ctx context.Context, text string) error {
	turn, err := t.chat.Begin(ctx, t.session.ID, text, t.category)

	var credErr *services.CredentialRequiredError
	if errors.As(err, &credErr) {
		if err := t.promptKey(ctx); err != nil {
			var verr *services.ValidationError
			if errors.As(err, &verr) {
				return nil
			}
			return err
		}
		turn, err = t.chat.Begin(ctx, t.session.ID, text, t.category)
	}

	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		// empty input or unknown category; nothing was sent
		for _, msg := range verr.Fields {
			if strings.TrimSpace(text) != "" {
				t.errColor.Fprintln(t.out, msg)
			}
		}
		return nil
	case err != nil:
		return err
	}

	t.printMessage(t.chat.Complete(ctx, turn))
	return nil
}

func (t *terminal) printMessage(m models.Message) {
	switch m.Role {
	case models.RoleUser:
		t.user.Fprint(t.out, "You: ")
	default:
		t.assistant.Fprint(t.out, "Assistant: ")
	}
	fmt.Fprintln(t.out, m.Content)
}
