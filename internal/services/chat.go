package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"chatwidget-backend/internal/conversation"
	"chatwidget-backend/internal/credentials"
	"chatwidget-backend/internal/models"
	"chatwidget-backend/internal/provider"
)

// FallbackReply replaces a provider answer that lacks the expected reply field.
const FallbackReply = "Sorry, I couldn't get a proper response."

const failurePrefix = "Sorry, something went wrong: "

// Notifier pushes events to the views of a session.
type Notifier interface {
	Publish(sessionID uuid.UUID, msg models.WSMessage)
}

// Dispatcher runs turns in the background.
type Dispatcher interface {
	Enqueue(turn *Turn) error
}

type nopNotifier struct{}

func (nopNotifier) Publish(uuid.UUID, models.WSMessage) {}

// Turn is one accepted user submission waiting for its reply.
type Turn struct {
	Session    *conversation.Session
	Message    models.Message
	Version    uint64
	Category   string
	credential string
}

type ChatService struct {
	sessions   *conversation.Registry
	provider   provider.Provider
	creds      credentials.Store
	notifier   Notifier
	dispatcher Dispatcher

	// processCredential is used when a session has not supplied its own.
	processCredential string
	language          string
}

func NewChatService(
	sessions *conversation.Registry,
	p provider.Provider,
	creds credentials.Store,
	notifier Notifier,
	processCredential string,
	language string,
) *ChatService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &ChatService{
		sessions:          sessions,
		provider:          p,
		creds:             creds,
		notifier:          notifier,
		processCredential: strings.TrimSpace(processCredential),
		language:          language,
	}
}

// SetDispatcher installs the background runner used by Submit. Without one,
// Submit completes turns on a new goroutine.
func (s *ChatService) SetDispatcher(d Dispatcher) {
	s.dispatcher = d
}

func (s *ChatService) OpenSession() *conversation.Session {
	sess := s.sessions.Create()
	log.Debug().Str("session_id", sess.ID.String()).Msg("session opened")
	return sess
}

func (s *ChatService) CloseSession(id uuid.UUID) error {
	if !s.sessions.Close(id) {
		return &NotFoundError{Message: "Session not found"}
	}
	log.Debug().Str("session_id", id.String()).Msg("session closed")
	return nil
}

func (s *ChatService) session(id uuid.UUID) (*conversation.Session, error) {
	sess, ok := s.sessions.Get(id)
	if !ok {
		return nil, &NotFoundError{Message: "Session not found"}
	}
	return sess, nil
}

func (s *ChatService) State(ctx context.Context, id uuid.UUID) (*models.SessionState, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	cred, err := s.credential(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.SessionState{
		SessionID:     sess.ID,
		Messages:      sess.Conversation.All(),
		Version:       sess.Conversation.Version(),
		Awaiting:      sess.Awaiting(),
		Category:      sess.Category(),
		HasCredential: cred != "",
	}, nil
}

// Begin validates a submission and records the user's message.
// Nothing is appended and no request is issued when it returns an error.
func (s *ChatService) Begin(ctx context.Context, id uuid.UUID, text, category string) (*Turn, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(text) == "" {
		return nil, &ValidationError{Fields: map[string]string{"message": "Message is required"}}
	}
	cat, ok := models.NormalizeCategory(category)
	if !ok {
		return nil, &ValidationError{Fields: map[string]string{"category": "Unknown category"}}
	}

	if sess.Awaiting() {
		return nil, &BusyError{Message: "A response is already pending"}
	}

	cred, err := s.credential(ctx, id)
	if err != nil {
		return nil, err
	}
	if cred == "" {
		s.notifier.Publish(id, models.WSMessage{Type: models.EventCredentialRequired, Payload: nil})
		s.notify(id, models.Notification{
			Title:       "API Key Required",
			Description: "Please enter your RapidAPI key to start chatting.",
			Variant:     "destructive",
		})
		return nil, &CredentialRequiredError{Message: "An API key is required before chatting"}
	}

	if !sess.TryBegin() {
		return nil, &BusyError{Message: "A response is already pending"}
	}
	sess.SetCategory(cat)

	msg := models.UserMessage(text)
	version := s.append(sess, msg)
	s.notifier.Publish(id, models.WSMessage{Type: models.EventAwaitingChanged, Payload: models.AwaitingChanged{Awaiting: true}})

	return &Turn{Session: sess, Message: msg, Version: version, Category: cat, credential: cred}, nil
}

// Complete performs the provider call for turn and appends exactly one
// assistant message, whatever the outcome. The awaiting flag is cleared
// before it returns.
func (s *ChatService) Complete(ctx context.Context, turn *Turn) models.Message {
	sess := turn.Session
	defer s.settle(sess)

	reply, err := s.provider.Send(ctx, sess.Conversation.All(), provider.Params{
		Credential: turn.credential,
		Category:   turn.Category,
		Language:   s.language,
	})

	switch {
	case err == nil:
	case provider.KindOf(err) == provider.KindMalformed:
		log.Warn().Err(err).Str("session_id", sess.ID.String()).Msg("provider returned no reply field")
		reply = models.AssistantMessage(FallbackReply)
	default:
		reply = s.failureMessage(sess.ID, err)
	}

	s.append(sess, reply)
	return reply
}

// Submit begins a turn and hands it to the dispatcher.
func (s *ChatService) Submit(ctx context.Context, id uuid.UUID, text, category string) (*Turn, error) {
	turn, err := s.Begin(ctx, id, text, category)
	if err != nil {
		return nil, err
	}

	if s.dispatcher == nil {
		go s.Complete(context.Background(), turn)
		return turn, nil
	}
	if err := s.dispatcher.Enqueue(turn); err != nil {
		s.append(turn.Session, s.failureMessage(id, err))
		s.settle(turn.Session)
	}
	return turn, nil
}

// SaveCredential stores the session credential and confirms it to the user.
func (s *ChatService) SaveCredential(ctx context.Context, id uuid.UUID, value string) error {
	if err := s.storeCredential(ctx, id, value); err != nil {
		return err
	}
	s.notify(id, models.Notification{
		Title:       "API Key Saved",
		Description: "Your RapidAPI key has been securely saved.",
		Variant:     "default",
	})
	return nil
}

// RestoreCredential stores a credential the user saved earlier, such as the
// one a widget reloads from local storage. Nothing is announced.
func (s *ChatService) RestoreCredential(ctx context.Context, id uuid.UUID, value string) error {
	return s.storeCredential(ctx, id, value)
}

func (s *ChatService) storeCredential(ctx context.Context, id uuid.UUID, value string) error {
	if _, err := s.session(id); err != nil {
		return err
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return &ValidationError{Fields: map[string]string{"api_key": "API key is required"}}
	}
	return s.creds.Set(ctx, id.String(), value)
}

// credential resolves the session credential, then the process one.
func (s *ChatService) credential(ctx context.Context, id uuid.UUID) (string, error) {
	v, err := s.creds.Get(ctx, id.String())
	switch {
	case err == nil && strings.TrimSpace(v) != "":
		return v, nil
	case err == nil, errors.Is(err, credentials.ErrNotFound):
		return s.processCredential, nil
	case errors.Is(err, credentials.ErrUnsealFailed):
		log.Warn().Str("session_id", id.String()).Msg("stored credential could not be unsealed")
		return s.processCredential, nil
	default:
		return "", err
	}
}

func (s *ChatService) failureMessage(id uuid.UUID, err error) models.Message {
	reason := provider.ReasonOf(err)
	log.Error().Err(err).Str("session_id", id.String()).Str("kind", string(provider.KindOf(err))).Msg("completion failed")
	s.notify(id, models.Notification{Title: "Error", Description: reason, Variant: "destructive"})
	return models.AssistantMessage(failurePrefix + reason)
}

func (s *ChatService) append(sess *conversation.Session, msg models.Message) uint64 {
	version := sess.Conversation.Append(msg)
	s.notifier.Publish(sess.ID, models.WSMessage{
		Type:    models.EventMessageAppended,
		Payload: models.MessageAppended{Message: msg, Version: version},
	})
	return version
}

func (s *ChatService) settle(sess *conversation.Session) {
	sess.Settle()
	s.notifier.Publish(sess.ID, models.WSMessage{Type: models.EventAwaitingChanged, Payload: models.AwaitingChanged{Awaiting: false}})
}

func (s *ChatService) notify(id uuid.UUID, n models.Notification) {
	s.notifier.Publish(id, models.WSMessage{Type: models.EventNotification, Payload: n})
}
