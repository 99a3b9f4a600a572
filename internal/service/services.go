package service

import (
	"log/slog"

	"sandwich_hub/internal/events"
	"sandwich_hub/internal/moderation"
	"sandwich_hub/internal/security"
	"sandwich_hub/internal/store"
)

// Options carries the collaborators shared by the services.
type Options struct {
	Publisher        events.Publisher
	Cipher           security.Cipher
	Censor           *moderation.Censor
	Tokens           *security.TokenService
	Hasher           *security.PasswordHasher
	Logger           *slog.Logger
	MaxMessageLength int
	MessagePageSize  int
}

// Services is the application layer used by the HTTP and CLI front ends.
type Services struct {
	Auth          *AuthService
	Users         *UserService
	Conversations *ConversationService
	Messages      *MessageService
	Tasks         *TaskService
}

func New(repos *store.Repositories, opts Options) *Services {
	if opts.Publisher == nil {
		opts.Publisher = events.Nop{}
	}
	if opts.Cipher == nil {
		opts.Cipher = security.Plaintext{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = 5000
	}
	if opts.MessagePageSize <= 0 {
		opts.MessagePageSize = 1000
	}
	log := opts.Logger
	return &Services{
		Auth:  NewAuthService(repos.Users, opts.Tokens, opts.Hasher),
		Users: NewUserService(repos.Users, opts.Hasher, log.With("service", "users")),
		Conversations: NewConversationService(
			repos.Users, repos.Conversations, repos.Participants, repos.Messages,
			opts.Publisher, log.With("service", "conversations"),
		),
		Messages: NewMessageService(
			repos.Users, repos.Conversations, repos.Participants, repos.Messages,
			opts.Cipher, opts.Censor, opts.Publisher, log.With("service", "messages"),
			opts.MaxMessageLength, opts.MessagePageSize,
		),
		Tasks: NewTaskService(repos.Users, repos.Projects, repos.Tasks, opts.Publisher, log.With("service", "tasks")),
	}
}
