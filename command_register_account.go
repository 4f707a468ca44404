package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type RegisterAccountMessage struct {
	Username     string   `json:"username"`
	Email        string   `json:"email"`
	Password     string   `json:"password"`
	StudyFields  []string `json:"study_fields"`
	LearningGoal string   `json:"learning_goal"`
	UseHashid    bool
	OnResponse   func(resp *RegisterAccountResponse)
}

func (e RegisterAccountMessage) Type() string { return "account.register" }

type RegisterAccountResponse struct {
	Account *Account
	Success bool
}

type RegisterAccountHandler struct {
	repo     RepositoryManager
	mailer   Mailer
	activity ActivitySink
	logger   Logger
	baseURL  string
}

func NewRegisterAccountHandler(repo RepositoryManager) *RegisterAccountHandler {
	return &RegisterAccountHandler{
		repo:     repo,
		mailer:   noopMailer{},
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithMailer sets the transport used to deliver the verification email.
func (h *RegisterAccountHandler) WithMailer(mailer Mailer) *RegisterAccountHandler {
	h.mailer = normalizeMailer(mailer)
	return h
}

func (h *RegisterAccountHandler) WithActivitySink(sink ActivitySink) *RegisterAccountHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *RegisterAccountHandler) WithLogger(logger Logger) *RegisterAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithBaseURL sets the public URL prefix used to build the verification link.
func (h *RegisterAccountHandler) WithBaseURL(baseURL string) *RegisterAccountHandler {
	h.baseURL = strings.TrimSuffix(baseURL, "/")
	return h
}

func (h *RegisterAccountHandler) Execute(ctx context.Context, event RegisterAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterAccountHandler) execute(ctx context.Context, event RegisterAccountMessage) error {
	account := &Account{}
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	token, err := NewOpaqueToken()
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate verification token")
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		username := getUsername(event.Username, event.Email)

		// Friendly conflict check; the unique indexes on the insert below are
		// what actually close the race window.
		if existing, err := h.repo.Accounts().GetByUsernameOrEmailTx(ctx, tx, username, event.Email); err == nil && existing != nil {
			return ErrAccountConflict.WithMetadata(map[string]any{
				"username": username,
				"email":    event.Email,
			})
		} else if err != nil && !goerrors.IsNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check for existing account")
		}

		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		account.PasswordHash = hash
		account.Email = event.Email
		account.Username = username
		account.StudyFields = event.StudyFields
		account.LearningGoal = event.LearningGoal
		account.Verified = false
		account.VerificationToken = &token
		if event.UseHashid {
			if id, err := hashid.NewUUID(event.Email); err == nil {
				account.ID = id
			}
		}

		if account, err = h.repo.Accounts().RegisterTx(ctx, tx, account); err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) && richErr.Category == goerrors.CategoryConflict {
				return richErr
			}
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create account")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}

		return goerrors.Wrap(err, goerrors.CategoryInternal, "account registration transaction failed")
	}

	// The account exists once the transaction commits; a failed delivery is
	// logged and recorded, never surfaced as a registration failure.
	h.deliverVerificationMail(ctx, account, token)

	h.recordActivity(ctx, account)

	if event.OnResponse != nil {
		event.OnResponse(&RegisterAccountResponse{
			Account: account,
			Success: true,
		})
	}

	return nil
}

func (h *RegisterAccountHandler) deliverVerificationMail(ctx context.Context, account *Account, token string) {
	subject, body := VerificationEmail(h.baseURL, token)
	if err := normalizeMailer(h.mailer).Send(ctx, account.Email, subject, body); err != nil {
		h.getLogger().Warn("failed to deliver verification email to %s: %v", account.Email, err)
		h.recordUndelivered(ctx, account, err)
	}
}

func (h *RegisterAccountHandler) recordActivity(ctx context.Context, account *Account) {
	event := ActivityEvent{
		EventType: ActivityEventRegistration,
		Actor: ActorRef{
			ID:   account.ID.String(),
			Type: "account",
		},
		UserID: account.ID.String(),
		Metadata: map[string]any{
			"username": account.Username,
		},
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.getLogger().Warn("activity sink error during registration: %v", err)
	}
}

func (h *RegisterAccountHandler) recordUndelivered(ctx context.Context, account *Account, cause error) {
	event := ActivityEvent{
		EventType: ActivityEventNotificationUndeliver,
		Actor: ActorRef{
			ID:   account.ID.String(),
			Type: "account",
		},
		UserID: account.ID.String(),
		Metadata: map[string]any{
			"email": account.Email,
			"error": cause.Error(),
		},
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.getLogger().Warn("activity sink error during mail delivery tracking: %v", err)
	}
}

func (h *RegisterAccountHandler) getLogger() Logger {
	if h.logger != nil {
		return h.logger
	}
	return defLogger{}
}

func getUsername(username, email string) string {
	if username != "" {
		return username
	}

	if strings.Contains(email, "@") {
		username = strings.Split(email, "@")[0]
	}

	return username
}
