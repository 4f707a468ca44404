package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Account is the account model. Username and email are each unique across
// all accounts; the unique indexes are what make concurrent registration
// race free, see data/sql/migrations.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`
	ID            uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username      string    `bun:"username,notnull,unique" json:"username,omitempty"`
	Email         string    `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash  string    `bun:"password_hash" json:"-"`

	// Verified flips to true exactly once; VerificationToken is present only
	// while the account is unverified and is cleared by the same statement
	// that sets the flag.
	Verified          bool    `bun:"is_verified" json:"is_verified"`
	VerificationToken *string `bun:"verification_token,nullzero,unique" json:"-"`

	// ResetToken and ResetTokenExpiresAt are set and cleared together; a NULL
	// pair means no reset is pending.
	ResetToken          *string    `bun:"reset_token,nullzero,unique" json:"-"`
	ResetTokenExpiresAt *time.Time `bun:"reset_token_expires_at,nullzero" json:"-"`

	StudyFields  []string `bun:"study_fields,type:jsonb" json:"study_fields,omitempty"`
	LearningGoal string   `bun:"learning_goal" json:"learning_goal,omitempty"`

	LoginAttempts  int        `bun:"login_attempts" json:"login_attempts,omitempty"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at" json:"login_attempt_at,omitempty"`
	LoggedInAt     *time.Time `bun:"loggedin_at" json:"loggedin_at,omitempty"`

	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// HasPendingReset reports whether the account has an active reset window.
// The expiry itself is checked by the caller against its clock.
func (a *Account) HasPendingReset() bool {
	return a != nil && a.ResetToken != nil && a.ResetTokenExpiresAt != nil
}

// Profile is the read projection returned to authenticated callers. It never
// carries the password hash or any live token.
type Profile struct {
	ID           uuid.UUID  `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	Verified     bool       `json:"is_verified"`
	StudyFields  []string   `json:"study_fields,omitempty"`
	LearningGoal string     `json:"learning_goal,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
}

// ProfileFromAccount strips credentials and tokens from an account record.
func ProfileFromAccount(a *Account) *Profile {
	if a == nil {
		return nil
	}
	return &Profile{
		ID:           a.ID,
		Username:     a.Username,
		Email:        a.Email,
		Verified:     a.Verified,
		StudyFields:  a.StudyFields,
		LearningGoal: a.LearningGoal,
		CreatedAt:    a.CreatedAt,
	}
}
