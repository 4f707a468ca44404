package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	auth "github.com/studypair/go-auth"
)

func TestVerificationEmail(t *testing.T) {
	subject, body := auth.VerificationEmail("https://studypair.test/", "tok123")
	assert.Equal(t, "Verify your StudyPair account", subject)
	assert.Contains(t, body, "https://studypair.test/verify/tok123")

	// trailing slash on the base URL must not double up
	assert.NotContains(t, body, "studypair.test//")
}

func TestPasswordResetEmail(t *testing.T) {
	subject, body := auth.PasswordResetEmail("https://studypair.test", "tok456")
	assert.Equal(t, "Reset your StudyPair password", subject)
	assert.Contains(t, body, "https://studypair.test/reset-password/tok456")
}

func TestMailerFunc(t *testing.T) {
	var gotTo, gotSubject string
	fn := auth.MailerFunc(func(ctx context.Context, to, subject, body string) error {
		gotTo = to
		gotSubject = subject
		return nil
	})

	err := fn.Send(context.Background(), "ada@example.com", "hello", "body")
	assert.NoError(t, err)
	assert.Equal(t, "ada@example.com", gotTo)
	assert.Equal(t, "hello", gotSubject)
}
