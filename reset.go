package aaa

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// PasswordResetRequest is the SendPasswordReset payload. At least one of
// Username and EmailAddress must be set; if only one is given the other is
// resolved from the store, and if both are given they must belong to the
// same user. Body, when set, renders the notification text from the minted
// reset token.
type PasswordResetRequest struct {
	Username     string
	EmailAddress string
	Subject      string
	Body         func(token string) string
}

// SendPasswordReset resolves the target user, mints a stateless reset token
// and dispatches it through the notifier. Unlike registration, delivery is
// the whole point here, so a missing or unconfigured notifier is an error.
func (e *Engine) SendPasswordReset(ctx context.Context, req PasswordResetRequest) error {
	username, email, err := e.resolveResetTarget(ctx, req.Username, req.EmailAddress)
	if err != nil {
		return err
	}

	if e.notifier == nil {
		return ErrNotifierNotConfigured
	}

	token, err := e.resets.Issue(username, email)
	if err != nil {
		return err
	}

	body := token
	if req.Body != nil {
		body = req.Body(token)
	}
	if err := e.notifier.Dispatch(ctx, email, orDefault(req.Subject, "Password reset confirmation"), body); err != nil {
		return err
	}

	e.emit(ctx, ActivityEventPasswordResetSent, username, nil)
	return nil
}

// ResetPassword redeems a reset token and updates the account password. The
// username is extracted from the token itself. Malformed or tampered tokens
// fail with ErrInvalidCode, stale ones with ErrExpiredCode, and a user
// deleted since issuance with ErrNonexistentUser.
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string) error {
	username, _, err := e.resets.Redeem(token)
	if err != nil {
		return err
	}

	if err := e.UpdateUser(ctx, username, UserUpdate{Password: &newPassword}); err != nil {
		return err
	}

	e.emit(ctx, ActivityEventPasswordReset, username, nil)
	return nil
}

// resolveResetTarget applies the lookup rules: username only fetches the
// email, email only scans for the username, both must match the same record.
func (e *Engine) resolveResetTarget(ctx context.Context, username, email string) (string, string, error) {
	if username == "" && email == "" {
		return "", "", goerrors.New(
			"at least a username or an email address must be specified",
			goerrors.CategoryBadInput,
		)
	}

	if username == "" {
		all, err := e.store.Users.All(ctx)
		if err != nil {
			return "", "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list users")
		}
		for name, user := range all {
			if user.EmailAddress == email {
				return name, email, nil
			}
		}
		return "", "", goerrors.New("email address not found", goerrors.CategoryNotFound)
	}

	user, err := e.User(ctx, username)
	if err != nil {
		return "", "", err
	}

	if email == "" {
		if user.EmailAddress == "" {
			return "", "", goerrors.New("email address not available", goerrors.CategoryNotFound)
		}
		return username, user.EmailAddress, nil
	}

	if user.EmailAddress != email {
		return "", "", goerrors.New("username/email address pair not found", goerrors.CategoryAuth)
	}
	return username, email, nil
}
