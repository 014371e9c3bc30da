package linking

import (
	"context"
	"errors"
	"time"

	"github.com/Mmckelve45/auth0-pizza42/internal/httperr"
	"github.com/Mmckelve45/auth0-pizza42/internal/logger"
	"github.com/Mmckelve45/auth0-pizza42/internal/session"
	"github.com/Mmckelve45/auth0-pizza42/internal/token"
)

// CallbackParams are the query parameters of the re-auth redirect.
type CallbackParams struct {
	Code             string
	State            string
	ErrorParam       string
	ErrorDescription string
}

// HandleCallback runs the security gates on the re-authentication result
// and, only if every gate passes, stages verifiedLink in the session.
// Each gate fails closed: no partial session state is ever committed.
func (s *Service) HandleCallback(
	ctx context.Context,
	sess *session.Session,
	cb CallbackParams,
) error {

	// Gate 1: provider error passthrough (user denied consent, outage).
	if cb.ErrorParam != "" {
		logger.Warn("callback returned provider error", map[string]any{
			"error": cb.ErrorParam,
			"desc":  cb.ErrorDescription,
		})
		msg := cb.ErrorDescription
		if msg == "" {
			msg = cb.ErrorParam
		}
		return httperr.BadRequest("Authentication failed: " + msg)
	}

	// Gate 2: required params.
	if cb.Code == "" || cb.State == "" {
		return httperr.BadRequest("Invalid callback. Missing code or state.")
	}

	// Gate 3: state must verify as an unexpired continuation token.
	claims, err := s.codec.Verify(cb.State)
	if err != nil {
		logger.Warn("continuation token rejected", map[string]any{
			"reason": tokenGateErr(err),
		})
		return httperr.BadRequest("Linking session expired. Please try again.")
	}

	// Gate 4: session correlation. A stolen token presented from a session
	// that never initiated this attempt must not pass, no matter how valid
	// its signature is.
	if sess == nil || sess.LinkingInProgress == nil || sess.LinkingInProgress.Token != cb.State {
		return httperr.BadRequest("Invalid linking session. Please start over.")
	}

	// Gate 5: single use. The marker is checked-and-set atomically, so a
	// replayed token within its expiry window is rejected here.
	used, err := s.consumer.ConsumeOnce(ctx, claims.ID, time.Until(claims.ExpiresAt.Time))
	if err != nil {
		return &httperr.Server{Cause: err}
	}
	if !used {
		return httperr.BadRequest("This linking request was already used. Please start over.")
	}

	// Gate 6: exchange the code. The registered redirect URI baked into
	// the exchanger must match the one used at initiate, per OAuth2.
	identity, accessToken, err := s.exchanger.ExchangeCode(ctx, cb.Code)
	if err != nil {
		return &httperr.Server{Cause: err}
	}

	// Gate 7: ownership confirmation. The human must have re-authenticated
	// as the exact secondary account the primary user claimed to own, not
	// merely as some account.
	if identity.Subject != claims.SecondaryUserID {
		logger.Warn("callback subject does not match linking intent", map[string]any{
			"expected": claims.SecondaryUserID,
		})
		return httperr.Forbidden("Authentication mismatch. You must authenticate with the account you want to link.")
	}

	sess.VerifiedLink = &session.VerifiedLink{
		PrimaryUserID:   claims.PrimaryUserID,
		SecondaryUserID: identity.Subject,
		Email:           claims.Email,
		AccessToken:     accessToken,
	}

	if err := s.store.Update(ctx, *sess); err != nil {
		return &httperr.Server{Cause: err}
	}

	return nil
}

// tokenGateErr reports whether a verify failure was expiry rather than
// tampering, for logging only.
func tokenGateErr(err error) string {
	if errors.Is(err, token.ErrTokenExpired) {
		return "expired"
	}
	return "invalid"
}
