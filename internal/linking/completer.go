package linking

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Mmckelve45/auth0-pizza42/internal/audit"
	"github.com/Mmckelve45/auth0-pizza42/internal/httperr"
	"github.com/Mmckelve45/auth0-pizza42/internal/logger"
	"github.com/Mmckelve45/auth0-pizza42/internal/session"
)

// LinkResult is the confirmation payload after a successful link.
type LinkResult struct {
	Email           string `json:"email"`
	PrimaryUserID   string `json:"primaryUserId"`
	SecondaryUserID string `json:"secondaryUserId"`
	Provider        string `json:"provider"`
}

// Complete consumes the staged verifiedLink and performs the actual link
// through the identity provider. On success both session sub-records are
// cleared, so a second call on the same session fails with 400 instead of
// retrying the link with stale state.
func (s *Service) Complete(ctx context.Context, sess *session.Session) (*LinkResult, error) {
	if sess == nil || sess.VerifiedLink == nil {
		return nil, httperr.BadRequest("No verified linking session found. Please start the linking process again.")
	}

	vl := sess.VerifiedLink

	// Secondary ids are "provider|rawId", e.g. "google-oauth2|123456".
	provider, rawID, ok := strings.Cut(vl.SecondaryUserID, "|")
	if !ok || provider == "" || rawID == "" {
		return nil, httperr.BadRequest("Invalid secondary account identifier.")
	}

	// Serialize on the primary user: two flows linking into the same
	// account race on the provider otherwise.
	err := s.locker.WithLock(ctx, vl.PrimaryUserID, func(ctx context.Context) error {
		if err := s.mergeMetadata(ctx, vl.PrimaryUserID, vl.SecondaryUserID); err != nil {
			// Merge failure aborts before the irreversible link call.
			return err
		}
		return s.mgmt.Link(ctx, vl.PrimaryUserID, provider, rawID)
	})
	if err != nil {
		return nil, mapLinkError(err)
	}

	logger.Info("account linking successful", map[string]any{
		"primary":   vl.PrimaryUserID,
		"secondary": vl.SecondaryUserID,
	})

	s.audit.Record(ctx, audit.Entry{
		Event:           audit.EventLink,
		PrimaryUserID:   vl.PrimaryUserID,
		SecondaryUserID: vl.SecondaryUserID,
		Provider:        provider,
		Email:           vl.Email,
	})

	result := &LinkResult{
		Email:           vl.Email,
		PrimaryUserID:   vl.PrimaryUserID,
		SecondaryUserID: vl.SecondaryUserID,
		Provider:        provider,
	}

	sess.LinkingInProgress = nil
	sess.VerifiedLink = nil
	if err := s.store.Update(ctx, *sess); err != nil {
		return nil, &httperr.Server{Cause: err}
	}

	return result, nil
}

// Unlink detaches an identity from the caller's own primary account. The
// caller identity comes from the bearer token subject, never from the
// request body.
func (s *Service) Unlink(
	ctx context.Context,
	callerUserID string,
	primaryUserID string,
	provider string,
	targetUserID string,
) error {

	if primaryUserID == "" || provider == "" || targetUserID == "" {
		return httperr.BadRequest("Missing required fields: primaryUserId, provider, userId")
	}

	if callerUserID != primaryUserID {
		return httperr.Forbidden("You can only unlink your own accounts")
	}

	err := s.locker.WithLock(ctx, primaryUserID, func(ctx context.Context) error {
		return s.mgmt.Unlink(ctx, primaryUserID, provider, targetUserID)
	})
	if err != nil {
		return err
	}

	logger.Info("account unlinking successful", map[string]any{
		"primary":  primaryUserID,
		"provider": provider,
		"user_id":  targetUserID,
	})

	s.audit.Record(ctx, audit.Entry{
		Event:           audit.EventUnlink,
		PrimaryUserID:   primaryUserID,
		SecondaryUserID: provider + "|" + targetUserID,
		Provider:        provider,
	})

	return nil
}

// mapLinkError turns provider conflicts into the user-facing messages the
// storefront shows. Anything else propagates untouched.
func mapLinkError(err error) error {
	var pErr *httperr.Provider
	if !errors.As(err, &pErr) {
		return err
	}

	switch pErr.Status {
	case http.StatusBadRequest, http.StatusConflict:
		return &httperr.Client{
			Kind:    httperr.KindConflict,
			Message: "These accounts cannot be linked. They may already be linked.",
		}
	case http.StatusNotFound:
		return &httperr.Client{
			Kind:    httperr.KindNotFound,
			Message: "One or both accounts not found.",
		}
	default:
		return err
	}
}
