package linking

import (
	"context"

	"github.com/Mmckelve45/auth0-pizza42/internal/httperr"
	"github.com/Mmckelve45/auth0-pizza42/internal/session"
)

// Prompt is the rendering context for the re-authentication page. It
// carries no business logic; the authorize URL already embeds the
// continuation token as state.
type Prompt struct {
	Email           string
	PrimaryUserID   string
	SecondaryUserID string
	Token           string
	AuthorizeURL    string
}

// Initiate issues a continuation token over the linking intent, stages
// linkingInProgress in the session and returns the re-auth prompt
// context. The redirect target is the statically configured callback,
// never derived from the request.
func (s *Service) Initiate(
	ctx context.Context,
	sess *session.Session,
	primaryUserID string,
	secondaryUserID string,
	email string,
) (*Prompt, error) {

	if primaryUserID == "" || secondaryUserID == "" {
		return nil, httperr.BadRequest("Invalid linking request. Missing user IDs.")
	}

	continuationToken, err := s.codec.Issue(primaryUserID, secondaryUserID, email)
	if err != nil {
		return nil, &httperr.Server{Cause: err}
	}

	sess.LinkingInProgress = &session.LinkingInProgress{
		PrimaryUserID:   primaryUserID,
		SecondaryUserID: secondaryUserID,
		Email:           email,
		Token:           continuationToken,
	}
	// A fresh initiate invalidates any previously staged link.
	sess.VerifiedLink = nil

	if err := s.store.Update(ctx, *sess); err != nil {
		return nil, &httperr.Server{Cause: err}
	}

	return &Prompt{
		Email:           email,
		PrimaryUserID:   primaryUserID,
		SecondaryUserID: secondaryUserID,
		Token:           continuationToken,
		AuthorizeURL:    s.exchanger.AuthCodeURL(continuationToken),
	}, nil
}
