package linking

import (
	"context"

	"github.com/Mmckelve45/auth0-pizza42/internal/httperr"
	"github.com/Mmckelve45/auth0-pizza42/internal/idp"
)

// AccountSummary is the display shape for one candidate account.
type AccountSummary struct {
	UserID     string `json:"user_id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Picture    string `json:"picture"`
	Connection string `json:"connection"`
	Provider   string `json:"provider"`
}

type Detection struct {
	HasDuplicates bool             `json:"hasDuplicates"`
	AccountCount  int              `json:"accountCount"`
	Accounts      []AccountSummary `json:"accounts"`
}

// Detect reports whether more than one verified account shares the email.
// Unverified matches are discarded before counting: an unverified email is
// spoofable and must never suggest a link. All verified accounts are
// returned for display regardless of count.
func (s *Service) Detect(ctx context.Context, email string) (*Detection, error) {
	if email == "" {
		return nil, httperr.BadRequest("Email parameter required")
	}

	accounts, err := s.mgmt.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	verified := make([]idp.Account, 0, len(accounts))
	for _, a := range accounts {
		if a.EmailVerified {
			verified = append(verified, a)
		}
	}

	summaries := make([]AccountSummary, 0, len(verified))
	for _, a := range verified {
		summaries = append(summaries, AccountSummary{
			UserID:     a.UserID,
			Email:      a.Email,
			Name:       a.Name,
			Picture:    a.Picture,
			Connection: a.Connection(),
			Provider:   a.Provider(),
		})
	}

	return &Detection{
		HasDuplicates: len(verified) > 1,
		AccountCount:  len(verified),
		Accounts:      summaries,
	}, nil
}
