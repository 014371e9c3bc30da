package linking

import (
	"context"

	"github.com/Mmckelve45/auth0-pizza42/internal/logger"
)

// mergeMetadata preserves the secondary account's user_metadata before
// the link discards it. Policy: union of keys, primary wins on conflict.
// Any failure here aborts the flow; linking with half-merged metadata is
// worse than asking the user to retry.
func (s *Service) mergeMetadata(ctx context.Context, primaryUserID, secondaryUserID string) error {
	secondary, err := s.mgmt.GetUser(ctx, secondaryUserID)
	if err != nil {
		return err
	}
	if len(secondary.UserMetadata) == 0 {
		return nil // nothing to carry over
	}

	primary, err := s.mgmt.GetUser(ctx, primaryUserID)
	if err != nil {
		return err
	}

	merged := make(map[string]any, len(primary.UserMetadata)+len(secondary.UserMetadata))
	for k, v := range secondary.UserMetadata {
		merged[k] = v
	}
	for k, v := range primary.UserMetadata {
		merged[k] = v
	}

	if len(merged) == len(primary.UserMetadata) {
		return nil // secondary adds nothing new
	}

	if err := s.mgmt.UpdateUserMetadata(ctx, primaryUserID, merged); err != nil {
		return err
	}

	logger.Info("merged secondary metadata into primary", map[string]any{
		"primary": primaryUserID,
		"keys":    len(merged),
	})

	return nil
}
