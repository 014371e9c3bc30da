// Package linking implements the account-linking flow: duplicate
// detection, initiation, the re-authentication callback and completion.
// Every step crosses a redirect boundary, so all state lives in the
// session store and the continuation token, never in process memory.
package linking

import (
	"github.com/Mmckelve45/auth0-pizza42/internal/audit"
	"github.com/Mmckelve45/auth0-pizza42/internal/auth"
	"github.com/Mmckelve45/auth0-pizza42/internal/db"
	"github.com/Mmckelve45/auth0-pizza42/internal/idp"
	"github.com/Mmckelve45/auth0-pizza42/internal/session"
	"github.com/Mmckelve45/auth0-pizza42/internal/token"
)

type Service struct {
	codec     *token.Codec
	store     session.Store
	consumer  session.TokenConsumer
	exchanger auth.CodeExchanger
	mgmt      idp.ManagementAPI
	locker    db.AdvisoryLocker
	audit     audit.Recorder
}

func NewService(
	codec *token.Codec,
	store session.Store,
	consumer session.TokenConsumer,
	exchanger auth.CodeExchanger,
	mgmt idp.ManagementAPI,
	locker db.AdvisoryLocker,
	recorder audit.Recorder,
) *Service {
	return &Service{
		codec:     codec,
		store:     store,
		consumer:  consumer,
		exchanger: exchanger,
		mgmt:      mgmt,
		locker:    locker,
		audit:     recorder,
	}
}
