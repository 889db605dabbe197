package service

import (
	"context"
	"errors"

	"twubi/internal/ledger/models"
	"twubi/internal/ledger/wad"
	audit "twubi/pkg/platform/audit"
	"twubi/pkg/platform/sentinel"
	"twubi/pkg/requestcontext"
)

// RegisterRequest is a registration handed over by the identity adapter.
type RegisterRequest struct {
	PersonID    string
	Wallet      string
	Region      models.RegionID
	ExpiryEpoch int64
}

// RegisterPerson binds a new person to a wallet and region. The region's
// rate index is get-or-initialized in the same transaction.
func (s *Service) RegisterPerson(ctx context.Context, req RegisterRequest) (*models.Person, error) {
	personID, err := models.ParsePersonID(req.PersonID)
	if err != nil {
		return nil, err
	}
	wallet, err := models.ParseWallet(req.Wallet)
	if err != nil {
		return nil, err
	}
	if err := validateRegion(req.Region); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	e := s.clock.Current(now)
	if req.ExpiryEpoch < e {
		return nil, models.InvalidRequest("expiry_epoch", "must not be before the current epoch")
	}

	person := &models.Person{
		ID:                personID,
		Wallet:            wallet,
		Region:            req.Region,
		ExpiryEpoch:       req.ExpiryEpoch,
		RegisteredEpoch:   e,
		LastRotationEpoch: models.NoRotation,
		Active:            true,
		CreatedAt:         now.UTC(),
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
		if err := store.CreatePerson(ctx, person); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return models.AlreadyRegistered("person or wallet")
			}
			return storeErr(err, "create person")
		}
		balances, err := loadBalances(ctx, store, wallet)
		if err != nil {
			return err
		}
		if err := store.SaveBalances(ctx, balances); err != nil {
			return storeErr(err, "initialize balances")
		}
		claim := &models.EpochClaim{Person: personID, Region: req.Region, LastClaimedEpoch: models.NeverClaimed}
		if err := store.SaveEpochClaim(ctx, claim); err != nil {
			return storeErr(err, "initialize claim cursor")
		}
		ri, _, err := s.rollRateIndex(ctx, store, req.Region, e)
		if err != nil {
			return err
		}
		return s.emit(ctx, audit.EventPersonRegistered, personID.String(), models.PersonRegisteredPayload{
			Person:     *person,
			Balances:   *balances,
			EpochClaim: *claim,
			RateIndex:  *ri,
		})
	})
	if err != nil {
		return nil, s.finish(ctx, "register_person", err)
	}

	s.logger.InfoContext(ctx, "person registered",
		"person_id", personID.String(),
		"region", req.Region,
		"request_id", requestcontext.RequestID(ctx),
	)
	return person, nil
}

// RotateWallet binds a person to a new wallet and moves both balances to
// it. One-time-code verification happens before this call.
func (s *Service) RotateWallet(ctx context.Context, rawPersonID, rawWallet string) (*models.Person, error) {
	personID, err := models.ParsePersonID(rawPersonID)
	if err != nil {
		return nil, err
	}
	newWallet, err := models.ParseWallet(rawWallet)
	if err != nil {
		return nil, err
	}
	e := s.CurrentEpoch(ctx)

	var result *models.Person
	err = s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
		person, err := store.FindPersonByID(ctx, personID)
		if err != nil {
			if isNotFound(err) {
				return models.NotFound("person")
			}
			return storeErr(err, "load person")
		}
		if person.Wallet == newWallet {
			return models.InvalidRequest("wallet", "already bound to this person")
		}
		if _, err := store.FindPersonByWallet(ctx, newWallet); err == nil {
			return models.AlreadyRegistered("wallet")
		} else if !isNotFound(err) {
			return storeErr(err, "check wallet")
		}

		oldBalances, err := loadBalances(ctx, store, person.Wallet)
		if err != nil {
			return err
		}
		newBalances, err := loadBalances(ctx, store, newWallet)
		if err != nil {
			return err
		}
		newBalances.UE = newBalances.UE.Add(oldBalances.UE)
		newBalances.BU = newBalances.BU.Add(oldBalances.BU)
		oldBalances.UE = wad.Zero
		oldBalances.BU = wad.Zero

		if err := store.SaveBalances(ctx, oldBalances); err != nil {
			return storeErr(err, "save balances")
		}
		if err := store.SaveBalances(ctx, newBalances); err != nil {
			return storeErr(err, "save balances")
		}
		if err := store.UpdatePersonWallet(ctx, personID, newWallet, e); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return models.AlreadyRegistered("wallet")
			}
			return storeErr(err, "update wallet")
		}

		oldWallet := person.Wallet
		person.Wallet = newWallet
		person.LastRotationEpoch = e
		result = person
		return s.emit(ctx, audit.EventWalletRotated, personID.String(), models.WalletRotatedPayload{
			Person:      *person,
			OldWallet:   oldWallet,
			OldBalances: *oldBalances,
			NewBalances: *newBalances,
		})
	})
	if err != nil {
		return nil, s.finish(ctx, "rotate_wallet", err)
	}

	s.logger.InfoContext(ctx, "wallet rotated",
		"person_id", personID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return result, nil
}
