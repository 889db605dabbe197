package service

import (
	"context"
	"errors"

	"twubi/internal/ledger/models"
	audit "twubi/pkg/platform/audit"
	"twubi/pkg/platform/sentinel"
	"twubi/pkg/requestcontext"
)

// ClaimUBI credits UE_MINT_PER_EPOCH to the caller's wallet once per epoch.
func (s *Service) ClaimUBI(ctx context.Context, wallet string) (*models.UBIClaim, error) {
	now := requestcontext.Now(ctx)
	e := s.clock.Current(now)

	var result *models.UBIClaim
	err := s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
		person, err := s.personByWallet(ctx, store, wallet)
		if err != nil {
			return err
		}
		if err := person.CanClaimAt(e); err != nil {
			return err
		}

		cursor, err := store.GetEpochClaim(ctx, person.ID)
		switch {
		case isNotFound(err):
			cursor = &models.EpochClaim{Person: person.ID, Region: person.Region, LastClaimedEpoch: models.NeverClaimed}
		case err != nil:
			return storeErr(err, "load claim cursor")
		}
		if cursor.HasClaimed(e) {
			return models.AlreadyClaimed(e)
		}

		claim := &models.UBIClaim{
			Person:    person.ID,
			Wallet:    person.Wallet,
			Epoch:     e,
			AmountUE:  s.params.UEMintPerEpoch,
			ClaimedAt: now.UTC(),
		}
		if err := store.InsertUBIClaim(ctx, claim); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return models.AlreadyClaimed(e)
			}
			return storeErr(err, "record ubi claim")
		}

		balances, err := loadBalances(ctx, store, person.Wallet)
		if err != nil {
			return err
		}
		balances.UE = balances.UE.Add(s.params.UEMintPerEpoch)
		if err := store.SaveBalances(ctx, balances); err != nil {
			return storeErr(err, "credit ue balance")
		}

		cursor.LastClaimedEpoch = e
		if err := store.SaveEpochClaim(ctx, cursor); err != nil {
			return storeErr(err, "advance claim cursor")
		}

		claim.BalanceUE = balances.UE
		result = claim
		return s.emit(ctx, audit.EventUBIClaimed, person.ID.String(), models.UBIClaimedPayload{
			Claim:      *claim,
			EpochClaim: *cursor,
			Balances:   *balances,
		})
	})
	if err != nil {
		return nil, s.finish(ctx, "claim_ubi", err)
	}

	if s.metrics != nil {
		s.metrics.IncrementUBIClaims()
	}
	s.logger.InfoContext(ctx, "ubi claimed",
		"person_id", result.Person.String(),
		"epoch", e,
		"request_id", requestcontext.RequestID(ctx),
	)
	return result, nil
}
