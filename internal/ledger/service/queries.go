package service

import (
	"context"

	"twubi/internal/ledger/models"
	"twubi/internal/ledger/replay"
	dErrors "twubi/pkg/domain-errors"
	audit "twubi/pkg/platform/audit"
)

// maxEventPage bounds one Events page.
const maxEventPage = 1000

// Balances returns the UE and BU holdings of a registered wallet.
func (s *Service) Balances(ctx context.Context, wallet string) (*models.Balances, error) {
	var result *models.Balances
	err := s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
		person, err := s.personByWallet(ctx, store, wallet)
		if err != nil {
			return err
		}
		result, err = loadBalances(ctx, store, person.Wallet)
		return err
	})
	if err != nil {
		return nil, s.finish(ctx, "balances", err)
	}
	return result, nil
}

// ListConversions returns the caller's unclaimed conversions with their
// status as of the current epoch.
func (s *Service) ListConversions(ctx context.Context, wallet string) ([]*models.PendingConversion, error) {
	e := s.CurrentEpoch(ctx)

	var result []*models.PendingConversion
	err := s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
		person, err := s.personByWallet(ctx, store, wallet)
		if err != nil {
			return err
		}
		conversions, err := store.ListConversions(ctx, person.ID,
			[]models.ConversionStatus{models.ConversionPending, models.ConversionUnlocked})
		if err != nil {
			return storeErr(err, "list conversions")
		}
		for _, c := range conversions {
			c.Status = c.EffectiveStatus(e)
		}
		result = conversions
		return nil
	})
	if err != nil {
		return nil, s.finish(ctx, "list_conversions", err)
	}
	return result, nil
}

// Events pages through the append-only log after afterID.
func (s *Service) Events(ctx context.Context, afterID int64, limit int) ([]audit.Event, error) {
	if s.events == nil {
		return nil, dErrors.New(dErrors.CodeUnavailable, "event log reader not configured")
	}
	if afterID < 0 {
		return nil, models.InvalidRequest("after", "must not be negative")
	}
	if limit <= 0 || limit > maxEventPage {
		limit = maxEventPage
	}
	events, err := s.events.ListAfter(ctx, afterID, limit)
	if err != nil {
		return nil, s.finish(ctx, "events", storeErr(err, "list events"))
	}
	return events, nil
}

// ExportState folds the whole event log into a snapshot of every ledger
// table, reading the log in Events-sized pages.
func (s *Service) ExportState(ctx context.Context) (*replay.Export, error) {
	if s.events == nil {
		return nil, dErrors.New(dErrors.CodeUnavailable, "event log reader not configured")
	}
	st := replay.NewState()
	for {
		page, err := s.events.ListAfter(ctx, st.LastEventID, maxEventPage)
		if err != nil {
			return nil, s.finish(ctx, "export_state", storeErr(err, "list events"))
		}
		for _, e := range page {
			if err := st.Apply(e); err != nil {
				return nil, s.finish(ctx, "export_state", dErrors.Wrap(err, dErrors.CodeInternal, "replay event log"))
			}
		}
		if len(page) < maxEventPage {
			break
		}
	}
	s.logger.InfoContext(ctx, "state exported", "last_event_id", st.LastEventID)
	return st.Export(), nil
}
