package models

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twubi/internal/ledger/wad"
	dErrors "twubi/pkg/domain-errors"
)

func TestParsePersonID(t *testing.T) {
	valid := strings.Repeat("ab", PersonIDLength)

	id, err := ParsePersonID(valid)
	require.NoError(t, err)
	assert.Equal(t, "0x"+valid, id.String())

	withPrefix, err := ParsePersonID("0x" + strings.ToUpper(valid))
	require.NoError(t, err)
	assert.Equal(t, id, withPrefix)

	for _, raw := range []string{"", "0x", valid[:62], valid + "00", strings.Repeat("zz", PersonIDLength)} {
		_, err := ParsePersonID(raw)
		assert.True(t, IsKind(err, KindInvalidPersonID), "input %q", raw)
	}
}

func TestPersonIDSQLRoundTrip(t *testing.T) {
	id, err := ParsePersonID(strings.Repeat("01", PersonIDLength))
	require.NoError(t, err)

	v, err := id.Value()
	require.NoError(t, err)

	var scanned PersonID
	require.NoError(t, scanned.Scan(v))
	assert.Equal(t, id, scanned)
	assert.Error(t, scanned.Scan(42))
}

func TestParseWallet(t *testing.T) {
	w, err := ParseWallet("  0xABCdef ")
	require.NoError(t, err)
	assert.Equal(t, Wallet("0xabcdef"), w)

	_, err = ParseWallet("   ")
	assert.True(t, IsKind(err, KindInvalidRequest))
}

func TestDefaultParamsValidate(t *testing.T) {
	p := DefaultParams()
	require.NoError(t, p.Validate())
	assert.Equal(t, "696000000000000000000", p.UEMintPerEpoch.String())
	assert.Equal(t, "1000000000000000000000", p.ConversionCapUE.String())

	bad := p
	bad.MinDecay = wad.MustParse("30000000000000000")
	assert.Error(t, bad.Validate())

	bad = p
	bad.ConversionFeeBPS = 10001
	assert.Error(t, bad.Validate())
}

func TestPersonCanClaimAt(t *testing.T) {
	p := &Person{Wallet: "0xaa", Active: true, ExpiryEpoch: 5}
	assert.NoError(t, p.CanClaimAt(5))
	assert.True(t, IsKind(p.CanClaimAt(6), KindRegistrationExpired))

	p.Active = false
	assert.True(t, IsKind(p.CanClaimAt(0), KindWalletNotActive))
}

func TestEpochClaimHasClaimed(t *testing.T) {
	c := &EpochClaim{LastClaimedEpoch: NeverClaimed}
	assert.False(t, c.HasClaimed(0))
	c.LastClaimedEpoch = 0
	assert.True(t, c.HasClaimed(0))
	assert.False(t, c.HasClaimed(1))
}

func TestPendingConversionLifecycle(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	newConversion := func() *PendingConversion {
		return &PendingConversion{ID: uuid.New(), UnlockEpoch: 4, Status: ConversionPending}
	}

	t.Run("before unlock epoch", func(t *testing.T) {
		c := newConversion()
		err := c.Claim(3, now)
		assert.True(t, IsKind(err, KindNotYetUnlocked))
		assert.Equal(t, ConversionPending, c.Status)
		assert.Equal(t, ConversionPending, c.EffectiveStatus(3))
	})

	t.Run("exactly at unlock epoch", func(t *testing.T) {
		c := newConversion()
		assert.Equal(t, ConversionUnlocked, c.EffectiveStatus(4))
		require.NoError(t, c.Claim(4, now))
		assert.Equal(t, ConversionClaimed, c.Status)
		require.NotNil(t, c.ClaimedAt)
	})

	t.Run("claimed is terminal", func(t *testing.T) {
		c := newConversion()
		require.NoError(t, c.Claim(9, now))
		err := c.Claim(10, now)
		assert.True(t, IsKind(err, KindConversionAlreadyClaimed))
		assert.Equal(t, ConversionClaimed, c.EffectiveStatus(10))
	})

	t.Run("unlock is idempotent", func(t *testing.T) {
		c := newConversion()
		require.NoError(t, c.Unlock(4))
		require.NoError(t, c.Unlock(5))
		assert.Equal(t, ConversionUnlocked, c.Status)
	})
}

func TestLedgerErrorMapping(t *testing.T) {
	tests := []struct {
		err  *LedgerError
		code dErrors.Code
	}{
		{MalformedAmount("amount_ue", errors.New("bad")), dErrors.CodeInvalidInput},
		{WalletNotActive("0xaa"), dErrors.CodeForbidden},
		{AlreadyClaimed(3), dErrors.CodeConflict},
		{ConversionCapExceeded(wad.Units(2), wad.Units(1)), dErrors.CodeLimitExceeded},
		{SlippageTooHigh(wad.Units(2), wad.Units(1)), dErrors.CodePreconditionFailed},
		{NotFound("conversion"), dErrors.CodeNotFound},
		{TreasuryInsufficient(wad.Units(1)), dErrors.CodeUnavailable},
		{RateIndexNotInitialized(7), dErrors.CodeInvariantViolation},
	}
	for _, tt := range tests {
		t.Run(tt.err.Kind.String(), func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.Equal(t, tt.code, dErrors.CodeOf(wrapped))
			assert.True(t, IsKind(wrapped, tt.err.Kind))
			assert.ErrorIs(t, wrapped, &LedgerError{Kind: tt.err.Kind})
		})
	}

	assert.True(t, KindTreasuryInsufficient.IsInvariant())
	assert.False(t, KindAlreadyClaimed.IsInvariant())
	assert.Contains(t, AlreadyClaimed(3).Error(), "epoch 3")
}
