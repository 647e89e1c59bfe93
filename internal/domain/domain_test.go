package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRejectsUnknownValues(t *testing.T) {
	_, err := ParseCategory("upsize")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownValue))

	c, err := ParseCategory("rm_action")
	require.NoError(t, err)
	assert.Equal(t, CategoryRMAction, c)

	_, err = ParseStatus("done")
	assert.ErrorIs(t, err, ErrUnknownValue)
	_, err = ParseSeverity("fatal")
	assert.ErrorIs(t, err, ErrUnknownValue)
	_, err = ParseAlertActionType("snooze")
	assert.ErrorIs(t, err, ErrUnknownValue)
}

func TestLogTypeFor(t *testing.T) {
	assert.Equal(t, LogExecuted, LogTypeFor(StatusExecuting))
	assert.Equal(t, LogExecuted, LogTypeFor(StatusCompleted))
	assert.Equal(t, LogReverted, LogTypeFor(StatusRolledBack))
	assert.Equal(t, LogValidated, LogTypeFor(StatusValidated))
}

func TestSeverityWorse(t *testing.T) {
	assert.Equal(t, SeverityWarning, SeverityOK.Worse(SeverityWarning))
	assert.Equal(t, SeverityBlocking, SeverityBlocking.Worse(SeverityWarning))
}

func TestFingerprintTracksMaterialChanges(t *testing.T) {
	d := Decision{
		Category:      CategoryUpgauge,
		RouteKey:      "DTW-LAS",
		RevenueImpact: 5400,
		RASMImpact:    0.12,
		Constraints:   []Constraint{{Domain: DomainCrew, Severity: SeverityOK}},
	}
	base := d.Fingerprint()

	d.Title = "renamed"
	d.Status = StatusSimulated
	assert.Equal(t, base, d.Fingerprint())

	d.Constraints[0].Severity = SeverityBlocking
	assert.NotEqual(t, base, d.Fingerprint())
	assert.True(t, d.HasBlocking())
	assert.Equal(t, []ConstraintDomain{DomainCrew}, d.BlockingDomains())
}
