package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradersage/bastion/internal/aegis"
)

func TestSessionService_IssueAndParse(t *testing.T) {
	svc := NewSessionService("test-secret")

	token, sid, err := svc.Issue(aegis.TierEnterprise)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.NotEmpty(t, sid)

	gotSID, tier, err := svc.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, sid, gotSID)
	assert.Equal(t, aegis.TierEnterprise, tier)
}

func TestSessionService_ParseRejectsGarbage(t *testing.T) {
	svc := NewSessionService("test-secret")

	_, _, err := svc.Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestSessionService_ParseRejectsWrongSecret(t *testing.T) {
	token, _, err := NewSessionService("secret-a").Issue(aegis.TierBasic)
	require.NoError(t, err)

	_, _, err = NewSessionService("secret-b").Parse(token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestSessionService_ParseRejectsExpired(t *testing.T) {
	svc := NewSessionService("test-secret")
	svc.now = func() time.Time { return time.Now().Add(-25 * time.Hour) }

	token, _, err := svc.Issue(aegis.TierBasic)
	require.NoError(t, err)

	svc.now = time.Now
	_, _, err = svc.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}
