package jwtutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	s, err := NewSigner("secret", "HS256", 30*time.Minute)
	require.NoError(t, err)

	token, exp, err := s.Issue(7, "alice")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), exp, 2*time.Second)

	claims, err := s.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "alice", claims.Subject)
}

func TestExpiryBoundary(t *testing.T) {
	s, err := NewSigner("secret", "HS384", time.Minute)
	require.NoError(t, err)

	issued := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	token, exp, err := s.IssueAt(issued, 1, "bob")
	require.NoError(t, err)
	require.Equal(t, issued.Add(time.Minute), exp)

	_, err = s.ParseAt(exp, token)
	require.NoError(t, err)

	_, err = s.ParseAt(exp.Add(-time.Second), token)
	require.NoError(t, err)

	_, err = s.ParseAt(exp.Add(time.Nanosecond), token)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	a, err := NewSigner("secret-a", "HS256", time.Minute)
	require.NoError(t, err)
	b, err := NewSigner("secret-b", "HS256", time.Minute)
	require.NoError(t, err)

	token, _, err := a.Issue(1, "carol")
	require.NoError(t, err)

	_, err = b.Parse(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsOtherAlgorithm(t *testing.T) {
	hs512, err := NewSigner("secret", "HS512", time.Minute)
	require.NoError(t, err)
	hs256, err := NewSigner("secret", "HS256", time.Minute)
	require.NoError(t, err)

	token, _, err := hs512.Issue(1, "dave")
	require.NoError(t, err)

	_, err = hs256.Parse(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsGarbage(t *testing.T) {
	s, err := NewSigner("secret", "", time.Minute)
	require.NoError(t, err)
	_, err = s.Parse("not.a.token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewSignerValidation(t *testing.T) {
	_, err := NewSigner("secret", "RS256", time.Minute)
	require.ErrorIs(t, err, ErrUnsupportedAlg)

	_, err = NewSigner("", "HS256", time.Minute)
	require.Error(t, err)
}

func TestDefaultAlgorithmIsHS256(t *testing.T) {
	s, err := NewSigner("secret", "", time.Hour)
	require.NoError(t, err)
	token, _, err := s.Issue(3, "erin")
	require.NoError(t, err)

	hs256, err := NewSigner("secret", "HS256", time.Hour)
	require.NoError(t, err)
	claims, err := hs256.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, uint(3), claims.UserID)
}
