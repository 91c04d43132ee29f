package service

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// The unknown-username path must burn a full-cost comparison, so the padding
// hash has to be a well-formed bcrypt hash at the configured cost. A malformed
// hash makes CompareHashAndPassword bail out before doing any work.
func TestDummyPasswordHash_FullCostComparison(t *testing.T) {
	cost, err := bcrypt.Cost([]byte(dummyPasswordHash))
	if err != nil {
		t.Fatalf("padding hash is not a valid bcrypt hash: %v", err)
	}
	if cost != bcryptCost {
		t.Errorf("padding hash cost = %d, want %d", cost, bcryptCost)
	}

	err = bcrypt.CompareHashAndPassword([]byte(dummyPasswordHash), []byte("not-the-password"))
	if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		t.Errorf("compare err = %v, want ErrMismatchedHashAndPassword", err)
	}
}
