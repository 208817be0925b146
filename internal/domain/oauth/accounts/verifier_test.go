package accounts

import (
	"context"
	"errors"
	"testing"

	platformtesting "aegis-server-go/internal/platform/testing"
)

func TestVerifyResourceOwner(t *testing.T) {
	ctx := context.Background()
	db := platformtesting.OpenTestDB(t, "accounts")
	platformtesting.SeedAccount(t, db, "alice", "pw123")

	verifier := NewVerifier(db)
	acct, err := verifier.VerifyResourceOwner(ctx, "alice", "pw123")
	if err != nil {
		t.Fatalf("VerifyResourceOwner returned error: %v", err)
	}
	if acct.Username != "alice" || acct.ID == 0 {
		t.Errorf("unexpected account: %+v", acct)
	}
}

func TestVerifyResourceOwnerFailuresAreUniform(t *testing.T) {
	ctx := context.Background()
	db := platformtesting.OpenTestDB(t, "accounts")
	platformtesting.SeedAccount(t, db, "alice", "pw123")

	verifier := NewVerifier(db)

	_, wrongPassword := verifier.VerifyResourceOwner(ctx, "alice", "wrongpw")
	_, unknownUser := verifier.VerifyResourceOwner(ctx, "nobody", "pw123")

	if !errors.Is(wrongPassword, ErrBadResourceOwnerCredentials) {
		t.Fatalf("wrong password: expected ErrBadResourceOwnerCredentials, got %v", wrongPassword)
	}
	if !errors.Is(unknownUser, ErrBadResourceOwnerCredentials) {
		t.Fatalf("unknown user: expected ErrBadResourceOwnerCredentials, got %v", unknownUser)
	}
	if wrongPassword.Error() != unknownUser.Error() {
		t.Errorf("failure classifications must be indistinguishable: %q vs %q",
			wrongPassword.Error(), unknownUser.Error())
	}
}

func TestVerifyResourceOwnerCaseSensitive(t *testing.T) {
	ctx := context.Background()
	db := platformtesting.OpenTestDB(t, "accounts")
	platformtesting.SeedAccount(t, db, "Alice", "pw123")

	verifier := NewVerifier(db)
	if _, err := verifier.VerifyResourceOwner(ctx, "alice", "pw123"); !errors.Is(err, ErrBadResourceOwnerCredentials) {
		t.Fatalf("usernames must be case-sensitive, got %v", err)
	}
}

func TestFindByUsername(t *testing.T) {
	ctx := context.Background()
	db := platformtesting.OpenTestDB(t, "accounts")
	platformtesting.SeedAccount(t, db, "alice", "pw123")

	verifier := NewVerifier(db)
	acct, err := verifier.FindByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("FindByUsername returned error: %v", err)
	}
	if acct.Username != "alice" {
		t.Errorf("unexpected account: %+v", acct)
	}

	if _, err := verifier.FindByUsername(ctx, "ghost"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}
