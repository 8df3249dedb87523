package stopword

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/slidetrans/slidetrans/internal/db/models"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to create test database")

	err = db.AutoMigrate(&models.User{}, &models.StopWord{})
	require.NoError(t, err, "failed to migrate test database")

	return db
}

func seedUsers(t *testing.T, db *gorm.DB) (alice, bob models.User) {
	t.Helper()

	alice = models.User{Username: "alice", Status: models.StatusApproved}
	bob = models.User{Username: "bob", Status: models.StatusApproved}
	require.NoError(t, db.Create(&alice).Error)
	require.NoError(t, db.Create(&bob).Error)

	return alice, bob
}

func TestAdd(t *testing.T) {
	db := setupTestDB(t)
	alice, bob := seedUsers(t, db)

	word, err := Add(db, alice.ID, "  ACME  ")
	require.NoError(t, err)
	assert.Equal(t, "ACME", word.Word, "words are stored trimmed")
	assert.NotZero(t, word.ID)

	testCases := []struct {
		name          string
		userID        uint64
		word          string
		expectedError error
	}{
		{"empty word", alice.ID, "   ", ErrWordEmpty},
		{"too long", alice.ID, strings.Repeat("x", MaxWordLength+1), ErrWordTooLong},
		{"duplicate for same user", alice.ID, "ACME", ErrWordExists},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Add(db, tc.userID, tc.word)
			require.ErrorIs(t, err, tc.expectedError)
		})
	}

	t.Run("same word for another user", func(t *testing.T) {
		_, err := Add(db, bob.ID, "ACME")
		require.NoError(t, err)
	})

	t.Run("nil database", func(t *testing.T) {
		_, err := Add(nil, alice.ID, "ACME")
		require.ErrorIs(t, err, ErrDBNil)
	})
}

func TestListAndCount(t *testing.T) {
	db := setupTestDB(t)
	alice, bob := seedUsers(t, db)

	for _, w := range []string{"ACME", "GmbH", "Ltd"} {
		_, err := Add(db, alice.ID, w)
		require.NoError(t, err)
	}
	_, err := Add(db, bob.ID, "S.p.A.")
	require.NoError(t, err)

	words, err := List(db, alice.ID)
	require.NoError(t, err)
	require.Len(t, words, 3)
	assert.Equal(t, "Ltd", words[0].Word, "newest first")

	count, err := Count(db, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	count, err = Count(db, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestDelete(t *testing.T) {
	db := setupTestDB(t)
	alice, bob := seedUsers(t, db)

	word, err := Add(db, alice.ID, "ACME")
	require.NoError(t, err)

	t.Run("other users cannot delete", func(t *testing.T) {
		require.ErrorIs(t, Delete(db, bob.ID, word.ID), ErrWordNotFound)
	})

	t.Run("owner deletes", func(t *testing.T) {
		require.NoError(t, Delete(db, alice.ID, word.ID))
		require.ErrorIs(t, Delete(db, alice.ID, word.ID), ErrWordNotFound)
	})
}
