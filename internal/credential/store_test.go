package credential

import (
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) []byte {
	key, err := DeriveKey("test passphrase")
	require.NoError(t, err)
	return key
}

func TestMemoryStore_AbsentTokens(t *testing.T) {
	s := NewMemoryStore()

	_, ok := s.AccessToken()
	assert.False(t, ok)
	_, ok = s.RefreshToken()
	assert.False(t, ok)
	assert.NoError(t, s.Clear())
}

func TestMemoryStore_SetAndClear(t *testing.T) {
	s := NewMemoryStore()

	require.NoError(t, s.SetCredential(Credential{AccessToken: "A1", RefreshToken: "R1"}))
	access, ok := s.AccessToken()
	assert.True(t, ok)
	assert.Equal(t, "A1", access)

	require.NoError(t, s.SetToken(AccessToken, "A2"))
	assert.Equal(t, Credential{AccessToken: "A2", RefreshToken: "R1"}, s.Credential())

	require.NoError(t, s.SetToken(AccessToken, ""))
	_, ok = s.AccessToken()
	assert.False(t, ok)

	require.NoError(t, s.Clear())
	assert.Equal(t, Credential{}, s.Credential())
}

func TestMemoryStore_RejectsIncompleteCredential(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.SetCredential(Credential{AccessToken: "A1", RefreshToken: "R1"}))

	err := s.SetCredential(Credential{AccessToken: "A2"})
	assert.ErrorIs(t, err, ErrIncompleteCredential)
	assert.Equal(t, Credential{AccessToken: "A1", RefreshToken: "R1"}, s.Credential())
}

func TestSQLiteStore_PersistsAcrossOpen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tokens.db")
	key := testKey(t)

	backend, err := NewSQLiteBackend(dbPath, key)
	require.NoError(t, err)
	s, err := Open(backend)
	require.NoError(t, err)
	require.NoError(t, s.SetCredential(Credential{AccessToken: "A1", RefreshToken: "R1"}))
	require.NoError(t, s.Close())

	backend, err = NewSQLiteBackend(dbPath, key)
	require.NoError(t, err)
	s, err = Open(backend)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, Credential{AccessToken: "A1", RefreshToken: "R1"}, s.Credential())

	require.NoError(t, s.Clear())
	values, err := backend.Load()
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestSQLiteStore_ValuesEncryptedAtRest(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tokens.db")
	backend, err := NewSQLiteBackend(dbPath, testKey(t))
	require.NoError(t, err)
	defer backend.Close()

	require.NoError(t, backend.Save(map[Kind]string{AccessToken: "secret-access"}))

	var stored string
	err = backend.db.QueryRow("SELECT encrypted_value FROM credentials WHERE key = ?", "access_token").Scan(&stored)
	require.NoError(t, err)
	assert.NotContains(t, stored, "secret-access")
}

func TestSQLiteStore_WrongKeyFailsToLoad(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tokens.db")
	backend, err := NewSQLiteBackend(dbPath, testKey(t))
	require.NoError(t, err)
	require.NoError(t, backend.Save(map[Kind]string{AccessToken: "A1", RefreshToken: "R1"}))
	require.NoError(t, backend.Close())

	otherKey, err := DeriveKey("another passphrase")
	require.NoError(t, err)
	backend, err = NewSQLiteBackend(dbPath, otherKey)
	require.NoError(t, err)
	defer backend.Close()

	_, err = Open(backend)
	assert.Error(t, err)
}

func TestOpen_DiscardsPartialCredential(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tokens.db")
	backend, err := NewSQLiteBackend(dbPath, testKey(t))
	require.NoError(t, err)
	defer backend.Close()
	require.NoError(t, backend.Save(map[Kind]string{AccessToken: "A1"}))

	s, err := Open(backend)
	require.NoError(t, err)

	_, ok := s.AccessToken()
	assert.False(t, ok)
	values, err := backend.Load()
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	s, err := Open(NewRedisBackend(rdb, "authclient:"))
	require.NoError(t, err)

	require.NoError(t, s.SetCredential(Credential{AccessToken: "A1", RefreshToken: "R1"}))
	got, err := mr.Get("authclient:access_token")
	require.NoError(t, err)
	assert.Equal(t, "A1", got)
	got, err = mr.Get("authclient:refresh_token")
	require.NoError(t, err)
	assert.Equal(t, "R1", got)

	// A second store sees what the first one persisted
	other, err := Open(NewRedisBackend(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "authclient:"))
	require.NoError(t, err)
	assert.Equal(t, Credential{AccessToken: "A1", RefreshToken: "R1"}, other.Credential())
	require.NoError(t, other.Close())

	require.NoError(t, s.Clear())
	assert.False(t, mr.Exists("authclient:access_token"))
	assert.False(t, mr.Exists("authclient:refresh_token"))
	require.NoError(t, s.Close())
}

func TestDeriveKey(t *testing.T) {
	k1, err := DeriveKey("passphrase")
	require.NoError(t, err)
	k2, err := DeriveKey("passphrase")
	require.NoError(t, err)
	assert.Len(t, k1, 32)
	assert.Equal(t, k1, k2)

	_, err = DeriveKey("")
	assert.Error(t, err)
}

func TestEncryptDecrypt(t *testing.T) {
	key := testKey(t)
	sealed, err := encrypt([]byte("hello"), key)
	require.NoError(t, err)

	plain, err := decrypt(sealed, key)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(plain))

	_, err = decrypt("AAAA", key)
	assert.Error(t, err)
}
