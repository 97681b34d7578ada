package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

// TestValueEncryptor_RoundTrip 测试加解密往返
func TestValueEncryptor_RoundTrip(t *testing.T) {
	enc := NewValueEncryptor(randomKey(t))

	tests := []string{
		"simple-token",
		"带中文的值",
		"with spaces and symbols !@#$%",
	}

	for _, plaintext := range tests {
		encrypted := enc.Encrypt(plaintext)
		assert.True(t, IsEncrypted(encrypted))
		assert.NotContains(t, encrypted, plaintext)

		decrypted, err := enc.Decrypt(encrypted)
		require.NoError(t, err)
		assert.Equal(t, plaintext, decrypted)
	}
}

// TestValueEncryptor_EmptyAndPassthrough 测试空值与明文透传
func TestValueEncryptor_EmptyAndPassthrough(t *testing.T) {
	enc := NewValueEncryptor(randomKey(t))

	assert.Equal(t, "", enc.Encrypt(""))

	// 未加前缀的值视为历史明文，原样返回
	plain, err := enc.Decrypt("legacy-plaintext")
	require.NoError(t, err)
	assert.Equal(t, "legacy-plaintext", plain)
}

// TestValueEncryptor_DoubleEncrypt 测试重复加密幂等
func TestValueEncryptor_DoubleEncrypt(t *testing.T) {
	enc := NewValueEncryptor(randomKey(t))

	once := enc.Encrypt("value")
	twice := enc.Encrypt(once)
	assert.Equal(t, once, twice)
}

// TestValueEncryptor_WrongKey 测试错误密钥解密失败
func TestValueEncryptor_WrongKey(t *testing.T) {
	encrypted := NewValueEncryptor(randomKey(t)).Encrypt("secret")

	_, err := NewValueEncryptor(randomKey(t)).Decrypt(encrypted)
	assert.Error(t, err)
}

// TestValueEncryptor_TamperedCiphertext 测试篡改检测
func TestValueEncryptor_TamperedCiphertext(t *testing.T) {
	enc := NewValueEncryptor(randomKey(t))

	_, err := enc.Decrypt(EncPrefixV1 + "not-valid-base64!!!")
	assert.Error(t, err)

	_, err = enc.Decrypt(EncPrefixV1 + "c2hvcnQ=")
	assert.Error(t, err, "truncated ciphertext must be rejected")
}

// TestMasterKeyManager_GenerateAndReload 测试密钥生成与重载
func TestMasterKeyManager_GenerateAndReload(t *testing.T) {
	t.Setenv(MasterKeyEnv, "")
	dir := t.TempDir()

	first := NewMasterKeyManager(dir)
	require.NoError(t, first.Initialize())
	assert.Equal(t, "generated", first.GetSource())
	assert.Len(t, first.GetKey(), 32)
	assert.FileExists(t, filepath.Join(dir, MasterKeyFile))

	second := NewMasterKeyManager(dir)
	require.NoError(t, second.Initialize())
	assert.Equal(t, "file", second.GetSource())
	assert.Equal(t, first.GetKey(), second.GetKey())
}

// TestMasterKeyManager_EnvOverride 测试环境变量优先
func TestMasterKeyManager_EnvOverride(t *testing.T) {
	key := randomKey(t)
	t.Setenv(MasterKeyEnv, base64.StdEncoding.EncodeToString(key))

	manager := NewMasterKeyManager(t.TempDir())
	require.NoError(t, manager.Initialize())
	assert.Equal(t, "env", manager.GetSource())
	assert.Equal(t, key, manager.GetKey())
}

// TestMasterKeyManager_InvalidEnv 测试非法环境变量报错
func TestMasterKeyManager_InvalidEnv(t *testing.T) {
	t.Setenv(MasterKeyEnv, "too-short")

	manager := NewMasterKeyManager(t.TempDir())
	assert.Error(t, manager.Initialize())
}

// TestDeriveKey 测试口令派生的确定性
func TestDeriveKey(t *testing.T) {
	salt, err := GenerateSalt()
	require.NoError(t, err)

	key1 := DeriveKey("passphrase", salt)
	key2 := DeriveKey("passphrase", salt)
	assert.Equal(t, key1, key2)
	assert.Len(t, key1, 32)

	other := DeriveKey("different", salt)
	assert.NotEqual(t, key1, other)
}

