package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	// EncPrefixV1 AES-256-GCM 加密版本前缀
	EncPrefixV1 = "__ENC:v1:"
	// MasterKeyFile 主密钥文件名
	MasterKeyFile = "state.key"
	// MasterKeyEnv 主密钥环境变量
	MasterKeyEnv = "ALBUM_CLIENT_STATE_KEY"
)

// Argon2id 派生参数
const (
	argon2Memory      uint32 = 65536 // 64 MB
	argon2Iterations  uint32 = 2
	argon2Parallelism uint8  = 4
	argon2SaltLength  int    = 16
	argon2KeyLength   uint32 = 32
)

// MasterKeyManager 本地状态主密钥管理器。
// 优先级：环境变量 > 密钥文件 > 新生成。
type MasterKeyManager struct {
	key      []byte
	stateDir string
	source   string // "env" | "file" | "generated"
}

// NewMasterKeyManager 创建主密钥管理器
func NewMasterKeyManager(stateDir string) *MasterKeyManager {
	return &MasterKeyManager{stateDir: stateDir}
}

// Initialize 初始化主密钥
func (m *MasterKeyManager) Initialize() error {
	if envKey := os.Getenv(MasterKeyEnv); envKey != "" {
		key, err := base64.StdEncoding.DecodeString(envKey)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", MasterKeyEnv, err)
		}
		if len(key) != 32 {
			return fmt.Errorf("%s must be 32 bytes (base64 encoded), got %d bytes", MasterKeyEnv, len(key))
		}
		m.key = key
		m.source = "env"
		m.printFingerprint()
		return nil
	}

	keyPath := filepath.Join(m.stateDir, MasterKeyFile)
	if data, err := os.ReadFile(keyPath); err == nil {
		key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
		if err != nil {
			return fmt.Errorf("invalid master key file: %w", err)
		}
		if len(key) != 32 {
			return fmt.Errorf("master key must be 32 bytes, got %d bytes", len(key))
		}
		m.key = key
		m.source = "file"
		m.printFingerprint()
		return nil
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return fmt.Errorf("failed to generate master key: %w", err)
	}

	if err := os.MkdirAll(m.stateDir, 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(key)
	if err := os.WriteFile(keyPath, []byte(encoded), 0600); err != nil {
		return fmt.Errorf("failed to write master key file: %w", err)
	}

	m.key = key
	m.source = "generated"
	m.printFingerprint()
	return nil
}

// printFingerprint 打印密钥指纹（SHA256 前8字节）
func (m *MasterKeyManager) printFingerprint() {
	hash := sha256.Sum256(m.key)
	log.Printf("[State] Master key source: %s", m.source)
	log.Printf("[State] Master key fingerprint: %s", hex.EncodeToString(hash[:8]))
}

// GetKey 获取主密钥
func (m *MasterKeyManager) GetKey() []byte {
	return m.key
}

// GetSource 获取密钥来源
func (m *MasterKeyManager) GetSource() string {
	return m.source
}

// DeriveKey 使用 Argon2id 从口令派生 32 字节密钥
func DeriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argon2Iterations, argon2Memory, argon2Parallelism, argon2KeyLength)
}

// GenerateSalt 生成随机盐值
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, argon2SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// ValueEncryptor 本地状态值加密器
type ValueEncryptor struct {
	masterKey []byte
}

// NewValueEncryptor 创建状态值加密器
func NewValueEncryptor(masterKey []byte) *ValueEncryptor {
	return &ValueEncryptor{masterKey: masterKey}
}

// Encrypt 加密字符串，返回带版本前缀的密文
func (e *ValueEncryptor) Encrypt(plaintext string) string {
	if e.masterKey == nil || plaintext == "" {
		return plaintext
	}

	if strings.HasPrefix(plaintext, EncPrefixV1) {
		return plaintext
	}

	block, err := aes.NewCipher(e.masterKey)
	if err != nil {
		log.Printf("[ValueEncryptor] Failed to create cipher: %v", err)
		return plaintext
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		log.Printf("[ValueEncryptor] Failed to create GCM: %v", err)
		return plaintext
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		log.Printf("[ValueEncryptor] Failed to generate nonce: %v", err)
		return plaintext
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return EncPrefixV1 + base64.StdEncoding.EncodeToString(ciphertext)
}

// Decrypt 解密带版本前缀的密文；未加密的值原样返回
func (e *ValueEncryptor) Decrypt(ciphertext string) (string, error) {
	if !strings.HasPrefix(ciphertext, EncPrefixV1) {
		return ciphertext, nil
	}

	if e.masterKey == nil {
		return "", errors.New("master key not available")
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(ciphertext, EncPrefixV1))
	if err != nil {
		return "", fmt.Errorf("decode error: %w", err)
	}

	block, err := aes.NewCipher(e.masterKey)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, cipherdata := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, cipherdata, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt error: %w", err)
	}

	return string(plaintext), nil
}

// IsEncrypted 检查字符串是否已加密
func IsEncrypted(s string) bool {
	return strings.HasPrefix(s, EncPrefixV1)
}
