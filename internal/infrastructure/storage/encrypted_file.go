package storage

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"ytd.app/adminctl/internal/core/ports"
)

// EncryptedFile stores all keys in one AES-GCM encrypted JSON file
type EncryptedFile struct {
	path       string
	encryptKey []byte
	mu         sync.Mutex
}

// NewEncryptedFile creates a file-backed store at path.
// A leading "~/" is expanded to the user's home directory.
func NewEncryptedFile(path string) (*EncryptedFile, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &EncryptedFile{
		path:       path,
		encryptKey: machineKey(),
	}, nil
}

// NewEncryptedFileWithKey creates a file-backed store using the given passphrase
// for key derivation instead of the machine identity.
func NewEncryptedFileWithKey(path, passphrase string) (*EncryptedFile, error) {
	f, err := NewEncryptedFile(path)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256([]byte(passphrase))
	f.encryptKey = sum[:]
	return f, nil
}

// Path returns the file location
func (f *EncryptedFile) Path() string {
	return f.path
}

// Get returns the value stored under key
func (f *EncryptedFile) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

// Set stores value under key
func (f *EncryptedFile) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil {
		return err
	}
	values[key] = value
	return f.save(values)
}

// Delete removes key; removing the last key removes the file
func (f *EncryptedFile) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)

	if len(values) == 0 {
		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove storage file: %w", err)
		}
		return nil
	}
	return f.save(values)
}

func (f *EncryptedFile) load() (map[string]string, error) {
	values := make(map[string]string)

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return values, nil
		}
		return nil, fmt.Errorf("failed to read storage file: %w", err)
	}

	decrypted, err := f.decrypt(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt storage file: %w", err)
	}

	if err := json.Unmarshal(decrypted, &values); err != nil {
		return nil, fmt.Errorf("failed to unmarshal storage file: %w", err)
	}
	return values, nil
}

func (f *EncryptedFile) save(values map[string]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to marshal storage file: %w", err)
	}

	encrypted, err := f.encrypt(data)
	if err != nil {
		return fmt.Errorf("failed to encrypt storage file: %w", err)
	}

	// Write to a sibling file first so a crash never leaves a truncated store
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, encrypted, 0600); err != nil {
		return fmt.Errorf("failed to write storage file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("failed to replace storage file: %w", err)
	}
	return nil
}

func (f *EncryptedFile) encrypt(data []byte) ([]byte, error) {
	block, err := aes.NewCipher(f.encryptKey)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	ciphertext := gcm.Seal(nonce, nonce, data, nil)
	return []byte(base64.StdEncoding.EncodeToString(ciphertext)), nil
}

func (f *EncryptedFile) decrypt(data []byte) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(f.encryptKey)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

// machineKey derives a 32-byte key from hostname and user
func machineKey() []byte {
	hostname, _ := os.Hostname()
	user := os.Getenv("USER")
	if user == "" {
		user = os.Getenv("USERNAME") // Windows
	}

	hash := sha256.Sum256([]byte(fmt.Sprintf("adminctl:%s:%s", hostname, user)))
	return hash[:]
}

var _ ports.Storage = (*EncryptedFile)(nil)
