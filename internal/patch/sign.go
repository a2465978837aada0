package patch

import (
	"fmt"
	"io"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // ProtonMail's maintained fork
)

// SignatureSuffix is appended to the catalog path to locate its detached
// signature.
const SignatureSuffix = ".asc"

// VerifySignature checks the detached signature of the catalog file
// against the operator keyring. Both armored and binary signatures and
// keyrings are accepted. Catalogs drive byte writes into the client
// executable, so when a keyring is configured the signature is required,
// with no fallback.
func VerifySignature(catalogPath, signaturePath, keyringPath string) error {
	keyring, err := loadKeyring(keyringPath)
	if err != nil {
		return fmt.Errorf("load keyring: %w", err)
	}

	catalogFile, err := os.Open(catalogPath)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer catalogFile.Close()

	sigFile, err := os.Open(signaturePath)
	if err != nil {
		return fmt.Errorf("open signature: %w", err)
	}
	defer sigFile.Close()

	_, err = openpgp.CheckArmoredDetachedSignature(keyring, catalogFile, sigFile, nil)
	if err != nil {
		// Try non-armored signature
		catalogFile.Seek(0, io.SeekStart)
		sigFile.Seek(0, io.SeekStart)
		_, err = openpgp.CheckDetachedSignature(keyring, catalogFile, sigFile, nil)
	}
	if err != nil {
		return fmt.Errorf("verify signature: %w", err)
	}

	return nil
}

// LoadFileVerified loads the catalog after verifying its detached
// signature. An empty keyringPath skips verification entirely.
func LoadFileVerified(path, keyringPath string) (*Catalog, error) {
	if keyringPath == "" {
		return LoadFile(path)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return EmptyCatalog(), nil
	}
	if err := VerifySignature(path, path+SignatureSuffix, keyringPath); err != nil {
		return nil, fmt.Errorf("catalog signature: %w", err)
	}
	return LoadFile(path)
}

func loadKeyring(path string) (openpgp.EntityList, error) {
	keyringFile, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	defer keyringFile.Close()

	keyring, err := openpgp.ReadArmoredKeyRing(keyringFile)
	if err != nil {
		// Try reading as non-armored keyring
		keyringFile.Seek(0, io.SeekStart)
		keyring, err = openpgp.ReadKeyRing(keyringFile)
		if err != nil {
			return nil, fmt.Errorf("read keyring: %w", err)
		}
	}

	if len(keyring) == 0 {
		return nil, fmt.Errorf("keyring is empty")
	}

	return keyring, nil
}
