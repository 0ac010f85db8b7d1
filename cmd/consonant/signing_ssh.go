package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/odvcencio/consonant/pkg/repo"
)

const commitSignaturePrefix = "sshsig-v1"

// newSSHCommitSigner loads the private key at keyPath and returns a signer
// producing "sshsig-v1:<format>:<pubkey>:<sig>" commit signatures.
func newSSHCommitSigner(keyPath string) (repo.CommitSigner, string, error) {
	resolved, err := expandUserPath(strings.TrimSpace(keyPath))
	if err != nil {
		return nil, "", err
	}
	raw, err := os.ReadFile(resolved)
	if err != nil {
		return nil, "", fmt.Errorf("read signing key %q: %w", resolved, err)
	}
	signer, err := ssh.ParsePrivateKey(raw)
	if err != nil {
		return nil, "", fmt.Errorf("parse signing key %q: %w", resolved, err)
	}

	pub := base64.StdEncoding.EncodeToString(signer.PublicKey().Marshal())
	sign := func(payload []byte) (string, error) {
		sig, err := signer.Sign(rand.Reader, payload)
		if err != nil {
			return "", fmt.Errorf("sign commit: %w", err)
		}
		return fmt.Sprintf("%s:%s:%s:%s", commitSignaturePrefix, sig.Format, pub,
			base64.StdEncoding.EncodeToString(sig.Blob)), nil
	}
	return sign, resolved, nil
}

// verifySSHCommitSignature checks a signature made by newSSHCommitSigner
// against payload and returns the signing key's fingerprint.
func verifySSHCommitSignature(signature string, payload []byte) (string, error) {
	parts := strings.SplitN(signature, ":", 4)
	if len(parts) != 4 || parts[0] != commitSignaturePrefix {
		return "", fmt.Errorf("unsupported signature format")
	}
	pubRaw, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("decode public key: %w", err)
	}
	pub, err := ssh.ParsePublicKey(pubRaw)
	if err != nil {
		return "", fmt.Errorf("parse public key: %w", err)
	}
	blob, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil {
		return "", fmt.Errorf("decode signature: %w", err)
	}
	if err := pub.Verify(payload, &ssh.Signature{Format: parts[1], Blob: blob}); err != nil {
		return "", fmt.Errorf("verify signature: %w", err)
	}
	return ssh.FingerprintSHA256(pub), nil
}

func expandUserPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("signing key path is empty")
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}
	return filepath.Abs(path)
}
