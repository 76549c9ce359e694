package fcrypt

import (
	"fmt"
	"os"
	"strings"

	"filippo.io/age"
)

// LoadRecipients parses every configured public key. At least one key is
// required.
func LoadRecipients(keys []string) ([]age.Recipient, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("no age recipients configured")
	}

	recipients := make([]age.Recipient, 0, len(keys))
	for _, key := range keys {
		r, err := age.ParseX25519Recipient(strings.TrimSpace(key))
		if err != nil {
			return nil, fmt.Errorf("error parsing age public key='%s': %w", key, err)
		}
		recipients = append(recipients, r)
	}

	return recipients, nil
}

// LoadIdentityFile reads an age key file as written by age-keygen. Comment
// and blank lines are skipped; the first remaining line is the key.
func LoadIdentityFile(path string) (*age.X25519Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read identity file %s: %w", path, err)
	}

	for line := range strings.SplitSeq(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		identity, err := age.ParseX25519Identity(line)
		if err != nil {
			return nil, fmt.Errorf("error parsing age private key in %s: %w", path, err)
		}
		return identity, nil
	}

	return nil, fmt.Errorf("no valid key found in identity file %s", path)
}
