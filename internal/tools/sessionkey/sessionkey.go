// Package sessionkey generates signing keys for session tokens.
package sessionkey

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
)

// EnvVar is the variable the marketplace reads its signing key from.
const EnvVar = "REBAZZAR_SESSION_KEY"

// DefaultBytes matches the minimum HS256 key size accepted by the signer.
const DefaultBytes = 32

// Config holds configuration for key generation.
type Config struct {
	Bytes int
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{Bytes: DefaultBytes}
	fs.IntVar(&cfg.Bytes, "bytes", cfg.Bytes, "number of random bytes")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Generate returns n random bytes hex encoded. A nil reader uses crypto/rand.
func Generate(n int, reader io.Reader) (string, error) {
	if n <= 0 {
		return "", errors.New("bytes must be greater than zero")
	}
	if reader == nil {
		reader = rand.Reader
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Run generates the key and writes it to out as an env assignment.
func Run(cfg Config, out io.Writer, reader io.Reader) error {
	if out == nil {
		return errors.New("output is required")
	}
	key, err := Generate(cfg.Bytes, reader)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s=%s\n", EnvVar, key)
	return err
}
