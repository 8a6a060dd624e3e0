package sqldb

import (
	"errors"
	"fmt"
)

type Conf struct {
	Type  string `json:"type" yaml:"type"` // mysql, pgsql, sqlite, ...
	Host  string `json:"host" yaml:"host"`
	Port  int    `json:"port" yaml:"port"`
	User  string `json:"user" yaml:"user"`
	PW    string `json:"pw" yaml:"pw"`
	PWEnc string `json:"pw_enc" yaml:"pw_enc"` // sealed PW. takes precedence once resolved
	DB    string `json:"db" yaml:"db"`         // database name. file path for sqlite
	TZ    string `json:"tz" yaml:"tz"`         // Connection Timezone
	DSN   string `json:"dsn" yaml:"dsn"`       // To Overwrite Default DSN
}

// Decrypter opens a sealed, encoded secret. *sec.XChaCha20Poly1305Cipher satisfies it.
type Decrypter interface {
	DecodeDecrypt(encoded string) ([]byte, error)
}

var ErrNoDecrypter = errors.New("sqldb: pw_enc set but no decrypter given")

// Password returns the plain password: PWEnc opened with d when set, PW otherwise.
func (c *Conf) Password(d Decrypter) (string, error) {
	if c.PWEnc == "" {
		return c.PW, nil
	}
	if d == nil {
		return "", ErrNoDecrypter
	}
	pw, err := d.DecodeDecrypt(c.PWEnc)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt pw_enc: %w", err)
	}
	return string(pw), nil
}

// ResolvePassword replaces PW with the opened PWEnc, so clients only ever read PW.
func (c *Conf) ResolvePassword(d Decrypter) error {
	pw, err := c.Password(d)
	if err != nil {
		return err
	}
	c.PW = pw
	c.PWEnc = ""
	return nil
}
