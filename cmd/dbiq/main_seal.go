package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zeptools/gw-dbi/sec"
)

type cmdKeygen struct{}

func (c *cmdKeygen) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "keygen"
	cmd.Short = "Print a new key for " + confKeyEnv
	cmd.Args = cobra.NoArgs
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		key, err := sec.GenerateEncodedKey()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), key)
		return err
	}

	return cmd
}

type cmdSeal struct{}

func (c *cmdSeal) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "seal [<password>|-]"
	cmd.Short = "Seal a password for a pw_enc config value"
	cmd.Long = `Description:
  Seal a password for a pw_enc config value

  The key is read from $` + confKeyEnv + `. With "-" or no argument the
  password is read from standard input.
`
	cmd.Args = cobra.MaximumNArgs(1)
	cmd.RunE = c.Run

	return cmd
}

func (c *cmdSeal) Run(cmd *cobra.Command, args []string) error {
	key := os.Getenv(confKeyEnv)
	if key == "" {
		return fmt.Errorf("%s is not set", confKeyEnv)
	}
	cipher, err := sec.NewCipherFromEncodedKey(key)
	if err != nil {
		return err
	}

	var pw string
	if len(args) == 1 && args[0] != "-" {
		pw = args[0]
	} else {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read from stdin: %w", err)
		}
		pw = strings.TrimRight(string(b), "\r\n")
	}

	sealed, err := cipher.EncryptEncode([]byte(pw))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), sealed)
	return err
}
