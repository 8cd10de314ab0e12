package main

import (
	"bufio"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/careconnect/internal/common"
	"github.com/dmitrijs2005/careconnect/internal/cryptox"
	"github.com/dmitrijs2005/careconnect/internal/server/config"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const minSaltLen = 16

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "keytool",
		Short:         "CareConnect master key tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newGenCmd(), newDeriveCmd(), newFingerprintCmd())
	return root
}

func newGenCmd() *cobra.Command {
	var (
		version   int
		jwtSecret bool
	)

	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate a random master key",
		Long: "Generate a random 32-byte master key and print it in the\n" +
			"CARECONNECT_MASTER_KEYS format together with its fingerprint.\n" +
			"With --jwt-secret a random token signing secret is printed as well.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if version <= 0 {
				return fmt.Errorf("%w: version must be positive", common.ErrValidation)
			}
			key, err := cryptox.GenerateDataKey()
			if err != nil {
				return err
			}
			defer common.WipeByteArray(key)
			if err := printKey(cmd.OutOrStdout(), version, key); err != nil {
				return err
			}

			if jwtSecret {
				secret, err := common.MakeRandHexString(32)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "CARECONNECT_JWT_SECRET=%s\n", secret)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&version, "version", 1, "key version to label the key with")
	cmd.Flags().BoolVar(&jwtSecret, "jwt-secret", false, "also generate a JWT signing secret")
	return cmd
}

func newDeriveCmd() *cobra.Command {
	var (
		version   int
		salt      string
		fromStdin bool
	)

	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive a master key from a passphrase (development only)",
		Long: "Derive a master key with Argon2id from a passphrase and salt.\n" +
			"The passphrase is read from the terminal without echo, or from\n" +
			"the first line of stdin with --passphrase-stdin.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(salt) < minSaltLen {
				return fmt.Errorf("%w: salt must be at least %d bytes", common.ErrValidation, minSaltLen)
			}
			if version <= 0 {
				return fmt.Errorf("%w: version must be positive", common.ErrValidation)
			}

			passphrase, err := readPassphrase(cmd, fromStdin)
			if err != nil {
				return err
			}
			defer common.WipeByteArray(passphrase)

			key := cryptox.DeriveMasterKey(passphrase, []byte(salt))
			defer common.WipeByteArray(key)
			return printKey(cmd.OutOrStdout(), version, key)
		},
	}
	cmd.Flags().IntVar(&version, "version", 1, "key version to label the key with")
	cmd.Flags().StringVar(&salt, "salt", "", "salt, at least 16 bytes")
	cmd.Flags().BoolVar(&fromStdin, "passphrase-stdin", false, "read the passphrase from stdin")
	cmd.MarkFlagRequired("salt")
	return cmd
}

func newFingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint [key...]",
		Short: "Print fingerprints of master keys",
		Long: "Print the fingerprint of each key. A key is either plain base64\n" +
			"or version:base64. Without arguments CARECONNECT_MASTER_KEYS is used.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				env := os.Getenv("CARECONNECT_MASTER_KEYS")
				if env == "" {
					return fmt.Errorf("%w: no keys given and CARECONNECT_MASTER_KEYS is empty", common.ErrConfig)
				}
				args = strings.Split(env, ",")
			}

			for _, arg := range args {
				label, enc := "", strings.TrimSpace(arg)
				if v, rest, ok := strings.Cut(enc, ":"); ok {
					if _, err := strconv.Atoi(v); err == nil {
						label, enc = "v"+v+" ", rest
					}
				}
				key, err := cryptox.DecodeMasterKey(enc)
				if err != nil {
					return err
				}
				fp, err := cryptox.Fingerprint(key)
				common.WipeByteArray(key)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", label, fp)
			}
			return nil
		},
	}
}

func printKey(w io.Writer, version int, key []byte) error {
	fp, err := cryptox.Fingerprint(key)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "CARECONNECT_MASTER_KEYS=%s\n", config.FormatMasterKeys(map[int]string{
		version: base64.StdEncoding.EncodeToString(key),
	}))
	fmt.Fprintf(w, "CARECONNECT_MASTER_KEY_VERSION=%d\n", version)
	fmt.Fprintf(w, "# fingerprint %s\n", fp)
	return nil
}

func readPassphrase(cmd *cobra.Command, fromStdin bool) ([]byte, error) {
	if fromStdin {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			return nil, fmt.Errorf("%w: empty passphrase", common.ErrValidation)
		}
		return []byte(line), nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("%w: stdin is not a terminal, use --passphrase-stdin", common.ErrValidation)
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Passphrase: ")
	p, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	if len(p) == 0 {
		return nil, fmt.Errorf("%w: empty passphrase", common.ErrValidation)
	}
	return p, nil
}
