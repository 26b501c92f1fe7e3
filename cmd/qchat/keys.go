package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	quantumchat "github.com/quantumchat/client-go"
	"github.com/quantumchat/client-go/internal/crypto"
)

// writeOutput writes data to path, or to w when path is empty or "-".
// Files are created 0600 and never overwritten.
func writeOutput(w io.Writer, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := w.Write(data)
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// attachmentPath places a sender-chosen file name directly inside dir,
// prefixed with prefix when set. Names that would land anywhere else are
// rejected.
func attachmentPath(dir, prefix, name string) (string, error) {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	switch base {
	case "", ".", "..", "/":
		base = "attachment"
	}
	if prefix != "" {
		base = prefix + "-" + base
	}

	dst := filepath.Join(dir, base)
	if filepath.Dir(dst) != filepath.Clean(dir) {
		return "", fmt.Errorf("attachment name %q escapes %s", base, dir)
	}
	return dst, nil
}

// readInput reads path, or r when path is empty or "-".
func readInput(r io.Reader, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(r)
	}
	return os.ReadFile(path)
}

func (a *app) keygenCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a keypair and print its backup file",
		Long: "Generate a keypair offline and write the key backup file.\n" +
			"Nothing is published; use import-key to start using the key.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := a.requireUser()
			if err != nil {
				return err
			}
			kp, err := quantumchat.GenerateKeypair(a.cfg.KEM)
			if err != nil {
				return err
			}
			defer crypto.Wipe(kp.PrivateKey)

			if err := writeOutput(cmd.OutOrStdout(), out, quantumchat.ExportKeyFile(user, kp, time.Now())); err != nil {
				return err
			}
			a.log.Info().Str("user", user).Str("kem", kp.KEM).Msg("generated keypair")
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the backup file here instead of stdout")
	return cmd
}

func (a *app) pubkeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pubkey [backup-file]",
		Short: "Print the base64 public key from a key backup file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			data, err := readInput(cmd.InOrStdin(), path)
			if err != nil {
				return err
			}
			kf, err := quantumchat.ImportKeyFile(data, "", a.cfg.KEM)
			if err != nil {
				return err
			}
			defer crypto.Wipe(kf.Keypair.PrivateKey)

			_, err = fmt.Fprintln(cmd.OutOrStdout(), crypto.ToBase64(kf.Keypair.PublicKey))
			return err
		},
	}
}

func (a *app) registerCmd() *cobra.Command {
	var backup string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Generate a keypair, store it locally and publish the public key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.newClient(cmd.Context(), true)
			if err != nil {
				return err
			}
			user := a.cfg.Username
			if backup == "" {
				backup = user + "_private_key.txt"
			}
			if _, err := os.Stat(backup); err == nil {
				return fmt.Errorf("%s already exists; move it or pass --backup", backup)
			}

			kp, err := client.Register(cmd.Context(), user)
			if err != nil {
				return err
			}
			defer crypto.Wipe(kp.PrivateKey)

			if err := writeOutput(cmd.OutOrStdout(), backup, quantumchat.ExportKeyFile(user, kp, time.Now())); err != nil {
				return fmt.Errorf("registered, but writing the backup failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s. Key backup: %s\n", user, backup)
			fmt.Fprintln(cmd.OutOrStdout(), "Keep the backup safe: without it, messages sent to you cannot be recovered.")
			return nil
		},
	}
	cmd.Flags().StringVar(&backup, "backup", "", "key backup file to write (default <user>_private_key.txt, - for stdout)")
	return cmd
}

func (a *app) importKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-key <backup-file>",
		Short: "Load a key backup file into the local key store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			client, err := a.newClient(cmd.Context(), true)
			if err != nil {
				return err
			}
			if err := client.ImportKey(a.cfg.Username, data); err != nil {
				if errors.Is(err, quantumchat.ErrUsernameMismatch) {
					return fmt.Errorf("%w: pass --user matching the file", err)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported key for %s\n", a.cfg.Username)
			return nil
		},
	}
}

func (a *app) exportKeyCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export-key",
		Short: "Write a key backup file from the local key store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.newClient(cmd.Context(), false)
			if err != nil {
				return err
			}
			data, err := client.ExportKey()
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), out, data)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the backup file here instead of stdout")
	return cmd
}
