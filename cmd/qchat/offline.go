package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	quantumchat "github.com/quantumchat/client-go"
	"github.com/quantumchat/client-go/internal/crypto"
)

func (a *app) sealCmd() *cobra.Command {
	var (
		to, pubkey, pubkeyFile string
		file, mimeType         string
	)
	cmd := &cobra.Command{
		Use:   "seal [message]",
		Short: "Seal a message to a public key and print the envelope as JSON",
		Long: "Seal a text message (argument or stdin) or a file (--file) without\n" +
			"contacting a server. The recipient's public key is given directly.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := a.requireUser()
			if err != nil {
				return err
			}

			var b64 string
			switch {
			case pubkey != "":
				b64 = pubkey
			case pubkeyFile != "":
				data, err := os.ReadFile(pubkeyFile)
				if err != nil {
					return err
				}
				b64 = string(data)
			default:
				return errors.New("recipient key required: use --pubkey or --pubkey-file")
			}
			pk, err := crypto.DecodeBase64(b64)
			if err != nil {
				return fmt.Errorf("decode public key: %w", err)
			}

			sealer, err := quantumchat.NewSealer(a.cfg.KEM, a.cfg.Cipher)
			if err != nil {
				return err
			}

			var env *quantumchat.Envelope
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				if mimeType == "" {
					mimeType = mime.TypeByExtension(filepath.Ext(file))
				}
				env, err = sealer.SealFile(from, to, pk, filepath.Base(file), mimeType, data)
				if err != nil {
					return err
				}
			} else {
				var text string
				if len(args) == 1 {
					text = args[0]
				} else {
					data, err := readInput(cmd.InOrStdin(), "-")
					if err != nil {
						return err
					}
					text = strings.TrimRight(string(data), "\r\n")
				}
				env, err = sealer.SealText(from, to, pk, text)
				if err != nil {
					return err
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(env)
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "recipient username")
	cmd.Flags().StringVar(&pubkey, "pubkey", "", "recipient public key (base64)")
	cmd.Flags().StringVar(&pubkeyFile, "pubkey-file", "", "file holding the recipient public key (base64)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "seal this file instead of a text message")
	cmd.Flags().StringVar(&mimeType, "mime", "", "MIME type for --file (default from extension)")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func (a *app) openCmd() *cobra.Command {
	var keyFile, outDir string
	cmd := &cobra.Command{
		Use:   "open [envelope.json]",
		Short: "Open an envelope with a key backup file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keyData, err := os.ReadFile(keyFile)
			if err != nil {
				return err
			}
			kf, err := quantumchat.ImportKeyFile(keyData, "", a.cfg.KEM)
			if err != nil {
				return err
			}
			defer crypto.Wipe(kf.Keypair.PrivateKey)

			var path string
			if len(args) == 1 {
				path = args[0]
			}
			raw, err := readInput(cmd.InOrStdin(), path)
			if err != nil {
				return err
			}
			var env quantumchat.Envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				return fmt.Errorf("%w: %v", quantumchat.ErrInvalidEnvelope, err)
			}

			msg, err := quantumchat.Open(&env, kf.Keypair.PrivateKey)
			if err != nil {
				return err
			}

			if msg.File != nil {
				if outDir == "" {
					outDir = "."
				}
				dst, err := attachmentPath(outDir, "", msg.File.Name)
				if err != nil {
					return err
				}
				if err := writeOutput(cmd.OutOrStdout(), dst, msg.File.Data); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s sent %s (%s, %d bytes) -> %s\n",
					msg.From, msg.File.Name, msg.File.MIMEType, len(msg.File.Data), dst)
				return nil
			}
			printMessage(cmd.OutOrStdout(), msg)
			return nil
		},
	}
	cmd.Flags().StringVarP(&keyFile, "key", "k", "", "key backup file of the recipient")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "directory for decrypted files (default .)")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}
