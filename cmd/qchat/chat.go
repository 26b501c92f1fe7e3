package main

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cobra"

	quantumchat "github.com/quantumchat/client-go"
)

const timeLayout = "2006-01-02 15:04:05"

// printMessage renders one chat line.
func printMessage(w io.Writer, m *quantumchat.Message) {
	ts := m.Timestamp.Local().Format(timeLayout)
	switch {
	case m.DecryptionFailed:
		fmt.Fprintf(w, "[%s] %s: %s\n", ts, m.From, quantumchat.PlaceholderText)
	case m.File != nil:
		fmt.Fprintf(w, "[%s] %s: [file] %s (%s, %d bytes)\n", ts, m.From, m.File.Name, m.File.MIMEType, len(m.File.Data))
	default:
		fmt.Fprintf(w, "[%s] %s: %s\n", ts, m.From, m.Text)
	}
}

func (a *app) sendCmd() *cobra.Command {
	var file, mimeType string
	cmd := &cobra.Command{
		Use:   "send <recipient> [message]",
		Short: "Send a text message or a file",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			to := args[0]
			client, err := a.newClient(cmd.Context(), false)
			if err != nil {
				return err
			}

			var env *quantumchat.Envelope
			switch {
			case file != "":
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				if mimeType == "" {
					mimeType = mime.TypeByExtension(filepath.Ext(file))
				}
				env, err = client.SendFile(cmd.Context(), to, filepath.Base(file), mimeType, f)
				if err != nil {
					return err
				}
			case len(args) == 2:
				env, err = client.SendText(cmd.Context(), to, args[1])
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("nothing to send: give a message or --file")
			}

			fmt.Fprintf(cmd.OutOrStdout(), "sent %s to %s\n", env.ID, to)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "send this file")
	cmd.Flags().StringVar(&mimeType, "mime", "", "MIME type for --file (default from extension)")
	return cmd
}

func (a *app) usersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List users with a published public key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.newClient(cmd.Context(), true)
			if err != nil {
				return err
			}
			users, err := client.Users(cmd.Context())
			if err != nil {
				return err
			}
			for _, u := range users {
				if u == a.cfg.Username {
					fmt.Fprintf(cmd.OutOrStdout(), "%s (you)\n", u)
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), u)
			}
			return nil
		},
	}
}

func (a *app) historyCmd() *cobra.Command {
	var saveDir string
	cmd := &cobra.Command{
		Use:   "history <peer>",
		Short: "Decrypt and print the conversation with a peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.newClient(cmd.Context(), false)
			if err != nil {
				return err
			}

			msgs, err := client.LoadConversation(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(msgs) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no messages with %s\n", args[0])
				return nil
			}

			failed := 0
			for _, m := range msgs {
				printMessage(cmd.OutOrStdout(), m)
				if m.DecryptionFailed {
					failed++
				}
				if saveDir != "" && m.File != nil {
					dst, err := attachmentPath(saveDir, m.ID, m.File.Name)
					if err != nil {
						a.log.Warn().Err(err).Str("id", m.ID).Msg("refusing to save attachment")
						continue
					}
					if err := writeOutput(cmd.OutOrStdout(), dst, m.File.Data); err != nil {
						a.log.Warn().Err(err).Str("file", dst).Msg("could not save attachment")
					}
				}
			}
			if failed > 0 {
				a.log.Info().Int("failed", failed).Int("total", len(msgs)).
					Msg("some messages could not be decrypted; messages you sent are sealed to the recipient")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&saveDir, "save-files", "", "save decrypted attachments into this directory")
	return cmd
}

func (a *app) watchCmd() *cobra.Command {
	var (
		from      string
		backlog   bool
		withRelay bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print incoming messages until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			client, err := a.newClient(ctx, false)
			if err != nil {
				return err
			}

			// Polling and the relay may both report an envelope.
			var (
				mu   sync.Mutex
				seen = make(map[string]struct{})
			)
			show := func(m *quantumchat.Message) {
				mu.Lock()
				defer mu.Unlock()
				if m.ID != "" {
					if _, dup := seen[m.ID]; dup {
						return
					}
					seen[m.ID] = struct{}{}
				}
				printMessage(cmd.OutOrStdout(), m)
			}

			var opts []quantumchat.WatchOption
			if backlog {
				opts = append(opts, quantumchat.WithBacklog())
			}
			if from != "" {
				opts = append(opts, quantumchat.WithSender(from))
			}
			sub, err := client.Watch(ctx, show, opts...)
			if err != nil {
				return err
			}
			defer sub.Stop()

			if withRelay && a.relay != nil {
				relaySub, err := a.relay.Subscribe(ctx, client.Username())
				if err != nil {
					return err
				}
				defer relaySub.Close()

				go func() {
					for env := range relaySub.Envelopes() {
						if from != "" && env.From != from {
							continue
						}
						msg, err := client.Open(env)
						if err != nil {
							a.log.Debug().Err(err).Str("id", env.ID).Msg("relayed envelope failed to open")
							continue
						}
						show(msg)
					}
				}()
			}

			a.log.Info().Str("user", client.Username()).Time("since", time.Now()).Msg("watching for messages")
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "only show messages from this user")
	cmd.Flags().BoolVar(&backlog, "backlog", false, "also show messages already in the inbox")
	cmd.Flags().BoolVar(&withRelay, "relay", true, "subscribe to the Redis relay for instant delivery (redis backend)")
	return cmd
}
