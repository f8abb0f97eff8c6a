package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func sessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage FIX sessions",
	}

	cmd.AddCommand(sessionListCmd())
	cmd.AddCommand(sessionShowCmd())
	cmd.AddCommand(sessionLogonCmd())
	cmd.AddCommand(sessionLogoutCmd())
	cmd.AddCommand(sessionResetCmd())
	cmd.AddCommand(sessionSeqNumsCmd())

	return cmd
}

// --- session list ---

func sessionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all FIX sessions",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			sessions, err := client.listSessions(context.Background())
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}

			out, err := formatSessions(sessions, outputFormat)
			if err != nil {
				return fmt.Errorf("format sessions: %w", err)
			}
			fmt.Println(out)
			return nil
		},
	}
}

// --- session show ---

func sessionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show details of a FIX session",
		Long:  "session-id is the canonical BeginString:SenderCompID->TargetCompID identifier.",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			sess, err := client.getSession(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("get session: %w", err)
			}

			out, err := formatSession(sess, outputFormat)
			if err != nil {
				return fmt.Errorf("format session: %w", err)
			}
			fmt.Println(out)
			return nil
		},
	}
}

// --- session logon ---

func sessionLogonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logon <session-id>",
		Short: "Enable a session and initiate or accept a Logon",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			sess, err := client.logon(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("logon: %w", err)
			}
			out, err := formatSession(sess, outputFormat)
			if err != nil {
				return fmt.Errorf("format session: %w", err)
			}
			fmt.Println(out)
			return nil
		},
	}
}

// --- session logout ---

func sessionLogoutCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "logout <session-id>",
		Short: "Log out a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			sess, err := client.logout(context.Background(), args[0], reason)
			if err != nil {
				return fmt.Errorf("logout: %w", err)
			}
			out, err := formatSession(sess, outputFormat)
			if err != nil {
				return fmt.Errorf("format session: %w", err)
			}
			fmt.Println(out)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Text(58) to include in the Logout")
	return cmd
}

// --- session reset ---

func sessionResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <session-id>",
		Short: "Reset a session's sequence numbers and message store",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			sess, err := client.reset(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("reset: %w", err)
			}
			out, err := formatSession(sess, outputFormat)
			if err != nil {
				return fmt.Errorf("format session: %w", err)
			}
			fmt.Println(out)
			return nil
		},
	}
}

// --- session seqnums ---

func sessionSeqNumsCmd() *cobra.Command {
	var setSender, setTarget uint64

	cmd := &cobra.Command{
		Use:   "seqnums <session-id>",
		Short: "View or override a session's next sequence numbers",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx := context.Background()

			if setSender > 0 || setTarget > 0 {
				sess, err := client.setSeqNums(ctx, args[0], seqNumsView{
					NextSenderSeqNum: setSender,
					NextTargetSeqNum: setTarget,
				})
				if err != nil {
					return fmt.Errorf("set sequence numbers: %w", err)
				}
				out, err := formatSession(sess, outputFormat)
				if err != nil {
					return fmt.Errorf("format session: %w", err)
				}
				fmt.Println(out)
				return nil
			}

			seq, err := client.getSeqNums(ctx, args[0])
			if err != nil {
				return fmt.Errorf("get sequence numbers: %w", err)
			}
			fmt.Printf("next_sender_seq_num: %d\nnext_target_seq_num: %d\n",
				seq.NextSenderSeqNum, seq.NextTargetSeqNum)
			return nil
		},
	}

	cmd.Flags().Uint64Var(&setSender, "set-sender", 0, "override the next outbound MsgSeqNum")
	cmd.Flags().Uint64Var(&setTarget, "set-target", 0, "override the next expected inbound MsgSeqNum")
	return cmd
}
