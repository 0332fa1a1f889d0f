package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"rentalportal/internal/domain/entity"
)

func init() {
	messagesCmd.AddCommand(listCmd, threadCmd, sendCmd, unreadCmd, readCmd)
	rootCmd.AddCommand(messagesCmd)
}

var messagesCmd = &cobra.Command{
	Use:     "messages",
	Aliases: []string{"msg"},
	Short:   "Read and answer the signed-in identity's inbox",
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.portal.Unread.Refresh(cmd.Context()); err != nil {
			return err
		}
		summaries, err := a.portal.Conversations.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Println("No conversations")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tUNREAD\tLAST\tWHEN")
		for _, s := range summaries {
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n",
				s.CounterpartID, s.CounterpartName, s.UnreadCount, preview(s.LastMessage.Content), when(s.LastMessage.CreatedAt))
		}
		return w.Flush()
	},
}

var threadCmd = &cobra.Command{
	Use:   "thread <counterpart-id>",
	Short: "Show the conversation with one counterpart, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		counterpartID, err := parseCounterpart(args[0])
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		messages, err := a.portal.Conversations.Thread(cmd.Context(), counterpartID)
		if err != nil {
			return err
		}
		self := a.portal.Session.Current().ParticipantID()
		for _, m := range messages {
			who := "them"
			if m.SenderID == self {
				who = "me"
			}
			fmt.Printf("[%s] %-4s %s\n", when(m.CreatedAt), who, m.Content)
		}
		return nil
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <counterpart-id> <text...>",
	Short: "Send a message",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		counterpartID, err := parseCounterpart(args[0])
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		msg, err := a.portal.Conversations.Send(cmd.Context(), counterpartID, strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		fmt.Printf("Sent message #%d\n", msg.ID)
		return nil
	},
}

var unreadCmd = &cobra.Command{
	Use:   "unread",
	Short: "Show unread counts per counterpart",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.portal.Unread.Refresh(cmd.Context()); err != nil {
			return err
		}
		snapshot := a.portal.Unread.Snapshot()
		fmt.Printf("Total unread: %s\n", humanize.Comma(int64(snapshot.Total)))
		for id, n := range snapshot.ByCounterpart {
			if n > 0 {
				fmt.Printf("  %d: %d\n", id, n)
			}
		}
		return nil
	},
}

var readCmd = &cobra.Command{
	Use:   "read <counterpart-id>",
	Short: "Mark a conversation read",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		counterpartID, err := parseCounterpart(args[0])
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.portal.Unread.Refresh(cmd.Context()); err != nil {
			return err
		}
		if err := <-a.portal.Unread.MarkConversationRead(cmd.Context(), counterpartID); err != nil {
			return err
		}
		fmt.Printf("Marked %d read, %d unread left in total\n", counterpartID, a.portal.Unread.ObservedUnreadTotal())
		return nil
	},
}

func parseCounterpart(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid counterpart id %q", arg)
	}
	return id, nil
}

func preview(content string) string {
	runes := []rune(strings.ReplaceAll(content, "\n", " "))
	if len(runes) > 40 {
		return string(runes[:39]) + "…"
	}
	return string(runes)
}

func when(ts entity.Timestamp) string {
	if ts.IsZero() {
		return "-"
	}
	return humanize.Time(ts.Time)
}
