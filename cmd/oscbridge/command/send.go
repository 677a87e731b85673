package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"oscbridge/cmd/oscbridge/command/client"
)

var (
	sendHost  string
	sendPort  int
	sendCount int
)

// sendCmd emits an OSC message, handy for checking a running bridge
var sendCmd = &cobra.Command{
	Use:   "send <address> [args...]",
	Short: "Send an OSC message over UDP",
	Long: `Send one OSC message to a bridge (or any OSC receiver).

Arguments are inferred: integers become int32, other numbers float32,
true/false booleans and nil a nil argument; anything else is a string.
Force a type with a prefix: i:, h:, f:, d:, s:.

Example:
  oscbridge send /test 1 2.5
  oscbridge send /synth/freq d:440 s:sine --port 57120`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		msg, err := client.BuildMessage(args[0], args[1:])
		if err != nil {
			return err
		}
		if err := client.SendMessage(sendHost, sendPort, msg, sendCount); err != nil {
			return err
		}
		fmt.Printf("📤 sent %s to %s:%d (x%d)\n", msg.String(), sendHost, sendPort, sendCount)
		return nil
	},
}

func init() {
	sendCmd.Flags().StringVar(&sendHost, "host", "127.0.0.1", "OSC receiver host")
	sendCmd.Flags().IntVar(&sendPort, "port", 9000, "OSC receiver UDP port")
	sendCmd.Flags().IntVar(&sendCount, "count", 1, "number of times to send the message")

	rootCmd.AddCommand(sendCmd)
}
