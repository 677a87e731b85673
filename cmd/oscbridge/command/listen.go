package command

import (
	"github.com/spf13/cobra"

	"oscbridge/cmd/oscbridge/command/client"
)

var listenOpts client.ListenOptions

// listenCmd connects as a viewer and prints relayed messages
var listenCmd = &cobra.Command{
	Use:   "listen <wss-url>",
	Short: "Connect to a bridge and print relayed messages",
	Long: `Connect to a running bridge as a WebSocket viewer and print every message it
relays. The bridge certificate is self-signed and changes on each start:
pass the exported certificate with --cert, or use --insecure on a trusted LAN.

Press Ctrl+C to disconnect.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return client.Listen(args[0], listenOpts)
	},
}

func init() {
	listenCmd.Flags().StringVar(&listenOpts.CertFile, "cert", "", "PEM certificate exported by the bridge (CERT_EXPORT_PATH)")
	listenCmd.Flags().BoolVar(&listenOpts.Insecure, "insecure", false, "skip TLS certificate verification")

	rootCmd.AddCommand(listenCmd)
}
