package command

// root.go defines the root command for the oscbridge application and its
// global flags.

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string // YAML config file path

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "oscbridge",
	Short: "oscbridge - relay OSC over UDP to secure WebSocket clients",
	Long: `oscbridge receives Open Sound Control messages on a UDP port and relays each
one, as JSON, to every browser or tool connected over a secure WebSocket.

A fresh self-signed TLS certificate is generated for the host's LAN address
on every start. Open the printed https:// address in a browser once to accept
it, then connect to the wss:// URL.

Use "oscbridge command --help" to see all available commands.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err) // Print error to standard error
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags = available to all subcommands
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (default $OSCBRIDGE_CONFIG)")
}
