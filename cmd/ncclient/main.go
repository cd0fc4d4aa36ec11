// Command ncclient is a small interactive exerciser for the netconf core:
// connect to a device over SSH, issue one operation, print the reply.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ncclient",
		Short: "Exercise a NETCONF session from the command line",
	}

	flags := &connectFlags{}
	root.PersistentFlags().StringVar(&flags.target, "target", "", "host:port of the NETCONF server")
	root.PersistentFlags().StringVar(&flags.username, "user", "", "SSH username")
	root.PersistentFlags().StringVar(&flags.password, "password", "", "SSH password")
	root.PersistentFlags().StringVar(&flags.keyFile, "key", "", "SSH private key file (overrides --password)")
	root.PersistentFlags().BoolVar(&flags.insecure, "insecure", false, "skip SSH host key verification")
	root.PersistentFlags().StringVar(&flags.schemaDir, "schema-dir", "/etc/netconf/schemas", "on-disk YANG schema directory")
	root.MarkPersistentFlagRequired("target") // nolint: errcheck

	root.AddCommand(
		newGetCmd(flags),
		newGetConfigCmd(flags),
		newEditConfigCmd(flags),
		newLockCmd(flags),
		newUnlockCmd(flags),
		newCommitCmd(flags),
	)
	return root
}
