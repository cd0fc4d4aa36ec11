package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/beevik/etree"
	"github.com/spf13/cobra"

	"github.com/ncclient/netconf-core/netconf"
)

func newGetCmd(flags *connectFlags) *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Send <get>",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAndPrint(flags, netconf.GetRequest{Filter: filter})
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "subtree XML (starts with '<') or XPath expression")
	return cmd
}

func newGetConfigCmd(flags *connectFlags) *cobra.Command {
	var (
		source string
		filter string
	)
	cmd := &cobra.Command{
		Use:   "get-config",
		Short: "Send <get-config>",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAndPrint(flags, netconf.GetConfigRequest{
				Source: netconf.Datastore(source),
				Filter: filter,
			})
		},
	}
	cmd.Flags().StringVar(&source, "source", "running", "source datastore")
	cmd.Flags().StringVar(&filter, "filter", "", "subtree XML (starts with '<') or XPath expression")
	return cmd
}

func newEditConfigCmd(flags *connectFlags) *cobra.Command {
	var (
		target     string
		configFile string
	)
	cmd := &cobra.Command{
		Use:   "edit-config",
		Short: "Send <edit-config>",
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(configFile)
			if err != nil {
				return fmt.Errorf("read config file: %w", err)
			}
			return runAndPrint(flags, netconf.EditConfigRequest{
				Target: netconf.Datastore(target),
				Config: string(content),
			})
		},
	}
	cmd.Flags().StringVar(&target, "target", "candidate", "target datastore")
	cmd.Flags().StringVar(&configFile, "file", "", "path to the edit-config subtree XML")
	cmd.MarkFlagRequired("file") // nolint: errcheck
	return cmd
}

func newLockCmd(flags *connectFlags) *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Send <lock>",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAndPrint(flags, netconf.LockRequest{Target: netconf.Datastore(target)})
		},
	}
	cmd.Flags().StringVar(&target, "target", "candidate", "target datastore")
	return cmd
}

func newUnlockCmd(flags *connectFlags) *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "Send <unlock>",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAndPrint(flags, netconf.UnlockRequest{Target: netconf.Datastore(target)})
		},
	}
	cmd.Flags().StringVar(&target, "target", "candidate", "target datastore")
	return cmd
}

func newCommitCmd(flags *connectFlags) *cobra.Command {
	var confirmed bool
	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Send <commit>",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAndPrint(flags, netconf.CommitRequest{Confirmed: confirmed})
		},
	}
	cmd.Flags().BoolVar(&confirmed, "confirmed", false, "send a confirmed-commit")
	return cmd
}

func runAndPrint(flags *connectFlags, req netconf.Request) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	session, client, err := flags.dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()
	defer session.Close()

	reply, err := session.Execute(ctx, req)
	if err != nil {
		return err
	}

	switch reply.Kind {
	case netconf.ReplyOk:
		fmt.Println("ok")
	case netconf.ReplyData:
		out, _ := elementToString(reply.Data)
		fmt.Println(out)
	case netconf.ReplyErrorKind:
		for _, e := range reply.Errors {
			fmt.Fprintf(os.Stderr, "%s\n", e.Error())
		}
	}
	return nil
}

func elementToString(el *etree.Element) (string, error) {
	doc := etree.NewDocument()
	doc.SetRoot(el.Copy())
	doc.Indent(2)
	return doc.WriteToString()
}
