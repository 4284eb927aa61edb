// cmd/nodectl is the CLI entry-point built with Cobra.
//
// Usage:
//
//	nodectl store private_max "hello world" --user alice                     --server http://localhost:8080
//	nodectl store private_scoped "notes" --user alice --namespace inbox      --server http://localhost:8080
//	nodectl store group_scoped "minutes" --user alice --group team-1         --server http://localhost:8080
//	nodectl store public_markdown "# shared note" --user alice               --server http://localhost:8080
//	nodectl retrieve <address> --user alice                                  --server http://localhost:8080
//	nodectl delete <address> --user alice                                    --server http://localhost:8080
//	nodectl transition <address> public_markdown --user alice                --server http://localhost:8080
//	nodectl peers                                                            --server http://localhost:8080
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/saorsa-labs/communitas-core/internal/client"
)

var (
	serverAddr string
	timeout    time.Duration
	userID     string
	namespace  string
	groupID    string
)

func main() {
	root := &cobra.Command{
		Use:   "nodectl",
		Short: "CLI client for a communitas-core storage node",
	}

	root.PersistentFlags().StringVarP(&serverAddr, "server", "s",
		"http://localhost:8080", "Node server address")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second,
		"HTTP request timeout")
	root.PersistentFlags().StringVar(&userID, "user", "", "Requesting user id")

	root.AddCommand(storeCmd(), retrieveCmd(), deleteCmd(), transitionCmd(), peersCmd(), groupCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func storeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store <policy> <content>",
		Short: "Store content under a policy (private_max, private_scoped, group_scoped, public_markdown)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			resp, err := c.Store(context.Background(), args[0], userID, args[1], client.StoreOptions{
				Namespace: namespace,
				GroupID:   groupID,
			})
			if err != nil {
				return err
			}
			prettyPrint(resp)
			return nil
		},
	}
	cmd.Flags().StringVar(&namespace, "namespace", "", "Namespace for private_scoped policy")
	cmd.Flags().StringVar(&groupID, "group", "", "Group id for group_scoped policy")
	return cmd
}

func retrieveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retrieve <address>",
		Short: "Retrieve content by address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			resp, err := c.Retrieve(context.Background(), args[0], userID, namespace)
			if err == client.ErrNotFound {
				fmt.Printf("address %q not found\n", args[0])
				return nil
			}
			if err != nil {
				return err
			}
			prettyPrint(resp)
			return nil
		},
	}
	cmd.Flags().StringVar(&namespace, "namespace", "", "Namespace for private_scoped addresses")
	return cmd
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <address>",
		Short: "Delete content by address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			if err := c.Delete(context.Background(), args[0], userID); err != nil {
				return err
			}
			fmt.Printf("deleted %q\n", args[0])
			return nil
		},
	}
}

func transitionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transition <address> <new-policy>",
		Short: "Move content to a new storage policy",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			newAddr, err := c.TransitionPolicy(context.Background(), args[0], args[1], userID, namespace, groupID)
			if err != nil {
				return err
			}
			fmt.Println(newAddr)
			return nil
		},
	}
	cmd.Flags().StringVar(&namespace, "namespace", "", "Namespace for the new private_scoped address")
	cmd.Flags().StringVar(&groupID, "group", "", "Group id for the new group_scoped address")
	return cmd
}

func peersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "peers",
		Short: "List known peers",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			resp, err := c.GetRaw(context.Background(), "/peers")
			if err != nil {
				return err
			}
			fmt.Println(resp)
			return nil
		},
	}
}

func groupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Group membership commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "register <id> <member...>",
		Short: "Register a group's membership on this node",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			return c.RegisterGroup(context.Background(), args[0], args[1:])
		},
	})
	return cmd
}

func prettyPrint(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(data))
}
