package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/shopfront-dev/apiclient"
	"github.com/shopfront-dev/apiclient/internal/catalog"
)

func newGetCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <path>",
		Short: "Send a GET request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := buildClient(cmd, opts)
			if err != nil {
				return err
			}
			return printResult(cmd, client.Get(commandContext(cmd), args[0]))
		},
	}
}

func newDeleteCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <path>",
		Short: "Send a DELETE request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := buildClient(cmd, opts)
			if err != nil {
				return err
			}
			return printResult(cmd, client.Delete(commandContext(cmd), args[0]))
		},
	}
}

// newBodyCmd builds the post and put commands.
func newBodyCmd(opts *globalOptions, verb string) *cobra.Command {
	var data string
	method := http.MethodPost
	if verb == "put" {
		method = http.MethodPut
	}

	cmd := &cobra.Command{
		Use:   verb + " <path>",
		Short: fmt.Sprintf("Send a %s request with a JSON body", method),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var body json.RawMessage
			if data != "" {
				if !json.Valid([]byte(data)) {
					return fmt.Errorf("--data is not valid JSON")
				}
				body = json.RawMessage(data)
			}

			client, err := buildClient(cmd, opts)
			if err != nil {
				return err
			}

			var res apiclient.Result[json.RawMessage]
			if method == http.MethodPost {
				res = client.Post(commandContext(cmd), args[0], body)
			} else {
				res = client.Put(commandContext(cmd), args[0], body)
			}
			return printResult(cmd, res)
		},
	}
	cmd.Flags().StringVar(&data, "data", "", "JSON request body")
	return cmd
}

func newProductsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "products",
		Short: "List featured products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := buildClient(cmd, opts)
			if err != nil {
				return err
			}

			products, err := catalog.NewService(client).Featured(commandContext(cmd))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, p := range products {
				fmt.Fprintf(out, "%s\t%s\t%.2f\t%s\n", p.ID, p.Name, p.Price, p.Status)
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), apiclient.GetVersion())
		},
	}
}
