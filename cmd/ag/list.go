package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/agreements/internal/client"
	"github.com/alfredjeanlab/agreements/internal/model"
)

var listCmd = &cobra.Command{
	Use:     "list [search]",
	Short:   "List signed agreements, newest first",
	GroupID: "views",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		names, _ := cmd.Flags().GetBool("names")
		grpcAddr, _ := cmd.Flags().GetString("grpc")

		lister, closeLister, err := newLister(grpcAddr)
		if err != nil {
			return err
		}
		defer closeLister()

		req := &client.ListAgreementsRequest{Limit: limit, Offset: offset}
		if len(args) == 1 {
			req.Search = args[0]
		}

		if names {
			n, err := listNames(context.Background(), lister, cmd.OutOrStdout(), req.Search)
			if err != nil {
				return err
			}
			if n == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "No members to list")
			}
			return nil
		}

		resp, err := lister.ListAgreements(context.Background(), req)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, resp)
		}
		printAgreementTable(out, resp.Agreements, resp.Total, offset)
		return nil
	},
}

// agreementLister is implemented by both the HTTP and the gRPC client.
type agreementLister interface {
	ListAgreements(ctx context.Context, req *client.ListAgreementsRequest) (*client.ListAgreementsResponse, error)
}

var _ agreementLister = (*client.GRPCClient)(nil)

// newLister returns the gRPC admin client when grpcAddr is set and the
// HTTP client otherwise.
func newLister(grpcAddr string) (agreementLister, func(), error) {
	if grpcAddr == "" {
		return agClient, func() {}, nil
	}
	gc, err := client.NewGRPCClient(grpcAddr, authToken)
	if err != nil {
		return nil, nil, err
	}
	return gc, func() { gc.Close() }, nil
}

// namesPageSize is the page size used by listNames.
var namesPageSize = 500

// listNames writes the full name of every agreement matching search, one
// per line, newest first, and returns how many it wrote. Unlike the table
// it walks every page.
func listNames(ctx context.Context, c agreementLister, w io.Writer, search string) (int, error) {
	offset := 0
	for {
		resp, err := c.ListAgreements(ctx, &client.ListAgreementsRequest{
			Search: search,
			Limit:  namesPageSize,
			Offset: offset,
		})
		if err != nil {
			return offset, err
		}
		for _, a := range resp.Agreements {
			fmt.Fprintln(w, a.FullName())
		}
		offset += len(resp.Agreements)
		if len(resp.Agreements) == 0 || offset >= resp.Total {
			return offset, nil
		}
	}
}

var showCmd = &cobra.Command{
	Use:     "show <code>",
	Short:   "Show one agreement by confirmation code",
	GroupID: "views",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := agClient.GetAgreement(context.Background(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), a)
		}
		printAgreement(cmd.OutOrStdout(), a)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Show signing totals for today, this week and this month",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		grpcAddr, _ := cmd.Flags().GetString("grpc")

		var (
			s   *model.Stats
			err error
		)
		if grpcAddr != "" {
			gc, derr := client.NewGRPCClient(grpcAddr, authToken)
			if derr != nil {
				return derr
			}
			defer gc.Close()
			s, err = gc.Stats(context.Background())
		} else {
			s, err = agClient.Stats(context.Background())
		}
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), s)
		}
		printStats(cmd.OutOrStdout(), s)
		return nil
	},
}

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Short:   "List open reading sessions",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		entries, err := agClient.ListSessions(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), entries)
		}
		sections, err := agClient.Sections(ctx)
		if err != nil {
			return err
		}
		printSessionTable(cmd.OutOrStdout(), entries, len(sections))
		return nil
	},
}

var sessionsResetCmd = &cobra.Command{
	Use:   "reset <session-id>",
	Short: "Drop a reading session and clear its unlock flag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := agClient.ResetSession(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Reset session %s\n", args[0])
		return nil
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsResetCmd)
	listCmd.Flags().Int("limit", 20, "maximum number of agreements to show")
	listCmd.Flags().Int("offset", 0, "number of agreements to skip")
	listCmd.Flags().Bool("names", false, "print every matching member name, one per line")
	listCmd.Flags().String("grpc", "", "query the gRPC admin service at this address instead of HTTP")
	statsCmd.Flags().String("grpc", "", "query the gRPC admin service at this address instead of HTTP")
}
