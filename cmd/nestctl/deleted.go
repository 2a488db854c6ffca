package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

func newDeletedCmd() *cobra.Command {
	var owner, app string
	var unprocessed bool

	deletedCmd := &cobra.Command{
		Use:   "deleted",
		Short: "Inspect and act on deleted-app records",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List deleted-app records for an owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			if owner == "" {
				return fmt.Errorf("--owner required")
			}
			return runDeletedList(apiFlag, owner, unprocessed, os.Stdout)
		},
	}
	listCmd.Flags().BoolVar(&unprocessed, "unprocessed", false, "Only unprocessed records")

	restoreCmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore a deleted app (recreates its restriction)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if owner == "" || app == "" {
				return fmt.Errorf("--owner and --app required")
			}
			return runDeletedAction(apiFlag, owner, app, "restore", os.Stdout)
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove",
		Short: "Acknowledge a deleted app and drop its restriction",
		RunE: func(cmd *cobra.Command, args []string) error {
			if owner == "" || app == "" {
				return fmt.Errorf("--owner and --app required")
			}
			return runDeletedAction(apiFlag, owner, app, "remove", os.Stdout)
		},
	}

	for _, c := range []*cobra.Command{listCmd, restoreCmd, removeCmd} {
		c.Flags().StringVarP(&owner, "owner", "o", "", "Owner ID (required)")
		c.Flags().StringVarP(&app, "app", "p", "", "App ID")
		deletedCmd.AddCommand(c)
	}
	return deletedCmd
}

func runDeletedList(api, owner string, unprocessed bool, out io.Writer) error {
	req := resty.New().SetBaseURL(api).R()
	if unprocessed {
		req.SetQueryParam("processed", "false")
	}
	resp, err := req.Get(fmt.Sprintf("/api/owners/%s/deleted-apps", owner))
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String())
	}
	return printJSON(out, resp.Body())
}

func runDeletedAction(api, owner, app, action string, out io.Writer) error {
	resp, err := resty.New().SetBaseURL(api).R().
		Post(fmt.Sprintf("/api/owners/%s/deleted-apps/%s/%s", owner, app, action))
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String())
	}
	return printJSON(out, resp.Body())
}

func runSync(api string, out io.Writer) error {
	resp, err := resty.New().SetBaseURL(api).R().Post("/api/sync")
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String())
	}
	return printJSON(out, resp.Body())
}

func runUsage(api, owner string, out io.Writer) error {
	resp, err := resty.New().SetBaseURL(api).R().
		Get(fmt.Sprintf("/api/owners/%s/usage", owner))
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String())
	}
	return printJSON(out, resp.Body())
}

func printJSON(out io.Writer, raw []byte) error {
	var buf map[string]interface{}
	if err := json.Unmarshal(raw, &buf); err != nil {
		_, werr := out.Write(raw)
		return werr
	}
	pretty, err := json.MarshalIndent(buf, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(pretty))
	return err
}
