package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"outbound-dialer/internal/auth"
	"outbound-dialer/internal/calls"
	"outbound-dialer/internal/config"
	"outbound-dialer/internal/placement"
	"outbound-dialer/internal/rbac"
	"outbound-dialer/internal/reporting"
	"outbound-dialer/internal/scheduler"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary CAMPAIGN_ID",
		Short: "Show a campaign's window, daily usage and next available time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			var s scheduler.Summary
			if err := c.do(cmd.Context(), http.MethodGet, "/campaigns/"+url.PathEscape(args[0])+"/summary", nil, nil, &s); err != nil {
				return err
			}
			return render(s, func(tw table.Writer) {
				kv(tw,
					table.Row{"Campaign", s.CampaignID},
					table.Row{"Call window", s.CallWindow},
					table.Row{"Within window", s.IsWithinWindow},
					table.Row{"Daily limit", s.DailyLimit},
					table.Row{"Calls today", s.CallsToday},
					table.Row{"Remaining", s.Remaining},
					table.Row{"Next available", s.NextAvailableTime.Format(time.RFC3339)},
				)
			})
		},
	}
}

// queuedResult is the 202 body of an async dispatch or retry.
type queuedResult struct {
	Queued bool   `json:"queued"`
	JobID  string `json:"job_id"`
}

func dispatchCmd() *cobra.Command {
	var (
		maxCalls int
		async    bool
	)
	cmd := &cobra.Command{
		Use:   "dispatch CAMPAIGN_ID",
		Short: "Place calls for pending prospects, paced one second apart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			var out struct {
				scheduler.BatchResult
				queuedResult
			}
			body := map[string]any{"max_calls": maxCalls, "async": async}
			callErr := c.do(cmd.Context(), http.MethodPost, "/campaigns/"+url.PathEscape(args[0])+"/dispatch", nil, body, &out)
			if err := batchError(callErr, out.Errors); err != nil {
				return err
			}
			return render(out, func(tw table.Writer) {
				if out.Queued {
					kv(tw, table.Row{"Queued", true}, table.Row{"Job", out.JobID})
					return
				}
				kv(tw,
					table.Row{"Success", out.Success},
					table.Row{"Scheduled", out.Scheduled},
					table.Row{"Failed", out.Failed},
				)
				errorsTable(tw, out.Errors)
			})
		},
	}
	cmd.Flags().IntVar(&maxCalls, "max-calls", 0, "cap on placements; 0 uses the server default")
	cmd.Flags().BoolVar(&async, "async", false, "enqueue the batch for the worker")
	return cmd
}

func retryCmd() *cobra.Command {
	var (
		maxRetries   int
		delayMinutes int
		statuses     []string
		async        bool
	)
	cmd := &cobra.Command{
		Use:   "retry CAMPAIGN_ID",
		Short: "Re-place failed, busy and unanswered calls",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			body := map[string]any{"max_retries": maxRetries, "retry_statuses": statuses, "async": async}
			if cmd.Flags().Changed("delay-minutes") {
				body["retry_delay_minutes"] = delayMinutes
			}
			var out struct {
				scheduler.RetryResult
				queuedResult
			}
			callErr := c.do(cmd.Context(), http.MethodPost, "/campaigns/"+url.PathEscape(args[0])+"/retry", nil, body, &out)
			if err := batchError(callErr, out.Errors); err != nil {
				return err
			}
			return render(out, func(tw table.Writer) {
				if out.Queued {
					kv(tw, table.Row{"Queued", true}, table.Row{"Job", out.JobID})
					return
				}
				kv(tw,
					table.Row{"Success", out.Success},
					table.Row{"Retried", out.Retried},
					table.Row{"Failed", out.Failed},
				)
				errorsTable(tw, out.Errors)
			})
		},
	}
	cmd.Flags().IntVar(&maxRetries, "max-retries", 0, "attempt cap per prospect; 0 uses the default")
	cmd.Flags().IntVar(&delayMinutes, "delay-minutes", 30, "minimum age of a failed call before it is retried")
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "statuses to retry (default failed,busy,no-answer)")
	cmd.Flags().BoolVar(&async, "async", false, "enqueue the sweep for the worker")
	return cmd
}

// batchError prefers the run's own error list over the HTTP status text.
func batchError(err error, runErrs []string) error {
	var apiErr *apiError
	if errors.As(err, &apiErr) && len(runErrs) > 0 {
		return fmt.Errorf("%s (HTTP %d)", strings.Join(runErrs, "; "), apiErr.Status)
	}
	return err
}

func callsCmd() *cobra.Command {
	var (
		campaignID string
		prospectID string
		status     string
		limit      int
		offset     int
	)
	cmd := &cobra.Command{
		Use:   "calls",
		Short: "List calls, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			q := url.Values{}
			setIf(q, "campaign_id", campaignID)
			setIf(q, "prospect_id", prospectID)
			setIf(q, "status", status)
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			if offset > 0 {
				q.Set("offset", strconv.Itoa(offset))
			}
			var out placement.ListResult
			if err := c.do(cmd.Context(), http.MethodGet, "/calls", q, nil, &out); err != nil {
				return err
			}
			return render(out, func(tw table.Writer) {
				tw.AppendHeader(table.Row{"ID", "Prospect", "To", "Status", "Duration", "Cost", "Created"})
				for _, call := range out.Calls {
					tw.AppendRow(table.Row{call.ID, call.ProspectID, call.ToNumber, call.Status, call.DurationSeconds, costLabel(call), call.CreatedAt.Format(time.RFC3339)})
				}
				tw.AppendFooter(table.Row{"", "", "", "", "", "Total", out.Total})
			})
		},
	}
	cmd.Flags().StringVar(&campaignID, "campaign", "", "campaign id")
	cmd.Flags().StringVar(&prospectID, "prospect", "", "prospect id")
	cmd.Flags().StringVar(&status, "status", "", "comma separated statuses")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "page offset")
	return cmd
}

func costLabel(c calls.Call) string {
	if c.Cost == "" {
		return ""
	}
	return strings.TrimSpace(c.Cost + " " + c.CostCurrency)
}

func setIf(q url.Values, key, val string) {
	if val != "" {
		q.Set(key, val)
	}
}

func statsCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "stats CAMPAIGN_ID",
		Short: "Show call statistics for a campaign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			q := url.Values{}
			setIf(q, "from", from)
			setIf(q, "to", to)
			var s reporting.CallStats
			if err := c.do(cmd.Context(), http.MethodGet, "/campaigns/"+url.PathEscape(args[0])+"/stats", q, nil, &s); err != nil {
				return err
			}
			return render(s, func(tw table.Writer) {
				kv(tw,
					table.Row{"Total", s.TotalCalls},
					table.Row{"Completed", s.CompletedCalls},
					table.Row{"Failed", s.FailedCalls},
					table.Row{"Busy", s.BusyCalls},
					table.Row{"No answer", s.NoAnswerCalls},
					table.Row{"Canceled", s.CanceledCalls},
					table.Row{"In flight", s.QueuedCalls + s.RingingCalls + s.InProgressCalls},
					table.Row{"Answered by human", s.AnsweredByHuman},
					table.Row{"Answered by machine", s.AnsweredByMachine},
					table.Row{"Average duration (s)", s.AverageDurationSeconds},
					table.Row{"Total cost", strings.TrimSpace(strconv.FormatFloat(s.TotalCost, 'f', 4, 64) + " " + s.CostCurrency)},
				)
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "RFC 3339 lower bound (inclusive)")
	cmd.Flags().StringVar(&to, "to", "", "RFC 3339 upper bound (exclusive)")
	return cmd
}

func cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel CALL_ID",
		Short: "Cancel an in-flight call",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			var call calls.Call
			if err := c.do(cmd.Context(), http.MethodPost, "/calls/"+url.PathEscape(args[0])+"/cancel", nil, nil, &call); err != nil {
				return err
			}
			return render(call, func(tw table.Writer) {
				kv(tw, table.Row{"Call", call.ID}, table.Row{"Status", call.Status})
			})
		},
	}
}

func tokenCmd() *cobra.Command {
	var (
		userID string
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token from the shared JWT secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !rbac.IsKnownRole(role) {
				return fmt.Errorf("unknown role %q", role)
			}
			m, err := auth.NewManager(config.AuthConfig{
				JWTSecret:   viper.GetString("jwt-secret"),
				JWTIssuer:   viper.GetString("jwt-issuer"),
				JWTAudience: viper.GetString("jwt-audience"),
			})
			if err != nil {
				return err
			}
			tok, err := m.IssueAccess(time.Now(), userID, role, ttl)
			if err != nil {
				return err
			}
			if outputFormat() == "table" {
				_, err := fmt.Fprintln(stdout, tok)
				return err
			}
			return render(map[string]any{"access_token": tok, "user_id": userID, "role": role}, nil)
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "subject of the token")
	cmd.Flags().StringVar(&role, "role", "owner", "role claim: owner, agent, analyst or super_admin")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	cmd.Flags().String("jwt-secret", "", "HMAC secret shared with the API")
	cmd.Flags().String("jwt-issuer", "", "issuer claim")
	cmd.Flags().String("jwt-audience", "", "audience claim")
	_ = cmd.MarkFlagRequired("user-id")
	for _, name := range []string{"jwt-secret", "jwt-issuer", "jwt-audience"} {
		_ = viper.BindPFlag(name, cmd.Flags().Lookup(name))
	}
	return cmd
}
