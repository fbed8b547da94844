package app

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/fatih/color"

	"kolwatch/internal/sink"
	"kolwatch/internal/storage"
	"kolwatch/internal/twitter"
	logx "kolwatch/pkg/logx"
)

const verifyMessage = "🔍 Bot setup verification test message"

// recentShown is how many journal records Verify prints.
const recentShown = 5

// Report is the outcome of Verify.
type Report struct {
	Probe    twitter.ProbeResult
	Accounts map[string]string
	// Missing lists configured handles the lookup did not return.
	Missing []string

	TestMessageSent bool
	Recent          []storage.Delivery
}

// Verify checks API access, resolves the handles and, for the telegram
// sink, sends a test message. Problems are returned wrapped in
// ErrResolution; the report is filled as far as the checks got.
func (a *App) Verify(ctx context.Context) (*Report, error) {
	out := a.out
	ok := color.New(color.FgGreen).SprintFunc()
	bad := color.New(color.FgRed).SprintFunc()
	rep := &Report{}

	fmt.Fprintln(out, "\n🔍 Verifying setup...")

	probe, err := a.api.Probe(ctx)
	if err != nil {
		fmt.Fprintf(out, "%s Twitter API: %v\n", bad("❌"), err)
		return rep, fmt.Errorf("%w: api probe: %w", ErrResolution, err)
	}
	rep.Probe = probe
	remaining := "unknown"
	if probe.Quota.Known {
		remaining = strconv.Itoa(probe.Quota.Remaining)
	}
	mark := ok("✓")
	if !probe.OK {
		mark = bad("❌")
	}
	fmt.Fprintf(out, "%s Twitter API: %v (http %d)\n", mark, probe.OK, probe.StatusCode)
	fmt.Fprintf(out, "%s Rate limit remaining: %s\n", ok("✓"), remaining)

	accounts, missing, err := a.resolve(ctx)
	if err != nil {
		fmt.Fprintf(out, "%s Account lookup: %v\n", bad("❌"), err)
		return rep, err
	}
	rep.Accounts, rep.Missing = accounts, missing
	printAccounts(out, ok("✓"), accounts)
	for _, h := range missing {
		fmt.Fprintf(out, "%s not found: @%s\n", bad("❌"), h)
	}

	if a.sinkDriver() == sink.DriverTelegram {
		n := sink.Notification{Kind: sink.KindStatus, Text: verifyMessage, At: a.now()}
		if err := a.sink.Deliver(ctx, n); err != nil {
			fmt.Fprintf(out, "%s Telegram bot: %v\n", bad("❌"), err)
			return rep, fmt.Errorf("%w: telegram test message: %w", ErrResolution, err)
		}
		rep.TestMessageSent = true
		fmt.Fprintf(out, "%s Telegram bot: working\n", ok("✓"))
	}

	if a.store != nil {
		recent, err := a.store.RecentDeliveries(ctx, recentShown)
		if err != nil {
			a.log.Warn("journal read failed", logx.Err(err))
		} else {
			rep.Recent = recent
			printRecent(out, recent)
		}
	}

	if !probe.OK {
		return rep, fmt.Errorf("%w: api probe returned http %d", ErrResolution, probe.StatusCode)
	}
	return rep, nil
}

// resolve looks up the configured handles. Unknown handles are reported
// but only an empty result is fatal.
func (a *App) resolve(ctx context.Context) (map[string]string, []string, error) {
	handles := twitter.NormalizeHandles(a.cfg.Twitter.Handles)
	accounts, err := a.api.ResolveAccounts(ctx, handles)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: resolve handles: %w", ErrResolution, err)
	}
	var missing []string
	for _, h := range handles {
		if _, ok := accounts[h]; !ok {
			missing = append(missing, h)
		}
	}
	if len(accounts) == 0 {
		return nil, missing, fmt.Errorf("%w: none of %d handles could be resolved", ErrResolution, len(handles))
	}
	if len(missing) > 0 {
		a.log.Warn("some handles were not resolved", logx.Strings("handles", missing))
	}
	return accounts, missing, nil
}

func printAccounts(out io.Writer, mark string, accounts map[string]string) {
	handles := make([]string, 0, len(accounts))
	for h := range accounts {
		handles = append(handles, h)
	}
	sort.Strings(handles)
	fmt.Fprintf(out, "\n%s Found user ids:\n", mark)
	for _, h := range handles {
		fmt.Fprintf(out, "  - @%s: %s\n", h, accounts[h])
	}
}

func printRecent(out io.Writer, recent []storage.Delivery) {
	if len(recent) == 0 {
		return
	}
	fmt.Fprintln(out, "\nRecent deliveries:")
	for _, d := range recent {
		status := "ok"
		if !d.OK() {
			status = "failed: " + d.Error
		}
		fmt.Fprintf(out, "  %s @%s %s (%s)\n", d.At.Local().Format("2006-01-02 15:04:05"), d.Handle, d.Permalink, status)
	}
}
