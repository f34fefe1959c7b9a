package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/lugondev/fixed-ratio-trading/internal/client"
	"github.com/lugondev/fixed-ratio-trading/internal/scenario"
	"github.com/lugondev/fixed-ratio-trading/pkg/types"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).MarginTop(1)
	passStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	cellStyle  = lipgloss.NewStyle().Padding(0, 1)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style { return cellStyle }).
		Headers(headers...)
}

func renderReport(w io.Writer, s *scenario.Scenario, report *scenario.Report, runner *scenario.Runner, c *client.Client) {
	fmt.Fprintln(w, titleStyle.Render("Scenario: "+report.Name))

	steps := newTable("#", "ACTION", "RESULT", "EVENTS", "DETAIL")
	for _, st := range report.Steps {
		result := passStyle.Render("ok")
		if !st.Passed {
			result = failStyle.Render("FAIL")
		}
		detail := ""
		switch {
		case st.Err != nil:
			detail = st.Err.Error()
		case st.ExpectError != "":
			detail = "expected error " + st.ExpectError
		}
		steps.Row(fmt.Sprint(st.Index), st.Action, result, strings.Join(st.Events, ","), detail)
	}
	fmt.Fprintln(w, steps.Render())

	fmt.Fprintln(w, titleStyle.Render("Pools"))
	pools := newTable("POOL", "ADDRESS", "RATIO", "LIQUIDITY A", "LIQUIDITY B", "SWAP FEE BPS", "FLAGS")
	for _, p := range s.Pools {
		addrs, ok := runner.Pool(p.Name)
		if !ok {
			continue
		}
		state, err := c.Pool(addrs.PoolState.Key)
		if err != nil {
			continue
		}
		pools.Row(p.Name, addrs.PoolState.Key.String(),
			fmt.Sprintf("%d:%d", state.RatioANumerator, state.RatioBDenominator),
			fmt.Sprint(state.TotalTokenALiquidity), fmt.Sprint(state.TotalTokenBLiquidity),
			fmt.Sprint(state.SwapFeeBasisPoints), state.Flags.String())
	}
	fmt.Fprintln(w, pools.Render())

	fmt.Fprintln(w, titleStyle.Render("Balances"))
	users := make([]string, 0, len(report.Balances))
	for name := range report.Balances {
		users = append(users, name)
	}
	sort.Strings(users)
	headers := []string{"USER"}
	for _, m := range s.Mints {
		headers = append(headers, strings.ToUpper(m.Name))
	}
	balances := newTable(headers...)
	for _, name := range users {
		row := []string{name}
		for _, m := range s.Mints {
			row = append(row, fmt.Sprint(report.Balances[name][m.Name]))
		}
		balances.Row(row...)
	}
	fmt.Fprintln(w, balances.Render())

	if t, err := c.Treasury(); err == nil {
		fmt.Fprintln(w, titleStyle.Render("Treasury"))
		fmt.Fprintf(w, "Balance %s, fees collected %s, operations %d, success rate %s\n",
			types.FormatSOL(t.TotalBalance), types.FormatSOL(t.TotalFeesCollected()), t.TotalOperations(), t.SuccessRate().StringFixed(4))
	}

	summary := passStyle.Render(fmt.Sprintf("%d steps behaved as expected", len(report.Steps)))
	if n := report.Failed(); n > 0 {
		summary = failStyle.Render(fmt.Sprintf("%d of %d steps did not behave as expected", n, len(report.Steps)))
	}
	fmt.Fprintln(w, summary)
}
