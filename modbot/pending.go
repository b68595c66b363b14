package modbot

import (
	"fmt"
	"html"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

// PendingReport renders the approvals still waiting for a decision as an HTML
// <pre> block for the owner, followed by the number of albums still in assembly.
func PendingReport(approvals []*Approval, assembling int, now time.Time) string {
	report := "No pending approvals."
	if len(approvals) > 0 {
		report = fmt.Sprintf("<pre>%s</pre>", html.EscapeString(approvalsTable(approvals, now)))
	}
	if assembling > 0 {
		report += fmt.Sprintf("\n%d albums in assembly.", assembling)
	}
	return report
}

func approvalsTable(approvals []*Approval, now time.Time) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Id", "From", "Photos", "Kind", "Age"})
	for i, approval := range approvals {
		kind := "plain"
		switch {
		case approval.Poll != nil:
			kind = "poll"
		case approval.Caption != nil:
			kind = "caption"
		}
		t.AppendRow(table.Row{
			i + 1,
			shortId(approval.Id),
			approval.Submitter.DisplayName,
			len(approval.Media),
			kind,
			now.Sub(approval.CreatedAt).Truncate(time.Second).String(),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "Total", len(approvals)})
	return t.Render()
}

func shortId(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
