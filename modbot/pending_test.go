package modbot

import (
	"strings"
	"testing"
	"time"

	"github.com/AlekSi/pointer"
)

func TestPendingReport_Empty(t *testing.T) {
	if got := PendingReport(nil, 0, time.Now()); got != "No pending approvals." {
		t.Fatalf("got %q", got)
	}
}

func TestPendingReport(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	approvals := []*Approval{
		{Id: "0123456789abcdef", Media: []MediaRef{"a"}, Caption: pointer.ToString("c"), Submitter: Submitter{Id: 1, DisplayName: "Ann"}, CreatedAt: now.Add(-90 * time.Second)},
		{Id: "fedcba9876543210", Media: []MediaRef{"a", "b", "c"}, Poll: &Poll{Question: "Q", Options: []string{"1", "2"}}, Submitter: Submitter{Id: 2, DisplayName: "<Bob>"}, CreatedAt: now},
	}

	report := PendingReport(approvals, 0, now)
	if !strings.HasPrefix(report, "<pre>") || !strings.HasSuffix(report, "</pre>") {
		t.Fatalf("report is not preformatted: %q", report)
	}
	for _, want := range []string{"01234567", "fedcba98", "caption", "poll", "1m30s", "&lt;Bob&gt;", "TOTAL"} {
		if !strings.Contains(report, want) {
			t.Errorf("report lacks %q:\n%s", want, report)
		}
	}
	if strings.Contains(report, "0123456789") {
		t.Error("ids must be shortened")
	}
}

func TestPendingReport_AlbumsInAssembly(t *testing.T) {
	if got := PendingReport(nil, 2, time.Now()); got != "No pending approvals.\n2 albums in assembly." {
		t.Fatalf("got %q", got)
	}
}
