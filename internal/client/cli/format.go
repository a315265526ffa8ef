package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/cbtjournal/internal/client/models"
	"github.com/dmitrijs2005/cbtjournal/internal/client/store"
)

const (
	shortIDLen   = 8
	summaryWidth = 48
	timeLayout   = "2006-01-02 15:04"
)

func shortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[:shortIDLen]
}

func summary(s string) string {
	s, _, _ = strings.Cut(strings.TrimSpace(s), "\n")
	if r := []rune(s); len(r) > summaryWidth {
		return string(r[:summaryWidth-1]) + "…"
	}
	return s
}

// markers lists the sync and analysis state of e as shown in listings.
func markers(e models.Entry, st store.State) string {
	var m []string
	if op, ok := st.Pending[e.ID]; ok {
		m = append(m, string(op.Kind)+" pending")
	}
	if _, ok := st.Errors[e.ID]; ok {
		m = append(m, "error")
	}
	if e.Dirty || models.IsTempID(e.ID) {
		m = append(m, "unsynced")
	}
	if e.AIResponse != nil {
		m = append(m, "AI")
	}
	if len(m) == 0 {
		return ""
	}
	return " [" + strings.Join(m, ", ") + "]"
}

func printListLine(w io.Writer, e models.Entry, st store.State) {
	fmt.Fprintf(w, "%-8s  %s  %s%s\n",
		shortID(e.ID), e.CreatedAt.Local().Format(timeLayout), summary(e.Adversity), markers(e, st))
}

func printEntry(w io.Writer, e models.Entry, st store.State) {
	fmt.Fprintf(w, "Entry %s%s\n", e.ID, markers(e, st))
	fmt.Fprintf(w, "Created: %s   Updated: %s\n",
		e.CreatedAt.Local().Format(timeLayout), e.UpdatedAt.Local().Format(timeLayout))

	field := func(name, v string) {
		if v == "" {
			v = "-"
		}
		fmt.Fprintf(w, "%-12s %s\n", name+":", v)
	}
	field("Adversity", e.Adversity)
	field("Belief", e.Belief)
	field("Consequence", e.Consequence)
	field("Dispute", e.Dispute)
	field("Energy", e.Energy)

	if len(e.DisputeHistory) > 0 {
		fmt.Fprintln(w, "Earlier disputes:")
		for _, d := range e.DisputeHistory {
			fmt.Fprintf(w, "  %s  %s\n", d.CreatedAt.Local().Format(timeLayout), d.Dispute)
		}
	}

	if e.AIResponse != nil {
		fmt.Fprintf(w, "AI analysis (%s):\n", e.AIResponse.CreatedAt.Local().Format(timeLayout))
		var buf bytes.Buffer
		if err := json.Indent(&buf, e.AIResponse.Payload, "  ", "  "); err != nil {
			buf.Reset()
			buf.Write(e.AIResponse.Payload)
		}
		fmt.Fprintf(w, "  %s\n", buf.String())
	}

	if msg, ok := st.Errors[e.ID]; ok {
		fmt.Fprintf(w, "Last error: %s\n", msg)
	}
}
