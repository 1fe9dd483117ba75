package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/book-expert/voicebatch/internal/batch"
	"github.com/charmbracelet/lipgloss"
)

var (
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	headerStyle = lipgloss.NewStyle().Bold(true)
)

// progressPrinter prints one line per finished item.
type progressPrinter struct {
	out   io.Writer
	quiet bool
}

func newProgressPrinter(out io.Writer, quiet bool) *progressPrinter {
	return &progressPrinter{out: out, quiet: quiet}
}

// OnItemDone implements batch.Observer.
func (p *progressPrinter) OnItemDone(index, total int, item any, failure *batch.Failure, elapsed time.Duration) {
	if p.quiet {
		return
	}

	position := dimStyle.Render(fmt.Sprintf("[%d/%d]", index+1, total))

	if failure != nil {
		fmt.Fprintf(p.out, "%s %s %v: %s\n", position, failStyle.Render("✗"), item, failure.Message)

		return
	}

	fmt.Fprintf(p.out, "%s %s %v %s\n", position, okStyle.Render("✓"), item,
		dimStyle.Render(fmt.Sprintf("(%.1fs)", elapsed.Seconds())))
}

// summary is what renderSummary needs from a batch result.
type summary interface {
	Len() int
	Succeeded() int
	Failed() int
}

func renderSummary(label, batchID string, result summary) string {
	counts := okStyle.Render(fmt.Sprintf("%d succeeded", result.Succeeded()))
	if result.Failed() > 0 {
		counts += ", " + failStyle.Render(fmt.Sprintf("%d failed", result.Failed()))
	}

	return fmt.Sprintf("%s %s\n%s of %d %s\n",
		headerStyle.Render(label+" complete"),
		dimStyle.Render(batchID),
		counts,
		result.Len(),
		label,
	)
}
