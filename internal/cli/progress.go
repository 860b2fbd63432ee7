package cli

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/fmueller/vaultscribe/internal/notify"
	"github.com/fmueller/vaultscribe/internal/runner"
	"github.com/schollz/progressbar/v3"
)

// fanoutProgress counts finished transcriptions. Completions may arrive
// before the total is known; they are added once the bar exists.
type fanoutProgress struct {
	enabled bool
	out     io.Writer

	mu       sync.Mutex
	bar      *progressbar.ProgressBar
	finished int
	failed   int
}

func newFanoutProgress(enabled bool, out io.Writer) *fanoutProgress {
	return &fanoutProgress{enabled: enabled, out: out}
}

func (p *fanoutProgress) start(total int) {
	if !p.enabled || total <= 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.bar = progressbar.NewOptions(
		total,
		progressbar.OptionSetDescription("Transcribing"),
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(20),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	_ = p.bar.Add(p.finished)
}

func (p *fanoutProgress) complete(o runner.Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.finished++
	if o.Err != nil {
		p.failed++
	}
	if p.bar != nil {
		_ = p.bar.Add(1)
	}
}

func (p *fanoutProgress) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

func (p *fanoutProgress) counts() (finished, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finished, p.failed
}

// around routes messages for the bar's terminal through the bar: it is
// cleared before the message and redrawn after it.
func (p *fanoutProgress) around(next notify.Notifier) notify.Notifier {
	return &barNotifier{progress: p, next: next}
}

type barNotifier struct {
	progress *fanoutProgress
	next     notify.Notifier
}

func (n *barNotifier) Notify(ctx context.Context, msg notify.Message) error {
	p := n.progress
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar == nil || p.bar.IsFinished() {
		return n.next.Notify(ctx, msg)
	}
	_ = p.bar.Clear()
	err := n.next.Notify(ctx, msg)
	_ = p.bar.RenderBlank()
	return err
}
