package diag

// Reporter получает диагностики от лексера; nil-реализация не нужна,
// лексер сам проверяет Reporter на nil.
type Reporter interface {
	Report(d Diagnostic)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(d Diagnostic)

func (f ReporterFunc) Report(d Diagnostic) { f(d) }

// BagReporter — адаптер, который пишет в *Bag.
type BagReporter struct{ Bag *Bag }

func (r BagReporter) Report(d Diagnostic) {
	if r.Bag == nil {
		return
	}
	r.Bag.Add(d)
}

// Counter counts reported diagnostics by severity before passing them on.
type Counter struct {
	Next   Reporter
	Counts [SevError + 1]int
}

func (c *Counter) Report(d Diagnostic) {
	if int(d.Severity) < len(c.Counts) {
		c.Counts[d.Severity]++
	}
	if c.Next != nil {
		c.Next.Report(d)
	}
}

func (c *Counter) Errors() int { return c.Counts[SevError] }
