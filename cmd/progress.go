/*
Copyright © 2025 Ambor <saltbo@foxmail.com>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"fmt"
	"io"
)

const maxProgressStep = 1000

type tableProgress struct {
	total, done, printed, step int
}

// cliProgress prints export progress roughly every 5% of a table.
type cliProgress struct {
	out    io.Writer
	tables map[string]*tableProgress
}

func newCLIProgress(out io.Writer) *cliProgress {
	return &cliProgress{out: out, tables: make(map[string]*tableProgress)}
}

func (p *cliProgress) StartTable(table string, total int) {
	total = max(total, 0)
	step := maxProgressStep
	if total > 0 {
		step = min(max(total/20, 1), maxProgressStep)
	}
	p.tables[table] = &tableProgress{total: total, step: step}
	fmt.Fprintf(p.out, "开始导出 %s (共 %d 行)\n", table, total)
}

func (p *cliProgress) Increment(table string, delta int) {
	t, ok := p.tables[table]
	if !ok || delta <= 0 {
		return
	}
	t.done += delta
	if t.printed == 0 || t.done == t.total || t.done-t.printed >= t.step {
		p.report(table, t)
	}
}

func (p *cliProgress) FinishTable(table string) {
	t, ok := p.tables[table]
	if !ok {
		return
	}
	if t.done != t.printed {
		p.report(table, t)
	}
	fmt.Fprintf(p.out, "完成导出 %s: %d/%d 行\n", table, t.done, t.total)
	delete(p.tables, table)
}

func (p *cliProgress) report(table string, t *tableProgress) {
	fmt.Fprintf(p.out, "导出进度 %s: %d/%d\n", table, t.done, t.total)
	t.printed = t.done
}
