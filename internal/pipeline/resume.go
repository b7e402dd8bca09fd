package pipeline

import (
	"fmt"

	"github.com/shpitdev/email-pattern-finder/internal/engine"
	"github.com/shpitdev/email-pattern-finder/internal/lead"
)

// Plan splits an input into leads that need validation and leads whose address a
// previous run already confirmed as safe.
type Plan struct {
	// Pending holds the first occurrence of every lead that still needs processing.
	Pending []lead.Lead

	leads      []lead.Lead
	reused     map[int]Row
	pendingIdx map[string][]int
}

// BuildPlan reuses prior rows with status safe; risky and none_found leads are retried
// since the mailbox may have changed. Duplicate leads in the input are processed once.
func BuildPlan(leads []lead.Lead, prior []Row) *Plan {
	safe := make(map[string]Row, len(prior))
	for _, r := range prior {
		if r.ValidationStatus == string(engine.StatusSafe) && r.Found() {
			safe[r.Key()] = r
		}
	}

	p := &Plan{
		leads:      leads,
		reused:     make(map[int]Row),
		pendingIdx: make(map[string][]int),
	}
	for _, l := range leads {
		key := l.Key()
		if prev, ok := safe[key]; ok {
			prev.Index = l.Index
			prev.Extra = l.Extra
			p.reused[l.Index] = prev
			continue
		}
		if _, seen := p.pendingIdx[key]; !seen {
			p.Pending = append(p.Pending, l)
		}
		p.pendingIdx[key] = append(p.pendingIdx[key], l.Index)
	}
	return p
}

// Reused counts leads answered from the previous output.
func (p *Plan) Reused() int {
	return len(p.reused)
}

// expand turns the result of a pending lead into one row per input lead sharing its key.
func (p *Plan) expand(res engine.LeadResult) ([]Row, error) {
	idxs, ok := p.pendingIdx[res.Lead.Key()]
	if !ok || len(idxs) == 0 || idxs[0] != res.Lead.Index {
		return nil, fmt.Errorf("resume mismatch: result for lead %d was not pending", res.Lead.Index)
	}
	rows := make([]Row, 0, len(idxs))
	for _, idx := range idxs {
		row := FromResult(res)
		row.Index = idx
		row.Extra = p.leads[position(p.leads, idx)].Extra
		rows = append(rows, row)
	}
	return rows, nil
}

// Emitter writes merged rows to a Writer in input order as results arrive, so an
// interrupted run keeps every row that was already settled.
type Emitter struct {
	plan    *Plan
	w       *Writer
	ready   map[int]Row
	invalid map[int]bool
	next    int

	written int
	counts  map[string]int
}

// Emitter returns an Emitter for p. Reused rows are written as soon as every lead
// before them is settled.
func (p *Plan) Emitter(w *Writer) *Emitter {
	e := &Emitter{
		plan:    p,
		w:       w,
		ready:   make(map[int]Row, len(p.reused)),
		invalid: make(map[int]bool),
		counts:  make(map[string]int),
	}
	for idx, r := range p.reused {
		e.ready[idx] = r
	}
	// Leads that fail validation never get a result; they must not hold back the rows
	// after them.
	for _, l := range p.leads {
		if _, ok := p.reused[l.Index]; ok {
			continue
		}
		if _, err := lead.Normalize(l); err != nil {
			e.invalid[l.Index] = true
		}
	}
	return e
}

// Add records the result of a pending lead and writes every row that is now next in
// input order. It has the shape of engine.EmitFunc.
func (e *Emitter) Add(res engine.LeadResult) error {
	rows, err := e.plan.expand(res)
	if err != nil {
		return err
	}
	for _, r := range rows {
		e.ready[r.Index] = r
	}
	return e.drain(false)
}

// Close writes the remaining settled rows, skipping leads that never got a result
// (for example after the run stopped early).
func (e *Emitter) Close() error {
	return e.drain(true)
}

func (e *Emitter) drain(final bool) error {
	for ; e.next < len(e.plan.leads); e.next++ {
		idx := e.plan.leads[e.next].Index
		r, ok := e.ready[idx]
		if !ok {
			if e.invalid[idx] || final {
				continue
			}
			return nil
		}
		if err := e.w.Write(r); err != nil {
			return err
		}
		delete(e.ready, idx)
		e.written++
		e.counts[r.ValidationStatus]++
	}
	return nil
}

// Written counts the rows written so far, duplicates and reused rows included.
func (e *Emitter) Written() int {
	return e.written
}

// Count returns how many written rows have status s.
func (e *Emitter) Count(s engine.Status) int {
	return e.counts[string(s)]
}

func position(leads []lead.Lead, idx int) int {
	if idx >= 0 && idx < len(leads) && leads[idx].Index == idx {
		return idx
	}
	for i, l := range leads {
		if l.Index == idx {
			return i
		}
	}
	return 0
}
