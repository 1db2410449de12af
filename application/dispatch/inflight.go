package dispatch

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/reglet-dev/capkit/domain/entities"
	"github.com/reglet-dev/capkit/domain/errors"
	"github.com/reglet-dev/capkit/runctx"
)

// CallInfo is a snapshot of a call that has not finished yet.
type CallInfo struct {
	Started      time.Time             `json:"started"`
	CallID       string                `json:"call_id"`
	TraceID      string                `json:"trace_id"`
	RunID        string                `json:"run_id"`
	CapabilityID entities.CapabilityID `json:"capability_id"`
	Function     string                `json:"function"`
	State        State                 `json:"state"`
}

type tracker struct {
	rc       *runctx.RunContext
	cancel   context.CancelFunc
	table    *inflightTable
	observer Observer
	logger   *slog.Logger
	info     CallInfo
}

type inflightTable struct {
	calls map[string]*tracker
	mu    sync.Mutex
}

func newInflightTable() *inflightTable {
	return &inflightTable{calls: make(map[string]*tracker)}
}

func (d *Dispatcher) begin(rc *runctx.RunContext, call Call) *tracker {
	ctx, cancel := context.WithCancel(rc)
	t := &tracker{
		rc:       rc.WithContext(ctx),
		cancel:   cancel,
		table:    d.inflight,
		observer: d.config.observer,
		logger:   d.config.logger,
		info: CallInfo{
			Started:      time.Now(),
			CallID:       newCallID(),
			TraceID:      rc.TraceID(),
			RunID:        rc.RunID(),
			CapabilityID: call.CapabilityID,
			Function:     call.Function,
			State:        StateReceived,
		},
	}

	d.inflight.mu.Lock()
	d.inflight.calls[t.info.CallID] = t
	d.inflight.mu.Unlock()
	return t
}

func (tb *inflightTable) remove(t *tracker) {
	tb.mu.Lock()
	delete(tb.calls, t.info.CallID)
	tb.mu.Unlock()
	t.cancel()
}

func (t *tracker) advance(to State) {
	t.table.mu.Lock()
	from := t.info.State
	if !from.next(to) {
		t.table.mu.Unlock()
		panic(fmt.Sprintf("dispatch: invalid transition %s -> %s", from, to))
	}
	t.info.State = to
	t.table.mu.Unlock()

	if t.observer != nil {
		t.notify(Transition{
			At:           time.Now(),
			CallID:       t.info.CallID,
			CapabilityID: t.info.CapabilityID,
			Function:     t.info.Function,
			From:         from,
			To:           to,
		})
	}
}

// notify delivers tr to the observer. A panicking observer is logged and
// does not affect the call.
func (t *tracker) notify(tr Transition) {
	defer func() {
		if p := recover(); p != nil {
			t.logger.Error("dispatch observer panicked",
				"call_id", tr.CallID, "from", tr.From.String(), "to", tr.To.String(), "panic", p)
		}
	}()
	t.observer(tr)
}

func (t *tracker) state() State {
	t.table.mu.Lock()
	defer t.table.mu.Unlock()
	return t.info.State
}

func (t *tracker) fail(err error) *entities.StepResult {
	t.advance(StateFailed)
	return entities.Failure(errors.ToErrorInfo(err))
}

// InFlight returns the calls currently running, oldest first.
func (d *Dispatcher) InFlight() []CallInfo {
	d.inflight.mu.Lock()
	out := make([]CallInfo, 0, len(d.inflight.calls))
	for _, t := range d.inflight.calls {
		out = append(out, t.info)
	}
	d.inflight.mu.Unlock()

	slices.SortFunc(out, func(a, b CallInfo) int {
		if c := a.Started.Compare(b.Started); c != 0 {
			return c
		}
		return cmp.Compare(a.CallID, b.CallID)
	})
	return out
}

// Cancel requests cancellation of the call with the given id. It reports
// whether the call was found. Cancellation is best effort: a capability that
// finishes before observing it still succeeds.
func (d *Dispatcher) Cancel(callID string) bool {
	d.inflight.mu.Lock()
	t, ok := d.inflight.calls[callID]
	d.inflight.mu.Unlock()
	if ok {
		t.cancel()
	}
	return ok
}
