package gnss

import (
	"context"
	"log"
	"time"

	"github.com/octality-ai/mobile-air-quality-monitoring/internal/ubx"
)

// Candidate is one variant of a command. Prepare, if set, builds the frame at
// send time (e.g. read-modify-write of the current config); otherwise Frame is
// sent as is.
type Candidate struct {
	Name    string
	Frame   ubx.Frame
	Prepare func(ctx context.Context) (ubx.Frame, error)
}

type Attempt struct {
	Name   string `json:"name"`
	Result Result `json:"result"`
	Err    string `json:"error,omitempty"`
}

// FallbackOutcome lists every attempt in order. Index is the candidate that
// was acknowledged, or -1.
type FallbackOutcome struct {
	Index    int       `json:"index"`
	Name     string    `json:"name,omitempty"`
	Attempts []Attempt `json:"attempts"`
}

func (o FallbackOutcome) OK() bool { return o.Index >= 0 }

// SendWithFallback tries candidates in order and stops at the first Ack. A Nak,
// a Timeout or a failed Prepare moves on to the next candidate.
func (r *Receiver) SendWithFallback(ctx context.Context, cands []Candidate, timeout time.Duration) FallbackOutcome {
	out := FallbackOutcome{Index: -1}
	for i, c := range cands {
		if ctx.Err() != nil {
			break
		}
		f := c.Frame
		if c.Prepare != nil {
			pf, err := c.Prepare(ctx)
			if err != nil {
				log.Printf("gnss: candidate %s skipped: %v", c.Name, err)
				out.Attempts = append(out.Attempts, Attempt{Name: c.Name, Result: Timeout, Err: err.Error()})
				continue
			}
			f = pf
		}

		res, err := r.SendAndWait(ctx, f, timeout)
		a := Attempt{Name: c.Name, Result: res}
		if err != nil {
			a.Err = err.Error()
		}
		out.Attempts = append(out.Attempts, a)
		log.Printf("gnss: candidate %d/%d name=%s result=%s", i+1, len(cands), c.Name, res)
		if res == Ack {
			out.Index = i
			out.Name = c.Name
			return out
		}
	}
	return out
}
