/*
persister.go - Background save loop

PURPOSE:
  Saving is a side channel, not a gate: a commit is final in memory as soon
  as the Controller swaps in the new State. The Persister takes those states
  and writes them to the Gateway on its own goroutine.

DESIGN:
  - One-slot queue. Submitting while a save is pending replaces the pending
    state, since every save writes the full aggregate and only the newest
    one matters.
  - A failed save is logged and flips Unsaved() to true. It is NOT retried;
    the next successful save clears the flag.
  - Stop() drains the queue so the last submitted state is written.

USAGE:
  p := NewPersister(gw, log)
  p.Start()
  defer p.Stop()
  p.Submit(state)
*/
package pos

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SaveStatus describes the outcome of the most recent save.
type SaveStatus struct {
	Unsaved     bool
	LastError   string
	LastSavedAt time.Time
}

type Persister struct {
	Gateway     Gateway
	SaveTimeout time.Duration

	log     *zap.Logger
	pending chan *State
	stop    chan struct{}
	wg      sync.WaitGroup

	mu      sync.Mutex
	started bool
	status  SaveStatus
}

func NewPersister(gw Gateway, log *zap.Logger) *Persister {
	return &Persister{
		Gateway:     gw,
		SaveTimeout: 10 * time.Second,
		log:         log.Named("persister"),
		pending:     make(chan *State, 1),
	}
}

// Start launches the save goroutine. A stopped Persister can be started again.
func (p *Persister) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	p.stop = make(chan struct{})
	p.wg.Add(1)
	go p.run(p.stop)
}

// Stop drains pending work and waits for the goroutine to exit.
func (p *Persister) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	stop := p.stop
	p.mu.Unlock()

	close(stop)
	p.wg.Wait()
}

// Submit queues s for saving, replacing any state still waiting.
// Callers must not submit concurrently; the Controller serializes this.
func (p *Persister) Submit(s *State) {
	select {
	case p.pending <- s:
		return
	default:
	}
	select {
	case <-p.pending:
	default:
	}
	p.pending <- s
}

// Status reports whether the most recent save failed.
func (p *Persister) Status() SaveStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Persister) run(stop <-chan struct{}) {
	defer p.wg.Done()
	for {
		select {
		case s := <-p.pending:
			p.save(s)
		case <-stop:
			select {
			case s := <-p.pending:
				p.save(s)
			default:
			}
			return
		}
	}
}

func (p *Persister) save(s *State) {
	ctx, cancel := context.WithTimeout(context.Background(), p.SaveTimeout)
	defer cancel()

	err := p.Gateway.Save(ctx, s)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.status.Unsaved = true
		p.status.LastError = err.Error()
		p.log.Warn("save failed, changes are unsaved", zap.Error(err))
		return
	}
	p.status = SaveStatus{LastSavedAt: time.Now()}
	p.log.Debug("state saved", zap.Int("sales", len(s.Sales)), zap.Int("payments", len(s.Payments)))
}
