package feed

import (
	"context"

	"cryptofolio/internal/models"
)

// Reconciler maintains an ordered, id-keyed view of holdings from a seed
// snapshot and the change events that follow it. It is not safe for
// concurrent use; one goroutine owns it.
type Reconciler struct {
	order []string
	items map[string]models.Holding
}

func NewReconciler(seed []models.Holding) *Reconciler {
	r := &Reconciler{items: make(map[string]models.Holding, len(seed))}
	for _, h := range seed {
		r.add(h)
	}
	return r
}

// Apply folds one event into the view and reports whether it changed.
// Transaction events and duplicate adds are ignored.
func (r *Reconciler) Apply(ev models.ChangeEvent) bool {
	if ev.Collection != models.CollectionHoldings {
		return false
	}

	switch ev.Type {
	case models.ChangeAdded:
		if ev.Holding == nil {
			return false
		}
		return r.add(*ev.Holding)
	case models.ChangeRemoved:
		if _, ok := r.items[ev.ID]; !ok {
			return false
		}
		delete(r.items, ev.ID)
		for i, id := range r.order {
			if id == ev.ID {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
		return true
	}
	return false
}

func (r *Reconciler) add(h models.Holding) bool {
	if _, ok := r.items[h.ID]; ok {
		return false
	}
	r.items[h.ID] = h
	r.order = append(r.order, h.ID)
	return true
}

// Holdings returns a copy of the view in arrival order.
func (r *Reconciler) Holdings() []models.Holding {
	out := make([]models.Holding, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.items[id])
	}
	return out
}

// Coins returns the distinct coins of the view in arrival order.
func (r *Reconciler) Coins() []string {
	seen := make(map[string]bool)
	var coins []string
	for _, id := range r.order {
		coin := r.items[id].Coin
		if !seen[coin] {
			seen[coin] = true
			coins = append(coins, coin)
		}
	}
	return coins
}

func (r *Reconciler) Len() int {
	return len(r.order)
}

// Run applies events until ctx is done or events is closed, calling
// onChange after each event that changed the view. It returns nil when the
// channel closes.
func (r *Reconciler) Run(ctx context.Context, events <-chan models.ChangeEvent, onChange func(models.ChangeEvent, []models.Holding)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if r.Apply(ev) && onChange != nil {
				onChange(ev, r.Holdings())
			}
		}
	}
}
