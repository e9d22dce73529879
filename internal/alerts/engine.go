// Package alerts advances alert state machines against refreshed prices and
// dispatches one notification per unbroken threshold crossing.
package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rfinnegan/investment-tracker/internal/models"
	"github.com/rfinnegan/investment-tracker/internal/notify"
)

// Store is the persistence the engine needs. ActiveBySymbol returns armed
// and triggered alerts; acknowledged alerts are excluded from evaluation.
type Store interface {
	ActiveBySymbol(ctx context.Context, symbol string) ([]models.Alert, error)
	UpdateEvaluation(ctx context.Context, alert *models.Alert) error
}

// Engine evaluates alerts for refreshed symbols.
type Engine struct {
	store      Store
	dispatcher notify.Dispatcher
	now        func() time.Time
	log        zerolog.Logger
}

// NewEngine creates an evaluation engine.
func NewEngine(store Store, dispatcher notify.Dispatcher, log zerolog.Logger) *Engine {
	return &Engine{
		store:      store,
		dispatcher: dispatcher,
		now:        time.Now,
		log:        log.With().Str("component", "alert-engine").Logger(),
	}
}

// Evaluate advances every active alert on the symbol against newPrice.
//
// The crossing rule is edge-triggered: an armed alert fires only when the
// price is past the target now and the previously evaluated price was not
// (or no prior price exists). A triggered alert whose price crosses back
// through the target re-arms, so the next crossing fires again.
//
// Dispatch happens before the state transition is persisted: a persist
// failure yields at-least-once notification bounded by the trigger id,
// never a lost alert state.
func (e *Engine) Evaluate(ctx context.Context, symbol string, newPrice decimal.Decimal) (triggered int, err error) {
	alerts, err := e.store.ActiveBySymbol(ctx, symbol)
	if err != nil {
		return 0, fmt.Errorf("failed to load alerts for %s: %w", symbol, err)
	}

	var firstErr error
	for i := range alerts {
		alert := &alerts[i]
		fired, evalErr := e.evaluateOne(ctx, alert, newPrice)
		if evalErr != nil {
			e.log.Error().Err(evalErr).Int("alert_id", alert.ID).Str("symbol", symbol).
				Msg("alert evaluation failed")
			if firstErr == nil {
				firstErr = evalErr
			}
			continue
		}
		if fired {
			triggered++
		}
	}
	return triggered, firstErr
}

func (e *Engine) evaluateOne(ctx context.Context, alert *models.Alert, newPrice decimal.Decimal) (bool, error) {
	prev := alert.LastEvaluatedPrice
	crossed := alert.Crossed(newPrice)
	wasPast := prev != nil && alert.Crossed(*prev)

	fired := false
	switch alert.State {
	case models.StateArmed:
		if crossed && !wasPast {
			transitionAt := e.now().UTC()
			notice := notify.TriggerNotice{
				TriggerID:     alert.TriggerID(transitionAt),
				AlertID:       alert.ID,
				PortfolioID:   alert.PortfolioID,
				Symbol:        alert.Symbol,
				Direction:     alert.Direction,
				TargetPrice:   alert.TargetPrice,
				ObservedPrice: newPrice,
				TransitionAt:  transitionAt,
			}
			if err := e.dispatcher.Dispatch(ctx, notice); err != nil {
				// Fire-and-forget: the dispatcher owns retries, and the
				// trigger id bounds duplicate delivery.
				e.log.Warn().Err(err).Str("trigger_id", notice.TriggerID).
					Msg("notification dispatch failed")
			}
			alert.State = models.StateTriggered
			alert.LastTransitionAt = &transitionAt
			fired = true
			e.log.Info().Int("alert_id", alert.ID).Str("symbol", alert.Symbol).
				Str("price", newPrice.String()).Str("target", alert.TargetPrice.String()).
				Msg("alert triggered")
		}
	case models.StateTriggered:
		// Crossing back through the target re-arms the alert so a later
		// crossing notifies again.
		if !crossed {
			transitionAt := e.now().UTC()
			alert.State = models.StateArmed
			alert.LastTransitionAt = &transitionAt
		}
	}

	// Always record the evaluated price so a later reset re-arms against
	// the current observation, not a stale one.
	alert.LastEvaluatedPrice = &newPrice

	if err := e.store.UpdateEvaluation(ctx, alert); err != nil {
		return fired, fmt.Errorf("failed to persist alert %d: %w", alert.ID, err)
	}
	return fired, nil
}
