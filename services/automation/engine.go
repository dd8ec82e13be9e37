// Package automation owns the event-driven rule engine: discrete trigger
// events fan out to matching rules, each running its ordered action list.
package automation

import (
	"context"
	"encoding/json"
	"log"
	"reflect"
	"sync"
	"time"

	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/database"
	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/model"
	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/services/action"
)

// successRate EWMA weighting: one run shifts the rate by a tenth toward
// its outcome (100 for success, 0 for failure).
const ewmaDecay = 0.9

// Event is a discrete trigger dispatched into the engine, e.g.
// content_created or schedule_reached.
type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Engine matches events against enabled automation rules and runs the
// actions of every matching rule. Dispatch may be called concurrently from
// multiple event sources; actions within one rule stay strictly sequential
// while different rules may interleave.
type Engine struct {
	store   database.Storage
	invoker action.Invoker

	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

// NewEngine creates a rule engine
func NewEngine(store database.Storage, invoker action.Invoker) *Engine {
	return &Engine{
		store:   store,
		invoker: invoker,
		locks:   make(map[uint]*sync.Mutex),
	}
}

// Dispatch runs every enabled rule matching the event. A failing action
// skips the rest of that rule's actions; other matching rules are
// unaffected. Every rule invocation is logged regardless of outcome.
func (e *Engine) Dispatch(ctx context.Context, event Event) {
	rules, err := e.store.ListRulesByTrigger(event.Type)
	if err != nil {
		log.Printf("[RULES] Failed to load rules for event %q: %v", event.Type, err)
		return
	}

	for i := range rules {
		rule := rules[i]
		if !triggerMatches(&rule, event) {
			continue
		}
		e.runRule(ctx, &rule, event)
	}
}

// triggerMatches reports whether the rule's trigger params are a subset of
// the event payload. The trigger type already matched via the store query.
func triggerMatches(rule *model.AutomationRule, event Event) bool {
	if len(rule.TriggerParams) == 0 {
		return true
	}

	var params map[string]any
	if err := json.Unmarshal(rule.TriggerParams, &params); err != nil {
		log.Printf("[RULES] Rule %d has malformed trigger params: %v", rule.ID, err)
		return false
	}

	for key, want := range params {
		got, ok := event.Payload[key]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

// runRule executes the rule's actions in order, fail-fast, then updates the
// rule's counters and appends an execution log entry.
func (e *Engine) runRule(ctx context.Context, rule *model.AutomationRule, event Event) {
	lock := e.ruleLock(rule.ID)
	lock.Lock()
	defer lock.Unlock()

	var actions []model.RuleAction
	if err := json.Unmarshal(rule.Actions, &actions); err != nil {
		log.Printf("[RULES] Rule %d has malformed actions: %v", rule.ID, err)
		return
	}

	results := make([]model.ActionResult, 0, len(actions))
	allSucceeded := true

	for _, act := range actions {
		payload := make(map[string]any, len(event.Payload)+len(act.Params))
		for k, v := range event.Payload {
			payload[k] = v
		}
		for k, v := range act.Params {
			payload[k] = v
		}

		_, err := e.invoker.Invoke(ctx, action.Request{Name: act.Name, Payload: payload})
		if err != nil {
			results = append(results, model.ActionResult{Name: act.Name, Success: false, Error: err.Error()})
			allSucceeded = false
			log.Printf("[RULES] Rule %d action %q failed, skipping remaining actions: %v", rule.ID, act.Name, err)
			break
		}
		results = append(results, model.ActionResult{Name: act.Name, Success: true})
	}

	now := time.Now()
	outcome := model.RuleOutcomeSuccess
	outcomeValue := 100.0
	if !allSucceeded {
		outcome = model.RuleOutcomeFailure
		outcomeValue = 0
	}

	// Reload counters so concurrent dispatches of other rules or prior
	// invocations of this one are not overwritten.
	current, err := e.store.GetRule(rule.ID)
	if err != nil {
		current = rule
	}
	runCount := current.RunCount + 1
	successRate := current.SuccessRate*ewmaDecay + outcomeValue*(1-ewmaDecay)

	if err := e.store.RecordRuleRun(rule.ID, runCount, successRate, now); err != nil {
		log.Printf("[RULES] Failed to update counters for rule %d: %v", rule.ID, err)
	}

	entry := &model.RuleExecutionLog{
		RuleID:    rule.ID,
		Timestamp: now,
		Outcome:   outcome,
	}
	if raw, err := json.Marshal(results); err == nil {
		entry.ActionResults = raw
	}
	if err := e.store.CreateRuleLog(entry); err != nil {
		log.Printf("[RULES] Failed to log run of rule %d: %v", rule.ID, err)
	}

	log.Printf("[RULES] Rule %d (%s) ran with outcome %s, success rate now %.1f",
		rule.ID, rule.Name, outcome, successRate)
}

func (e *Engine) ruleLock(ruleID uint) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, ok := e.locks[ruleID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[ruleID] = lock
	}
	return lock
}

// Emit is a convenience for firing an event with a payload map
func (e *Engine) Emit(ctx context.Context, eventType string, payload map[string]any) {
	e.Dispatch(ctx, Event{Type: eventType, Payload: payload})
}
