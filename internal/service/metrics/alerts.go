package metrics

import "context"

// AlertLevel is the severity of an alert.
type AlertLevel string

const (
	LevelInfo    AlertLevel = "info"
	LevelWarning AlertLevel = "warning"
)

// Thresholds for the default rules. Every comparison is strictly greater
// than, so a defaulted zero never fires.
const (
	MemoryUsageThreshold   = 0.80
	DBConnectionsThreshold = 10
	OutOfStockThreshold    = 5
)

// Alert is a threshold breach derived from a snapshot.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Message string     `json:"message"`
	Metric  string     `json:"metric"`
	Value   float64    `json:"value"`
}

// Rule inspects a snapshot and reports an alert when its condition holds.
type Rule func(Snapshot) (Alert, bool)

// DefaultRules are evaluated in order: memory, connections, stock.
var DefaultRules = []Rule{memoryRule, connectionsRule, outOfStockRule}

func memoryRule(s Snapshot) (Alert, bool) {
	ratio := s.System.Memory.UsageRatio()
	if ratio <= MemoryUsageThreshold {
		return Alert{}, false
	}
	return Alert{
		Level:   LevelWarning,
		Message: "High memory usage",
		Metric:  "memory_usage",
		Value:   ratio * 100,
	}, true
}

func connectionsRule(s Snapshot) (Alert, bool) {
	n := s.Database.ActiveConnections
	if n <= DBConnectionsThreshold {
		return Alert{}, false
	}
	return Alert{
		Level:   LevelWarning,
		Message: "Too many active database connections",
		Metric:  "db_connections",
		Value:   float64(n),
	}, true
}

func outOfStockRule(s Snapshot) (Alert, bool) {
	n := s.Business.Products.OutOfStock
	if n <= OutOfStockThreshold {
		return Alert{}, false
	}
	return Alert{
		Level:   LevelInfo,
		Message: "Products out of stock",
		Metric:  "out_of_stock_products",
		Value:   float64(n),
	}, true
}

// Evaluate applies rules (DefaultRules when none are given) to s. It is a
// pure function of its inputs and never returns nil.
func Evaluate(s Snapshot, rules ...Rule) []Alert {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	alerts := []Alert{}
	for _, rule := range rules {
		if a, ok := rule(s); ok {
			alerts = append(alerts, a)
		}
	}
	return alerts
}

// Evaluator computes alerts from a fresh snapshot on every call.
type Evaluator struct {
	agg   *Aggregator
	rules []Rule
}

// NewEvaluator creates an Evaluator. With no rules, DefaultRules apply.
func NewEvaluator(agg *Aggregator, rules ...Rule) *Evaluator {
	return &Evaluator{agg: agg, rules: rules}
}

// Evaluate takes a snapshot and applies the rules to it.
func (e *Evaluator) Evaluate(ctx context.Context) ([]Alert, error) {
	snap, err := e.agg.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return Evaluate(snap, e.rules...), nil
}

// Dashboard pairs a snapshot with the alerts computed from it.
type Dashboard struct {
	System Snapshot `json:"system"`
	Alerts []Alert  `json:"alerts"`
}

// Dashboard takes one snapshot and evaluates alerts against that same
// snapshot.
func (e *Evaluator) Dashboard(ctx context.Context) (Dashboard, error) {
	snap, err := e.agg.Snapshot(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	return Dashboard{System: snap, Alerts: Evaluate(snap, e.rules...)}, nil
}
