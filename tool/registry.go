package tool

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// Registry holds tool descriptors and dispatches execution by name.
// It performs no authorization; callers run the scope check first.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]Descriptor
	handlers    map[string]Handler
	metrics     *Metrics
}

// NewRegistry creates an empty tool registry
func NewRegistry() *Registry {
	return &Registry{
		descriptors: make(map[string]Descriptor),
		handlers:    make(map[string]Handler),
		metrics:     newMetrics(),
	}
}

// Register adds a tool to the registry. The descriptor is validated here
// rather than at call time: an empty name, a nil handler, or a malformed
// schema is a registration error, and duplicate names fail with ErrDuplicateTool.
func (r *Registry) Register(desc Descriptor, handler Handler) error {
	if desc.Name == "" {
		return serr.New("tool descriptor requires a name")
	}
	if handler == nil {
		return serr.New("tool handler required", "tool", desc.Name)
	}
	for name, spec := range desc.ParamSchema.Params {
		switch spec.Type {
		case "string", "integer", "boolean":
		default:
			return serr.New("unsupported schema type", "tool", desc.Name, "param", name, "type", spec.Type)
		}
	}
	for _, req := range desc.ParamSchema.Required {
		if _, ok := desc.ParamSchema.Params[req]; !ok {
			return serr.New("required parameter missing from schema", "tool", desc.Name, "param", req)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.descriptors[desc.Name]; exists {
		return serr.Wrap(ErrDuplicateTool, "tool", desc.Name)
	}

	r.descriptors[desc.Name] = desc
	r.handlers[desc.Name] = handler
	logger.Debug("Registered tool: " + desc.Name)
	return nil
}

// Get returns the descriptor for a tool name
func (r *Registry) Get(name string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	desc, exists := r.descriptors[name]
	if !exists {
		return Descriptor{}, serr.Wrap(ErrToolNotFound, "tool", name)
	}
	return desc, nil
}

// List returns all registered descriptors sorted by name
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descs := make([]Descriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		descs = append(descs, d)
	}
	sort.Slice(descs, func(i, j int) bool { return descs[i].Name < descs[j].Name })
	return descs
}

// Execute resolves the named tool and invokes its handler.
// Handler failures come back as an ExecutionError tagged with the tool name.
func (r *Registry) Execute(ctx context.Context, name string, ec ExecutionContext, params map[string]interface{}) (string, error) {
	r.mu.RLock()
	handler, exists := r.handlers[name]
	r.mu.RUnlock()

	if !exists {
		return "", serr.Wrap(ErrToolNotFound, "tool", name)
	}

	start := time.Now()
	result, err := handler.Execute(ctx, ec, params)
	durationMs := time.Since(start).Milliseconds()

	r.metrics.record(name, durationMs, err != nil)

	if err != nil {
		logger.LogErr(err, fmt.Sprintf("Tool execution failed: %s (duration: %dms)", name, durationMs))
		return "", &ExecutionError{Tool: name, Err: err}
	}

	logger.Debug(fmt.Sprintf("Tool executed: %s (duration: %dms)", name, durationMs))
	return result, nil
}

// MetricsSummary returns per-tool usage counters
func (r *Registry) MetricsSummary() map[string]interface{} {
	return r.metrics.summary()
}

// Metrics tracks tool usage
type Metrics struct {
	mu            sync.Mutex
	executions    map[string]int
	totalDuration map[string]int64 // milliseconds
	failures      map[string]int
}

func newMetrics() *Metrics {
	return &Metrics{
		executions:    make(map[string]int),
		totalDuration: make(map[string]int64),
		failures:      make(map[string]int),
	}
}

func (m *Metrics) record(toolName string, durationMs int64, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.executions[toolName]++
	m.totalDuration[toolName] += durationMs
	if failed {
		m.failures[toolName]++
	}
}

func (m *Metrics) summary() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	summary := make(map[string]interface{})
	for tool, count := range m.executions {
		avgDuration := int64(0)
		if count > 0 {
			avgDuration = m.totalDuration[tool] / int64(count)
		}
		successRate := 100.0
		if count > 0 {
			successRate = float64(count-m.failures[tool]) / float64(count) * 100
		}
		summary[tool] = map[string]interface{}{
			"executions":      count,
			"failures":        m.failures[tool],
			"success_rate":    fmt.Sprintf("%.1f%%", successRate),
			"avg_duration_ms": avgDuration,
		}
	}
	return summary
}
