package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// SwapEvent describes one step of a face-swap request
type SwapEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	RequestID      string                 `json:"request_id"`
	TemplateRef    string                 `json:"template_ref,omitempty"`
	Mode           string                 `json:"mode,omitempty"`
	ProcessingTime time.Duration          `json:"processing_time"`
	Success        bool                   `json:"success"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of swap event
type EventType string

const (
	// SwapStarted when a request has been accepted
	SwapStarted EventType = "swap_started"
	// SwapCompleted when a composite was produced
	SwapCompleted EventType = "swap_completed"
	// SwapDegraded when the unmodified template was returned instead
	SwapDegraded EventType = "swap_degraded"
	// SwapFailed when the request ended in an error
	SwapFailed EventType = "swap_failed"
	// TemplateFetched when the template was loaded from storage
	TemplateFetched EventType = "template_fetched"
	// TemplateFetchFailed when storage could not provide the template
	TemplateFetchFailed EventType = "template_fetch_failed"
	// FacesDetected when both detections finished
	FacesDetected EventType = "faces_detected"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event SwapEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event SwapEvent)
	Wait()
}

// LoggingObserver logs swap events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles swap events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event SwapEvent) {
	fields := logrus.Fields{
		"event_type":         event.EventType,
		"request_id":         event.RequestID,
		"processing_time_ms": event.ProcessingTime.Milliseconds(),
		"success":            event.Success,
	}
	if event.TemplateRef != "" {
		fields["template_ref"] = event.TemplateRef
	}
	if event.Mode != "" {
		fields["mode"] = event.Mode
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case SwapStarted:
		entry.Info("Face swap started")
	case SwapCompleted:
		entry.Info("Face swap completed")
	case SwapDegraded:
		entry.Warn("Face swap degraded to template")
	case SwapFailed:
		entry.Error("Face swap failed")
	case TemplateFetched, FacesDetected:
		entry.Debug("Face swap progress")
	case TemplateFetchFailed:
		entry.Error("Template fetch failed")
	default:
		entry.Info("Swap event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// Metrics is a point-in-time snapshot of swap counters
type Metrics struct {
	TotalSwaps           int64   `json:"total_swaps"`
	SuccessfulSwaps      int64   `json:"successful_swaps"`
	DegradedSwaps        int64   `json:"degraded_swaps"`
	FailedSwaps          int64   `json:"failed_swaps"`
	TemplateFetchFailure int64   `json:"template_fetch_failures"`
	AvgProcessingTimeMs  float64 `json:"avg_processing_time_ms"`
}

// MetricsObserver collects counters from swap events
type MetricsObserver struct {
	mu                    sync.RWMutex
	totalSwaps            int64
	successfulSwaps       int64
	degradedSwaps         int64
	failedSwaps           int64
	templateFetchFailures int64
	totalProcessingTime   time.Duration
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

// OnEvent handles swap events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event SwapEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case SwapStarted:
		o.totalSwaps++
	case SwapCompleted:
		o.successfulSwaps++
		o.totalProcessingTime += event.ProcessingTime
	case SwapDegraded:
		o.degradedSwaps++
		o.totalProcessingTime += event.ProcessingTime
	case SwapFailed:
		o.failedSwaps++
	case TemplateFetchFailed:
		o.templateFetchFailures++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() Metrics {
	o.mu.RLock()
	defer o.mu.RUnlock()

	m := Metrics{
		TotalSwaps:           o.totalSwaps,
		SuccessfulSwaps:      o.successfulSwaps,
		DegradedSwaps:        o.degradedSwaps,
		FailedSwaps:          o.failedSwaps,
		TemplateFetchFailure: o.templateFetchFailures,
	}
	if done := o.successfulSwaps + o.degradedSwaps; done > 0 {
		m.AvgProcessingTimeMs = float64(o.totalProcessingTime.Milliseconds()) / float64(done)
	}
	return m
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
	pending   sync.WaitGroup
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers delivers the event to every observer on its own goroutine.
// Delivery outlives the request; ctx values are still readable but callers
// should not expect cancellation to stop observers.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event SwapEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, observer := range observers {
		p.pending.Add(1)
		go func(obs Observer) {
			defer p.pending.Done()
			defer func() {
				if r := recover(); r != nil {
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
}

// Wait blocks until every delivery started so far has finished
func (p *EventPublisher) Wait() {
	p.pending.Wait()
}
