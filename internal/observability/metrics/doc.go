// Package metrics records sentiment-analysis instrumentation through an injected
// Registry.
//
// The package owns two things:
//   - the Registry capability that every metrics backend implements
//     (memory, Prometheus, CloudWatch, OpenTelemetry)
//   - SentimentMetrics, the facade the analysis workflow calls
//
// Metric names and tag keys emitted by SentimentMetrics are consumed by
// dashboards and alarms and must not change:
//
//	sentiment.analysis.total              counter  {sentiment, company}
//	sentiment.analysis.duration           timer    {company, model}
//	sentiment.analysis.companies.detected gauge
//	sentiment.analysis.confidence         summary  {sentiment, company}
//
// Example usage:
//
//	reg := prom.NewRegistry()
//	m, err := metrics.NewSentimentMetrics(reg, metrics.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	m.RecordAnalysis("POSITIVE", "Acme")
//	m.RecordDuration(250*time.Millisecond, "Acme", "comprehend")
package metrics
