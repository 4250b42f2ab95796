// Package resilience holds the fault-tolerance building blocks wrapped
// around every outbound call of the service.
//
//   - circuitbreaker: gobreaker wrappers for the analyzers (Comprehend,
//     Claude, OpenAI), the S3 result store and the Postgres connection
//   - retry: exponential backoff with jitter that retries 5xx, 429 and 408
//     responses as well as transient network errors
//
// Usage example:
//
//	cb := circuitbreaker.New(circuitbreaker.ComprehendAPIConfig())
//	err := retry.WithBackoff(ctx, retry.AIAPIConfig(), func() error {
//	    _, err := circuitbreaker.Run(cb, func() (*comprehend.DetectSentimentOutput, error) {
//	        return client.DetectSentiment(ctx, in)
//	    })
//	    return err
//	})
package resilience
