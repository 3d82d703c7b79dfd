// Package errors provides the structured error taxonomy used across
// skillmatch. Every error carries a code, a category that drives retry
// decisions, and optional metadata that travels with it into logs and JSON
// output.
//
// # Categories
//
//   - Transient: the operation may succeed if repeated (provider outages, timeouts)
//   - Permanent: repeating will not help (bad input, empty selection, not found)
//   - Resource: quota or rate exhaustion at a collaborator
//   - Internal: programming or data errors (dimension mismatch, corruption)
//
// # Domain codes
//
//   - PROVIDER_ERROR: the embedding provider call failed or timed out
//   - DIMENSION_MISMATCH: two vectors of unequal length were compared
//   - EMPTY_SELECTION: matching was requested with no selected competencies
//
// # Usage
//
//	err := errors.ProviderError("openai", "embedding request failed", cause)
//
//	if errors.Is(err, errors.ErrCodeProviderError) && errors.IsRetryable(err) {
//	    // caller decides: skip, retry later, or abort
//	}
//
// Errors marshal to JSON so the CLI can print them next to results:
//
//	data, _ := json.Marshal(err)
package errors
