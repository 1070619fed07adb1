// Package metrics exposes Prometheus collectors for classification and
// emission counts, and dumps them to a textfile after a batch run.
package metrics
