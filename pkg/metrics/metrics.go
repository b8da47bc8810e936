// Package metrics holds the prometheus collectors shared by the api, cron-worker and
// outbox-publisher binaries. Every constructor accepts a nil registerer and returns a no-op
// recorder, and every recorder method is safe on a nil receiver.
package metrics

const namespace = "learnhub"

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
