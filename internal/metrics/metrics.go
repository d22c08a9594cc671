// Package metrics provides application-level counters using stdlib expvar.
// The HTTP API exposes them on /debug/vars.
package metrics

import "expvar"

// Operation counters.
var (
	EntitiesCreated     = expvar.NewInt("iris_entities_created_total")
	EntitiesDeleted     = expvar.NewInt("iris_entities_deleted_total")
	ObservationsAdded   = expvar.NewInt("iris_observations_added_total")
	ObservationsDeleted = expvar.NewInt("iris_observations_deleted_total")
	RelationsCreated    = expvar.NewInt("iris_relations_created_total")
	RelationsDeleted    = expvar.NewInt("iris_relations_deleted_total")
	SearchesTotal       = expvar.NewInt("iris_searches_total")
	SummariesSaved      = expvar.NewInt("iris_summaries_saved_total")
	MessagesAdded       = expvar.NewInt("iris_messages_added_total")
	MessagesExpired     = expvar.NewInt("iris_messages_expired_total")
)

// Inc increments the given counter by 1.
func Inc(counter *expvar.Int) { counter.Add(1) }
