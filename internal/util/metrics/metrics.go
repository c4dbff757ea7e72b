// Package metrics holds shared Prometheus bucket/label definitions so
// every promauto collector in the engine reports on a common scale.
package metrics

// LatencyBuckets covers sub-millisecond flow dispatch up to multi-second
// CDC catch-up pauses.
var LatencyBuckets = []float64{
	.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10,
}

// FlowLabels identifies a metric by the flow it was emitted for.
var FlowLabels = []string{"flow"}

// TableLabels identifies a metric by the namespace-qualified table it
// was emitted for.
var TableLabels = []string{"namespace", "table"}
