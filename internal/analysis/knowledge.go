package analysis

// ExperienceNotes returns curated diagnosis guidance for a problem type,
// injected into round prompts so the model reasons from known failure
// patterns instead of first principles.
func ExperienceNotes(problemType ProblemType) string {
	switch problemType {
	case ProblemDataSkew:
		return `Known data skew patterns:
- A single vertex in a stage runs far longer than its peers and processes a disproportionate share of rows. Check per-vertex row counts in the stage statistics.
- Joins or aggregations on low-cardinality or heavily repeated keys (nulls, empty strings, default IDs) concentrate work on one partition.
- Typical fixes: filter or separate hot keys before the join, use a skew join hint, pre-aggregate before the shuffle, or repartition on a composite key.`
	case ProblemExcessiveShuffle:
		return `Known excessive shuffle patterns:
- Large data transfer volume between consecutive stages, often repeated repartitioning on different keys across the plan.
- Joins whose inputs are partitioned on different keys force a full reshuffle of the larger side.
- Typical fixes: align partitioning keys across operations, push filters and projections before the shuffle, broadcast the small side of a join, and combine operations that share a partitioning key into one stage.`
	default:
		return `General diagnosis guidance:
- Start from the error output and warnings, then correlate with the longest-running stage in the statistics.
- Compare compile-time expectations (plan, generated code) against runtime behavior (vertex timing, memory).
- Resource exhaustion, missing statistics, and pathological user code are the most common causes outside skew and shuffle.`
	}
}
