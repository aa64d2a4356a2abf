package analysis

// CatalogEntry describes one job output artifact that can serve as evidence.
// Descriptions deliberately carry the keywords the recommender matches on.
type CatalogEntry struct {
	Name        string
	Description string
}

// ArtifactCatalog lists the known job output artifacts in a stable order.
// Recommendation ties are broken by catalog position.
var ArtifactCatalog = []CatalogEntry{
	{"request.script", "The submitted job script source code, the query the user wrote including joins, aggregations and data transformations"},
	{"scope.script", "The compiled script after parameter expansion and view inlining, shows the actual code the compiler processed"},
	{"NebulaCommandLine.txt", "Command line and submission config used to launch the job, includes token count and priority settings"},
	{"__ScopeCodeGen__.dll.cs", "Generated C# code for user-defined operators, shows the compiled implementation of processors and reducers"},
	{"JobInfo.xml", "Job metadata config: submitter, cluster, virtual cluster, runtime config and resource settings"},
	{"JobStatistics.xml", "Per-stage execution statistics log: vertex run times, row counts, data read and write volume, reveals uneven vertex workloads and hot partitions"},
	{"Algebra.xml", "Relational algebra plan of the job: operators, stage boundaries, partitioning and repartition requirements between stages"},
	{"ScopeVertexDef.xml", "Vertex definitions: which operators run in each vertex and how stages connect"},
	{"__DataMapDfg__.json", "Data flow graph with per-edge data transfer volume, shows shuffle and repartition traffic between stages"},
	{"__Warnings__.xml", "Compiler and runtime warnings log: cross joins, missing statistics, skewed key hints"},
	{"__ScopeRuntimeStatistics__.xml", "Runtime operator statistics log: per-operator timing, rows produced, memory usage per vertex"},
	{"__SStreamInfo__.xml", "Structured stream metadata: partition key layout, partition counts and sizes of input streams"},
	{"profile", "Execution profile log with detailed per-vertex timing breakdown, identifies the slowest stage and vertex"},
	{"Error", "The job error output log: failure messages, exceptions and the vertex where the job failed"},
	{"diagnosticsjson", "Diagnostics summary log in JSON form: errors, resolution hints and runtime diagnostics"},
	{"__CompilerTimers.xml", "Compiler phase timing: parsing, optimization and code generation durations"},
}

// CatalogEntryByName returns the catalog entry for an artifact, if known.
func CatalogEntryByName(name string) (CatalogEntry, bool) {
	for _, e := range ArtifactCatalog {
		if e.Name == name {
			return e, true
		}
	}
	return CatalogEntry{}, false
}

// evidenceCategory is a kind of evidence the diagnosis of a problem type
// needs. The recommender checks which categories the accumulated evidence
// does not cover yet and scores candidate artifacts by how well their
// descriptions match the missing categories.
type evidenceCategory struct {
	Name     string
	Keywords []string
}

// categoriesFor returns the evidence categories relevant to a problem type.
func categoriesFor(problemType ProblemType) []evidenceCategory {
	switch problemType {
	case ProblemDataSkew:
		return []evidenceCategory{
			{"script", []string{"script", "code", "join", "query"}},
			{"statistics", []string{"statistics", "row counts", "vertex", "partition"}},
			{"plan", []string{"plan", "algebra", "stage", "operators"}},
			{"warnings", []string{"warnings", "hints", "skewed"}},
		}
	case ProblemExcessiveShuffle:
		return []evidenceCategory{
			{"script", []string{"script", "code", "query", "transformations"}},
			{"plan", []string{"plan", "algebra", "partitioning", "repartition"}},
			{"dataflow", []string{"data flow", "transfer", "shuffle", "stages"}},
			{"statistics", []string{"statistics", "data read", "write volume"}},
		}
	default:
		return []evidenceCategory{
			{"script", []string{"script", "code", "query"}},
			{"errors", []string{"error", "failure", "exceptions", "diagnostics"}},
			{"statistics", []string{"statistics", "vertex", "timing"}},
			{"config", []string{"config", "settings", "metadata"}},
		}
	}
}

// strongIndicatorsFor returns keywords whose presence in an artifact
// description marks it as directly diagnostic for the problem type.
func strongIndicatorsFor(problemType ProblemType) []string {
	switch problemType {
	case ProblemDataSkew:
		return []string{"skew", "join", "uneven", "hot key"}
	case ProblemExcessiveShuffle:
		return []string{"shuffle", "repartition", "stage", "transfer"}
	default:
		return nil
	}
}
