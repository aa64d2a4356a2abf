package artifact

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"sort"
	"strings"
)

// Parser normalizes a structured artifact into a readable text summary.
// Returning an error makes the store fall back to the raw content.
type Parser func(name string, raw []byte) (string, error)

// defaultParsers registers normalizers for the structured artifacts that
// benefit from summarization. Everything else is treated as plain text.
func defaultParsers() map[string]Parser {
	return map[string]Parser{
		"JobStatistics.xml":   parseJobStatistics,
		"__Warnings__.xml":    parseWarnings,
		"__DataMapDfg__.json": parseDataFlowGraph,
	}
}

// ─── JobStatistics.xml ───

type jobStatistics struct {
	XMLName xml.Name    `xml:"JobStatistics"`
	Stages  []stageStat `xml:"Stage"`
}

type stageStat struct {
	Name        string       `xml:"Name,attr"`
	TotalTimeMs int64        `xml:"TotalTime,attr"`
	Vertices    []vertexStat `xml:"Vertex"`
}

type vertexStat struct {
	Name     string `xml:"Name,attr"`
	TimeMs   int64  `xml:"Time,attr"`
	RowCount int64  `xml:"RowCount,attr"`
	DataRead int64  `xml:"DataRead,attr"`
}

// parseJobStatistics summarizes per-stage runtime statistics and highlights
// vertices whose row counts are far above the stage average, the usual
// signature of a skewed partition.
func parseJobStatistics(name string, raw []byte) (string, error) {
	var stats jobStatistics
	if err := xml.Unmarshal(raw, &stats); err != nil {
		return "", fmt.Errorf("parse %s: %w", name, err)
	}
	if len(stats.Stages) == 0 {
		return "", fmt.Errorf("parse %s: no stages", name)
	}

	var b strings.Builder
	b.WriteString("Job execution statistics by stage:\n")

	// Longest stages first so the dominant cost is visible immediately.
	stages := make([]stageStat, len(stats.Stages))
	copy(stages, stats.Stages)
	sort.Slice(stages, func(i, j int) bool { return stages[i].TotalTimeMs > stages[j].TotalTimeMs })

	for _, stage := range stages {
		fmt.Fprintf(&b, "- stage %s: total time %dms, %d vertices\n",
			stage.Name, stage.TotalTimeMs, len(stage.Vertices))

		if len(stage.Vertices) == 0 {
			continue
		}

		var totalRows int64
		var maxRows int64
		var maxVertex string
		for _, v := range stage.Vertices {
			totalRows += v.RowCount
			if v.RowCount > maxRows {
				maxRows = v.RowCount
				maxVertex = v.Name
			}
		}
		avgRows := totalRows / int64(len(stage.Vertices))

		// A vertex processing >3x the stage average indicates data skew.
		if avgRows > 0 && maxRows > 3*avgRows {
			fmt.Fprintf(&b, "  SKEW INDICATOR: vertex %s processed %d rows vs stage average %d (%.1fx)\n",
				maxVertex, maxRows, avgRows, float64(maxRows)/float64(avgRows))
		}
	}

	return b.String(), nil
}

// ─── __Warnings__.xml ───

type warningsFile struct {
	XMLName  xml.Name     `xml:"Warnings"`
	Warnings []jobWarning `xml:"Warning"`
}

type jobWarning struct {
	Code    string `xml:"Code,attr"`
	Message string `xml:",chardata"`
}

func parseWarnings(name string, raw []byte) (string, error) {
	var file warningsFile
	if err := xml.Unmarshal(raw, &file); err != nil {
		return "", fmt.Errorf("parse %s: %w", name, err)
	}
	if len(file.Warnings) == 0 {
		return "No compiler or runtime warnings reported.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Job reported %d warning(s):\n", len(file.Warnings))
	for _, w := range file.Warnings {
		msg := strings.TrimSpace(w.Message)
		if w.Code != "" {
			fmt.Fprintf(&b, "- [%s] %s\n", w.Code, msg)
		} else {
			fmt.Fprintf(&b, "- %s\n", msg)
		}
	}
	return b.String(), nil
}

// ─── __DataMapDfg__.json ───

type dataFlowGraph struct {
	Nodes []dfgNode `json:"nodes"`
	Edges []dfgEdge `json:"edges"`
}

type dfgNode struct {
	ID       string `json:"id"`
	Operator string `json:"operator"`
}

type dfgEdge struct {
	From      string `json:"from"`
	To        string `json:"to"`
	DataBytes int64  `json:"dataBytes"`
}

// parseDataFlowGraph summarizes the job data flow graph: operator counts and
// the heaviest edges, where shuffle volume shows up.
func parseDataFlowGraph(name string, raw []byte) (string, error) {
	var graph dataFlowGraph
	if err := json.Unmarshal(raw, &graph); err != nil {
		return "", fmt.Errorf("parse %s: %w", name, err)
	}
	if len(graph.Nodes) == 0 {
		return "", fmt.Errorf("parse %s: no nodes", name)
	}

	operatorCounts := make(map[string]int)
	for _, n := range graph.Nodes {
		operatorCounts[n.Operator]++
	}
	operators := make([]string, 0, len(operatorCounts))
	for op := range operatorCounts {
		operators = append(operators, op)
	}
	sort.Strings(operators)

	var b strings.Builder
	fmt.Fprintf(&b, "Data flow graph: %d operators, %d edges\n", len(graph.Nodes), len(graph.Edges))
	b.WriteString("Operator breakdown:\n")
	for _, op := range operators {
		fmt.Fprintf(&b, "- %s: %d\n", op, operatorCounts[op])
	}

	if len(graph.Edges) > 0 {
		edges := make([]dfgEdge, len(graph.Edges))
		copy(edges, graph.Edges)
		sort.Slice(edges, func(i, j int) bool { return edges[i].DataBytes > edges[j].DataBytes })

		limit := 5
		if len(edges) < limit {
			limit = len(edges)
		}
		b.WriteString("Heaviest data transfers:\n")
		for _, e := range edges[:limit] {
			fmt.Fprintf(&b, "- %s -> %s: %d bytes\n", e.From, e.To, e.DataBytes)
		}
	}

	return b.String(), nil
}
