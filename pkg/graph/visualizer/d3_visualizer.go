package visualizer

import (
	"bytes"
	"encoding/json"
	"html/template"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/bungolab/bungograph/pkg/graph"
)

// The HTML template for D3.js visualization
const d3Template = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>Work Graph</title>
    <script src="https://d3js.org/d3.v7.min.js"></script>
    <style>
        body {
            margin: 0;
            font-family: Arial, sans-serif;
        }
        #graph {
            width: 100%;
            height: 100vh;
            background-color: #fafafa;
        }
        .node {
            stroke: #fff;
            stroke-width: 1.5px;
        }
        .link {
            stroke: #999;
            stroke-opacity: 0.6;
        }
        .node-label {
            font-size: 10px;
            pointer-events: none;
        }
        .controls {
            position: absolute;
            top: 10px;
            left: 10px;
            background-color: rgba(255,255,255,0.85);
            padding: 10px;
            border-radius: 5px;
            box-shadow: 0 0 10px rgba(0,0,0,0.1);
        }
    </style>
</head>
<body>
    <div id="graph"></div>
    <div class="controls">
        <h3>Work Graph</h3>
        <p>Fingerprint: <code>{{.Fingerprint}}</code></p>
        <p>Nodes: {{.NodeCount}}, Edges: {{.EdgeCount}}, Confidence: {{.Confidence}}</p>
        <div>
            <label for="node-type-filter">Filter by node type:</label>
            <select id="node-type-filter">
                <option value="all">All Types</option>
            </select>
        </div>
    </div>

    <script>
        const graphData = {{.GraphData}};

        // Fixed palette keyed by node type so re-renders stay comparable.
        const typeColors = {
            "Work": "#1f77b4",
            "Segment": "#ff7f0e",
            "Sentence": "#2ca02c",
            "Entity": "#d62728",
            "Category": "#9467bd"
        };
        const nodeRadius = {
            "Work": 14,
            "Segment": 10,
            "Sentence": 6,
            "Entity": 8,
            "Category": 10
        };

        const simulation = d3.forceSimulation(graphData.nodes)
            .force("link", d3.forceLink(graphData.edges)
                .id(d => d.id)
                .distance(d => d.type === "MENTIONS" ? 60 : 100))
            .force("charge", d3.forceManyBody().strength(-250))
            .force("center", d3.forceCenter(window.innerWidth / 2, window.innerHeight / 2));

        const svg = d3.select("#graph")
            .append("svg")
            .attr("width", "100%")
            .attr("height", "100%")
            .call(d3.zoom().on("zoom", (event) => {
                g.attr("transform", event.transform);
            }));

        const g = svg.append("g");

        const nodeTypes = [...new Set(graphData.nodes.map(node => node.type))];
        nodeTypes.forEach(type => {
            d3.select("#node-type-filter")
                .append("option")
                .attr("value", type)
                .text(type);
        });

        const link = g.append("g")
            .selectAll("line")
            .data(graphData.edges)
            .enter()
            .append("line")
            .attr("class", "link")
            .attr("stroke-width", d => Math.sqrt(Math.max(d.weight, 0.1)) * 2);

        const node = g.append("g")
            .selectAll("circle")
            .data(graphData.nodes)
            .enter()
            .append("circle")
            .attr("class", "node")
            .attr("r", d => nodeRadius[d.type] || 8)
            .attr("fill", d => typeColors[d.type] || "#7f7f7f")
            .call(d3.drag()
                .on("start", dragstarted)
                .on("drag", dragged)
                .on("end", dragended));

        const label = g.append("g")
            .selectAll("text")
            .data(graphData.nodes)
            .enter()
            .append("text")
            .attr("class", "node-label")
            .attr("dx", 12)
            .attr("dy", ".35em")
            .text(d => d.label);

        node.append("title")
            .text(d => d.label + " (" + d.type + ")");

        link.append("title")
            .text(d => d.type);

        simulation.on("tick", () => {
            link
                .attr("x1", d => d.source.x)
                .attr("y1", d => d.source.y)
                .attr("x2", d => d.target.x)
                .attr("y2", d => d.target.y);

            node
                .attr("cx", d => d.x)
                .attr("cy", d => d.y);

            label
                .attr("x", d => d.x)
                .attr("y", d => d.y);
        });

        d3.select("#node-type-filter").on("change", function() {
            const selectedType = this.value;

            if (selectedType === "all") {
                node.style("visibility", "visible");
                link.style("visibility", "visible");
                label.style("visibility", "visible");
                return;
            }

            node.style("visibility", d => d.type === selectedType ? "visible" : "hidden");
            label.style("visibility", d => d.type === selectedType ? "visible" : "hidden");
            link.style("visibility", d => {
                const sourceVisible = d.source.type === selectedType;
                const targetVisible = d.target.type === selectedType;
                return sourceVisible || targetVisible ? "visible" : "hidden";
            });
        });

        function dragstarted(event, d) {
            if (!event.active) simulation.alphaTarget(0.3).restart();
            d.fx = d.x;
            d.fy = d.y;
        }

        function dragged(event, d) {
            d.fx = event.x;
            d.fy = event.y;
        }

        function dragended(event, d) {
            if (!event.active) simulation.alphaTarget(0);
            d.fx = null;
            d.fy = null;
        }
    </script>
</body>
</html>
`

// D3Visualizer renders an extracted work graph as a self-contained HTML page.
type D3Visualizer struct {
	outputPath string
}

// NewD3Visualizer creates a visualizer writing to outputPath.
func NewD3Visualizer(outputPath string) *D3Visualizer {
	return &D3Visualizer{
		outputPath: outputPath,
	}
}

// Visualize generates the HTML visualization for one graph.
func (v *D3Visualizer) Visualize(g *graph.GraphData) error {
	dir := filepath.Dir(v.outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "creating visualization directory")
	}

	graphData, err := json.Marshal(g)
	if err != nil {
		return errors.Wrap(err, "encoding graph for template")
	}

	tmpl, err := template.New("d3").Parse(d3Template)
	if err != nil {
		return errors.Wrap(err, "parsing visualization template")
	}

	data := struct {
		GraphData   template.JS
		Fingerprint string
		Confidence  float64
		NodeCount   int
		EdgeCount   int
	}{
		GraphData:   template.JS(graphData),
		Fingerprint: g.Header.Fingerprint,
		Confidence:  g.Header.Confidence,
		NodeCount:   len(g.Nodes),
		EdgeCount:   len(g.Edges),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return errors.Wrap(err, "rendering visualization")
	}

	return os.WriteFile(v.outputPath, buf.Bytes(), 0644)
}
