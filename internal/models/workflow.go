package models

// Position is a node's 2D canvas coordinate in the nested graph format.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is one box of a workflow graph. Generators emit either the flat
// {label,x,y} shape or the nested {position,data} shape; both are kept.
// X and Y are nil for nested nodes; a flat node at 0 still carries its 0.
type Node struct {
	ID       string            `json:"id" yaml:"id"`
	Type     string            `json:"type,omitempty" yaml:"type,omitempty"`
	Label    string            `json:"label,omitempty" yaml:"label,omitempty"`
	X        *float64          `json:"x,omitempty" yaml:"x,omitempty"`
	Y        *float64          `json:"y,omitempty" yaml:"y,omitempty"`
	Position *Position         `json:"position,omitempty" yaml:"position,omitempty"`
	Data     map[string]any    `json:"data,omitempty" yaml:"data,omitempty"`
	Style    map[string]string `json:"style,omitempty" yaml:"style,omitempty"`
}

// At returns a flat node placed at (x, y).
func At(id, label string, x, y float64) Node {
	return Node{ID: id, Label: label, X: &x, Y: &y}
}

// Clone copies n without sharing coordinates, data or style with it.
func (n Node) Clone() Node {
	out := n
	if n.X != nil {
		x := *n.X
		out.X = &x
	}
	if n.Y != nil {
		y := *n.Y
		out.Y = &y
	}
	if n.Position != nil {
		pos := *n.Position
		out.Position = &pos
	}
	if n.Data != nil {
		out.Data = make(map[string]any, len(n.Data))
		for k, v := range n.Data {
			out.Data[k] = v
		}
	}
	if n.Style != nil {
		out.Style = make(map[string]string, len(n.Style))
		for k, v := range n.Style {
			out.Style[k] = v
		}
	}
	return out
}

// Edge connects two node ids.
type Edge struct {
	ID       string `json:"id" yaml:"id"`
	Source   string `json:"source" yaml:"source"`
	Target   string `json:"target" yaml:"target"`
	Animated bool   `json:"animated,omitempty" yaml:"animated,omitempty"`
	Label    string `json:"label,omitempty" yaml:"label,omitempty"`
}

// WorkflowGraph is the node/edge view of a generated architecture.
type WorkflowGraph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Plan is the output of the planning step.
type Plan struct {
	SQL         string `json:"sql"`
	Nodes       []Node `json:"nodes"`
	Edges       []Edge `json:"edges"`
	Description string `json:"description,omitempty"`
}

// Graph returns the plan's workflow graph.
func (p Plan) Graph() WorkflowGraph {
	return WorkflowGraph{Nodes: p.Nodes, Edges: p.Edges}
}

// File is a generated source file.
type File struct {
	Path    string `json:"path" validate:"required"`
	Content string `json:"content"`
}

// RepoRef identifies a Git repository. ID 0 means no repository was created.
type RepoRef struct {
	ID   int64  `json:"repoId"`
	URL  string `json:"repoUrl"`
	Name string `json:"repoName"`
}

// Deployment is the result of a deployment request.
type Deployment struct {
	ProjectID    string `json:"projectId"`
	ProjectName  string `json:"projectName"`
	DeployURL    string `json:"deployUrl"`
	DashboardURL string `json:"dashboardUrl"`
}
