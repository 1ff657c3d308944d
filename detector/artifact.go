package detector

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
)

// Artifact is a decoded model file.
type Artifact struct {
	Type          string
	Classes       []int
	PhishingClass int
	FeatureNames  []string
	NFeatures     int
	Model         Model
}

type artifactFile struct {
	Type          string      `json:"type"`
	Classes       []int       `json:"classes"`
	PhishingClass *int        `json:"phishing_class"`
	FeatureNames  []string    `json:"feature_names"`
	NFeatures     int         `json:"n_features"`
	Coef          [][]float64 `json:"coef"`
	Intercept     []float64   `json:"intercept"`
	Trees         []treeFile  `json:"trees"`
}

type treeFile struct {
	Nodes []treeNode `json:"nodes"`
}

type treeNode struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value"`
}

// DecodeArtifact parses a JSON model artifact of type "logistic", "linear"
// or "forest".
func DecodeArtifact(data []byte) (*Artifact, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var f artifactFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if len(f.Classes) < 2 {
		return nil, fmt.Errorf("artifact needs at least 2 classes, got %d", len(f.Classes))
	}
	seen := make(map[int]struct{}, len(f.Classes))
	for _, c := range f.Classes {
		if _, dup := seen[c]; dup {
			return nil, fmt.Errorf("duplicate class %d", c)
		}
		seen[c] = struct{}{}
	}

	art := &Artifact{
		Type:         f.Type,
		Classes:      f.Classes,
		FeatureNames: f.FeatureNames,
		NFeatures:    f.NFeatures,
	}
	if f.PhishingClass == nil {
		return nil, fmt.Errorf("artifact missing phishing_class")
	}
	if _, ok := seen[*f.PhishingClass]; !ok {
		return nil, fmt.Errorf("phishing_class %d is not one of %v", *f.PhishingClass, f.Classes)
	}
	art.PhishingClass = *f.PhishingClass

	switch f.Type {
	case "logistic", "linear":
		lin, err := newLinear(f.Coef, f.Intercept, f.Classes)
		if err != nil {
			return nil, err
		}
		if art.NFeatures == 0 {
			art.NFeatures = lin.width
		} else if art.NFeatures != lin.width {
			return nil, fmt.Errorf("n_features %d does not match coef width %d", art.NFeatures, lin.width)
		}
		if f.Type == "logistic" {
			art.Model = &logisticModel{lin}
		} else {
			art.Model = lin
		}
	case "forest":
		if art.NFeatures <= 0 {
			return nil, fmt.Errorf("forest artifact requires n_features")
		}
		forest, err := newForest(f.Trees, f.Classes, art.NFeatures)
		if err != nil {
			return nil, err
		}
		art.Model = forest
	case "":
		return nil, fmt.Errorf("artifact missing type")
	default:
		return nil, fmt.Errorf("unsupported model type %q", f.Type)
	}

	return art, nil
}

func (a *Artifact) checkSchema(schema []string) error {
	if len(a.FeatureNames) > 0 && !slices.Equal(a.FeatureNames, schema) {
		return fmt.Errorf("artifact feature_names differ from the %d-feature schema", len(schema))
	}
	if a.NFeatures > 0 && a.NFeatures != len(schema) {
		return fmt.Errorf("artifact expects %d features, schema has %d", a.NFeatures, len(schema))
	}
	return nil
}

// linearModel is a decision-function classifier without probability output.
type linearModel struct {
	coef      [][]float64
	intercept []float64
	classes   []int
	width     int
}

func newLinear(coef [][]float64, intercept []float64, classes []int) (*linearModel, error) {
	rows := len(classes)
	if len(classes) == 2 {
		rows = 1
	}
	if len(coef) != rows {
		return nil, fmt.Errorf("coef has %d rows, want %d for %d classes", len(coef), rows, len(classes))
	}
	if len(intercept) != rows {
		return nil, fmt.Errorf("intercept has %d entries, want %d", len(intercept), rows)
	}
	width := len(coef[0])
	if width == 0 {
		return nil, fmt.Errorf("coef rows are empty")
	}
	for i, row := range coef {
		if len(row) != width {
			return nil, fmt.Errorf("coef row %d has %d entries, want %d", i, len(row), width)
		}
	}
	return &linearModel{coef: coef, intercept: intercept, classes: classes, width: width}, nil
}

func (m *linearModel) decision(x []float64) ([]float64, error) {
	if len(x) != m.width {
		return nil, fmt.Errorf("input has %d features, model expects %d", len(x), m.width)
	}
	out := make([]float64, len(m.coef))
	for r, row := range m.coef {
		s := m.intercept[r]
		for i, w := range row {
			s += w * x[i]
		}
		out[r] = s
	}
	return out, nil
}

func (m *linearModel) Predict(x []float64) (int, error) {
	d, err := m.decision(x)
	if err != nil {
		return 0, err
	}
	if len(d) == 1 {
		if d[0] > 0 {
			return m.classes[1], nil
		}
		return m.classes[0], nil
	}
	return m.classes[argmax(d)], nil
}

// logisticModel adds sigmoid/softmax probabilities to a linear model.
type logisticModel struct {
	*linearModel
}

func (m *logisticModel) Classes() []int {
	return m.classes
}

func (m *logisticModel) PredictProba(x []float64) ([]float64, error) {
	d, err := m.decision(x)
	if err != nil {
		return nil, err
	}
	if len(d) == 1 {
		p := 1 / (1 + math.Exp(-d[0]))
		return []float64{1 - p, p}, nil
	}
	peak := d[argmax(d)]
	sum := 0.0
	out := make([]float64, len(d))
	for i, v := range d {
		out[i] = math.Exp(v - peak)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out, nil
}

func (m *logisticModel) Predict(x []float64) (int, error) {
	p, err := m.PredictProba(x)
	if err != nil {
		return 0, err
	}
	return m.classes[argmax(p)], nil
}

// forestModel averages the normalized leaf distributions of its trees.
type forestModel struct {
	trees   [][]treeNode
	classes []int
	width   int
}

func newForest(trees []treeFile, classes []int, width int) (*forestModel, error) {
	if len(trees) == 0 {
		return nil, fmt.Errorf("forest has no trees")
	}
	out := make([][]treeNode, len(trees))
	for t, tree := range trees {
		n := len(tree.Nodes)
		if n == 0 {
			return nil, fmt.Errorf("tree %d has no nodes", t)
		}
		for i, node := range tree.Nodes {
			if node.Left < 0 {
				if len(node.Value) != len(classes) {
					return nil, fmt.Errorf("tree %d leaf %d has %d values, want %d", t, i, len(node.Value), len(classes))
				}
				continue
			}
			if node.Left <= i || node.Left >= n || node.Right <= i || node.Right >= n {
				return nil, fmt.Errorf("tree %d node %d has out-of-order children", t, i)
			}
			if node.Feature < 0 || node.Feature >= width {
				return nil, fmt.Errorf("tree %d node %d splits on feature %d of %d", t, i, node.Feature, width)
			}
		}
		out[t] = tree.Nodes
	}
	return &forestModel{trees: out, classes: classes, width: width}, nil
}

func (m *forestModel) Classes() []int {
	return m.classes
}

func (m *forestModel) PredictProba(x []float64) ([]float64, error) {
	if len(x) != m.width {
		return nil, fmt.Errorf("input has %d features, model expects %d", len(x), m.width)
	}
	out := make([]float64, len(m.classes))
	for _, nodes := range m.trees {
		i := 0
		for nodes[i].Left >= 0 {
			if x[nodes[i].Feature] <= nodes[i].Threshold {
				i = nodes[i].Left
			} else {
				i = nodes[i].Right
			}
		}
		leaf := nodes[i].Value
		total := 0.0
		for _, v := range leaf {
			total += v
		}
		if total <= 0 {
			return nil, fmt.Errorf("leaf with non-positive weight")
		}
		for c, v := range leaf {
			out[c] += v / total
		}
	}
	for c := range out {
		out[c] /= float64(len(m.trees))
	}
	return out, nil
}

func (m *forestModel) Predict(x []float64) (int, error) {
	p, err := m.PredictProba(x)
	if err != nil {
		return 0, err
	}
	return m.classes[argmax(p)], nil
}

func argmax(v []float64) int {
	best := 0
	for i := range v {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
