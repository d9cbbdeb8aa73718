// Package hierarchy builds drill-down trees over transaction records and
// consolidates cascade metrics bottom-up so that every parent equals the sum
// of its children.
package hierarchy

import (
	"slices"
	"strings"

	"commercial-analytics/internal/abc"
	"commercial-analytics/internal/cascade"
	"commercial-analytics/internal/fields"
	"commercial-analytics/internal/models"
)

// Unspecified labels records with no value for a dimension.
const Unspecified = "Unspecified"

const idSeparator = "/"

// idEscaper keeps node IDs reversible: "%" is escaped first so that a key
// holding a literal "%2F" cannot collide with one holding the separator.
var idEscaper = strings.NewReplacer("%", "%25", idSeparator, "%2F")

// Level describes one tree level. Key is grouped on; Label, when set, is
// displayed instead and may repeat or be missing across keys.
type Level struct {
	Key   models.LogicalField
	Label models.LogicalField
}

// Levels turns a plain dimension path into levels keyed and labelled by the
// same field.
func Levels(path ...models.LogicalField) []Level {
	out := make([]Level, len(path))
	for i, f := range path {
		out[i] = Level{Key: f}
	}
	return out
}

// Options tweaks tree construction.
type Options struct {
	// UnspecifiedLabel replaces Unspecified when non-empty.
	UnspecifiedLabel string
}

// BuildTree groups records along dimensionPath and returns the top level of
// the tree. Every record lands on exactly one root-to-leaf path.
func BuildTree(records []models.Record, dimensionPath []models.LogicalField, m models.Mapping) []*models.HierarchyNode {
	return BuildLevels(records, Levels(dimensionPath...), m, Options{})
}

// BuildCustomerTree keys the top level by customer identity (tax id) and
// labels it with the customer name, then continues along rest.
func BuildCustomerTree(records []models.Record, rest []models.LogicalField, m models.Mapping) []*models.HierarchyNode {
	levels := append([]Level{{Key: models.FieldCustomerKey, Label: models.FieldCustomerName}}, Levels(rest...)...)
	return BuildLevels(records, levels, m, Options{})
}

// builder is the mutable grouping state of the first pass.
type builder struct {
	node     *models.HierarchyNode
	labelled bool
	children map[string]*builder
	order    []*builder
}

func (b *builder) child(key string, create func() *models.HierarchyNode) *builder {
	if c, ok := b.children[key]; ok {
		return c
	}
	c := &builder{node: create(), children: make(map[string]*builder)}
	b.children[key] = c
	b.order = append(b.order, c)
	return c
}

// BuildLevels is BuildTree with explicit identity/label levels.
func BuildLevels(records []models.Record, levels []Level, m models.Mapping, opts Options) []*models.HierarchyNode {
	if len(records) == 0 || len(levels) == 0 {
		return []*models.HierarchyNode{}
	}
	unspecified := opts.UnspecifiedLabel
	if unspecified == "" {
		unspecified = Unspecified
	}

	root := &builder{node: &models.HierarchyNode{}, children: make(map[string]*builder)}
	for _, rec := range records {
		cur := root
		for depth, lvl := range levels {
			key, label, labelled := resolveLevel(rec, lvl, m, unspecified)
			parentID := cur.node.ID
			next := cur.child(key, func() *models.HierarchyNode {
				n := &models.HierarchyNode{
					ID:    joinID(parentID, key),
					Label: label,
					Field: lvl.Key,
					Level: depth,
				}
				if lvl.Label != "" && key != unspecified {
					n.Identity = key
				}
				return n
			})
			// first real display label wins
			if labelled && !next.labelled {
				next.node.Label = label
				next.labelled = true
			}
			cur = next
		}
		cur.node.Records = append(cur.node.Records, rec)
	}

	return consolidate(root, m)
}

func resolveLevel(rec models.Record, lvl Level, m models.Mapping, unspecified string) (key, label string, labelled bool) {
	if lvl.Key == models.FieldCustomerKey {
		k, _, ok := fields.CustomerIdentity(rec, m)
		if !ok {
			return unspecified, unspecified, false
		}
		key = k
	} else {
		key = fields.Text(rec, lvl.Key, m, unspecified)
		if key == unspecified {
			return key, key, false
		}
	}

	if lvl.Label == "" {
		return key, key, true
	}
	if l := fields.Text(rec, lvl.Label, m, ""); l != "" {
		return key, l, true
	}
	if lvl.Key == models.FieldCustomerKey {
		return key, fields.Text(rec, models.FieldCustomerKey, m, key), false
	}
	return key, key, false
}

func joinID(parent, key string) string {
	key = idEscaper.Replace(key)
	if parent == "" {
		return key
	}
	return parent + idSeparator + key
}

// consolidate is the post-order second pass: leaves evaluate their own
// records, internal nodes sum their children.
func consolidate(b *builder, m models.Mapping) []*models.HierarchyNode {
	nodes := make([]*models.HierarchyNode, 0, len(b.order))
	for _, c := range b.order {
		n := c.node
		if len(c.order) == 0 {
			s := cascade.Many(n.Records, m)
			n.Cascade = s.Cascade
			n.TransactionCount = s.Count + s.ErrorCount
			n.ErrorCount = s.ErrorCount
		} else {
			n.Children = consolidate(c, m)
			var total models.Cascade
			for _, child := range n.Children {
				total.Add(child.Cascade)
				n.TransactionCount += child.TransactionCount
				n.ErrorCount += child.ErrorCount
			}
			total.Finalize()
			n.Cascade = total
		}
		nodes = append(nodes, n)
	}
	sortByRevenue(nodes)
	return nodes
}

func sortByRevenue(nodes []*models.HierarchyNode) {
	slices.SortStableFunc(nodes, func(a, b *models.HierarchyNode) int {
		switch {
		case a.Cascade.GrossRevenue > b.Cascade.GrossRevenue:
			return -1
		case a.Cascade.GrossRevenue < b.Cascade.GrossRevenue:
			return 1
		}
		return 0
	})
}

// Total consolidates a tree level into one cascade.
func Total(nodes []*models.HierarchyNode) models.Cascade {
	var total models.Cascade
	for _, n := range nodes {
		total.Add(n.Cascade)
	}
	total.Finalize()
	return total
}

// Walk visits nodes depth-first, parents before children. Returning false
// from fn skips the node's subtree.
func Walk(nodes []*models.HierarchyNode, fn func(*models.HierarchyNode) bool) {
	for _, n := range nodes {
		if fn(n) {
			Walk(n.Children, fn)
		}
	}
}

// Find returns the node with the given id.
func Find(nodes []*models.HierarchyNode, id string) (*models.HierarchyNode, bool) {
	var found *models.HierarchyNode
	Walk(nodes, func(n *models.HierarchyNode) bool {
		if found != nil {
			return false
		}
		if n.ID == id {
			found = n
			return false
		}
		return strings.HasPrefix(id, n.ID+idSeparator)
	})
	return found, found != nil
}

// Items converts a tree level into ABC input using metric as the value.
func Items(nodes []*models.HierarchyNode, metric func(models.Cascade) float64) []abc.Item {
	if metric == nil {
		metric = GrossRevenue
	}
	out := make([]abc.Item, 0, len(nodes))
	for _, n := range nodes {
		key := n.Identity
		if key == "" {
			key = n.ID
		}
		out = append(out, abc.Item{Key: key, Label: n.Label, Value: metric(n.Cascade)})
	}
	return out
}

// GrossRevenue is the default ABC metric.
func GrossRevenue(c models.Cascade) float64 { return c.GrossRevenue }
