// Package regulatory implements the regulatory constraints collaborator
// (§6): a static map (from_jurisdiction, to_jurisdiction, segment_class) ->
// allowed | prohibited, loaded once at init.
package regulatory

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/PaesslerAG/jsonpath"
)

// Rule names one prohibited corridor/segment-class combination. An absent
// combination is implicitly allowed (§4.3.1: "for each ... listed as
// prohibited ... the edge is rejected" — the list is a denylist, not an
// allowlist).
type Rule struct {
	FromJurisdiction string `json:"from_jurisdiction"`
	ToJurisdiction   string `json:"to_jurisdiction"`
	SegmentClass     string `json:"segment_class"`
}

func (r Rule) key() string {
	return r.FromJurisdiction + "|" + r.ToJurisdiction + "|" + r.SegmentClass
}

// Document is the on-disk shape: a flat prohibited list plus an arbitrary
// nested "constraints" document queryable via jsonpath for provider-scoped
// detail beyond the flat corridor rules (e.g. per-provider notional caps by
// jurisdiction).
type Document struct {
	Prohibited  []Rule      `json:"prohibited"`
	Constraints interface{} `json:"constraints"`
}

// Table is the loaded, queryable regulatory constraint set.
type Table struct {
	prohibited map[string]struct{}
	raw        interface{}
}

// Load reads and parses a regulatory constraints document from path.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read regulatory document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse regulatory document: %w", err)
	}
	return NewTable(doc), nil
}

// NewTable builds a Table from an already-parsed Document.
func NewTable(doc Document) *Table {
	prohibited := make(map[string]struct{}, len(doc.Prohibited))
	for _, r := range doc.Prohibited {
		prohibited[r.key()] = struct{}{}
	}
	return &Table{prohibited: prohibited, raw: doc.Constraints}
}

// Empty builds a Table with no prohibitions, for tests and default configs.
func Empty() *Table {
	return &Table{prohibited: map[string]struct{}{}}
}

// Allowed reports whether a corridor/segment-class combination is
// permitted. Unknown combinations are allowed by default (denylist
// semantics).
func (t *Table) Allowed(fromJurisdiction, toJurisdiction, segmentClass string) bool {
	if t == nil {
		return true
	}
	_, prohibited := t.prohibited[Rule{
		FromJurisdiction: fromJurisdiction,
		ToJurisdiction:   toJurisdiction,
		SegmentClass:     segmentClass,
	}.key()]
	return !prohibited
}

// Query runs a jsonpath expression against the nested constraints document,
// for provider-scoped detail beyond the flat prohibited list.
func (t *Table) Query(expr string) (interface{}, error) {
	if t == nil || t.raw == nil {
		return nil, fmt.Errorf("no constraints document loaded")
	}
	return jsonpath.Get(expr, t.raw)
}
