package jurisdiction

import (
	"fmt"
	"strings"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/admissions/core"
)

// Type is the level tag of a node in the jurisdiction tree.
type Type string

const (
	TypeState    Type = "STATE"
	TypeDivision Type = "DIVISION"
	TypeDistrict Type = "EDUCATION DISTRICT"
	TypeBlock    Type = "BLOCK"
	TypeCluster  Type = "CLUSTER"
)

const invalidLevel = -1

var levels = map[Type]int{
	TypeState:    0,
	TypeDivision: 1,
	TypeDistrict: 2,
	TypeBlock:    3,
	TypeCluster:  4,
}

// ParseType accepts any casing and surrounding whitespace.
func ParseType(s string) (Type, bool) {
	t := Type(strings.ToUpper(core.CleanString(s)))
	_, ok := levels[t]
	return t, ok
}

// Level returns the depth of the type in the tree (STATE is 0), or -1 if unknown.
func (t Type) Level() int {
	if lvl, ok := levels[t]; ok {
		return lvl
	}
	return invalidLevel
}

// Node is one row of the jurisdiction table.
type Node struct {
	Code       string      `db:"juris_code" json:"juris_code"`
	Name       string      `db:"juris_name" json:"juris_name"`
	Type       Type        `db:"juris_type" json:"juris_type"`
	ParentCode null.String `db:"parent_code" json:"parent_code"`
}

// Names holds free-text jurisdiction names as typed by a user or found in an upload.
type Names struct {
	State    string
	District string
	Block    string
}

func (n Names) Clean() Names {
	return Names{
		State:    core.CleanString(n.State),
		District: core.CleanString(n.District),
		Block:    core.CleanString(n.Block),
	}
}

// Key identifies the names regardless of casing or surrounding whitespace.
func (n Names) Key() string {
	return strings.Join([]string{
		core.CleanString(n.State, true),
		core.CleanString(n.District, true),
		core.CleanString(n.Block, true),
	}, "\x00")
}

// Chain is the result of resolving Names. Segments that did not match are null.
type Chain struct {
	StateCode    null.String `db:"state_code"`
	DivisionCode null.String `db:"division_code"`
	DistrictCode null.String `db:"district_code"`
	BlockCode    null.String `db:"block_code"`
}

// Level names used when reporting a failed resolution.
const (
	LevelState    = "state"
	LevelDistrict = "district"
	LevelBlock    = "block"
)

// Miss describes the first level of a Chain that failed to resolve.
type Miss struct {
	Level   string
	Message string
}

// Missing returns the first unresolved level of the chain, if any.
// A district is looked up under its state and a block under its district.
func (c Chain) Missing(names Names) (Miss, bool) {
	names = names.Clean()
	switch {
	case !c.StateCode.Valid:
		return Miss{LevelState, fmt.Sprintf("State '%s' not found", names.State)}, true
	case !c.DistrictCode.Valid:
		return Miss{LevelDistrict, fmt.Sprintf("District '%s' not found under state '%s'", names.District, names.State)}, true
	case !c.BlockCode.Valid:
		return Miss{LevelBlock, fmt.Sprintf("Block '%s' not found under district '%s'", names.Block, names.District)}, true
	}
	return Miss{}, false
}
