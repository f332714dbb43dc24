package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/jurisdiction"
)

type jurisdictionRepository struct {
	db *DB
}

var _ jurisdiction.Repository = (*jurisdictionRepository)(nil) // interface compliance check

func NewJurisdictionRepository(db *DB) jurisdiction.Repository {
	return &jurisdictionRepository{db: db}
}

// children returns the nodes of type t under parent, ordered by code. An empty parent matches roots.
func (repo *jurisdictionRepository) children(parent string, t jurisdiction.Type) []jurisdiction.Node {
	var nodes []jurisdiction.Node
	for _, n := range repo.db.data.nodes {
		if n.Type == t && n.ParentCode.String == parent {
			nodes = append(nodes, n)
		}
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Code < nodes[j].Code })
	return nodes
}

func sameName(a, b string) bool {
	return strings.EqualFold(core.CleanString(a), core.CleanString(b))
}

func (repo *jurisdictionRepository) ResolveChain(_ context.Context, names jurisdiction.Names, _ ...core.DBExecutor) (jurisdiction.Chain, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var best jurisdiction.Chain
	depth := func(c jurisdiction.Chain) int {
		switch {
		case c.BlockCode.Valid:
			return 3
		case c.DistrictCode.Valid:
			return 2
		case c.StateCode.Valid:
			return 1
		}
		return 0
	}

	for _, s := range repo.children("", jurisdiction.TypeState) {
		if !sameName(s.Name, names.State) {
			continue
		}
		chain := jurisdiction.Chain{StateCode: null.StringFrom(s.Code)}
		if depth(chain) > depth(best) {
			best = chain
		}
		for _, dv := range repo.children(s.Code, jurisdiction.TypeDivision) {
			for _, d := range repo.children(dv.Code, jurisdiction.TypeDistrict) {
				if !sameName(d.Name, names.District) {
					continue
				}
				chain := jurisdiction.Chain{
					StateCode:    null.StringFrom(s.Code),
					DivisionCode: null.StringFrom(dv.Code),
					DistrictCode: null.StringFrom(d.Code),
				}
				if depth(chain) > depth(best) {
					best = chain
				}
				for _, b := range repo.children(d.Code, jurisdiction.TypeBlock) {
					if sameName(b.Name, names.Block) {
						chain.BlockCode = null.StringFrom(b.Code)
						return chain, nil
					}
				}
			}
		}
	}
	return best, nil
}

// LockBlocks is a no-op: dummy transactions are already serialized.
func (repo *jurisdictionRepository) LockBlocks(context.Context, []string, ...core.DBExecutor) error {
	return nil
}

func (repo *jurisdictionRepository) GetNodes(_ context.Context, codes []string, _ ...core.DBExecutor) ([]jurisdiction.Node, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var nodes []jurisdiction.Node
	for _, code := range codes {
		if n, ok := repo.db.data.nodes[code]; ok {
			nodes = append(nodes, n)
		}
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Code < nodes[j].Code })
	return nodes, nil
}

func (repo *jurisdictionRepository) UpsertNodes(_ context.Context, nodes []jurisdiction.Node, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, n := range nodes {
		repo.db.data.nodes[n.Code] = n
	}
	return nil
}
