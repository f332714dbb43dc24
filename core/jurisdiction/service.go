package jurisdiction

import (
	"context"
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
)

type (
	Repository interface {
		// ResolveChain matches state, district and block names case-insensitively in one round trip.
		// Levels that do not match are returned as null segments.
		ResolveChain(ctx context.Context, names Names, exec ...core.DBExecutor) (Chain, error)
		// LockBlocks takes row locks on the given block codes until the enclosing transaction ends.
		LockBlocks(ctx context.Context, codes []string, exec ...core.DBExecutor) error
		GetNodes(ctx context.Context, codes []string, exec ...core.DBExecutor) ([]Node, error)
		UpsertNodes(ctx context.Context, nodes []Node, exec ...core.DBExecutor) error
	}

	Service struct {
		db   core.TxBeginner
		repo Repository
	}
)

func NewService(db core.TxBeginner, repo Repository) *Service {
	return &Service{db: db, repo: repo}
}

func (svc *Service) Resolve(ctx context.Context, names Names, exec ...core.DBExecutor) (Chain, error) {
	chain, err := svc.repo.ResolveChain(ctx, names.Clean(), exec...)
	if err != nil {
		return Chain{}, errors.Wrap(err, "resolving jurisdiction chain")
	}
	return chain, nil
}

// ImportNodes validates the type ordering of the nodes and upserts them in one transaction.
// Parents may be part of the import or already stored.
func (svc *Service) ImportNodes(ctx context.Context, nodes []Node) (int, error) {
	byCode := make(map[string]Node, len(nodes))
	for i, n := range nodes {
		n.Code = core.CleanString(n.Code)
		n.Name = core.CleanString(n.Name)
		n.ParentCode.String = core.CleanString(n.ParentCode.String)
		n.ParentCode.Valid = n.ParentCode.String != ""
		t, ok := ParseType(string(n.Type))
		if !ok {
			return 0, core.NewValidationError(fmt.Errorf("line %d: unknown jurisdiction type %q", i+1, n.Type))
		}
		n.Type = t
		if n.Code == "" || n.Name == "" {
			return 0, core.NewValidationError(fmt.Errorf("line %d: code and name are required", i+1))
		}
		byCode[n.Code] = n
		nodes[i] = n
	}

	var external []string
	for _, n := range nodes {
		if n.ParentCode.Valid {
			if _, ok := byCode[n.ParentCode.String]; !ok {
				external = append(external, n.ParentCode.String)
			}
		}
	}
	if len(external) > 0 {
		stored, err := svc.repo.GetNodes(ctx, external)
		if err != nil {
			return 0, errors.Wrap(err, "getting parent nodes")
		}
		for _, n := range stored {
			if _, ok := byCode[n.Code]; !ok {
				byCode[n.Code] = n
			}
		}
	}

	for _, n := range nodes {
		if err := checkParent(n, byCode); err != nil {
			return 0, core.NewValidationError(err)
		}
	}

	// parents first
	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].Type.Level() < nodes[j].Type.Level() })

	tx, err := svc.db.Begin(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "beginning transaction")
	}
	defer core.RollbackUnlessCommitted(tx)

	if err = svc.repo.UpsertNodes(ctx, nodes, tx); err != nil {
		return 0, errors.Wrap(err, "upserting nodes")
	}
	if err = tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "committing transaction")
	}
	return len(nodes), nil
}

func checkParent(n Node, byCode map[string]Node) error {
	if n.Type == TypeState {
		if n.ParentCode.Valid {
			return fmt.Errorf("%s: a state cannot have a parent", n.Code)
		}
		return nil
	}
	if !n.ParentCode.Valid {
		return fmt.Errorf("%s: %s requires a parent", n.Code, n.Type)
	}
	parent, ok := byCode[n.ParentCode.String]
	if !ok {
		return fmt.Errorf("%s: parent %s not found", n.Code, n.ParentCode.String)
	}
	if parent.Type.Level() != n.Type.Level()-1 {
		return fmt.Errorf("%s: %s cannot be a child of %s", n.Code, n.Type, parent.Type)
	}
	return nil
}
