package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/jurisdiction"
)

// The division level sits between a state and its districts but is never named by users,
// so any division of the state is accepted. Rows resolving more levels sort first.
const resolveChainQuery = `
SELECT s.juris_code AS state_code, dv.juris_code AS division_code, d.juris_code AS district_code, b.juris_code AS block_code
FROM (SELECT 1) AS input
	LEFT JOIN jurisdiction s
		ON s.juris_type = 'STATE' AND lower(trim(s.juris_name)) = lower(trim($1))
	LEFT JOIN jurisdiction dv
		ON dv.parent_code = s.juris_code AND dv.juris_type = 'DIVISION'
	LEFT JOIN jurisdiction d
		ON d.parent_code = dv.juris_code AND d.juris_type = 'EDUCATION DISTRICT' AND lower(trim(d.juris_name)) = lower(trim($2))
	LEFT JOIN jurisdiction b
		ON b.parent_code = d.juris_code AND b.juris_type = 'BLOCK' AND lower(trim(b.juris_name)) = lower(trim($3))
ORDER BY b.juris_code IS NULL, d.juris_code IS NULL, s.juris_code IS NULL, b.juris_code, d.juris_code
LIMIT 1`

type jurisdictionRepository struct {
	repository
}

var _ jurisdiction.Repository = (*jurisdictionRepository)(nil) // interface compliance check

func NewJurisdictionRepository(db *sqlx.DB) *jurisdictionRepository {
	return &jurisdictionRepository{repository{db: db}}
}

func (repo jurisdictionRepository) ResolveChain(ctx context.Context, names jurisdiction.Names, exec ...core.DBExecutor) (jurisdiction.Chain, error) {
	ext, err := repo.getExec(exec)
	if err != nil {
		return jurisdiction.Chain{}, err
	}
	var chain jurisdiction.Chain
	if err = sqlx.GetContext(ctx, ext, &chain, resolveChainQuery, names.State, names.District, names.Block); err != nil {
		return jurisdiction.Chain{}, errors.Wrap(err, "resolving chain")
	}
	return chain, nil
}

func (repo jurisdictionRepository) LockBlocks(ctx context.Context, codes []string, exec ...core.DBExecutor) error {
	if len(codes) == 0 {
		return nil
	}
	ext, err := repo.getExec(exec)
	if err != nil {
		return err
	}
	var locked []string
	q := `SELECT juris_code FROM jurisdiction WHERE juris_code = ANY($1) AND juris_type = 'BLOCK' ORDER BY juris_code FOR NO KEY UPDATE`
	if err = sqlx.SelectContext(ctx, ext, &locked, q, pq.Array(codes)); err != nil {
		return errors.Wrap(err, "locking blocks")
	}
	return nil
}

func (repo jurisdictionRepository) GetNodes(ctx context.Context, codes []string, exec ...core.DBExecutor) ([]jurisdiction.Node, error) {
	ext, err := repo.getExec(exec)
	if err != nil {
		return nil, err
	}
	var nodes []jurisdiction.Node
	q := `SELECT juris_code, juris_name, juris_type, parent_code FROM jurisdiction WHERE juris_code = ANY($1) ORDER BY juris_code`
	if err = sqlx.SelectContext(ctx, ext, &nodes, q, pq.Array(codes)); err != nil {
		return nil, errors.Wrap(err, "selecting nodes")
	}
	return nodes, nil
}

func (repo jurisdictionRepository) UpsertNodes(ctx context.Context, nodes []jurisdiction.Node, exec ...core.DBExecutor) error {
	ext, err := repo.getExec(exec)
	if err != nil {
		return err
	}
	q := `
INSERT INTO jurisdiction (juris_code, juris_name, juris_type, parent_code)
VALUES (:juris_code, :juris_name, :juris_type, :parent_code)
ON CONFLICT (juris_code) DO UPDATE
	SET juris_name = EXCLUDED.juris_name, juris_type = EXCLUDED.juris_type, parent_code = EXCLUDED.parent_code`
	for _, n := range nodes {
		if _, err = sqlx.NamedExecContext(ctx, ext, q, n); err != nil {
			return errors.Wrapf(err, "upserting node %s", n.Code)
		}
	}
	return nil
}
