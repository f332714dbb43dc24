package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/shortlist"
)

type shortlistRepository struct {
	db *DB
}

var _ shortlist.Repository = (*shortlistRepository)(nil) // interface compliance check

func NewShortlistRepository(db *DB) shortlist.Repository {
	return &shortlistRepository{db: db}
}

func (repo *shortlistRepository) GetCriteria(_ context.Context, id int, _ ...core.DBExecutor) (shortlist.Criteria, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if c, ok := repo.db.data.criteria[id]; ok {
		return c, nil
	}
	return shortlist.Criteria{}, shortlist.ErrCriteriaNotFound
}

func (repo *shortlistRepository) ActiveClaims(_ context.Context, codes []string, _ ...core.DBExecutor) ([]shortlist.BlockClaim, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	wanted := make(map[string]bool, len(codes))
	for _, c := range codes {
		wanted[c] = true
	}

	var claims []shortlist.BlockClaim
	for _, b := range repo.db.data.batches {
		if b.Frozen {
			continue
		}
		for _, code := range b.BlockCodes {
			if wanted[code] {
				claims = append(claims, shortlist.BlockClaim{
					BatchID:   b.ID,
					BatchName: b.Name,
					BlockCode: code,
					BlockName: repo.db.data.nodes[code].Name,
				})
			}
		}
	}
	sort.Slice(claims, func(i, j int) bool {
		if claims[i].BlockName != claims[j].BlockName {
			return claims[i].BlockName < claims[j].BlockName
		}
		return claims[i].BatchID < claims[j].BatchID
	})
	return claims, nil
}

func (repo *shortlistRepository) CreateBatch(_ context.Context, batch shortlist.Batch, _ ...core.DBExecutor) (shortlist.Batch, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.data.lastBatch++
	batch.ID = repo.db.data.lastBatch
	batch.Frozen = false
	batch.BlockCodes = nil
	repo.db.data.batches[batch.ID] = batch
	return batch, nil
}

func (repo *shortlistRepository) LinkBlocks(_ context.Context, batchID int64, codes []string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	b, ok := repo.db.data.batches[batchID]
	if !ok {
		return shortlist.ErrBatchNotFound
	}
	b.BlockCodes = append(b.BlockCodes, codes...)
	sort.Strings(b.BlockCodes)
	repo.db.data.batches[batchID] = b
	return nil
}

func (repo *shortlistRepository) BlockScores(_ context.Context, scope shortlist.Scope, _ ...core.DBExecutor) ([]shortlist.Score, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var scores []shortlist.Score
	for _, a := range repo.db.data.applicants {
		if a.Year == scope.Year && a.StateCode == scope.StateCode &&
			a.DistrictCode == scope.DistrictCode && a.BlockCode == scope.BlockCode {
			scores = append(scores, shortlist.Score{ApplicantID: a.ID, GMAT: a.GMATScore, SAT: a.SATScore})
		}
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].ApplicantID < scores[j].ApplicantID })
	return scores, nil
}

func (repo *shortlistRepository) InsertSelections(_ context.Context, batchID int64, applicantIDs []int64, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.data.batches[batchID]; !ok {
		return shortlist.ErrBatchNotFound
	}
	repo.db.data.selections[batchID] = append(repo.db.data.selections[batchID], applicantIDs...)
	return nil
}

func (repo *shortlistRepository) CountShortlistedByBatch(_ context.Context, batchID int64, _ ...core.DBExecutor) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return len(repo.db.data.selections[batchID]), nil
}

func (repo *shortlistRepository) CountShortlistedInBlocks(_ context.Context, codes []string, year int, _ ...core.DBExecutor) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	inBlocks := make(map[string]bool, len(codes))
	for _, c := range codes {
		inBlocks[c] = true
	}
	counted := make(map[int64]bool)
	for _, ids := range repo.db.data.selections {
		for _, id := range ids {
			a := repo.db.data.applicants[id]
			if a.Year == year && inBlocks[a.BlockCode] {
				counted[id] = true
			}
		}
	}
	return len(counted), nil
}

func (repo *shortlistRepository) ListBatches(_ context.Context, year int, _ ...core.DBExecutor) ([]shortlist.Batch, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	batches := make([]shortlist.Batch, 0, len(repo.db.data.batches))
	for _, b := range repo.db.data.batches {
		if year == 0 || b.Year == year {
			batches = append(batches, copyBatch(b))
		}
	}
	sort.Slice(batches, func(i, j int) bool {
		if !batches[i].CreatedAt.Equal(batches[j].CreatedAt) {
			return batches[i].CreatedAt.After(batches[j].CreatedAt)
		}
		return batches[i].ID > batches[j].ID
	})
	return batches, nil
}

func copyBatch(b shortlist.Batch) shortlist.Batch {
	b.BlockCodes = append([]string{}, b.BlockCodes...)
	return b
}

func (repo *shortlistRepository) GetBatch(_ context.Context, id int64, _ ...core.DBExecutor) (shortlist.Batch, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if b, ok := repo.db.data.batches[id]; ok {
		return copyBatch(b), nil
	}
	return shortlist.Batch{}, shortlist.ErrBatchNotFound
}

func (repo *shortlistRepository) FreezeBatch(_ context.Context, id int64, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	b, ok := repo.db.data.batches[id]
	if !ok {
		return shortlist.ErrBatchNotFound
	}
	b.Frozen = true
	repo.db.data.batches[id] = b
	return nil
}

func (repo *shortlistRepository) DeleteBatch(_ context.Context, id int64, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	b, ok := repo.db.data.batches[id]
	if !ok || b.Frozen {
		return shortlist.ErrBatchNotFound
	}
	delete(repo.db.data.batches, id)
	delete(repo.db.data.selections, id)
	return nil
}

func (repo *shortlistRepository) ShortlistedApplicants(_ context.Context, batchID int64, _ ...core.DBExecutor) ([]shortlist.ShortlistedApplicant, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	ids := repo.db.data.selections[batchID]
	apps := make([]shortlist.ShortlistedApplicant, 0, len(ids))
	for _, id := range ids {
		a := repo.db.data.applicants[id]
		apps = append(apps, shortlist.ShortlistedApplicant{
			ApplicantID: a.ID,
			RegNumber:   a.RegNumber,
			Name:        a.Name,
			FatherName:  a.FatherName,
			Gender:      a.Gender,
			GMATScore:   a.GMATScore,
			SATScore:    a.SATScore,
			BlockCode:   a.BlockCode,
			BlockName:   repo.db.data.nodes[a.BlockCode].Name,
		})
	}
	sort.Slice(apps, func(i, j int) bool {
		if apps[i].BlockName != apps[j].BlockName {
			return apps[i].BlockName < apps[j].BlockName
		}
		return apps[i].ApplicantID < apps[j].ApplicantID
	})
	return apps, nil
}
