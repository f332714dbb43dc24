package dummydb

import (
	"context"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/applicant"
)

type applicantRepository struct {
	db *DB
}

var _ applicant.Repository = (*applicantRepository)(nil) // interface compliance check

func NewApplicantRepository(db *DB) applicant.Repository {
	return &applicantRepository{db: db}
}

func (repo *applicantRepository) CreateApplicant(_ context.Context, na applicant.NewApplicant, _ ...core.DBExecutor) (applicant.Applicant, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, a := range repo.db.data.applicants {
		if a.RegNumber == na.RegNumber && a.Year == na.Year {
			return applicant.Applicant{}, applicant.ErrDuplicate
		}
	}

	repo.db.data.lastAppID++
	app := na.Applicant
	app.ID = repo.db.data.lastAppID
	now := core.NowFunc().UTC()
	app.CreatedAt, app.UpdatedAt = now, now
	repo.db.data.applicants[app.ID] = app

	sec := na.Secondary
	sec.ApplicantID = app.ID
	repo.db.data.secondary[app.ID] = sec
	return app, nil
}

func (repo *applicantRepository) GetApplicant(_ context.Context, id int64, _ ...core.DBExecutor) (applicant.Applicant, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if app, ok := repo.db.data.applicants[id]; ok {
		return app, nil
	}
	return applicant.Applicant{}, applicant.ErrNotFound
}

func (repo *applicantRepository) GetSecondaryInfo(_ context.Context, applicantID int64, _ ...core.DBExecutor) (applicant.SecondaryInfo, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sec, ok := repo.db.data.secondary[applicantID]; ok {
		return sec, nil
	}
	return applicant.SecondaryInfo{}, applicant.ErrNotFound
}

func (repo *applicantRepository) CountByYear(_ context.Context, year int, _ ...core.DBExecutor) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	n := 0
	for _, a := range repo.db.data.applicants {
		if a.Year == year {
			n++
		}
	}
	return n, nil
}
