package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/psdstocks-cloud/creo-cache/internal/domain"
)

func toWarmRunModel(report domain.WarmReport) (warmRunModel, error) {
	runID, err := uuid.Parse(report.RunID)
	if err != nil {
		return warmRunModel{}, fmt.Errorf("run id %q: %w", report.RunID, domain.ErrInvalidInput)
	}
	succeeded, err := json.Marshal(nonNilStrings(report.Succeeded))
	if err != nil {
		return warmRunModel{}, err
	}
	failed, err := json.Marshal(nonNilFailures(report.Failed))
	if err != nil {
		return warmRunModel{}, err
	}
	return warmRunModel{
		RunID:      runID,
		Trigger:    report.Trigger,
		StartedAt:  report.StartedAt.UTC(),
		FinishedAt: report.FinishedAt.UTC(),
		Succeeded:  string(succeeded),
		Failed:     string(failed),
		Cancelled:  report.Cancelled,
	}, nil
}

func fromWarmRunModel(row warmRunModel) (domain.WarmReport, error) {
	out := domain.WarmReport{
		RunID:      row.RunID.String(),
		Trigger:    row.Trigger,
		StartedAt:  row.StartedAt.UTC(),
		FinishedAt: row.FinishedAt.UTC(),
		Cancelled:  row.Cancelled,
		Succeeded:  []string{},
		Failed:     []domain.JobFailure{},
	}
	if row.Succeeded != "" {
		if err := json.Unmarshal([]byte(row.Succeeded), &out.Succeeded); err != nil {
			return domain.WarmReport{}, fmt.Errorf("decode succeeded for run %s: %w", out.RunID, err)
		}
	}
	if row.Failed != "" {
		if err := json.Unmarshal([]byte(row.Failed), &out.Failed); err != nil {
			return domain.WarmReport{}, fmt.Errorf("decode failed for run %s: %w", out.RunID, err)
		}
	}
	return out, nil
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func nonNilFailures(v []domain.JobFailure) []domain.JobFailure {
	if v == nil {
		return []domain.JobFailure{}
	}
	return v
}
