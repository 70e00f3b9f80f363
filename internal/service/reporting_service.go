package service

import (
	"context"
	"fmt"
	"sort"

	"note-issuance-engine/internal/core/domain"
	"note-issuance-engine/internal/core/ports"
	"note-issuance-engine/pkg/apperror"
)

// reportingService implements ports.ReportingService.
type reportingService struct {
	seriesRepo     ports.SeriesRepository
	rewardRepo     ports.RewardRepository
	asset          ports.BackingAsset
	reserveAccount string
}

// NewReportingService creates a new reporting service.
func NewReportingService(repos ports.Repositories, asset ports.BackingAsset, reserveAccount string) ports.ReportingService {
	return &reportingService{
		seriesRepo:     repos.Series,
		rewardRepo:     repos.Rewards,
		asset:          asset,
		reserveAccount: reserveAccount,
	}
}

// SupplyReport aggregates series counters, reward supply and the reserve.
func (s *reportingService) SupplyReport(ctx context.Context) (*ports.SupplyReport, error) {
	series, err := s.seriesRepo.List(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list series: %w", err))
	}

	supply, err := s.rewardRepo.ListSupply(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list reward supply: %w", err))
	}

	settings, err := s.rewardRepo.GetSettings(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get reward settings: %w", err))
	}

	reserve, err := s.asset.BalanceOf(ctx, s.reserveAccount)
	if err != nil {
		return nil, apperror.ErrCollaborator("backing asset", err)
	}

	report := &ports.SupplyReport{
		Series:         make([]ports.SeriesSupply, 0, len(series)),
		RewardSupply:   make([]domain.RewardSupply, 0, len(supply)),
		ReserveBalance: reserve,
		RewardSettings: *settings,
	}
	for _, se := range series {
		report.Series = append(report.Series, ports.SeriesSupply{
			SeriesID:  se.ID,
			Minted:    se.Minted,
			MaxSupply: se.MaxSupply,
			Active:    se.Active,
		})
	}
	for _, sup := range supply {
		report.RewardSupply = append(report.RewardSupply, sup)
	}
	sort.Slice(report.RewardSupply, func(i, j int) bool {
		return report.RewardSupply[i].DenominationID < report.RewardSupply[j].DenominationID
	})

	return report, nil
}
