package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/internal/pdf"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/internal/repository"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/pkg/model"
	"go.uber.org/zap"
)

// ReportService produces periodic adherence reports
type ReportService struct {
	users       UserStore
	medications MedicationStore
	doses       DoseStore
	adherence   *AdherenceService
	reports     ReportStore
	storage     ReportStorage
	renderer    ReportRenderer
	dispatcher  *Dispatcher
	escalation  *EscalationService
	events      EventPublisher
	timezones   *TimezoneResolver
	periodDays  int
	now         func() time.Time
	logger      *zap.Logger
}

// ReportDeps groups the collaborators of ReportService
type ReportDeps struct {
	Users       UserStore
	Medications MedicationStore
	Doses       DoseStore
	Adherence   *AdherenceService
	Reports     ReportStore
	Storage     ReportStorage
	Renderer    ReportRenderer
	Dispatcher  *Dispatcher
	Escalation  *EscalationService
	Events      EventPublisher
	Timezones   *TimezoneResolver
}

// NewReportService creates a new ReportService covering periodDays full days
func NewReportService(deps ReportDeps, periodDays int, logger *zap.Logger) *ReportService {
	return &ReportService{
		users:       deps.Users,
		medications: deps.Medications,
		doses:       deps.Doses,
		adherence:   deps.Adherence,
		reports:     deps.Reports,
		storage:     deps.Storage,
		renderer:    deps.Renderer,
		dispatcher:  deps.Dispatcher,
		escalation:  deps.Escalation,
		events:      deps.Events,
		timezones:   deps.Timezones,
		periodDays:  periodDays,
		now:         time.Now,
		logger:      logger,
	}
}

// GenerateReport builds the report for the periodDays local days before
// today, stores the PDF and notifies the user and their caregivers
func (s *ReportService) GenerateReport(ctx context.Context, userID string) (*model.AdherenceReport, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	loc := s.timezones.Location(ctx, userID)
	end := model.StartOfDay(s.now(), loc)
	start := end.AddDate(0, 0, -s.periodDays)

	window, err := s.adherence.ComputeAdherence(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	streak, err := s.adherence.ComputeStreak(ctx, userID)
	if err != nil {
		return nil, err
	}

	medications, err := s.medications.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load medications: %w", err)
	}
	doses, err := s.doses.FindByUserInRange(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load doses: %w", err)
	}

	generatedAt := s.now()
	document, err := s.renderer.Generate(&pdf.ReportData{
		UserName:    user.Name,
		PeriodStart: start,
		PeriodEnd:   end,
		Window:      *window,
		Streak:      streak,
		Medications: medications,
		Doses:       localize(doses, loc),
		GeneratedAt: generatedAt.In(loc),
	})
	if err != nil {
		s.logger.Error("failed to render report", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("failed to render report: %w", err)
	}

	report := &model.AdherenceReport{
		ID:          uuid.New().String(),
		UserID:      userID,
		PeriodStart: start,
		PeriodEnd:   end,
		Scheduled:   window.Scheduled,
		Taken:       window.Taken,
		Missed:      window.Missed,
		Percentage:  window.Percentage,
		Streak:      streak,
		GeneratedAt: generatedAt,
	}

	filename := fmt.Sprintf("%s_%s_%s.pdf", userID, start.Format("20060102"), report.ID)
	blobName, err := s.storage.UploadPDF(ctx, filename, document)
	if err != nil {
		s.logger.Error("failed to store report", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("failed to store report: %w", err)
	}
	report.FilePath = blobName

	if err := s.reports.Save(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to save report: %w", err)
	}

	s.logger.Info("adherence report generated",
		zap.String("report_id", report.ID),
		zap.String("user_id", userID),
		zap.Float64("percentage", report.Percentage),
	)

	s.announce(ctx, report)

	return report, nil
}

func (s *ReportService) announce(ctx context.Context, report *model.AdherenceReport) {
	summary := fmt.Sprintf("%d of %d doses taken (%.0f%%) from %s to %s. Current streak: %d days.",
		report.Taken, report.Scheduled, report.Percentage,
		report.PeriodStart.Format("Jan 2"), report.PeriodEnd.AddDate(0, 0, -1).Format("Jan 2"),
		report.Streak)
	data := map[string]string{"report_id": report.ID}

	n := &model.Notification{
		ID:       uuid.New().String(),
		UserID:   report.UserID,
		Category: model.CategoryAdherenceReport,
		Title:    "Your weekly adherence report",
		Message:  summary,
		Priority: model.PriorityLow,
		Channels: []model.Channel{model.ChannelPush, model.ChannelEmail},
		Data:     data,
		Status:   model.NotificationStatusPending,
	}
	if _, err := s.dispatcher.Dispatch(ctx, n); err != nil {
		s.logger.Warn("failed to send report notification", zap.Error(err), zap.String("report_id", report.ID))
	}

	if _, err := s.escalation.EscalateToCaregivers(ctx, report.UserID, EscalationEvent{
		Category: model.CategoryAdherenceReport,
		Message:  summary,
		Data:     data,
	}); err != nil {
		s.logger.Warn("failed to share report with caregivers", zap.Error(err), zap.String("report_id", report.ID))
	}

	if err := s.events.Publish(ctx, model.DomainEvent{
		Type:       model.EventReportGenerated,
		UserID:     report.UserID,
		OccurredAt: report.GeneratedAt,
		Data:       data,
	}); err != nil {
		s.logger.Warn("failed to publish report event", zap.Error(err), zap.String("report_id", report.ID))
	}
}

// GetReport returns a report record and its PDF
func (s *ReportService) GetReport(ctx context.Context, reportID string) (*model.AdherenceReport, []byte, error) {
	report, err := s.reports.FindByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: %s", ErrReportNotFound, reportID)
		}
		return nil, nil, fmt.Errorf("failed to load report: %w", err)
	}

	document, err := s.storage.DownloadPDF(ctx, report.FilePath)
	if err != nil {
		s.logger.Error("failed to download report", zap.Error(err), zap.String("report_id", reportID))
		return nil, nil, fmt.Errorf("failed to download report: %w", err)
	}

	return report, document, nil
}
