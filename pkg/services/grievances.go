package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fiscal-tracker/fiscal-engine/pkg/apperrors"
	"github.com/fiscal-tracker/fiscal-engine/pkg/audit"
	"github.com/fiscal-tracker/fiscal-engine/pkg/config"
	"github.com/fiscal-tracker/fiscal-engine/pkg/logging"
	"github.com/fiscal-tracker/fiscal-engine/pkg/models"
	"github.com/fiscal-tracker/fiscal-engine/pkg/repositories"
	"github.com/fiscal-tracker/fiscal-engine/pkg/screening"
)

// Field limits for public grievance submissions.
const (
	maxGrievanceNameLength  = 200
	maxGrievanceTitleLength = 300
	maxGrievancePhoneLength = 20
)

// GrievanceInput is a public grievance submission.
type GrievanceInput struct {
	ProjectID     *uuid.UUID `json:"project_id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone"`
	VillageID     *uuid.UUID `json:"village_id"`
	Title         string     `json:"title"`
	Message       string     `json:"message"`
	Priority      string     `json:"priority"`
	AttachmentRef *string    `json:"attachment_ref"`
}

// GrievanceService handles citizen grievances.
type GrievanceService interface {
	// Submit screens and stores a grievance, assigns it to the district
	// officer of its location (or an admin) and notifies the assignee.
	// submitterID is nil for anonymous citizens.
	Submit(ctx context.Context, submitterID *uuid.UUID, in *GrievanceInput, clientIP string) (*models.Grievance, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Grievance, error)
	List(ctx context.Context, filter models.GrievanceFilter) ([]*models.Grievance, error)
	UpdateStatus(ctx context.Context, actorID uuid.UUID, id uuid.UUID, status models.GrievanceStatus, assignTo *uuid.UUID) (*models.Grievance, error)
}

type grievanceService struct {
	grievances repositories.GrievanceRepository
	users      repositories.UserRepository
	locations  repositories.LocationRepository
	notifier   Notifier
	auditor    *audit.SecurityAuditor
	cfg        config.GrievancesConfig
	logger     *zap.Logger
	now        func() time.Time
}

// NewGrievanceService creates a new GrievanceService.
func NewGrievanceService(
	grievances repositories.GrievanceRepository,
	users repositories.UserRepository,
	locations repositories.LocationRepository,
	notifier Notifier,
	auditor *audit.SecurityAuditor,
	cfg config.GrievancesConfig,
	logger *zap.Logger,
) GrievanceService {
	return &grievanceService{
		grievances: grievances,
		users:      users,
		locations:  locations,
		notifier:   notifier,
		auditor:    auditor,
		cfg:        cfg,
		logger:     logger.Named("grievances"),
		now:        time.Now,
	}
}

var _ GrievanceService = (*grievanceService)(nil)

func (s *grievanceService) validate(in *GrievanceInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Title = strings.TrimSpace(in.Title)
	in.Message = strings.TrimSpace(in.Message)

	switch {
	case in.Name == "":
		return fmt.Errorf("%w: name is required", apperrors.ErrValidation)
	case in.Title == "":
		return fmt.Errorf("%w: title is required", apperrors.ErrValidation)
	case in.Message == "":
		return fmt.Errorf("%w: message is required", apperrors.ErrValidation)
	case in.Email == "" && in.Phone == "":
		return fmt.Errorf("%w: an email or phone number is required", apperrors.ErrValidation)
	case len(in.Name) > maxGrievanceNameLength:
		return fmt.Errorf("%w: name exceeds %d characters", apperrors.ErrValidation, maxGrievanceNameLength)
	case len(in.Title) > maxGrievanceTitleLength:
		return fmt.Errorf("%w: title exceeds %d characters", apperrors.ErrValidation, maxGrievanceTitleLength)
	case len(in.Phone) > maxGrievancePhoneLength:
		return fmt.Errorf("%w: phone exceeds %d characters", apperrors.ErrValidation, maxGrievancePhoneLength)
	case s.cfg.MaxMessageBytes > 0 && len(in.Message) > s.cfg.MaxMessageBytes:
		return fmt.Errorf("%w: message exceeds %d bytes", apperrors.ErrValidation, s.cfg.MaxMessageBytes)
	}

	if in.Email != "" {
		if _, err := mail.ParseAddress(in.Email); err != nil {
			return fmt.Errorf("%w: invalid email address", apperrors.ErrValidation)
		}
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	if !models.IsValidPriority(in.Priority) {
		return fmt.Errorf("%w: unknown priority %q", apperrors.ErrValidation, in.Priority)
	}
	return nil
}

func (s *grievanceService) Submit(ctx context.Context, submitterID *uuid.UUID, in *GrievanceInput, clientIP string) (*models.Grievance, error) {
	if err := s.validate(in); err != nil {
		return nil, err
	}

	if s.cfg.ScreenInjection {
		finding := screening.CheckFields(
			[2]string{"name", in.Name},
			[2]string{"title", in.Title},
			[2]string{"message", in.Message},
		)
		if finding != nil {
			s.auditor.LogInjectionAttempt(ctx, audit.InjectionDetails{
				Field:       finding.Field,
				Kind:        finding.Kind,
				Fingerprint: finding.Fingerprint,
			}, clientIP)
			return nil, fmt.Errorf("%w: %s contains disallowed content", apperrors.ErrValidation, finding.Field)
		}
	}

	g := &models.Grievance{
		UserID:        submitterID,
		ProjectID:     in.ProjectID,
		Name:          in.Name,
		Email:         in.Email,
		Phone:         in.Phone,
		Title:         in.Title,
		Message:       in.Message,
		AttachmentRef: nonBlank(in.AttachmentRef),
		Status:        models.GrievanceOpen,
		Priority:      in.Priority,
	}

	if in.VillageID != nil {
		loc, err := s.locations.ResolveVillage(ctx, *in.VillageID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, fmt.Errorf("%w: unknown village %s", apperrors.ErrValidation, *in.VillageID)
			}
			return nil, err
		}
		g.VillageID = &loc.VillageID
		g.TehsilID = &loc.TehsilID
		g.DistrictID = &loc.DistrictID
	}

	assignee, err := s.findAssignee(ctx, g.DistrictID)
	if err != nil {
		return nil, err
	}
	if assignee != nil {
		g.AssignedTo = &assignee.ID
	}

	now := s.now()
	for attempt := 1; ; attempt++ {
		g.Code = models.NewGrievanceCode(now)
		if attempt > 1 {
			g.Code = models.RetryGrievanceCode(now)
		}
		entry := &models.AuditLogEntry{
			UserID:     submitterID,
			Action:     models.AuditActionCreate,
			EntityType: models.AuditEntityTypeGrievance,
			NewValues: map[string]any{
				"grievance_id": g.Code,
				"priority":     g.Priority,
			},
		}
		err = s.grievances.Create(ctx, g, entry)
		if err == nil {
			break
		}
		if !errors.Is(err, apperrors.ErrConflict) || attempt == maxCodeAttempts {
			return nil, err
		}
		s.logger.Debug("Grievance code collision, regenerating",
			zap.String("code", g.Code),
			zap.Int("attempt", attempt))
	}

	if assignee != nil {
		s.notifier.NotifyUser(&models.UserNotice{
			UserID:    assignee.ID,
			Title:     "New grievance assigned",
			Message:   fmt.Sprintf("Grievance %s: %s", g.Code, logging.TruncateString(g.Title, logging.MaxTextLogLength)),
			Type:      models.NotificationTypeGrievance,
			ProjectID: g.ProjectID,
		})
	}

	fields := []zap.Field{
		zap.String("grievance_id", g.Code),
		zap.String("priority", g.Priority),
	}
	if g.Email != "" {
		fields = append(fields, zap.String("email", logging.MaskEmail(g.Email)))
	}
	if g.Phone != "" {
		fields = append(fields, zap.String("phone", logging.MaskPhone(g.Phone)))
	}
	s.logger.Info("Grievance submitted", fields...)

	return g, nil
}

// findAssignee prefers a district officer of the grievance's district and
// falls back to any admin. A portal with neither leaves it unassigned.
func (s *grievanceService) findAssignee(ctx context.Context, districtID *uuid.UUID) (*models.User, error) {
	for _, role := range []models.Role{models.RoleDistrict, models.RoleAdmin} {
		if role == models.RoleDistrict && districtID == nil {
			continue
		}
		u, err := s.users.FindOfficer(ctx, role, districtID)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
	}
	s.logger.Warn("No officer available to assign grievance")
	return nil, nil
}

func (s *grievanceService) Get(ctx context.Context, id uuid.UUID) (*models.Grievance, error) {
	return s.grievances.Get(ctx, id)
}

func (s *grievanceService) List(ctx context.Context, filter models.GrievanceFilter) ([]*models.Grievance, error) {
	if filter.Status != nil && !models.IsValidGrievanceStatus(string(*filter.Status)) {
		return nil, fmt.Errorf("%w: unknown grievance status %q", apperrors.ErrValidation, *filter.Status)
	}
	if filter.Limit <= 0 || filter.Limit > models.MaxGrievanceListLimit {
		filter.Limit = models.MaxGrievanceListLimit
	}
	return s.grievances.List(ctx, filter)
}

func (s *grievanceService) UpdateStatus(ctx context.Context, actorID uuid.UUID, id uuid.UUID, status models.GrievanceStatus, assignTo *uuid.UUID) (*models.Grievance, error) {
	if !models.IsValidGrievanceStatus(string(status)) {
		return nil, fmt.Errorf("%w: unknown grievance status %q", apperrors.ErrValidation, status)
	}

	if assignTo != nil {
		u, err := s.users.GetByID(ctx, *assignTo)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, fmt.Errorf("%w: unknown assignee", apperrors.ErrValidation)
			}
			return nil, err
		}
		if !u.Role.IsOfficial() || !u.Active {
			return nil, fmt.Errorf("%w: grievances can only be assigned to active officials", apperrors.ErrValidation)
		}
	}

	values := map[string]any{"status": status}
	if assignTo != nil {
		values["assigned_to"] = assignTo.String()
	}
	entry := &models.AuditLogEntry{
		UserID:     &actorID,
		Action:     models.AuditActionStatusUpdate,
		EntityType: models.AuditEntityTypeGrievance,
		EntityID:   id,
		NewValues:  values,
	}

	g, err := s.grievances.UpdateStatus(ctx, id, status, assignTo, entry)
	if err != nil {
		return nil, err
	}

	if assignTo != nil && *assignTo != actorID {
		s.notifier.NotifyUser(&models.UserNotice{
			UserID:    *assignTo,
			Title:     "Grievance assigned to you",
			Message:   fmt.Sprintf("Grievance %s is now %s.", g.Code, g.Status),
			Type:      models.NotificationTypeGrievance,
			ProjectID: g.ProjectID,
		})
	}
	return g, nil
}
