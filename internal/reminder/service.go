package reminder

import (
	"context"

	"go.uber.org/zap"

	"github.com/nhle/epikom-hub/internal/apperr"
	"github.com/nhle/epikom-hub/internal/model"
)

// ProjectStore is the slice of the persistence gateway the service needs.
type ProjectStore interface {
	GetProjectByID(ctx context.Context, id string) (*model.Project, error)
	UpdateProjectSettings(ctx context.Context, id string, policy model.ReminderPolicy) error
}

// Service reads and updates project reminder policies.
type Service struct {
	store ProjectStore
	log   *zap.Logger
}

// NewService creates a Service over store.
func NewService(store ProjectStore, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, log: log}
}

// Policy returns the project's policy, or Default when it has none.
func (s *Service) Policy(ctx context.Context, projectID string) (model.ReminderPolicy, error) {
	p, err := s.store.GetProjectByID(ctx, projectID)
	if err != nil {
		return model.ReminderPolicy{}, apperr.Transient("loading project "+projectID, err)
	}
	return OrDefault(p.NotificationSettings), nil
}

// UpdatePolicy replaces a project's policy. Only admins may do so, and
// the policy must validate. Nothing is written otherwise.
func (s *Service) UpdatePolicy(
	ctx context.Context, actor model.Profile, projectID string, policy model.ReminderPolicy,
) error {
	if !actor.IsAdmin() {
		return apperr.Forbidden("update reminder settings")
	}
	if err := Validate(policy); err != nil {
		return err
	}
	if err := s.store.UpdateProjectSettings(ctx, projectID, policy); err != nil {
		return apperr.Transient("updating reminder settings", err)
	}

	s.log.Info("reminder policy updated",
		zap.String("project_id", projectID),
		zap.String("actor_id", actor.ID),
		zap.Int("first", policy.OverdueReminders.First),
		zap.Int("second", policy.OverdueReminders.Second),
		zap.Int("third", policy.OverdueReminders.Third),
	)
	return nil
}
