package resources

import (
	"context"

	"github.com/jrsteele09/go-medassist-client/api"
	"github.com/jrsteele09/go-medassist-client/apimodel"
)

// Set is the group of caches one session owns.
type Set struct {
	Medications *Cache[apimodel.Medication]
	Intakes     *Cache[apimodel.Intake]
	Reminders   *Cache[apimodel.Reminder]
}

// NewSet builds the caches over client. filter narrows the intake list and may be nil.
func NewSet(client *api.Client, userID func() string, filter func() apimodel.IntakeFilter) *Set {
	if filter == nil {
		filter = func() apimodel.IntakeFilter { return apimodel.IntakeFilter{} }
	}
	return &Set{
		Medications: NewCache("medications", userID, func(ctx context.Context, id string) ([]apimodel.Medication, error) {
			return client.ListMedications(ctx, id)
		}),
		Intakes: NewCache("intakes", userID, func(ctx context.Context, id string) ([]apimodel.Intake, error) {
			return client.ListIntakes(ctx, id, filter())
		}),
		Reminders: NewCache("reminders", userID, func(ctx context.Context, id string) ([]apimodel.Reminder, error) {
			return client.ListReminders(ctx, id)
		}),
	}
}

// Clear empties every cache in the set.
func (s *Set) Clear() {
	s.Medications.Clear()
	s.Intakes.Clear()
	s.Reminders.Clear()
}
