package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/internal/audit"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/pkg/model"
	"go.uber.org/zap"
)

func TestMedicationService(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	info := RequestInfo{IPAddress: "127.0.0.1"}

	valid := func() *model.Medication {
		return &model.Medication{
			Name:      "Lisinopril",
			Dosage:    "10mg",
			Times:     []string{"08:00", "20:00"},
			StartDate: now,
		}
	}

	t.Run("add validates input", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(m *model.Medication)
		}{
			{"missing name", func(m *model.Medication) { m.Name = "" }},
			{"missing dosage", func(m *model.Medication) { m.Dosage = "" }},
			{"no times", func(m *model.Medication) { m.Times = nil }},
			{"bad time", func(m *model.Medication) { m.Times = []string{"24:00"} }},
			{"signed minute", func(m *model.Medication) { m.Times = []string{"08:00", "08:+5"} }},
			{"signed hour", func(m *model.Medication) { m.Times = []string{"-0:00"} }},
			{"no start", func(m *model.Medication) { m.StartDate = time.Time{} }},
			{"end before start", func(m *model.Medication) {
				end := now.AddDate(0, 0, -1)
				m.EndDate = &end
			}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				env := newTestEnv(t, now)
				med := valid()
				tt.mutate(med)
				assert.Error(t, env.medService.AddMedication(context.Background(), "u1", med, info))
				assert.Empty(t, env.auditor.entries)
			})
		}
	})

	t.Run("add stores and audits", func(t *testing.T) {
		env := newTestEnv(t, now)
		med := valid()
		require.NoError(t, env.medService.AddMedication(context.Background(), "u1", med, info))

		assert.NotEmpty(t, med.ID)
		assert.True(t, med.Active)
		stored, err := env.medications.FindByID(context.Background(), med.ID)
		require.NoError(t, err)
		assert.Equal(t, "u1", stored.UserID)

		require.Len(t, env.auditor.entries, 1)
		assert.Equal(t, audit.OperationCreate, env.auditor.entries[0].OperationType)
		assert.Equal(t, audit.ResourceMedication, env.auditor.entries[0].ResourceType)
	})

	t.Run("list deactivates ended definitions", func(t *testing.T) {
		env := newTestEnv(t, now)
		end := now.AddDate(0, 0, -1)
		env.addMedication("current", "u1", "Lisinopril", "10mg", now.AddDate(0, 0, -10), "08:00")
		_ = env.medications.Create(context.Background(), &model.Medication{
			ID: "ended", UserID: "u1", Name: "Amoxicillin", Dosage: "250mg", Times: []string{"12:00"},
			StartDate: now.AddDate(0, 0, -10), EndDate: &end, Active: true,
		})

		meds, err := env.medService.ListMedications(context.Background(), "u1")
		require.NoError(t, err)
		require.Len(t, meds, 2)

		stored, err := env.medications.FindByID(context.Background(), "ended")
		require.NoError(t, err)
		assert.False(t, stored.Active)

		active, err := env.medications.FindActiveByUserID(context.Background(), "u1")
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, "current", active[0].ID)
	})

	t.Run("update and deactivate", func(t *testing.T) {
		env := newTestEnv(t, now)
		env.addMedication("m1", "u1", "Lisinopril", "10mg", now, "08:00")

		updates := valid()
		updates.Dosage = "20mg"
		require.NoError(t, env.medService.UpdateMedication(context.Background(), "m1", updates, info))

		stored, err := env.medications.FindByID(context.Background(), "m1")
		require.NoError(t, err)
		assert.Equal(t, "20mg", stored.Dosage)
		assert.Equal(t, "u1", stored.UserID)

		require.NoError(t, env.medService.DeactivateMedication(context.Background(), "m1", info))
		stored, err = env.medications.FindByID(context.Background(), "m1")
		require.NoError(t, err)
		assert.False(t, stored.Active)

		assert.Len(t, env.auditor.entries, 2)
	})

	t.Run("unknown medication", func(t *testing.T) {
		env := newTestEnv(t, now)
		err := env.medService.UpdateMedication(context.Background(), "missing", valid(), info)
		assert.ErrorIs(t, err, ErrMedicationNotFound)
		err = env.medService.DeactivateMedication(context.Background(), "missing", info)
		assert.ErrorIs(t, err, ErrMedicationNotFound)
	})

	t.Run("store failure is wrapped", func(t *testing.T) {
		env := newTestEnv(t, now)
		env.medications.err = errors.New("connection reset")
		err := env.medService.AddMedication(context.Background(), "u1", valid(), info)
		assert.ErrorContains(t, err, "failed to add medication")
	})
}

func TestCaregiverService(t *testing.T) {
	store := &fakeCaregivers{}
	auditor := &fakeAuditor{}
	svc := NewCaregiverService(store, auditor, zap.NewNop())
	ctx := context.Background()

	tests := []struct {
		name    string
		c       model.Caregiver
		wantErr bool
	}{
		{"email only", model.Caregiver{Name: "Anna", Email: strPtr("anna@example.com"), NotificationsEnabled: true}, false},
		{"phone only", model.Caregiver{Name: "Bela", Phone: strPtr("+36301234567"), NotificationsEnabled: true}, false},
		{"no contact", model.Caregiver{Name: "Cecil"}, true},
		{"blank name", model.Caregiver{Name: "  ", Email: strPtr("x@example.com")}, true},
		{"bad email", model.Caregiver{Name: "Dora", Email: strPtr("not-an-email")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.c
			err := svc.AddCaregiver(ctx, "u1", &c, RequestInfo{})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, c.ID)
		})
	}

	listed, err := svc.ListCaregivers(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, listed, 2)
	assert.Len(t, auditor.entries, 2)
}

func TestPreferenceResolver(t *testing.T) {
	store := newFakePreferences()
	resolver := NewPreferenceResolver(store, zap.NewNop())
	ctx := context.Background()

	t.Run("defaults when nothing is stored", func(t *testing.T) {
		pref, err := resolver.Resolve(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, model.DefaultNotificationPreference("u1"), pref)
	})

	t.Run("update validates quiet hours", func(t *testing.T) {
		pref := model.DefaultNotificationPreference("u1")
		pref.QuietStart = strPtr("22:00")
		assert.Error(t, resolver.Update(ctx, pref))

		pref.QuietEnd = strPtr("7am")
		assert.ErrorIs(t, resolver.Update(ctx, pref), model.ErrInvalidTimeOfDay)

		pref.QuietEnd = strPtr("07:+0")
		assert.ErrorIs(t, resolver.Update(ctx, pref), model.ErrInvalidTimeOfDay)

		pref.QuietEnd = strPtr("07:00")
		require.NoError(t, resolver.Update(ctx, pref))

		stored, err := resolver.Resolve(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "07:00", *stored.QuietEnd)
	})

	t.Run("store errors surface", func(t *testing.T) {
		failing := newFakePreferences()
		failing.err = errors.New("connection reset")
		_, err := NewPreferenceResolver(failing, zap.NewNop()).Resolve(ctx, "u1")
		assert.Error(t, err)
	})
}

func TestCategoryEnabled(t *testing.T) {
	pref := model.DefaultNotificationPreference("u1")
	pref.Reminders = false

	for category, want := range map[model.NotificationCategory]bool{
		model.CategoryReminder:        false,
		model.CategoryDoseTaken:       false,
		model.CategoryMissedDose:      true,
		model.CategoryAdherenceReport: true,
		model.CategoryEmergency:       true,
	} {
		got, err := CategoryEnabled(pref, category)
		require.NoError(t, err)
		assert.Equal(t, want, got, category)
	}

	_, err := CategoryEnabled(pref, "promo")
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestInQuietHours(t *testing.T) {
	at := func(hhmm string) time.Time {
		tod, err := model.ParseTimeOfDay(hhmm)
		require.NoError(t, err)
		return tod.On(time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC), time.UTC)
	}
	window := func(start, end string) *model.NotificationPreference {
		pref := model.DefaultNotificationPreference("u1")
		pref.QuietStart = strPtr(start)
		pref.QuietEnd = strPtr(end)
		return pref
	}

	tests := []struct {
		name  string
		pref  *model.NotificationPreference
		local string
		want  bool
	}{
		{"no window", model.DefaultNotificationPreference("u1"), "23:00", false},
		{"daytime inside", window("13:00", "15:00"), "14:00", true},
		{"daytime end exclusive", window("13:00", "15:00"), "15:00", false},
		{"wrapped before midnight", window("22:00", "07:00"), "23:30", true},
		{"wrapped after midnight", window("22:00", "07:00"), "03:00", true},
		{"wrapped outside", window("22:00", "07:00"), "12:00", false},
		{"equal bounds", window("22:00", "22:00"), "22:00", false},
		{"malformed bound", window("late", "07:00"), "03:00", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InQuietHours(tt.pref, at(tt.local)))
		})
	}
}

func TestTimezoneResolver(t *testing.T) {
	users := newFakeUsers()
	users.add(model.User{ID: "ny", Timezone: "America/New_York"})
	users.add(model.User{ID: "blank"})
	users.add(model.User{ID: "bogus", Timezone: "Mars/Olympus"})

	fallback := time.FixedZone("fallback", 3600)
	resolver := NewTimezoneResolver(users, fallback, zap.NewNop())
	ctx := context.Background()

	assert.Equal(t, "America/New_York", resolver.Location(ctx, "ny").String())
	assert.Equal(t, fallback, resolver.Location(ctx, "blank"))
	assert.Equal(t, fallback, resolver.Location(ctx, "bogus"))
	assert.Equal(t, fallback, resolver.Location(ctx, "unknown"))
}
