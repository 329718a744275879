package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/internal/audit"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/internal/azure"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/internal/pdf"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/internal/repository"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/pkg/model"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// fakeUsers is an in-memory UserStore
type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: make(map[string]*model.User)}
}

func (f *fakeUsers) add(u model.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = &u
}

func (f *fakeUsers) FindByID(ctx context.Context, userID string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, repository.ErrNotFound)
	}
	c := *u
	return &c, nil
}

func (f *fakeUsers) ListWithActiveMedications(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.users))
	for id := range f.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// fakeMedications is an in-memory MedicationStore
type fakeMedications struct {
	mu   sync.Mutex
	meds map[string]*model.Medication
	err  error
}

func newFakeMedications() *fakeMedications {
	return &fakeMedications{meds: make(map[string]*model.Medication)}
}

func (f *fakeMedications) Create(ctx context.Context, med *model.Medication) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	c := *med
	f.meds[med.ID] = &c
	return nil
}

func (f *fakeMedications) FindByID(ctx context.Context, id string) (*model.Medication, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.meds[id]
	if !ok {
		return nil, fmt.Errorf("medication %s: %w", id, repository.ErrNotFound)
	}
	c := *m
	return &c, nil
}

func (f *fakeMedications) list(userID string, activeOnly bool) []model.Medication {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Medication
	for _, m := range f.meds {
		if m.UserID != userID || (activeOnly && !m.Active) {
			continue
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (f *fakeMedications) FindByUserID(ctx context.Context, userID string) ([]model.Medication, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.list(userID, false), nil
}

func (f *fakeMedications) FindActiveByUserID(ctx context.Context, userID string) ([]model.Medication, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.list(userID, true), nil
}

func (f *fakeMedications) Update(ctx context.Context, med *model.Medication) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.meds[med.ID]; !ok {
		return fmt.Errorf("medication %s: %w", med.ID, repository.ErrNotFound)
	}
	c := *med
	f.meds[med.ID] = &c
	return nil
}

func (f *fakeMedications) Deactivate(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.meds[id]
	if !ok {
		return fmt.Errorf("medication %s: %w", id, repository.ErrNotFound)
	}
	m.Active = false
	return nil
}

// fakeDoses is an in-memory DoseStore enforcing the same guards as SQL
type fakeDoses struct {
	mu        sync.Mutex
	doses     map[string]*model.DoseInstance
	insertErr error
}

func newFakeDoses() *fakeDoses {
	return &fakeDoses{doses: make(map[string]*model.DoseInstance)}
}

func (f *fakeDoses) Insert(ctx context.Context, dose *model.DoseInstance) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return false, f.insertErr
	}
	bucket := repository.DedupBucket(dose.ScheduledTime)
	for _, d := range f.doses {
		if d.MedicationID == dose.MedicationID && repository.DedupBucket(d.ScheduledTime) == bucket {
			return false, nil
		}
	}
	c := *dose
	f.doses[dose.ID] = &c
	return true, nil
}

func (f *fakeDoses) put(d model.DoseInstance) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.doses[d.ID] = &d
}

func (f *fakeDoses) get(id string) model.DoseInstance {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.doses[id]
}

func (f *fakeDoses) all() []model.DoseInstance {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.DoseInstance, 0, len(f.doses))
	for _, d := range f.doses {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledTime.Before(out[j].ScheduledTime) })
	return out
}

func (f *fakeDoses) filter(keep func(d *model.DoseInstance) bool, limit int) []model.DoseInstance {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.DoseInstance
	for _, d := range f.doses {
		if keep(d) {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledTime.Before(out[j].ScheduledTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (f *fakeDoses) FindByID(ctx context.Context, id string) (*model.DoseInstance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.doses[id]
	if !ok {
		return nil, fmt.Errorf("dose %s: %w", id, repository.ErrNotFound)
	}
	c := *d
	return &c, nil
}

func (f *fakeDoses) FindByUserInRange(ctx context.Context, userID string, from, to time.Time) ([]model.DoseInstance, error) {
	return f.filter(func(d *model.DoseInstance) bool {
		return d.UserID == userID && !d.ScheduledTime.Before(from) && d.ScheduledTime.Before(to)
	}, 0), nil
}

func (f *fakeDoses) FindPendingBefore(ctx context.Context, userID string, cutoff time.Time, limit int) ([]model.DoseInstance, error) {
	return f.filter(func(d *model.DoseInstance) bool {
		return d.Status == model.DoseStatusPending && d.ScheduledTime.Before(cutoff) &&
			(userID == "" || d.UserID == userID)
	}, limit), nil
}

func (f *fakeDoses) FindUpcoming(ctx context.Context, userID string, from, to time.Time) ([]model.DoseInstance, error) {
	return f.filter(func(d *model.DoseInstance) bool {
		return d.UserID == userID && d.Status == model.DoseStatusPending &&
			!d.ScheduledTime.Before(from) && d.ScheduledTime.Before(to)
	}, 0), nil
}

func (f *fakeDoses) MarkMissed(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.doses[id]
	if !ok || d.Status != model.DoseStatusPending {
		return false, nil
	}
	d.Status = model.DoseStatusMissed
	return true, nil
}

func (f *fakeDoses) MarkTaken(ctx context.Context, id string, takenAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.doses[id]
	if !ok || (d.Status != model.DoseStatusPending && d.Status != model.DoseStatusMissed) {
		return false, nil
	}
	d.Status = model.DoseStatusTaken
	d.TakenAt = &takenAt
	return true, nil
}

func (f *fakeDoses) ArchiveMissedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, d := range f.doses {
		if limit > 0 && n >= int64(limit) {
			break
		}
		if d.Status == model.DoseStatusMissed && d.ScheduledTime.Before(cutoff) {
			d.Status = model.DoseStatusArchived
			n++
		}
	}
	return n, nil
}

// fakeCaregivers is an in-memory CaregiverStore
type fakeCaregivers struct {
	mu         sync.Mutex
	caregivers []model.Caregiver
	findErr    error
}

func (f *fakeCaregivers) Create(ctx context.Context, c *model.Caregiver) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.caregivers = append(f.caregivers, *c)
	return nil
}

func (f *fakeCaregivers) FindEnabledByUserID(ctx context.Context, userID string) ([]model.Caregiver, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	var out []model.Caregiver
	for _, c := range f.caregivers {
		if c.UserID == userID && c.NotificationsEnabled {
			out = append(out, c)
		}
	}
	return out, nil
}

// fakePreferences is an in-memory PreferenceStore
type fakePreferences struct {
	mu    sync.Mutex
	prefs map[string]*model.NotificationPreference
	err   error
}

func newFakePreferences() *fakePreferences {
	return &fakePreferences{prefs: make(map[string]*model.NotificationPreference)}
}

func (f *fakePreferences) FindByUserID(ctx context.Context, userID string) (*model.NotificationPreference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.prefs[userID]
	if !ok {
		return nil, fmt.Errorf("preferences for %s: %w", userID, repository.ErrNotFound)
	}
	c := *p
	return &c, nil
}

func (f *fakePreferences) Upsert(ctx context.Context, p *model.NotificationPreference) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *p
	f.prefs[p.UserID] = &c
	return nil
}

// fakeNotifications is an in-memory NotificationStore
type fakeNotifications struct {
	mu            sync.Mutex
	notifications map[string]*model.Notification
	order         []string
	deliveries    []model.NotificationDelivery
}

func newFakeNotifications() *fakeNotifications {
	return &fakeNotifications{notifications: make(map[string]*model.Notification)}
}

func (f *fakeNotifications) Create(ctx context.Context, n *model.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.notifications[n.ID]; ok {
		return fmt.Errorf("duplicate notification %s", n.ID)
	}
	c := *n
	f.notifications[n.ID] = &c
	f.order = append(f.order, n.ID)
	return nil
}

func (f *fakeNotifications) CreateReminder(ctx context.Context, n *model.Notification) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.notifications {
		if existing.Category == model.CategoryReminder && existing.CaregiverID == nil &&
			existing.DoseInstanceID != nil && n.DoseInstanceID != nil &&
			*existing.DoseInstanceID == *n.DoseInstanceID {
			return false, nil
		}
	}
	c := *n
	f.notifications[n.ID] = &c
	f.order = append(f.order, n.ID)
	return true, nil
}

func (f *fakeNotifications) ClaimDueReminders(ctx context.Context, userID string, now time.Time, limit int) ([]model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Notification
	for _, id := range f.order {
		n := f.notifications[id]
		if n.Category != model.CategoryReminder || n.Status != model.NotificationStatusPending ||
			n.ClaimedAt != nil || n.ScheduledFor.After(now) || (userID != "" && n.UserID != userID) {
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		claimed := now
		n.ClaimedAt = &claimed
		out = append(out, *n)
	}
	return out, nil
}

func (f *fakeNotifications) FindByUserID(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	return f.where(func(n *model.Notification) bool { return n.UserID == userID }), nil
}

func (f *fakeNotifications) UpdateOutcome(ctx context.Context, n *model.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.notifications[n.ID]
	if !ok {
		return fmt.Errorf("notification %s: %w", n.ID, repository.ErrNotFound)
	}
	existing.Status = n.Status
	existing.SkipReason = n.SkipReason
	existing.SentAt = n.SentAt
	existing.Channels = n.Channels
	return nil
}

func (f *fakeNotifications) CreateDelivery(ctx context.Context, d *model.NotificationDelivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliveries = append(f.deliveries, *d)
	return nil
}

func (f *fakeNotifications) where(keep func(n *model.Notification) bool) []model.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Notification
	for _, id := range f.order {
		if n := f.notifications[id]; keep(n) {
			out = append(out, *n)
		}
	}
	return out
}

func (f *fakeNotifications) byCategory(category model.NotificationCategory) []model.Notification {
	return f.where(func(n *model.Notification) bool { return n.Category == category })
}

func (f *fakeNotifications) deliveriesFor(notificationID string) []model.NotificationDelivery {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.NotificationDelivery
	for _, d := range f.deliveries {
		if d.NotificationID == notificationID {
			out = append(out, d)
		}
	}
	return out
}

// fakeReports is an in-memory ReportStore
type fakeReports struct {
	mu      sync.Mutex
	reports map[string]*model.AdherenceReport
}

func (f *fakeReports) Save(ctx context.Context, r *model.AdherenceReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reports == nil {
		f.reports = make(map[string]*model.AdherenceReport)
	}
	c := *r
	f.reports[r.ID] = &c
	return nil
}

func (f *fakeReports) FindByID(ctx context.Context, id string) (*model.AdherenceReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reports[id]
	if !ok {
		return nil, fmt.Errorf("report %s: %w", id, repository.ErrNotFound)
	}
	c := *r
	return &c, nil
}

// fakeEvents records published domain events
type fakeEvents struct {
	mu     sync.Mutex
	events []model.DomainEvent
	err    error
}

func (f *fakeEvents) Publish(ctx context.Context, e model.DomainEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return f.err
}

func (f *fakeEvents) ofType(t string) []model.DomainEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.DomainEvent
	for _, e := range f.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// fakeAuditor records audit entries
type fakeAuditor struct {
	mu      sync.Mutex
	entries []audit.AuditLog
}

func (f *fakeAuditor) Log(ctx context.Context, entry audit.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

// MockPushSender is a mock implementation of PushSender
type MockPushSender struct {
	mock.Mock
}

func (m *MockPushSender) Send(ctx context.Context, userID, title, body string, priority model.Priority, data map[string]string) error {
	args := m.Called(ctx, userID, title, body, priority, data)
	return args.Error(0)
}

// MockEmailSender is a mock implementation of EmailSender
type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) Send(ctx context.Context, address, subject, html string) error {
	args := m.Called(ctx, address, subject, html)
	return args.Error(0)
}

// MockSMSSender is a mock implementation of SMSSender
type MockSMSSender struct {
	mock.Mock
}

func (m *MockSMSSender) Send(ctx context.Context, phone, text string) error {
	args := m.Called(ctx, phone, text)
	return args.Error(0)
}

func newAcceptingChannels() (*MockPushSender, *MockEmailSender, *MockSMSSender) {
	push := new(MockPushSender)
	push.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	email := new(MockEmailSender)
	email.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	sms := new(MockSMSSender)
	sms.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	return push, email, sms
}

var errProviderDown = errors.New("provider unavailable")

// testEnv wires every service against in-memory stores and a settable clock
type testEnv struct {
	now time.Time

	users         *fakeUsers
	medications   *fakeMedications
	doses         *fakeDoses
	caregivers    *fakeCaregivers
	preferences   *fakePreferences
	notifications *fakeNotifications
	reportStore   *fakeReports
	events        *fakeEvents
	auditor       *fakeAuditor
	storage       *azure.MemoryBlobStorage

	push  *MockPushSender
	email *MockEmailSender
	sms   *MockSMSSender

	logs *observer.ObservedLogs

	timezones   *TimezoneResolver
	resolver    *PreferenceResolver
	dispatcher  *Dispatcher
	reminders   *ReminderScheduler
	generator   *ScheduleGenerator
	escalation  *EscalationService
	sweeper     *Sweeper
	adherence   *AdherenceService
	doseService *DoseService
	reports     *ReportService
	emergency   *EmergencyService
	medService  *MedicationService
	engine      *Engine
}

func newTestEnv(t *testing.T, now time.Time) *testEnv {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	env := &testEnv{
		now:           now,
		users:         newFakeUsers(),
		medications:   newFakeMedications(),
		doses:         newFakeDoses(),
		caregivers:    &fakeCaregivers{},
		preferences:   newFakePreferences(),
		notifications: newFakeNotifications(),
		reportStore:   &fakeReports{},
		events:        &fakeEvents{},
		auditor:       &fakeAuditor{},
		storage:       azure.NewMemoryBlobStorage(logger),
		logs:          logs,
	}
	env.push, env.email, env.sms = newAcceptingChannels()
	env.wire(logger)
	return env
}

func (e *testEnv) clock() time.Time {
	return e.now
}

func (e *testEnv) wire(logger *zap.Logger) {
	e.timezones = NewTimezoneResolver(e.users, time.UTC, logger)
	e.resolver = NewPreferenceResolver(e.preferences, logger)

	e.dispatcher = NewDispatcher(e.resolver, e.timezones, e.users, e.notifications,
		Channels{Push: e.push, Email: e.email, SMS: e.sms}, time.Second, logger)
	e.dispatcher.now = e.clock

	e.reminders = NewReminderScheduler(e.notifications, e.doses, e.dispatcher, 0, 500, logger)
	e.reminders.now = e.clock

	e.generator = NewScheduleGenerator(e.medications, e.doses, e.timezones, e.reminders, time.Minute, logger)
	e.escalation = NewEscalationService(e.caregivers, e.users, e.dispatcher, logger)

	e.sweeper = NewSweeper(e.doses, e.dispatcher, e.escalation, e.events, e.timezones, SweeperConfig{
		GraceWindow: 30 * time.Minute,
		ArchiveAge:  72 * time.Hour,
		BatchLimit:  500,
	}, logger)
	e.sweeper.now = e.clock

	e.adherence = NewAdherenceService(e.doses, e.timezones, 30, logger)
	e.adherence.now = e.clock

	e.doseService = NewDoseService(e.doses, e.timezones, e.dispatcher, e.events, e.auditor, logger)
	e.doseService.now = e.clock

	e.reports = NewReportService(ReportDeps{
		Users:       e.users,
		Medications: e.medications,
		Doses:       e.doses,
		Adherence:   e.adherence,
		Reports:     e.reportStore,
		Storage:     e.storage,
		Renderer:    pdf.NewPDFGenerator(logger),
		Dispatcher:  e.dispatcher,
		Escalation:  e.escalation,
		Events:      e.events,
		Timezones:   e.timezones,
	}, 7, logger)
	e.reports.now = e.clock

	e.emergency = NewEmergencyService(e.dispatcher, e.escalation, e.events, logger)
	e.emergency.now = e.clock

	e.medService = NewMedicationService(e.medications, e.auditor, logger)
	e.medService.now = e.clock

	e.engine = NewEngine(EngineDeps{
		Users:     e.users,
		Generator: e.generator,
		Sweeper:   e.sweeper,
		Reminders: e.reminders,
		Reports:   e.reports,
		Timezones: e.timezones,
	}, 1, logger)
	e.engine.now = e.clock
}

func (e *testEnv) addUser(id, timezone string) {
	phone := "+15550100"
	e.users.add(model.User{
		ID:       id,
		Name:     "Patient " + id,
		Email:    id + "@example.com",
		Phone:    &phone,
		Timezone: timezone,
	})
}

func (e *testEnv) addMedication(id, userID, name, dosage string, start time.Time, times ...string) {
	_ = e.medications.Create(context.Background(), &model.Medication{
		ID:        id,
		UserID:    userID,
		Name:      name,
		Dosage:    dosage,
		Times:     times,
		StartDate: start,
		Active:    true,
	})
}

func (e *testEnv) addDose(id, medID, userID string, at time.Time, status model.DoseStatus) {
	e.doses.put(model.DoseInstance{
		ID:             id,
		MedicationID:   medID,
		UserID:         userID,
		MedicationName: "Lisinopril",
		Dosage:         "10mg",
		ScheduledTime:  at,
		Status:         status,
	})
}

func strPtr(s string) *string {
	return &s
}
