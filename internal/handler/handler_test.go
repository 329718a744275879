package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/internal/service"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/pkg/model"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const (
	testUserID = "6f1c2d3e-4b5a-4c7d-8e9f-0a1b2c3d4e5f"
	testDoseID = "0b7e4a52-9c1d-4f3e-a2b6-5d8c7e9f1a20"
)

// MockAdherence is a mock implementation of AdherenceReader
type MockAdherence struct {
	mock.Mock
}

func (m *MockAdherence) ComputeAdherence(ctx context.Context, userID string, from, to time.Time) (*model.AdherenceWindow, error) {
	args := m.Called(ctx, userID, from, to)
	return windowArg(args)
}

func (m *MockAdherence) Today(ctx context.Context, userID string) (*model.AdherenceWindow, error) {
	return windowArg(m.Called(ctx, userID))
}

func (m *MockAdherence) ThisWeek(ctx context.Context, userID string) (*model.AdherenceWindow, error) {
	return windowArg(m.Called(ctx, userID))
}

func (m *MockAdherence) ThisMonth(ctx context.Context, userID string) (*model.AdherenceWindow, error) {
	return windowArg(m.Called(ctx, userID))
}

func (m *MockAdherence) ComputeStreak(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func windowArg(args mock.Arguments) (*model.AdherenceWindow, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AdherenceWindow), args.Error(1)
}

// MockDoses is a mock implementation of DoseTracker
type MockDoses struct {
	mock.Mock
}

func (m *MockDoses) MarkTaken(ctx context.Context, doseID string, takenAt *time.Time, info service.RequestInfo) (*model.DoseInstance, error) {
	args := m.Called(ctx, doseID, takenAt, info)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DoseInstance), args.Error(1)
}

func (m *MockDoses) GetToday(ctx context.Context, userID string) ([]model.DoseInstance, error) {
	args := m.Called(ctx, userID)
	doses, _ := args.Get(0).([]model.DoseInstance)
	return doses, args.Error(1)
}

func (m *MockDoses) GetUpcoming(ctx context.Context, userID string, horizon time.Duration) ([]model.DoseInstance, error) {
	args := m.Called(ctx, userID, horizon)
	doses, _ := args.Get(0).([]model.DoseInstance)
	return doses, args.Error(1)
}

// MockEngine is a mock implementation of EngineRunner and EmergencyRaiser
type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) Run(ctx context.Context, trigger service.Trigger) (*service.RunSummary, error) {
	args := m.Called(ctx, trigger)
	summary, _ := args.Get(0).(*service.RunSummary)
	return summary, args.Error(1)
}

func (m *MockEngine) Raise(ctx context.Context, userID, message string) (*service.EmergencyResult, error) {
	args := m.Called(ctx, userID, message)
	result, _ := args.Get(0).(*service.EmergencyResult)
	return result, args.Error(1)
}

// MockReports is a mock implementation of ReportProvider
type MockReports struct {
	mock.Mock
}

func (m *MockReports) GenerateReport(ctx context.Context, userID string) (*model.AdherenceReport, error) {
	args := m.Called(ctx, userID)
	report, _ := args.Get(0).(*model.AdherenceReport)
	return report, args.Error(1)
}

func (m *MockReports) GetReport(ctx context.Context, reportID string) (*model.AdherenceReport, []byte, error) {
	args := m.Called(ctx, reportID)
	report, _ := args.Get(0).(*model.AdherenceReport)
	document, _ := args.Get(1).([]byte)
	return report, document, args.Error(2)
}

// MockMedications is a mock implementation of MedicationManager
type MockMedications struct {
	mock.Mock
}

func (m *MockMedications) AddMedication(ctx context.Context, userID string, med *model.Medication, info service.RequestInfo) error {
	return m.Called(ctx, userID, med, info).Error(0)
}

func (m *MockMedications) ListMedications(ctx context.Context, userID string) ([]model.Medication, error) {
	args := m.Called(ctx, userID)
	meds, _ := args.Get(0).([]model.Medication)
	return meds, args.Error(1)
}

func (m *MockMedications) UpdateMedication(ctx context.Context, medID string, updates *model.Medication, info service.RequestInfo) error {
	return m.Called(ctx, medID, updates, info).Error(0)
}

func (m *MockMedications) DeactivateMedication(ctx context.Context, medID string, info service.RequestInfo) error {
	return m.Called(ctx, medID, info).Error(0)
}

// MockContacts is a mock implementation of CaregiverManager, PreferenceManager and NotificationReader
type MockContacts struct {
	mock.Mock
}

func (m *MockContacts) AddCaregiver(ctx context.Context, userID string, c *model.Caregiver, info service.RequestInfo) error {
	return m.Called(ctx, userID, c, info).Error(0)
}

func (m *MockContacts) ListCaregivers(ctx context.Context, userID string) ([]model.Caregiver, error) {
	args := m.Called(ctx, userID)
	caregivers, _ := args.Get(0).([]model.Caregiver)
	return caregivers, args.Error(1)
}

func (m *MockContacts) Resolve(ctx context.Context, userID string) (*model.NotificationPreference, error) {
	args := m.Called(ctx, userID)
	pref, _ := args.Get(0).(*model.NotificationPreference)
	return pref, args.Error(1)
}

func (m *MockContacts) Update(ctx context.Context, pref *model.NotificationPreference) error {
	return m.Called(ctx, pref).Error(0)
}

func (m *MockContacts) FindByUserID(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	args := m.Called(ctx, userID, limit)
	notifications, _ := args.Get(0).([]model.Notification)
	return notifications, args.Error(1)
}

// MockPinger is a mock implementation of Pinger
type MockPinger struct {
	mock.Mock
}

func (m *MockPinger) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type testAPI struct {
	router      *gin.Engine
	adherence   *MockAdherence
	doses       *MockDoses
	engine      *MockEngine
	reports     *MockReports
	medications *MockMedications
	contacts    *MockContacts
	db          *MockPinger
	redis       *MockPinger
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	api := &testAPI{
		router:      gin.New(),
		adherence:   new(MockAdherence),
		doses:       new(MockDoses),
		engine:      new(MockEngine),
		reports:     new(MockReports),
		medications: new(MockMedications),
		contacts:    new(MockContacts),
		db:          new(MockPinger),
		redis:       new(MockPinger),
	}

	RegisterRoutes(api.router, Handlers{
		Adherence:  NewAdherenceHandler(api.adherence, logger),
		Doses:      NewDoseHandler(api.doses, logger),
		Engine:     NewEngineHandler(api.engine, api.engine, logger),
		Reports:    NewReportHandler(api.reports, logger),
		Medication: NewMedicationHandler(api.medications, logger),
		Contacts:   NewContactHandler(api.contacts, api.contacts, api.contacts, logger),
		Health: NewHealthHandler(
			map[string]Pinger{"database": api.db},
			map[string]Pinger{"redis": api.redis},
			"test",
			logger,
		),
	})

	t.Cleanup(func() {
		api.adherence.AssertExpectations(t)
		api.doses.AssertExpectations(t)
		api.engine.AssertExpectations(t)
		api.reports.AssertExpectations(t)
		api.medications.AssertExpectations(t)
		api.contacts.AssertExpectations(t)
	})
	return api
}

func (a *testAPI) do(method, path, body string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestDoseHandler_MarkTaken(t *testing.T) {
	takenAt := time.Date(2026, 10, 15, 8, 12, 0, 0, time.UTC)

	tests := []struct {
		name       string
		body       string
		wantTaken  *time.Time
		err        error
		wantStatus int
		wantCode   string
	}{
		{"without body uses now", "", nil, nil, http.StatusOK, ""},
		{"explicit taken_at", `{"taken_at":"2026-10-15T08:12:00Z"}`, &takenAt, nil, http.StatusOK, ""},
		{"unknown dose", "", nil, service.ErrDoseNotFound, http.StatusNotFound, CodeNotFound},
		{"archived dose", "", nil, service.ErrDoseArchived, http.StatusConflict, CodeConflict},
		{"storage failure", "", nil, errors.New("pool closed"), http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t)
			dose := &model.DoseInstance{ID: testDoseID, UserID: testUserID, Status: model.DoseStatusTaken, TakenAt: &takenAt}

			matchTaken := mock.MatchedBy(func(got *time.Time) bool {
				if tt.wantTaken == nil {
					return got == nil
				}
				return got != nil && got.Equal(*tt.wantTaken)
			})
			if tt.err != nil {
				api.doses.On("MarkTaken", mock.Anything, testDoseID, matchTaken, mock.Anything).Return(nil, tt.err)
			} else {
				api.doses.On("MarkTaken", mock.Anything, testDoseID, matchTaken, mock.Anything).Return(dose, nil)
			}

			w := api.do("POST", "/api/v1/doses/"+testDoseID+"/taken", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)

			if tt.wantCode != "" {
				var resp ErrorResponse
				decode(t, w, &resp)
				assert.Equal(t, tt.wantCode, resp.Code)
				return
			}
			var got model.DoseInstance
			decode(t, w, &got)
			assert.Equal(t, model.DoseStatusTaken, got.Status)
		})
	}
}

func TestDoseHandler_Reads(t *testing.T) {
	api := newTestAPI(t)
	doses := []model.DoseInstance{{ID: testDoseID, UserID: testUserID, Status: model.DoseStatusPending}}

	api.doses.On("GetToday", mock.Anything, testUserID).Return(doses, nil).Once()
	api.doses.On("GetUpcoming", mock.Anything, testUserID, 24*time.Hour).Return(nil, nil).Once()
	api.doses.On("GetUpcoming", mock.Anything, testUserID, 6*time.Hour).Return(doses, nil).Once()

	w := api.do("GET", "/api/v1/users/"+testUserID+"/doses/today", "")
	require.Equal(t, http.StatusOK, w.Code)
	var today struct {
		Doses []model.DoseInstance `json:"doses"`
	}
	decode(t, w, &today)
	assert.Len(t, today.Doses, 1)

	w = api.do("GET", "/api/v1/users/"+testUserID+"/doses/upcoming", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"doses":[]}`, w.Body.String())

	w = api.do("GET", "/api/v1/users/"+testUserID+"/doses/upcoming?hours=6", "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAdherenceHandler_GetAdherence(t *testing.T) {
	window := &model.AdherenceWindow{Scheduled: 4, Taken: 3, Missed: 1, Percentage: 75}
	from := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 10, 8, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		query string
		setup func(m *MockAdherence)
	}{
		{"default is week", "", func(m *MockAdherence) { m.On("ThisWeek", mock.Anything, testUserID).Return(window, nil) }},
		{"today", "?window=today", func(m *MockAdherence) { m.On("Today", mock.Anything, testUserID).Return(window, nil) }},
		{"month", "?window=month", func(m *MockAdherence) { m.On("ThisMonth", mock.Anything, testUserID).Return(window, nil) }},
		{"custom", "?window=custom&from=2026-10-01T00:00:00Z&to=2026-10-08T00:00:00Z", func(m *MockAdherence) {
			m.On("ComputeAdherence", mock.Anything, testUserID,
				mock.MatchedBy(func(t time.Time) bool { return t.Equal(from) }),
				mock.MatchedBy(func(t time.Time) bool { return t.Equal(to) }),
			).Return(window, nil)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t)
			tt.setup(api.adherence)

			w := api.do("GET", "/api/v1/users/"+testUserID+"/adherence"+tt.query, "")
			require.Equal(t, http.StatusOK, w.Code)

			var got model.AdherenceWindow
			decode(t, w, &got)
			assert.Equal(t, 75.0, got.Percentage)
			assert.Equal(t, 4, got.Scheduled)
		})
	}
}

func TestAdherenceHandler_InvalidCustomWindow(t *testing.T) {
	api := newTestAPI(t)
	api.adherence.On("ComputeAdherence", mock.Anything, testUserID, mock.Anything, mock.Anything).
		Return(nil, service.ErrInvalidWindow)

	w := api.do("GET", "/api/v1/users/"+testUserID+"/adherence?window=custom&from=2026-10-08T00:00:00Z&to=2026-10-01T00:00:00Z", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdherenceHandler_GetStreak(t *testing.T) {
	api := newTestAPI(t)
	api.adherence.On("ComputeStreak", mock.Anything, testUserID).Return(5, nil)

	w := api.do("GET", "/api/v1/users/"+testUserID+"/adherence/streak", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"`+testUserID+`","streak_days":5}`, w.Body.String())
}

func TestEngineHandler_Trigger(t *testing.T) {
	t.Run("passes user and target date through", func(t *testing.T) {
		api := newTestAPI(t)
		api.engine.On("Run", mock.Anything, mock.MatchedBy(func(tr service.Trigger) bool {
			return tr.Mode == service.ModeGenerate &&
				tr.UserID == testUserID &&
				tr.TargetDate != nil && tr.TargetDate.Format(time.DateOnly) == "2026-10-16"
		})).Return(&service.RunSummary{Mode: service.ModeGenerate, Users: 1, DosesCreated: 2}, nil)

		w := api.do("POST", "/api/v1/engine/trigger",
			`{"mode":"generate","user_id":"`+testUserID+`","target_date":"2026-10-16"}`)
		require.Equal(t, http.StatusOK, w.Code)

		var summary service.RunSummary
		decode(t, w, &summary)
		assert.Equal(t, 2, summary.DosesCreated)
	})

	t.Run("batch sweep", func(t *testing.T) {
		api := newTestAPI(t)
		api.engine.On("Run", mock.Anything, service.Trigger{Mode: service.ModeSweep}).
			Return(&service.RunSummary{Mode: service.ModeSweep, DosesMissed: 3}, nil)

		w := api.do("POST", "/api/v1/engine/trigger", `{"mode":"sweep"}`)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("debounced trigger is accepted", func(t *testing.T) {
		api := newTestAPI(t)
		api.engine.On("Run", mock.Anything, mock.Anything).
			Return(&service.RunSummary{Mode: service.ModeReport, Debounced: true}, nil)

		w := api.do("POST", "/api/v1/engine/trigger", `{"mode":"report"}`)
		assert.Equal(t, http.StatusAccepted, w.Code)
	})

	t.Run("run errors surface as 500", func(t *testing.T) {
		api := newTestAPI(t)
		api.engine.On("Run", mock.Anything, mock.Anything).
			Return(&service.RunSummary{Mode: service.ModeSweep}, errors.New("failed to archive"))

		w := api.do("POST", "/api/v1/engine/trigger", `{"mode":"sweep"}`)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestEngineHandler_RaiseEmergency(t *testing.T) {
	api := newTestAPI(t)
	api.engine.On("Raise", mock.Anything, testUserID, "chest pain").
		Return(&service.EmergencyResult{CaregiversNotified: 2}, nil)

	w := api.do("POST", "/api/v1/users/"+testUserID+"/emergency", `{"message":"chest pain"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var result service.EmergencyResult
	decode(t, w, &result)
	assert.Equal(t, 2, result.CaregiversNotified)
}

func TestEngineHandler_RaiseEmergencyLeavesLoggingToService(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.DebugLevel)

	emergency := new(MockEngine)
	emergency.On("Raise", mock.Anything, testUserID, "fell down").
		Return(&service.EmergencyResult{CaregiversNotified: 1}, nil)

	router := gin.New()
	h := NewEngineHandler(emergency, emergency, zap.New(core))
	router.POST("/users/:userId/emergency", h.RaiseEmergency)

	req := httptest.NewRequest("POST", "/users/"+testUserID+"/emergency", strings.NewReader(`{"message":"fell down"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Zero(t, logs.Len())
	emergency.AssertExpectations(t)
}

func TestReportHandler(t *testing.T) {
	reportID := "3c9a1f2e-7d4b-4e6a-9b8c-1d2e3f4a5b6c"

	t.Run("generate", func(t *testing.T) {
		api := newTestAPI(t)
		api.reports.On("GenerateReport", mock.Anything, testUserID).
			Return(&model.AdherenceReport{ID: reportID, UserID: testUserID}, nil)

		w := api.do("POST", "/api/v1/users/"+testUserID+"/reports", "")
		require.Equal(t, http.StatusCreated, w.Code)
		var got model.AdherenceReport
		decode(t, w, &got)
		assert.Equal(t, reportID, got.ID)
	})

	t.Run("unknown user", func(t *testing.T) {
		api := newTestAPI(t)
		api.reports.On("GenerateReport", mock.Anything, testUserID).Return(nil, service.ErrUserNotFound)

		w := api.do("POST", "/api/v1/users/"+testUserID+"/reports", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("download", func(t *testing.T) {
		api := newTestAPI(t)
		document := []byte("%PDF-1.3 test")
		api.reports.On("GetReport", mock.Anything, reportID).
			Return(&model.AdherenceReport{ID: reportID}, document, nil)

		w := api.do("GET", "/api/v1/reports/"+reportID, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), "adherence_report_"+reportID+".pdf")
		assert.Equal(t, document, w.Body.Bytes())
	})

	t.Run("download missing", func(t *testing.T) {
		api := newTestAPI(t)
		api.reports.On("GetReport", mock.Anything, reportID).Return(nil, nil, service.ErrReportNotFound)

		w := api.do("GET", "/api/v1/reports/"+reportID, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestMedicationHandler(t *testing.T) {
	medID := "9d8c7b6a-5f4e-4d3c-8b2a-1f0e9d8c7b6a"

	t.Run("create", func(t *testing.T) {
		api := newTestAPI(t)
		api.medications.On("AddMedication", mock.Anything, testUserID, mock.MatchedBy(func(m *model.Medication) bool {
			return m.Name == "Lisinopril" &&
				len(m.Times) == 2 &&
				m.StartDate.Format(time.DateOnly) == "2026-10-01" &&
				m.EndDate == nil
		}), mock.Anything).Run(func(args mock.Arguments) {
			med := args.Get(2).(*model.Medication)
			med.ID = medID
			med.UserID = testUserID
			med.Active = true
		}).Return(nil)

		w := api.do("POST", "/api/v1/users/"+testUserID+"/medications",
			`{"name":"Lisinopril","dosage":"10mg","times":["08:00","20:00"],"start_date":"2026-10-01"}`)
		require.Equal(t, http.StatusCreated, w.Code)

		var got MedicationResponse
		decode(t, w, &got)
		assert.Equal(t, medID, got.ID)
		assert.True(t, got.Active)
		assert.Equal(t, "2026-10-01", got.StartDate.Format(time.DateOnly))
	})

	t.Run("create with invalid time", func(t *testing.T) {
		api := newTestAPI(t)
		api.medications.On("AddMedication", mock.Anything, testUserID, mock.Anything, mock.Anything).
			Return(model.ErrInvalidTimeOfDay)

		w := api.do("POST", "/api/v1/users/"+testUserID+"/medications",
			`{"name":"Lisinopril","dosage":"10mg","times":["25:00"],"start_date":"2026-10-01"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("list", func(t *testing.T) {
		api := newTestAPI(t)
		api.medications.On("ListMedications", mock.Anything, testUserID).
			Return([]model.Medication{{ID: medID, Name: "Lisinopril", Times: []string{"08:00"}}}, nil)

		w := api.do("GET", "/api/v1/users/"+testUserID+"/medications", "")
		require.Equal(t, http.StatusOK, w.Code)
		var got struct {
			Medications []MedicationResponse `json:"medications"`
		}
		decode(t, w, &got)
		require.Len(t, got.Medications, 1)
		assert.Equal(t, "Lisinopril", got.Medications[0].Name)
	})

	t.Run("update missing", func(t *testing.T) {
		api := newTestAPI(t)
		api.medications.On("UpdateMedication", mock.Anything, medID, mock.Anything, mock.Anything).
			Return(service.ErrMedicationNotFound)

		w := api.do("PUT", "/api/v1/medications/"+medID,
			`{"name":"Lisinopril","dosage":"20mg","times":["09:00"],"start_date":"2026-10-01"}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("delete", func(t *testing.T) {
		api := newTestAPI(t)
		api.medications.On("DeactivateMedication", mock.Anything, medID, mock.Anything).Return(nil)

		w := api.do("DELETE", "/api/v1/medications/"+medID, "")
		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}

func TestContactHandler_Caregivers(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantEnabled bool
	}{
		{"enabled by default", `{"name":"Anna","email":"anna@example.com","relationship":"daughter"}`, true},
		{"explicitly disabled", `{"name":"Anna","phone":"+15550100","notifications_enabled":false}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t)
			api.contacts.On("AddCaregiver", mock.Anything, testUserID, mock.MatchedBy(func(c *model.Caregiver) bool {
				return c.Name == "Anna" && c.NotificationsEnabled == tt.wantEnabled
			}), mock.Anything).Return(nil)

			w := api.do("POST", "/api/v1/users/"+testUserID+"/caregivers", tt.body)
			assert.Equal(t, http.StatusCreated, w.Code)
		})
	}

	t.Run("missing contact is rejected", func(t *testing.T) {
		api := newTestAPI(t)
		api.contacts.On("AddCaregiver", mock.Anything, testUserID, mock.Anything, mock.Anything).
			Return(service.ErrValidation)

		w := api.do("POST", "/api/v1/users/"+testUserID+"/caregivers", `{"name":"Anna"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("list", func(t *testing.T) {
		api := newTestAPI(t)
		api.contacts.On("ListCaregivers", mock.Anything, testUserID).Return(nil, nil)

		w := api.do("GET", "/api/v1/users/"+testUserID+"/caregivers", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"caregivers":[]}`, w.Body.String())
	})
}

func TestContactHandler_Preferences(t *testing.T) {
	t.Run("get defaults", func(t *testing.T) {
		api := newTestAPI(t)
		api.contacts.On("Resolve", mock.Anything, testUserID).
			Return(model.DefaultNotificationPreference(testUserID), nil)

		w := api.do("GET", "/api/v1/users/"+testUserID+"/preferences", "")
		require.Equal(t, http.StatusOK, w.Code)
		var got model.NotificationPreference
		decode(t, w, &got)
		assert.True(t, got.Reminders)
		assert.False(t, got.SMSEnabled)
	})

	t.Run("put", func(t *testing.T) {
		api := newTestAPI(t)
		api.contacts.On("Update", mock.Anything, mock.MatchedBy(func(p *model.NotificationPreference) bool {
			return p.UserID == testUserID &&
				p.SMSEnabled &&
				p.QuietStart != nil && *p.QuietStart == "22:00" &&
				p.QuietEnd != nil && *p.QuietEnd == "07:00"
		})).Return(nil)

		w := api.do("PUT", "/api/v1/users/"+testUserID+"/preferences",
			`{"reminders":true,"sms_enabled":true,"quiet_start":"22:00","quiet_end":"07:00","critical_override":true}`)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("put invalid quiet hours", func(t *testing.T) {
		api := newTestAPI(t)
		api.contacts.On("Update", mock.Anything, mock.Anything).Return(model.ErrInvalidTimeOfDay)

		w := api.do("PUT", "/api/v1/users/"+testUserID+"/preferences", `{"quiet_start":"22:99","quiet_end":"07:00"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestContactHandler_ListNotifications(t *testing.T) {
	api := newTestAPI(t)
	api.contacts.On("FindByUserID", mock.Anything, testUserID, defaultNotificationLimit).
		Return([]model.Notification{{ID: "n1", Category: model.CategoryReminder}}, nil).Once()
	api.contacts.On("FindByUserID", mock.Anything, testUserID, 10).Return(nil, nil).Once()

	w := api.do("GET", "/api/v1/users/"+testUserID+"/notifications", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do("GET", "/api/v1/users/"+testUserID+"/notifications?limit=10", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"notifications":[]}`, w.Body.String())
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		dbErr      error
		redisErr   error
		wantStatus int
		want       string
	}{
		{"all connected", nil, nil, http.StatusOK, "healthy"},
		{"redis down degrades", nil, errors.New("dial tcp"), http.StatusOK, "degraded"},
		{"database down", errors.New("dial tcp"), nil, http.StatusServiceUnavailable, "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t)
			api.db.On("Ping", mock.Anything).Return(tt.dbErr)
			api.redis.On("Ping", mock.Anything).Return(tt.redisErr)

			w := api.do("GET", "/health", "")
			assert.Equal(t, tt.wantStatus, w.Code)

			var body map[string]interface{}
			decode(t, w, &body)
			assert.Equal(t, tt.want, body["status"])
		})
	}
}
