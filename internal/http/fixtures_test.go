package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"educamp/internal/domain"
	"educamp/internal/payment"
	"educamp/internal/repository"
	"educamp/internal/service"
	"educamp/internal/session"
)

type memStore struct {
	mu          sync.Mutex
	users       map[string]domain.User
	students    map[string]domain.Student
	teachers    map[string]string
	classes     map[string]domain.Class
	payments    map[string]domain.Payment
	enrollments []domain.Enrollment
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[string]domain.User),
		students: make(map[string]domain.Student),
		teachers: make(map[string]string),
		classes:  make(map[string]domain.Class),
		payments: make(map[string]domain.Payment),
	}
}

type memUsers struct{ s *memStore }

func (m memUsers) GetByID(_ context.Context, id string) (domain.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (m memUsers) GetByEmail(_ context.Context, email string) (domain.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, u := range m.s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (m memUsers) LoadPrincipal(ctx context.Context, userID string) (domain.Principal, error) {
	u, err := m.GetByID(ctx, userID)
	if err != nil {
		return domain.Principal{}, err
	}
	m.s.mu.Lock()
	st := m.s.students[userID]
	emp := m.s.teachers[userID]
	m.s.mu.Unlock()
	return repository.PrincipalFromUser(u, st.ID, st.StudentNumber, emp), nil
}

type memStudents struct{ s *memStore }

func (m memStudents) GetByUserID(_ context.Context, userID string) (domain.Student, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	st, ok := m.s.students[userID]
	if !ok {
		return domain.Student{}, domain.ErrNotFound
	}
	return st, nil
}

type memClasses struct{ s *memStore }

func (m memClasses) GetByID(_ context.Context, id string) (domain.Class, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.classes[id]
	if !ok {
		return domain.Class{}, domain.ErrNotFound
	}
	return c, nil
}

type memPayments struct{ s *memStore }

func (m memPayments) GetByID(_ context.Context, id string) (domain.Payment, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p, ok := m.s.payments[id]
	if !ok {
		return domain.Payment{}, domain.ErrNotFound
	}
	return p, nil
}

func (m memPayments) GetByProviderOrderID(_ context.Context, orderID string) (domain.Payment, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, p := range m.s.payments {
		if p.ProviderOrderID == orderID {
			return p, nil
		}
	}
	return domain.Payment{}, domain.ErrNotFound
}

func (m memPayments) MarkCompleted(_ context.Context, id, userID, transactionID string) (domain.Payment, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p, ok := m.s.payments[id]
	if !ok {
		return domain.Payment{}, domain.ErrNotFound
	}
	p.Completed = true
	if p.UserID == "" {
		p.UserID = userID
	}
	p.ProviderTransactionID = transactionID
	m.s.payments[id] = p
	return p, nil
}

func (m memPayments) ListByUser(_ context.Context, userID string) ([]domain.Payment, error) {
	return nil, nil
}

type memEnrollments struct{ s *memStore }

func (m memEnrollments) find(match func(domain.Enrollment) bool) (domain.Enrollment, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, e := range m.s.enrollments {
		if match(e) {
			return e, nil
		}
	}
	return domain.Enrollment{}, domain.ErrNotFound
}

func (m memEnrollments) filter(match func(domain.Enrollment) bool) []domain.Enrollment {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []domain.Enrollment
	for _, e := range m.s.enrollments {
		if match(e) {
			out = append(out, e)
		}
	}
	return out
}

func (m memEnrollments) GetByID(_ context.Context, id string) (domain.Enrollment, error) {
	return m.find(func(e domain.Enrollment) bool { return e.ID == id })
}

func (m memEnrollments) GetByPaymentID(_ context.Context, paymentID string) (domain.Enrollment, error) {
	return m.find(func(e domain.Enrollment) bool { return e.PaymentID != nil && *e.PaymentID == paymentID })
}

func (m memEnrollments) GetByStudentAndClass(_ context.Context, studentID, classID string) (domain.Enrollment, error) {
	return m.find(func(e domain.Enrollment) bool { return e.StudentID == studentID && e.ClassID == classID })
}

func (m memEnrollments) ListByStudent(_ context.Context, studentID string) ([]domain.Enrollment, error) {
	return m.filter(func(e domain.Enrollment) bool { return e.StudentID == studentID }), nil
}

func (m memEnrollments) ListByClass(_ context.Context, classID string) ([]domain.Enrollment, error) {
	return m.filter(func(e domain.Enrollment) bool { return e.ClassID == classID }), nil
}

func (m memEnrollments) CreateForPayment(_ context.Context, e domain.Enrollment) (domain.Enrollment, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, row := range m.s.enrollments {
		if row.PaymentID != nil && e.PaymentID != nil && *row.PaymentID == *e.PaymentID {
			return domain.Enrollment{}, domain.ErrConflict
		}
	}
	m.s.enrollments = append(m.s.enrollments, e)
	if e.PaymentID != nil {
		p := m.s.payments[*e.PaymentID]
		id, at := e.ID, e.EnrolledAt
		p.EnrollmentID, p.EnrolledAt = &id, &at
		m.s.payments[*e.PaymentID] = p
	}
	return e, nil
}

type testApp struct {
	router   *gin.Engine
	store    *memStore
	registry *session.Registry
	verifier *service.CallbackVerifier
	provider *payment.MockProvider
}

const testPassword = "s3cret!"

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	store := newMemStore()
	for _, u := range []domain.User{
		{ID: "u-ana", Email: "ana@example.com", FirstName: "Ana", Role: domain.RoleStudent, IsActive: true},
		{ID: "u-bob", Email: "bob@example.com", FirstName: "Bob", Role: domain.RoleStudent, IsActive: true},
		{ID: "u-tina", Email: "tina@example.com", FirstName: "Tina", Role: domain.RoleTeacher, IsActive: true},
	} {
		u.PasswordHash = string(hash)
		store.users[u.ID] = u
	}
	store.students["u-ana"] = domain.Student{ID: "s-ana", UserID: "u-ana", StudentNumber: "ST-1"}
	store.students["u-bob"] = domain.Student{ID: "s-bob", UserID: "u-bob", StudentNumber: "ST-2"}
	store.teachers["u-tina"] = "EMP-1"
	store.classes["c-1"] = domain.Class{ID: "c-1", Title: "Algebra", Fee: 2500, Currency: "USD"}
	store.payments["p-ana"] = domain.Payment{ID: "p-ana", UserID: "u-ana", ClassID: "c-1", Amount: 2500, Currency: "USD", Completed: true}
	store.payments["p-pending"] = domain.Payment{ID: "p-pending", UserID: "u-ana", ClassID: "c-1", Amount: 2500, Currency: "USD"}
	store.payments["p-order"] = domain.Payment{ID: "p-order", ClassID: "c-1", Amount: 2500, Currency: "USD", ProviderOrderID: "ORDER-1"}
	store.payments["p-bob"] = domain.Payment{ID: "p-bob", UserID: "u-bob", ClassID: "c-1", Amount: 2500, Currency: "USD", Completed: true}

	logger := zap.NewNop()
	users := memUsers{store}
	registry := session.NewRegistry(users, logger, session.WithSweepInterval(0))
	t.Cleanup(func() { _ = registry.Close() })

	reconciler := service.NewEnrollmentReconciler(logger, memEnrollments{store}, memStudents{store}, memClasses{store}, memPayments{store})
	provider := &payment.MockProvider{Result: payment.Capture{TransactionID: "CAP-1", Completed: true, Amount: 2500, Currency: "USD"}}
	verifier := service.NewCallbackVerifier("callback-secret", "")

	authH := NewAuthHandler(logger, service.NewAuthService(logger, users, registry, nil), CookieConfig{MaxAge: registry.TTL()})
	paymentH := NewPaymentHandler(logger, service.NewPaymentService(logger, provider, memPayments{store}, reconciler), verifier)
	enrollmentH := NewEnrollmentHandler(logger, reconciler)

	return &testApp{
		router:   NewRouter(logger, registry, authH, paymentH, enrollmentH),
		store:    store,
		registry: registry,
		verifier: verifier,
		provider: provider,
	}
}

func performRequest(r http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

// login devuelve el token de sesion emitido para el email.
func (a *testApp) login(t *testing.T, email string) string {
	t.Helper()
	rec := performRequest(a.router, http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": testPassword})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d: %s", email, rec.Code, rec.Body.String())
	}
	return rec.Header().Get(SessionHeaderName)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v (%s)", err, rec.Body.String())
	}
	return body
}
