package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"tourdesk/internal/middleware"
	"tourdesk/internal/repository"
	"tourdesk/internal/service"
	"tourdesk/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := RegisterValidators(); err != nil {
		panic(err)
	}
}

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("agent %w", service.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: bad", service.ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("%w: taken", service.ErrConflict), http.StatusConflict},
		{service.ErrForbidden, http.StatusForbidden},
		{service.ErrUnauthorized, http.StatusUnauthorized},
		{fmt.Errorf("checkout: %w", service.ErrUpstream), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusOf(tc.err); got != tc.want {
			t.Errorf("%v: got %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestDomainValidators(t *testing.T) {
	for _, pin := range []string{"1234", "482193"} {
		if err := binding.Validator.ValidateStruct(service.PINRequest{PIN: pin}); err != nil {
			t.Errorf("pin %q rejected: %v", pin, err)
		}
	}
	for _, pin := range []string{"123", "1234567", "12a4"} {
		if err := binding.Validator.ValidateStruct(service.PINRequest{PIN: pin}); err == nil {
			t.Errorf("pin %q accepted", pin)
		}
	}

	sel := service.InvoiceSelectionRequest{BookingIDs: []string{uuid.NewString()}}
	for days, valid := range map[int]bool{0: true, 14: true, 60: true, 10: false, 90: false} {
		sel.DueDays = days
		err := binding.Validator.ValidateStruct(sel)
		if valid && err != nil {
			t.Errorf("due_days %d rejected: %v", days, err)
		}
		if !valid && err == nil {
			t.Errorf("due_days %d accepted", days)
		}
	}
}

type apiResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	db := testutil.NewDB(t)
	tx := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	companyRepo := repository.NewCompanyRepository(db)
	agentRepo := repository.NewAgentRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	programRepo := repository.NewProgramRepository(db)

	auth := middleware.NewAuth("test-secret", false)
	userService := service.NewUserService(userRepo, companyRepo, agentRepo, auditRepo, tx, "test-secret")
	programService := service.NewProgramService(programRepo)
	availabilityService := service.NewAvailabilityService(repository.NewAvailabilityRepository(db), programRepo, auditRepo, tx)

	router := gin.New()
	api := router.Group("")
	NewUserHandler(userService, auth, "UTC").RegisterRoutes(api)
	NewProgramHandler(programService, availabilityService, auth).RegisterRoutes(api)
	return &testServer{t: t, router: router}
}

func (s *testServer) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, apiResponse) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var res apiResponse
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
			s.t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w, res
}

func (s *testServer) signup(slug string) string {
	s.t.Helper()
	w, _ := s.do(http.MethodPost, "/register", "", gin.H{
		"company_name": "Sea Tours",
		"slug":         slug,
		"username":     "owner-" + slug,
		"email":        slug + "@example.com",
		"password":     "correct-horse",
	})
	if w.Code != http.StatusCreated {
		s.t.Fatalf("register: %d %s", w.Code, w.Body.String())
	}

	w, res := s.do(http.MethodPost, "/login", "", gin.H{"email": slug + "@example.com", "password": "correct-horse"})
	if w.Code != http.StatusOK {
		s.t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}
	var tok service.TokenResponse
	if err := json.Unmarshal(res.Data, &tok); err != nil || tok.Token == "" {
		s.t.Fatalf("token: %v %s", err, res.Data)
	}
	return tok.Token
}

func TestLoginSetsCookie(t *testing.T) {
	s := newTestServer(t)
	s.signup("sea-tours")

	w, _ := s.do(http.MethodPost, "/login", "", gin.H{"email": "sea-tours@example.com", "password": "correct-horse"})
	found := false
	for _, c := range w.Result().Cookies() {
		if c.Name == "access_token" && c.Value != "" && c.HttpOnly {
			found = true
		}
	}
	if !found {
		t.Fatalf("no access_token cookie in %v", w.Result().Cookies())
	}

	w, res := s.do(http.MethodPost, "/login", "", gin.H{"email": "sea-tours@example.com", "password": "wrong-password"})
	if w.Code != http.StatusUnauthorized || res.Status != "error" {
		t.Fatalf("wrong password: %d %+v", w.Code, res)
	}
}

func TestRegisterDuplicateSlugConflicts(t *testing.T) {
	s := newTestServer(t)
	s.signup("sea-tours")

	w, _ := s.do(http.MethodPost, "/register", "", gin.H{
		"company_name": "Other",
		"slug":         "sea-tours",
		"username":     "other",
		"email":        "other@example.com",
		"password":     "correct-horse",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("got %d, want 409", w.Code)
	}

	w, _ = s.do(http.MethodPost, "/register", "", gin.H{"slug": "x"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("incomplete payload: got %d, want 400", w.Code)
	}
}

func TestProgramRoutes(t *testing.T) {
	s := newTestServer(t)
	token := s.signup("sea-tours")

	if w, _ := s.do(http.MethodGet, "/api/programs", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous list: got %d", w.Code)
	}

	w, res := s.do(http.MethodPost, "/api/programs", token, gin.H{
		"code":          "ISL",
		"name":          "Island hopping",
		"pricing_type":  "single",
		"selling_price": "1500",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	var program struct {
		ID   uuid.UUID `json:"id"`
		Code string    `json:"code"`
	}
	if err := json.Unmarshal(res.Data, &program); err != nil || program.Code != "ISL" {
		t.Fatalf("created program %s: %v", res.Data, err)
	}

	w, res = s.do(http.MethodGet, "/api/programs", token, nil)
	var list []json.RawMessage
	if w.Code != http.StatusOK || json.Unmarshal(res.Data, &list) != nil || len(list) != 1 {
		t.Fatalf("list: %d %s", w.Code, w.Body.String())
	}

	if w, _ := s.do(http.MethodGet, "/api/programs/not-a-uuid", token, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id: got %d", w.Code)
	}
	if w, _ := s.do(http.MethodGet, "/api/programs/"+uuid.NewString(), token, nil); w.Code != http.StatusNotFound {
		t.Fatalf("missing program: got %d", w.Code)
	}

	path := "/api/programs/" + program.ID.String() + "/availability"
	if w, _ := s.do(http.MethodGet, path+"?month=13", token, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad month: got %d", w.Code)
	}
	w, res = s.do(http.MethodGet, path+"?year=2026&month=2", token, nil)
	var days []json.RawMessage
	if w.Code != http.StatusOK || json.Unmarshal(res.Data, &days) != nil || len(days) != 28 {
		t.Fatalf("calendar: %d %s", w.Code, w.Body.String())
	}
}

func TestPINRoutes(t *testing.T) {
	s := newTestServer(t)
	token := s.signup("sea-tours")

	if w, _ := s.do(http.MethodPut, "/me/pin", token, gin.H{"pin": "12a"}); w.Code != http.StatusBadRequest {
		t.Fatalf("malformed pin: got %d", w.Code)
	}
	if w, _ := s.do(http.MethodPut, "/me/pin", token, gin.H{"pin": "4821"}); w.Code != http.StatusOK {
		t.Fatalf("set pin: got %d", w.Code)
	}
	if w, _ := s.do(http.MethodPost, "/me/pin/verify", token, gin.H{"pin": "0000"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong pin: got %d", w.Code)
	}
	if w, _ := s.do(http.MethodPost, "/me/pin/verify", token, gin.H{"pin": "4821"}); w.Code != http.StatusOK {
		t.Fatalf("right pin: got %d", w.Code)
	}
}

func TestTeamRoutesRequireManager(t *testing.T) {
	s := newTestServer(t)
	token := s.signup("sea-tours")

	w, _ := s.do(http.MethodPost, "/api/settings/team", token, gin.H{
		"username": "staffer",
		"email":    "staff@example.com",
		"password": "correct-horse",
		"role":     "staff",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create member: %d %s", w.Code, w.Body.String())
	}

	w, res := s.do(http.MethodPost, "/login", "", gin.H{"email": "staff@example.com", "password": "correct-horse"})
	var tok service.TokenResponse
	if w.Code != http.StatusOK || json.Unmarshal(res.Data, &tok) != nil {
		t.Fatalf("staff login: %d", w.Code)
	}
	if w, _ := s.do(http.MethodGet, "/api/settings/team", tok.Token, nil); w.Code != http.StatusForbidden {
		t.Fatalf("staff team list: got %d, want 403", w.Code)
	}
	if w, _ := s.do(http.MethodGet, "/api/programs", tok.Token, nil); w.Code != http.StatusOK {
		t.Fatalf("staff program list: got %d", w.Code)
	}
}
