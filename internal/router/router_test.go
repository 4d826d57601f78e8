package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/classcard/internal/config"
	"github.com/stemsi/classcard/internal/handler"
	"github.com/stemsi/classcard/internal/response"
	"github.com/stemsi/classcard/internal/service"
	"github.com/stemsi/classcard/internal/service/servicetest"
	"github.com/stemsi/classcard/internal/validator"
	ws "github.com/stemsi/classcard/internal/websocket"
)

type testApp struct {
	router *gin.Engine
	token  string
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	return newTestAppWithRedis(t, nil)
}

// newTestAppWithRedis wires the app to rdb, enabling the summary cache and
// live card updates when it is non-nil.
func newTestAppWithRedis(t *testing.T, rdb *redis.Client) *testApp {
	t.Helper()
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := &config.Config{GinMode: gin.TestMode, JWTSecret: "test-secret", JWTExpiry: time.Hour}
	log := zerolog.New(io.Discard)
	store := servicetest.NewStore()

	authService := service.NewAuthService(cfg)
	classService := service.NewClassService(store.Classes(), store.Students(), rdb, time.Minute, log)

	handlers := &Handlers{
		Card:  handler.NewCardHandler(classService, log),
		Class: handler.NewClassHandler(classService),
		WS:    handler.NewWSHandler(classService, log, nil),
	}

	token, err := authService.GenerateAdminToken("tester")
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	return &testApp{router: SetupRouter(ctx, authService, handlers, cfg, log), token: token}
}

func (a *testApp) do(t *testing.T, method, path string, body interface{}, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) (map[string]json.RawMessage, *response.ErrorBody) {
	t.Helper()
	var env struct {
		Data  map[string]json.RawMessage `json:"data"`
		Error *response.ErrorBody        `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return env.Data, env.Error
}

func createClass(t *testing.T, a *testApp, grade, major string, group int) int {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/v1/admin/classes", map[string]interface{}{
		"grade_level": grade, "major_code": major, "group_number": group,
	}, true)
	if w.Code != http.StatusCreated {
		t.Fatalf("create class: %d %s", w.Code, w.Body.String())
	}
	data, _ := decode(t, w)
	var class struct {
		ID int `json:"id"`
	}
	if err := json.Unmarshal(data["class"], &class); err != nil {
		t.Fatalf("decode class: %v", err)
	}
	return class.ID
}

func enroll(t *testing.T, a *testApp, classID int, nis, name string) int {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/v1/admin/classes/"+strconv.Itoa(classID)+"/students",
		map[string]string{"nis": nis, "name": name}, true)
	if w.Code != http.StatusCreated {
		t.Fatalf("enroll: %d %s", w.Code, w.Body.String())
	}
	data, _ := decode(t, w)
	var student struct {
		ID int `json:"id"`
	}
	_ = json.Unmarshal(data["student"], &student)
	return student.ID
}

func TestHealth(t *testing.T) {
	a := newTestApp(t)
	w := a.do(t, http.MethodGet, "/health", nil, false)
	if w.Code != http.StatusOK || w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("health: %d %v", w.Code, w.Header())
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	a := newTestApp(t)
	w := a.do(t, http.MethodPost, "/api/v1/admin/classes", map[string]interface{}{}, false)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestCardLifecycle(t *testing.T) {
	a := newTestApp(t)
	id := createClass(t, a, "X", "RPL", 1)

	card := a.do(t, http.MethodGet, "/classes/"+strconv.Itoa(id)+"/card", nil, false)
	if card.Code != http.StatusOK || !strings.Contains(card.Body.String(), ">0 students<") {
		t.Fatalf("empty card: %d %s", card.Code, card.Body.String())
	}
	if !strings.Contains(card.Body.String(), ">X RPL 1</h3>") {
		t.Fatalf("heading missing: %s", card.Body.String())
	}
	if card.Header().Get("Cache-Control") != "public, max-age=30" {
		t.Fatalf("Cache-Control = %q", card.Header().Get("Cache-Control"))
	}

	studentID := enroll(t, a, id, "0001", "Budi Santoso")
	card = a.do(t, http.MethodGet, "/classes/"+strconv.Itoa(id)+"/card", nil, false)
	if !strings.Contains(card.Body.String(), ">1 student<") {
		t.Fatalf("singular card: %s", card.Body.String())
	}

	enroll(t, a, id, "0002", "Siti Aminah")
	card = a.do(t, http.MethodGet, "/classes/"+strconv.Itoa(id)+"/card", nil, false)
	if !strings.Contains(card.Body.String(), ">2 students<") {
		t.Fatalf("plural card: %s", card.Body.String())
	}

	del := a.do(t, http.MethodDelete, "/api/v1/admin/classes/"+strconv.Itoa(id), nil, true)
	if _, errBody := decode(t, del); del.Code != http.StatusConflict || errBody.Code != response.ErrDependencyExists {
		t.Fatalf("delete with students: %d %s", del.Code, del.Body.String())
	}

	rm := a.do(t, http.MethodDelete, "/api/v1/admin/students/"+strconv.Itoa(studentID), nil, true)
	if rm.Code != http.StatusOK {
		t.Fatalf("remove student: %d %s", rm.Code, rm.Body.String())
	}
	card = a.do(t, http.MethodGet, "/classes/"+strconv.Itoa(id)+"/card", nil, false)
	if !strings.Contains(card.Body.String(), ">1 student<") {
		t.Fatalf("card after removal: %s", card.Body.String())
	}
}

func TestCardErrors(t *testing.T) {
	a := newTestApp(t)

	missing := a.do(t, http.MethodGet, "/classes/999/card", nil, false)
	if missing.Code != http.StatusNotFound || !strings.Contains(missing.Body.String(), "Class not found.") {
		t.Fatalf("missing: %d %s", missing.Code, missing.Body.String())
	}

	bad := a.do(t, http.MethodGet, "/classes/abc/card", nil, false)
	if bad.Code != http.StatusBadRequest {
		t.Fatalf("bad id: %d", bad.Code)
	}

	summary := a.do(t, http.MethodGet, "/api/v1/classes/999/summary", nil, false)
	if _, errBody := decode(t, summary); summary.Code != http.StatusNotFound || errBody.Code != response.ErrNotFound {
		t.Fatalf("missing summary: %d %s", summary.Code, summary.Body.String())
	}
}

func TestCardsPage(t *testing.T) {
	a := newTestApp(t)

	empty := a.do(t, http.MethodGet, "/classes/cards", nil, false)
	if empty.Code != http.StatusOK || !strings.Contains(empty.Body.String(), "No classes yet.") {
		t.Fatalf("empty page: %s", empty.Body.String())
	}

	first := createClass(t, a, "XII", "TKJ", 2)
	createClass(t, a, "X", "RPL", 1)
	enroll(t, a, first, "0001", "Andi")

	page := a.do(t, http.MethodGet, "/classes/cards", nil, false)
	body := page.Body.String()
	if !strings.HasPrefix(body, "<!DOCTYPE html>") {
		t.Fatalf("not a page: %s", body)
	}
	x, xii := strings.Index(body, "X RPL 1"), strings.Index(body, "XII TKJ 2")
	if x < 0 || xii < 0 || x > xii {
		t.Fatalf("cards missing or out of order: %s", body)
	}
	if !strings.Contains(body, ">1 student<") || !strings.Contains(body, ">0 students<") {
		t.Fatalf("counts missing: %s", body)
	}
}

func TestSummariesAPI(t *testing.T) {
	a := newTestApp(t)
	id := createClass(t, a, "XI", "AKL", 3)
	enroll(t, a, id, "0001", "Rina")

	w := a.do(t, http.MethodGet, "/api/v1/classes/"+strconv.Itoa(id)+"/summary", nil, false)
	data, _ := decode(t, w)
	if string(data["label"]) != `"1 student"` {
		t.Fatalf("label = %s", data["label"])
	}

	w = a.do(t, http.MethodGet, "/api/v1/classes/summaries", nil, false)
	data, _ = decode(t, w)
	var summaries []struct {
		Name         string `json:"name"`
		StudentCount int    `json:"student_count"`
	}
	if err := json.Unmarshal(data["summaries"], &summaries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(summaries) != 1 || summaries[0].Name != "XI AKL 3" || summaries[0].StudentCount != 1 {
		t.Fatalf("summaries = %+v", summaries)
	}
}

func TestPreview(t *testing.T) {
	a := newTestApp(t)

	tests := []struct {
		body map[string]interface{}
		want string
	}{
		{map[string]interface{}{"name": "Algebra I", "student_count": 1}, ">1 student<"},
		{map[string]interface{}{"name": "Algebra I", "student_count": 24}, ">24 students<"},
		{map[string]interface{}{"name": "Empty Class", "student_count": 0}, ">0 students<"},
		{map[string]interface{}{"name": "", "student_count": -2}, ">-2 students<"},
		{map[string]interface{}{}, "<h3 class=\"class-summary__name\"></h3>"},
	}

	for _, tt := range tests {
		w := a.do(t, http.MethodPost, "/api/v1/cards/preview", tt.body, false)
		if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), tt.want) {
			t.Errorf("preview %v: %d %s", tt.body, w.Code, w.Body.String())
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cards/preview", strings.NewReader(`{"student_count":"many"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	if _, errBody := decode(t, w); w.Code != http.StatusBadRequest || errBody.Code != response.ErrInvalidPayload {
		t.Fatalf("bad payload: %d %s", w.Code, w.Body.String())
	}
}

func TestClassValidationAndConflicts(t *testing.T) {
	a := newTestApp(t)

	w := a.do(t, http.MethodPost, "/api/v1/admin/classes", map[string]interface{}{"grade_level": "X"}, true)
	_, errBody := decode(t, w)
	if w.Code != http.StatusBadRequest || errBody.Code != response.ErrValidation {
		t.Fatalf("validation: %d %s", w.Code, w.Body.String())
	}
	if _, ok := errBody.Fields["major_code"]; !ok {
		t.Fatalf("fields = %v", errBody.Fields)
	}

	id := createClass(t, a, "X", "RPL", 1)
	w = a.do(t, http.MethodPost, "/api/v1/admin/classes", map[string]interface{}{
		"grade_level": "X", "major_code": "RPL", "group_number": 1,
	}, true)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate class: %d", w.Code)
	}

	enroll(t, a, id, "0001", "Budi")
	w = a.do(t, http.MethodPost, "/api/v1/admin/classes/"+strconv.Itoa(id)+"/students",
		map[string]string{"nis": "0001", "name": "Budi Lagi"}, true)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate student: %d", w.Code)
	}

	w = a.do(t, http.MethodPost, "/api/v1/admin/classes/999/students",
		map[string]string{"nis": "0009", "name": "Nobody"}, true)
	if w.Code != http.StatusNotFound {
		t.Fatalf("enroll into missing class: %d", w.Code)
	}

	w = a.do(t, http.MethodPut, "/api/v1/admin/classes/999", map[string]interface{}{
		"grade_level": "X", "major_code": "RPL", "group_number": 9,
	}, true)
	if w.Code != http.StatusNotFound {
		t.Fatalf("update missing class: %d", w.Code)
	}

	w = a.do(t, http.MethodPut, "/api/v1/admin/classes/"+strconv.Itoa(id), map[string]interface{}{
		"grade_level": "XI", "major_code": "RPL", "group_number": 1,
	}, true)
	if w.Code != http.StatusOK {
		t.Fatalf("update: %d %s", w.Code, w.Body.String())
	}
	card := a.do(t, http.MethodGet, "/classes/"+strconv.Itoa(id)+"/card", nil, false)
	if !strings.Contains(card.Body.String(), ">XI RPL 1</h3>") {
		t.Fatalf("renamed card: %s", card.Body.String())
	}

	w = a.do(t, http.MethodGet, "/api/v1/admin/classes/"+strconv.Itoa(id)+"/students", nil, true)
	data, _ := decode(t, w)
	if !strings.Contains(string(data["students"]), `"Budi"`) {
		t.Fatalf("students = %s", data["students"])
	}
}

func TestCardStream(t *testing.T) {
	a := newTestApp(t)
	id := createClass(t, a, "X", "RPL", 1)
	enroll(t, a, id, "0001", "Budi")

	srv := httptest.NewServer(a.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/v1/classes/" + strconv.Itoa(id) + "/card"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var card ws.CardResponse
	if err := conn.ReadJSON(&card); err != nil {
		t.Fatalf("read card: %v", err)
	}
	if card.Event != ws.EventCard || card.ClassID != id || card.StudentCount != 1 ||
		!strings.Contains(card.HTML, ">1 student<") {
		t.Fatalf("unexpected card: %+v", card)
	}

	// Without Redis there are no live updates; the stream says so and ends.
	var notice ws.ErrorResponse
	if err := conn.ReadJSON(&notice); err != nil {
		t.Fatalf("read notice: %v", err)
	}
	if notice.Event != ws.EventError {
		t.Fatalf("unexpected notice: %+v", notice)
	}

	resp, err := http.Get(srv.URL + "/ws/v1/classes/999/card")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing class stream status = %d", resp.StatusCode)
	}
}

func TestCardsPageBrotli(t *testing.T) {
	a := newTestApp(t)
	names := []string{"X RPL 1", "XI TKJ 2", "XII AKL 3"}
	for i, grade := range []string{"X", "XI", "XII"} {
		id := createClass(t, a, grade, []string{"RPL", "TKJ", "AKL"}[i], i+1)
		enroll(t, a, id, "000"+strconv.Itoa(i), "Student "+strconv.Itoa(i))
	}

	req := httptest.NewRequest(http.MethodGet, "/classes/cards", nil)
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK || w.Header().Get("Content-Encoding") != "br" {
		t.Fatalf("status = %d, Content-Encoding = %q", w.Code, w.Header().Get("Content-Encoding"))
	}
	decoded, err := io.ReadAll(brotli.NewReader(w.Body))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	page := string(decoded)
	if !strings.HasPrefix(page, "<!DOCTYPE html>") || !strings.HasSuffix(page, "</section></body></html>") {
		t.Fatalf("truncated page: %q", page)
	}
	for _, name := range names {
		if !strings.Contains(page, ">"+name+"</h3>") {
			t.Errorf("card %q missing", name)
		}
	}
	if strings.Count(page, ">1 student<") != 3 {
		t.Fatalf("counts missing: %q", page)
	}
}

func TestDeleteAndListStudentsMissingClass(t *testing.T) {
	a := newTestApp(t)

	w := a.do(t, http.MethodDelete, "/api/v1/admin/classes/999", nil, true)
	if _, errBody := decode(t, w); w.Code != http.StatusNotFound || errBody.Code != response.ErrNotFound {
		t.Fatalf("delete missing class: %d %s", w.Code, w.Body.String())
	}

	w = a.do(t, http.MethodGet, "/api/v1/admin/classes/999/students", nil, true)
	if w.Code != http.StatusNotFound {
		t.Fatalf("students of missing class: %d %s", w.Code, w.Body.String())
	}

	id := createClass(t, a, "X", "RPL", 1)
	w = a.do(t, http.MethodGet, "/api/v1/admin/classes/"+strconv.Itoa(id)+"/students", nil, true)
	data, _ := decode(t, w)
	if w.Code != http.StatusOK || string(data["students"]) != "[]" {
		t.Fatalf("students of empty class: %d %s", w.Code, w.Body.String())
	}
}

func readCard(t *testing.T, conn *websocket.Conn) ws.CardResponse {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var card ws.CardResponse
	if err := conn.ReadJSON(&card); err != nil {
		t.Fatalf("read card: %v", err)
	}
	return card
}

func TestCardStreamLiveUpdates(t *testing.T) {
	rdb, _ := servicetest.NewRedis(t)
	a := newTestAppWithRedis(t, rdb)
	id := createClass(t, a, "X", "RPL", 1)

	srv := httptest.NewServer(a.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/v1/classes/" + strconv.Itoa(id) + "/card"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if card := readCard(t, conn); card.Event != ws.EventCard || card.StudentCount != 0 {
		t.Fatalf("initial card: %+v", card)
	}

	studentID := enroll(t, a, id, "0001", "Budi")
	card := readCard(t, conn)
	if card.StudentCount != 1 || !strings.Contains(card.HTML, ">1 student<") {
		t.Fatalf("card after enroll: %+v", card)
	}

	enroll(t, a, id, "0002", "Siti")
	if card = readCard(t, conn); card.StudentCount != 2 || !strings.Contains(card.HTML, ">2 students<") {
		t.Fatalf("card after second enroll: %+v", card)
	}

	rm := a.do(t, http.MethodDelete, "/api/v1/admin/students/"+strconv.Itoa(studentID), nil, true)
	if rm.Code != http.StatusOK {
		t.Fatalf("remove: %d", rm.Code)
	}
	if card = readCard(t, conn); card.StudentCount != 1 {
		t.Fatalf("card after removal: %+v", card)
	}

	// A cached summary must not outlive the change it missed.
	summary := a.do(t, http.MethodGet, "/api/v1/classes/"+strconv.Itoa(id)+"/summary", nil, false)
	if data, _ := decode(t, summary); string(data["label"]) != `"1 student"` {
		t.Fatalf("summary label = %s", data["label"])
	}
}
