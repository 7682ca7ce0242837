package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hailam/chessrules/internal/game"
	"github.com/hailam/chessrules/internal/storage"
)

type testServer struct {
	t    *testing.T
	srv  *Server
	http *httptest.Server
}

func newTestServer(t *testing.T, opts ...Option) *testServer {
	t.Helper()
	srv := New(opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testServer{t: t, srv: srv, http: ts}
}

// do sends body (JSON-encoded unless it is a string) and decodes the reply
// into out when out is non-nil.
func (ts *testServer) do(method, path string, body any, out any) int {
	ts.t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			ts.t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.http.URL+path, r)
	if err != nil {
		ts.t.Fatal(err)
	}
	resp, err := ts.http.Client().Do(req)
	if err != nil {
		ts.t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			ts.t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (ts *testServer) create() string {
	ts.t.Helper()
	var reply sessionReply
	if code := ts.do(http.MethodPost, "/games", createBody{White: "Ana", Black: "Rui"}, &reply); code != http.StatusCreated {
		ts.t.Fatalf("create: status %d", code)
	}
	return reply.ID
}

func TestGameFlow(t *testing.T) {
	ts := newTestServer(t)

	var created sessionReply
	if code := ts.do(http.MethodPost, "/games", createBody{White: "Ana"}, &created); code != http.StatusCreated {
		t.Fatalf("status %d", code)
	}
	if created.ID == "" || created.State.White != "Ana" || created.State.Black != "Player 2" {
		t.Errorf("created = %+v", created)
	}
	id := created.ID

	var moves struct {
		Square string   `json:"square"`
		Moves  []string `json:"moves"`
	}
	ts.do(http.MethodGet, "/games/"+id+"/moves/e2", nil, &moves)
	if diff := cmp.Diff([]string{"e3", "e4"}, moves.Moves); diff != "" {
		t.Errorf("moves (-want +got):\n%s", diff)
	}

	var played playReply
	if code := ts.do(http.MethodPost, "/games/"+id+"/moves", playBody{From: "e2", To: "e4"}, &played); code != http.StatusOK {
		t.Fatalf("play status %d", code)
	}
	if !played.Applied || played.Move == nil || played.Move.SAN != "e4" || played.State.Turn != "Black" {
		t.Errorf("play = %+v", played)
	}

	var rejected playReply
	if code := ts.do(http.MethodPost, "/games/"+id+"/moves", playBody{From: "e2", To: "e4"}, &rejected); code != http.StatusUnprocessableEntity {
		t.Errorf("rejected status %d", code)
	}
	if rejected.Applied || rejected.Reason != "no piece" || rejected.Move != nil {
		t.Errorf("rejected = %+v", rejected)
	}

	var state stateView
	ts.do(http.MethodGet, "/games/"+id, nil, &state)
	if state.Ply != 1 || len(state.Board) != 32 || state.GameOver {
		t.Errorf("state = %+v", state)
	}
}

func TestFoolsMateOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create()
	var last playReply
	for _, m := range [][2]string{{"f2", "f3"}, {"e7", "e5"}, {"g2", "g4"}, {"d8", "h4"}} {
		ts.do(http.MethodPost, "/games/"+id+"/moves", playBody{From: m[0], To: m[1]}, &last)
	}
	if !last.Move.Checkmate || !last.State.GameOver || last.State.Winner != "Black" {
		t.Errorf("final = %+v", last)
	}
	if code := ts.do(http.MethodPost, "/games/"+id+"/moves", playBody{From: "e2", To: "e4"}, &last); code != http.StatusUnprocessableEntity || last.Reason != "game over" {
		t.Errorf("after mate: %d %+v", code, last)
	}
}

func TestBadRequests(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create()

	var e map[string]string
	if code := ts.do(http.MethodGet, "/games/nope", nil, &e); code != http.StatusNotFound {
		t.Errorf("unknown session status %d", code)
	}
	if code := ts.do(http.MethodPost, "/games/"+id+"/moves", "{", &e); code != http.StatusBadRequest || e["error"] != "invalid json" {
		t.Errorf("bad json: %d %v", code, e)
	}
	if code := ts.do(http.MethodPost, "/games/"+id+"/moves", playBody{From: "x9", To: "e4"}, &e); code != http.StatusBadRequest {
		t.Errorf("bad square status %d", code)
	}
	if code := ts.do(http.MethodPost, "/games/"+id+"/moves", playBody{From: "e2", To: "e4", Promotion: "king"}, &e); code != http.StatusBadRequest {
		t.Errorf("bad promotion status %d", code)
	}
	if code := ts.do(http.MethodGet, "/games/"+id+"/moves/zz", nil, &e); code != http.StatusBadRequest {
		t.Errorf("bad moves square status %d", code)
	}
	if code := ts.do(http.MethodPost, "/games/"+id+"/save", nameBody{Name: "x"}, &e); code != http.StatusNotImplemented {
		t.Errorf("save without store status %d", code)
	}
}

func TestLearningUndoRedo(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create()
	ts.do(http.MethodPost, "/games/"+id+"/moves", playBody{From: "d2", To: "d4"}, nil)

	var e map[string]string
	if code := ts.do(http.MethodPost, "/games/"+id+"/undo", nil, &e); code != http.StatusConflict {
		t.Errorf("undo outside learning mode: %d", code)
	}

	var state stateView
	ts.do(http.MethodPut, "/games/"+id+"/learning", learningBody{Enabled: true}, &state)
	if !state.LearningMode || !state.CanUndo {
		t.Errorf("learning state = %+v", state)
	}
	if code := ts.do(http.MethodPost, "/games/"+id+"/undo", nil, &state); code != http.StatusOK || state.Ply != 0 {
		t.Errorf("undo: %d ply %d", code, state.Ply)
	}
	if code := ts.do(http.MethodPost, "/games/"+id+"/undo", nil, &e); code != http.StatusConflict {
		t.Errorf("second undo: %d", code)
	}
	if code := ts.do(http.MethodPost, "/games/"+id+"/redo", nil, &state); code != http.StatusOK || state.Ply != 1 {
		t.Errorf("redo: %d ply %d", code, state.Ply)
	}
}

func TestImportExportPromote(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create()

	var state stateView
	if code := ts.do(http.MethodPut, "/games/"+id+"/import?white=W", "WHITE,Ke1,Pb7,kh8", &state); code != http.StatusOK {
		t.Fatalf("import status %d", code)
	}
	if state.White != "W" || state.Black != "Rui" {
		t.Errorf("names = %s, %s", state.White, state.Black)
	}

	resp, err := ts.http.Client().Get(ts.http.URL + "/games/" + id + "/export")
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if got := string(data); got != "WHITE,Ke1,Pb7,kh8\n" {
		t.Errorf("export = %q", got)
	}

	var played playReply
	ts.do(http.MethodPost, "/games/"+id+"/moves", playBody{From: "b7", To: "b8"}, &played)
	if !played.Move.Pending || played.State.PendingPromotion != "b8" {
		t.Fatalf("move = %+v", played)
	}
	if code := ts.do(http.MethodPost, "/games/"+id+"/promote", promoteBody{Square: "b8", Kind: "rook"}, &state); code != http.StatusOK {
		t.Fatalf("promote status %d", code)
	}
	if state.PendingPromotion != "" || !state.Check {
		t.Errorf("after promote = %+v", state)
	}

	var e map[string]string
	if code := ts.do(http.MethodPut, "/games/"+id+"/import", "PURPLE,Ke1", &e); code != http.StatusBadRequest {
		t.Errorf("bad import status %d", code)
	}
	if code := ts.do(http.MethodPost, "/games/"+id+"/promote", promoteBody{Square: "b8", Kind: "queen"}, &e); code != http.StatusConflict {
		t.Errorf("second promote status %d", code)
	}
}

func TestSaveLoad(t *testing.T) {
	store, err := storage.Open("", storage.InMemory())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ts := newTestServer(t, WithStore(store))
	id := ts.create()
	ts.do(http.MethodPost, "/games/"+id+"/moves", playBody{From: "c2", To: "c4"}, nil)

	var rec storage.SavedGame
	if code := ts.do(http.MethodPost, "/games/"+id+"/save", nameBody{Name: "english"}, &rec); code != http.StatusOK {
		t.Fatalf("save status %d", code)
	}
	if rec.Name != "english" || rec.Ply != 1 {
		t.Errorf("record = %+v", rec)
	}

	var loaded sessionReply
	if code := ts.do(http.MethodPost, "/games/load", nameBody{Name: "english"}, &loaded); code != http.StatusCreated {
		t.Fatalf("load status %d", code)
	}
	if loaded.ID == id || loaded.State.Ply != 1 || loaded.State.White != "Ana" {
		t.Errorf("loaded = %+v", loaded)
	}
	if ts.srv.Len() != 2 {
		t.Errorf("sessions = %d", ts.srv.Len())
	}

	var e map[string]string
	if code := ts.do(http.MethodPost, "/games/load", nameBody{Name: "missing"}, &e); code != http.StatusNotFound {
		t.Errorf("missing load status %d", code)
	}
	if ts.srv.Len() != 2 {
		t.Error("failed load registered a session")
	}

	var saved []storage.SavedGame
	ts.do(http.MethodGet, "/saved", nil, &saved)
	if len(saved) != 1 || saved[0].Name != "english" {
		t.Errorf("saved = %+v", saved)
	}
	var stats storage.Stats
	if code := ts.do(http.MethodGet, "/stats", nil, &stats); code != http.StatusOK {
		t.Errorf("stats status %d", code)
	}

	if code := ts.do(http.MethodDelete, "/saved/english", nil, nil); code != http.StatusNoContent {
		t.Errorf("delete saved status %d", code)
	}
	if code := ts.do(http.MethodDelete, "/saved/english", nil, &e); code != http.StatusNotFound {
		t.Errorf("second delete status %d", code)
	}
	saved = nil
	ts.do(http.MethodGet, "/saved", nil, &saved)
	if len(saved) != 0 {
		t.Errorf("saved after delete = %+v", saved)
	}
}

func TestResetStats(t *testing.T) {
	store, err := storage.Open("", storage.InMemory())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ts := newTestServer(t, WithStore(store))
	id := ts.create()
	for _, m := range [][2]string{{"f2", "f3"}, {"e7", "e5"}, {"g2", "g4"}, {"d8", "h4"}} {
		ts.do(http.MethodPost, "/games/"+id+"/moves", playBody{From: m[0], To: m[1]}, nil)
	}

	var stats storage.Stats
	ts.do(http.MethodGet, "/stats", nil, &stats)
	if stats.GamesPlayed != 1 || stats.BlackWins != 1 {
		t.Fatalf("stats before reset = %+v", stats)
	}
	if code := ts.do(http.MethodDelete, "/stats", nil, &stats); code != http.StatusOK {
		t.Fatalf("reset status %d", code)
	}
	ts.do(http.MethodGet, "/stats", nil, &stats)
	if diff := cmp.Diff(storage.Stats{}, stats); diff != "" {
		t.Errorf("stats after reset (-want +got):\n%s", diff)
	}
}

func TestRejectsLongNames(t *testing.T) {
	ts := newTestServer(t)
	long := strings.Repeat("w", game.MaxNameLen+1)

	var e map[string]string
	if code := ts.do(http.MethodPost, "/games", createBody{White: long, Black: "b"}, &e); code != http.StatusBadRequest {
		t.Errorf("create with long name status %d", code)
	}
	if ts.srv.Len() != 0 {
		t.Error("session created for a rejected name")
	}

	id := ts.create()
	if code := ts.do(http.MethodPut, "/games/"+id+"/import?black="+long, "WHITE,Ke1,ke8", &e); code != http.StatusBadRequest {
		t.Errorf("import with long name status %d", code)
	}
	var state stateView
	ts.do(http.MethodGet, "/games/"+id, nil, &state)
	if state.Black != "Rui" || len(state.Board) != 32 {
		t.Errorf("state changed by rejected import: %+v", state)
	}
}

func TestDeleteSession(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create()
	if code := ts.do(http.MethodDelete, "/games/"+id, nil, nil); code != http.StatusNoContent {
		t.Errorf("delete status %d", code)
	}
	if code := ts.do(http.MethodGet, "/games/"+id, nil, nil); code != http.StatusNotFound {
		t.Errorf("deleted session status %d", code)
	}
}

func TestEventStream(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create()

	url := "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/games/" + id + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello struct {
		Type  string    `json:"type"`
		State stateView `json:"state"`
	}
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatal(err)
	}
	if hello.Type != "state" || hello.State.Turn != "White" {
		t.Errorf("hello = %+v", hello)
	}

	ts.do(http.MethodPost, "/games/"+id+"/moves", playBody{From: "e2", To: "e4"}, nil)
	ts.do(http.MethodPut, "/games/"+id+"/import", "BLACK,Ke1,ke8", nil)

	var moved struct {
		Type   string   `json:"type"`
		Player string   `json:"player"`
		Move   moveView `json:"move"`
	}
	if err := conn.ReadJSON(&moved); err != nil {
		t.Fatal(err)
	}
	if moved.Type != "move_applied" || moved.Player != "White" || moved.Move.SAN != "e4" {
		t.Errorf("event = %+v", moved)
	}

	var reset map[string]any
	if err := conn.ReadJSON(&reset); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(map[string]any{"type": "board_reset", "reason": "import"}, reset); diff != "" {
		t.Errorf("reset event (-want +got):\n%s", diff)
	}
}

func TestAccessLog(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ts := newTestServer(t, WithLogger(zap.New(core)))
	ts.create()

	if logs.FilterMessageSnippet(`"POST /games HTTP/1.1" 201`).Len() != 1 {
		t.Errorf("access log missing, got %v", logs.All())
	}
	if logs.FilterMessage("session created").Len() != 1 {
		t.Error("session creation not logged")
	}
}
