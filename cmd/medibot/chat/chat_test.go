package chatcmder_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	medibotcmder "github.com/papercomputeco/medibot/cmd/medibot"
	chatcmder "github.com/papercomputeco/medibot/cmd/medibot/chat"
	"github.com/papercomputeco/medibot/pkg/dotdir"
)

// fakeServer mimics the session and chat endpoints of a medibot server.
type fakeServer struct {
	mu       sync.Mutex
	sessions map[string]int
	queries  []string
	cleared  []string
}

func (f *fakeServer) handler() http.Handler {
	writeJSON := func(w http.ResponseWriter, code int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(v)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sessions", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.sessions["sess-1"] = 0
		writeJSON(w, http.StatusCreated, map[string]string{"session_id": "sess-1"})
	})
	mux.HandleFunc("GET /api/sessions/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		n, ok := f.sessions[r.PathValue("id")]
		writeJSON(w, http.StatusOK, map[string]any{
			"session_id":    r.PathValue("id"),
			"exists":        ok,
			"message_count": n,
		})
	})
	mux.HandleFunc("POST /api/sessions/{id}/clear", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.cleared = append(f.cleared, r.PathValue("id"))
		f.sessions[r.PathValue("id")] = 0
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})
	mux.HandleFunc("POST /api/chat", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query     string `json:"query"`
			SessionID string `json:"session_id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		f.mu.Lock()
		defer f.mu.Unlock()
		f.queries = append(f.queries, req.Query)
		f.sessions[req.SessionID] += 2

		resp := map[string]any{
			"success":    true,
			"response":   "Rest and drink fluids.",
			"session_id": req.SessionID,
			"sources":    []string{"cold.json"},
		}
		if strings.Contains(req.Query, "chest pain") {
			resp["urgency_level"] = "emergency"
			resp["emergency_detected"] = true
		}
		writeJSON(w, http.StatusOK, resp)
	})
	return mux
}

var _ = Describe("chat command", func() {
	var (
		tmpDir string
		fake   *fakeServer
		server *httptest.Server
	)

	run := func(input string, extra ...string) (string, error) {
		cmd := medibotcmder.NewMedibotCmd()
		out := &bytes.Buffer{}
		cmd.SetIn(strings.NewReader(input))
		cmd.SetOut(out)
		cmd.SetErr(out)
		args := append([]string{"chat", "--config-dir", tmpDir, "--api-target", server.URL}, extra...)
		cmd.SetArgs(args)
		err := cmd.Execute()
		return out.String(), err
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "medibot-chat-test-*")
		Expect(err).NotTo(HaveOccurred())

		fake = &fakeServer{sessions: map[string]int{}}
		server = httptest.NewServer(fake.handler())
	})

	AfterEach(func() {
		server.Close()
		os.RemoveAll(tmpDir)
	})

	It("is named chat", func() {
		Expect(chatcmder.NewChatCmd().Use).To(Equal("chat"))
	})

	It("starts a session, answers and remembers the session", func() {
		out, err := run("I have a cold\n/exit\n")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("New session"))
		Expect(out).To(ContainSubstring("Rest and drink fluids."))
		Expect(out).To(ContainSubstring("cold.json"))
		Expect(fake.queries).To(Equal([]string{"I have a cold"}))

		state, err := dotdir.NewManager().LoadChatState(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(state).NotTo(BeNil())
		Expect(state.SessionID).To(Equal("sess-1"))
		Expect(state.APITarget).To(Equal(server.URL))
	})

	It("resumes the remembered session", func() {
		_, err := run("hello\n")
		Expect(err).NotTo(HaveOccurred())

		out, err := run("/status\n/exit\n")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Resuming session"))
		Expect(out).To(ContainSubstring("(2 messages)"))
	})

	It("shows an urgency badge for emergencies", func() {
		out, err := run("crushing chest pain\n")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("EMERGENCY"))
	})

	It("clears the conversation on /clear", func() {
		_, err := run("/clear\n")
		Expect(err).NotTo(HaveOccurred())
		Expect(fake.cleared).To(Equal([]string{"sess-1"}))
	})

	It("reports unknown slash commands without exiting", func() {
		out, err := run("/dance\nstill here\n")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("unknown command /dance"))
		Expect(fake.queries).To(Equal([]string{"still here"}))
	})

	It("fails when the server is unreachable", func() {
		server.Close()
		_, err := run("hello\n")
		Expect(err).To(HaveOccurred())
	})
})
