package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"devpulse.app/pulse/internal/http/handler"
	"devpulse.app/pulse/internal/model"
	"devpulse.app/pulse/internal/service"
)

type mockAnswerService struct {
	answerFn func(ctx context.Context, text string) service.AnswerResult
}

func (m *mockAnswerService) Answer(ctx context.Context, text string) service.AnswerResult {
	return m.answerFn(ctx, text)
}

var _ = Describe("QueryHandler", func() {
	var (
		router *gin.Engine
		svc    *mockAnswerService
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		svc = &mockAnswerService{}
		h := handler.NewQueryHandler(svc)
		router.POST("/api/v1/query", h.Query)
	})

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/query", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	It("returns 200 with the answer payload", func() {
		subject := "Maya"
		enriched := model.EnrichedModel{
			Metrics: model.Metrics{ActivityScore: 7, ActivityLevel: model.LevelLow, TotalItems: 5, WindowDays: 7},
		}
		svc.answerFn = func(_ context.Context, text string) service.AnswerResult {
			Expect(text).To(Equal("What is Maya working on this week?"))
			return service.AnswerResult{
				QueryID:  123456789,
				Parsed:   model.ParsedQuery{OriginalText: text, SubjectName: &subject, Intent: model.IntentGeneral, PlatformBias: model.BiasBoth},
				Subject:  "Maya Chen",
				Answer:   "Maya Chen has been busy.",
				Enriched: &enriched,
			}
		}

		body, _ := json.Marshal(map[string]string{"text": "What is Maya working on this week?"})
		w := post(string(body))

		Expect(w.Code).To(Equal(http.StatusOK))
		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["query_id"]).To(Equal("123456789"))
		Expect(resp["answer"]).To(Equal("Maya Chen has been busy."))
		Expect(resp["subject"]).To(Equal("Maya Chen"))
		Expect(resp).NotTo(HaveKey("error_kind"))

		parsed := resp["parsed_query"].(map[string]any)
		Expect(parsed["subject"]).To(Equal("Maya"))
		Expect(parsed["window_days"]).To(BeNumerically("==", 14))

		metrics := resp["enriched"].(map[string]any)["metrics"].(map[string]any)
		Expect(metrics["total_items"]).To(BeNumerically("==", 5))
		Expect(metrics["activity_level"]).To(Equal("low"))
	})

	It("returns 200 with an error kind for pipeline outcomes", func() {
		kind := model.ErrUserNotFound
		svc.answerFn = func(_ context.Context, text string) service.AnswerResult {
			return service.AnswerResult{
				QueryID:   1,
				Parsed:    model.ParsedQuery{OriginalText: text},
				Subject:   "Zanzibar",
				Answer:    "I couldn't find Zanzibar.",
				ErrorKind: &kind,
			}
		}

		w := post(`{"text":"What is Zanzibar doing?"}`)

		Expect(w.Code).To(Equal(http.StatusOK))
		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["error_kind"]).To(Equal("user_not_found"))
		Expect(resp).NotTo(HaveKey("enriched"))
	})

	It("returns 400 on a malformed body", func() {
		svc.answerFn = func(context.Context, string) service.AnswerResult {
			Fail("service must not be called")
			return service.AnswerResult{}
		}

		Expect(post(`{`).Code).To(Equal(http.StatusBadRequest))
	})

	It("returns 400 when text is missing", func() {
		svc.answerFn = func(context.Context, string) service.AnswerResult {
			Fail("service must not be called")
			return service.AnswerResult{}
		}

		Expect(post(`{}`).Code).To(Equal(http.StatusBadRequest))
	})
})
