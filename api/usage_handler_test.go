package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/flowcanvas/flowcanvas/pkg/llm"
	"github.com/flowcanvas/flowcanvas/pkg/storage"
	"github.com/flowcanvas/flowcanvas/pkg/storage/inmemory"
)

func seedEntries(ledger *inmemory.Driver, identityKey string, n int, at time.Time) {
	for i := 0; i < n; i++ {
		err := ledger.Append(context.Background(), &storage.Entry{
			ID:          identityKey + "-" + time.Now().Format("150405.000000000") + "-" + string(rune('a'+i)),
			IdentityKey: identityKey,
			Type:        "diagram_turn",
			Success:     true,
			CreatedAt:   at,
		})
		Expect(err).NotTo(HaveOccurred())
	}
}

func getUsage(server *Server, headers map[string]string) *http.Response {
	req, err := http.NewRequest(http.MethodGet, "/api/usage", nil)
	Expect(err).NotTo(HaveOccurred())
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := server.App().Test(req, 5000)
	Expect(err).NotTo(HaveOccurred())
	return resp
}

func postRecord(server *Server, body string, headers map[string]string) *http.Response {
	req, err := http.NewRequest(http.MethodPost, "/api/usage/record", strings.NewReader(body))
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := server.App().Test(req, 5000)
	Expect(err).NotTo(HaveOccurred())
	return resp
}

var _ = Describe("GET /api/usage", func() {
	It("requires authentication", func() {
		server, _ := newTestServer(&scriptedRunner{})

		resp := getUsage(server, nil)
		Expect(resp.StatusCode).To(Equal(fiber.StatusUnauthorized))

		var errResp llm.ErrorResponse
		Expect(json.NewDecoder(resp.Body).Decode(&errResp)).To(Succeed())
		Expect(errResp.Error).To(ContainSubstring("authentication"))
	})

	It("reports stats and remaining budget for a free account", func() {
		server, ledger := newTestServer(&scriptedRunner{})
		seedEntries(ledger, "acct:u-1", 2, time.Now().UTC())

		resp := getUsage(server, map[string]string{headerAccountID: "u-1"})
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

		var body usageResponse
		Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())

		Expect(body.Stats.Today).To(Equal(2))
		Expect(body.Stats.ThisMonth).To(Equal(2))
		Expect(body.Stats.Total).To(Equal(2))

		Expect(body.Limits.CanUse).To(BeTrue())
		Expect(body.Limits.Limit).To(Equal(5))
		Expect(body.Limits.RemainingUsage).To(Equal(3))
		Expect(body.Limits.Reason).To(BeEmpty())
	})

	It("reports the subscriber limit when the entitlement header is active", func() {
		server, _ := newTestServer(&scriptedRunner{})

		resp := getUsage(server, map[string]string{
			headerAccountID:    "u-2",
			headerSubscription: "active",
		})
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

		var body usageResponse
		Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
		Expect(body.Limits.Limit).To(Equal(500))
		Expect(body.Limits.RemainingUsage).To(Equal(500))
	})

	It("includes a denial reason once the budget is gone", func() {
		server, ledger := newTestServer(&scriptedRunner{})
		seedEntries(ledger, "acct:u-3", 5, time.Now().UTC())

		resp := getUsage(server, map[string]string{headerAccountID: "u-3"})

		var body usageResponse
		Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
		Expect(body.Limits.CanUse).To(BeFalse())
		Expect(body.Limits.RemainingUsage).To(Equal(0))
		Expect(body.Limits.Reason).NotTo(BeEmpty())
	})

	It("excludes prior-month usage from the monthly budget", func() {
		server, ledger := newTestServer(&scriptedRunner{})
		seedEntries(ledger, "acct:u-4", 5, time.Now().UTC().AddDate(0, -2, 0))

		resp := getUsage(server, map[string]string{headerAccountID: "u-4"})

		var body usageResponse
		Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
		Expect(body.Stats.Total).To(Equal(5))
		Expect(body.Stats.ThisMonth).To(Equal(0))
		Expect(body.Limits.CanUse).To(BeTrue())
		Expect(body.Limits.RemainingUsage).To(Equal(5))
	})
})

var _ = Describe("POST /api/usage/record", func() {
	It("rejects a malformed body", func() {
		server, _ := newTestServer(&scriptedRunner{})

		resp := postRecord(server, "not json", nil)
		Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
	})

	It("records a successful entry against the caller's quota", func() {
		server, ledger := newTestServer(&scriptedRunner{})

		resp := postRecord(server, `{"type":"diagram_turn","success":true,"metadata":{"rounds":2}}`,
			map[string]string{headerAccountID: "u-1"})
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

		var body recordResponse
		Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
		Expect(body.Recorded).To(BeTrue())
		Expect(body.EntryID).NotTo(BeEmpty())

		count, err := ledger.CountSuccessful(context.Background(), "acct:u-1", time.Time{})
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(1))
	})

	It("defaults the entry type when omitted", func() {
		server, _ := newTestServer(&scriptedRunner{})

		resp := postRecord(server, `{"success":true}`, map[string]string{headerAccountID: "u-1"})
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
	})

	It("refuses a successful entry past the limit", func() {
		server, ledger := newTestServer(&scriptedRunner{})
		seedEntries(ledger, "acct:u-1", 5, time.Now().UTC())

		resp := postRecord(server, `{"success":true}`, map[string]string{headerAccountID: "u-1"})
		Expect(resp.StatusCode).To(Equal(fiber.StatusTooManyRequests))

		var body recordResponse
		Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
		Expect(body.Recorded).To(BeFalse())
		Expect(body.LimitReached).To(BeTrue())

		count, err := ledger.CountSuccessful(context.Background(), "acct:u-1", time.Time{})
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(5))
	})

	It("always accepts failure entries and keeps them out of quota counts", func() {
		server, ledger := newTestServer(&scriptedRunner{})
		seedEntries(ledger, "acct:u-1", 5, time.Now().UTC())

		resp := postRecord(server, `{"success":false}`, map[string]string{headerAccountID: "u-1"})
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

		count, err := ledger.CountSuccessful(context.Background(), "acct:u-1", time.Time{})
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(5))
	})
})
