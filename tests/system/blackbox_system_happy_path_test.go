//go:build system

package system_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.temporal.io/sdk/client"

	"procurement-workflow/internal/config"
	"procurement-workflow/internal/domain"
	"procurement-workflow/internal/storage"
	appTemporal "procurement-workflow/internal/temporal"
)

var _ = Describe("System blackbox happy path", Ordered, func() {
	var repoRoot string
	var cfg systemTestConfig
	var store *storage.PostgresStore
	var verifier *stubVerifier
	var collectionPath string

	BeforeAll(func() {
		if os.Getenv("RUN_BLACKBOX_SYSTEM_TEST") != "1" {
			Skip("set RUN_BLACKBOX_SYSTEM_TEST=1 to run real blackbox system test")
		}

		cfg = loadSystemTestConfig()
		collectionPath = config.Config{ApplicationID: cfg.ApplicationID}.CollectionPath()

		var err error
		repoRoot, err = findRepoRoot()
		Expect(err).ToNot(HaveOccurred())

		By("verifying required docker compose services (including worker) are already running")
		Expect(requireComposeServicesRunning(repoRoot, cfg.RequiredComposeServices)).To(Succeed())

		By("failing fast if infrastructure is unreachable")
		Expect(waitForPostgres(cfg.PostgresDSN, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForTemporal(cfg.TemporalAddress, cfg.TemporalNamespace, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForHTTPStatus(cfg.MinioReadyURL, 200, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForHTTPStatus(strings.TrimRight(cfg.APIBaseURL, "/")+cfg.APIHealthPath, 200, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForHTTPStatus(strings.TrimRight(cfg.APIBaseURL, "/")+cfg.APIReadyPath, 200, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForWorkerPoller(cfg.TemporalAddress, cfg.TemporalNamespace, cfg.TemporalTaskQueue, cfg.WorkerPollerTimeout)).To(Succeed())

		store, err = storage.NewPostgresStore(cfg.PostgresDSN)
		Expect(err).ToNot(HaveOccurred())
		Expect(store.EnsureSchema(context.Background())).To(Succeed())
		DeferCleanup(store.Close)

		verifier, err = startStubVerifier(cfg.VerifierHost)
		Expect(err).ToNot(HaveOccurred())
		DeferCleanup(verifier.Close)
	})

	It("uploads a confirmation over HTTP and applies the callback via a real worker", func() {
		ctx := context.Background()
		apiBaseURL := strings.TrimRight(cfg.APIBaseURL, "/")
		processID := fmt.Sprintf("PO-SYS-%d", time.Now().UnixNano())

		By("creating the process the way ingestion does")
		Expect(store.PutDocument(ctx, collectionPath, processID, map[string]any{
			"id":           processID,
			"supplierName": "Northwind Components",
			"status":       string(domain.ProcessOpen),
			"createdAt":    time.Now().UTC().Format(time.RFC3339Nano),
			"order":        map[string]any{"status": string(domain.StepVerified), "fileName": processID + ".pdf"},
			"confirmation": map[string]any{"status": string(domain.StepPending)},
			"delivery":     map[string]any{"status": string(domain.StepPending)},
		})).To(Succeed())
		DeferCleanup(func() {
			_ = store.DeleteDocument(context.Background(), collectionPath, processID)
		})

		Eventually(func() error {
			_, err := getProcess(apiBaseURL, processID)
			return err
		}, cfg.WorkflowCompletionTimeout, cfg.WorkflowPollInterval).Should(Succeed())

		process, err := getProcess(apiBaseURL, processID)
		Expect(err).ToNot(HaveOccurred())
		Expect(process.Confirmation.Status).To(Equal(domain.StepPending))
		Expect(process.Blocked).To(HaveKeyWithValue(domain.StageDelivery, true))

		By("pointing the confirmation stage at the stub verifier")
		Expect(putEndpoint(apiBaseURL, domain.StageConfirmation, verifier.url)).To(Succeed())
		DeferCleanup(func() {
			_ = putEndpoint(apiBaseURL, domain.StageConfirmation, "")
		})

		By("uploading the confirmation document exactly like a user")
		filePath := filepath.Join(repoRoot, "tests", "system", cfg.UploadFixturePath)
		uploadedFile, err := os.ReadFile(filePath)
		Expect(err).ToNot(HaveOccurred())

		outcome, status, err := uploadStageDocument(apiBaseURL, processID, domain.StageConfirmation, filePath)
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal(202))
		Expect(outcome.Deferred).To(BeTrue())
		Expect(outcome.Status).To(Equal(domain.StepAnalyzing))
		Expect(outcome.SubmissionID).ToNot(BeEmpty())

		requests := verifier.Requests()
		Expect(requests).To(HaveLen(1))
		Expect(requests[0].OrderID).To(Equal(processID))
		Expect(requests[0].Stage).To(Equal(string(domain.StageConfirmation)))
		Expect(requests[0].SubmissionID).To(Equal(outcome.SubmissionID))
		Expect(requests[0].FileName).To(Equal(filepath.Base(filePath)))
		Expect(requests[0].Content).To(Equal(uploadedFile))

		Eventually(func() domain.StepStatus {
			p, err := getProcess(apiBaseURL, processID)
			Expect(err).ToNot(HaveOccurred())
			return p.Confirmation.Status
		}, cfg.WorkflowCompletionTimeout, cfg.WorkflowPollInterval).Should(Equal(domain.StepAnalyzing))

		By("delivering the verification callback")
		accepted, err := postStageResult(apiBaseURL, processID, domain.StageConfirmation, map[string]any{
			"status":       "verified",
			"submissionId": outcome.SubmissionID,
			"data":         map[string]any{"confirmedLines": 2},
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(accepted.WorkflowID).To(Equal(appTemporal.WorkflowID(cfg.WorkflowIDPrefix, processID, domain.StageConfirmation)))

		By("polling the process until the worker applied the result")
		var last processResponse
		Eventually(func() domain.StepStatus {
			var getErr error
			last, getErr = getProcess(apiBaseURL, processID)
			Expect(getErr).ToNot(HaveOccurred())
			Expect(last.Confirmation.Status).ToNot(Equal(domain.StepConflict))
			return last.Confirmation.Status
		}, cfg.WorkflowCompletionTimeout, cfg.WorkflowPollInterval).Should(Equal(domain.StepVerified))
		Expect(last.Status).To(Equal(domain.ProcessOpen))
		Expect(last.Blocked).To(HaveKeyWithValue(domain.StageDelivery, false))
		Expect(string(last.Confirmation.Data)).To(MatchJSON(`{"confirmedLines":2}`))

		By("validating the activity input and output from Temporal workflow history")
		temporalClient, err := client.Dial(client.Options{
			HostPort:  cfg.TemporalAddress,
			Namespace: cfg.TemporalNamespace,
		})
		Expect(err).ToNot(HaveOccurred())
		defer temporalClient.Close()

		var trace activityTrace
		Eventually(func() []string {
			var traceErr error
			trace, traceErr = collectActivityTrace(ctx, temporalClient, accepted.WorkflowID)
			Expect(traceErr).ToNot(HaveOccurred())
			return trace.CompletedOrder
		}, cfg.WorkflowCompletionTimeout, cfg.WorkflowPollInterval).Should(Equal(cfg.ExpectedActivityOrder))
		Expect(trace.ScheduledOrder).To(Equal(cfg.ExpectedActivityOrder))

		signals, err := collectSignalNames(ctx, temporalClient, accepted.WorkflowID)
		Expect(err).ToNot(HaveOccurred())
		Expect(signals).To(ConsistOf(appTemporal.VerificationResultSignalName))

		applyIn := trace.Inputs["ApplyVerificationResultActivity"].(appTemporal.ApplyVerificationResultInput)
		Expect(applyIn.ProcessID).To(Equal(processID))
		Expect(applyIn.Stage).To(Equal(domain.StageConfirmation))
		Expect(applyIn.SubmissionID).To(Equal(outcome.SubmissionID))
		Expect(applyIn.Result.Status).To(Equal(domain.StepVerified))

		applyOut := trace.Outputs["ApplyVerificationResultActivity"].(appTemporal.ApplyVerificationResultOutput)
		Expect(applyOut.Status).To(Equal(domain.StepVerified))
		Expect(applyOut.Ignored).To(BeFalse())

		By("checking the stored record in Postgres")
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		Expect(err).ToNot(HaveOccurred())
		defer db.Close()

		Expect(db.Ping()).To(Succeed())

		stored, err := fetchStringRows(db, `
			SELECT data->'confirmation'->>'status'
			FROM documents
			WHERE collection_path = $1 AND doc_id = $2
		`, collectionPath, processID)
		Expect(err).ToNot(HaveOccurred())
		Expect(stored).To(Equal([]string{string(domain.StepVerified)}))
	})
})
