package upload

import (
	"context"
	"errors"
	"sync"

	"procurement-workflow/internal/domain"
	"procurement-workflow/internal/storage"
	"procurement-workflow/internal/verification"
)

const testPath = "artifacts/test/public/data/procurement_processes"

// recordingStore wraps the in-memory store and keeps every partial write.
type recordingStore struct {
	*storage.MemoryStore

	mu     sync.Mutex
	writes []domain.Fields
}

func newRecordingStore() *recordingStore {
	return &recordingStore{MemoryStore: storage.NewMemoryStore()}
}

func (s *recordingStore) UpdateFields(ctx context.Context, path, id string, fields domain.Fields) error {
	s.mu.Lock()
	cp := make(domain.Fields, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	s.writes = append(s.writes, cp)
	s.mu.Unlock()
	return s.MemoryStore.UpdateFields(ctx, path, id, fields)
}

func (s *recordingStore) Writes() []domain.Fields {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Fields(nil), s.writes...)
}

func (s *recordingStore) seed(id string, confirmation, delivery domain.StepStatus) {
	_ = s.PutDocument(context.Background(), testPath, id, map[string]any{
		"id":           id,
		"supplierName": "Acme Supplies",
		"status":       "open",
		"order":        map[string]any{"status": "verified"},
		"confirmation": map[string]any{"status": string(confirmation)},
		"delivery":     map[string]any{"status": string(delivery)},
	})
}

func (s *recordingStore) process(id string) domain.Process {
	doc, err := s.GetDocument(context.Background(), testPath, id)
	if err != nil {
		return domain.Process{}
	}
	return domain.Map(doc.Data, doc.ID)
}

func (s *recordingStore) storedStatus(id string) string {
	doc, err := s.GetDocument(context.Background(), testPath, id)
	if err != nil {
		return ""
	}
	v, _ := doc.Data["status"].(string)
	return v
}

// staticSource always hands out the same classifier.
type staticSource struct {
	classifier verification.Classifier
	err        error
}

func (s staticSource) ClassifierFor(context.Context, domain.Stage) (verification.Classifier, error) {
	return s.classifier, s.err
}

type fakeArchive struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (a *fakeArchive) PutSubmission(_ context.Context, processID, stage, submissionID, fileName, _ string, _ []byte) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	key := storage.SubmissionKey(processID, stage, submissionID, fileName)
	a.mu.Lock()
	a.keys = append(a.keys, key)
	a.mu.Unlock()
	return key, nil
}

func deferredClassifier() verification.Classifier {
	return verification.ClassifierFunc(func(context.Context, verification.Submission) (verification.Outcome, error) {
		return verification.Outcome{Deferred: true}, nil
	})
}

var errVerifierDown = errors.New("verifier down")

func testFile() File {
	return File{Name: "ack.pdf", ContentType: "application/pdf", Content: []byte("%PDF")}
}
