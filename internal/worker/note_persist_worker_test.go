package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docexplorer/internal/model"
)

type fakeSaver struct {
	saved []model.ResearchNote
	err   error
}

func (f *fakeSaver) Save(_ context.Context, note *model.ResearchNote) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, *note)
	return nil
}

type fakeIndexer struct {
	indexed []string
	err     error
}

func (f *fakeIndexer) IndexNote(_ context.Context, note model.ResearchNote) error {
	f.indexed = append(f.indexed, note.ID)
	return f.err
}

func TestHandlePersistsAndIndexes(t *testing.T) {
	saver := &fakeSaver{}
	indexer := &fakeIndexer{}
	w := NewNotePersistWorker(nil, saver, indexer, "q", nil)

	err := w.Handle(context.Background(), []byte(`{"id":"n1","document_id":"d1","content":"c","source_type":"qa_derived"}`))
	require.NoError(t, err)
	require.Len(t, saver.saved, 1)
	assert.Equal(t, "d1", saver.saved[0].DocumentID)
	assert.Equal(t, []string{"n1"}, indexer.indexed)
}

func TestHandleRejectsMalformedPayload(t *testing.T) {
	w := NewNotePersistWorker(nil, &fakeSaver{}, nil, "q", nil)

	err := w.Handle(context.Background(), []byte(`not json`))
	assert.ErrorIs(t, err, errInvalidNote)

	err = w.Handle(context.Background(), []byte(`{"content":"no ids"}`))
	assert.ErrorIs(t, err, errInvalidNote)
}

func TestHandleSaveFailure(t *testing.T) {
	boom := errors.New("db down")
	indexer := &fakeIndexer{}
	w := NewNotePersistWorker(nil, &fakeSaver{err: boom}, indexer, "q", nil)

	err := w.Handle(context.Background(), []byte(`{"id":"n1","document_id":"d1"}`))
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, indexer.indexed)
}

func TestHandleIndexFailureStillAcks(t *testing.T) {
	w := NewNotePersistWorker(nil, &fakeSaver{}, &fakeIndexer{err: errors.New("embed down")}, "q", nil)
	require.NoError(t, w.Handle(context.Background(), []byte(`{"id":"n1","document_id":"d1"}`)))
}
