package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/clipcatd/clipcat/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(nil, filepath.Join(dir, "history.db"), filepath.Join(dir, "images"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func textEntry(t *testing.T, text string, ts time.Time) types.ClipEntry {
	t.Helper()
	e, err := types.NewClipEntry(types.Content{Kind: types.ContentText, Text: text}, types.Clipboard, ts)
	require.NoError(t, err)
	return e
}

func imageEntry(t *testing.T, ts time.Time) types.ClipEntry {
	t.Helper()
	img := types.ImageData{Width: 2, Height: 2, RGBA8: make([]byte, 2*2*4)}
	e, err := types.NewClipEntry(types.Content{Kind: types.ContentImage, Image: img}, types.Clipboard, ts)
	require.NoError(t, err)
	return e
}

func TestPutAndLoadRoundTripsText(t *testing.T) {
	s := openTestStore(t)
	e := textEntry(t, "round trip me", time.Now())
	require.NoError(t, s.Put(e))

	loaded, err := s.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, e.Content.Text, loaded[0].Content.Text)
	assert.Equal(t, e.ID, loaded[0].ID)
}

func TestPutAndLoadRoundTripsImageViaSidecar(t *testing.T) {
	s := openTestStore(t)
	e := imageEntry(t, time.Now())
	require.NoError(t, s.Put(e))

	loaded, err := s.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, types.ContentImage, loaded[0].Content.Kind)
	assert.Equal(t, e.Content.Image.Width, loaded[0].Content.Image.Width)
}

func TestDeleteRemovesRecord(t *testing.T) {
	s := openTestStore(t)
	e := textEntry(t, "gone soon", time.Now())
	require.NoError(t, s.Put(e))
	require.NoError(t, s.Delete(e.ID))

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestShrinkToKeepsNewestEntries(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	older := textEntry(t, "older", now)
	newer := textEntry(t, "newer", now.Add(time.Minute))
	require.NoError(t, s.Put(older))
	require.NoError(t, s.Put(newer))

	require.NoError(t, s.ShrinkTo(1))

	loaded, err := s.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, newer.ID, loaded[0].ID)
}

func TestShrinkToGarbageCollectsOrphanSidecars(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	// give them distinct content so they don't collide on digest
	keepImg := types.ImageData{Width: 2, Height: 2, RGBA8: make([]byte, 2*2*4)}
	keepImg.RGBA8[0], keepImg.RGBA8[3] = 1, 255
	dropImg := types.ImageData{Width: 2, Height: 2, RGBA8: make([]byte, 2*2*4)}
	dropImg.RGBA8[0], dropImg.RGBA8[3] = 2, 255
	keep, err := types.NewClipEntry(types.Content{Kind: types.ContentImage, Image: keepImg}, types.Clipboard, now.Add(time.Minute))
	require.NoError(t, err)
	drop, err := types.NewClipEntry(types.Content{Kind: types.ContentImage, Image: dropImg}, types.Clipboard, now)
	require.NoError(t, err)

	require.NoError(t, s.Put(keep))
	require.NoError(t, s.Put(drop))
	require.NoError(t, s.ShrinkTo(1))

	files, err := os.ReadDir(s.imageDir)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestClearRemovesEverything(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Put(textEntry(t, "a", time.Now())))
	require.NoError(t, s.Clear())

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestLoadMigratesLegacyV1RecordsToV2(t *testing.T) {
	s := openTestStore(t)

	ts := time.Now().Truncate(time.Second)
	err := s.db.Update(func(tx *bbolt.Tx) error {
		v1, err := tx.CreateBucketIfNotExists([]byte(bucketEntriesV1))
		if err != nil {
			return err
		}
		data, err := json.Marshal(legacyRecord{Text: "legacy clip", Timestamp: ts})
		if err != nil {
			return err
		}
		return v1.Put([]byte("1"), data)
	})
	require.NoError(t, err)

	loaded, err := s.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "legacy clip", loaded[0].Content.Text)
	assert.Equal(t, types.Clipboard, loaded[0].ClipboardKind)

	// The legacy bucket must be gone and the record must now live in v2, so
	// a second Load doesn't depend on the migration path at all.
	err = s.db.View(func(tx *bbolt.Tx) error {
		assert.Nil(t, tx.Bucket([]byte(bucketEntriesV1)))
		assert.NotNil(t, tx.Bucket([]byte(bucketEntriesV2)))
		return nil
	})
	require.NoError(t, err)

	loadedAgain, err := s.Load()
	require.NoError(t, err)
	require.Len(t, loadedAgain, 1)
	assert.Equal(t, "legacy clip", loadedAgain[0].Content.Text)
}

func TestSaveAndShrinkToPersistsAndCaps(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	entries := []types.ClipEntry{
		textEntry(t, "one", now),
		textEntry(t, "two", now.Add(time.Second)),
		textEntry(t, "three", now.Add(2*time.Second)),
	}
	require.NoError(t, s.SaveAndShrinkTo(entries, 2))

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, loaded, 2)
}
