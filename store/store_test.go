package store

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "metadata.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTimelineCRUD(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	if err := s.CreateTimeline("t1", now); err != nil {
		t.Fatal(err)
	}
	row, err := s.GetTimeline("t1")
	if err != nil {
		t.Fatal(err)
	}
	if row.ID != "t1" {
		t.Fatalf("got %+v", row)
	}
	list, err := s.ListTimelines()
	if err != nil || len(list) != 1 {
		t.Fatalf("got %v, %v", list, err)
	}
	if err := s.RemoveTimeline("t1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetTimeline("t1"); err == nil {
		t.Fatal("expected not-found error")
	}
}

func TestSnapshotRevisionMonotonic(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	s.CreateTimeline("t1", now)
	var revisions []int64
	for i := 0; i < 5; i++ {
		sn, err := s.CreateSnapshot("t1", "", false, "", false, now.Add(time.Duration(i)*time.Minute))
		if err != nil {
			t.Fatal(err)
		}
		revisions = append(revisions, sn.Revision)
	}
	for i := 1; i < len(revisions); i++ {
		if revisions[i] <= revisions[i-1] {
			t.Fatalf("revisions not strictly increasing: %v", revisions)
		}
	}
	if revisions[0] != 1 {
		t.Fatalf("expected first revision 1, got %d", revisions[0])
	}
}

func TestVersionAndBlockRoundTrip(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	s.CreateTimeline("t1", now)
	sn, _ := s.CreateSnapshot("t1", "", false, "", false, now)

	blobID1, err := s.UpsertBlob([]byte("sum1"), 3)
	if err != nil {
		t.Fatal(err)
	}
	blobID2, err := s.UpsertBlob([]byte("sum2"), 2)
	if err != nil {
		t.Fatal(err)
	}
	// re-upserting identical checksum must not create a second row.
	blobID1Again, err := s.UpsertBlob([]byte("sum1"), 3)
	if err != nil {
		t.Fatal(err)
	}
	if blobID1 != blobID1Again {
		t.Fatal("UpsertBlob created a duplicate row for the same checksum")
	}

	perm := uint16(0644)
	versionID, err := s.CreateVersion(sn.ID, VersionInput{
		Path: "a", LastModifiedMs: 123, Permissions: &perm, Size: 5,
		Checksum: []byte("filesum"), BlobIDs: []int64{blobID1, blobID2},
	})
	if err != nil {
		t.Fatal(err)
	}
	blocks, err := s.ListBlocks(versionID)
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 2 || blocks[0].BlobID != blobID1 || blocks[1].BlobID != blobID2 {
		t.Fatalf("got %+v", blocks)
	}

	v, err := s.GetVersion(versionID)
	if err != nil {
		t.Fatal(err)
	}
	if v.Path != "a" || *v.Permissions != perm {
		t.Fatalf("got %+v", v)
	}
}

func TestCumulativeVersions(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	s.CreateTimeline("t1", now)

	sn1, _ := s.CreateSnapshot("t1", "", false, "", false, now)
	b1, _ := s.UpsertBlob([]byte("apple"), 5)
	s.CreateVersion(sn1.ID, VersionInput{Path: "a", Size: 5, Checksum: []byte("apple-sum"), BlobIDs: []int64{b1}})
	b2, _ := s.UpsertBlob([]byte("orange"), 6)
	s.CreateVersion(sn1.ID, VersionInput{Path: "c/a", Size: 6, Checksum: []byte("orange-sum"), BlobIDs: []int64{b2}})

	sn2, _ := s.CreateSnapshot("t1", "", false, "", false, now.Add(time.Minute))
	b3, _ := s.UpsertBlob([]byte("apple-2"), 7)
	s.CreateVersion(sn2.ID, VersionInput{Path: "a", Size: 7, Checksum: []byte("apple-2-sum"), BlobIDs: []int64{b3}})
	b4, _ := s.UpsertBlob([]byte("banana"), 6)
	s.CreateVersion(sn2.ID, VersionInput{Path: "b", Size: 6, Checksum: []byte("banana-sum"), BlobIDs: []int64{b4}})

	cum, err := s.CumulativeVersions("t1", sn2.Revision)
	if err != nil {
		t.Fatal(err)
	}
	if len(cum) != 3 {
		t.Fatalf("expected 3 paths, got %+v", cum)
	}
	if string(cum["a"].Checksum) != "apple-2-sum" {
		t.Fatalf("got %+v", cum["a"])
	}
	if string(cum["b"].Checksum) != "banana-sum" {
		t.Fatalf("got %+v", cum["b"])
	}
	if string(cum["c/a"].Checksum) != "orange-sum" {
		t.Fatalf("got %+v", cum["c/a"])
	}
}

func TestTagUniqueWithinTimeline(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	s.CreateTimeline("t1", now)
	sn, _ := s.CreateSnapshot("t1", "", false, "", false, now)
	sn2, _ := s.CreateSnapshot("t1", "", false, "", false, now.Add(time.Minute))

	if _, err := s.AddTag(sn.ID, "t1", "stable", "", true); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddTag(sn2.ID, "t1", "stable", "", false); err == nil {
		t.Fatal("expected duplicate tag name to fail")
	}

	pinned, err := s.SnapshotIsPinned(sn.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !pinned {
		t.Fatal("expected snapshot to be pinned via tag")
	}
}

func TestSweepUnreferencedBlobs(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	s.CreateTimeline("t1", now)
	sn, _ := s.CreateSnapshot("t1", "", false, "", false, now)
	blobID, _ := s.UpsertBlob([]byte("sum"), 3)
	versionID, _ := s.CreateVersion(sn.ID, VersionInput{Path: "a", Size: 3, Checksum: []byte("v"), BlobIDs: []int64{blobID}})

	orphans, err := s.SweepUnreferencedBlobs()
	if err != nil {
		t.Fatal(err)
	}
	if len(orphans) != 0 {
		t.Fatalf("expected no orphans while referenced, got %+v", orphans)
	}

	if _, err := s.RemoveVersion(versionID); err != nil {
		t.Fatal(err)
	}
	orphans, err = s.SweepUnreferencedBlobs()
	if err != nil {
		t.Fatal(err)
	}
	if len(orphans) != 1 || orphans[0].ID != blobID {
		t.Fatalf("expected blob %d to be swept, got %+v", blobID, orphans)
	}
	if _, err := s.GetBlob(blobID); err == nil {
		t.Fatal("expected blob record to be gone after sweep")
	}
}

func TestCleanupPolicyAssociation(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	s.CreateTimeline("t1", now)
	id, err := s.AddCleanupPolicy("t1", int64(time.Hour/time.Millisecond), int64(7*24*time.Hour/time.Millisecond), 7, "keep 7 daily")
	if err != nil {
		t.Fatal(err)
	}
	list, err := s.ListCleanupPolicies("t1")
	if err != nil || len(list) != 1 || list[0].ID != id {
		t.Fatalf("got %+v, %v", list, err)
	}
}
