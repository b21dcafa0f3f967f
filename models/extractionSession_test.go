package models

import "testing"

func TestLearnedInitialsTolerantDecode(t *testing.T) {
	session := ExtractionSession{}
	if got := session.LearnedInitials(); got == nil || len(got) != 0 {
		t.Fatalf("empty column: %v", got)
	}

	session.LearnedInitialsJSON = []byte("{broken")
	if got := session.LearnedInitials(); got == nil || len(got) != 0 {
		t.Fatalf("corrupt column must decode to an empty map, got %v", got)
	}

	session.SetLearnedInitials(map[string]string{"GSK": "GSK Pharmaceuticals"})
	got := session.LearnedInitials()
	if got["GSK"] != "GSK Pharmaceuticals" {
		t.Fatalf("round trip: %v", got)
	}
}

func TestLocationIdsRoundTrip(t *testing.T) {
	session := ExtractionSession{}
	if ids := session.LocationIds(); ids != nil {
		t.Fatalf("empty column: %v", ids)
	}
	session.SetLocationIds([]int{3, 1, 2})
	ids := session.LocationIds()
	if len(ids) != 3 || ids[0] != 3 || ids[2] != 2 {
		t.Fatalf("round trip: %v", ids)
	}
}
