package domain

import (
	"errors"
	"testing"
)

func TestResolveVideoReferenceCanonicalizesAllShapes(t *testing.T) {
	const id = "dQw4w9WgXcQ"
	want := "https://www.youtube.com/watch?v=" + id

	inputs := []string{
		"https://www.youtube.com/watch?v=" + id,
		"http://youtube.com/watch?v=" + id + "&t=42s",
		"https://m.youtube.com/watch?list=abc&v=" + id,
		"https://youtu.be/" + id,
		"https://youtu.be/" + id + "?si=xyz",
		"https://www.youtube.com/shorts/" + id,
		"https://www.youtube.com/embed/" + id,
		"  https://www.youtube.com/watch?v=" + id + "  ",
	}

	for _, in := range inputs {
		ref, err := ResolveVideoReference(in)
		if err != nil {
			t.Fatalf("resolve %q: %v", in, err)
		}
		if ref.VideoID != id {
			t.Fatalf("resolve %q: got id %q", in, ref.VideoID)
		}
		if ref.CanonicalURL != want {
			t.Fatalf("resolve %q: got canonical %q", in, ref.CanonicalURL)
		}
	}
}

func TestResolveVideoReferenceRejectsInvalidInput(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"not a url",
		"https://example.com/watch?v=dQw4w9WgXcQ",
		"https://www.youtube.com/watch",
		"https://www.youtube.com/watch?v=tooshort",
		"https://www.youtube.com/watch?v=waytoolongid123",
		"https://www.youtube.com/shorts/",
		"https://youtu.be/",
		"https://www.youtube.com/watch?v=bad*chars!!",
	}

	for _, in := range inputs {
		_, err := ResolveVideoReference(in)
		if !errors.Is(err, ErrInvalidReference) {
			t.Fatalf("resolve %q: expected ErrInvalidReference, got %v", in, err)
		}
	}
}

func TestResolveVideoReferenceIsDeterministic(t *testing.T) {
	in := "https://youtu.be/abc123XYZ_-"
	first, err := ResolveVideoReference(in)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	second, err := ResolveVideoReference(in)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if first != second {
		t.Fatalf("expected identical results, got %+v and %+v", first, second)
	}
}

func TestScorePercent(t *testing.T) {
	cases := []struct {
		correct, total int
		want           float64
	}{
		{0, 0, 0.0},
		{3, 0, 0.0},
		{0, 10, 0.0},
		{7, 10, 70.0},
		{10, 10, 100.0},
		{1, 3, 33.3},
		{2, 3, 66.7},
	}
	for _, c := range cases {
		if got := ScorePercent(c.correct, c.total); got != c.want {
			t.Fatalf("ScorePercent(%d, %d) = %v, want %v", c.correct, c.total, got, c.want)
		}
	}
}
